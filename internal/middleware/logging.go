package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// requestFields は内側のミドルウェアが判明した情報をアクセスログへ伝えるための入れ物。
// SessionMiddlewareはr.WithContextで新しいリクエストを作るため、
// 外側のLoggingからは値を直接参照できない。
type requestFields struct {
	mu        sync.Mutex
	userID    string
	sessionID string
	role      string
	decision  string
}

type requestFieldsKey struct{}

func fieldsFrom(ctx context.Context) *requestFields {
	f, _ := ctx.Value(requestFieldsKey{}).(*requestFields)
	return f
}

// annotateSession はアクセスログにユーザーIDとセッションIDを記録する。
func annotateSession(ctx context.Context, userID, sessionID string) {
	if f := fieldsFrom(ctx); f != nil {
		f.mu.Lock()
		f.userID, f.sessionID = userID, sessionID
		f.mu.Unlock()
	}
}

// annotateDecision はアクセスログにロールとガードの判定理由を記録する。
func annotateDecision(ctx context.Context, role, decision string) {
	if f := fieldsFrom(ctx); f != nil {
		f.mu.Lock()
		f.role, f.decision = role, decision
		f.mu.Unlock()
	}
}

func (f *requestFields) attrs() []any {
	f.mu.Lock()
	defer f.mu.Unlock()

	var attrs []any
	if f.userID != "" {
		attrs = append(attrs, slog.String("user_id", f.userID))
	}
	if f.sessionID != "" {
		attrs = append(attrs, slog.String("session_id", f.sessionID))
	}
	if f.role != "" {
		attrs = append(attrs, slog.String("role", f.role))
	}
	if f.decision != "" {
		attrs = append(attrs, slog.String("authz", f.decision))
	}
	return attrs
}

// NewLoggingMiddleware はリクエストごとにJSON構造化ログを1行出力するミドルウェアを返す。
// routeにはchiのルートパターンを出力する（/api/rooms/{id} など）。
// ステータスが5xxならERROR、4xxならWARNで出力する。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			fields := &requestFields{}
			r = r.WithContext(context.WithValue(r.Context(), requestFieldsKey{}, fields))
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					args = append(args, slog.String("route", pattern))
				}
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				args = append(args, slog.String("request_id", reqID))
			}
			args = append(args, fields.attrs()...)

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
