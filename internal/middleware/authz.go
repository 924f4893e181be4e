package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/roomfinder/internal/guard"
	"github.com/hitoshi/roomfinder/internal/model"
)

// RoleLookup は保存済みロールの取得に必要なインターフェース。
// repository.ProfileRepositoryの部分集合として定義する。
type RoleLookup interface {
	FindByID(ctx context.Context, id string) (*model.RoleRecord, error)
}

// NewAuthzMiddleware はクライアントと同じガード判定をサーバー側で適用するミドルウェアを返す。
// SessionMiddlewareの後に配置する。判定結果は次のHTTPステータスに対応する。
//
//	ランディングへのリダイレクト    → 401 INVALID_TOKEN
//	ロール選択へのリダイレクト      → 403 ROLE_REQUIRED
//	アクセス拒否                    → 403 ACCESS_DENIED
func NewAuthzMiddleware(roles RoleLookup, route guard.Route) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())

			state := guard.State{UserID: userID}
			if userID != "" {
				rec, err := roles.FindByID(r.Context(), userID)
				if err != nil {
					slog.Error("failed to load role for authorization",
						slog.String("user_id", userID),
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				// 未知のロールは未確定として扱う
				if rec != nil && rec.Role.Valid() {
					state.Role = rec.Role
				}
			}

			decision := guard.Evaluate(state, route)
			annotateDecision(r.Context(), string(state.Role), decision.Reason.String())
			switch decision.Action {
			case guard.ActionRender:
				if decision.Allows() || decision.Reason == guard.ReasonAnonymous {
					next.ServeHTTP(w, r)
					return
				}
				// サーバー側ではローディング状態は発生しない
				WriteInternalServerError(w)
			case guard.ActionRedirect:
				if decision.Target == guard.RoleSelectionPath {
					WriteAPIError(w, model.NewRoleRequiredError())
					return
				}
				WriteAPIError(w, model.NewInvalidTokenError())
			default:
				slog.Warn("access denied",
					slog.String("user_id", userID),
					slog.String("path", r.URL.Path),
					slog.String("role", string(state.Role)),
				)
				WriteAPIError(w, model.NewAccessDeniedError())
			}
		})
	}
}
