package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/roomfinder/internal/guard"
	"github.com/hitoshi/roomfinder/internal/metrics"
	"github.com/hitoshi/roomfinder/internal/middleware"
)

// HealthChecker はヘルスチェックでDB疎通を確認するためのインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenValidator    middleware.TokenValidator
	RoleLookup        middleware.RoleLookup
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 監視
	HealthChecker HealthChecker
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer

	// ガードのルート定義。nilの場合はguard.DefaultTable()
	GuardTable *guard.Table

	AuthService    AuthServiceInterface
	ProfileService ProfileServiceInterface
	RoomService    RoomServiceInterface
	UserService    UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  → SessionMiddleware → RateLimitMiddleware(GeneralMiddleware) → AuthzMiddleware
//
// 部屋の参照（GET）とマジックリンク認証は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}
	table := deps.GuardTable
	if table == nil {
		table = guard.DefaultTable()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	profileHandler := NewProfileHandler(deps.ProfileService)
	roomHandler := NewRoomHandler(deps.RoomService)
	userHandler := NewUserHandler(deps.UserService)

	session := middleware.NewSessionMiddleware(deps.TokenValidator)
	authz := func(path string) func(http.Handler) http.Handler {
		return middleware.NewAuthzMiddleware(deps.RoleLookup, guardRoute(table, path))
	}

	// --- 監視 ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証 ---
	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.MagicLinkMiddleware()).Post("/magic-link", authHandler.RequestMagicLink)
		r.Post("/verify", authHandler.Verify)
		r.Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(session)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	// --- 認証不要のルート ---
	r.Get("/api/rooms", roomHandler.List)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → Authz（ルートごと）
	r.Group(func(r chi.Router) {
		r.Use(session)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/profiles/{id}", func(r chi.Router) {
			r.Get("/", profileHandler.Get)
			r.Put("/", profileHandler.Create)
			r.Post("/", profileHandler.Select)
		})

		r.With(authz("/add-room")).Post("/api/rooms", roomHandler.Create)
		r.With(authz("/my-rooms")).Get("/api/rooms/mine", roomHandler.Mine)
		r.With(authz("/edit-room/:id")).Put("/api/rooms/{id}", roomHandler.Update)
		r.With(authz("/edit-room/:id")).Delete("/api/rooms/{id}", roomHandler.Delete)

		r.Delete("/api/users/me", userHandler.Withdraw)
	})

	// 部屋詳細は認証不要。/api/rooms/mine より後に登録してもchiは静的パスを優先する
	r.Get("/api/rooms/{id}", roomHandler.Get)

	return r
}

// guardRoute はガードのルート定義を取得する。
// 定義がない場合は認証のみを要求するルートとして扱う。
func guardRoute(table *guard.Table, path string) guard.Route {
	if route, ok := table.Match(path); ok {
		return route
	}
	return guard.Route{Path: path}
}

// healthHandler はDB疎通を含むヘルスチェックを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
