package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/roomfinder/internal/auth"
	"github.com/hitoshi/roomfinder/internal/config"
	"github.com/hitoshi/roomfinder/internal/database"
	"github.com/hitoshi/roomfinder/internal/handler"
	"github.com/hitoshi/roomfinder/internal/logger"
	"github.com/hitoshi/roomfinder/internal/metrics"
	"github.com/hitoshi/roomfinder/internal/middleware"
	"github.com/hitoshi/roomfinder/internal/profile"
	"github.com/hitoshi/roomfinder/internal/repository"
	"github.com/hitoshi/roomfinder/internal/room"
	"github.com/hitoshi/roomfinder/internal/security"
	"github.com/hitoshi/roomfinder/internal/user"
	"github.com/hitoshi/roomfinder/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	inv, err := ParseArgs(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if inv.Command == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(inv.Command)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch inv.Command {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, inv.Direction)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config, pool database.PoolConfig) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, pool)
	if err != nil {
		return nil, err
	}

	slog.Info("database connection established")
	return db, nil
}

// newMailer は設定に応じたMailerを返す。
// MAIL_WEBHOOK_URLが未設定の場合はリンクをログに出力する。
func newMailer(cfg *config.Config) auth.Mailer {
	if cfg.MailWebhookURL == "" {
		slog.Warn("MAIL_WEBHOOK_URL is not set; magic links will be written to the log")
		return auth.NewLogMailer(slog.Default())
	}
	return auth.NewWebhookMailer(auth.WebhookMailerConfig{URL: cfg.MailWebhookURL})
}

// newImageProber は設定に応じた画像URLの到達確認を返す。無効の場合はnil。
func newImageProber(cfg *config.Config, ssrfGuard security.SSRFGuardService) room.ImageProber {
	if !cfg.RoomImageProbe {
		return nil
	}
	return room.NewHTTPImageProber(ssrfGuard.NewSafeClient(cfg.ImageProbeTimeout))
}

// buildRouterDeps は全依存関係をワイヤリングしてルーターの依存関係を構築する。
func buildRouterDeps(cfg *config.Config, db *sql.DB, registry *prometheus.Registry) *handler.RouterDeps {
	collector := metrics.NewCollector(registry)

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	linkRepo := repository.NewPostgresMagicLinkRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	roomRepo := repository.NewPostgresRoomRepo(db)

	// 2. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 3. ドメインサービスの初期化
	authService := auth.NewService(
		userRepo, linkRepo, sessionRepo,
		auth.NewTokenManager(cfg.SessionSecret, cfg.AccessTokenTTL),
		newMailer(cfg),
		collector,
		auth.ServiceConfig{
			BaseURL:       cfg.BaseURL,
			MagicLinkTTL:  cfg.MagicLinkTTL,
			SessionMaxAge: cfg.SessionMaxAge,
		},
	)
	profileService := profile.NewService(userRepo, profileRepo, cfg.RoleSelectionPolicy, collector)
	roomService := room.NewService(roomRepo, sanitizer, ssrfGuard, newImageProber(cfg, ssrfGuard))
	userService := user.NewService(userRepo, sessionRepo, user.WithRecorder(collector))

	// 4. ルーターの依存関係
	return &handler.RouterDeps{
		TokenValidator:    authService,
		RoleLookup:        profileRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter: middleware.NewRateLimiter(
			middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitMagicLink),
		),
		Logger: slog.Default(),

		HealthChecker: db,
		Metrics:       collector,
		Gatherer:      registry,

		AuthService:    authService,
		ProfileService: profileService,
		RoomService:    roomService,
		UserService:    userService,
	}
}

// newRegistry はGoランタイムとプロセスのメトリクスを含むレジストリを返す。
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg, database.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer db.Close()
	warnPendingMigrations(cfg.DatabaseURL)

	deps := buildRouterDeps(cfg, db, newRegistry())
	defer deps.RateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// warnPendingMigrations は未適用のマイグレーションがあれば警告する。起動は止めない。
func warnPendingMigrations(databaseURL string) {
	st, err := database.MigrationStatus(databaseURL)
	if err != nil {
		slog.Warn("failed to check migration status", slog.String("error", err.Error()))
		return
	}
	if st.Pending() || st.Dirty {
		slog.Warn("database schema is not up to date; run `roomfinder migrate up`",
			slog.Uint64("version", uint64(st.Current)),
			slog.Uint64("latest", uint64(st.Latest)),
			slog.Bool("dirty", st.Dirty),
		)
	}
}

// runWorker はワーカーモードで起動する。
// 期限切れのセッションとマジックリンクをCLEANUP_INTERVALごとに削除する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg, database.WorkerPoolConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	registry := newRegistry()
	cleanupJob := cleanup.NewCleanupJob(
		repository.NewPostgresSessionRepo(db),
		repository.NewPostgresMagicLinkRepo(db),
		metrics.NewCollector(registry),
		slog.Default(),
	)
	cleanupJob.GracePeriod = cfg.CleanupGracePeriod

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("grace_period", cfg.CleanupGracePeriod),
	)

	cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// upは未適用のマイグレーションをすべて適用し、downは1つ戻す。
// versionは現在のバージョンをログに出力する。
func runMigrate(cfg *config.Config, direction MigrateDirection) error {
	slog.Info("running database migrations",
		slog.String("direction", string(direction)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch direction {
	case MigrateDown:
		if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	case MigrateVersion:
		st, err := database.MigrationStatus(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
		slog.Info("current migration version",
			slog.Uint64("version", uint64(st.Current)),
			slog.Uint64("latest", uint64(st.Latest)),
			slog.Bool("dirty", st.Dirty),
			slog.Bool("pending", st.Pending()),
		)
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
