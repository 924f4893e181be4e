package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/roomfinder/internal/auth"
	"github.com/hitoshi/roomfinder/internal/config"
	"github.com/hitoshi/roomfinder/internal/database"
	"github.com/hitoshi/roomfinder/internal/handler"
	"github.com/hitoshi/roomfinder/internal/logger"
	"github.com/hitoshi/roomfinder/internal/security"
)

// TestInit は設定の読み込みとJSONロガーの設定を検証する。
func TestInit(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		setTestEnv(t)

		var buf bytes.Buffer
		cfg, err := Init(&buf)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg == nil || cfg.BaseURL != "http://localhost:8080" {
			t.Fatalf("cfg = %+v", cfg)
		}

		slog.Default().Info("init test")
		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
		}
		if entry["msg"] != "init test" || entry["service"] != "roomfinder" {
			t.Errorf("entry = %v, want msg and service attributes", entry)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		setTestEnv(t)
		t.Setenv("SESSION_SECRET", "")
		t.Setenv("CLEANUP_INTERVAL", "never")

		cfg, err := Init(io.Discard)
		if err == nil || cfg != nil {
			t.Fatalf("Init() = %+v, %v; want nil, error", cfg, err)
		}
	})
}

func TestInit_RespectsLogLevel(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	if _, err := Init(&buf); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	slog.Default().Info("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("info log should be suppressed at warn level, got %s", buf.String())
	}
}

func TestNewMailer_SelectsImplementation(t *testing.T) {
	logger.SetupDefault(io.Discard, "error")

	if _, ok := newMailer(&config.Config{}).(*auth.LogMailer); !ok {
		t.Error("expected LogMailer when MAIL_WEBHOOK_URL is empty")
	}
	if _, ok := newMailer(&config.Config{MailWebhookURL: "https://mail.example.com/hook"}).(*auth.WebhookMailer); !ok {
		t.Error("expected WebhookMailer when MAIL_WEBHOOK_URL is set")
	}
}

func TestNewImageProber_DisabledByDefault(t *testing.T) {
	guard := security.NewSSRFGuard()

	if p := newImageProber(&config.Config{}, guard); p != nil {
		t.Errorf("expected nil prober, got %T", p)
	}
	if p := newImageProber(&config.Config{RoomImageProbe: true, ImageProbeTimeout: time.Second}, guard); p == nil {
		t.Error("expected prober when ROOM_IMAGE_PROBE is enabled")
	}
}

// TestBuildRouterDeps_WiresEverything はDBに接続せずにワイヤリングが完結することを検証する。
func TestBuildRouterDeps_WiresEverything(t *testing.T) {
	setTestEnv(t)
	cfg, err := Init(io.Discard)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	deps := buildRouterDeps(cfg, db, prometheus.NewRegistry())
	defer deps.RateLimiter.Stop()

	if deps.TokenValidator == nil || deps.RoleLookup == nil || deps.HealthChecker == nil {
		t.Fatal("middleware dependencies must be wired")
	}
	if deps.AuthService == nil || deps.ProfileService == nil || deps.RoomService == nil || deps.UserService == nil {
		t.Fatal("service dependencies must be wired")
	}

	// 認証不要で、DBに触れないルートが応答すること
	router := handler.NewRouter(deps)
	req := httptest.NewRequest(http.MethodGet, "/api/rooms?max_price=abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
