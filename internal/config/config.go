package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/roomfinder/internal/model"
)

// minSessionSecretLen はJWT署名鍵に要求する最小バイト数。
const minSessionSecretLen = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// LOG_LEVELはConfigより先にロガーが読むためここには含めない。
type Config struct {
	DatabaseURL string

	// セッション
	SessionSecret  string
	SessionMaxAge  int // 秒
	AccessTokenTTL time.Duration
	MagicLinkTTL   time.Duration

	MailWebhookURL string // 未設定の場合はマジックリンクをログに出力する

	RoleSelectionPolicy model.RoleSelectionPolicy

	RoomImageProbe    bool
	ImageProbeTimeout time.Duration

	RateLimitGeneral   int // 1分あたり
	RateLimitMagicLink int

	CleanupInterval    time.Duration
	CleanupGracePeriod time.Duration

	ServerPort        string
	BaseURL           string
	CORSAllowedOrigin string // カンマ区切りで複数指定できる
}

// env は環境変数を読みながら不正値をerrsに溜める。
// 不正な値を黙ってデフォルトに戻すと設定ミスに気付けないため、起動を止める。
type env struct {
	errs []error
}

func (e *env) required(key string) string {
	v := os.Getenv(key)
	if v == "" {
		e.errs = append(e.errs, fmt.Errorf("%s is required", key))
	}
	return v
}

func (e *env) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e *env) positiveInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s must be a positive integer: %q", key, v))
		return def
	}
	return i
}

func (e *env) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be a boolean: %q", key, v))
		return def
	}
	return b
}

// duration はtime.ParseDuration形式の値を読む。allowZeroがfalseなら0以下を拒否する。
func (e *env) duration(key string, def time.Duration, allowZero bool) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		e.errs = append(e.errs, fmt.Errorf("%s must be a positive duration: %q", key, v))
		return def
	}
	return d
}

// Load は環境変数からConfigを読み込む。
// 必須項目の欠落や値の不正はまとめて1つのエラーとして返す。
func Load() (*Config, error) {
	var e env

	cfg := &Config{
		DatabaseURL:   e.required("DATABASE_URL"),
		SessionSecret: e.required("SESSION_SECRET"),
		BaseURL:       e.required("BASE_URL"),

		SessionMaxAge:      e.positiveInt("SESSION_MAX_AGE", 30*24*60*60),
		AccessTokenTTL:     e.duration("ACCESS_TOKEN_TTL", time.Hour, false),
		MagicLinkTTL:       e.duration("MAGIC_LINK_TTL", 15*time.Minute, false),
		MailWebhookURL:     os.Getenv("MAIL_WEBHOOK_URL"),
		RoomImageProbe:     e.boolean("ROOM_IMAGE_PROBE", false),
		ImageProbeTimeout:  e.duration("IMAGE_PROBE_TIMEOUT", 5*time.Second, false),
		RateLimitGeneral:   e.positiveInt("RATE_LIMIT_GENERAL", 120),
		RateLimitMagicLink: e.positiveInt("RATE_LIMIT_MAGIC_LINK", 5),
		CleanupInterval:    e.duration("CLEANUP_INTERVAL", time.Hour, false),
		CleanupGracePeriod: e.duration("CLEANUP_GRACE_PERIOD", 24*time.Hour, true),
		ServerPort:         e.str("SERVER_PORT", "8080"),
		CORSAllowedOrigin:  e.str("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
	}

	if cfg.SessionSecret != "" && len(cfg.SessionSecret) < minSessionSecretLen {
		e.errs = append(e.errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLen))
	}

	if cfg.BaseURL != "" {
		if u, err := url.Parse(cfg.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			e.errs = append(e.errs, fmt.Errorf("BASE_URL must be an absolute http(s) URL: %q", cfg.BaseURL))
		}
	}

	policy := model.RoleSelectionPolicy(strings.ToLower(e.str("ROLE_SELECTION_POLICY", string(model.RoleSelectionInsert))))
	switch policy {
	case model.RoleSelectionInsert, model.RoleSelectionOverwrite:
		cfg.RoleSelectionPolicy = policy
	default:
		e.errs = append(e.errs, fmt.Errorf("invalid ROLE_SELECTION_POLICY: %s", policy))
	}

	if len(e.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(e.errs...))
	}
	return cfg, nil
}
