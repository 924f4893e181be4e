package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Mailer はマジックリンクをユーザーに届けるインターフェース。
type Mailer interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

// LogMailer はマジックリンクをログに出力するだけのMailer。
// メール配送を持たない開発環境向け。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。loggerがnilの場合はslog.Default()を使う。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendMagicLink はリンクをINFOレベルで出力する。
func (m *LogMailer) SendMagicLink(_ context.Context, email, link string) error {
	m.logger.Info("magic link issued",
		slog.String("email", email),
		slog.String("link", link),
	)
	return nil
}

// WebhookMailerConfig はWebhookMailerの設定。
type WebhookMailerConfig struct {
	URL     string
	Timeout time.Duration
}

// WebhookMailer はメール配送サービスのWebhookにJSONをPOSTするMailer。
type WebhookMailer struct {
	url    string
	client *http.Client
}

// NewWebhookMailer はWebhookMailerを生成する。
func NewWebhookMailer(config WebhookMailerConfig) *WebhookMailer {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookMailer{
		url:    config.URL,
		client: &http.Client{Timeout: timeout},
	}
}

// webhookPayload はWebhookに送るリクエストボディ。
type webhookPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Link    string `json:"link"`
}

// SendMagicLink はWebhookにリンクを送信する。2xx以外はエラーとする。
func (m *WebhookMailer) SendMagicLink(ctx context.Context, email, link string) error {
	body, err := json.Marshal(webhookPayload{
		To:      email,
		Subject: "Sign in to RoomFinder",
		Link:    link,
	})
	if err != nil {
		return fmt.Errorf("failed to encode mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mail delivery failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

var (
	_ Mailer = (*LogMailer)(nil)
	_ Mailer = (*WebhookMailer)(nil)
)
