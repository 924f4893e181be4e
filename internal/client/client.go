// Package client はroomctlからroomfinder APIを呼び出すクライアントを提供する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/roomfinder/internal/authstate"
	"github.com/hitoshi/roomfinder/internal/model"
)

// defaultTimeout はHTTPクライアントのデフォルトタイムアウト。
const defaultTimeout = 15 * time.Second

// StatusError はAPIが2xx以外を返した場合のエラー。
// errors.Asで*model.APIErrorとしても取り出せる。
type StatusError struct {
	StatusCode int
	APIError   *model.APIError
}

func (e *StatusError) Error() string {
	if e.APIError != nil {
		return fmt.Sprintf("%s (HTTP %d)", e.APIError.Error(), e.StatusCode)
	}
	return fmt.Sprintf("unexpected status: HTTP %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	if e.APIError == nil {
		return nil
	}
	return e.APIError
}

// HasCode はエラーが指定コードのAPIエラーかを返す。
func HasCode(err error, code string) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsUnauthorized はエラーが401によるものかを返す。
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// Client はroomfinder APIのHTTPクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient はClientを生成する。httpClientがnilの場合はデフォルトタイムアウトのクライアントを使う。
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// errorBody はAPIの統一エラーフォーマット。
type errorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// do はリクエストを送り、2xxの場合はoutにデコードする。
// accessTokenが空でなければBearerトークンとして付与する。
func (c *Client) do(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	var eb errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb); err == nil && eb.Code != "" {
		se.APIError = &model.APIError{
			Code:     eb.Code,
			Message:  eb.Message,
			Category: eb.Category,
			Action:   eb.Action,
		}
	}
	return se
}

// --- 認証 ---

// RequestMagicLink はマジックリンクの送信を依頼する。roleは初回登録時のみ意味を持つ。
func (c *Client) RequestMagicLink(ctx context.Context, email string, role model.Role) error {
	return c.do(ctx, http.MethodPost, "/auth/magic-link", "", map[string]string{
		"email": email,
		"role":  string(role),
	}, nil)
}

// VerifyMagicLink はマジックリンクのトークンを検証してセッションを受け取る。
func (c *Client) VerifyMagicLink(ctx context.Context, token string) (*authstate.Session, error) {
	var sess authstate.Session
	if err := c.do(ctx, http.MethodPost, "/auth/verify", "", map[string]string{"token": token}, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Refresh はリフレッシュトークンでセッションを更新する。
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*authstate.Session, error) {
	var sess authstate.Session
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refreshToken}, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Logout はサーバー側のセッションを破棄する。
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", accessToken, nil, nil)
}

// --- ロールレコード ---

type roleRecordBody struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b roleRecordBody) toModel() *model.RoleRecord {
	return &model.RoleRecord{
		ID:        b.ID,
		Role:      model.Role(b.Role),
		Email:     b.Email,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func profilePath(userID string) string {
	return "/api/profiles/" + url.PathEscape(userID)
}

// GetRole はロールレコードを取得する。
func (c *Client) GetRole(ctx context.Context, accessToken, userID string) (*model.RoleRecord, error) {
	var body roleRecordBody
	if err := c.do(ctx, http.MethodGet, profilePath(userID), accessToken, nil, &body); err != nil {
		return nil, err
	}
	return body.toModel(), nil
}

// CreateRole はサインアップ時のロールからロールレコードを作成する。
func (c *Client) CreateRole(ctx context.Context, accessToken, userID string, role model.Role, email string) (*model.RoleRecord, error) {
	var body roleRecordBody
	in := map[string]string{"role": string(role)}
	if email != "" {
		in["email"] = email
	}
	if err := c.do(ctx, http.MethodPut, profilePath(userID), accessToken, in, &body); err != nil {
		return nil, err
	}
	return body.toModel(), nil
}

// SelectRole はユーザー自身によるロール選択を送る。
func (c *Client) SelectRole(ctx context.Context, accessToken, userID string, role model.Role) (*model.RoleRecord, error) {
	var body roleRecordBody
	if err := c.do(ctx, http.MethodPost, profilePath(userID), accessToken, map[string]string{"role": string(role)}, &body); err != nil {
		return nil, err
	}
	return body.toModel(), nil
}

// Withdraw は退会する。
func (c *Client) Withdraw(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodDelete, "/api/users/me", accessToken, nil, nil)
}
