// Package auth はマジックリンクによるパスワードレス認証とセッション管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roomfinder/internal/metrics"
	"github.com/hitoshi/roomfinder/internal/model"
	"github.com/hitoshi/roomfinder/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BaseURL       string        // マジックリンクのベースURL
	MagicLinkTTL  time.Duration // マジックリンクの有効期間
	SessionMaxAge int           // セッション（リフレッシュトークン）有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	linkRepo    repository.MagicLinkRepository
	sessionRepo repository.SessionRepository
	tokens      *TokenManager
	mailer      Mailer
	metrics     metrics.MetricsCollector
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	linkRepo repository.MagicLinkRepository,
	sessionRepo repository.SessionRepository,
	tokens *TokenManager,
	mailer Mailer,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		userRepo:    userRepo,
		linkRepo:    linkRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		mailer:      mailer,
		metrics:     collector,
		config:      config,
		now:         time.Now,
	}
}

// RequestMagicLink はマジックリンクを発行してメールで送る。
// 初回リクエスト時はroleをサインアップ時のロールとしてユーザーを作成する。
// 既存ユーザーのサインアップ時ロールは変更しない。
func (s *Service) RequestMagicLink(ctx context.Context, email string, role model.Role) error {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	if role != model.RoleNone && !role.Valid() {
		return model.NewInvalidRoleError(string(role))
	}

	now := s.now()
	user, created, err := s.userRepo.FindOrCreate(ctx, &model.User{
		ID:         uuid.New().String(),
		Email:      normalized,
		SignupRole: role,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("failed to find or create user: %w", err)
	}
	if created {
		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("signup_role", string(user.SignupRole)),
		)
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate magic link token: %w", err)
	}

	if err := s.linkRepo.Create(ctx, &model.MagicLink{
		TokenHash: hashToken(token),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.config.MagicLinkTTL),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to save magic link: %w", err)
	}

	if err := s.mailer.SendMagicLink(ctx, normalized, s.magicLinkURL(token)); err != nil {
		return fmt.Errorf("failed to send magic link: %w", err)
	}

	s.metrics.RecordMagicLinkIssued()
	return nil
}

// magicLinkURL はメールに記載するリンクを組み立てる。
func (s *Service) magicLinkURL(token string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/auth/verify?token=" + url.QueryEscape(token)
}

// VerifyMagicLink はマジックリンクのトークンを消費してセッションを発行する。
// 同じトークンは1回しか使えない。
func (s *Service) VerifyMagicLink(ctx context.Context, token string) (*model.IssuedSession, error) {
	if token == "" {
		return nil, model.NewInvalidTokenError()
	}

	link, err := s.linkRepo.Consume(ctx, hashToken(token))
	if err != nil {
		return nil, fmt.Errorf("failed to consume magic link: %w", err)
	}
	if link == nil {
		return nil, model.NewInvalidTokenError()
	}

	user, err := s.userRepo.FindByID(ctx, link.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	issued, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("session_id", issued.SessionID),
	)
	return issued, nil
}

// Refresh はリフレッシュトークンを新しいものに差し替え、アクセストークンを再発行する。
// 使用済みのリフレッシュトークンは無効になる。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.IssuedSession, error) {
	if refreshToken == "" {
		return nil, model.NewInvalidTokenError()
	}

	oldHash := hashToken(refreshToken)
	session, err := s.sessionRepo.FindByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewInvalidTokenError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	newRefresh, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now()
	ok, err := s.sessionRepo.Rotate(ctx, session.ID, oldHash, hashToken(newRefresh), s.sessionExpiry(now))
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if !ok {
		// 同じリフレッシュトークンで並行に更新された
		return nil, model.NewInvalidTokenError()
	}

	accessToken, expiresAt, err := s.tokens.Issue(user.ID, session.ID, user.Email, now)
	if err != nil {
		return nil, err
	}

	return &model.IssuedSession{
		SessionID:    session.ID,
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はユーザーIDから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// ValidateAccessToken はアクセストークンを検証し、セッションが有効であることを確認する。
// ログアウト済みのセッションのトークンは署名が正しくても拒否する。
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (*AccessClaims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.UserID != claims.UserID() {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}

// IsInvalidToken はエラーがトークン不正によるものかを判定する。
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidAccessToken)
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.IssuedSession, error) {
	sessionID, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	refreshToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now()
	if err := s.sessionRepo.Create(ctx, &model.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: hashToken(refreshToken),
		ExpiresAt:        s.sessionExpiry(now),
		CreatedAt:        now,
	}); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	accessToken, expiresAt, err := s.tokens.Issue(user.ID, sessionID, user.Email, now)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSessionCreated()
	return &model.IssuedSession{
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

func (s *Service) sessionExpiry(now time.Time) time.Time {
	return now.Add(time.Duration(s.config.SessionMaxAge) * time.Second)
}
