// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/roomfinder/internal/model"
)

// AccountStore は退会処理が必要とするユーザー永続化の操作。
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	DeleteByID(ctx context.Context, id string) error
}

// SessionDeleter はセッションの一括削除インターフェース。
type SessionDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// WithdrawalRecorder は退会件数の記録先。
type WithdrawalRecorder interface {
	RecordAccountWithdrawn()
}

// Service はユーザー管理のサービス層。
type Service struct {
	accounts AccountStore
	sessions SessionDeleter
	recorder WithdrawalRecorder
	logger   *slog.Logger
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithRecorder は退会件数の記録先を設定する。
func WithRecorder(r WithdrawalRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger はロガーを設定する。未指定ならslog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(accounts AccountStore, sessions SessionDeleter, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Withdraw はユーザーの退会処理を実行する。
// 先にセッションを削除して以降のリフレッシュを止め、その後ユーザーを削除する。
// profiles、rooms、magic_linksはCASCADE削除される。
// 発行済みのアクセストークンはセッション参照で失効する。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	u, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}

	logger := s.logger.With(slog.String("user_id", userID))

	if s.sessions != nil {
		if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.accounts.DeleteByID(ctx, userID); err != nil {
		// セッションは既に消えているので、ユーザーは再ログインから退会をやり直せる
		logger.Error("ユーザーの削除に失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordAccountWithdrawn()
	}
	logger.Info("退会処理が完了しました", slog.Bool("had_signup_role", u.SignupRole.Valid()))
	return nil
}
