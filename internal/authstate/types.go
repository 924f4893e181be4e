// Package authstate は「いま誰がどのロールでサインインしているか」を管理する。
//
// Store は IdentityProvider のセッション変更イベントを購読し、
// イベントごとに Resolver でロールを解決して (loading, user, role) を公開する。
// 公開された状態は guard.Evaluate の入力になる。
package authstate

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/roomfinder/internal/model"
)

var (
	// ErrNotFound はロールレコードが存在しないことを表す。プロビジョニングの契機になる。
	ErrNotFound = errors.New("role record not found")
	// ErrEmptyUserID は空のユーザーIDでロール解決が要求された場合のエラー。
	ErrEmptyUserID = errors.New("user id is empty")
	// ErrNoUser はサインインしていない状態でユーザー操作が要求された場合のエラー。
	ErrNoUser = errors.New("no signed-in user")
	// ErrClosed はClose後のStoreに対する操作のエラー。
	ErrClosed = errors.New("auth state store is closed")
	// ErrAlreadyStarted はStartが2回呼ばれた場合のエラー。
	ErrAlreadyStarted = errors.New("auth state store is already started")
)

// Event はIdentityProviderが通知するセッション変更イベントの種類。
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// UserIdentity はサインイン中のユーザー。
// 受信後は不変で、新しいイベントが来たら丸ごと置き換える。
type UserIdentity struct {
	ID             string               `json:"id"`
	Email          string               `json:"email"`
	SignupMetadata model.SignupMetadata `json:"signup_metadata"`
}

// Session はIdentityProviderが発行した認証セッション。
type Session struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresAt    time.Time     `json:"expires_at"`
	User         *UserIdentity `json:"user"`
}

// Expired は時刻tの時点でアクセストークンの有効期限が切れているかを返す。
func (s *Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && !t.Before(s.ExpiresAt)
}

// IdentityProvider は認証基盤とのインターフェース。
type IdentityProvider interface {
	// GetCurrentSession は保存済みのセッションを返す。存在しない場合は nil, nil。
	GetCurrentSession(ctx context.Context) (*Session, error)
	// Subscribe はセッション変更の通知先を登録し、登録解除関数を返す。
	Subscribe(onChange func(Event, *Session)) (unsubscribe func())
	// SignOut はサインアウトする。完了すると EventSignedOut が通知される。
	SignOut(ctx context.Context) error
}

// ProfileStore はロールレコードの永続化先とのインターフェース。
type ProfileStore interface {
	// GetRole はロールレコードを取得する。存在しない場合は ErrNotFound を返す。
	GetRole(ctx context.Context, userID string) (*model.RoleRecord, error)
	// CreateRole はロールレコードを作成する。既に存在する場合は既存レコードを返す。
	// 同時に作成しても1件に収束する。
	CreateRole(ctx context.Context, userID string, role model.Role, email string) (*model.RoleRecord, error)
	// InsertRole はロール自己選択で使用する。既に存在する場合は失敗することがある。
	InsertRole(ctx context.Context, userID string, role model.Role) (*model.RoleRecord, error)
}
