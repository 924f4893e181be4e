// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// SignupRole はマジックリンク初回リクエスト時に指定されたロールで、以後変更されない。
type User struct {
	ID         string
	Email      string
	SignupRole Role
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SignupMetadata はサインアップ時に付与されたメタデータを返す。
func (u *User) SignupMetadata() SignupMetadata {
	return SignupMetadata{Role: u.SignupRole, Email: u.Email}
}

// SignupMetadata はサインアップ時のロールヒントとメールアドレス。
type SignupMetadata struct {
	Role  Role   `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
}

// MagicLink はワンタイムのログインリンクを表す。
// トークン本体は保存せず、SHA-256ハッシュのみを保持する。
type MagicLink struct {
	TokenHash  string
	UserID     string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Session はユーザーのログインセッションを表す。
// アクセストークン（JWT）の sid クレームと ID が対応する。
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// IssuedSession は発行直後のセッション情報。
// 平文のトークンはこの構造体でのみクライアントに渡される。
type IssuedSession struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *User
}
