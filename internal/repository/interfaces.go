// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/roomfinder/internal/model"
)

// ErrDuplicate は一意制約違反で挿入できなかったことを示す。
var ErrDuplicate = errors.New("duplicate record")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindOrCreate はメールアドレスが未登録ならユーザーを作成する。
	// 既に存在する場合は既存ユーザーを返し、signup_roleは変更しない。
	// 2番目の戻り値は新規作成した場合にtrue。
	FindOrCreate(ctx context.Context, user *model.User) (*model.User, bool, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、magic_links、profiles、roomsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// MagicLinkRepository はマジックリンクの永続化インターフェース。
type MagicLinkRepository interface {
	// Create はマジックリンクを保存する。
	Create(ctx context.Context, link *model.MagicLink) error

	// Consume は未使用かつ期限内のリンクを使用済みにして返す。
	// 既に使用済み、期限切れ、存在しない場合はnilを返す。
	Consume(ctx context.Context, tokenHash string) (*model.MagicLink, error)

	// DeleteExpired は指定時刻より前に期限切れとなったリンクを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// FindByRefreshTokenHash はリフレッシュトークンのハッシュでセッションを取得する。期限切れの場合はnilを返す。
	FindByRefreshTokenHash(ctx context.Context, hash string) (*model.Session, error)
	// Rotate はリフレッシュトークンを差し替える。oldHashが一致しない場合はfalseを返す。
	Rotate(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (bool, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は指定時刻より前に期限切れとなったセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ProfileRepository はロールレコード（profiles）の永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定ユーザーのロールレコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.RoleRecord, error)

	// CreateIfNotExists はロールレコードを作成する。
	// 既にレコードがある場合は変更せず、保存済みのレコードとinserted=falseを返す。
	CreateIfNotExists(ctx context.Context, record *model.RoleRecord) (rec *model.RoleRecord, inserted bool, err error)

	// Insert はロールレコードを作成する。既にレコードがある場合はErrDuplicateを返す。
	Insert(ctx context.Context, record *model.RoleRecord) (*model.RoleRecord, error)

	// Upsert はロールレコードを作成、または既存レコードのロールを上書きする。
	Upsert(ctx context.Context, record *model.RoleRecord) (*model.RoleRecord, error)
}

// RoomRepository は部屋データの永続化インターフェース。
type RoomRepository interface {
	// FindByID は指定IDの部屋を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Room, error)

	// List は条件に一致する部屋を新しい順に返す。
	List(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error)

	// Create は部屋を作成する。
	Create(ctx context.Context, room *model.Room) error

	// Update は部屋を更新する。owner_idが一致しない場合はfalseを返す。
	Update(ctx context.Context, room *model.Room) (bool, error)

	// Delete は部屋を削除する。owner_idが一致しない場合はfalseを返す。
	Delete(ctx context.Context, id, ownerID string) (bool, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
