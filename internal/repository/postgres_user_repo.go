package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/roomfinder/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, signup_role, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var signupRole sql.NullString
	if err := row.Scan(&user.ID, &user.Email, &signupRole, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.SignupRole = model.Role(signupRole.String)
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// FindOrCreate はメールアドレスが未登録ならユーザーを作成する。
// 同じメールアドレスで同時にリクエストされた場合もON CONFLICTで1件に収束する。
func (r *PostgresUserRepo) FindOrCreate(ctx context.Context, user *model.User) (*model.User, bool, error) {
	var signupRole sql.NullString
	if user.SignupRole.Valid() {
		signupRole = sql.NullString{String: string(user.SignupRole), Valid: true}
	}

	created, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, signup_role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING `+userColumns,
		user.ID, user.Email, signupRole, user.CreatedAt, user.UpdatedAt,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert user: %w", err)
	}

	// 既に存在する場合はDO NOTHINGで行が返らない
	existing, err := r.FindByEmail(ctx, user.Email)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("user disappeared after conflict: %s", user.Email)
	}
	return existing, false, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するsessions、magic_links、profiles、roomsはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	n, err := affectedRows(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id))
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
