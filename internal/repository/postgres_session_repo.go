package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/roomfinder/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// 期限切れの行は検索結果に含めない。物理削除はcleanupワーカーが行う。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

const sessionColumns = `id, user_id, refresh_token_hash, expires_at, created_at`

// findLive はcolumn = valueに一致する期限内のセッションを1件返す。
// columnは呼び出し側の定数のみを渡すこと。
func (r *PostgresSessionRepo) findLive(ctx context.Context, column, value string) (*model.Session, error) {
	s := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE `+column+` = $1 AND expires_at > now()`,
		value,
	).Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// affectedRows はExecの結果から更新行数を取り出す。
func affectedRows(result sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.UserID, session.RefreshTokenHash, session.ExpiresAt, session.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID はアクセストークンのsidから期限内のセッションを引く。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s, err := r.findLive(ctx, "id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return s, nil
}

// FindByRefreshTokenHash はリフレッシュ要求から期限内のセッションを引く。
func (r *PostgresSessionRepo) FindByRefreshTokenHash(ctx context.Context, hash string) (*model.Session, error) {
	s, err := r.findLive(ctx, "refresh_token_hash", hash)
	if err != nil {
		return nil, fmt.Errorf("failed to find session by refresh token: %w", err)
	}
	return s, nil
}

// Rotate はリフレッシュトークンを差し替える。
// oldHashを条件に含めるため、同じリフレッシュトークンで並行に更新しても成功するのは1回だけ。
func (r *PostgresSessionRepo) Rotate(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	n, err := affectedRows(r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET refresh_token_hash = $3, expires_at = $4
		 WHERE id = $1 AND refresh_token_hash = $2 AND expires_at > now()`,
		id, oldHash, newHash, expiresAt,
	))
	if err != nil {
		return false, fmt.Errorf("failed to rotate session: %w", err)
	}
	return n == 1, nil
}

// DeleteByID はサインアウトしたセッションを削除する。存在しなくてもエラーにしない。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は退会ユーザーの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired はbeforeより前に期限切れとなったセッションを削除し、件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := affectedRows(r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
