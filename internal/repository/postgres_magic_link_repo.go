package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/roomfinder/internal/model"
)

// PostgresMagicLinkRepo はPostgreSQLを使用したマジックリンクリポジトリ。
type PostgresMagicLinkRepo struct {
	db *sql.DB
}

// NewPostgresMagicLinkRepo はPostgresMagicLinkRepoを生成する。
func NewPostgresMagicLinkRepo(db *sql.DB) *PostgresMagicLinkRepo {
	return &PostgresMagicLinkRepo{db: db}
}

// Create はマジックリンクを保存する。
func (r *PostgresMagicLinkRepo) Create(ctx context.Context, link *model.MagicLink) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO magic_links (token_hash, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		link.TokenHash, link.UserID, link.ExpiresAt, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create magic link: %w", err)
	}
	return nil
}

// Consume は未使用かつ期限内のリンクを使用済みにして返す。
// 1文のUPDATEで判定と更新を行うため、同じトークンを2回消費することはない。
func (r *PostgresMagicLinkRepo) Consume(ctx context.Context, tokenHash string) (*model.MagicLink, error) {
	link := &model.MagicLink{}
	var consumedAt time.Time
	err := r.db.QueryRowContext(ctx,
		`UPDATE magic_links
		 SET consumed_at = now()
		 WHERE token_hash = $1 AND consumed_at IS NULL AND expires_at > now()
		 RETURNING token_hash, user_id, expires_at, consumed_at, created_at`,
		tokenHash,
	).Scan(&link.TokenHash, &link.UserID, &link.ExpiresAt, &consumedAt, &link.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume magic link: %w", err)
	}

	link.ConsumedAt = &consumedAt
	return link, nil
}

// DeleteExpired は指定時刻より前に期限切れとなったリンクを削除する。
func (r *PostgresMagicLinkRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := affectedRows(r.db.ExecContext(ctx, `DELETE FROM magic_links WHERE expires_at < $1`, before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired magic links: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ MagicLinkRepository = (*PostgresMagicLinkRepo)(nil)
