package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/roomfinder/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresProfileRepo はPostgreSQLを使用したロールレコードリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

const profileColumns = `id, role, email, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*model.RoleRecord, error) {
	rec := &model.RoleRecord{}
	var role string
	var email sql.NullString
	if err := row.Scan(&rec.ID, &role, &email, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Role = model.Role(role)
	if email.Valid {
		rec.Email = &email.String
	}
	return rec, nil
}

func nullableEmail(email *string) sql.NullString {
	if email == nil || *email == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *email, Valid: true}
}

// FindByID は指定ユーザーのロールレコードを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.RoleRecord, error) {
	rec, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return rec, nil
}

// CreateIfNotExists はロールレコードを作成し、実際に挿入したかを返す。
// DO UPDATEで自分自身を代入するのは、競合時にも既存行をRETURNINGで受け取るため。
// 挿入した行はxmaxが0になる。同時に作成された場合は先に保存された行に収束する。
func (r *PostgresProfileRepo) CreateIfNotExists(ctx context.Context, record *model.RoleRecord) (*model.RoleRecord, bool, error) {
	rec := &model.RoleRecord{}
	var role string
	var email sql.NullString
	var inserted bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (id, role, email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET id = profiles.id
		 RETURNING `+profileColumns+`, (xmax = 0) AS inserted`,
		record.ID, string(record.Role), nullableEmail(record.Email), record.CreatedAt, record.UpdatedAt,
	).Scan(&rec.ID, &role, &email, &rec.CreatedAt, &rec.UpdatedAt, &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}
	rec.Role = model.Role(role)
	if email.Valid {
		rec.Email = &email.String
	}
	return rec, inserted, nil
}

// Insert はロールレコードを作成する。既にレコードがある場合はErrDuplicateを返す。
func (r *PostgresProfileRepo) Insert(ctx context.Context, record *model.RoleRecord) (*model.RoleRecord, error) {
	rec, err := scanProfile(r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (id, role, email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+profileColumns,
		record.ID, string(record.Role), nullableEmail(record.Email), record.CreatedAt, record.UpdatedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}
	return rec, nil
}

// Upsert はロールレコードを作成、または既存レコードのロールを上書きする。
// emailは新しい値が空の場合は既存の値を維持する。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, record *model.RoleRecord) (*model.RoleRecord, error) {
	rec, err := scanProfile(r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (id, role, email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET role = EXCLUDED.role,
		     email = COALESCE(EXCLUDED.email, profiles.email),
		     updated_at = EXCLUDED.updated_at
		 RETURNING `+profileColumns,
		record.ID, string(record.Role), nullableEmail(record.Email), record.CreatedAt, record.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return rec, nil
}

// isUniqueViolation はエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
