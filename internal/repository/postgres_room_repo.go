package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/roomfinder/internal/model"
)

// DefaultRoomListLimit は一覧取得件数の既定値。
const DefaultRoomListLimit = 100

// PostgresRoomRepo はPostgreSQLを使用した部屋リポジトリ。
type PostgresRoomRepo struct {
	db *sql.DB
}

// NewPostgresRoomRepo はPostgresRoomRepoを生成する。
func NewPostgresRoomRepo(db *sql.DB) *PostgresRoomRepo {
	return &PostgresRoomRepo{db: db}
}

const roomColumns = `id, owner_id, title, location, price, type, preference, contact, image_url, created_at, updated_at`

func scanRoom(row interface{ Scan(...any) error }) (*model.Room, error) {
	room := &model.Room{}
	var imageURL sql.NullString
	if err := row.Scan(
		&room.ID, &room.OwnerID, &room.Title, &room.Location, &room.Price,
		&room.Type, &room.Preference, &room.Contact, &imageURL,
		&room.CreatedAt, &room.UpdatedAt,
	); err != nil {
		return nil, err
	}
	room.ImageURL = imageURL.String
	return room, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// FindByID は指定IDの部屋を取得する。見つからない場合はnilを返す。
func (r *PostgresRoomRepo) FindByID(ctx context.Context, id string) (*model.Room, error) {
	room, err := scanRoom(r.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return room, nil
}

// List は条件に一致する部屋をcreated_at降順で返す。
// Type/Preferenceの"Any"は条件なしとして扱う。
func (r *PostgresRoomRepo) List(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error) {
	query, args := buildRoomListQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*model.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rooms: %w", err)
	}

	return rooms, nil
}

// buildRoomListQuery はフィルタ条件から一覧取得のSQLと引数を組み立てる。
func buildRoomListQuery(filter model.RoomFilter) (string, []any) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE 1 = 1`
	var args []any
	argIndex := 1

	if loc := strings.TrimSpace(filter.Location); loc != "" {
		query += fmt.Sprintf(" AND location ILIKE $%d", argIndex)
		args = append(args, "%"+escapeLike(loc)+"%")
		argIndex++
	}
	if filter.MinPrice != nil {
		query += fmt.Sprintf(" AND price >= $%d", argIndex)
		args = append(args, *filter.MinPrice)
		argIndex++
	}
	if filter.MaxPrice != nil {
		query += fmt.Sprintf(" AND price <= $%d", argIndex)
		args = append(args, *filter.MaxPrice)
		argIndex++
	}
	if filter.Type != "" && filter.Type != model.AnyFilterValue {
		query += fmt.Sprintf(" AND type = $%d", argIndex)
		args = append(args, filter.Type)
		argIndex++
	}
	if filter.Preference != "" && filter.Preference != model.AnyFilterValue {
		query += fmt.Sprintf(" AND preference = $%d", argIndex)
		args = append(args, filter.Preference)
		argIndex++
	}
	if filter.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argIndex)
		args = append(args, filter.OwnerID)
		argIndex++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultRoomListLimit
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	return query, args
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Create は部屋を作成する。
func (r *PostgresRoomRepo) Create(ctx context.Context, room *model.Room) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (id, owner_id, title, location, price, type, preference, contact, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		room.ID, room.OwnerID, room.Title, room.Location, room.Price,
		room.Type, room.Preference, room.Contact, nullableString(room.ImageURL),
		room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// Update は部屋を更新する。owner_idが一致しない場合はfalseを返す。
func (r *PostgresRoomRepo) Update(ctx context.Context, room *model.Room) (bool, error) {
	n, err := affectedRows(r.db.ExecContext(ctx,
		`UPDATE rooms
		 SET title = $3, location = $4, price = $5, type = $6, preference = $7,
		     contact = $8, image_url = $9, updated_at = $10
		 WHERE id = $1 AND owner_id = $2`,
		room.ID, room.OwnerID, room.Title, room.Location, room.Price,
		room.Type, room.Preference, room.Contact, nullableString(room.ImageURL),
		room.UpdatedAt,
	))
	if err != nil {
		return false, fmt.Errorf("failed to update room: %w", err)
	}
	return n == 1, nil
}

// Delete は部屋を削除する。owner_idが一致しない場合はfalseを返す。
func (r *PostgresRoomRepo) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	n, err := affectedRows(r.db.ExecContext(ctx,
		`DELETE FROM rooms WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	))
	if err != nil {
		return false, fmt.Errorf("failed to delete room: %w", err)
	}
	return n == 1, nil
}

// compile-time interface check
var _ RoomRepository = (*PostgresRoomRepo)(nil)
