package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/roomfinder/internal/model"
)

func TestPostgresProfileRepo_ImplementsInterface(t *testing.T) {
	var _ ProfileRepository = (*PostgresProfileRepo)(nil)
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "一意制約違反", err: &pq.Error{Code: "23505"}, want: true},
		{name: "ラップされた一意制約違反", err: fmt.Errorf("wrap: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "外部キー違反", err: &pq.Error{Code: "23503"}, want: false},
		{name: "pq以外のエラー", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newRecord(id string, role model.Role, email string) *model.RoleRecord {
	now := time.Now()
	rec := &model.RoleRecord{ID: id, Role: role, CreatedAt: now, UpdatedAt: now}
	if email != "" {
		rec.Email = &email
	}
	return rec
}

func TestPostgresProfileRepo_FindByID_NotFound_ReturnsNil(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "none@example.com", model.RoleNone)

	rec, err := NewPostgresProfileRepo(db).FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil, got %+v", rec)
	}
}

func TestPostgresProfileRepo_CreateIfNotExists_KeepsExisting(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "keep@example.com", model.RoleOwner)
	repo := NewPostgresProfileRepo(db)
	ctx := context.Background()

	first, inserted, err := repo.CreateIfNotExists(ctx, newRecord(user.ID, model.RoleOwner, "keep@example.com"))
	if err != nil {
		t.Fatalf("CreateIfNotExists returned error: %v", err)
	}
	if !inserted {
		t.Error("first CreateIfNotExists should report inserted")
	}
	if first.Role != model.RoleOwner {
		t.Errorf("Role = %q, want %q", first.Role, model.RoleOwner)
	}

	second, inserted, err := repo.CreateIfNotExists(ctx, newRecord(user.ID, model.RoleFinder, ""))
	if err != nil {
		t.Fatalf("CreateIfNotExists returned error: %v", err)
	}
	if inserted {
		t.Error("second CreateIfNotExists should not report inserted")
	}
	if second.Role != model.RoleOwner {
		t.Errorf("Role = %q, want existing %q", second.Role, model.RoleOwner)
	}
	if second.Email == nil || *second.Email != "keep@example.com" {
		t.Errorf("Email = %v, want keep@example.com", second.Email)
	}
}

func TestPostgresProfileRepo_CreateIfNotExists_ConcurrentCreatorsConverge(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "race@example.com", model.RoleOwner)
	repo := NewPostgresProfileRepo(db)

	const n = 8
	results := make([]*model.RoleRecord, n)
	inserted := make([]bool, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], inserted[i], errs[i] = repo.CreateIfNotExists(context.Background(), newRecord(user.ID, model.RoleOwner, ""))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: CreateIfNotExists returned error: %v", i, errs[i])
		}
		if !results[i].CreatedAt.Equal(results[0].CreatedAt) {
			t.Errorf("goroutine %d got a different record", i)
		}
	}

	if got := countTrue(inserted); got != 1 {
		t.Errorf("inserted reported %d times, want 1", got)
	}

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM profiles WHERE id = $1`, user.ID).Scan(&count); err != nil {
		t.Fatalf("件数取得に失敗: %v", err)
	}
	if count != 1 {
		t.Errorf("profiles count = %d, want 1", count)
	}
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func TestPostgresProfileRepo_Insert_Duplicate(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "dup@example.com", model.RoleNone)
	repo := NewPostgresProfileRepo(db)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, newRecord(user.ID, model.RoleFinder, "")); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	_, err := repo.Insert(ctx, newRecord(user.ID, model.RoleOwner, ""))
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestPostgresProfileRepo_Upsert_OverwritesRole(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "over@example.com", model.RoleNone)
	repo := NewPostgresProfileRepo(db)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, newRecord(user.ID, model.RoleFinder, "over@example.com")); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	rec, err := repo.Upsert(ctx, newRecord(user.ID, model.RoleOwner, ""))
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if rec.Role != model.RoleOwner {
		t.Errorf("Role = %q, want %q", rec.Role, model.RoleOwner)
	}
	if rec.Email == nil || *rec.Email != "over@example.com" {
		t.Errorf("Email = %v, want existing email kept", rec.Email)
	}
}
