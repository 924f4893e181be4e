// Package profile はユーザーごとのロールレコードを管理する。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/roomfinder/internal/metrics"
	"github.com/hitoshi/roomfinder/internal/model"
	"github.com/hitoshi/roomfinder/internal/repository"
)

// UserFinder はユーザー取得のインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Service はロールレコードのビジネスロジックを提供する。
type Service struct {
	users    UserFinder
	profiles repository.ProfileRepository
	policy   model.RoleSelectionPolicy
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	users UserFinder,
	profiles repository.ProfileRepository,
	policy model.RoleSelectionPolicy,
	collector metrics.MetricsCollector,
) *Service {
	if policy == "" {
		policy = model.RoleSelectionInsert
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		users:    users,
		profiles: profiles,
		policy:   policy,
		metrics:  collector,
		now:      time.Now,
	}
}

// GetRole はユーザーのロールレコードを返す。未作成の場合はPROFILE_NOT_FOUNDを返す。
func (s *Service) GetRole(ctx context.Context, userID string) (*model.RoleRecord, error) {
	rec, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if rec == nil {
		return nil, model.NewProfileNotFoundError(userID)
	}
	return rec, nil
}

// CreateRole はサインアップ時のロールからロールレコードを自動作成する。
// 指定ロールはサインアップ時のロールと一致しなければならない。
// 既にレコードがある場合は変更せずに既存のレコードを返す。
func (s *Service) CreateRole(ctx context.Context, userID string, role model.Role, email string) (*model.RoleRecord, error) {
	if !role.Valid() {
		return nil, model.NewInvalidRoleError(string(role))
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if user.SignupRole != role {
		return nil, model.NewRoleMismatchError(string(user.SignupRole), string(role))
	}

	if email == "" {
		email = user.Email
	}

	now := s.now()
	rec, inserted, err := s.profiles.CreateIfNotExists(ctx, &model.RoleRecord{
		ID:        userID,
		Role:      role,
		Email:     &email,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision role: %w", err)
	}

	if !inserted {
		slog.Debug("role already provisioned",
			slog.String("user_id", userID),
			slog.String("role", string(rec.Role)),
		)
		return rec, nil
	}

	s.metrics.RecordRoleProvisioned(string(rec.Role))
	slog.Info("role provisioned",
		slog.String("user_id", userID),
		slog.String("role", string(rec.Role)),
	)
	return rec, nil
}

// SelectRole はユーザー自身がロールを選択する。
// insertポリシーでは既存レコードと異なるロールを選ぶとPROFILE_EXISTSを返す（同じロールなら成功）。
// overwriteポリシーでは既存レコードのロールを上書きする。
func (s *Service) SelectRole(ctx context.Context, userID string, role model.Role) (*model.RoleRecord, error) {
	if !role.Valid() {
		return nil, model.NewInvalidRoleError(string(role))
	}

	now := s.now()
	record := &model.RoleRecord{
		ID:        userID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var rec *model.RoleRecord
	var err error
	switch s.policy {
	case model.RoleSelectionOverwrite:
		rec, err = s.profiles.Upsert(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("failed to select role: %w", err)
		}
	default:
		rec, err = s.insertRole(ctx, record)
		if err != nil {
			return nil, err
		}
	}

	s.metrics.RecordRoleSelected(string(rec.Role))
	slog.Info("role selected",
		slog.String("user_id", userID),
		slog.String("role", string(rec.Role)),
		slog.String("policy", string(s.policy)),
	)
	return rec, nil
}

func (s *Service) insertRole(ctx context.Context, record *model.RoleRecord) (*model.RoleRecord, error) {
	rec, err := s.profiles.Insert(ctx, record)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("failed to select role: %w", err)
	}

	existing, err := s.profiles.FindByID(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if existing != nil && existing.Role == record.Role {
		return existing, nil
	}
	return nil, model.NewProfileExistsError()
}
