// Package room は部屋掲載のドメインロジックを提供する。
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/roomfinder/internal/model"
	"github.com/hitoshi/roomfinder/internal/repository"
	"github.com/hitoshi/roomfinder/internal/security"
)

// maxTextLength はテキスト項目の最大文字数。
const maxTextLength = 200

// URLValidator は画像URLの静的検証のインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Service は部屋掲載のサービス層。
// 入力検証 → HTML除去 → 画像URL検証 → 保存の順に処理する。
type Service struct {
	repo      repository.RoomRepository
	sanitizer security.TextSanitizer
	urls      URLValidator
	prober    ImageProber
	now       func() time.Time
}

// NewService はServiceを生成する。proberがnilの場合は画像の到達確認を行わない。
func NewService(
	repo repository.RoomRepository,
	sanitizer security.TextSanitizer,
	urls URLValidator,
	prober ImageProber,
) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		urls:      urls,
		prober:    prober,
		now:       time.Now,
	}
}

// List は条件に一致する部屋を新しい順に返す。
func (s *Service) List(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error) {
	rooms, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("部屋一覧の取得に失敗しました: %w", err)
	}
	return rooms, nil
}

// Mine はオーナー自身が掲載した部屋を返す。
func (s *Service) Mine(ctx context.Context, ownerID string) ([]*model.Room, error) {
	return s.List(ctx, model.RoomFilter{OwnerID: ownerID})
}

// Get は部屋を1件取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Room, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewRoomNotFoundError(id)
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("部屋の取得に失敗しました: %w", err)
	}
	if room == nil {
		return nil, model.NewRoomNotFoundError(id)
	}
	return room, nil
}

// Create は部屋を掲載する。
func (s *Service) Create(ctx context.Context, ownerID string, input model.RoomInput) (*model.Room, error) {
	clean, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	room := &model.Room{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Title:      clean.Title,
		Location:   clean.Location,
		Price:      clean.Price,
		Type:       clean.Type,
		Preference: clean.Preference,
		Contact:    clean.Contact,
		ImageURL:   clean.ImageURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("部屋の保存に失敗しました: %w", err)
	}

	slog.Info("room created",
		slog.String("room_id", room.ID),
		slog.String("owner_id", ownerID),
	)
	return room, nil
}

// Update は部屋を更新する。他のオーナーの部屋はROOM_NOT_FOUNDとして扱う。
func (s *Service) Update(ctx context.Context, ownerID, id string, input model.RoomInput) (*model.Room, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, model.NewRoomNotFoundError(id)
	}

	clean, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	room := *existing
	room.Title = clean.Title
	room.Location = clean.Location
	room.Price = clean.Price
	room.Type = clean.Type
	room.Preference = clean.Preference
	room.Contact = clean.Contact
	room.ImageURL = clean.ImageURL
	room.UpdatedAt = s.now()

	ok, err := s.repo.Update(ctx, &room)
	if err != nil {
		return nil, fmt.Errorf("部屋の更新に失敗しました: %w", err)
	}
	if !ok {
		// 取得後に削除された
		return nil, model.NewRoomNotFoundError(id)
	}
	return &room, nil
}

// Delete は部屋を削除する。他のオーナーの部屋はROOM_NOT_FOUNDとして扱う。
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewRoomNotFoundError(id)
	}

	ok, err := s.repo.Delete(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("部屋の削除に失敗しました: %w", err)
	}
	if !ok {
		return model.NewRoomNotFoundError(id)
	}

	slog.Info("room deleted",
		slog.String("room_id", id),
		slog.String("owner_id", ownerID),
	)
	return nil
}

// prepare は入力を検証し、HTMLを除去した値を返す。
func (s *Service) prepare(ctx context.Context, input model.RoomInput) (model.RoomInput, error) {
	clean := model.RoomInput{
		Title:      s.sanitizer.StripHTML(input.Title),
		Location:   s.sanitizer.StripHTML(input.Location),
		Price:      input.Price,
		Type:       s.sanitizer.StripHTML(input.Type),
		Preference: s.sanitizer.StripHTML(input.Preference),
		Contact:    s.sanitizer.StripHTML(input.Contact),
		ImageURL:   strings.TrimSpace(input.ImageURL),
	}

	required := []struct {
		name  string
		value string
	}{
		{"title", clean.Title},
		{"location", clean.Location},
		{"type", clean.Type},
		{"preference", clean.Preference},
		{"contact", clean.Contact},
	}
	for _, f := range required {
		if f.value == "" {
			return clean, model.NewInvalidRoomError(f.name + " is required")
		}
		if utf8.RuneCountInString(f.value) > maxTextLength {
			return clean, model.NewInvalidRoomError(fmt.Sprintf("%s must be at most %d characters", f.name, maxTextLength))
		}
	}
	if clean.Price < 0 {
		return clean, model.NewInvalidRoomError("price must not be negative")
	}

	if clean.ImageURL != "" {
		if err := s.checkImageURL(ctx, clean.ImageURL); err != nil {
			return clean, err
		}
	}
	return clean, nil
}

// checkImageURL は画像URLを検証し、設定されていれば到達確認を行う。
func (s *Service) checkImageURL(ctx context.Context, imageURL string) error {
	if err := s.urls.ValidateURL(imageURL); err != nil {
		if errors.Is(err, security.ErrBlockedDestination) {
			slog.Warn("room image blocked",
				slog.String("url", imageURL),
				slog.String("error", err.Error()),
			)
			return model.NewSSRFBlockedError()
		}
		return model.NewInvalidURLError(err.Error())
	}

	if s.prober == nil {
		return nil
	}
	if err := s.prober.ProbeImage(ctx, imageURL); err != nil {
		return model.NewImageUnreachableError(err.Error())
	}
	return nil
}
