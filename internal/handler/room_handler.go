package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roomfinder/internal/middleware"
	"github.com/hitoshi/roomfinder/internal/model"
	"github.com/hitoshi/roomfinder/internal/room"
)

// RoomServiceInterface は部屋ハンドラーが必要とするサービスインターフェース。
type RoomServiceInterface interface {
	List(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error)
	Mine(ctx context.Context, ownerID string) ([]*model.Room, error)
	Get(ctx context.Context, id string) (*model.Room, error)
	Create(ctx context.Context, ownerID string, input model.RoomInput) (*model.Room, error)
	Update(ctx context.Context, ownerID, id string, input model.RoomInput) (*model.Room, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// RoomHandler は部屋掲載のHTTPハンドラー。
type RoomHandler struct {
	service RoomServiceInterface
}

// NewRoomHandler はRoomHandlerを生成する。
func NewRoomHandler(service RoomServiceInterface) *RoomHandler {
	return &RoomHandler{service: service}
}

// roomRequest は部屋の作成・更新リクエストのボディ。
type roomRequest struct {
	Title      string `json:"title"`
	Location   string `json:"location"`
	Price      int    `json:"price"`
	Type       string `json:"type"`
	Preference string `json:"preference"`
	Contact    string `json:"contact"`
	ImageURL   string `json:"image_url,omitempty"`
}

func (req roomRequest) toInput() model.RoomInput {
	return model.RoomInput{
		Title:      req.Title,
		Location:   req.Location,
		Price:      req.Price,
		Type:       req.Type,
		Preference: req.Preference,
		Contact:    req.Contact,
		ImageURL:   req.ImageURL,
	}
}

// roomResponse は部屋情報のAPIレスポンス。
type roomResponse struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	Location   string    `json:"location"`
	Price      int       `json:"price"`
	Type       string    `json:"type"`
	Preference string    `json:"preference"`
	Contact    string    `json:"contact"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toRoomResponse(rm *model.Room) roomResponse {
	return roomResponse{
		ID:         rm.ID,
		OwnerID:    rm.OwnerID,
		Title:      rm.Title,
		Location:   rm.Location,
		Price:      rm.Price,
		Type:       rm.Type,
		Preference: rm.Preference,
		Contact:    rm.Contact,
		ImageURL:   rm.ImageURL,
		CreatedAt:  rm.CreatedAt,
		UpdatedAt:  rm.UpdatedAt,
	}
}

func toRoomResponses(rooms []*model.Room) []roomResponse {
	results := make([]roomResponse, len(rooms))
	for i, rm := range rooms {
		results[i] = toRoomResponse(rm)
	}
	return results
}

// List は検索条件に一致する部屋を新しい順に返す。
// GET /api/rooms?location=&min_price=&max_price=&type=&preference=&owner_id=
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := room.ParseFilter(r.URL.Query())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	rooms, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoomResponses(rooms))
}

// Mine は呼び出し元オーナーの部屋を返す。
// GET /api/rooms/mine
func (h *RoomHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	rooms, err := h.service.Mine(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoomResponses(rooms))
}

// Get は部屋を1件返す。
// GET /api/rooms/{id}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	rm, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoomResponse(rm))
}

// Create は部屋を掲載する。
// POST /api/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req roomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rm, err := h.service.Create(r.Context(), userID, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRoomResponse(rm))
}

// Update は部屋を更新する。
// PUT /api/rooms/{id}
func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req roomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rm, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoomResponse(rm))
}

// Delete は部屋を削除する。
// DELETE /api/rooms/{id}
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
