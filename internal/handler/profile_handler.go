package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roomfinder/internal/middleware"
	"github.com/hitoshi/roomfinder/internal/model"
)

// ProfileServiceInterface はロールレコードハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	GetRole(ctx context.Context, userID string) (*model.RoleRecord, error)
	CreateRole(ctx context.Context, userID string, role model.Role, email string) (*model.RoleRecord, error)
	SelectRole(ctx context.Context, userID string, role model.Role) (*model.RoleRecord, error)
}

// ProfileHandler はロールレコードのHTTPハンドラー。
// {id}は呼び出し元ユーザーと一致しなければならない。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

type createRoleRequest struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
}

type selectRoleRequest struct {
	Role string `json:"role"`
}

// roleRecordResponse はロールレコードのAPIレスポンス。
type roleRecordResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRoleRecordResponse(rec *model.RoleRecord) roleRecordResponse {
	return roleRecordResponse{
		ID:        rec.ID,
		Role:      string(rec.Role),
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// callerOwnsProfile は{id}が呼び出し元と一致するかを検証する。
// 一致しない場合はエラーレスポンスを書き込みfalseを返す。
func callerOwnsProfile(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return "", false
	}
	if chi.URLParam(r, "id") != userID {
		middleware.WriteAPIError(w, model.NewAccessDeniedError())
		return "", false
	}
	return userID, true
}

// Get はロールレコードを返す。
// GET /api/profiles/{id}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerOwnsProfile(w, r)
	if !ok {
		return
	}

	rec, err := h.service.GetRole(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoleRecordResponse(rec))
}

// Create はサインアップ時のロールからロールレコードを作成する。既存のレコードは変更しない。
// PUT /api/profiles/{id}
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerOwnsProfile(w, r)
	if !ok {
		return
	}

	var req createRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.service.CreateRole(r.Context(), userID, model.Role(req.Role), req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoleRecordResponse(rec))
}

// Select はユーザー自身によるロール選択を処理する。
// POST /api/profiles/{id}
func (h *ProfileHandler) Select(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerOwnsProfile(w, r)
	if !ok {
		return
	}

	var req selectRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.service.SelectRole(r.Context(), userID, model.Role(req.Role))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoleRecordResponse(rec))
}
