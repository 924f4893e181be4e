package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roomfinder/internal/middleware"
	"github.com/hitoshi/roomfinder/internal/model"
)

// withUserID はテスト用にコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withSession はユーザーIDとセッションIDを注入するヘルパー。
func withSession(r *http.Request, userID, sessionID string) *http.Request {
	ctx := middleware.ContextWithSessionID(middleware.ContextWithUserID(r.Context(), userID), sessionID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse はエラーレスポンスをデコードするヘルパー。
func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var result middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// assertErrorCode はステータスとエラーコードを検証するヘルパー。
func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d", w.Code, status)
	}
	if got := decodeErrorResponse(t, w).Code; got != code {
		t.Errorf("code = %q, want %q", got, code)
	}
}

// --- モック定義 ---

type mockAuthService struct {
	requestMagicLinkFn func(ctx context.Context, email string, role model.Role) error
	verifyMagicLinkFn  func(ctx context.Context, token string) (*model.IssuedSession, error)
	refreshFn          func(ctx context.Context, refreshToken string) (*model.IssuedSession, error)
	logoutFn           func(ctx context.Context, sessionID string) error
	getCurrentUserFn   func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockAuthService) RequestMagicLink(ctx context.Context, email string, role model.Role) error {
	if m.requestMagicLinkFn != nil {
		return m.requestMagicLinkFn(ctx, email, role)
	}
	return nil
}

func (m *mockAuthService) VerifyMagicLink(ctx context.Context, token string) (*model.IssuedSession, error) {
	if m.verifyMagicLinkFn != nil {
		return m.verifyMagicLinkFn(ctx, token)
	}
	return nil, model.NewInvalidTokenError()
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*model.IssuedSession, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, model.NewInvalidTokenError()
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

type mockProfileService struct {
	getRoleFn    func(ctx context.Context, userID string) (*model.RoleRecord, error)
	createRoleFn func(ctx context.Context, userID string, role model.Role, email string) (*model.RoleRecord, error)
	selectRoleFn func(ctx context.Context, userID string, role model.Role) (*model.RoleRecord, error)
}

func (m *mockProfileService) GetRole(ctx context.Context, userID string) (*model.RoleRecord, error) {
	if m.getRoleFn != nil {
		return m.getRoleFn(ctx, userID)
	}
	return nil, model.NewProfileNotFoundError(userID)
}

func (m *mockProfileService) CreateRole(ctx context.Context, userID string, role model.Role, email string) (*model.RoleRecord, error) {
	if m.createRoleFn != nil {
		return m.createRoleFn(ctx, userID, role, email)
	}
	return &model.RoleRecord{ID: userID, Role: role}, nil
}

func (m *mockProfileService) SelectRole(ctx context.Context, userID string, role model.Role) (*model.RoleRecord, error) {
	if m.selectRoleFn != nil {
		return m.selectRoleFn(ctx, userID, role)
	}
	return &model.RoleRecord{ID: userID, Role: role}, nil
}

type mockRoomService struct {
	listFn   func(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error)
	mineFn   func(ctx context.Context, ownerID string) ([]*model.Room, error)
	getFn    func(ctx context.Context, id string) (*model.Room, error)
	createFn func(ctx context.Context, ownerID string, input model.RoomInput) (*model.Room, error)
	updateFn func(ctx context.Context, ownerID, id string, input model.RoomInput) (*model.Room, error)
	deleteFn func(ctx context.Context, ownerID, id string) error
}

func (m *mockRoomService) List(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockRoomService) Mine(ctx context.Context, ownerID string) ([]*model.Room, error) {
	if m.mineFn != nil {
		return m.mineFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockRoomService) Get(ctx context.Context, id string) (*model.Room, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewRoomNotFoundError(id)
}

func (m *mockRoomService) Create(ctx context.Context, ownerID string, input model.RoomInput) (*model.Room, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, input)
	}
	return &model.Room{ID: "room-1", OwnerID: ownerID, Title: input.Title}, nil
}

func (m *mockRoomService) Update(ctx context.Context, ownerID, id string, input model.RoomInput) (*model.Room, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, ownerID, id, input)
	}
	return &model.Room{ID: id, OwnerID: ownerID, Title: input.Title}, nil
}

func (m *mockRoomService) Delete(ctx context.Context, ownerID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, id)
	}
	return nil
}
