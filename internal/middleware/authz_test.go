package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/roomfinder/internal/guard"
	"github.com/hitoshi/roomfinder/internal/model"
)

type mockRoleLookup struct {
	findByIDFn func(ctx context.Context, id string) (*model.RoleRecord, error)
}

func (m *mockRoleLookup) FindByID(ctx context.Context, id string) (*model.RoleRecord, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func roleLookup(role model.Role) *mockRoleLookup {
	return &mockRoleLookup{
		findByIDFn: func(ctx context.Context, id string) (*model.RoleRecord, error) {
			if role == model.RoleNone {
				return nil, nil
			}
			return &model.RoleRecord{ID: id, Role: role}, nil
		},
	}
}

var ownerRoute = guard.Route{Path: "/add-room", View: guard.ViewAddRoom, RequiredRoles: []model.Role{model.RoleOwner}}

// TestAuthzMiddleware はガードの判定結果がHTTPステータスに対応することをテストする。
func TestAuthzMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		lookup     *mockRoleLookup
		route      guard.Route
		wantStatus int
		wantCode   string
	}{
		{"owner allowed", "user-1", roleLookup(model.RoleOwner), ownerRoute, http.StatusOK, ""},
		{"finder denied", "user-1", roleLookup(model.RoleFinder), ownerRoute, http.StatusForbidden, model.ErrCodeAccessDenied},
		{"no role", "user-1", roleLookup(model.RoleNone), ownerRoute, http.StatusForbidden, model.ErrCodeRoleRequired},
		{"unknown stored role", "user-1", roleLookup(model.Role("admin")), ownerRoute, http.StatusForbidden, model.ErrCodeRoleRequired},
		{"anonymous", "", roleLookup(model.RoleOwner), ownerRoute, http.StatusUnauthorized, model.ErrCodeInvalidToken},
		{"any role route", "user-1", roleLookup(model.RoleFinder), guard.Route{Path: "/rooms/mine"}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthzMiddleware(tt.lookup, tt.route)(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/api/rooms", nil)
			if tt.userID != "" {
				req = req.WithContext(ContextWithUserID(req.Context(), tt.userID))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantCode == "" {
				return
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

// TestAuthzMiddleware_LookupError はロール取得失敗時に500を返すことをテストする。
func TestAuthzMiddleware_LookupError(t *testing.T) {
	lookup := &mockRoleLookup{
		findByIDFn: func(ctx context.Context, id string) (*model.RoleRecord, error) {
			return nil, errors.New("db down")
		},
	}
	handler := NewAuthzMiddleware(lookup, ownerRoute)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "user-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}
