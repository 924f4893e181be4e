package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/roomfinder/internal/model"
)

const testRoomBody = `{"title":"Sunny 1BHK","location":"Koramangala","price":12000,"type":"1 BHK","preference":"Bachelor","contact":"9876543210"}`

func TestRoomHandler_List_ParsesFilter(t *testing.T) {
	var got model.RoomFilter
	svc := &mockRoomService{
		listFn: func(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error) {
			got = filter
			return []*model.Room{{ID: "room-1", Title: "A"}, {ID: "room-2", Title: "B"}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/rooms?location=kora&min_price=1000&preference=Any", nil)
	w := httptest.NewRecorder()
	NewRoomHandler(svc).List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Location != "kora" || got.MinPrice == nil || *got.MinPrice != 1000 || got.MaxPrice != nil {
		t.Errorf("unexpected filter: %+v", got)
	}

	var body []roomResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body) != 2 || body[0].ID != "room-1" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestRoomHandler_List_EmptyIsArray(t *testing.T) {
	w := httptest.NewRecorder()
	NewRoomHandler(&mockRoomService{}).List(w, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))

	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", w.Body.String())
	}
}

func TestRoomHandler_List_InvalidFilter(t *testing.T) {
	svc := &mockRoomService{
		listFn: func(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error) {
			t.Fatal("List should not be called")
			return nil, nil
		},
	}

	w := httptest.NewRecorder()
	NewRoomHandler(svc).List(w, httptest.NewRequest(http.MethodGet, "/api/rooms?max_price=abc", nil))

	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidFilter)
}

func TestRoomHandler_Get_NotFound(t *testing.T) {
	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/rooms/x", nil), "id", "x")
	w := httptest.NewRecorder()
	NewRoomHandler(&mockRoomService{}).Get(w, req)

	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeRoomNotFound)
}

func TestRoomHandler_Create(t *testing.T) {
	var gotOwner string
	var gotInput model.RoomInput
	svc := &mockRoomService{
		createFn: func(ctx context.Context, ownerID string, input model.RoomInput) (*model.Room, error) {
			gotOwner, gotInput = ownerID, input
			return &model.Room{ID: "room-1", OwnerID: ownerID, Title: input.Title, Price: input.Price}, nil
		},
	}

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(testRoomBody)), "owner-1")
	w := httptest.NewRecorder()
	NewRoomHandler(svc).Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if gotOwner != "owner-1" || gotInput.Price != 12000 || gotInput.Contact != "9876543210" {
		t.Errorf("got (%q, %+v)", gotOwner, gotInput)
	}
}

func TestRoomHandler_Create_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid room", model.NewInvalidRoomError("title is required"), http.StatusBadRequest, model.ErrCodeInvalidRoom},
		{"invalid url", model.NewInvalidURLError("bad scheme"), http.StatusBadRequest, model.ErrCodeInvalidURL},
		{"ssrf", model.NewSSRFBlockedError(), http.StatusForbidden, model.ErrCodeSSRFBlocked},
		{"unreachable", model.NewImageUnreachableError("404"), http.StatusUnprocessableEntity, model.ErrCodeImageUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockRoomService{
				createFn: func(ctx context.Context, ownerID string, input model.RoomInput) (*model.Room, error) {
					return nil, tt.err
				},
			}
			req := withUserID(httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(testRoomBody)), "owner-1")
			w := httptest.NewRecorder()
			NewRoomHandler(svc).Create(w, req)

			assertErrorCode(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestRoomHandler_Update(t *testing.T) {
	var gotID string
	svc := &mockRoomService{
		updateFn: func(ctx context.Context, ownerID, id string, input model.RoomInput) (*model.Room, error) {
			gotID = id
			return &model.Room{ID: id, OwnerID: ownerID}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPut, "/api/rooms/room-7", strings.NewReader(testRoomBody))
	req = withUserID(withChiURLParam(req, "id", "room-7"), "owner-1")
	w := httptest.NewRecorder()
	NewRoomHandler(svc).Update(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotID != "room-7" {
		t.Errorf("id = %q, want room-7", gotID)
	}
}

func TestRoomHandler_Delete(t *testing.T) {
	svc := &mockRoomService{
		deleteFn: func(ctx context.Context, ownerID, id string) error {
			if ownerID != "owner-1" {
				return model.NewRoomNotFoundError(id)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/rooms/room-7", nil)
	req = withUserID(withChiURLParam(req, "id", "room-7"), "owner-1")
	w := httptest.NewRecorder()
	NewRoomHandler(svc).Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/rooms/room-7", nil)
	req = withUserID(withChiURLParam(req, "id", "room-7"), "intruder")
	w = httptest.NewRecorder()
	NewRoomHandler(svc).Delete(w, req)

	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeRoomNotFound)
}

func TestRoomHandler_Mine_RequiresUser(t *testing.T) {
	w := httptest.NewRecorder()
	NewRoomHandler(&mockRoomService{}).Mine(w, httptest.NewRequest(http.MethodGet, "/api/rooms/mine", nil))

	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeInvalidToken)
}
