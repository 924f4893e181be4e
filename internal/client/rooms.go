package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/roomfinder/internal/model"
)

// roomBody は部屋のAPI表現。
type roomBody struct {
	ID         string    `json:"id,omitempty"`
	OwnerID    string    `json:"owner_id,omitempty"`
	Title      string    `json:"title"`
	Location   string    `json:"location"`
	Price      int       `json:"price"`
	Type       string    `json:"type"`
	Preference string    `json:"preference"`
	Contact    string    `json:"contact"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

func (b roomBody) toModel() *model.Room {
	return &model.Room{
		ID:         b.ID,
		OwnerID:    b.OwnerID,
		Title:      b.Title,
		Location:   b.Location,
		Price:      b.Price,
		Type:       b.Type,
		Preference: b.Preference,
		Contact:    b.Contact,
		ImageURL:   b.ImageURL,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func fromInput(in model.RoomInput) roomBody {
	return roomBody{
		Title:      in.Title,
		Location:   in.Location,
		Price:      in.Price,
		Type:       in.Type,
		Preference: in.Preference,
		Contact:    in.Contact,
		ImageURL:   in.ImageURL,
	}
}

func toRooms(bodies []roomBody) []*model.Room {
	rooms := make([]*model.Room, len(bodies))
	for i, b := range bodies {
		rooms[i] = b.toModel()
	}
	return rooms
}

// FilterQuery は検索条件をクエリパラメータに変換する。
func FilterQuery(f model.RoomFilter) url.Values {
	q := url.Values{}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	if f.MinPrice != nil {
		q.Set("min_price", strconv.Itoa(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		q.Set("max_price", strconv.Itoa(*f.MaxPrice))
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Preference != "" {
		q.Set("preference", f.Preference)
	}
	if f.OwnerID != "" {
		q.Set("owner_id", f.OwnerID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func roomPath(id string) string {
	return "/api/rooms/" + url.PathEscape(id)
}

// ListRooms は条件に一致する部屋を返す。認証不要。
func (c *Client) ListRooms(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error) {
	path := "/api/rooms"
	if q := FilterQuery(filter).Encode(); q != "" {
		path += "?" + q
	}
	var bodies []roomBody
	if err := c.do(ctx, http.MethodGet, path, "", nil, &bodies); err != nil {
		return nil, err
	}
	return toRooms(bodies), nil
}

// GetRoom は部屋を1件返す。認証不要。
func (c *Client) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	var body roomBody
	if err := c.do(ctx, http.MethodGet, roomPath(id), "", nil, &body); err != nil {
		return nil, err
	}
	return body.toModel(), nil
}

// MyRooms は自分が掲載した部屋を返す。
func (c *Client) MyRooms(ctx context.Context, accessToken string) ([]*model.Room, error) {
	var bodies []roomBody
	if err := c.do(ctx, http.MethodGet, "/api/rooms/mine", accessToken, nil, &bodies); err != nil {
		return nil, err
	}
	return toRooms(bodies), nil
}

// CreateRoom は部屋を掲載する。
func (c *Client) CreateRoom(ctx context.Context, accessToken string, input model.RoomInput) (*model.Room, error) {
	var body roomBody
	if err := c.do(ctx, http.MethodPost, "/api/rooms", accessToken, fromInput(input), &body); err != nil {
		return nil, err
	}
	return body.toModel(), nil
}

// UpdateRoom は部屋を更新する。
func (c *Client) UpdateRoom(ctx context.Context, accessToken, id string, input model.RoomInput) (*model.Room, error) {
	var body roomBody
	if err := c.do(ctx, http.MethodPut, roomPath(id), accessToken, fromInput(input), &body); err != nil {
		return nil, err
	}
	return body.toModel(), nil
}

// DeleteRoom は部屋を削除する。
func (c *Client) DeleteRoom(ctx context.Context, accessToken, id string) error {
	return c.do(ctx, http.MethodDelete, roomPath(id), accessToken, nil, nil)
}
