package client

import (
	"context"

	"github.com/hitoshi/roomfinder/internal/authstate"
	"github.com/hitoshi/roomfinder/internal/model"
)

// TokenSource は有効なアクセストークンを返す。Providerが満たす。
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// ProfileStore はAPIの上でauthstate.ProfileStoreを実装する。
type ProfileStore struct {
	client *Client
	tokens TokenSource
}

var _ authstate.ProfileStore = (*ProfileStore)(nil)

// NewProfileStore はProfileStoreを生成する。
func NewProfileStore(client *Client, tokens TokenSource) *ProfileStore {
	return &ProfileStore{client: client, tokens: tokens}
}

// GetRole はロールレコードを取得する。存在しない場合はauthstate.ErrNotFoundを返す。
func (s *ProfileStore) GetRole(ctx context.Context, userID string) (*model.RoleRecord, error) {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.client.GetRole(ctx, token, userID)
	if HasCode(err, model.ErrCodeProfileNotFound) {
		return nil, authstate.ErrNotFound
	}
	return rec, err
}

func (s *ProfileStore) CreateRole(ctx context.Context, userID string, role model.Role, email string) (*model.RoleRecord, error) {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.CreateRole(ctx, token, userID, role, email)
}

func (s *ProfileStore) InsertRole(ctx context.Context, userID string, role model.Role) (*model.RoleRecord, error) {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.SelectRole(ctx, token, userID, role)
}
