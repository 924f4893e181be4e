package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/roomfinder/internal/authstate"
	"github.com/hitoshi/roomfinder/internal/model"
)

// ErrNotSignedIn はサインインしていない状態でアクセストークンが要求された場合のエラー。
var ErrNotSignedIn = errors.New("not signed in")

// refreshSkew は有効期限のこの時間前からアクセストークンを更新対象とする。
const refreshSkew = 30 * time.Second

// Provider はAPIと資格情報ファイルの上でauthstate.IdentityProviderを実装する。
// セッションの変更は登録順に、1つずつ通知する。
type Provider struct {
	client *Client
	store  CredentialStore
	now    func() time.Time

	mu      sync.Mutex
	session *authstate.Session
	loaded  bool
	subs    map[int]func(authstate.Event, *authstate.Session)
	nextSub int

	// emitMu は通知を直列化する
	emitMu sync.Mutex
}

var _ authstate.IdentityProvider = (*Provider)(nil)

// NewProvider はProviderを生成する。
func NewProvider(client *Client, store CredentialStore) *Provider {
	return &Provider{
		client: client,
		store:  store,
		now:    time.Now,
		subs:   make(map[int]func(authstate.Event, *authstate.Session)),
	}
}

// Subscribe はセッション変更の通知先を登録する。
func (p *Provider) Subscribe(onChange func(authstate.Event, *authstate.Session)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.subs[id] = onChange

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

func (p *Provider) emit(ev authstate.Event, sess *authstate.Session) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	ids := make([]int, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	// 登録順に通知する
	slices.Sort(ids)
	for _, id := range ids {
		p.mu.Lock()
		fn, ok := p.subs[id]
		p.mu.Unlock()
		if ok {
			fn(ev, sess)
		}
	}
}

// GetCurrentSession は保存済みのセッションを返す。
// アクセストークンの期限が近い場合はリフレッシュしてTOKEN_REFRESHEDを通知する。
// リフレッシュトークンが拒否された場合は資格情報を削除してSIGNED_OUTを通知し、nilを返す。
func (p *Provider) GetCurrentSession(ctx context.Context) (*authstate.Session, error) {
	sess, err := p.loadSession()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(p.now().Add(refreshSkew)) {
		return sess, nil
	}

	refreshed, err := p.client.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if IsUnauthorized(err) {
			slog.Info("refresh token rejected; clearing credentials")
			if clearErr := p.clear(); clearErr != nil {
				return nil, clearErr
			}
			p.emit(authstate.EventSignedOut, nil)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	if err := p.replace(refreshed); err != nil {
		return nil, err
	}
	slog.Debug("access token refreshed", slog.Time("expires_at", refreshed.ExpiresAt))
	p.emit(authstate.EventTokenRefreshed, refreshed)
	return refreshed, nil
}

// AccessToken は有効なアクセストークンを返す。サインインしていない場合はErrNotSignedIn。
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	sess, err := p.GetCurrentSession(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", ErrNotSignedIn
	}
	return sess.AccessToken, nil
}

// RequestMagicLink はマジックリンクの送信を依頼する。
func (p *Provider) RequestMagicLink(ctx context.Context, email string, role model.Role) error {
	return p.client.RequestMagicLink(ctx, email, role)
}

// VerifyMagicLink はマジックリンクのトークンでサインインし、SIGNED_INを通知する。
func (p *Provider) VerifyMagicLink(ctx context.Context, token string) (*authstate.Session, error) {
	sess, err := p.client.VerifyMagicLink(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := p.replace(sess); err != nil {
		return nil, err
	}
	p.emit(authstate.EventSignedIn, sess)
	return sess, nil
}

// SignOut はサーバー側のセッションを破棄し、資格情報を削除してSIGNED_OUTを通知する。
// サーバー側の破棄に失敗してもローカルのサインアウトは完了させる。
func (p *Provider) SignOut(ctx context.Context) error {
	sess, err := p.loadSession()
	if err != nil {
		return err
	}
	if sess != nil && sess.AccessToken != "" {
		if err := p.client.Logout(ctx, sess.AccessToken); err != nil {
			slog.Warn("failed to revoke session on server", slog.String("error", err.Error()))
		}
	}

	return p.Forget()
}

// Forget はサーバーに問い合わせずに資格情報を削除し、SIGNED_OUTを通知する。
func (p *Provider) Forget() error {
	if err := p.clear(); err != nil {
		return err
	}
	p.emit(authstate.EventSignedOut, nil)
	return nil
}

func (p *Provider) loadSession() (*authstate.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		sess, err := p.store.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load credentials: %w", err)
		}
		p.session = sess
		p.loaded = true
	}
	return p.session, nil
}

func (p *Provider) replace(sess *authstate.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Save(sess); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	p.session = sess
	p.loaded = true
	return nil
}

func (p *Provider) clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Delete(); err != nil {
		return err
	}
	p.session = nil
	p.loaded = true
	return nil
}
