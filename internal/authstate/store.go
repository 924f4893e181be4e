package authstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/roomfinder/internal/guard"
	"github.com/hitoshi/roomfinder/internal/model"
)

// State はStoreが公開する認可状態のスナップショット。
type State struct {
	Loading bool
	Session *Session
	User    *UserIdentity
	Role    model.Role
	// Provisional はRoleがサインアップ時のヒントで、まだ解決されていないことを表す。
	Provisional bool
	// LastError は直近のロール解決やセッション取得の失敗。
	LastError error
}

// UserID はサインイン中のユーザーIDを返す。未サインインの場合は空文字列。
func (s State) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// GuardState はガードの入力に変換する。
func (s State) GuardState() guard.State {
	return guard.State{Loading: s.Loading, UserID: s.UserID(), Role: s.Role}
}

// StoreConfig はStoreの設定。
type StoreConfig struct {
	ResolveTimeout time.Duration
}

// Store はサインイン中のユーザーとロールを保持する唯一の状態オブジェクト。
//
// Startで購読を開始してCloseで解除する。状態の書き込みはmuで直列化し、
// イベントに対応するトークンの発行も同じロックの中で行うため、
// 公開状態とトークンが食い違うことはない。
type Store struct {
	provider IdentityProvider
	profiles ProfileStore
	resolver *Resolver

	mu          sync.Mutex
	state       State
	events      uint64
	started     bool
	closed      bool
	unsubscribe func()
	watchers    map[int]chan State
	nextWatcher int

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewStore はStoreを生成する。Start前の状態はloading。
func NewStore(provider IdentityProvider, profiles ProfileStore, cfg StoreConfig) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		provider: provider,
		profiles: profiles,
		state:    State{Loading: true},
		watchers: make(map[int]chan State),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.resolver = NewResolver(profiles, s, ResolverConfig{Timeout: cfg.ResolveTimeout})
	return s
}

// Resolver はStoreが使用するResolverを返す。
func (s *Store) Resolver() *Resolver {
	return s.resolver
}

// Start はイベントの購読を開始し、既存セッションを1回取得する。
// 購読を先に行うため、取得中に届いたイベントを取りこぼさない。
// 取得中にイベントが適用された場合、取得結果はより古い情報として捨てる。
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	unsubscribe := s.provider.Subscribe(s.handleEvent)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	sess, err := s.provider.GetCurrentSession(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.events > 0 {
		slog.Debug("initial session superseded by provider event")
		return nil
	}
	if err != nil {
		slog.Error("failed to get current session", slog.String("error", err.Error()))
		s.resolver.Issue()
		s.state = State{LastError: fmt.Errorf("failed to get current session: %w", err)}
		s.notifyLocked()
		return nil
	}

	s.applyLocked(EventInitialSession, sess)
	return nil
}

// Close は購読を解除し、実行中のロール解決の終了を待つ。複数回呼んでもよい。
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		unsubscribe := s.unsubscribe
		s.unsubscribe = nil
		for id, ch := range s.watchers {
			close(ch)
			delete(s.watchers, id)
		}
		s.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		s.cancel()
		s.wg.Wait()
	})
}

func (s *Store) handleEvent(ev Event, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.events++
	slog.Debug("auth event received", slog.String("event", string(ev)))
	s.applyLocked(ev, sess)
}

// applyLocked はセッションを丸ごと置き換え、ロール解決を1回開始する。
// s.muを保持した状態で呼ぶこと。
func (s *Store) applyLocked(ev Event, sess *Session) {
	if sess == nil || sess.User == nil || sess.User.ID == "" {
		// 実行中の解決を無効化する
		s.resolver.Issue()
		s.state = State{}
		s.notifyLocked()
		return
	}

	prev := s.state
	next := State{Session: sess, User: sess.User}
	if prev.User != nil && prev.User.ID == sess.User.ID {
		next.Role = prev.Role
		next.Provisional = prev.Provisional
		next.Loading = prev.Loading
		next.LastError = prev.LastError
	} else {
		next.Loading = true
		if hint := sess.User.SignupMetadata.Role; hint.Valid() {
			next.Role = hint
			next.Provisional = true
		}
	}
	s.state = next

	token := s.resolver.Issue()
	req := Request{
		UserID:   sess.User.ID,
		Metadata: sess.User.SignupMetadata,
		Email:    sess.User.Email,
	}
	s.notifyLocked()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.resolver.Run(s.ctx, token, req)
	}()

	slog.Info("session applied",
		slog.String("event", string(ev)),
		slog.String("user_id", req.UserID),
		slog.Uint64("token", token),
	)
}

// PublishRole はResolverからの結果を公開する。トークンが最新でなければ何もしない。
func (s *Store) PublishRole(token uint64, role model.Role, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state.User == nil || !s.resolver.IsCurrent(token) {
		return false
	}
	s.state.Role = role
	s.state.Provisional = false
	s.state.Loading = false
	s.state.LastError = err
	s.notifyLocked()
	return true
}

// RefreshRole は現在のユーザーのロールを新しいトークンで解決し直す。
// 実行中の解決はすべて無効になる。サインアップ時のヒントは使わない。
func (s *Store) RefreshRole(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrClosed
	}
	user := s.state.User
	if user == nil {
		s.mu.Unlock()
		return Result{}, ErrNoUser
	}
	token := s.resolver.Issue()
	s.mu.Unlock()

	res := s.resolver.Run(ctx, token, Request{UserID: user.ID, Email: user.Email})
	return res, res.Err
}

// SelectRole はユーザー自身がロールを選択する。
// ロールレコードを作成してから解決し直す。
func (s *Store) SelectRole(ctx context.Context, role model.Role) (Result, error) {
	if !role.Valid() {
		return Result{}, model.NewInvalidRoleError(role.String())
	}

	s.mu.Lock()
	user := s.state.User
	s.mu.Unlock()
	if user == nil {
		return Result{}, ErrNoUser
	}

	if _, err := s.profiles.InsertRole(ctx, user.ID, role); err != nil {
		return Result{}, fmt.Errorf("failed to insert role: %w", err)
	}

	return s.RefreshRole(ctx)
}

// SignOut はIdentityProviderにサインアウトを依頼する。
// 状態のクリアはプロバイダーからの EventSignedOut で行われる。
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// Snapshot は現在の状態を返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch は状態が変わるたびに最新値を受け取るチャネルを返す。
// 受信が追いつかない場合、古い値は捨てられ最新値だけが残る。
// Close後はチャネルが閉じられる。
func (s *Store) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	ch <- s.state

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.watchers[id]; ok {
			close(c)
			delete(s.watchers, id)
		}
	}
}

// WaitReady はloadingが解除されるまで待ち、その時点の状態を返す。
func (s *Store) WaitReady(ctx context.Context) (State, error) {
	ch, stop := s.Watch()
	defer stop()

	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return s.Snapshot(), ErrClosed
			}
			if !st.Loading {
				return st, nil
			}
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

func (s *Store) notifyLocked() {
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.state:
		default:
		}
	}
}
