package authstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hitoshi/roomfinder/internal/model"
)

var errConflict = errors.New("role record already exists")

// fakeProfileStore はメモリ上のProfileStore。
// getDelay で呼び出しごとの遅延を、getGate で呼び出しのブロックを制御できる。
type fakeProfileStore struct {
	mu      sync.Mutex
	records map[string]*model.RoleRecord

	getErr   error
	getDelay func(call int) time.Duration
	getGate  chan struct{}

	getCalls    int
	createCalls int
	insertCalls int
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{records: make(map[string]*model.RoleRecord)}
}

func (f *fakeProfileStore) put(userID string, role model.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[userID] = &model.RoleRecord{ID: userID, Role: role}
}

func (f *fakeProfileStore) counts() (get, create, insert int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.createCalls, f.insertCalls
}

func (f *fakeProfileStore) GetRole(ctx context.Context, userID string) (*model.RoleRecord, error) {
	f.mu.Lock()
	f.getCalls++
	call := f.getCalls
	delayFn := f.getDelay
	gate := f.getGate
	getErr := f.getErr
	f.mu.Unlock()

	delay := time.Duration(0)
	if delayFn != nil {
		delay = delayFn(call)
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if getErr != nil {
		return nil, getErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeProfileStore) CreateRole(ctx context.Context, userID string, role model.Role, email string) (*model.RoleRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if rec, ok := f.records[userID]; ok {
		cp := *rec
		return &cp, nil
	}
	rec := &model.RoleRecord{ID: userID, Role: role}
	if email != "" {
		rec.Email = &email
	}
	f.records[userID] = rec
	cp := *rec
	return &cp, nil
}

func (f *fakeProfileStore) InsertRole(ctx context.Context, userID string, role model.Role) (*model.RoleRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if _, ok := f.records[userID]; ok {
		return nil, errConflict
	}
	rec := &model.RoleRecord{ID: userID, Role: role}
	f.records[userID] = rec
	cp := *rec
	return &cp, nil
}

// fakeProvider はメモリ上のIdentityProvider。
type fakeProvider struct {
	mu        sync.Mutex
	session   *Session
	getErr    error
	getHook   func()
	listeners map[int]func(Event, *Session)
	nextID    int

	subscribeCalls   int
	unsubscribeCalls int
}

func newFakeProvider(session *Session) *fakeProvider {
	return &fakeProvider{
		session:   session,
		listeners: make(map[int]func(Event, *Session)),
	}
}

func (p *fakeProvider) GetCurrentSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	hook := p.getHook
	p.mu.Unlock()
	if hook != nil {
		hook()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, p.getErr
	}
	return p.session, nil
}

func (p *fakeProvider) Subscribe(onChange func(Event, *Session)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribeCalls++
	id := p.nextID
	p.nextID++
	p.listeners[id] = onChange
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.unsubscribeCalls++
		delete(p.listeners, id)
	}
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
	p.emit(EventSignedOut, nil)
	return nil
}

func (p *fakeProvider) emit(ev Event, sess *Session) {
	p.mu.Lock()
	if ev != EventSignedOut {
		p.session = sess
	}
	fns := make([]func(Event, *Session), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev, sess)
	}
}

func (p *fakeProvider) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// recordingPublisher はResolver単体テスト用のPublisher。
type recordingPublisher struct {
	mu        sync.Mutex
	resolver  *Resolver
	role      model.Role
	err       error
	published []uint64
}

func (p *recordingPublisher) PublishRole(token uint64, role model.Role, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.resolver.IsCurrent(token) {
		return false
	}
	p.role = role
	p.err = err
	p.published = append(p.published, token)
	return true
}

func (p *recordingPublisher) snapshot() (model.Role, []uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role, append([]uint64(nil), p.published...)
}

func newTestResolver(store ProfileStore, timeout time.Duration) (*Resolver, *recordingPublisher) {
	pub := &recordingPublisher{}
	r := NewResolver(store, pub, ResolverConfig{Timeout: timeout})
	pub.resolver = r
	return r, pub
}

func sessionFor(userID string, hint model.Role) *Session {
	return &Session{
		AccessToken: "token-" + userID,
		ExpiresAt:   time.Now().Add(time.Hour),
		User: &UserIdentity{
			ID:             userID,
			Email:          userID + "@example.com",
			SignupMetadata: model.SignupMetadata{Role: hint, Email: userID + "@example.com"},
		},
	}
}
