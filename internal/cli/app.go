package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/roomfinder/internal/authstate"
	"github.com/hitoshi/roomfinder/internal/client"
	"github.com/hitoshi/roomfinder/internal/guard"
	"github.com/hitoshi/roomfinder/internal/model"
)

// App はコマンド間で共有するクライアントと認可状態。
// 必要になった時点で初期化する。
type App struct {
	Options Options

	// envErr は環境変数の解釈に失敗した内容。コマンド実行前に報告する。
	envErr error

	client   *client.Client
	provider *client.Provider
	store    *authstate.Store
	table    *guard.Table
}

// Client はAPIクライアントを返す。
func (a *App) Client() *client.Client {
	if a.client == nil {
		a.client = client.NewClient(a.Options.Server, nil)
	}
	return a.client
}

// Provider は資格情報ファイルに紐づくIdentityProviderを返す。
func (a *App) Provider() (*client.Provider, error) {
	if a.provider != nil {
		return a.provider, nil
	}

	home := a.Options.Home
	if home == "" {
		var err error
		if home, err = client.DefaultHome(); err != nil {
			return nil, err
		}
	}
	creds, err := client.NewFileStore(home)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	a.provider = client.NewProvider(a.Client(), creds)
	return a.provider, nil
}

// Store はセッションを購読済みのStoreを返す。
func (a *App) Store(ctx context.Context) (*authstate.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	provider, err := a.Provider()
	if err != nil {
		return nil, err
	}
	store := authstate.NewStore(provider, client.NewProfileStore(a.Client(), provider), authstate.StoreConfig{
		ResolveTimeout: a.Options.ResolveTimeout,
	})
	if err := store.Start(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to start auth state: %w", err)
	}
	a.store = store
	return store, nil
}

// Ready はロール解決が終わるまで待ち、その時点の状態を返す。
func (a *App) Ready(ctx context.Context) (authstate.State, error) {
	store, err := a.Store(ctx)
	if err != nil {
		return authstate.State{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.waitBound())
	defer cancel()
	return store.WaitReady(ctx)
}

// waitBound はロール解決を待つ側の上限。Resolverと同じく0以下は既定値として扱う。
func (a *App) waitBound() time.Duration {
	timeout := a.Options.ResolveTimeout
	if timeout <= 0 {
		timeout = authstate.DefaultResolveTimeout
	}
	return timeout + timeout/2
}

// Authorize はpathのルートを現在の状態で判定し、実行できない場合は次の手順を示すエラーを返す。
func (a *App) Authorize(ctx context.Context, path string) (authstate.State, error) {
	st, err := a.Ready(ctx)
	if err != nil {
		return st, err
	}
	if st.LastError != nil {
		return st, fmt.Errorf("could not resolve your role: %w", st.LastError)
	}

	route, decision := a.guardTable().Decide(st.GuardState(), path)
	return st, decisionError(route, decision)
}

// AccessToken は現在のアクセストークンを返す。
func (a *App) AccessToken(ctx context.Context) (string, error) {
	provider, err := a.Provider()
	if err != nil {
		return "", err
	}
	token, err := provider.AccessToken(ctx)
	if errors.Is(err, client.ErrNotSignedIn) {
		return "", errSignInRequired
	}
	return token, err
}

// Close はStoreの購読を解除する。
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
}

func (a *App) guardTable() *guard.Table {
	if a.table == nil {
		a.table = guard.DefaultTable()
	}
	return a.table
}

var (
	errSignInRequired = errors.New("you are not signed in: run `roomctl login --email <address>`")
	errRoleRequired   = errors.New("choose a role first: run `roomctl select-role room_owner|room_finder`")
)

// decisionError はガードの判定をコマンドのエラーに変換する。描画できる場合はnil。
func decisionError(route guard.Route, d guard.Decision) error {
	switch d.Action {
	case guard.ActionRender:
		if d.Reason == guard.ReasonLoading {
			return errors.New("your role is still being resolved; try again")
		}
		return nil
	case guard.ActionRedirect:
		if d.Reason == guard.ReasonUnknownRoute {
			return errors.New("no screen is registered for this command")
		}
		if d.Target == guard.RoleSelectionPath {
			return errRoleRequired
		}
		return errSignInRequired
	default:
		return fmt.Errorf("access denied: this command requires the %s role", joinRoles(route.RequiredRoles))
	}
}

func joinRoles(roles []model.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return strings.Join(names, " or ")
}
