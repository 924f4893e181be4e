package guard

import (
	"strings"

	"github.com/hitoshi/roomfinder/internal/model"
)

// ルート定義で使用するビュー名
const (
	ViewHome       = "Home"
	ViewLogin      = "Login"
	ViewRegister   = "Register"
	ViewSelectRole = "RoleSelection"
	ViewAddRoom    = "AddRoom"
	ViewMyRooms    = "MyRooms"
	ViewEditRoom   = "EditRoom"
	ViewRoomDetail = "RoomDetail"
)

// Table はルート定義の一覧。
// Unguarded なルートはガードを通さずに常に描画する（ログイン画面など）。
type Table struct {
	routes    []Route
	unguarded map[string]bool
}

// NewTable はルート定義からTableを生成する。
func NewTable(routes []Route, unguarded ...string) *Table {
	t := &Table{
		routes:    routes,
		unguarded: make(map[string]bool, len(unguarded)),
	}
	for _, p := range unguarded {
		t.unguarded[p] = true
	}
	return t
}

// DefaultTable はアプリケーションの画面構成に対応するルート定義を返す。
func DefaultTable() *Table {
	owner := []model.Role{model.RoleOwner}
	return NewTable([]Route{
		{Path: LandingPath, View: ViewHome, AllowAnonymous: true},
		{Path: "/login", View: ViewLogin, AllowAnonymous: true},
		{Path: "/register", View: ViewRegister, AllowAnonymous: true},
		{Path: RoleSelectionPath, View: ViewSelectRole},
		{Path: "/add-room", View: ViewAddRoom, RequiredRoles: owner},
		{Path: "/my-rooms", View: ViewMyRooms, RequiredRoles: owner},
		{Path: "/edit-room/:id", View: ViewEditRoom, RequiredRoles: owner},
		{Path: "/room/:id", View: ViewRoomDetail, AllowAnonymous: true},
	}, "/login", "/register", "/room/:id")
}

// Match はパスに一致するルートを返す。
// ":name" 形式のセグメントは任意の1セグメントに一致する。
func (t *Table) Match(path string) (Route, bool) {
	for _, r := range t.routes {
		if matchPath(r.Path, path) {
			return r, true
		}
	}
	return Route{}, false
}

// Decide はパスに一致するルートを評価して描画指示を返す。
// 一致するルートがない場合は認可状態にかかわらずランディングへリダイレクトする。
func (t *Table) Decide(s State, path string) (Route, Decision) {
	route, ok := t.Match(path)
	if !ok {
		return Route{}, Decision{Action: ActionRedirect, Target: LandingPath, Reason: ReasonUnknownRoute}
	}
	if t.unguarded[route.Path] {
		return route, Decision{Action: ActionRender, View: route.View, Reason: ReasonAllowed}
	}
	return route, Evaluate(s, route)
}

func matchPath(pattern, path string) bool {
	if pattern == path {
		return true
	}
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != xs[i] {
			return false
		}
	}
	return true
}
