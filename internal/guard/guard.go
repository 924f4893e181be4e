// Package guard は画面（ルート）ごとの表示可否を判定する認可ガードを提供する。
//
// 判定は (loading, user, role, ルートの要求ロール) のみから決まる純粋関数で、
// 内部状態もI/Oも持たない。入力が変わるたびに同期的に再評価してよい。
package guard

import (
	"slices"

	"github.com/hitoshi/roomfinder/internal/model"
)

const (
	// LandingPath は未認証ユーザーのリダイレクト先となる公開ランディングルート。
	LandingPath = "/"
	// RoleSelectionPath はロール未確定ユーザーのリダイレクト先。
	RoleSelectionPath = "/select-role"
	// LoadingView はローディング中に表示するプレースホルダーのビュー名。
	LoadingView = "loading"
	// AccessDeniedView は権限不足時に表示するビュー名。
	AccessDeniedView = "access_denied"
)

// Action は描画指示の種類を表す。
type Action int

const (
	// ActionRender は View を描画する。
	ActionRender Action = iota
	// ActionRedirect は Target へリダイレクトする。
	ActionRedirect
	// ActionDeny はアクセス拒否ビューを描画する。
	ActionDeny
)

// String はActionの文字列表現を返す。
func (a Action) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	case ActionDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// Reason はどの状態から判定が導かれたかを表す。
// 5つの状態は相互排他で、この順に評価される。
type Reason int

const (
	ReasonLoading Reason = iota + 1
	ReasonAnonymous
	ReasonRoleUnresolved
	ReasonRoleNotAllowed
	ReasonAllowed

	// ReasonUnknownRoute はTable.Decideでどのルートにも一致しなかったことを表す。
	// 認可状態とは無関係で、Evaluateは返さない。
	ReasonUnknownRoute
)

// String はReasonの文字列表現を返す。
func (r Reason) String() string {
	switch r {
	case ReasonLoading:
		return "loading"
	case ReasonAnonymous:
		return "anonymous"
	case ReasonRoleUnresolved:
		return "role_unresolved"
	case ReasonRoleNotAllowed:
		return "role_not_allowed"
	case ReasonAllowed:
		return "allowed"
	case ReasonUnknownRoute:
		return "unknown_route"
	default:
		return "unknown"
	}
}

// State はガードの入力となる認可状態。
// UserID が空の場合は未認証、Role が空の場合はロール未確定を表す。
type State struct {
	Loading bool
	UserID  string
	Role    model.Role
}

// Route は画面とそのアクセス要件を表す。
// RequiredRoles が空の場合は認証済みであればロールを問わない。
type Route struct {
	Path           string
	View           string
	AllowAnonymous bool
	RequiredRoles  []model.Role
}

// Decision はガードの描画指示。
type Decision struct {
	Action Action
	View   string // ActionRender / ActionDeny の場合に描画するビュー
	Target string // ActionRedirect の場合のリダイレクト先
	Reason Reason
}

// Allows はルートの保護コンテンツを描画してよいかを返す。
func (d Decision) Allows() bool {
	return d.Reason == ReasonAllowed
}

// Evaluate は認可状態とルートから描画指示を決定する。
func Evaluate(s State, route Route) Decision {
	switch {
	case s.Loading:
		return Decision{Action: ActionRender, View: LoadingView, Reason: ReasonLoading}

	case s.UserID == "":
		if route.AllowAnonymous {
			return Decision{Action: ActionRender, View: route.View, Reason: ReasonAnonymous}
		}
		return Decision{Action: ActionRedirect, Target: LandingPath, Reason: ReasonAnonymous}

	case s.Role == model.RoleNone && route.Path != RoleSelectionPath:
		return Decision{Action: ActionRedirect, Target: RoleSelectionPath, Reason: ReasonRoleUnresolved}

	case len(route.RequiredRoles) > 0 && !slices.Contains(route.RequiredRoles, s.Role):
		return Decision{Action: ActionDeny, View: AccessDeniedView, Reason: ReasonRoleNotAllowed}

	default:
		return Decision{Action: ActionRender, View: route.View, Reason: ReasonAllowed}
	}
}
