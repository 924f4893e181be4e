package model

import "time"

// Role はユーザーごとに1つだけ持つロールを表す。
// 空文字列はロール未確定を意味する。
type Role string

const (
	// RoleOwner は部屋を掲載するオーナー。
	RoleOwner Role = "room_owner"
	// RoleFinder は部屋を探すユーザー。
	RoleFinder Role = "room_finder"
	// RoleNone はロール未確定。
	RoleNone Role = ""
)

// Valid は既知のロールかどうかを返す。
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleFinder
}

// String はロールの文字列表現を返す。
func (r Role) String() string {
	return string(r)
}

// ParseRole は文字列をロールに変換する。
// 未知の値の場合は InvalidRole エラーを返す。
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return RoleNone, NewInvalidRoleError(s)
	}
	return r, nil
}

// RoleRecord はユーザーのロールを永続化したレコード（profiles テーブル）。
// ID はユーザーIDと同一。Email は未設定の場合 nil。
type RoleRecord struct {
	ID        string
	Role      Role
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleSelectionPolicy はロール自己選択時に既存レコードをどう扱うかを表す。
type RoleSelectionPolicy string

const (
	// RoleSelectionInsert は既存レコードがあれば競合エラーとする。
	RoleSelectionInsert RoleSelectionPolicy = "insert"
	// RoleSelectionOverwrite は既存レコードを上書きする。
	RoleSelectionOverwrite RoleSelectionPolicy = "overwrite"
)
