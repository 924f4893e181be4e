package model

import "time"

// Room は掲載された部屋を表す。
type Room struct {
	ID         string
	OwnerID    string
	Title      string
	Location   string
	Price      int
	Type       string
	Preference string
	Contact    string
	ImageURL   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RoomInput は部屋の作成・更新時の入力値。
type RoomInput struct {
	Title      string
	Location   string
	Price      int
	Type       string
	Preference string
	Contact    string
	ImageURL   string
}

// RoomFilter は部屋一覧の検索条件。
// ゼロ値のフィールドは条件に含めない。
type RoomFilter struct {
	Location   string
	MinPrice   *int
	MaxPrice   *int
	Type       string
	Preference string
	OwnerID    string
	Limit      int
}

// AnyFilterValue は Type/Preference で「指定なし」を表す値。
const AnyFilterValue = "Any"
