// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, profile, room, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidEmail     = "INVALID_EMAIL"
	ErrCodeInvalidRole      = "INVALID_ROLE"
	ErrCodeInvalidToken     = "INVALID_TOKEN"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeProfileNotFound  = "PROFILE_NOT_FOUND"
	ErrCodeProfileExists    = "PROFILE_EXISTS"
	ErrCodeRoleMismatch     = "ROLE_MISMATCH"
	ErrCodeRoleRequired     = "ROLE_REQUIRED"
	ErrCodeAccessDenied     = "ACCESS_DENIED"
	ErrCodeRoomNotFound     = "ROOM_NOT_FOUND"
	ErrCodeInvalidRoom      = "INVALID_ROOM"
	ErrCodeInvalidFilter    = "INVALID_FILTER"
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeImageUnreachable = "IMAGE_UNREACHABLE"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewInvalidEmailError は無効なメールアドレスエラーを生成する。
func NewInvalidEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("無効なメールアドレスです: %s", email),
		Category: "validation",
		Action:   "正しいメールアドレスを入力してください。",
	}
}

// NewInvalidRoleError は未知のロールが指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効なロールです: %s", role),
		Category: "validation",
		Action:   "ロールには room_owner または room_finder を指定してください。",
	}
}

// NewInvalidTokenError はマジックリンクやリフレッシュトークンが無効な場合のエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "トークンが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "ログインリンクを再度リクエストしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewProfileNotFoundError はロールレコード未作成エラーを生成する。
func NewProfileNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("プロフィールが見つかりません: %s", userID),
		Category: "profile",
		Action:   "ロールを選択してください。",
	}
}

// NewProfileExistsError はロールが既に登録済みの場合のエラーを生成する。
func NewProfileExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileExists,
		Message:  "ロールは既に登録されています。",
		Category: "profile",
		Action:   "登録済みのロールでご利用ください。",
	}
}

// NewRoleMismatchError はサインアップ時のロールと異なるロールで自動作成しようとした場合のエラーを生成する。
func NewRoleMismatchError(want, got string) *APIError {
	return &APIError{
		Code:     ErrCodeRoleMismatch,
		Message:  fmt.Sprintf("サインアップ時のロール(%s)と一致しません: %s", want, got),
		Category: "profile",
		Action:   "ロール選択画面からロールを選択してください。",
	}
}

// NewRoleRequiredError はロール未選択のユーザーが保護リソースにアクセスした場合のエラーを生成する。
func NewRoleRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeRoleRequired,
		Message:  "ロールが選択されていません。",
		Category: "auth",
		Action:   "ロール選択画面でロールを選択してください。",
	}
}

// NewAccessDeniedError は必要なロールを持たない場合のエラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "部屋の掲載には room_owner ロールが必要です。",
	}
}

// NewRoomNotFoundError は部屋未検出エラーを生成する。
func NewRoomNotFoundError(roomID string) *APIError {
	return &APIError{
		Code:     ErrCodeRoomNotFound,
		Message:  fmt.Sprintf("指定された部屋が見つかりません: %s", roomID),
		Category: "room",
		Action:   "部屋IDを確認してください。",
	}
}

// NewInvalidRoomError は部屋情報の入力値エラーを生成する。
func NewInvalidRoomError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRoom,
		Message:  fmt.Sprintf("部屋情報が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidFilterError は無効な検索条件エラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効な検索条件です: %s", filter),
		Category: "validation",
		Action:   "価格には0以上の整数を指定してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されている画像のURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewImageUnreachableError は画像URLの確認に失敗した場合のエラーを生成する。
func NewImageUnreachableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImageUnreachable,
		Message:  fmt.Sprintf("画像を取得できませんでした: %s", reason),
		Category: "room",
		Action:   "画像URLが公開されているか確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディを解釈できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストの形式が正しくありません。",
		Category: "validation",
		Action:   "JSON形式でリクエストしてください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}
