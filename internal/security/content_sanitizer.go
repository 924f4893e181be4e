package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力のテキストからHTMLを取り除く。
// 部屋のタイトルや所在地など、プレーンテキストとして扱うフィールドの保存前に使用される。
type TextSanitizer interface {
	// StripHTML はHTMLタグを全て除去し、前後の空白を取り除いたテキストを返す。
	// <と>はエスケープされたまま残る。同一入力に対して常に同一出力を返す。
	StripHTML(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはゴルーチンセーフなので共有してよい。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はbluemondayのStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// plainEntities はタグ除去後に元の文字へ戻してよい実体参照。
var plainEntities = strings.NewReplacer(
	"&amp;", "&",
	"&#39;", "'",
	"&#34;", `"`,
	"&quot;", `"`,
)

// StripHTML はHTMLタグを全て除去する。
func (s *textSanitizer) StripHTML(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(plainEntities.Replace(s.policy.Sanitize(raw)))
}
