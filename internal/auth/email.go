package auth

import (
	"strings"

	"golang.org/x/net/idna"

	"github.com/hitoshi/roomfinder/internal/model"
)

// NormalizeEmail はメールアドレスを比較可能な形に正規化する。
// 前後の空白を除去して小文字化し、ドメイン部はIDNAでASCII（punycode）に変換する。
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 || at == len(trimmed)-1 {
		return "", model.NewInvalidEmailError(email)
	}

	local := strings.ToLower(trimmed[:at])
	if strings.ContainsAny(local, " \t\r\n") {
		return "", model.NewInvalidEmailError(email)
	}

	domain, err := idna.Lookup.ToASCII(strings.ToLower(trimmed[at+1:]))
	if err != nil || !strings.Contains(domain, ".") {
		return "", model.NewInvalidEmailError(email)
	}

	return local + "@" + domain, nil
}
