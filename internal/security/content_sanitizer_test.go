package security

import "testing"

// TestStripHTML はHTMLタグが除去されることをテストする。
func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "Sunny room near station", "Sunny room near station"},
		{"trim spaces", "  Shibuya  ", "Shibuya"},
		{"bold removed", "<b>Cozy</b> loft", "Cozy loft"},
		{"script removed", "<script>alert(1)</script>Room", "Room"},
		{"event handler removed", `<img src=x onerror="alert(1)">Room`, "Room"},
		{"anchor removed", `<a href="https://evil.example">call me</a>`, "call me"},
		{"ampersand kept", "Bed & Breakfast", "Bed & Breakfast"},
		{"quote kept", `Tom's "quiet" flat`, `Tom's "quiet" flat`},
		{"japanese", "<p>渋谷駅 徒歩5分</p>", "渋谷駅 徒歩5分"},
	}

	s := NewTextSanitizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.StripHTML(tt.input); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestStripHTML_AngleBracketsStayEscaped はタグにならない山括弧がエスケープされたまま残ることをテストする。
// 表示側でHTMLとして解釈されないようにするため。
func TestStripHTML_AngleBracketsStayEscaped(t *testing.T) {
	got := NewTextSanitizer().StripHTML("price < 500")
	if got != "price &lt; 500" {
		t.Errorf("got %q", got)
	}
}

// TestStripHTML_Deterministic は同一入力に対して同一出力を返すことをテストする。
func TestStripHTML_Deterministic(t *testing.T) {
	s := NewTextSanitizer()
	input := `<div onclick="x()">Room <i>with</i> view</div>`
	first := s.StripHTML(input)
	for i := 0; i < 5; i++ {
		if got := s.StripHTML(input); got != first {
			t.Fatalf("iteration %d: got %q, want %q", i, got, first)
		}
	}
}

// TestTextSanitizerInterface はtextSanitizerがTextSanitizerを満たすことを確認する。
func TestTextSanitizerInterface(t *testing.T) {
	var _ TextSanitizer = NewTextSanitizer()
}
