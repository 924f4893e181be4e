package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}
	return entry
}

func TestSetup_JSONRecord(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf).Warn("role resolved",
		slog.String("user_id", "u-123"),
		slog.String("role", "room_owner"),
		slog.Uint64("token", 25),
	)

	entry := decodeEntry(t, &buf)
	want := map[string]any{
		"msg":     "role resolved",
		"level":   "WARN",
		"user_id": "u-123",
		"role":    "room_owner",
		"token":   float64(25),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

// TestSetup_RedactsSensitiveKeys はトークン類の値がログに出ないことを検証する。
func TestSetup_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf).Info("refresh",
		slog.String("access_token", "eyJhbGciOi.secret"),
		slog.String("Authorization", "Bearer abc"),
		slog.Group("session", slog.String("refresh_token", "r-secret"), slog.String("id", "s1")),
		slog.String("link", "http://localhost/auth/verify?token=dev"),
	)

	out := buf.String()
	for _, secret := range []string{"eyJhbGciOi.secret", "Bearer abc", "r-secret"} {
		if strings.Contains(out, secret) {
			t.Errorf("secret %q leaked into log: %s", secret, out)
		}
	}

	entry := decodeEntry(t, &buf)
	if entry["access_token"] != Redacted {
		t.Errorf("access_token = %v, want %s", entry["access_token"], Redacted)
	}
	session, _ := entry["session"].(map[string]any)
	if session["refresh_token"] != Redacted || session["id"] != "s1" {
		t.Errorf("session group = %v", session)
	}
	// 開発用メーラーはリンクを出すことが目的なので伏せない
	if entry["link"] == Redacted {
		t.Error("link should not be redacted")
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
	}{
		{"info", false},
		{"debug", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			SetupDefault(&buf, tt.level)

			slog.Default().Debug("debug line")
			if got := strings.Contains(buf.String(), "debug line"); got != tt.wantDebug {
				t.Errorf("debug written = %v, want %v", got, tt.wantDebug)
			}

			buf.Reset()
			slog.Default().Info("global test")
			entry := decodeEntry(t, &buf)
			if entry["service"] != "roomfinder" {
				t.Errorf("service = %v, want roomfinder", entry["service"])
			}
		})
	}
}

func TestSetupWithLevel_FiltersLowerLevels(t *testing.T) {
	var buf bytes.Buffer
	SetupWithLevel(&buf, slog.LevelError).Warn("hidden")

	if buf.Len() != 0 {
		t.Errorf("expected warn log to be filtered, got %q", buf.String())
	}
}

func TestSetupCLI_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	SetupCLI(&buf, false)

	slog.Default().Info("hidden")
	slog.Default().Warn("shown", slog.String("user_id", "u1"), slog.String("refresh_token", "r1"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info log written at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "user_id=u1") {
		t.Errorf("unexpected text log output: %q", out)
	}
	if !strings.Contains(out, "refresh_token="+Redacted) {
		t.Errorf("refresh_token not redacted: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
