package app

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"redis://:hunter2@cache:6379/0", "redis://redacted@cache:6379/0"},
		{"postgres://app:hunter2@db:5432/tryon", "postgres://app@db:5432/tryon"},
		{"https://kv.example.test", "https://kv.example.test"},
	}
	for _, tt := range tests {
		if got := RedactURL(tt.in); got != tt.want {
			t.Errorf("RedactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	dsn := "postgres://app:hunter2@db:5432/tryon"
	err := errors.New("connect " + dsn + " failed: password=hunter2 token=kv-secret")
	got := SanitizeError(err, dsn, "kv-secret")

	for _, secret := range []string{"hunter2", "kv-secret"} {
		if strings.Contains(got, secret) {
			t.Errorf("sanitized message still contains %q: %s", secret, got)
		}
	}
	if SanitizeError(nil) != "" {
		t.Error("nil error should sanitize to empty string")
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
