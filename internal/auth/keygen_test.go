package auth

import (
	"strings"
	"testing"
)

func TestGenerateClientToken_Live(t *testing.T) {
	t.Parallel()

	token, err := GenerateClientToken(EnvLive)
	if err != nil {
		t.Fatalf("GenerateClientToken failed: %v", err)
	}

	if !strings.HasPrefix(token, "tk_live_") {
		t.Errorf("Token should start with tk_live_, got: %s", token)
	}
	if !ValidateClientTokenFormat(token) {
		t.Errorf("generated token should validate: %s", token)
	}
}

func TestGenerateClientToken_DefaultsToLive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  string
	}{
		{"invalid env", "invalid"},
		{"empty env", ""},
		{"uppercase", "LIVE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := GenerateClientToken(tt.env)
			if err != nil {
				t.Fatalf("GenerateClientToken failed: %v", err)
			}
			if !strings.HasPrefix(token, "tk_live_") {
				t.Errorf("Token should default to live, got: %s", token)
			}
		})
	}
}

func TestGenerateClientToken_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateClientToken(EnvTest)
		if err != nil {
			t.Fatalf("GenerateClientToken failed: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = true
	}
}

func TestParseClientToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   string
		wantEnv string
		wantErr bool
	}{
		{"valid live", "tk_live_abc123_0123456789abcdef0123456789abcdef", EnvLive, false},
		{"valid test", "tk_test_fff000_0123456789abcdef0123456789abcdef", EnvTest, false},
		{"wrong scheme", "pk_live_abc123_0123456789abcdef0123456789abcdef", "", true},
		{"short secret", "tk_live_abc123_0123", "", true},
		{"uppercase hex", "tk_live_ABC123_0123456789abcdef0123456789abcdef", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parsed, err := ParseClientToken(tt.token)
			if tt.wantErr {
				if err != ErrInvalidTokenFormat {
					t.Errorf("ParseClientToken(%q) error = %v, want ErrInvalidTokenFormat", tt.token, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClientToken(%q) unexpected error: %v", tt.token, err)
			}
			if parsed.Env != tt.wantEnv {
				t.Errorf("Env = %s, want %s", parsed.Env, tt.wantEnv)
			}
		})
	}
}

func TestGenerateLoginToken(t *testing.T) {
	t.Parallel()

	tok, err := GenerateLoginToken()
	if err != nil {
		t.Fatalf("GenerateLoginToken failed: %v", err)
	}
	if len(tok) != LoginTokenBytes*2 {
		t.Errorf("login token length = %d, want %d", len(tok), LoginTokenBytes*2)
	}

	other, _ := GenerateLoginToken()
	if tok == other {
		t.Error("login tokens should be unique")
	}
}
