// Package auth issues client bearer tokens and single-use login tokens.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Client token format: tk_{env}_{prefix}_{secret}
// Example: tk_live_7a9x3k_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	TokenPrefixLen = 6  // Visible prefix length (hex encoded 3 bytes)
	TokenSecretLen = 32 // Secret length (hex encoded 16 bytes)

	// LoginTokenBytes is the entropy of a login token before hex encoding.
	LoginTokenBytes = 32
)

// Environment indicators for token prefix.
const (
	EnvLive = "live"
	EnvTest = "test"
)

var (
	// ErrInvalidTokenFormat indicates the client token format is invalid.
	ErrInvalidTokenFormat = errors.New("invalid client token format")
	// tokenFormatRegex validates the client token format.
	tokenFormatRegex = regexp.MustCompile(`^tk_(live|test)_([a-f0-9]{6})_([a-f0-9]{32})$`)
)

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateClientToken creates a new opaque bearer token for a client.
func GenerateClientToken(env string) (string, error) {
	if env != EnvLive && env != EnvTest {
		env = EnvLive
	}

	prefix, err := randomHex(TokenPrefixLen / 2)
	if err != nil {
		return "", fmt.Errorf("generate prefix: %w", err)
	}
	secret, err := randomHex(TokenSecretLen / 2)
	if err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}

	return fmt.Sprintf("tk_%s_%s_%s", env, prefix, secret), nil
}

// ParsedToken contains the parsed parts of a client token.
type ParsedToken struct {
	Env    string
	Prefix string
	Secret string
}

// ParseClientToken extracts the components from a client token.
func ParseClientToken(token string) (*ParsedToken, error) {
	matches := tokenFormatRegex.FindStringSubmatch(token)
	if matches == nil {
		return nil, ErrInvalidTokenFormat
	}

	return &ParsedToken{
		Env:    matches[1],
		Prefix: matches[2],
		Secret: matches[3],
	}, nil
}

// ValidateClientTokenFormat checks if token matches the expected format.
// Callers use it to reject garbage before touching storage.
func ValidateClientTokenFormat(token string) bool {
	return tokenFormatRegex.MatchString(token)
}

// GenerateLoginToken creates a random single-use login token.
func GenerateLoginToken() (string, error) {
	tok, err := randomHex(LoginTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate login token: %w", err)
	}
	return tok, nil
}
