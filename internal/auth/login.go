package auth

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/tryon/tryon/internal/kv"
	"github.com/tryon/tryon/internal/model"
)

const (
	// loginKeyPrefix namespaces login tokens. The suffix is a hash of the
	// token so the plaintext never reaches storage.
	loginKeyPrefix = "login:"

	// DefaultLoginTokenTTL is how long an unread login token stays valid.
	DefaultLoginTokenTTL = 900 * time.Second
)

// Login token errors.
var (
	ErrLoginTokenNotFound = errors.New("login token not found or expired")
	ErrMissingClientID    = errors.New("client id is required")
)

// LoginIssuer creates and redeems single-use login tokens.
type LoginIssuer struct {
	store  kv.Store
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

// LoginOption configures a LoginIssuer.
type LoginOption func(*LoginIssuer)

// WithLoginClock overrides the time source.
func WithLoginClock(now func() time.Time) LoginOption {
	return func(i *LoginIssuer) {
		i.now = now
	}
}

// WithDefaultTTL sets the TTL used when Create is called with ttl <= 0.
func WithDefaultTTL(ttl time.Duration) LoginOption {
	return func(i *LoginIssuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// NewLoginIssuer creates a LoginIssuer backed by store.
func NewLoginIssuer(store kv.Store, logger *slog.Logger, opts ...LoginOption) *LoginIssuer {
	if logger == nil {
		logger = slog.Default()
	}
	i := &LoginIssuer{
		store:  store,
		logger: logger.With("component", "auth.login"),
		ttl:    DefaultLoginTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// loginKey derives the storage key for a plaintext token.
func loginKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return loginKeyPrefix + hex.EncodeToString(sum[:])
}

// Create issues a token for clientID valid for ttl (the default when ttl <= 0).
// The returned token must be delivered out of band and is never logged.
func (i *LoginIssuer) Create(ctx context.Context, clientID string, ttl time.Duration) (string, error) {
	if clientID == "" {
		return "", ErrMissingClientID
	}
	if ttl <= 0 {
		ttl = i.ttl
	}

	token, err := GenerateLoginToken()
	if err != nil {
		return "", err
	}

	record := model.LoginToken{
		ClientID:  clientID,
		ExpiresAt: i.now().Add(ttl).UnixMilli(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal login token: %w", err)
	}

	key := loginKey(token)
	if err := i.store.Set(ctx, key, string(data)); err != nil {
		return "", fmt.Errorf("store login token: %w", err)
	}
	if err := i.store.Expire(ctx, key, ttl); err != nil {
		return "", fmt.Errorf("expire login token: %w", err)
	}

	i.logger.Debug("login token issued", "client_id", clientID, "ttl", ttl)
	return token, nil
}

// Consume exchanges token for its client id exactly once. Absent or expired
// tokens return ErrLoginTokenNotFound and leave storage untouched.
func (i *LoginIssuer) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrLoginTokenNotFound
	}
	key := loginKey(token)

	raw, ok, err := i.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read login token: %w", err)
	}
	if !ok {
		return "", ErrLoginTokenNotFound
	}

	var record model.LoginToken
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		i.logger.Warn("corrupt login token record", "error", err)
		return "", ErrLoginTokenNotFound
	}
	if record.IsExpired(i.now()) {
		return "", ErrLoginTokenNotFound
	}

	// GetDel is the atomic claim; a concurrent consumer that won the race
	// leaves nothing behind.
	if _, ok, err := i.store.GetDel(ctx, key); err != nil {
		return "", fmt.Errorf("claim login token: %w", err)
	} else if !ok {
		return "", ErrLoginTokenNotFound
	}

	i.logger.Info("login token consumed", "client_id", record.ClientID)
	return record.ClientID, nil
}
