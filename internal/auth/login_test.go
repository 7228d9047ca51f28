package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tryon/tryon/internal/kv/memory"
	"github.com/tryon/tryon/internal/testutil"
)

func newTestIssuer(t *testing.T) (*LoginIssuer, *memory.Store, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	store := memory.New(memory.WithClock(clock.Now))
	return NewLoginIssuer(store, nil, WithLoginClock(clock.Now)), store, clock
}

func TestLoginIssuer_ConsumeOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	issuer, _, _ := newTestIssuer(t)

	token, err := issuer.Create(ctx, "acme", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	clientID, err := issuer.Consume(ctx, token)
	if err != nil || clientID != "acme" {
		t.Fatalf("Consume = %q, %v; want acme", clientID, err)
	}

	if _, err := issuer.Consume(ctx, token); !errors.Is(err, ErrLoginTokenNotFound) {
		t.Errorf("second Consume error = %v, want ErrLoginTokenNotFound", err)
	}
}

func TestLoginIssuer_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	issuer, _, clock := newTestIssuer(t)

	token, _ := issuer.Create(ctx, "acme", time.Minute)
	clock.Advance(time.Minute)

	if _, err := issuer.Consume(ctx, token); !errors.Is(err, ErrLoginTokenNotFound) {
		t.Errorf("Consume after TTL error = %v, want ErrLoginTokenNotFound", err)
	}
}

func TestLoginIssuer_DefaultTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	issuer, _, clock := newTestIssuer(t)

	token, _ := issuer.Create(ctx, "acme", 0)
	clock.Advance(DefaultLoginTokenTTL - time.Second)

	if id, err := issuer.Consume(ctx, token); err != nil || id != "acme" {
		t.Errorf("Consume before default TTL = %q, %v", id, err)
	}
}

func TestLoginIssuer_ExpiredTokenHasNoSideEffect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Storage that ignores TTLs, so only the record's expiresAt protects it.
	store := memory.New()
	clock := testutil.NewClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	issuer := NewLoginIssuer(store, nil, WithLoginClock(clock.Now))

	token, _ := issuer.Create(ctx, "acme", time.Minute)
	clock.Advance(2 * time.Minute)

	if _, err := issuer.Consume(ctx, token); !errors.Is(err, ErrLoginTokenNotFound) {
		t.Fatalf("Consume expired error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, loginKey(token)); !ok {
		t.Error("expired token record should not be deleted by Consume")
	}
}

func TestLoginIssuer_PlaintextNotStored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	issuer, store, _ := newTestIssuer(t)

	token, _ := issuer.Create(ctx, "acme", 0)

	if _, ok, _ := store.Get(ctx, loginKeyPrefix+token); ok {
		t.Error("token must not be stored under its plaintext")
	}
	if key := loginKey(token); !strings.HasPrefix(key, loginKeyPrefix) || strings.Contains(key, token) {
		t.Errorf("loginKey(%q) = %q", token, key)
	}
}

func TestLoginIssuer_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	issuer, _, _ := newTestIssuer(t)

	if _, err := issuer.Create(ctx, "", 0); !errors.Is(err, ErrMissingClientID) {
		t.Errorf("Create(\"\") error = %v, want ErrMissingClientID", err)
	}
	if _, err := issuer.Consume(ctx, ""); !errors.Is(err, ErrLoginTokenNotFound) {
		t.Errorf("Consume(\"\") error = %v", err)
	}
	if _, err := issuer.Consume(ctx, "never-issued"); !errors.Is(err, ErrLoginTokenNotFound) {
		t.Errorf("Consume(unknown) error = %v", err)
	}
}

func TestLoginIssuer_ConcurrentConsume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	issuer, _, _ := newTestIssuer(t)

	token, _ := issuer.Create(ctx, "acme", 0)

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := issuer.Consume(ctx, token); err == nil {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("token redeemed %d times, want exactly 1", wins)
	}
}
