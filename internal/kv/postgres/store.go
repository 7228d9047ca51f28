// Package postgres provides a durable key-value backend on PostgreSQL.
// Scalars and counters share kv_values, sets live in kv_sets and lists in
// kv_lists ordered by an increasing id (highest id is the list head).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tryon/tryon/internal/kv"
)

// Name is the backend identifier reported by Store.Name.
const Name = "postgres"

// invalidTextRepresentation is the SQLSTATE raised when a counter holds text.
const invalidTextRepresentation = "22P02"

const schema = `
CREATE TABLE IF NOT EXISTS kv_values (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS kv_sets (
	key    TEXT NOT NULL,
	member TEXT NOT NULL,
	PRIMARY KEY (key, member)
);
CREATE TABLE IF NOT EXISTS kv_lists (
	id    BIGSERIAL PRIMARY KEY,
	key   TEXT NOT NULL,
	value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS kv_lists_key_id_idx ON kv_lists (key, id DESC);
`

// Store implements kv.Store with a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and ensures the schema exists.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create kv schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Get returns the unexpired string value at key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM kv_values
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
	`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres get: %w", err)
	}
	return value, true, nil
}

// Set upserts value at key and clears any expiry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_values (key, value, expires_at) VALUES ($1, $2, NULL)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = NULL
	`, key, value)
	if err != nil {
		return fmt.Errorf("postgres set: %w", err)
	}
	return nil
}

// Del removes key from every table.
func (s *Store) Del(ctx context.Context, key string) (bool, error) {
	var removed int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, q := range []string{
			`DELETE FROM kv_values WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
			`DELETE FROM kv_sets WHERE key = $1`,
			`DELETE FROM kv_lists WHERE key = $1`,
		} {
			tag, err := tx.Exec(ctx, q, key)
			if err != nil {
				return err
			}
			removed += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("postgres del: %w", err)
	}
	return removed > 0, nil
}

// GetDel deletes key and returns its value if it had not expired.
func (s *Store) GetDel(ctx context.Context, key string) (string, bool, error) {
	var value string
	var expiresAt *time.Time
	err := s.pool.QueryRow(ctx, `
		DELETE FROM kv_values WHERE key = $1 RETURNING value, expires_at
	`, key).Scan(&value, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres getdel: %w", err)
	}
	if expiresAt != nil && !time.Now().Before(*expiresAt) {
		return "", false, nil
	}
	return value, true, nil
}

// Expire sets a TTL on a scalar key. Sets and lists do not expire.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE kv_values SET expires_at = now() + make_interval(secs => $2)
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
	`, key, ttl.Seconds())
	if err != nil {
		return fmt.Errorf("postgres expire: %w", err)
	}
	return nil
}

// SAdd adds member to the set at key.
func (s *Store) SAdd(ctx context.Context, key, member string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_sets (key, member) VALUES ($1, $2) ON CONFLICT DO NOTHING
	`, key, member)
	if err != nil {
		return fmt.Errorf("postgres sadd: %w", err)
	}
	return nil
}

// SMembers returns all members of the set at key.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT member FROM kv_sets WHERE key = $1`, key)
	if err != nil {
		return nil, fmt.Errorf("postgres smembers: %w", err)
	}
	members, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres smembers: %w", err)
	}
	return members, nil
}

// SRem removes member from the set at key.
func (s *Store) SRem(ctx context.Context, key, member string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_sets WHERE key = $1 AND member = $2`, key, member)
	if err != nil {
		return fmt.Errorf("postgres srem: %w", err)
	}
	return nil
}

// LPush appends a row that becomes the new list head.
func (s *Store) LPush(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO kv_lists (key, value) VALUES ($1, $2)`, key, value)
	if err != nil {
		return fmt.Errorf("postgres lpush: %w", err)
	}
	return nil
}

func (s *Store) listLen(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, key string) (int64, error) {
	var n int64
	if err := q.QueryRow(ctx, `SELECT count(*) FROM kv_lists WHERE key = $1`, key).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// LRange returns list elements between start and stop inclusive, newest first.
func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	n, err := s.listLen(ctx, s.pool, key)
	if err != nil {
		return nil, fmt.Errorf("postgres lrange: %w", err)
	}
	from, to, ok := kv.ResolveRange(start, stop, n)
	if !ok {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT value FROM kv_lists WHERE key = $1
		ORDER BY id DESC OFFSET $2 LIMIT $3
	`, key, from, to-from)
	if err != nil {
		return nil, fmt.Errorf("postgres lrange: %w", err)
	}
	vals, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres lrange: %w", err)
	}
	return vals, nil
}

// LTrim deletes every element outside the window.
func (s *Store) LTrim(ctx context.Context, key string, start, stop int64) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		n, err := s.listLen(ctx, tx, key)
		if err != nil {
			return err
		}
		from, to, ok := kv.ResolveRange(start, stop, n)
		if !ok {
			_, err := tx.Exec(ctx, `DELETE FROM kv_lists WHERE key = $1`, key)
			return err
		}
		_, err = tx.Exec(ctx, `
			DELETE FROM kv_lists WHERE id IN (
				SELECT id FROM (
					SELECT id, row_number() OVER (ORDER BY id DESC) - 1 AS pos
					FROM kv_lists WHERE key = $1
				) ranked
				WHERE pos < $2 OR pos >= $3
			)
		`, key, from, to)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres ltrim: %w", err)
	}
	return nil
}

// Incr increments the counter at key.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

// IncrBy atomically increments the counter at key by n. An expired counter
// restarts from zero.
func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	var value string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO kv_values (key, value, expires_at) VALUES ($1, $2::bigint::text, NULL)
		ON CONFLICT (key) DO UPDATE SET
			value = CASE
				WHEN kv_values.expires_at IS NOT NULL AND kv_values.expires_at <= now()
					THEN $2::bigint::text
				ELSE (kv_values.value::bigint + $2::bigint)::text
			END,
			expires_at = CASE
				WHEN kv_values.expires_at IS NOT NULL AND kv_values.expires_at <= now()
					THEN NULL
				ELSE kv_values.expires_at
			END
		RETURNING value
	`, key, n).Scan(&value)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
			return 0, kv.ErrNotInteger
		}
		return 0, fmt.Errorf("postgres incrby: %w", err)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Name returns "postgres".
func (s *Store) Name() string {
	return Name
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// SweepExpired deletes expired scalar rows and returns how many were removed.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_values WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("postgres sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}
