// Package rest provides a key-value backend that issues one authenticated
// HTTP call per command against an Upstash-compatible REST endpoint.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Name is the backend identifier reported by Store.Name.
const Name = "rest"

const (
	// ClientTimeout is the total per-command timeout.
	ClientTimeout = 5 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 3 * time.Second
	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// ErrCommand is returned when the endpoint reports a command error.
var ErrCommand = errors.New("rest command failed")

// Store sends each command as a JSON array, e.g. ["SET","k","v"].
type Store struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		s.client = c
	}
}

// New creates a REST store. baseURL and token must both be set.
func New(baseURL, token string, opts ...Option) (*Store, error) {
	if baseURL == "" || token == "" {
		return nil, errors.New("rest store requires base URL and token")
	}
	s := &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewHTTPClient creates an HTTP client with short timeouts suitable for
// per-request serverless use.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   DialTimeout,
			ResponseHeaderTimeout: ClientTimeout,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// response is the endpoint's reply envelope.
type response struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// do executes one command and returns the raw result.
func (s *Store) do(ctx context.Context, args ...string) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", args[0], err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", args[0], err)
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: status %d: decode response: %w", args[0], resp.StatusCode, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrCommand, args[0], out.Error)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s: status %d", ErrCommand, args[0], resp.StatusCode)
	}
	return out.Result, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func decodeString(raw json.RawMessage) (string, bool, error) {
	if isNull(raw) {
		return "", false, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false, fmt.Errorf("decode string result: %w", err)
	}
	return v, true, nil
}

func decodeStrings(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode array result: %w", err)
	}
	return v, nil
}

func decodeInt(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	// Some deployments encode integers as strings.
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("decode integer result: %w", err)
	}
	return strconv.ParseInt(s, 10, 64)
}

// Get returns the string value at key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	raw, err := s.do(ctx, "GET", key)
	if err != nil {
		return "", false, err
	}
	return decodeString(raw)
}

// Set stores value at key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.do(ctx, "SET", key, value)
	return err
}

// Del removes key.
func (s *Store) Del(ctx context.Context, key string) (bool, error) {
	raw, err := s.do(ctx, "DEL", key)
	if err != nil {
		return false, err
	}
	n, err := decodeInt(raw)
	return n > 0, err
}

// GetDel atomically reads and removes key.
func (s *Store) GetDel(ctx context.Context, key string) (string, bool, error) {
	raw, err := s.do(ctx, "GETDEL", key)
	if err != nil {
		return "", false, err
	}
	return decodeString(raw)
}

// Expire sets a TTL on key, rounded up to whole seconds.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	secs := int64((ttl + time.Second - 1) / time.Second)
	_, err := s.do(ctx, "EXPIRE", key, strconv.FormatInt(secs, 10))
	return err
}

// SAdd adds member to the set at key.
func (s *Store) SAdd(ctx context.Context, key, member string) error {
	_, err := s.do(ctx, "SADD", key, member)
	return err
}

// SMembers returns all members of the set at key.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	raw, err := s.do(ctx, "SMEMBERS", key)
	if err != nil {
		return nil, err
	}
	return decodeStrings(raw)
}

// SRem removes member from the set at key.
func (s *Store) SRem(ctx context.Context, key, member string) error {
	_, err := s.do(ctx, "SREM", key, member)
	return err
}

// LPush prepends value to the list at key.
func (s *Store) LPush(ctx context.Context, key, value string) error {
	_, err := s.do(ctx, "LPUSH", key, value)
	return err
}

// LRange returns list elements between start and stop inclusive.
func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	raw, err := s.do(ctx, "LRANGE", key, strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10))
	if err != nil {
		return nil, err
	}
	return decodeStrings(raw)
}

// LTrim trims the list at key.
func (s *Store) LTrim(ctx context.Context, key string, start, stop int64) error {
	_, err := s.do(ctx, "LTRIM", key, strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10))
	return err
}

// Incr increments the counter at key.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	raw, err := s.do(ctx, "INCR", key)
	if err != nil {
		return 0, err
	}
	return decodeInt(raw)
}

// IncrBy increments the counter at key by n.
func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	raw, err := s.do(ctx, "INCRBY", key, strconv.FormatInt(n, 10))
	if err != nil {
		return 0, err
	}
	return decodeInt(raw)
}

// Ping issues PING.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.do(ctx, "PING")
	return err
}

// Name returns "rest".
func (s *Store) Name() string {
	return Name
}

// Close releases idle connections.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
