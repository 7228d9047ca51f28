package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tryon/tryon/internal/model"
	"github.com/tryon/tryon/internal/quota"
)

// RateLimiter checks and counts one request against a per-minute window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, scope, identity string, limit int64) (quota.RateLimitResult, error)
}

// UsageRecorder receives a usage event when a request is limited.
type UsageRecorder interface {
	Record(event, embedID string, meta map[string]any) string
}

// RateLimitConfig holds configuration for the per-embed rate limit.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter RateLimiter
	Usage   UsageRecorder // optional
	Scope   string
	// Limit is requests per minute per embed and client IP; 0 disables.
	Limit int64
	// URLParam names the chi route parameter holding the embed id.
	URLParam string
}

// RateLimitEmbed limits requests per embed id and client IP using minute
// counters. Storage errors fail open.
func RateLimitEmbed(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.URLParam == "" {
		cfg.URLParam = "id"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Limit <= 0 || cfg.Limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			embedID := chi.URLParam(r, cfg.URLParam)
			ip := ClientIP(r)

			result, err := cfg.Limiter.CheckRateLimit(r.Context(), cfg.Scope, embedID+":"+ip, cfg.Limit)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("embed_id", embedID),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, result)

			if !result.Allowed {
				retryAfter := time.Until(result.ResetAt)
				if retryAfter < time.Second {
					retryAfter = time.Second
				}
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("scope", cfg.Scope),
					slog.String("embed_id", embedID),
					slog.String("ip", ip),
					slog.Int64("count", result.Count),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				if cfg.Usage != nil {
					cfg.Usage.Record(model.EventRateLimited, embedID, map[string]any{"scope": cfg.Scope})
				}

				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded. Retry after "+
					strconv.Itoa(int(retryAfter.Seconds()))+" seconds.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, result quota.RateLimitResult) {
	remaining := result.Limit - result.Count
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// writeError writes a JSON error body in the API error shape.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

// ClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers for proxied requests.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
