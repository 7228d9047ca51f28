package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MaxIDLength is the maximum length of a client or embed id in a URL.
const MaxIDLength = 64

// ValidID reports whether id is 1-64 characters of letters, digits, '-' or
// '_'.
func ValidID(id string) bool {
	if id == "" || len(id) > MaxIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// ValidateURLParam rejects requests whose route parameter is not a ValidID
// with 400 before any storage access.
func ValidateURLParam(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ValidID(chi.URLParam(r, param)) {
				writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid "+param)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
