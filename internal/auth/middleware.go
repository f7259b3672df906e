package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sungwon/move-booking/internal/logger"
	"github.com/sungwon/move-booking/internal/metrics"
)

// AdminAuth validates admin bearer keys against a bcrypt hash. The digest of
// the last accepted key is remembered so repeat calls skip bcrypt.
type AdminAuth struct {
	hash string
	log  zerolog.Logger

	mu       sync.RWMutex
	accepted []byte
}

// NewAdminAuth creates an AdminAuth for the given bcrypt hash. An empty hash
// rejects every request.
func NewAdminAuth(hash string, log zerolog.Logger) *AdminAuth {
	return &AdminAuth{hash: hash, log: log}
}

// Middleware returns an HTTP middleware that requires
// "Authorization: Bearer <admin key>".
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, reason := bearerToken(r)
		if reason == "" && !a.verify(key) {
			reason = "invalid API key"
		}
		if reason != "" {
			metrics.APIAuthFailuresTotal.Inc()
			a.log.Warn().
				Str("correlation_id", logger.CorrelationIDFromContext(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Str("reason", reason).
				Msg("admin authentication failed")
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"`+reason+`"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *AdminAuth) verify(key string) bool {
	if a.hash == "" {
		return false
	}

	digest := sha256.Sum256([]byte(key))
	a.mu.RLock()
	cached := a.accepted
	a.mu.RUnlock()
	if cached != nil && subtle.ConstantTimeCompare(cached, digest[:]) == 1 {
		return true
	}

	if err := VerifyKey(a.hash, key); err != nil {
		return false
	}
	a.mu.Lock()
	a.accepted = digest[:]
	a.mu.Unlock()
	return true
}

// bearerToken extracts the token from the Authorization header. A non-empty
// reason is returned when the header is missing or malformed.
func bearerToken(r *http.Request) (token, reason string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "authorization header required"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "invalid authorization format, expected Bearer <token>"
	}

	token = strings.TrimSpace(parts[1])
	if token == "" {
		return "", "empty API key"
	}
	return token, ""
}
