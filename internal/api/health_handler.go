package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sungwon/move-booking/internal/logger"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthzHandler handles GET /healthz.
// Always returns 200 OK with {"status":"ok"}.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler handles GET /readyz.
// Runs every check; returns 200 if all pass, 503 with Retry-After and the
// failing dependency names otherwise.
func ReadyzHandler(checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		failed := map[string]string{}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				log := logger.FromContext(r.Context())
				log.Warn().Err(err).Str("dependency", c.Name).Msg("readiness check failed")
				failed[c.Name] = "unavailable"
			}
		}

		if len(failed) > 0 {
			w.Header().Set("Retry-After", "30")
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"checks": failed,
			})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
