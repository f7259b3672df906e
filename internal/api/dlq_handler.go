package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sungwon/move-booking/internal/logger"
	"github.com/sungwon/move-booking/internal/queue"
)

const (
	defaultDLQListLimit = 50
	maxDLQListLimit     = 1000
	maxReprocessIDs     = 1000
)

// dlqReprocessRequest is the JSON body for POST /api/v1/admin/dlq/reprocess.
type dlqReprocessRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// dlqReprocessResponse is the JSON response for a DLQ reprocess operation.
type dlqReprocessResponse struct {
	Reprocessed int `json:"reprocessed"`
	Total       int `json:"total"`
}

// dlqListResponse is the JSON response for GET /api/v1/admin/dlq.
type dlqListResponse struct {
	Entries []queue.DLQEntry `json:"entries"`
	Count   int              `json:"count"`
}

// DLQListHandler handles GET /api/v1/admin/dlq?limit=N.
// It lists dead-lettered jobs without removing them.
func DLQListHandler(dlq queue.DeadLetterQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		limit := defaultDLQListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				respondError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxDLQListLimit)
		}

		entries, err := dlq.List(r.Context(), limit)
		if err != nil {
			log.Error().Err(err).Int("limit", limit).Msg("dlq list failed")
			respondError(w, http.StatusInternalServerError, msgInternalError)
			return
		}
		if entries == nil {
			entries = []queue.DLQEntry{}
		}

		respondJSON(w, http.StatusOK, dlqListResponse{Entries: entries, Count: len(entries)})
	}
}

// DLQReprocessHandler handles POST /api/v1/admin/dlq/reprocess.
// It re-enqueues messages from the dead letter queue back to the primary queue.
func DLQReprocessHandler(dlq queue.DeadLetterQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req dlqReprocessRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, DefaultMaxBodyBytes)).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if len(req.MessageIDs) == 0 {
			respondError(w, http.StatusBadRequest, "message_ids is required and must not be empty")
			return
		}
		if len(req.MessageIDs) > maxReprocessIDs {
			respondError(w, http.StatusBadRequest, "too many message_ids")
			return
		}

		reprocessed, err := dlq.Reprocess(r.Context(), req.MessageIDs)
		if err != nil {
			log.Error().Err(err).
				Int("requested", len(req.MessageIDs)).
				Int("reprocessed", reprocessed).
				Msg("dlq reprocess failed")
			respondError(w, http.StatusInternalServerError, msgInternalError)
			return
		}

		log.Info().
			Int("reprocessed", reprocessed).
			Int("total", len(req.MessageIDs)).
			Msg("dlq reprocess completed")

		respondJSON(w, http.StatusOK, dlqReprocessResponse{
			Reprocessed: reprocessed,
			Total:       len(req.MessageIDs),
		})
	}
}
