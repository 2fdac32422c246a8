// Package webhook is the synchronous inbound boundary: verify the
// signature, normalize the payload, enqueue the event. Processing happens
// elsewhere; the only link is the queue.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"gitaiops/internal"
)

// Handler receives GitLab webhook notifications.
type Handler struct {
	secret  string
	maxBody int64
	queue   *internal.Queue
	norm    *Normalizer
	logger  *log.Logger
}

func NewHandler(secret string, maxBody int64, queue *internal.Queue, norm *Normalizer, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{secret: secret, maxBody: maxBody, queue: queue, norm: norm, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"error": "method not allowed"})
		return
	}
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "unreadable body"})
		return
	}

	if !Verify(rawBody, r.Header.Get(SignatureHeader), h.secret) {
		internal.IncSignatureReject()
		h.logger.Printf("security: rejected webhook with invalid signature from %s", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "invalid signature"})
		return
	}

	evt, err := h.norm.Normalize(r.Header.Get(KindHeader), rawBody)
	if err != nil {
		internal.IncNormalizeReject()
		h.logger.Printf("normalize failed: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}

	if err := h.queue.Enqueue(evt); err != nil {
		if errors.Is(err, internal.ErrQueueFull) {
			internal.IncQueueFull()
			w.Header().Set("Retry-After", "30")
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{"error": "queue full, try again later"})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"error": "shutting down"})
		return
	}

	internal.IncEnqueued(evt.Kind)
	h.logger.Printf("accepted event id=%s kind=%s priority=%d project=%d", evt.ID, evt.Kind, evt.Priority, evt.ProjectID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": true,
		"event_id": evt.ID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
