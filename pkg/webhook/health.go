package webhook

import (
	"net/http"

	"gitaiops/internal"
)

// HealthHandler reports queue, worker and breaker health for an external
// monitoring collaborator.
type HealthHandler struct {
	Queue        *internal.Queue
	WorkerCount  func() int
	Running      func() bool
	BreakerState func() string
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	depthByKind := h.Queue.DepthByKind()
	perKind := make(map[string]int, len(depthByKind))
	for kind, depth := range depthByKind {
		perKind[string(kind)] = depth
	}

	running := h.Running == nil || h.Running()
	status := "healthy"
	if !running {
		status = "stopped"
	}

	body := map[string]interface{}{
		"status":             status,
		"queue_size":         h.Queue.Depth(),
		"queue_size_by_kind": perKind,
		"cache_hit_rate":     internal.CacheHitRate(),
	}
	if h.WorkerCount != nil {
		body["workers"] = h.WorkerCount()
	}
	if h.BreakerState != nil {
		body["circuit_state"] = h.BreakerState()
	}

	code := http.StatusOK
	if !running {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}
