package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/guest-reconciler/internal/pkg/httputil"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"` // "healthy", "degraded", "unhealthy"
	Store  string `json:"store"`
	Poller string `json:"poller,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck pings the store. An unreachable store answers 503; a failing
// poller only degrades the status.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := HealthStatus{Status: "healthy", Store: h.storeType}
	if err := h.store.Ping(ctx); err != nil {
		status.Status = "unhealthy"
		status.Error = "store: " + err.Error()
		httputil.JSON(w, http.StatusServiceUnavailable, status)
		return
	}

	if h.poller != nil {
		switch {
		case h.poller.IsRunning():
			status.Poller = "running"
		case h.poller.IsHealthy():
			status.Poller = "idle"
		default:
			status.Poller = "failing"
			status.Status = "degraded"
			status.Error = h.poller.LastError()
		}
	}
	httputil.OK(w, status)
}
