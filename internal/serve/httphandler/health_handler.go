package httphandler

import (
	"net/http"
	"time"

	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
)

// Status indicates whether the service is healthy or not.
type Status string

const (
	// StatusHealthy indicates that the service is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates that the service is unhealthy.
	StatusUnhealthy Status = "unhealthy"
)

// HealthResponse is the body served on /health. Uptime is reported in whole
// seconds since the process started.
type HealthResponse struct {
	Status    Status            `json:"status"`
	Uptime    int64             `json:"uptime"`
	Version   string            `json:"version,omitempty"`
	ServiceID string            `json:"service_id,omitempty"`
	ReleaseID string            `json:"release_id,omitempty"`
	Services  map[string]Status `json:"services,omitempty"`
}

// HealthHandler implements a simple handler that returns the health response.
type HealthHandler struct {
	Version   string
	ServiceID string
	ReleaseID string
	Store     kvstore.Store
	StartedAt time.Time
}

// ServeHTTP implements the http.Handler interface.
func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kvStatus, responseStatus := StatusHealthy, StatusHealthy
	if err := h.Store.Ping(ctx); err != nil {
		kvStatus = StatusUnhealthy
		responseStatus = StatusUnhealthy
	}

	response := HealthResponse{
		Status:    responseStatus,
		Uptime:    int64(time.Since(h.StartedAt).Seconds()),
		Version:   h.Version,
		ServiceID: h.ServiceID,
		ReleaseID: h.ReleaseID,
		Services: map[string]Status{
			"kv": kvStatus,
		},
	}

	// An unreachable KV store means no deposit state can be read or written,
	// so signal the orchestrator with a 503.
	if response.Status == StatusUnhealthy {
		httpjson.RenderStatus(w, http.StatusServiceUnavailable, response, httpjson.JSON)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, response, httpjson.JSON)
}
