package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/onnwee/forcegraph/internal/cache"
)

// Pinger is satisfied by the database store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	cache cache.Cache
}

// NewHealthHandler accepts nil for either dependency.
func NewHealthHandler(db Pinger, c cache.Cache) *HealthHandler {
	return &HealthHandler{db: db, cache: c}
}

type healthResponse struct {
	Status   string       `json:"status"`
	Database string       `json:"database"`
	Cache    *cache.Stats `json:"cache,omitempty"`
}

// Health reports liveness plus database reachability.
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "disabled"}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	if h.cache != nil {
		stats := h.cache.Stats()
		resp.Cache = &stats
	}
	writeJSON(w, r, status, resp)
}
