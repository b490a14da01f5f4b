package handlers

import (
	"net/http"

	"github.com/onnwee/forcegraph/internal/apierr"
	"github.com/onnwee/forcegraph/internal/cache"
	"github.com/onnwee/forcegraph/internal/logger"
)

// CacheAdminHandler handles layout cache administration endpoints.
type CacheAdminHandler struct {
	cache cache.Cache
}

func NewCacheAdminHandler(c cache.Cache) *CacheAdminHandler {
	return &CacheAdminHandler{cache: c}
}

// InvalidateCache drops every cached layout.
// POST /api/admin/cache/invalidate
func (h *CacheAdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("Layout cache disabled"))
		return
	}
	h.cache.Clear()
	logger.InfoContext(r.Context(), "layout cache invalidated")
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Cache invalidated successfully",
	})
}

// GetCacheStats returns current cache statistics.
// GET /api/admin/cache/stats
func (h *CacheAdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("Layout cache disabled"))
		return
	}
	stats := h.cache.Stats()
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"stats":     stats,
		"hit_ratio": stats.HitRatio(),
	})
}
