package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/onnwee/forcegraph/internal/apierr"
	"github.com/onnwee/forcegraph/internal/errorreporting"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/tracing"
)

// Precalculator runs one stored-graph layout pass.
type Precalculator interface {
	PrecalculateLayout(ctx context.Context) error
}

// PrecalcHandler lets an operator trigger a precalculation outside the
// job schedule. Only one manual run may be in flight.
type PrecalcHandler struct {
	svc     Precalculator
	running atomic.Bool
}

// NewPrecalcHandler answers 503 when svc is nil.
func NewPrecalcHandler(svc Precalculator) *PrecalcHandler {
	return &PrecalcHandler{svc: svc}
}

// Run executes a precalculation synchronously.
// POST /api/admin/layout/precalculate
func (h *PrecalcHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("No database configured"))
		return
	}
	if !h.running.CompareAndSwap(false, true) {
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("Precalculation already running"))
		return
	}
	defer h.running.Store(false)

	ctx, span := tracing.StartSpan(r.Context(), "handlers.Precalc.Run")
	defer span.End()

	start := time.Now()
	if err := h.svc.PrecalculateLayout(ctx); err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "manual precalculation failed", "error", err)
		errorreporting.CaptureErrorWithContext(err, map[string]string{"component": "admin_precalc"}, nil)
		apierr.WriteErrorWithContext(w, r, apierr.New(apierr.ErrLayoutFailed, "Precalculation failed", http.StatusInternalServerError))
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":   "ok",
		"duration": time.Since(start).String(),
	})
}
