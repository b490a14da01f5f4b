package handlers

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/forcegraph/internal/apierr"
	"github.com/onnwee/forcegraph/internal/errorreporting"
	"github.com/onnwee/forcegraph/internal/graph"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/middleware"
	"github.com/onnwee/forcegraph/internal/tracing"
)

// LayoutHandler computes layouts for graphs posted by clients.
type LayoutHandler struct {
	svc      *graph.Service
	maxNodes int
	timeout  time.Duration
}

func NewLayoutHandler(svc *graph.Service, maxNodes int, timeout time.Duration) *LayoutHandler {
	return &LayoutHandler{svc: svc, maxNodes: maxNodes, timeout: timeout}
}

// Compute lays out the posted graph and returns the final positions.
// POST /api/layout
func (h *LayoutHandler) Compute(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "handlers.Layout.Compute")
	defer span.End()

	req, apiErr := decodeLayoutRequest(r.Body, h.svc.Params())
	if apiErr == nil {
		apiErr = checkNodeLimit(req.Graph, h.maxNodes)
	}
	if apiErr != nil {
		apierr.WriteErrorWithContext(w, r, apiErr)
		return
	}
	span.SetAttributes(
		attribute.Int("nodes", len(req.Graph.Nodes)),
		attribute.Int("links", len(req.Graph.Links)),
		attribute.Int("iterations", req.Params.Iterations),
	)

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, hit, err := h.svc.ComputeCached(ctx, req.Graph, req.Params)
	if err != nil {
		span.RecordError(err)
		writeLayoutError(w, r, err)
		return
	}
	span.SetAttributes(attribute.Bool("cache_hit", hit))

	if hit {
		w.Header().Set(middleware.CacheStatusHeader, "HIT")
	} else {
		w.Header().Set(middleware.CacheStatusHeader, "MISS")
	}
	writeJSON(w, r, http.StatusOK, res)
}

func writeLayoutError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.FromLayoutError(err)
	if apiErr.Status() >= http.StatusInternalServerError && apiErr.Code == apierr.ErrSystemInternal {
		logger.ErrorContext(r.Context(), "layout failed", "error", err)
		errorreporting.CaptureErrorWithContext(err, map[string]string{"endpoint": r.URL.Path}, nil)
	}
	apierr.WriteErrorWithContext(w, r, apiErr)
}
