package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/forcegraph/internal/apierr"
	"github.com/onnwee/forcegraph/internal/errorreporting"
	"github.com/onnwee/forcegraph/internal/graph"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/tracing"
)

// LayoutReader reads what the precalculation job persisted.
type LayoutReader interface {
	StoredPositions(ctx context.Context) ([]graph.Position, error)
	RecentRuns(ctx context.Context, limit int) ([]graph.Run, error)
}

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type StoredHandler struct {
	store LayoutReader
}

// NewStoredHandler returns a handler that answers 503 when store is nil.
func NewStoredHandler(store LayoutReader) *StoredHandler {
	return &StoredHandler{store: store}
}

type storedLayoutResponse struct {
	Positions []graph.Position `json:"positions"`
	Count     int              `json:"count"`
}

// GetLayout returns the persisted positions.
// GET /api/layout/stored
func (h *StoredHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("No database configured"))
		return
	}
	ctx, span := tracing.StartSpan(r.Context(), "handlers.Stored.GetLayout")
	defer span.End()

	positions, err := h.store.StoredPositions(ctx)
	if err != nil {
		span.RecordError(err)
		writeDatabaseError(w, r, "stored_positions", err)
		return
	}
	if len(positions) == 0 {
		apierr.WriteErrorWithContext(w, r, apierr.LayoutNoData())
		return
	}
	span.SetAttributes(attribute.Int("positions", len(positions)))
	writeJSON(w, r, http.StatusOK, storedLayoutResponse{Positions: positions, Count: len(positions)})
}

// ListRuns returns recent precalculation runs, newest first.
// GET /api/layout/runs?limit=N
func (h *StoredHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("No database configured"))
		return
	}
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunsLimit {
			apierr.WriteErrorWithContext(w, r,
				apierr.ValidationInvalidValue("limit", "limit must be between 1 and "+strconv.Itoa(maxRunsLimit)))
			return
		}
		limit = n
	}
	ctx, span := tracing.StartSpan(r.Context(), "handlers.Stored.ListRuns")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	runs, err := h.store.RecentRuns(ctx, limit)
	if err != nil {
		span.RecordError(err)
		writeDatabaseError(w, r, "recent_runs", err)
		return
	}
	if runs == nil {
		runs = []graph.Run{}
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"runs": runs})
}

func writeDatabaseError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger.ErrorContext(r.Context(), "database query failed", "operation", op, "error", err)
	errorreporting.CaptureErrorWithContext(err, map[string]string{"operation": op}, nil)
	apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase(""))
}
