package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/segmentio/encoding/json"

	"github.com/onnwee/forcegraph/internal/apierr"
	"github.com/onnwee/forcegraph/internal/graph"
	"github.com/onnwee/forcegraph/internal/logger"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WarnContext(r.Context(), "failed to write response", "path", r.URL.Path, "error", err)
	}
}

// layoutRequest is the body of POST /api/layout and the first frame of a
// stream. Params absent from the body keep the service defaults.
type layoutRequest struct {
	Graph  graph.Graph  `json:"graph"`
	Params graph.Params `json:"params"`
}

func decodeLayoutRequest(body io.Reader, defaults graph.Params) (layoutRequest, *apierr.Error) {
	req := layoutRequest{Params: defaults}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, apierr.ValidationBodyTooLarge(tooLarge.Limit)
		}
		return req, apierr.ValidationInvalidJSON()
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, apierr.ValidationInvalidJSON()
	}
	return req, nil
}

// checkNodeLimit rejects graphs above limit. limit <= 0 disables the check.
func checkNodeLimit(g graph.Graph, limit int) *apierr.Error {
	if limit > 0 && len(g.Nodes) > limit {
		return apierr.LayoutTooLarge(len(g.Nodes), limit)
	}
	return nil
}
