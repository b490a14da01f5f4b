package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"

	"github.com/onnwee/forcegraph/internal/cache"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/metrics"
	"github.com/onnwee/forcegraph/internal/tracing"
)

// Store is the persistence the service needs: the graph to lay out, a
// place to write positions back, and a log of runs.
type Store interface {
	LoadGraph(ctx context.Context, maxNodes int) (Graph, error)
	SavePositions(ctx context.Context, positions []Position) error
	RecordRun(ctx context.Context, run Run) error
}

// Run describes one completed precalculation.
type Run struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Nodes     int           `json:"nodes"`
	Links     int           `json:"links"`
	Saved     int           `json:"saved"`
	Params    Params        `json:"params"`
}

type Service struct {
	store    Store
	cache    cache.Cache
	params   Params
	maxNodes int
	cacheTTL time.Duration
}

// NewService wires a layout service. store and c may be nil when the
// service is only used for ad-hoc layouts or caching is disabled.
func NewService(store Store, c cache.Cache, params Params, maxNodes int) *Service {
	return &Service{
		store:    store,
		cache:    c,
		params:   params,
		maxNodes: maxNodes,
	}
}

// WithCacheTTL overrides the cache default TTL for layout results.
func (s *Service) WithCacheTTL(ttl time.Duration) *Service {
	s.cacheTTL = ttl
	return s
}

// Params returns the service defaults.
func (s *Service) Params() Params {
	return s.params
}

// Compute runs a layout and records metrics for it.
func (s *Service) Compute(ctx context.Context, g Graph, p Params, onTick TickFunc) (*Result, error) {
	start := time.Now()
	res, err := ComputeLayout(ctx, g, p, onTick)
	metrics.LayoutDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LayoutRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.LayoutRunsTotal.WithLabelValues("success").Inc()
	metrics.LayoutNodes.Set(float64(len(g.Nodes)))
	return res, nil
}

// ComputeCached is Compute with results memoized on the graph and params.
// The second return value reports a cache hit.
func (s *Service) ComputeCached(ctx context.Context, g Graph, p Params) (*Result, bool, error) {
	if s.cache == nil {
		res, err := s.Compute(ctx, g, p, nil)
		return res, false, err
	}

	key, err := cacheKey(g, p)
	if err != nil {
		return nil, false, err
	}
	if data, ok := s.cache.Get(key); ok {
		var res Result
		if err := json.Unmarshal(data, &res); err == nil {
			metrics.LayoutCacheHits.Inc()
			return &res, true, nil
		}
		s.cache.Delete(key)
	}
	metrics.LayoutCacheMisses.Inc()

	res, err := s.Compute(ctx, g, p, nil)
	if err != nil {
		return nil, false, err
	}
	if data, err := json.Marshal(res); err == nil {
		s.cache.Set(key, data, s.cacheTTL)
	} else {
		logger.WarnContext(ctx, "failed to encode layout for cache", "error", err)
	}
	return res, false, nil
}

func cacheKey(g Graph, p Params) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(g); err != nil {
		return "", fmt.Errorf("hash graph: %w", err)
	}
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("hash params: %w", err)
	}
	return "layout:" + hex.EncodeToString(h.Sum(nil)), nil
}

// PrecalculateLayout loads the stored graph, lays it out with the service
// defaults and writes back every position that moved more than Epsilon.
func (s *Service) PrecalculateLayout(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("precalculate layout: no store configured")
	}
	ctx, span := tracing.StartSpan(ctx, "graph.PrecalculateLayout")
	defer span.End()

	log := logger.WithComponent("graph")
	started := time.Now()

	g, err := s.store.LoadGraph(ctx, s.maxNodes)
	if err != nil {
		metrics.LayoutPrecalculationErrors.Inc()
		return fmt.Errorf("failed to load graph: %w", err)
	}
	if len(g.Nodes) == 0 {
		log.Info("no nodes to lay out")
		return nil
	}

	res, err := s.Compute(ctx, g, s.params, nil)
	if err != nil {
		metrics.LayoutPrecalculationErrors.Inc()
		return fmt.Errorf("failed to compute layout: %w", err)
	}

	changed := movedPositions(g, res.Positions, s.params.Epsilon)
	if len(changed) > 0 {
		if err := s.store.SavePositions(ctx, changed); err != nil {
			metrics.LayoutPrecalculationErrors.Inc()
			return fmt.Errorf("failed to save positions: %w", err)
		}
	}

	run := Run{
		ID:        uuid.NewString(),
		StartedAt: started,
		Duration:  time.Since(started),
		Nodes:     len(g.Nodes),
		Links:     len(g.Links),
		Saved:     len(changed),
		Params:    s.params,
	}
	if err := s.store.RecordRun(ctx, run); err != nil {
		// Positions are already saved; a missing audit row is not fatal.
		log.Warn("failed to record layout run", "run_id", run.ID, "error", err)
	}

	log.Info("layout precalculated",
		"run_id", run.ID,
		"nodes", run.Nodes,
		"links", run.Links,
		"saved", run.Saved,
		"depth", res.Tree.Depth,
		"duration", run.Duration.String(),
	)
	return nil
}

// movedPositions keeps positions for nodes that had none before or moved
// farther than epsilon.
func movedPositions(g Graph, positions []Position, epsilon float64) []Position {
	if epsilon <= 0 {
		return positions
	}
	out := make([]Position, 0, len(positions))
	for i, pos := range positions {
		prev := g.Nodes[i]
		if !prev.HasPos || math.Hypot(pos.X-prev.X, pos.Y-prev.Y) > epsilon {
			out = append(out, pos)
		}
	}
	return out
}
