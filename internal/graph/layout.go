package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/forcegraph/internal/metrics"
	"github.com/onnwee/forcegraph/internal/quadtree"
	"github.com/onnwee/forcegraph/internal/tracing"
)

// Tick is a snapshot handed to the per-iteration callback.
type Tick struct {
	Iteration    int            `json:"iteration"`
	Temperature  float64        `json:"temperature"`
	Displacement float64        `json:"displacement"`
	Tree         quadtree.Stats `json:"tree"`
	Positions    []Position     `json:"positions"`
}

// TickFunc observes each iteration. Returning an error aborts the run.
type TickFunc func(Tick) error

// Result is the outcome of a layout run.
type Result struct {
	Positions  []Position     `json:"positions"`
	Iterations int            `json:"iterations"`
	Duration   time.Duration  `json:"duration_ns"`
	Tree       quadtree.Stats `json:"tree"`
}

// layout holds the mutable state of one run. points doubles as the body
// set handed to each tick's quad-tree.
type layout struct {
	params Params
	ids    []string
	points []quadtree.Point
	edges  [][2]int
	dispX  []float64
	dispY  []float64
}

func newLayout(g Graph, p Params) *layout {
	n := len(g.Nodes)
	index := make(map[string]int, n)
	for i, node := range g.Nodes {
		index[node.ID] = i
	}

	degree := make([]int, n)
	edges := make([][2]int, 0, len(g.Links))
	for _, link := range g.Links {
		a, b := index[link.Source], index[link.Target]
		if a == b {
			continue
		}
		degree[a]++
		degree[b]++
		edges = append(edges, [2]int{a, b})
	}

	l := &layout{
		params: p,
		ids:    make([]string, n),
		points: make([]quadtree.Point, n),
		edges:  edges,
		dispX:  make([]float64, n),
		dispY:  make([]float64, n),
	}

	radius := p.IdealLength * math.Sqrt(float64(n)) / 2
	taken := make(map[[2]float64]int, n)
	for i, node := range g.Nodes {
		mass := node.Weight
		if mass <= 0 {
			mass = 1 + float64(degree[i])
		}
		x, y := node.X, node.Y
		if !node.HasPos {
			angle := 2 * math.Pi * float64(i) / float64(n)
			x, y = radius*math.Cos(angle), radius*math.Sin(angle)
		}
		// Coincident seeds never repel each other; fan them out a little.
		key := [2]float64{x, y}
		if k := taken[key]; k > 0 {
			angle := float64(k) * 2.399963 // golden angle
			r := p.IdealLength * 0.01 * math.Sqrt(float64(k))
			x += r * math.Cos(angle)
			y += r * math.Sin(angle)
		}
		taken[key]++

		l.ids[i] = node.ID
		l.points[i] = quadtree.Point{ID: node.ID, X: x, Y: y, Mass: mass}
	}
	return l
}

func (l *layout) temperature(it int) float64 {
	return l.params.InitialTemp * (1 - float64(it)/float64(l.params.Iterations))
}

// step runs one tick: rebuild the tree, accumulate forces, move bodies.
// It returns the tree it built and the total displacement applied.
func (l *layout) step(it int) (*quadtree.Tree, float64, error) {
	for i := range l.dispX {
		l.dispX[i] = 0
		l.dispY[i] = 0
	}

	tree, err := buildBarnesHutTree(l.points)
	if err != nil {
		return nil, 0, fmt.Errorf("build tree at iteration %d: %w", it, err)
	}

	k := l.params.IdealLength
	calculateBarnesHutForces(l.points, tree, l.params.Theta, l.params.repulsion(), l.dispX, l.dispY)

	// Spring attraction along links
	for _, e := range l.edges {
		a, b := &l.points[e[0]], &l.points[e[1]]
		dx := a.X - b.X
		dy := a.Y - b.Y
		dist := math.Hypot(dx, dy)
		if dist < minDistance {
			continue
		}
		force := (dist * dist) / k
		ax := dx / dist * force
		ay := dy / dist * force
		l.dispX[e[0]] -= ax
		l.dispY[e[0]] -= ay
		l.dispX[e[1]] += ax
		l.dispY[e[1]] += ay
	}

	temp := l.temperature(it)
	total := 0.0
	for i := range l.points {
		p := &l.points[i]
		dx := l.dispX[i] - l.params.Gravity*p.X
		dy := l.dispY[i] - l.params.Gravity*p.Y
		disp := math.Hypot(dx, dy)
		if disp == 0 || math.IsNaN(disp) || math.IsInf(disp, 0) {
			continue
		}
		move := math.Min(disp, temp)
		p.X += dx / disp * move
		p.Y += dy / disp * move
		total += move
	}
	return tree, total, nil
}

func (l *layout) positions() []Position {
	out := make([]Position, len(l.points))
	for i, p := range l.points {
		out[i] = Position{ID: l.ids[i], X: p.X, Y: p.Y}
	}
	return out
}

// ComputeLayout runs a force-directed layout of g. Every iteration builds a
// fresh Barnes-Hut quad-tree over the current positions to approximate
// node repulsion. onTick may be nil.
func ComputeLayout(ctx context.Context, g Graph, p Params, onTick TickFunc) (*Result, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "graph.ComputeLayout", trace.WithAttributes(
		attribute.Int("graph.nodes", len(g.Nodes)),
		attribute.Int("graph.links", len(g.Links)),
		attribute.Int("layout.iterations", p.Iterations),
		attribute.Float64("layout.theta", p.Theta),
	))
	defer span.End()

	start := time.Now()
	l := newLayout(g, p)
	progress := newProgressLogger("layout", p.Iterations/10)

	var last *quadtree.Tree
	for it := 0; it < p.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "canceled")
			return nil, err
		}

		tickStart := time.Now()
		tree, moved, err := l.step(it)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		metrics.LayoutTickDuration.Observe(time.Since(tickStart).Seconds())
		last = tree

		if onTick != nil {
			if err := onTick(Tick{
				Iteration:    it,
				Temperature:  l.temperature(it),
				Displacement: moved,
				Tree:         tree.Stats(),
				Positions:    l.positions(),
			}); err != nil {
				return nil, fmt.Errorf("tick %d: %w", it, err)
			}
		}
		progress.Inc(1)
	}

	stats := last.Stats()
	metrics.LayoutTreeNodes.Set(float64(stats.Nodes))
	metrics.LayoutOverflowLeaves.Set(float64(stats.Overflow))
	span.SetAttributes(
		attribute.Int("quadtree.nodes", stats.Nodes),
		attribute.Int("quadtree.depth", stats.Depth),
		attribute.Int("quadtree.overflow", stats.Overflow),
	)

	res := &Result{
		Positions:  l.positions(),
		Iterations: p.Iterations,
		Duration:   time.Since(start),
		Tree:       stats,
	}
	progress.Done(fmt.Sprintf("%d nodes in %s", len(g.Nodes), res.Duration))
	return res, nil
}
