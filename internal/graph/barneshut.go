package graph

import (
	"math"

	"github.com/onnwee/forcegraph/internal/quadtree"
)

// minDistance below which two bodies are treated as coincident and exert
// no force on each other.
const minDistance = 1e-6

// BoundingBox returns a square box enclosing all points with 10% padding on
// every side. The box never collapses to zero size, so a fresh tree can
// always be built from it.
func BoundingBox(points []quadtree.Point) quadtree.Box {
	if len(points) == 0 {
		return quadtree.Box{Left: -0.5, Top: -0.5, Width: 1, Height: 1}
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	// Add 10% padding to avoid edge cases
	padding := math.Max(maxX-minX, maxY-minY) * 0.1
	if padding == 0 {
		padding = 0.5
	}
	minX -= padding
	maxX += padding
	minY -= padding
	maxY += padding

	width := maxX - minX
	height := maxY - minY

	// Make it square so quadrant cells stay square as well
	if width > height {
		minY -= (width - height) / 2
		height = width
	} else if height > width {
		minX -= (height - width) / 2
		width = height
	}

	return quadtree.Box{Left: minX, Top: minY, Width: width, Height: height}
}

// buildBarnesHutTree indexes points for one tick and aggregates masses.
func buildBarnesHutTree(points []quadtree.Point) (*quadtree.Tree, error) {
	tree := quadtree.New(BoundingBox(points))
	if err := tree.InsertAll(points); err != nil {
		return nil, err
	}
	tree.CalculateMassAndCenter()
	return tree, nil
}

// calculateForce computes the repulsive force on p using the Barnes-Hut
// opening criterion: a cell whose size/distance ratio is below theta is
// treated as a single body at its center of mass.
func calculateForce(tree *quadtree.Tree, p *quadtree.Point, theta, repStrength float64) (float64, float64) {
	fx, fy := 0.0, 0.0

	apply := func(cx, cy, mass float64) {
		dx := cx - p.X
		dy := cy - p.Y
		dist := math.Sqrt(dx*dx + dy*dy)
		if dist < minDistance {
			return
		}
		force := repStrength * mass / (dist * dist)
		fx -= dx / dist * force // Repulsive force pushes away
		fy -= dy / dist * force
	}

	tree.Traverse(nil, func(n *quadtree.Node) quadtree.Action {
		if n.IsLeaf() {
			if body := n.Body(); body != p {
				apply(body.X, body.Y, body.Mass)
			}
			return quadtree.Continue
		}

		// Empty region, nothing to push with
		if n.Mass() <= 0 {
			return quadtree.Prune
		}

		cx, cy := n.Center()
		dist := math.Hypot(cx-p.X, cy-p.Y)
		if dist >= minDistance && n.Box().Size()/dist < theta {
			apply(cx, cy, n.Mass())
			return quadtree.Prune
		}
		return quadtree.Continue
	}, nil)

	return fx, fy
}

// calculateBarnesHutForces adds the repulsive force on every point to
// dispX/dispY. tree must have been built from the same points slice.
func calculateBarnesHutForces(points []quadtree.Point, tree *quadtree.Tree, theta, repStrength float64, dispX, dispY []float64) {
	for i := range points {
		fx, fy := calculateForce(tree, &points[i], theta, repStrength)
		dispX[i] += fx
		dispY[i] += fy
	}
}
