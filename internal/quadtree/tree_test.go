package quadtree

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTreeRootIsSubdivided(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})

	root := tree.Root()
	require.True(t, root.IsInternal())
	require.Len(t, root.Children(), 4)
	for _, c := range root.Children() {
		assert.True(t, c.IsEmpty())
	}
	assert.Equal(t, 0, tree.Len())
}

func TestDivideBoxTilesParent(t *testing.T) {
	boxes := []Box{
		{Left: 0, Top: 0, Width: 100, Height: 100},
		{Left: -37.5, Top: 12.25, Width: 80, Height: 20},
		{Left: 3, Top: -9, Width: 1, Height: 7},
	}

	for _, b := range boxes {
		t.Run(fmt.Sprintf("%v", b), func(t *testing.T) {
			n := newNode(b)
			n.divideBox()
			require.Len(t, n.Children(), 4)

			tl := n.children[TopLeft].box
			tr := n.children[TopRight].box
			br := n.children[BottomRight].box
			bl := n.children[BottomLeft].box

			var area float64
			for _, c := range n.children {
				area += c.box.Area()
			}
			assert.InDelta(t, b.Area(), area, 1e-9)

			// Shared edges line up exactly.
			assert.Equal(t, tl.Left+tl.Width, tr.Left)
			assert.Equal(t, bl.Left+bl.Width, br.Left)
			assert.Equal(t, tl.Top+tl.Height, bl.Top)
			assert.Equal(t, tr.Top+tr.Height, br.Top)
			assert.Equal(t, b.Left, tl.Left)
			assert.Equal(t, b.Top, tl.Top)
			assert.InDelta(t, b.Left+b.Width, br.Left+br.Width, 1e-9)
			assert.InDelta(t, b.Top+b.Height, br.Top+br.Height, 1e-9)
		})
	}
}

func TestQuadrantClassification(t *testing.T) {
	n := newNode(Box{Left: 0, Top: 0, Width: 100, Height: 100})

	tests := []struct {
		name string
		x, y float64
		want Quadrant
	}{
		{"top left", 10, 10, TopLeft},
		{"top right", 90, 10, TopRight},
		{"bottom right", 90, 90, BottomRight},
		{"bottom left", 10, 90, BottomLeft},
		{"on vertical midline", 50, 10, TopRight},
		{"on horizontal midline", 10, 50, BottomLeft},
		{"on center", 50, 50, BottomRight},
		{"just left of center", 49.999, 49.999, TopLeft},
		{"outside box", -500, 700, BottomLeft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.quadrant(&Point{X: tt.x, Y: tt.y})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConcreteScenario(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	points := []Point{
		{ID: "A", X: 10, Y: 10, Mass: 1},
		{ID: "B", X: 90, Y: 10, Mass: 1},
		{ID: "C", X: 90, Y: 90, Mass: 2},
	}
	require.NoError(t, tree.InsertAll(points))

	root := tree.Root()
	require.True(t, root.IsInternal())
	children := root.Children()
	assert.Same(t, &points[0], children[TopLeft].Body())
	assert.Same(t, &points[1], children[TopRight].Body())
	assert.Same(t, &points[2], children[BottomRight].Body())
	assert.True(t, children[BottomLeft].IsEmpty())

	tree.CalculateMassAndCenter()

	assert.Equal(t, 4.0, root.Mass())
	cx, cy := root.Center()
	assert.InDelta(t, 70.0, cx, 1e-9)
	assert.InDelta(t, 50.0, cy, 1e-9)
}

func TestLeafSplitsWhenSecondPointArrives(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	a := &Point{ID: "a", X: 10, Y: 10, Mass: 1}
	b := &Point{ID: "b", X: 40, Y: 40, Mass: 1}

	require.NoError(t, tree.Insert(a))
	tl := tree.Root().Children()[TopLeft]
	require.True(t, tl.IsLeaf())
	require.Same(t, a, tl.Body())

	require.NoError(t, tree.Insert(b))
	require.True(t, tl.IsInternal())
	assert.Nil(t, tl.Body())
	assert.Same(t, a, tl.Children()[TopLeft].Body())
	assert.Same(t, b, tl.Children()[BottomRight].Body())
	assert.Equal(t, 2, tree.Len())
}

func TestContainment(t *testing.T) {
	box := Box{Left: -50, Top: -50, Width: 100, Height: 100}
	tree := New(box)

	var points []Point
	for i := 0; i < 200; i++ {
		x := -49 + float64((i*37)%98)
		y := -49 + float64((i*61)%98) + 0.5
		points = append(points, Point{ID: fmt.Sprint(i), X: x, Y: y, Mass: 1})
	}
	require.NoError(t, tree.InsertAll(points))

	var check func(n *Node)
	check = func(n *Node) {
		switch n.Kind() {
		case Leaf:
			p := n.Body()
			assert.True(t, n.Box().Contains(p.X, p.Y), "point %s outside leaf box %+v", p.ID, n.Box())
		case Internal:
			for _, c := range n.Children() {
				check(c)
			}
		}
	}
	check(tree.Root())
}

func TestMassConservation(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 1000, Height: 1000})

	var points []Point
	var total, sx, sy float64
	for i := 0; i < 500; i++ {
		p := Point{
			ID:   fmt.Sprint(i),
			X:    float64((i * 7919) % 1000),
			Y:    float64((i * 104729) % 1000),
			Mass: 1 + float64(i%5),
		}
		total += p.Mass
		sx += p.X * p.Mass
		sy += p.Y * p.Mass
		points = append(points, p)
	}
	require.NoError(t, tree.InsertAll(points))
	tree.CalculateMassAndCenter()

	root := tree.Root()
	assert.InDelta(t, total, root.Mass(), 1e-6)
	cx, cy := root.Center()
	assert.InDelta(t, sx/total, cx, 1e-6)
	assert.InDelta(t, sy/total, cy, 1e-6)
}

func TestSingleLeafCenterIsExact(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 3, Height: 3})
	p := &Point{X: 0.1 + 0.2, Y: 1.0 / 3.0, Mass: 0.7}
	require.NoError(t, tree.Insert(p))
	tree.CalculateMassAndCenter()

	cx, cy := tree.Root().Center()
	assert.Equal(t, p.X, cx)
	assert.Equal(t, p.Y, cy)
	assert.Equal(t, p.Mass, tree.Root().Mass())
}

func TestCoincidentPointsTerminate(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})

	const n = 50
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{ID: fmt.Sprint(i), X: 33.3, Y: 66.6, Mass: 1}
	}
	require.NoError(t, tree.InsertAll(points))
	tree.CalculateMassAndCenter()

	seen := make(map[*Point]int)
	tree.Traverse(nil, func(n *Node) Action {
		if n.IsLeaf() {
			seen[n.Body()]++
		}
		return Continue
	}, nil)

	require.Len(t, seen, n)
	for i := range points {
		assert.Equal(t, 1, seen[&points[i]], "point %d", i)
	}

	stats := tree.Stats()
	assert.LessOrEqual(t, stats.Depth, MaxDepth)
	assert.Equal(t, n-1, stats.Overflow)
	assert.InDelta(t, float64(n), tree.Root().Mass(), 1e-9)
	cx, cy := tree.Root().Center()
	assert.InDelta(t, 33.3, cx, 1e-9)
	assert.InDelta(t, 66.6, cy, 1e-9)
}

func TestOverflowBoxIsAtIncomingPoint(t *testing.T) {
	n := newNode(Box{Left: 0, Top: 0, Width: 1, Height: 1})
	n.insert(&Point{X: 0.2, Y: 0.7, Mass: 1}, 0)
	n.insert(&Point{X: 0.25, Y: 0.75, Mass: 1}, 0)

	require.True(t, n.IsLeaf())
	require.Len(t, n.Overflow(), 1)
	o := n.Overflow()[0]
	assert.Equal(t, Box{Left: 0.25, Top: 0.75, Width: overflowSize, Height: overflowSize}, o.Box())
	assert.True(t, o.IsLeaf())
}

func TestTraversalOrder(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	points := []Point{
		{ID: "P0", X: 10, Y: 10, Mass: 1},
		{ID: "P1", X: 90, Y: 10, Mass: 1},
		{ID: "P2", X: 90, Y: 90, Mass: 1},
		{ID: "P3", X: 10, Y: 90, Mass: 1},
	}
	require.NoError(t, tree.InsertAll(points))

	label := func(n *Node) string {
		if n == tree.Root() {
			return "root"
		}
		if n.IsLeaf() {
			return n.Body().ID
		}
		return n.Kind().String()
	}

	var pre, post []string
	tree.Traverse(nil, func(n *Node) Action {
		pre = append(pre, label(n))
		return Continue
	}, func(n *Node) {
		post = append(post, label(n))
	})

	assert.Equal(t, []string{"root", "P0", "P1", "P2", "P3"}, pre)
	assert.Equal(t, []string{"P0", "P1", "P2", "P3", "root"}, post)
}

func TestTraversalNestedOrder(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	points := []Point{
		{ID: "a", X: 10, Y: 10, Mass: 1},
		{ID: "b", X: 40, Y: 40, Mass: 1},
		{ID: "c", X: 90, Y: 90, Mass: 1},
	}
	require.NoError(t, tree.InsertAll(points))

	var pre, post []string
	name := func(n *Node) string {
		switch {
		case n == tree.Root():
			return "root"
		case n.IsLeaf():
			return n.Body().ID
		case n.IsInternal():
			return "tl"
		}
		return "empty"
	}
	tree.Traverse(nil, func(n *Node) Action {
		pre = append(pre, name(n))
		return Continue
	}, func(n *Node) {
		post = append(post, name(n))
	})

	assert.Equal(t, []string{"root", "tl", "a", "b", "c"}, pre)
	assert.Equal(t, []string{"a", "empty", "b", "empty", "tl", "empty", "c", "empty", "root"}, post)
}

func TestTraversePrune(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	points := []Point{
		{ID: "a", X: 10, Y: 10, Mass: 1},
		{ID: "b", X: 40, Y: 40, Mass: 1},
		{ID: "c", X: 90, Y: 90, Mass: 1},
	}
	require.NoError(t, tree.InsertAll(points))

	var bodies []string
	tree.Traverse(nil, func(n *Node) Action {
		if n.IsLeaf() {
			bodies = append(bodies, n.Body().ID)
			return Continue
		}
		if n != tree.Root() {
			return Prune
		}
		return Continue
	}, nil)
	assert.Equal(t, []string{"c"}, bodies)

	visited := 0
	tree.Traverse(nil, func(n *Node) Action {
		visited++
		return Prune
	}, func(n *Node) {
		visited++
	})
	assert.Equal(t, 1, visited, "pruning the root stops the whole walk")
}

func TestTraverseFromSubtree(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	require.NoError(t, tree.InsertAll([]Point{
		{ID: "a", X: 10, Y: 10, Mass: 1},
		{ID: "b", X: 40, Y: 40, Mass: 1},
		{ID: "c", X: 90, Y: 90, Mass: 1},
	}))

	tl := tree.Root().Children()[TopLeft]
	var ids []string
	tree.Traverse(tl, func(n *Node) Action {
		ids = append(ids, n.Body().ID)
		return Continue
	}, nil)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestTraverseFromLeafVisitsOverflow(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	points := []Point{
		{ID: "a", X: 20, Y: 20, Mass: 1},
		{ID: "b", X: 20, Y: 20, Mass: 1},
		{ID: "c", X: 20, Y: 20, Mass: 1},
	}
	require.NoError(t, tree.InsertAll(points))

	var owner *Node
	tree.Traverse(nil, func(n *Node) Action {
		if len(n.Overflow()) > 0 {
			owner = n
		}
		return Continue
	}, nil)
	require.NotNil(t, owner)

	var before, after []string
	tree.Traverse(owner, func(n *Node) Action {
		before = append(before, n.Body().ID)
		return Continue
	}, func(n *Node) {
		after = append(after, n.Body().ID)
	})
	assert.Equal(t, []string{"b", "c"}, before)
	assert.Equal(t, []string{"b", "c"}, after)
}

func TestQueryIsIdempotent(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 256, Height: 256})
	var points []Point
	for i := 0; i < 64; i++ {
		points = append(points, Point{ID: fmt.Sprint(i), X: float64(i*4) + 1, Y: float64((i*29)%256) + 0.5, Mass: 1})
	}
	require.NoError(t, tree.InsertAll(points))
	tree.CalculateMassAndCenter()

	run := func() ([]*Node, float64) {
		var seq []*Node
		var acc float64
		tree.Traverse(nil, func(n *Node) Action {
			seq = append(seq, n)
			cx, cy := n.Center()
			acc += n.Mass() * math.Hypot(cx-128, cy-128)
			if n.IsInternal() && n.Box().Size() < 64 {
				return Prune
			}
			return Continue
		}, nil)
		return seq, acc
	}

	seq1, acc1 := run()
	seq2, acc2 := run()
	assert.Equal(t, seq1, seq2)
	assert.Equal(t, acc1, acc2)
}

func TestZeroMassDoesNotProduceNaN(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	require.NoError(t, tree.InsertAll([]Point{
		{ID: "a", X: 10, Y: 10, Mass: 0},
		{ID: "b", X: 20, Y: 20, Mass: 0},
	}))
	tree.CalculateMassAndCenter()

	tree.Traverse(nil, nil, func(n *Node) {
		cx, cy := n.Center()
		assert.False(t, math.IsNaN(cx) || math.IsNaN(cy), "NaN center on %s node", n.Kind())
		assert.Zero(t, n.Mass())
	})
	// Both bodies share one weightless cell; its box center propagates up.
	cx, cy := tree.Root().Center()
	assert.Equal(t, 12.5, cx)
	assert.Equal(t, 12.5, cy)
}

func TestInsertRejectsInvalidPoints(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want error
	}{
		{"outside right", Point{X: 101, Y: 50, Mass: 1}, ErrOutOfBounds},
		{"outside top", Point{X: 50, Y: -0.001, Mass: 1}, ErrOutOfBounds},
		{"nan x", Point{X: math.NaN(), Y: 50, Mass: 1}, ErrInvalidPoint},
		{"inf y", Point{X: 50, Y: math.Inf(1), Mass: 1}, ErrInvalidPoint},
		{"negative mass", Point{X: 50, Y: 50, Mass: -1}, ErrInvalidPoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
			p := tt.p
			assert.ErrorIs(t, tree.Insert(&p), tt.want)
			assert.Equal(t, 0, tree.Len())
		})
	}

	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	assert.ErrorIs(t, tree.Insert(nil), ErrInvalidPoint)
}

func TestInsertAllIsAllOrNothing(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	err := tree.InsertAll([]Point{
		{ID: "ok", X: 10, Y: 10, Mass: 1},
		{ID: "bad", X: 200, Y: 10, Mass: 1},
	})
	require.ErrorIs(t, err, ErrOutOfBounds)
	assert.Contains(t, err.Error(), `point 1 ("bad")`)
	assert.Equal(t, 0, tree.Len())
	for _, c := range tree.Root().Children() {
		assert.True(t, c.IsEmpty())
	}
}

func TestEdgePointsAreAccepted(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	require.NoError(t, tree.InsertAll([]Point{
		{X: 0, Y: 0, Mass: 1},
		{X: 100, Y: 100, Mass: 1},
	}))
	children := tree.Root().Children()
	assert.True(t, children[TopLeft].IsLeaf())
	assert.True(t, children[BottomRight].IsLeaf())
}

func TestStateIsMonotonic(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 64, Height: 64})
	tl := tree.Root().Children()[TopLeft]
	seen := []Kind{tl.Kind()}

	for i := 0; i < 20; i++ {
		p := &Point{X: float64(i%8) * 3.9, Y: float64(i/8) * 3.9, Mass: 1}
		require.NoError(t, tree.Insert(p))
		if k := tl.Kind(); k != seen[len(seen)-1] {
			seen = append(seen, k)
		}
	}
	assert.Equal(t, []Kind{Empty, Leaf, Internal}, seen)
}

func TestStats(t *testing.T) {
	tree := New(Box{Left: 0, Top: 0, Width: 100, Height: 100})
	require.NoError(t, tree.InsertAll([]Point{
		{X: 10, Y: 10, Mass: 1},
		{X: 40, Y: 40, Mass: 1},
		{X: 90, Y: 90, Mass: 1},
	}))

	s := tree.Stats()
	assert.Equal(t, Stats{Nodes: 9, Internal: 2, Leaves: 3, Empty: 4, Overflow: 0, Depth: 2}, s)
}
