package quadtree

import (
	"errors"
	"fmt"
	"math"
)

// MaxDepth bounds how many times a single insertion may subdivide.
const MaxDepth = 25

var (
	// ErrOutOfBounds is returned for points that fall outside the tree box.
	ErrOutOfBounds = errors.New("point outside tree bounds")
	// ErrInvalidPoint is returned for NaN/Inf coordinates or a negative mass.
	ErrInvalidPoint = errors.New("invalid point")
)

// Action tells Traverse whether to descend into the node just visited.
type Action int

const (
	// Continue descends normally.
	Continue Action = iota
	// Prune skips the subtree; the visitor has consumed it as one aggregate.
	Prune
)

// BeforeFunc is the pre-order visitor. For leaves it is called with the
// leaf node, whose Body is the point; its return value is ignored there.
type BeforeFunc func(n *Node) Action

// AfterFunc is the post-order visitor.
type AfterFunc func(n *Node)

// Tree is a Barnes-Hut quad-tree built fresh for one layout tick.
type Tree struct {
	box  Box
	root *Node
	n    int
}

// New creates a tree covering box. The root starts subdivided so every
// point, including the first one, is placed below it.
func New(box Box) *Tree {
	root := newNode(box)
	root.kind = Internal
	root.divideBox()
	return &Tree{box: box, root: root}
}

func (t *Tree) Root() *Node { return t.root }

func (t *Tree) Box() Box { return t.box }

// Len returns the number of inserted points.
func (t *Tree) Len() int { return t.n }

// Insert adds p to the tree. The tree keeps the pointer until it is
// discarded.
func (t *Tree) Insert(p *Point) error {
	if err := t.check(p); err != nil {
		return err
	}
	t.root.insert(p, MaxDepth)
	t.n++
	return nil
}

// InsertAll validates every point and then inserts &points[i] in order.
// If any point is rejected nothing is inserted.
func (t *Tree) InsertAll(points []Point) error {
	for i := range points {
		if err := t.check(&points[i]); err != nil {
			return fmt.Errorf("point %d (%q): %w", i, points[i].ID, err)
		}
	}
	for i := range points {
		t.root.insert(&points[i], MaxDepth)
	}
	t.n += len(points)
	return nil
}

func (t *Tree) check(p *Point) error {
	if p == nil {
		return fmt.Errorf("%w: nil", ErrInvalidPoint)
	}
	if !finite(p.X) || !finite(p.Y) || !finite(p.Mass) || p.Mass < 0 {
		return fmt.Errorf("%w: x=%v y=%v mass=%v", ErrInvalidPoint, p.X, p.Y, p.Mass)
	}
	if !t.box.Contains(p.X, p.Y) {
		return fmt.Errorf("%w: (%v, %v) not in %+v", ErrOutOfBounds, p.X, p.Y, t.box)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Traverse walks the tree depth first starting at start (the root when nil).
//
// before runs for the root first (only when start is the root), then for
// each internal child before descending into it and for each leaf when it
// is reached; overflow leaves follow their parent leaf. Returning Prune for
// an internal node skips its subtree and its after call. after runs for
// every visited child once its subtree is done, and for the root last.
// When start is a leaf its overflow leaves are visited. Either visitor may
// be nil.
func (t *Tree) Traverse(start *Node, before BeforeFunc, after AfterFunc) {
	if start == nil {
		start = t.root
	}
	isRoot := start == t.root
	if isRoot && before != nil && before(start) == Prune {
		return
	}
	if start.kind == Leaf {
		visitOverflow(start, before, after)
	} else {
		t.walk(start, before, after)
	}
	if isRoot && after != nil {
		after(start)
	}
}

func (t *Tree) walk(n *Node, before BeforeFunc, after AfterFunc) {
	for _, c := range n.children {
		switch c.kind {
		case Internal:
			if before != nil && before(c) == Prune {
				continue
			}
			t.walk(c, before, after)
		case Leaf:
			if before != nil {
				before(c)
			}
			visitOverflow(c, before, after)
		}
		if after != nil {
			after(c)
		}
	}
}

func visitOverflow(leaf *Node, before BeforeFunc, after AfterFunc) {
	for _, o := range leaf.overflow {
		if before != nil {
			before(o)
		}
		if after != nil {
			after(o)
		}
	}
}

// CalculateMassAndCenter aggregates mass and center of mass bottom-up. Call
// it once after all insertions and before any force query.
func (t *Tree) CalculateMassAndCenter() {
	t.Traverse(nil, nil, func(n *Node) {
		n.updateMassAndCenter()
	})
}

// Stats summarizes the shape of a tree.
type Stats struct {
	Nodes    int `json:"nodes"`
	Internal int `json:"internal"`
	Leaves   int `json:"leaves"`
	Empty    int `json:"empty"`
	Overflow int `json:"overflow"`
	Depth    int `json:"depth"`
}

// Stats walks the whole tree and counts nodes by kind. Depth is the
// deepest quadrant level reached below the root.
func (t *Tree) Stats() Stats {
	var s Stats
	depth := 0
	t.Traverse(nil, func(n *Node) Action {
		if n.kind == Internal {
			depth++
		}
		if depth > s.Depth {
			s.Depth = depth
		}
		return Continue
	}, func(n *Node) {
		s.Nodes++
		switch n.kind {
		case Internal:
			s.Internal++
			depth--
		case Leaf:
			s.Leaves++
		case Empty:
			s.Empty++
		}
	})
	countOverflow(t.root, &s)
	return s
}

func countOverflow(n *Node, s *Stats) {
	s.Overflow += len(n.overflow)
	for _, c := range n.children {
		countOverflow(c, s)
	}
}
