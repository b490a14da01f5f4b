package quadtree

// Point is a body placed into the tree. The tree only borrows it for the
// duration of one layout tick.
type Point struct {
	ID   string
	X, Y float64
	Mass float64
}

// Kind is the state of a node. A node only ever moves forward through
// Empty -> Leaf -> Internal while a tree is being built.
type Kind uint8

const (
	Empty Kind = iota
	Leaf
	Internal
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Leaf:
		return "leaf"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Quadrant indexes the children of an internal node.
type Quadrant int

const (
	TopLeft Quadrant = iota
	TopRight
	BottomRight
	BottomLeft
)

// overflowSize is the width and height of the box given to a body that
// arrives after the depth budget is spent.
const overflowSize = 0.1

// Node is one region of the tree. Internal nodes own exactly four quadrant
// children; leaves own one body plus any overflow leaves created once the
// depth budget ran out.
type Node struct {
	box      Box
	kind     Kind
	body     *Point
	children []*Node
	overflow []*Node

	// Valid only after Tree.CalculateMassAndCenter.
	mass             float64
	centerX, centerY float64
}

func newNode(box Box) *Node {
	return &Node{box: box}
}

func (n *Node) Box() Box { return n.box }

func (n *Node) Kind() Kind { return n.kind }

// Body returns the point held by a leaf, or nil.
func (n *Node) Body() *Point { return n.body }

// Children returns the four quadrant children of an internal node, or nil.
func (n *Node) Children() []*Node { return n.children }

// Overflow returns the extra leaves attached to a leaf whose depth budget
// was exhausted.
func (n *Node) Overflow() []*Node { return n.overflow }

// Mass returns the aggregated mass of the subtree.
func (n *Node) Mass() float64 { return n.mass }

// Center returns the aggregated center of mass of the subtree.
func (n *Node) Center() (float64, float64) { return n.centerX, n.centerY }

func (n *Node) IsEmpty() bool { return n.kind == Empty }

func (n *Node) IsLeaf() bool { return n.kind == Leaf }

func (n *Node) IsInternal() bool { return n.kind == Internal }

// insert places p below n. depth is the remaining subdivision budget.
// Containment is not checked here; a point outside the box still lands in
// the nearest quadrant.
func (n *Node) insert(p *Point, depth int) {
	switch n.kind {
	case Internal:
		n.children[n.quadrant(p)].insert(p, depth-1)
	case Empty:
		n.kind = Leaf
		n.body = p
	case Leaf:
		if depth > 0 {
			existing := n.body
			n.divideBox()
			n.kind = Internal
			n.body = nil
			n.children[n.quadrant(existing)].insert(existing, depth-1)
			n.children[n.quadrant(p)].insert(p, depth-1)
			return
		}
		// Out of depth: many points share (or nearly share) a position.
		// Hang the body off this leaf instead of subdividing forever.
		extra := newNode(Box{Left: p.X, Top: p.Y, Width: overflowSize, Height: overflowSize})
		extra.kind = Leaf
		extra.body = p
		n.overflow = append(n.overflow, extra)
	}
}

// divideBox creates the four quadrant children in TopLeft, TopRight,
// BottomRight, BottomLeft order.
func (n *Node) divideBox() {
	halfW := n.box.Width / 2
	halfH := n.box.Height / 2
	n.children = []*Node{
		newNode(Box{Left: n.box.Left, Top: n.box.Top, Width: halfW, Height: halfH}),
		newNode(Box{Left: n.box.Left + halfW, Top: n.box.Top, Width: halfW, Height: halfH}),
		newNode(Box{Left: n.box.Left + halfW, Top: n.box.Top + halfH, Width: halfW, Height: halfH}),
		newNode(Box{Left: n.box.Left, Top: n.box.Top + halfH, Width: halfW, Height: halfH}),
	}
}

// quadrant classifies p against the midlines of n using strict less-than,
// so a point sitting exactly on a midline goes right/bottom.
func (n *Node) quadrant(p *Point) Quadrant {
	left := p.X < n.box.Left+n.box.Width/2
	top := p.Y < n.box.Top+n.box.Height/2
	switch {
	case left && top:
		return TopLeft
	case left:
		return BottomLeft
	case top:
		return TopRight
	default:
		return BottomRight
	}
}

// updateMassAndCenter aggregates mass and center of mass from the node's
// body or from its children. Children must already be up to date.
func (n *Node) updateMassAndCenter() {
	var mass, sx, sy float64

	switch n.kind {
	case Leaf:
		if len(n.overflow) == 0 {
			n.mass = n.body.Mass
			n.centerX, n.centerY = n.body.X, n.body.Y
			return
		}
		mass = n.body.Mass
		sx = n.body.X * n.body.Mass
		sy = n.body.Y * n.body.Mass
		for _, o := range n.overflow {
			mass += o.mass
			sx += o.centerX * o.mass
			sy += o.centerY * o.mass
		}
		if mass == 0 {
			n.mass = 0
			n.centerX, n.centerY = n.body.X, n.body.Y
			return
		}
	case Internal:
		var only *Node
		occupied := 0
		for _, c := range n.children {
			if c.kind == Empty {
				continue
			}
			occupied++
			only = c
			mass += c.mass
			sx += c.centerX * c.mass
			sy += c.centerY * c.mass
		}
		if occupied == 1 {
			// Copy rather than divide so a lone body keeps its exact position.
			n.mass = only.mass
			n.centerX, n.centerY = only.centerX, only.centerY
			return
		}
	}

	if mass == 0 {
		n.mass = 0
		n.centerX, n.centerY = n.box.Center()
		return
	}
	n.mass = mass
	n.centerX = sx / mass
	n.centerY = sy / mass
}
