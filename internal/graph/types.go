package graph

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyGraph is returned when a layout is requested for no nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")
	// ErrInvalidGraph wraps structural problems such as dangling links.
	ErrInvalidGraph = errors.New("invalid graph")
	// ErrInvalidParams wraps out-of-range layout parameters.
	ErrInvalidParams = errors.New("invalid layout parameters")
)

// Node is a graph vertex. X/Y are used as the starting position when HasPos
// is set; otherwise the layout seeds it on a circle.
type Node struct {
	ID     string  `json:"id" toml:"id"`
	Name   string  `json:"name,omitempty" toml:"name"`
	Weight float64 `json:"weight,omitempty" toml:"weight"`
	X      float64 `json:"x,omitempty" toml:"x"`
	Y      float64 `json:"y,omitempty" toml:"y"`
	HasPos bool    `json:"has_pos,omitempty" toml:"has_pos"`
}

// Link is an undirected edge between two node ids.
type Link struct {
	Source string `json:"source" toml:"source"`
	Target string `json:"target" toml:"target"`
}

// Graph is the input to a layout run.
type Graph struct {
	Nodes []Node `json:"nodes" toml:"nodes"`
	Links []Link `json:"links" toml:"links"`
}

// Position is a laid-out node.
type Position struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Validate checks ids are unique and non-empty, links reference known
// nodes, and starting positions are finite.
func (g Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return ErrEmptyGraph
	}
	seen := make(map[string]struct{}, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node %d has empty id", ErrInvalidGraph, i)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidGraph, n.ID)
		}
		if n.Weight < 0 || math.IsNaN(n.Weight) || math.IsInf(n.Weight, 0) {
			return fmt.Errorf("%w: node %q has invalid weight %v", ErrInvalidGraph, n.ID, n.Weight)
		}
		if n.HasPos && (math.IsNaN(n.X) || math.IsNaN(n.Y) || math.IsInf(n.X, 0) || math.IsInf(n.Y, 0)) {
			return fmt.Errorf("%w: node %q has non-finite position", ErrInvalidGraph, n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	for i, l := range g.Links {
		if _, ok := seen[l.Source]; !ok {
			return fmt.Errorf("%w: link %d source %q not found", ErrInvalidGraph, i, l.Source)
		}
		if _, ok := seen[l.Target]; !ok {
			return fmt.Errorf("%w: link %d target %q not found", ErrInvalidGraph, i, l.Target)
		}
	}
	return nil
}
