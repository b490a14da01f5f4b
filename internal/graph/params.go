package graph

import "fmt"

// Params tunes the force-directed layout.
type Params struct {
	Iterations  int     `json:"iterations" toml:"iterations"`
	Theta       float64 `json:"theta" toml:"theta"`               // Barnes-Hut opening angle; 0 = exact
	IdealLength float64 `json:"ideal_length" toml:"ideal_length"` // spring rest length k
	Repulsion   float64 `json:"repulsion" toml:"repulsion"`       // repulsive strength; 0 = k*k
	Gravity     float64 `json:"gravity" toml:"gravity"`           // pull toward the origin
	InitialTemp float64 `json:"initial_temp" toml:"initial_temp"` // max step on the first tick
	Epsilon     float64 `json:"epsilon" toml:"epsilon"`           // min movement worth persisting
}

// DefaultParams returns the settings used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Iterations:  400,
		Theta:       0.8,
		IdealLength: 50,
		Gravity:     0.01,
		InitialTemp: 10,
	}
}

// maxIterations caps a single run so a request cannot pin a CPU forever.
const maxIterations = 10000

// Validate rejects parameters the layout cannot run with.
func (p Params) Validate() error {
	switch {
	case p.Iterations <= 0 || p.Iterations > maxIterations:
		return fmt.Errorf("%w: iterations must be in (0, %d], got %d", ErrInvalidParams, maxIterations, p.Iterations)
	case p.Theta < 0 || p.Theta > 2:
		return fmt.Errorf("%w: theta must be in [0, 2], got %v", ErrInvalidParams, p.Theta)
	case p.IdealLength <= 0:
		return fmt.Errorf("%w: ideal_length must be positive, got %v", ErrInvalidParams, p.IdealLength)
	case p.Repulsion < 0:
		return fmt.Errorf("%w: repulsion must not be negative, got %v", ErrInvalidParams, p.Repulsion)
	case p.Gravity < 0:
		return fmt.Errorf("%w: gravity must not be negative, got %v", ErrInvalidParams, p.Gravity)
	case p.InitialTemp <= 0:
		return fmt.Errorf("%w: initial_temp must be positive, got %v", ErrInvalidParams, p.InitialTemp)
	case p.Epsilon < 0:
		return fmt.Errorf("%w: epsilon must not be negative, got %v", ErrInvalidParams, p.Epsilon)
	}
	return nil
}

func (p Params) repulsion() float64 {
	if p.Repulsion > 0 {
		return p.Repulsion
	}
	return p.IdealLength * p.IdealLength
}
