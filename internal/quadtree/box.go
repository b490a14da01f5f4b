package quadtree

import "math"

// Box is an axis-aligned rectangle in plot coordinates. Top grows downward,
// so the top-left corner is (Left, Top).
type Box struct {
	Left, Top, Width, Height float64
}

// Contains reports whether (x, y) lies inside the box, edges included.
func (b Box) Contains(x, y float64) bool {
	return x >= b.Left && x <= b.Left+b.Width &&
		y >= b.Top && y <= b.Top+b.Height
}

// Center returns the geometric center of the box.
func (b Box) Center() (float64, float64) {
	return b.Left + b.Width/2, b.Top + b.Height/2
}

// Size is the smaller of width and height, used as the cell size in the
// Barnes-Hut opening criterion.
func (b Box) Size() float64 {
	return math.Min(b.Width, b.Height)
}

// Area returns width times height.
func (b Box) Area() float64 {
	return b.Width * b.Height
}
