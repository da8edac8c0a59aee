// Package curve holds the control-point list that defines an enemy
// path. A duel session owns two of these: the curve the local player
// edits and the mirror of the opponent's curve. Interpolating the
// points into a walkable path is the math engine's job; this package
// only tracks the points and the selected method name.
package curve

import "sort"

// Methods the math engine knows how to interpolate with.
const (
	MethodLinear   = "linear"
	MethodLagrange = "lagrange"
	MethodSpline   = "spline"
)

// Points closer than this on the X axis count as duplicates. The path
// must stay a function of X, so duplicate X values are rejected.
const duplicateXEpsilon = 0.01

// Default shape a curve resets to at the start of a round: a straight
// run across the 20-wide grid at mid height.
const (
	DefaultStartX = 0.0
	DefaultEndX   = 19.0
	DefaultY      = 10.0
)

// Point is one 2-D control point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Curve is an ordered list of control points plus the interpolation
// method used to turn them into a path. Points are kept sorted by X.
// Curve is not safe for concurrent use; the session confines each
// instance to the game-loop goroutine.
type Curve struct {
	points []Point
	method string
}

// New returns a curve holding the default start/end points.
func New() *Curve {
	c := &Curve{method: MethodLinear}
	c.Reset()
	return c
}

// Reset restores the default two-point shape and keeps the current
// method. Both peers call this on entering planning, which is what
// keeps the mirrored copies identical without a full-state sync.
func (c *Curve) Reset() {
	c.points = []Point{
		{X: DefaultStartX, Y: DefaultY},
		{X: DefaultEndX, Y: DefaultY},
	}
}

// Points returns a copy of the control points in X order.
func (c *Curve) Points() []Point {
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out
}

// Len returns the number of control points.
func (c *Curve) Len() int { return len(c.points) }

// Method returns the selected interpolation method name.
func (c *Curve) Method() string { return c.method }

// Add inserts a control point, keeping X order. Returns false if a
// point with (nearly) the same X already exists.
func (c *Curve) Add(x, y float64) bool {
	for _, p := range c.points {
		if abs(p.X-x) < duplicateXEpsilon {
			return false
		}
	}
	c.points = append(c.points, Point{X: x, Y: y})
	c.sortByX()
	return true
}

// Remove deletes the point at index. Refused when the curve is already
// at its two-point minimum or the index is out of range.
func (c *Curve) Remove(index int) bool {
	if len(c.points) <= 2 {
		return false
	}
	if index < 0 || index >= len(c.points) {
		return false
	}
	c.points = append(c.points[:index], c.points[index+1:]...)
	return true
}

// Move relocates the point at index, re-sorting afterwards. Returns
// false on an out-of-range index or a duplicate X against any other
// point.
func (c *Curve) Move(index int, x, y float64) bool {
	if index < 0 || index >= len(c.points) {
		return false
	}
	for i, p := range c.points {
		if i != index && abs(p.X-x) < duplicateXEpsilon {
			return false
		}
	}
	c.points[index] = Point{X: x, Y: y}
	c.sortByX()
	return true
}

// SetMethod selects the interpolation method. Unknown names are
// rejected and leave the current method in place.
func (c *Curve) SetMethod(method string) bool {
	switch method {
	case MethodLinear, MethodLagrange, MethodSpline:
		c.method = method
		return true
	default:
		return false
	}
}

func (c *Curve) sortByX() {
	sort.Slice(c.points, func(i, j int) bool { return c.points[i].X < c.points[j].X })
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
