package model

import "math"

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in PDF user space (origin bottom-left).
// X0,Y0 is the lower-left corner and X1,Y1 the upper-right.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// NewRect returns the normalized rectangle spanning two corners.
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{
		X0: math.Min(x0, x1), Y0: math.Min(y0, y1),
		X1: math.Max(x0, x1), Y1: math.Max(y0, y1),
	}
}

// RectFromPoints returns the smallest rectangle containing all points.
func RectFromPoints(pts ...Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{X0: pts[0].X, Y0: pts[0].Y, X1: pts[0].X, Y1: pts[0].Y}
	for _, p := range pts[1:] {
		r.X0 = math.Min(r.X0, p.X)
		r.Y0 = math.Min(r.Y0, p.Y)
		r.X1 = math.Max(r.X1, p.X)
		r.Y1 = math.Max(r.Y1, p.Y)
	}
	return r
}

// Width returns the horizontal extent
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Center returns the center point
func (r Rect) Center() Point {
	return Point{X: (r.X0 + r.X1) / 2, Y: (r.Y0 + r.Y1) / 2}
}

// Contains checks if a point is inside the rectangle, edges included
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X0 && p.X <= r.X1 && p.Y >= r.Y0 && p.Y <= r.Y1
}

// Intersects checks if two rectangles overlap
func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// Union returns the smallest rectangle containing both
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X0: math.Min(r.X0, o.X0), Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1), Y1: math.Max(r.Y1, o.Y1),
	}
}

// Expand grows the rectangle by margin on every side
func (r Rect) Expand(margin float64) Rect {
	return Rect{X0: r.X0 - margin, Y0: r.Y0 - margin, X1: r.X1 + margin, Y1: r.Y1 + margin}
}

// Area returns the area of the rectangle
func (r Rect) Area() float64 {
	if r.IsEmpty() {
		return 0
	}
	return r.Width() * r.Height()
}

// IsEmpty returns true if the rectangle has no area
func (r Rect) IsEmpty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

// Transform maps the four corners through m and returns their bounds.
func (r Rect) Transform(m Matrix) Rect {
	return RectFromPoints(
		m.Transform(Point{r.X0, r.Y0}),
		m.Transform(Point{r.X1, r.Y0}),
		m.Transform(Point{r.X0, r.Y1}),
		m.Transform(Point{r.X1, r.Y1}),
	)
}

// Matrix represents a 2D affine transformation [a b c d e f]
type Matrix [6]float64

// Identity returns an identity matrix
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// Transform applies the matrix transformation to a point
func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// Multiply returns m × other; applying the result equals applying m first
// and then other.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		m[0]*other[0] + m[1]*other[2],
		m[0]*other[1] + m[1]*other[3],
		m[2]*other[0] + m[3]*other[2],
		m[2]*other[1] + m[3]*other[3],
		m[4]*other[0] + m[5]*other[2] + other[4],
		m[4]*other[1] + m[5]*other[3] + other[5],
	}
}

// Translate creates a translation matrix
func Translate(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Scale creates a scaling matrix
func Scale(sx, sy float64) Matrix {
	return Matrix{sx, 0, 0, sy, 0, 0}
}

// IsIdentity returns true if the matrix is an identity matrix
func (m Matrix) IsIdentity() bool {
	return m == Identity()
}

// MatrixFrom converts six numbers into a Matrix; ok is false for any other length.
func MatrixFrom(v []float64) (Matrix, bool) {
	if len(v) != 6 {
		return Identity(), false
	}
	return Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
}
