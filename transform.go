package strata

import "math"

// identityTransform is the identity affine matrix.
var identityTransform = [6]float64{1, 0, 0, 1, 0, 0}

// Transform is the 2D placement of an Object: translation, per-axis scale and
// rotation angle in radians. Objects are centered on their position.
type Transform struct {
	Position Vec2
	Scale    Vec2
	Angle    float64
}

// IdentityTransform returns a transform at the origin with unit scale.
func IdentityTransform() Transform {
	return Transform{Scale: Vec2{1, 1}}
}

// MaxScale returns the larger absolute scale component. Cached radii are the
// base radii multiplied by this value so the bounding circle stays
// conservative under non-uniform scale and any rotation.
func (t Transform) MaxScale() float64 {
	return math.Max(math.Abs(t.Scale.X), math.Abs(t.Scale.Y))
}

// Matrix computes the affine matrix [a, b, c, d, tx, ty] for t.
//
// Composition order:
//
//	Scale -> Rotate -> Translate(Position)
func (t Transform) Matrix() [6]float64 {
	return t.matrixAt(t.Position)
}

// matrixAt builds the matrix with an explicit translation. The draw path uses
// it to place objects at their view-relative position in wrapped layers.
func (t Transform) matrixAt(pos Vec2) [6]float64 {
	sin, cos := math.Sincos(t.Angle)
	sx, sy := t.Scale.X, t.Scale.Y
	return [6]float64{cos * sx, sin * sx, -sin * sy, cos * sy, pos.X, pos.Y}
}

// multiplyAffine returns p*c for matrices laid out as [a, b, c, d, tx, ty],
// that is x' = a*x + c*y + tx and y' = b*x + d*y + ty. c is applied first.
func multiplyAffine(p, c [6]float64) [6]float64 {
	var r [6]float64
	r[0] = p[0]*c[0] + p[2]*c[1]
	r[1] = p[1]*c[0] + p[3]*c[1]
	r[2] = p[0]*c[2] + p[2]*c[3]
	r[3] = p[1]*c[2] + p[3]*c[3]
	r[4], r[5] = transformPoint(p, c[4], c[5])
	return r
}

// invertAffine returns the inverse of m and false when m is singular, in
// which case the identity is returned.
func invertAffine(m [6]float64) ([6]float64, bool) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-12 {
		return identityTransform, false
	}
	a, b := m[3]/det, -m[1]/det
	c, d := -m[2]/det, m[0]/det
	return [6]float64{a, b, c, d, -(a*m[4] + c*m[5]), -(b*m[4] + d*m[5])}, true
}

// transformPoint applies m to (x, y).
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}
