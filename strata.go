package strata

import (
	"image/color"
	"math"
)

// Vec2 is a 2D vector used for positions, offsets, scales, and directions
// throughout the API.
type Vec2 struct {
	X, Y float64
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v*s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// LenSq returns the squared length of v.
func (v Vec2) LenSq() float64 { return v.X*v.X + v.Y*v.Y }

// Len returns the length of v.
func (v Vec2) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y) }

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Vec2 {
	return Vec2{r.X + r.Width/2, r.Y + r.Height/2}
}

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the identity color mask.
var ColorWhite = Color{1, 1, 1, 1}

// Pack converts c to a PackedColor, clamping each component to [0, 1].
func (c Color) Pack() PackedColor {
	return PackRGBA(unit8(c.R), unit8(c.G), unit8(c.B), unit8(c.A))
}

func unit8(v float64) uint8 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// PackedColor is an 8-bit-per-channel RGBA color packed as 0xRRGGBBAA.
// Draw items carry two of them: an additive bias and a multiplicative mask.
// The packed form doubles as a sort key so that items sharing render state
// end up adjacent.
type PackedColor uint32

const (
	// BiasNone adds nothing to the sampled texel.
	BiasNone PackedColor = 0x00000000
	// MaskNone leaves the sampled texel unchanged.
	MaskNone PackedColor = 0xFFFFFFFF
)

// PackRGBA builds a PackedColor from its four channels.
func PackRGBA(r, g, b, a uint8) PackedColor {
	return PackedColor(uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a))
}

// RGBA returns the four channels of c.
func (c PackedColor) RGBA() (r, g, b, a uint8) {
	return uint8(c >> 24), uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Alpha returns the alpha channel of c.
func (c PackedColor) Alpha() uint8 { return uint8(c) }

// WithAlpha returns c with its alpha channel replaced.
func (c PackedColor) WithAlpha(a uint8) PackedColor {
	return c&^0xFF | PackedColor(a)
}

// NRGBA converts c to a non-premultiplied image/color value.
func (c PackedColor) NRGBA() color.NRGBA {
	r, g, b, a := c.RGBA()
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

// Color converts c to floating point components.
func (c PackedColor) Color() Color {
	r, g, b, a := c.RGBA()
	return Color{float64(r) / 255, float64(g) / 255, float64(b) / 255, float64(a) / 255}
}

// TreeType distinguishes independent spatial trees built over the same
// objects. Each Object keeps one cached radius and one owning node per tree
// type, so the trees never share node state.
type TreeType uint8

const (
	TreeVisibility TreeType = iota // culling and selection queries, owned by ObjectLayer
	TreePhysics                    // owned by a PhysicsHandler that opts into it

	numTreeTypes
)

// String returns the tree type name used in panics and logs.
func (t TreeType) String() string {
	switch t {
	case TreeVisibility:
		return "visibility"
	case TreePhysics:
		return "physics"
	default:
		return "unknown"
	}
}
