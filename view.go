package strata

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// DefaultFocalDepth is the focal depth of a new Camera.
const DefaultFocalDepth = 1000

// scrollAnim holds the active scroll-to tweens for both camera axes.
type scrollAnim struct {
	tweenX *gween.Tween
	tweenY *gween.Tween
	doneX  bool
	doneY  bool
}

// Camera looks at the main layer of a World. Other layers are seen through
// it with a parallax factor derived from their z-depth relative to the main
// layer.
type Camera struct {
	// Center is the main-layer point at the middle of the viewport. It is
	// not wrapped; following an entity in a wrapped layer tracks its
	// unwrapped position so the camera never jumps at the seam.
	Center Vec2
	// Zoom is the number of pixels per main-layer unit.
	Zoom float64
	// Rotation is the view rotation in radians (clockwise).
	Rotation float64
	// Viewport is the screen rectangle the camera renders into.
	Viewport Rect
	// FocalDepth is the distance from the eye to the main layer in z units.
	FocalDepth float64

	follow       *Entity
	followOffset Vec2
	followLerp   float64

	scroll *scrollAnim
}

// NewCamera creates a camera at the origin with unit zoom.
func NewCamera(viewport Rect) *Camera {
	return &Camera{
		Zoom:       1,
		Viewport:   viewport,
		FocalDepth: DefaultFocalDepth,
	}
}

// Follow makes the camera track e with the given offset. A lerp of 1 snaps
// every update; lower values trail smoothly.
func (c *Camera) Follow(e *Entity, offset Vec2, lerp float64) {
	c.follow = e
	c.followOffset = offset
	c.followLerp = lerp
}

// Unfollow stops tracking.
func (c *Camera) Unfollow() {
	c.follow = nil
}

// Following returns the followed entity, or nil.
func (c *Camera) Following() *Entity {
	return c.follow
}

// ScrollTo animates Center to target over duration seconds.
func (c *Camera) ScrollTo(target Vec2, duration float32, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.Linear
	}
	c.scroll = &scrollAnim{
		tweenX: gween.New(float32(c.Center.X), float32(target.X), duration, easeFn),
		tweenY: gween.New(float32(c.Center.Y), float32(target.Y), duration, easeFn),
	}
}

// IsScrolling reports whether a ScrollTo animation is running.
func (c *Camera) IsScrolling() bool {
	return c.scroll != nil
}

// Update advances follow and scroll animations by dt seconds. A followed
// entity that has left its World is dropped.
func (c *Camera) Update(dt float32) {
	if c.follow != nil {
		if !c.follow.InWorld() {
			c.follow = nil
		} else {
			target := c.follow.UnwrappedPosition().Add(c.followOffset)
			c.Center = c.Center.Add(target.Sub(c.Center).Scale(c.followLerp))
		}
	}

	if s := c.scroll; s != nil {
		if !s.doneX {
			v, done := s.tweenX.Update(dt)
			c.Center.X = float64(v)
			s.doneX = done
		}
		if !s.doneY {
			v, done := s.tweenY.Update(dt)
			c.Center.Y = float64(v)
			s.doneY = done
		}
		if s.doneX && s.doneY {
			c.scroll = nil
		}
	}
}

// ParallaxScale returns how much a layer at depth z is scaled and displaced
// relative to the main layer at depth mainZ: focal/(focal + z - mainZ).
// Layers behind the main layer (larger z) move and appear slower and smaller.
func (c *Camera) ParallaxScale(z, mainZ float64) float64 {
	denom := c.FocalDepth + z - mainZ
	assertf(denom > 0, "ParallaxScale: layer depth %v is at or in front of the eye (focal %v, main %v)", z, c.FocalDepth, mainZ)
	return c.FocalDepth / denom
}

// LayerView describes what the camera sees of one layer.
type LayerView struct {
	Layer *ObjectLayer
	// Center is the layer point at the middle of the viewport, canonical
	// for wrapped layers.
	Center Vec2
	// Radius is the view circle radius in layer units: half the viewport
	// diagonal.
	Radius float64
	// PixelsPerUnit converts layer lengths to screen pixels.
	PixelsPerUnit float64
	// Parallax is the scale applied relative to the main layer.
	Parallax float64
	// Matrix maps view-relative layer positions (AdjustedDifference from
	// Center) to screen coordinates.
	Matrix [6]float64

	inverse [6]float64
}

// View returns the LayerView for l. The parallax reference is the main layer
// of l's World, or l itself when it has none.
func (c *Camera) View(l *ObjectLayer) LayerView {
	mainZ := l.ZDepth
	if w := l.world; w != nil && w.main != nil {
		mainZ = w.main.ZDepth
	}
	return c.viewAt(l, mainZ)
}

func (c *Camera) viewAt(l *ObjectLayer, mainZ float64) LayerView {
	s := c.ParallaxScale(l.ZDepth, mainZ)
	ppu := c.Zoom * s
	assertf(ppu > 0, "View: non-positive pixels per unit %v", ppu)

	center := c.Center.Scale(s)
	if l.wrapped {
		center = l.Canonicalize(center)
	}

	halfDiag := math.Hypot(c.Viewport.Width, c.Viewport.Height) / 2
	m := viewMatrix(c.Viewport, ppu, c.Rotation)
	inv, ok := invertAffine(m)
	assertf(ok, "View: singular view matrix for layer %q", l.Name)
	return LayerView{
		Layer:         l,
		Center:        center,
		Radius:        halfDiag / ppu,
		PixelsPerUnit: ppu,
		Parallax:      s,
		Matrix:        m,
		inverse:       inv,
	}
}

// viewMatrix = Translate(viewport center) * Scale(ppu) * Rotate(-rotation).
// Translation by -Center is applied beforehand through AdjustedDifference so
// wrapped layers stay seam free.
func viewMatrix(vp Rect, ppu, rotation float64) [6]float64 {
	sin, cos := math.Sincos(-rotation)
	return [6]float64{
		ppu * cos, ppu * sin,
		-ppu * sin, ppu * cos,
		vp.X + vp.Width/2, vp.Y + vp.Height/2,
	}
}

// Relative returns p relative to the view center, using the layer's
// wrap-aware difference.
func (v LayerView) Relative(p Vec2) Vec2 {
	return v.Layer.AdjustedDifference(p, v.Center)
}

// WorldToScreen converts a layer position to screen coordinates.
func (v LayerView) WorldToScreen(p Vec2) Vec2 {
	r := v.Relative(p)
	x, y := transformPoint(v.Matrix, r.X, r.Y)
	return Vec2{x, y}
}

// ScreenToWorld converts screen coordinates to a canonical layer position.
func (v LayerView) ScreenToWorld(s Vec2) Vec2 {
	x, y := transformPoint(v.inverse, s.X, s.Y)
	p := v.Center.Add(Vec2{x, y})
	if v.Layer.wrapped {
		p = v.Layer.Canonicalize(p)
	}
	return p
}

// ObjectMatrix returns the object-to-screen matrix for o drawn at the given
// view-relative position.
func (v LayerView) ObjectMatrix(o *Object, rel Vec2) [6]float64 {
	return multiplyAffine(v.Matrix, o.Transform.matrixAt(rel))
}
