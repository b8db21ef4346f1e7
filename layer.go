package strata

import (
	"fmt"
	"math"
)

// LayerConfig describes one ObjectLayer. The toml tags match the [[layers]]
// tables of a world config file.
type LayerConfig struct {
	Name       string  `toml:"name"`
	SideLength float64 `toml:"side_length"`
	Wrapped    bool    `toml:"wrapped"`
	ZDepth     float64 `toml:"z_depth"`
	Main       bool    `toml:"main"`
}

// TreeConfig controls the shape of every quadtree built for a layer.
type TreeConfig struct {
	// MinLeafSize is the smallest leaf side length worth subdividing down to.
	MinLeafSize float64 `toml:"min_leaf_size"`
	// MaxDepth caps the number of levels below the root.
	MaxDepth int `toml:"max_depth"`
}

// DefaultTreeConfig returns the tree shape used when none is configured.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{MinLeafSize: 64, MaxDepth: 7}
}

// Depth returns the tree depth for a square of the given side: the number of
// halvings before a leaf would be smaller than MinLeafSize, capped at
// MaxDepth.
func (c TreeConfig) Depth(side float64) int {
	if c.MinLeafSize <= 0 || side <= c.MinLeafSize {
		return 0
	}
	d := int(math.Floor(math.Log2(side / c.MinLeafSize)))
	if d > c.MaxDepth {
		d = c.MaxDepth
	}
	if d < 0 {
		d = 0
	}
	return d
}

// ObjectLayer is one depth slice of the world: a centered square of
// SideLength, a containment policy (clamp or toroidal wrap), a z-depth used
// for parallax and draw ordering, and a visibility quadtree over its objects.
//
// The layer owns its static objects. Dynamic objects are owned by the World
// and only indexed here.
type ObjectLayer struct {
	Name       string
	SideLength float64
	ZDepth     float64

	wrapped bool
	half    float64
	root    *SpatialNode
	world   *World

	destroyed bool
}

// NewObjectLayer creates an empty layer with a visibility tree shaped by tc.
func NewObjectLayer(cfg LayerConfig, tc TreeConfig) *ObjectLayer {
	return newObjectLayerDepth(cfg, tc.Depth(cfg.SideLength))
}

func newObjectLayerDepth(cfg LayerConfig, depth int) *ObjectLayer {
	if !(cfg.SideLength > 0) || math.IsInf(cfg.SideLength, 0) {
		panic(fmt.Sprintf("strata: layer %q: invalid side length %v", cfg.Name, cfg.SideLength))
	}
	half := cfg.SideLength / 2
	return &ObjectLayer{
		Name:       cfg.Name,
		SideLength: cfg.SideLength,
		ZDepth:     cfg.ZDepth,
		wrapped:    cfg.Wrapped,
		half:       half,
		root:       NewSpatialTree(TreeVisibility, Vec2{}, half, depth),
	}
}

// IsWrapped reports whether the layer is toroidal.
func (l *ObjectLayer) IsWrapped() bool { return l.wrapped }

// HalfSide returns SideLength/2, the extent of the layer on each side of the
// origin.
func (l *ObjectLayer) HalfSide() float64 { return l.half }

// Root returns the visibility tree root.
func (l *ObjectLayer) Root() *SpatialNode { return l.root }

// World returns the World the layer was added to, or nil.
func (l *ObjectLayer) World() *World { return l.world }

// Count returns the number of objects in the layer.
func (l *ObjectLayer) Count() int { return l.root.count }

// StaticCount returns the number of static objects in the layer.
func (l *ObjectLayer) StaticCount() int { return l.root.static }

// Config returns the LayerConfig that would recreate this layer. Main is
// reported from the owning World.
func (l *ObjectLayer) Config() LayerConfig {
	return LayerConfig{
		Name:       l.Name,
		SideLength: l.SideLength,
		Wrapped:    l.wrapped,
		ZDepth:     l.ZDepth,
		Main:       l.world != nil && l.world.main == l,
	}
}

// AddObject applies the layer's containment policy to o and inserts it into
// the visibility tree. Adding an object already in a layer panics.
func (l *ObjectLayer) AddObject(o *Object) {
	if o == nil {
		panic("strata: cannot add nil object to layer")
	}
	assertf(!l.destroyed, "AddObject: layer %q is destroyed", l.Name)
	assertf(o.layer == nil, "AddObject: object %d is already in layer %q", o.ID, layerName(o.layer))
	assertf(!o.destroyed, "AddObject: object %d is destroyed", o.ID)
	o.layer = l
	l.HandleContainmentOrWrapping(o)
	ok := l.root.Add(o)
	assertf(ok, "AddObject: object %d rejected by layer %q root", o.ID, l.Name)
}

// RemoveObject takes o out of the visibility tree. It returns false when o
// is not in this layer. Dynamic objects owned by a World must leave through
// World.RemoveDynamicObject instead.
func (l *ObjectLayer) RemoveObject(o *Object) bool {
	if o == nil || o.layer != l {
		return false
	}
	assertf(o.entity == nil || o.entity.world == nil,
		"RemoveObject: object %d is owned by a world; use World.RemoveDynamicObject", o.ID)
	l.removeObject(o)
	return true
}

func (l *ObjectLayer) removeObject(o *Object) {
	l.root.Remove(o)
	o.layer = nil
}

// HandleContainmentOrWrapping forces o's position into the layer domain.
//
// In a clamped layer each coordinate is clamped to [-side/2, side/2] and the
// clamped axes are returned and reported to o's Entity. In a wrapped layer
// each coordinate is wrapped into [-side/2, side/2) and the displacement is
// accumulated into the Entity's wrapped offset; nothing is reported as
// clamped. The trees are not touched; MoveObject does that.
func (l *ObjectLayer) HandleContainmentOrWrapping(o *Object) (clampedX, clampedY bool) {
	p := o.Transform.Position
	if l.wrapped {
		w := Vec2{l.wrap(p.X), l.wrap(p.Y)}
		if w != p {
			o.Transform.Position = w
			d := p.Sub(w)
			if e := o.entity; e != nil && !math.IsNaN(d.X) && !math.IsNaN(d.Y) && !math.IsInf(d.X, 0) && !math.IsInf(d.Y, 0) {
				e.wrappedOffset = e.wrappedOffset.Add(d)
			}
		}
		return false, false
	}

	var c Vec2
	c.X, clampedX = l.clamp(p.X)
	c.Y, clampedY = l.clamp(p.Y)
	if clampedX || clampedY {
		o.Transform.Position = c
		if e := o.entity; e != nil {
			e.onClamped(clampedX, clampedY)
		}
	}
	return clampedX, clampedY
}

func (l *ObjectLayer) clamp(v float64) (float64, bool) {
	switch {
	case v < -l.half:
		return -l.half, true
	case v > l.half:
		return l.half, true
	case v != v:
		return 0, true
	}
	return v, false
}

// wrap maps v into [-half, half). Non-finite values map to 0, as clamp
// does for NaN.
func (l *ObjectLayer) wrap(v float64) float64 {
	if v >= -l.half && v < l.half {
		return v
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	w := v - l.SideLength*math.Floor((v+l.half)/l.SideLength)
	// Rounding can land exactly on the open edge.
	if w >= l.half {
		w -= l.SideLength
	}
	if w < -l.half {
		w = -l.half
	}
	return w
}

// Canonicalize maps p into the layer domain without touching any object:
// wrapped into [-side/2, side/2) or clamped to ±side/2.
func (l *ObjectLayer) Canonicalize(p Vec2) Vec2 {
	if l.wrapped {
		return Vec2{l.wrap(p.X), l.wrap(p.Y)}
	}
	x, _ := l.clamp(p.X)
	y, _ := l.clamp(p.Y)
	return Vec2{x, y}
}

// AdjustedDifference returns p-q. In a wrapped layer each component is
// reduced modulo SideLength to the shortest vector on the torus, with
// magnitude at most side/2.
func (l *ObjectLayer) AdjustedDifference(p, q Vec2) Vec2 {
	d := p.Sub(q)
	if !l.wrapped {
		return d
	}
	d.X -= l.SideLength * math.Round(d.X/l.SideLength)
	d.Y -= l.SideLength * math.Round(d.Y/l.SideLength)
	return d
}

// AdjustedDistance returns the length of AdjustedDifference(p, q).
func (l *ObjectLayer) AdjustedDistance(p, q Vec2) float64 {
	return l.AdjustedDifference(p, q).Len()
}

// MoveObject sets o's position, applies containment or wrapping and
// relocates o in every tree that holds it.
func (l *ObjectLayer) MoveObject(o *Object, p Vec2) {
	assertf(o.layer == l, "MoveObject: object %d is not in layer %q", o.ID, l.Name)
	o.Transform.Position = p
	l.HandleContainmentOrWrapping(o)
	o.reAddAll()
}

// SmallestObjectTouchingPoint returns the smallest object whose visual circle
// contains p, or nil. Used for editor and pointer selection.
func (l *ObjectLayer) SmallestObjectTouchingPoint(p Vec2) *Object {
	return l.root.SmallestObjectTouchingPoint(p, l)
}

// AnyObjectOverlapsArea reports whether any object's visual circle overlaps
// the circle at center with the given radius.
func (l *ObjectLayer) AnyObjectOverlapsArea(center Vec2, radius float64) bool {
	return l.root.AnyObjectOverlapsArea(center, radius, l)
}

// ObjectsInArea appends every object whose visual circle overlaps the query
// circle to dst and returns it.
func (l *ObjectLayer) ObjectsInArea(center Vec2, radius float64, dst []*Object) []*Object {
	l.root.ForEachInArea(center, radius, l, func(o *Object) bool {
		dst = append(dst, o)
		return true
	})
	return dst
}

// ForEachObject calls fn for every object in the layer in tree order.
// Iteration stops when fn returns false. fn must not add or remove objects.
func (l *ObjectLayer) ForEachObject(fn func(o *Object) bool) {
	stop := false
	l.root.Walk(func(n *SpatialNode) bool {
		if stop || n.count == 0 {
			return false
		}
		for _, o := range n.objects {
			if !fn(o) {
				stop = true
				return false
			}
		}
		return true
	})
}

// destroy detaches every remaining object and destroys the static ones.
// Dynamic objects must already have been removed by the World.
func (l *ObjectLayer) destroy() {
	l.root.clear(func(o *Object) {
		o.layer = nil
		if o.entity == nil {
			o.destroy()
		}
	})
	l.world = nil
	l.destroyed = true
}
