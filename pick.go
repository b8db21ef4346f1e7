package strata

import "slices"

// PickResult is the object found under a screen point.
type PickResult struct {
	Object *Object
	Layer  *ObjectLayer
	// Point is the screen point converted to the layer's coordinates.
	Point Vec2
}

// Pick finds the topmost object under screen point s. Layers are searched
// front to back (ascending z-depth; for equal depths the later layer first)
// and within a layer the smallest touching object wins. The zero
// PickResult is returned when nothing is hit.
func (c *Camera) Pick(w *World, s Vec2) PickResult {
	return c.PickFunc(w, s, nil)
}

// PickFunc is like Pick but only considers layers for which accept returns
// true. A nil accept considers every layer.
func (c *Camera) PickFunc(w *World, s Vec2, accept func(l *ObjectLayer) bool) PickResult {
	order := make([]*ObjectLayer, len(w.layers))
	copy(order, w.layers)
	slices.Reverse(order)
	slices.SortStableFunc(order, func(a, b *ObjectLayer) int {
		switch {
		case a.ZDepth < b.ZDepth:
			return -1
		case a.ZDepth > b.ZDepth:
			return 1
		}
		return 0
	})

	for _, l := range order {
		if accept != nil && !accept(l) {
			continue
		}
		if l.root.count == 0 {
			continue
		}
		p := c.View(l).ScreenToWorld(s)
		if o := l.SmallestObjectTouchingPoint(p); o != nil {
			return PickResult{Object: o, Layer: l, Point: p}
		}
	}
	return PickResult{}
}
