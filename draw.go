package strata

import "fmt"

// DrawConfig sets the on-screen size thresholds used for culling and fading.
type DrawConfig struct {
	// LowerPixelRadius: objects whose visual radius covers fewer pixels are
	// skipped entirely.
	LowerPixelRadius float64 `toml:"lower_pixel_radius"`
	// UpperPixelRadius: objects between the two thresholds have their mask
	// alpha faded linearly so they do not pop in and out while zooming.
	UpperPixelRadius float64 `toml:"upper_pixel_radius"`
}

// DefaultDrawConfig returns the thresholds used when none are configured.
func DefaultDrawConfig() DrawConfig {
	return DrawConfig{LowerPixelRadius: 0.5, UpperPixelRadius: 2}
}

// DrawItem is one object ready for a renderer.
type DrawItem struct {
	Object    *Object
	ColorBias PackedColor
	// ColorMask is the object's mask with the fade already applied.
	ColorMask PackedColor
	// Position is the object's position relative to the view center, taken
	// along the shortest path in wrapped layers.
	Position    Vec2
	ZDepth      float64
	PixelRadius float64
	// Matrix maps object-local space to screen space.
	Matrix [6]float64
}

type drawStateKey struct {
	page uint16
	bias PackedColor
	mask PackedColor
}

func (d *DrawItem) stateKey() drawStateKey {
	return drawStateKey{d.Object.Region.Page, d.ColorBias, d.ColorMask}
}

// drawItemLess orders back to front by z-depth, then by atlas handle, color
// bias and color mask so items sharing render state are adjacent, and
// finally by object ID so the result never depends on traversal order.
func drawItemLess(a, b *DrawItem) bool {
	if a.ZDepth != b.ZDepth {
		return a.ZDepth > b.ZDepth
	}
	if pa, pb := a.Object.Region.Page, b.Object.Region.Page; pa != pb {
		return pa < pb
	}
	if a.ColorBias != b.ColorBias {
		return a.ColorBias < b.ColorBias
	}
	if a.ColorMask != b.ColorMask {
		return a.ColorMask < b.ColorMask
	}
	return a.Object.ID < b.Object.ID
}

// DrawCollector gathers the visible objects of one or more layers into an
// ordered DrawItem list. Its buffers are reused between frames.
type DrawCollector struct {
	config  DrawConfig
	items   []DrawItem
	sortBuf []DrawItem
	culled  int
	metrics *Metrics
}

// NewDrawCollector creates a collector with the given thresholds.
func NewDrawCollector(cfg DrawConfig) *DrawCollector {
	if cfg.LowerPixelRadius < 0 || cfg.UpperPixelRadius < cfg.LowerPixelRadius {
		panic(fmt.Sprintf("strata: invalid draw thresholds lower=%v upper=%v",
			cfg.LowerPixelRadius, cfg.UpperPixelRadius))
	}
	return &DrawCollector{config: cfg}
}

// SetMetrics attaches collectors for item and cull counts.
func (c *DrawCollector) SetMetrics(m *Metrics) { c.metrics = m }

// Config returns the thresholds.
func (c *DrawCollector) Config() DrawConfig { return c.config }

// Items returns the collected items. The slice is reused by the next Reset.
func (c *DrawCollector) Items() []DrawItem { return c.items }

// Culled returns how many visible objects were skipped for being too small
// since the last Reset.
func (c *DrawCollector) Culled() int { return c.culled }

// Reset clears the item list, keeping its storage.
func (c *DrawCollector) Reset() {
	for i := range c.items {
		c.items[i].Object = nil
	}
	c.items = c.items[:0]
	c.culled = 0
}

// Collect appends every object of v.Layer whose visual circle overlaps the
// view circle and whose pixel radius reaches the lower threshold.
func (c *DrawCollector) Collect(v LayerView) {
	l := v.Layer
	lower, upper := c.config.LowerPixelRadius, c.config.UpperPixelRadius
	start, culled := len(c.items), 0
	l.root.ForEachInArea(v.Center, v.Radius, l, func(o *Object) bool {
		pr := o.radius[TreeVisibility] * v.PixelsPerUnit
		if pr < lower {
			culled++
			return true
		}
		mask := o.ColorMask
		if pr < upper {
			f := (pr - lower) / (upper - lower)
			mask = mask.WithAlpha(uint8(float64(mask.Alpha())*f + 0.5))
		}
		rel := v.Relative(o.Transform.Position)
		c.items = append(c.items, DrawItem{
			Object:      o,
			ColorBias:   o.ColorBias,
			ColorMask:   mask,
			Position:    rel,
			ZDepth:      l.ZDepth,
			PixelRadius: pr,
			Matrix:      v.ObjectMatrix(o, rel),
		})
		return true
	})
	c.culled += culled
	c.metrics.collected(l.Name, len(c.items)-start, culled)
}

// CollectWorld resets the collector, collects every layer of w through cam
// and sorts the result.
func (c *DrawCollector) CollectWorld(w *World, cam *Camera) []DrawItem {
	c.Reset()
	for _, l := range w.layers {
		c.Collect(cam.View(l))
	}
	c.Sort()
	return c.items
}

// Batches returns the number of render state changes in the current item
// order.
func (c *DrawCollector) Batches() int {
	return countStateChanges(c.items)
}

// Sort orders the items with a bottom-up merge sort. No allocations once the
// scratch buffer has reached its high-water mark.
func (c *DrawCollector) Sort() {
	n := len(c.items)
	if n <= 1 {
		return
	}
	if cap(c.sortBuf) < n {
		c.sortBuf = make([]DrawItem, n)
	}
	c.sortBuf = c.sortBuf[:n]

	a, b := c.items, c.sortBuf
	swapped := false
	for width := 1; width < n; width *= 2 {
		for lo := 0; lo < n; lo += 2 * width {
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeDrawItems(a, b, lo, mid, hi)
		}
		a, b = b, a
		swapped = !swapped
	}
	if swapped {
		copy(c.items, c.sortBuf)
	}
}

// mergeDrawItems merges the sorted runs [lo, mid) and [mid, hi) of src into
// dst. Ties take from the left run, keeping the sort stable.
func mergeDrawItems(src, dst []DrawItem, lo, mid, hi int) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if drawItemLess(&src[j], &src[i]) {
			dst[k] = src[j]
			j++
		} else {
			dst[k] = src[i]
			i++
		}
		k++
	}
	k += copy(dst[k:], src[i:mid])
	copy(dst[k:], src[j:hi])
}
