package strata

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func newDrawWorld(t *testing.T) (*World, *ObjectLayer, *Camera) {
	t.Helper()
	w := NewWorld(16, nil)
	l := w.NewLayer(LayerConfig{Name: "main", SideLength: 1000})
	return w, l, NewCamera(Rect{Width: 800, Height: 600})
}

func pagedObject(page uint16, r, x float64) *Object {
	o := newTestObject(r, x, 0)
	o.Region = TextureRegion{Page: page, Width: 8, Height: 8}
	return o
}

func pagesOf(items []DrawItem) []uint16 {
	pages := make([]uint16, len(items))
	for i, it := range items {
		pages[i] = it.Object.Region.Page
	}
	return pages
}

func TestDrawSameDepthGroupsByPage(t *testing.T) {
	orders := [][]uint16{{3, 1, 2}, {1, 2, 3}, {2, 3, 1}}
	for _, order := range orders {
		w, l, cam := newDrawWorld(t)
		for i, page := range order {
			w.AddStaticObject(pagedObject(page, 5, float64(i*20)), l)
		}
		dc := NewDrawCollector(DefaultDrawConfig())
		items := dc.CollectWorld(w, cam)
		require.Equal(t, []uint16{1, 2, 3}, pagesOf(items), "insertion order %v", order)
	}
}

func TestDrawBackToFront(t *testing.T) {
	w := NewWorld(16, nil)
	main := w.NewLayer(LayerConfig{Name: "main", SideLength: 1000})
	far := w.NewLayer(LayerConfig{Name: "far", SideLength: 1000, ZDepth: 500})
	near := w.NewLayer(LayerConfig{Name: "near", SideLength: 1000, ZDepth: -200})
	w.AddStaticObject(pagedObject(0, 5, 0), main)
	w.AddStaticObject(pagedObject(0, 5, 0), near)
	w.AddStaticObject(pagedObject(0, 5, 0), far)

	items := NewDrawCollector(DefaultDrawConfig()).CollectWorld(w, NewCamera(Rect{Width: 800, Height: 600}))
	require.Len(t, items, 3)
	require.Equal(t, []float64{500, 0, -200}, []float64{items[0].ZDepth, items[1].ZDepth, items[2].ZDepth})
}

func TestDrawOrderKeys(t *testing.T) {
	w, l, cam := newDrawWorld(t)
	a := pagedObject(1, 5, 0)
	a.ColorBias = PackRGBA(0, 0, 0, 10)
	b := pagedObject(1, 5, 10)
	b.ColorBias = PackRGBA(0, 0, 0, 5)
	c := pagedObject(1, 5, 20)
	c.ColorBias = b.ColorBias
	c.ColorMask = PackRGBA(255, 0, 0, 255)
	d := pagedObject(0, 5, 30)
	for _, o := range []*Object{a, b, c, d} {
		w.AddStaticObject(o, l)
	}

	items := NewDrawCollector(DefaultDrawConfig()).CollectWorld(w, cam)
	got := make([]*Object, len(items))
	for i := range items {
		got[i] = items[i].Object
	}
	// Page first, then bias, then mask.
	require.Equal(t, []*Object{d, c, b, a}, got)
}

func TestDrawOrderTieBreaksOnID(t *testing.T) {
	w, l, cam := newDrawWorld(t)
	objs := []*Object{pagedObject(0, 5, 0), pagedObject(0, 5, 10), pagedObject(0, 5, -10)}
	for i := len(objs) - 1; i >= 0; i-- {
		w.AddStaticObject(objs[i], l)
	}
	items := NewDrawCollector(DefaultDrawConfig()).CollectWorld(w, cam)
	for i := 1; i < len(items); i++ {
		require.Less(t, items[i-1].Object.ID, items[i].Object.ID)
	}
}

func TestDrawCullAndFade(t *testing.T) {
	w, l, cam := newDrawWorld(t)
	tiny := newTestObject(0.4, 0, 0)
	faded := newTestObject(1.25, 10, 0)
	full := newTestObject(3, 20, 0)
	for _, o := range []*Object{tiny, faded, full} {
		w.AddStaticObject(o, l)
	}

	m := NewMetrics(nil)
	dc := NewDrawCollector(DrawConfig{LowerPixelRadius: 0.5, UpperPixelRadius: 2})
	dc.SetMetrics(m)
	items := dc.CollectWorld(w, cam)

	require.Len(t, items, 2)
	require.Equal(t, 1, dc.Culled())
	byObj := map[*Object]DrawItem{}
	for _, it := range items {
		byObj[it.Object] = it
	}
	require.Equal(t, uint8(128), byObj[faded].ColorMask.Alpha())
	require.Equal(t, MaskNone.WithAlpha(128), byObj[faded].ColorMask)
	require.Equal(t, MaskNone, byObj[full].ColorMask)
	require.InDelta(t, 1.25, byObj[faded].PixelRadius, epsilon)

	require.Equal(t, 2.0, metricValue(t, m.DrawItems.WithLabelValues("main")))
	require.Equal(t, 1.0, metricValue(t, m.Culled.WithLabelValues("main")))

	// Zooming in brings the tiny object back at full strength.
	cam.Zoom = 10
	items = dc.CollectWorld(w, cam)
	require.Len(t, items, 3)
	require.Zero(t, dc.Culled())
}

func TestDrawOnlyVisibleObjects(t *testing.T) {
	w, l, cam := newDrawWorld(t)
	in := newTestObject(5, 100, 100)
	edge := newTestObject(50, 440, 0) // circle reaches into the 500 unit view circle
	out := newTestObject(5, 480, 480)
	for _, o := range []*Object{in, edge, out} {
		w.AddStaticObject(o, l)
	}
	items := NewDrawCollector(DefaultDrawConfig()).CollectWorld(w, cam)
	got := map[*Object]bool{}
	for _, it := range items {
		got[it.Object] = true
	}
	require.True(t, got[in])
	require.True(t, got[edge])
	require.False(t, got[out])
}

func TestDrawItemMatrixPlacesObject(t *testing.T) {
	w, l, cam := newDrawWorld(t)
	o := newTestObject(5, 10, 0)
	w.AddStaticObject(o, l)
	cam.Zoom = 2

	items := NewDrawCollector(DefaultDrawConfig()).CollectWorld(w, cam)
	require.Len(t, items, 1)
	require.Equal(t, Vec2{10, 0}, items[0].Position)
	x, y := transformPoint(items[0].Matrix, 0, 0)
	require.InDelta(t, 420, x, epsilon)
	require.InDelta(t, 300, y, epsilon)
	x, _ = transformPoint(items[0].Matrix, 1, 0)
	require.InDelta(t, 422, x, epsilon, "one object unit is two pixels at zoom 2")
}

func TestDrawWrappedLayerShowsObjectOnceAcrossSeam(t *testing.T) {
	w := NewWorld(4, nil)
	l := w.NewLayer(LayerConfig{Name: "field", SideLength: 1000, Wrapped: true})
	o := newTestObject(5, -495, 0)
	w.AddStaticObject(o, l)

	cam := NewCamera(Rect{Width: 200, Height: 200})
	cam.Center = Vec2{490, 0}
	items := NewDrawCollector(DefaultDrawConfig()).CollectWorld(w, cam)
	require.Len(t, items, 1)
	require.InDelta(t, 15, items[0].Position.X, epsilon)

	// An unwrapped camera position several laps away sees the same thing.
	cam.Center = Vec2{490 + 3000, 0}
	items = NewDrawCollector(DefaultDrawConfig()).CollectWorld(w, cam)
	require.Len(t, items, 1)
	require.InDelta(t, 15, items[0].Position.X, epsilon)
}

func TestDrawCollectorReuse(t *testing.T) {
	w, l, cam := newDrawWorld(t)
	w.AddStaticObject(newTestObject(5, 0, 0), l)
	dc := NewDrawCollector(DefaultDrawConfig())
	require.Len(t, dc.CollectWorld(w, cam), 1)
	require.Len(t, dc.CollectWorld(w, cam), 1)
	dc.Reset()
	require.Empty(t, dc.Items())
}

func TestDrawSortMatchesOrdering(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	dc := NewDrawCollector(DefaultDrawConfig())
	for n := 0; n < 70; n++ {
		dc.Reset()
		for i := 0; i < n; i++ {
			o := NewObject("x", 1)
			o.Region.Page = uint16(rng.IntN(3))
			o.ColorBias = PackedColor(rng.IntN(2))
			dc.items = append(dc.items, DrawItem{Object: o, ZDepth: float64(rng.IntN(3) * 100), ColorBias: o.ColorBias, ColorMask: MaskNone})
		}
		rng.Shuffle(len(dc.items), func(i, j int) { dc.items[i], dc.items[j] = dc.items[j], dc.items[i] })
		dc.Sort()
		require.Len(t, dc.Items(), n)
		for i := 1; i < n; i++ {
			require.False(t, drawItemLess(&dc.items[i], &dc.items[i-1]), "n=%d position %d out of order", n, i)
		}
	}
}

func TestDrawBatches(t *testing.T) {
	w, l, cam := newDrawWorld(t)
	for i, page := range []uint16{0, 1, 0, 1, 2} {
		w.AddStaticObject(pagedObject(page, 5, float64(i*10)), l)
	}
	dc := NewDrawCollector(DefaultDrawConfig())
	dc.CollectWorld(w, cam)
	require.Equal(t, 3, dc.Batches())
	require.Zero(t, countStateChanges(nil))
}

func TestNewDrawCollectorRejectsBadThresholds(t *testing.T) {
	require.Panics(t, func() { NewDrawCollector(DrawConfig{LowerPixelRadius: -1, UpperPixelRadius: 1}) })
	require.Panics(t, func() { NewDrawCollector(DrawConfig{LowerPixelRadius: 2, UpperPixelRadius: 1}) })
	require.NotPanics(t, func() { NewDrawCollector(DrawConfig{LowerPixelRadius: 1, UpperPixelRadius: 1}) })
}
