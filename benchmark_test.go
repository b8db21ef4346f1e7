package strata

import (
	"math"
	"math/rand/v2"
	"testing"
)

// setupBenchWorld creates a World with one wrapped main layer holding n
// dynamic objects of mixed sizes drifting in random directions, plus n/4
// static objects on a parallax layer behind it.
func setupBenchWorld(n int) (*World, *Camera) {
	rng := rand.New(rand.NewPCG(1, 2))
	w := NewWorld(n+1, NewKinematicPhysics(DefaultTreeConfig(), nil))
	main := w.NewLayer(LayerConfig{Name: "field", SideLength: 8192, Wrapped: true})
	back := w.NewLayer(LayerConfig{Name: "stars", SideLength: 8192, Wrapped: true, ZDepth: 1000})

	for i := 0; i < n; i++ {
		o := NewDynamicObject("ship", 4+rng.Float64()*28, nil)
		o.Transform.Position = Vec2{rng.Float64()*8192 - 4096, rng.Float64()*8192 - 4096}
		o.Region = TextureRegion{Page: uint16(i % 4), Width: 32, Height: 32, OriginalW: 32, OriginalH: 32}
		w.AddDynamicObject(o, main)
		a := rng.Float64() * 2 * math.Pi
		o.Entity().Velocity = Vec2{math.Cos(a) * 60, math.Sin(a) * 60}
	}
	for i := 0; i < n/4; i++ {
		o := NewObject("star", 1+rng.Float64()*6)
		o.Transform.Position = Vec2{rng.Float64()*8192 - 4096, rng.Float64()*8192 - 4096}
		w.AddStaticObject(o, back)
	}
	cam := NewCamera(Rect{Width: 1280, Height: 720})
	return w, cam
}

// --- Tree benchmarks ---

func BenchmarkReAdd_10000Moving(b *testing.B) {
	w, _ := setupBenchWorld(10000)
	main := w.MainLayer()
	var objs []*Object
	main.ForEachObject(func(o *Object) bool {
		objs = append(objs, o)
		return true
	})

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, o := range objs {
			p := o.Transform.Position
			main.MoveObject(o, Vec2{p.X + 3, p.Y - 2})
		}
	}
}

func BenchmarkObjectsInArea_10000(b *testing.B) {
	w, _ := setupBenchWorld(10000)
	main := w.MainLayer()
	dst := make([]*Object, 0, 256)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		dst = main.ObjectsInArea(Vec2{4000, -4000}, 400, dst[:0])
	}
}

func BenchmarkSmallestObjectTouchingPoint_10000(b *testing.B) {
	w, _ := setupBenchWorld(10000)
	main := w.MainLayer()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		main.SmallestObjectTouchingPoint(Vec2{float64(i%8192) - 4096, 0})
	}
}

func BenchmarkAnyObjectOverlapsArea_10000(b *testing.B) {
	w, _ := setupBenchWorld(10000)
	main := w.MainLayer()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		main.AnyObjectOverlapsArea(Vec2{float64(i%8192) - 4096, 1000}, 5)
	}
}

// --- Frame benchmarks ---

func BenchmarkProcessFrame_10000Entities(b *testing.B) {
	w, _ := setupBenchWorld(10000)
	now := 0.0
	w.ProcessFrame(now)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		now += 1.0 / 60
		w.ProcessFrame(now)
	}
}

func BenchmarkCollectWorld_10000(b *testing.B) {
	w, cam := setupBenchWorld(10000)
	cam.Zoom = 0.5
	dc := NewDrawCollector(DefaultDrawConfig())

	// Warm up: first collect grows the item and sort buffers.
	dc.CollectWorld(w, cam)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		dc.CollectWorld(w, cam)
	}
}

func BenchmarkCollectWorld_10000_Panning(b *testing.B) {
	w, cam := setupBenchWorld(10000)
	cam.Zoom = 0.5
	dc := NewDrawCollector(DefaultDrawConfig())
	dc.CollectWorld(w, cam)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		cam.Center.X += 7
		dc.CollectWorld(w, cam)
	}
}

func BenchmarkPick_10000(b *testing.B) {
	w, cam := setupBenchWorld(10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cam.Pick(w, Vec2{float64(i % 1280), 360})
	}
}
