package strata

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// RunConfig configures the window opened by Run.
type RunConfig struct {
	Title      string
	Width      int
	Height     int
	Background Color
	// ShowFPS overlays FPS, TPS and entity counts in the top-left corner.
	ShowFPS bool
}

// Game is an ebiten.Game that advances a World at the tick rate, collects
// its visible objects through a Camera and draws them with an
// EbitenRenderer. Embed or wrap it to add input handling.
type Game struct {
	World     *World
	Camera    *Camera
	Collector *DrawCollector
	Renderer  *EbitenRenderer

	cfg    RunConfig
	clock  float64
	update func(g *Game, dt float64) error
}

// NewGame wires the pieces together. A nil collector or renderer is replaced
// by a default one.
func NewGame(w *World, cam *Camera, dc *DrawCollector, r *EbitenRenderer, cfg RunConfig) *Game {
	if dc == nil {
		dc = NewDrawCollector(DefaultDrawConfig())
	}
	if r == nil {
		r = NewEbitenRenderer()
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		cam.Viewport = Rect{Width: float64(cfg.Width), Height: float64(cfg.Height)}
	}
	return &Game{World: w, Camera: cam, Collector: dc, Renderer: r, cfg: cfg}
}

// SetUpdateFunc sets a callback run at the start of every tick, before the
// World processes the frame.
func (g *Game) SetUpdateFunc(fn func(g *Game, dt float64) error) {
	g.update = fn
}

// Clock returns the accumulated simulation time in seconds.
func (g *Game) Clock() float64 { return g.clock }

// Update implements ebiten.Game.
func (g *Game) Update() error {
	dt := 1 / float64(ebiten.TPS())
	g.clock += dt
	if g.update != nil {
		if err := g.update(g, dt); err != nil {
			return err
		}
	}
	g.World.ProcessFrame(g.clock)
	g.Camera.Update(float32(dt))
	return nil
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	if g.cfg.Background != (Color{}) {
		screen.Fill(g.cfg.Background.Pack().NRGBA())
	}
	items := g.Collector.CollectWorld(g.World, g.Camera)
	g.Renderer.Draw(screen, items)
	if g.cfg.ShowFPS {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nEntities: %d\nDrawn: %d Culled: %d Batches: %d",
			ebiten.ActualFPS(), ebiten.ActualTPS(), g.World.NumEntities(),
			g.Renderer.Drawn, g.Collector.Culled(), g.Renderer.Batches))
	}
}

// Layout implements ebiten.Game.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if g.cfg.Width > 0 && g.cfg.Height > 0 {
		return g.cfg.Width, g.cfg.Height
	}
	g.Camera.Viewport = Rect{Width: float64(outsideWidth), Height: float64(outsideHeight)}
	return outsideWidth, outsideHeight
}

// Run opens a window and runs g until the window is closed or an update
// returns an error. The World is closed on return.
func Run(g *Game) error {
	defer g.World.Close()
	if g.cfg.Title != "" {
		ebiten.SetWindowTitle(g.cfg.Title)
	}
	if g.cfg.Width > 0 && g.cfg.Height > 0 {
		ebiten.SetWindowSize(g.cfg.Width, g.cfg.Height)
	}
	return ebiten.RunGame(g)
}
