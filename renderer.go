package strata

import (
	"fmt"
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/colorm"
)

// discSize is the side of the generated disc texture used for objects
// without a texture region.
const discSize = 64

// EbitenRenderer draws ordered DrawItem lists onto Ebitengine images. Atlas
// pages are registered under the same handles carried by TextureRegion.Page.
type EbitenRenderer struct {
	pages []*ebiten.Image
	disc  *ebiten.Image

	// Batches is the number of render state changes in the last Draw.
	Batches int
	// Drawn is the number of items submitted by the last Draw.
	Drawn int
}

// NewEbitenRenderer creates a renderer with no pages.
func NewEbitenRenderer() *EbitenRenderer {
	return &EbitenRenderer{}
}

// NextPage returns the first unused page handle, suitable as the firstPage
// argument of LoadAtlas.
func (r *EbitenRenderer) NextPage() uint16 {
	return uint16(len(r.pages))
}

// RegisterPage associates img with a page handle, replacing any previous
// image.
func (r *EbitenRenderer) RegisterPage(page uint16, img *ebiten.Image) {
	for int(page) >= len(r.pages) {
		r.pages = append(r.pages, nil)
	}
	r.pages[page] = img
}

// RegisterAtlas registers one image per atlas page.
func (r *EbitenRenderer) RegisterAtlas(a *Atlas, pages []*ebiten.Image) error {
	if len(pages) != a.NumPages {
		return fmt.Errorf("strata: atlas has %d pages, got %d images", a.NumPages, len(pages))
	}
	for i, img := range pages {
		r.RegisterPage(a.FirstPage+uint16(i), img)
	}
	return nil
}

// Page returns the image registered for a handle, or nil.
func (r *EbitenRenderer) Page(page uint16) *ebiten.Image {
	if int(page) >= len(r.pages) {
		return nil
	}
	return r.pages[page]
}

// Draw submits items in order. Each item's color mask scales the texel and
// its color bias is added afterwards. Objects without a texture region are
// drawn as solid discs of their visual diameter.
func (r *EbitenRenderer) Draw(target *ebiten.Image, items []DrawItem) {
	var op colorm.DrawImageOptions
	r.Drawn = 0
	for i := range items {
		it := &items[i]
		src := r.source(it, &op.GeoM)
		if src == nil {
			continue
		}
		op.GeoM.Concat(geoM(it.Matrix))

		var cm colorm.ColorM
		mask := it.ColorMask.Color()
		bias := it.ColorBias.Color()
		cm.Scale(mask.R, mask.G, mask.B, mask.A)
		cm.Translate(bias.R, bias.G, bias.B, bias.A)

		colorm.DrawImage(target, src, cm, &op)
		r.Drawn++
	}
	r.Batches = countStateChanges(items)
}

// source resolves the image to draw for it and resets g to its local
// placement: centered on the object origin, one texel per object unit.
func (r *EbitenRenderer) source(it *DrawItem, g *ebiten.GeoM) *ebiten.Image {
	g.Reset()
	o := it.Object
	reg := &o.Region
	if reg.IsZero() {
		d := r.discImage()
		s := 2 * o.VisualRadius / discSize
		g.Translate(-discSize/2, -discSize/2)
		g.Scale(s, s)
		return d
	}

	page := r.Page(reg.Page)
	if page == nil {
		return nil
	}
	var rect image.Rectangle
	if reg.Rotated {
		rect = image.Rect(int(reg.X), int(reg.Y), int(reg.X)+int(reg.Height), int(reg.Y)+int(reg.Width))
	} else {
		rect = image.Rect(int(reg.X), int(reg.Y), int(reg.X)+int(reg.Width), int(reg.Y)+int(reg.Height))
	}
	sub := page.SubImage(rect).(*ebiten.Image)

	// Rotated regions are stored 90 degrees clockwise.
	if reg.Rotated {
		g.Rotate(-math.Pi / 2)
		g.Translate(0, float64(reg.Width))
	}
	w, h := reg.Size()
	g.Translate(float64(reg.OffsetX)-w/2, float64(reg.OffsetY)-h/2)
	return sub
}

// discImage lazily builds an anti-aliased white disc.
func (r *EbitenRenderer) discImage() *ebiten.Image {
	if r.disc == nil {
		r.disc = ebiten.NewImage(discSize, discSize)
		r.disc.WritePixels(discPixels(discSize))
	}
	return r.disc
}

// discPixels returns premultiplied RGBA pixels of a white disc filling an
// n×n square, with a one-texel soft edge.
func discPixels(n int) []byte {
	pix := make([]byte, 4*n*n)
	c := float64(n) / 2
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			a := math.Max(0, math.Min(1, c-d+0.5))
			v := byte(a*255 + 0.5)
			i := 4 * (y*n + x)
			pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, v
		}
	}
	return pix
}

// geoM converts an affine matrix [a, b, c, d, tx, ty] to an ebiten.GeoM.
func geoM(m [6]float64) ebiten.GeoM {
	var g ebiten.GeoM
	g.SetElement(0, 0, m[0])
	g.SetElement(1, 0, m[1])
	g.SetElement(0, 1, m[2])
	g.SetElement(1, 1, m[3])
	g.SetElement(0, 2, m[4])
	g.SetElement(1, 2, m[5])
	return g
}
