package strata

import (
	"fmt"
	"sort"

	"github.com/segmentio/encoding/json"
)

// TextureRegion describes a sub-rectangle of an atlas page. Page is the atlas
// handle: draw ordering groups items by it and renderers resolve it to a page
// image. The zero value means "no texture"; renderers draw such objects as a
// solid disc of the object's visual diameter.
type TextureRegion struct {
	Page      uint16 `yaml:"page" toml:"page"`
	X         uint16 `yaml:"x" toml:"x"`
	Y         uint16 `yaml:"y" toml:"y"`
	Width     uint16 `yaml:"width" toml:"width"`
	Height    uint16 `yaml:"height" toml:"height"`
	OriginalW uint16 `yaml:"original_w,omitempty" toml:"original_w"` // untrimmed width as authored
	OriginalH uint16 `yaml:"original_h,omitempty" toml:"original_h"` // untrimmed height as authored
	OffsetX   int16  `yaml:"offset_x,omitempty" toml:"offset_x"`     // trim offset
	OffsetY   int16  `yaml:"offset_y,omitempty" toml:"offset_y"`
	Rotated   bool   `yaml:"rotated,omitempty" toml:"rotated"` // stored 90 degrees clockwise in the page
}

// IsZero reports whether r refers to no texture.
func (r TextureRegion) IsZero() bool {
	return r == TextureRegion{}
}

// Size returns the untrimmed size of the region, falling back to the stored
// rectangle when no original size was recorded.
func (r TextureRegion) Size() (w, h float64) {
	if r.OriginalW != 0 && r.OriginalH != 0 {
		return float64(r.OriginalW), float64(r.OriginalH)
	}
	return float64(r.Width), float64(r.Height)
}

// Atlas is a set of named regions spread over one or more consecutive pages
// starting at FirstPage.
type Atlas struct {
	FirstPage uint16
	NumPages  int
	regions   map[string]TextureRegion
}

// Region returns the named region and whether it exists.
func (a *Atlas) Region(name string) (TextureRegion, bool) {
	r, ok := a.regions[name]
	return r, ok
}

// MustRegion returns the named region and panics if it does not exist.
func (a *Atlas) MustRegion(name string) TextureRegion {
	r, ok := a.regions[name]
	if !ok {
		panic(fmt.Sprintf("strata: atlas region %q not found", name))
	}
	return r
}

// Names returns the region names in sorted order.
func (a *Atlas) Names() []string {
	names := make([]string, 0, len(a.regions))
	for name := range a.regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of regions.
func (a *Atlas) Len() int { return len(a.regions) }

// LoadAtlas parses TexturePacker JSON. Both the hash format (a single
// "frames" object) and the multi-page array format ("textures") are
// accepted. Page numbers are offset by firstPage so several atlases can share
// one renderer without their handles colliding.
func LoadAtlas(jsonData []byte, firstPage uint16) (*Atlas, error) {
	var probe struct {
		Frames   json.RawMessage `json:"frames"`
		Textures json.RawMessage `json:"textures"`
	}
	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("strata: parse atlas: %w", err)
	}

	a := &Atlas{
		FirstPage: firstPage,
		regions:   make(map[string]TextureRegion),
	}
	switch {
	case probe.Textures != nil:
		var pages []jsonAtlasPage
		if err := json.Unmarshal(probe.Textures, &pages); err != nil {
			return nil, fmt.Errorf("strata: parse atlas textures: %w", err)
		}
		for i, p := range pages {
			a.addFrames(p.Frames, firstPage+uint16(i))
		}
		a.NumPages = len(pages)
	case probe.Frames != nil:
		var frames map[string]jsonAtlasFrame
		if err := json.Unmarshal(probe.Frames, &frames); err != nil {
			return nil, fmt.Errorf("strata: parse atlas frames: %w", err)
		}
		a.addFrames(frames, firstPage)
		a.NumPages = 1
	default:
		return nil, fmt.Errorf("strata: atlas JSON has neither \"frames\" nor \"textures\" key")
	}
	return a, nil
}

func (a *Atlas) addFrames(frames map[string]jsonAtlasFrame, page uint16) {
	for name, f := range frames {
		a.regions[name] = TextureRegion{
			Page:      page,
			X:         uint16(f.Frame.X),
			Y:         uint16(f.Frame.Y),
			Width:     uint16(f.Frame.W),
			Height:    uint16(f.Frame.H),
			OriginalW: uint16(f.SourceSize.W),
			OriginalH: uint16(f.SourceSize.H),
			OffsetX:   int16(f.SpriteSourceSize.X),
			OffsetY:   int16(f.SpriteSourceSize.Y),
			Rotated:   f.Rotated,
		}
	}
}

type jsonAtlasRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonAtlasFrame struct {
	Frame            jsonAtlasRect `json:"frame"`
	Rotated          bool          `json:"rotated"`
	SpriteSourceSize jsonAtlasRect `json:"spriteSourceSize"`
	SourceSize       struct {
		W int `json:"w"`
		H int `json:"h"`
	} `json:"sourceSize"`
}

type jsonAtlasPage struct {
	Image  string                    `json:"image"`
	Frames map[string]jsonAtlasFrame `json:"frames"`
}
