package strata

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// WorldSnapshot is the structural state of a World: its layers in order,
// the main layer name and the current time. Behaviours are not captured.
type WorldSnapshot struct {
	Now    float64         `yaml:"now"`
	Main   string          `yaml:"main,omitempty"`
	Layers []LayerSnapshot `yaml:"layers"`
}

// LayerSnapshot captures an ObjectLayer and every object in it.
type LayerSnapshot struct {
	Name       string           `yaml:"name"`
	SideLength float64          `yaml:"side_length"`
	ZDepth     float64          `yaml:"z_depth"`
	Wrapped    bool             `yaml:"wrapped,omitempty"`
	TreeDepth  int              `yaml:"tree_depth"`
	Objects    []ObjectSnapshot `yaml:"objects"`
}

// ObjectSnapshot captures one object. NodePath records where the object sat
// in the visibility tree as child indices from the root; it is informational
// since placement is a function of position and radius.
type ObjectSnapshot struct {
	ID            uint32          `yaml:"id"`
	Type          string          `yaml:"type,omitempty"`
	Position      Vec2            `yaml:"position,flow"`
	Scale         Vec2            `yaml:"scale,flow"`
	Angle         float64         `yaml:"angle,omitempty"`
	VisualRadius  float64         `yaml:"visual_radius"`
	PhysicsRadius float64         `yaml:"physics_radius"`
	Region        TextureRegion   `yaml:"region,omitempty"`
	ColorBias     PackedColor     `yaml:"color_bias"`
	ColorMask     PackedColor     `yaml:"color_mask"`
	NodePath      []int           `yaml:"node_path,flow"`
	Entity        *EntitySnapshot `yaml:"entity,omitempty"`
}

// EntitySnapshot captures the Entity attached to a dynamic object.
type EntitySnapshot struct {
	GUID          string `yaml:"guid"`
	Index         int    `yaml:"index"`
	Velocity      Vec2   `yaml:"velocity,flow"`
	WrappedOffset Vec2   `yaml:"wrapped_offset,flow"`
}

// MarshalYAML writes c as "#rrggbbaa".
func (c PackedColor) MarshalYAML() (any, error) {
	return fmt.Sprintf("#%08x", uint32(c)), nil
}

// UnmarshalYAML accepts "#rrggbbaa" or a plain integer.
func (c *PackedColor) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: color must be a scalar", n.Line)
	}
	s := n.Value
	base := 0
	if strings.HasPrefix(s, "#") {
		s, base = s[1:], 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return fmt.Errorf("line %d: invalid color %q: %w", n.Line, n.Value, err)
	}
	*c = PackedColor(v)
	return nil
}

// Snapshot captures the layer. Objects are listed by ascending ID so the
// output is stable.
func (l *ObjectLayer) Snapshot() LayerSnapshot {
	s := LayerSnapshot{
		Name:       l.Name,
		SideLength: l.SideLength,
		ZDepth:     l.ZDepth,
		Wrapped:    l.wrapped,
		TreeDepth:  l.root.Depth(),
		Objects:    make([]ObjectSnapshot, 0, l.root.count),
	}
	l.ForEachObject(func(o *Object) bool {
		s.Objects = append(s.Objects, snapshotObject(o))
		return true
	})
	slices.SortFunc(s.Objects, func(a, b ObjectSnapshot) int {
		return int(int64(a.ID) - int64(b.ID))
	})
	return s
}

func snapshotObject(o *Object) ObjectSnapshot {
	s := ObjectSnapshot{
		ID:            o.ID,
		Type:          o.Type,
		Position:      o.Transform.Position,
		Scale:         o.Transform.Scale,
		Angle:         o.Transform.Angle,
		VisualRadius:  o.VisualRadius,
		PhysicsRadius: o.PhysicsRadius,
		Region:        o.Region,
		ColorBias:     o.ColorBias,
		ColorMask:     o.ColorMask,
	}
	if n := o.node[TreeVisibility]; n != nil {
		s.NodePath = n.Path()
	}
	if e := o.entity; e != nil {
		s.Entity = &EntitySnapshot{
			GUID:          e.GUID.String(),
			Index:         e.index,
			Velocity:      e.Velocity,
			WrappedOffset: e.wrappedOffset,
		}
	}
	return s
}

// Snapshot captures every layer of the World.
func (w *World) Snapshot() WorldSnapshot {
	s := WorldSnapshot{Now: w.now, Layers: make([]LayerSnapshot, 0, len(w.layers))}
	if w.main != nil {
		s.Main = w.main.Name
	}
	for _, l := range w.layers {
		s.Layers = append(s.Layers, l.Snapshot())
	}
	return s
}

// Restore recreates the snapshot's layers and objects in w, which must not
// already hold layers of the same names. Static objects go straight into
// their layers. Dynamic objects get a fresh Entity with the saved identity
// and the behaviour returned by newBehavior (which may be nil) and are added
// in ascending saved index order, so an empty World keeps their relative
// order. Objects receive new IDs.
func (w *World) Restore(s WorldSnapshot, newBehavior func(ObjectSnapshot) Behavior) error {
	type pending struct {
		obj   *Object
		layer *ObjectLayer
		index int
	}
	var dynamics []pending

	for _, ls := range s.Layers {
		if _, err := w.Layer(ls.Name); err == nil {
			return fmt.Errorf("restore: layer %q already exists", ls.Name)
		}
		if !(ls.SideLength > 0) {
			return fmt.Errorf("restore: layer %q: invalid side length %v", ls.Name, ls.SideLength)
		}
	}
	for _, ls := range s.Layers {
		l := newObjectLayerDepth(LayerConfig{
			Name:       ls.Name,
			SideLength: ls.SideLength,
			Wrapped:    ls.Wrapped,
			ZDepth:     ls.ZDepth,
		}, ls.TreeDepth)
		w.AddObjectLayer(l)
		if ls.Name == s.Main {
			w.SetMainObjectLayer(l)
		}
		for _, snap := range ls.Objects {
			o, err := restoreObject(snap)
			if err != nil {
				return fmt.Errorf("restore: layer %q: %w", ls.Name, err)
			}
			if snap.Entity == nil {
				l.AddObject(o)
				continue
			}
			e := NewEntity(o, nil)
			if newBehavior != nil {
				e.behavior = newBehavior(snap)
			}
			e.Velocity = snap.Entity.Velocity
			e.wrappedOffset = snap.Entity.WrappedOffset
			if snap.Entity.GUID != "" {
				id, err := uuid.Parse(snap.Entity.GUID)
				if err != nil {
					return fmt.Errorf("restore: object %d: %w", snap.ID, err)
				}
				e.GUID = id
			}
			dynamics = append(dynamics, pending{o, l, snap.Entity.Index})
		}
	}

	slices.SortStableFunc(dynamics, func(a, b pending) int { return a.index - b.index })
	for _, d := range dynamics {
		if !w.AddDynamicObject(d.obj, d.layer) {
			return fmt.Errorf("restore: entity table full at capacity %d", w.Capacity())
		}
	}
	if s.Now > w.now {
		w.now = s.Now
	}
	return nil
}

func restoreObject(s ObjectSnapshot) (*Object, error) {
	if s.VisualRadius < 0 || s.PhysicsRadius < 0 {
		return nil, fmt.Errorf("object %d: negative radius", s.ID)
	}
	o := NewObject(s.Type, s.VisualRadius)
	o.PhysicsRadius = s.PhysicsRadius
	o.Transform = Transform{Position: s.Position, Scale: s.Scale, Angle: s.Angle}
	if o.Transform.Scale == (Vec2{}) {
		o.Transform.Scale = Vec2{1, 1}
	}
	o.Region = s.Region
	o.ColorBias = s.ColorBias
	o.ColorMask = s.ColorMask
	o.updateRadii()
	return o, nil
}

// EncodeSnapshotYAML writes s as YAML.
func EncodeSnapshotYAML(wr io.Writer, s WorldSnapshot) error {
	enc := yaml.NewEncoder(wr)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// DecodeSnapshotYAML reads a snapshot written by EncodeSnapshotYAML.
func DecodeSnapshotYAML(r io.Reader) (WorldSnapshot, error) {
	var s WorldSnapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return WorldSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
