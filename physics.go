package strata

import (
	"go.uber.org/zap"
)

// KinematicPhysics is a minimal PhysicsHandler. It keeps a physics-typed
// quadtree per layer over the World's entities, moves each entity by its
// Velocity every frame and reports overlapping physics circles to Collider
// behaviours. It does not resolve collisions.
type KinematicPhysics struct {
	treeConfig TreeConfig
	log        *zap.Logger

	roots    map[*ObjectLayer]*SpatialNode
	main     *ObjectLayer
	entities []*Entity
	slots    map[*Entity]int

	pairs [][2]*Entity
	// moving is the per-frame copy of entities iterated while integrating,
	// since clamp callbacks may remove entities synchronously.
	moving []*Entity
}

// NewKinematicPhysics creates a handler whose trees are shaped by tc. A nil
// log discards everything.
func NewKinematicPhysics(tc TreeConfig, log *zap.Logger) *KinematicPhysics {
	if log == nil {
		log = zap.NewNop()
	}
	return &KinematicPhysics{
		treeConfig: tc,
		log:        log,
		roots:      make(map[*ObjectLayer]*SpatialNode),
		slots:      make(map[*Entity]int),
	}
}

// AddObjectLayer builds the physics tree for l.
func (p *KinematicPhysics) AddObjectLayer(l *ObjectLayer) {
	assertf(p.roots[l] == nil, "physics: layer %q added twice", l.Name)
	p.roots[l] = NewSpatialTree(TreePhysics, Vec2{}, l.HalfSide(), p.treeConfig.Depth(l.SideLength))
}

// SetMainObjectLayer records the main layer.
func (p *KinematicPhysics) SetMainObjectLayer(l *ObjectLayer) {
	p.main = l
}

// MainLayer returns the layer last passed to SetMainObjectLayer.
func (p *KinematicPhysics) MainLayer() *ObjectLayer {
	return p.main
}

// AddEntity inserts e's object into the physics tree of its layer.
func (p *KinematicPhysics) AddEntity(e *Entity) {
	o := e.object
	root := p.roots[o.layer]
	assertf(root != nil, "physics: entity of object %d is in unknown layer %q", o.ID, layerName(o.layer))
	ok := root.Add(o)
	assertf(ok, "physics: object %d rejected by physics tree", o.ID)
	p.slots[e] = len(p.entities)
	p.entities = append(p.entities, e)
}

// RemoveEntity drops e from the physics tree.
func (p *KinematicPhysics) RemoveEntity(e *Entity) {
	i, ok := p.slots[e]
	if !ok {
		return
	}
	if n := e.object.node[TreePhysics]; n != nil {
		n.Root().Remove(e.object)
	}
	last := len(p.entities) - 1
	if i != last {
		moved := p.entities[last]
		p.entities[i] = moved
		p.slots[moved] = i
	}
	p.entities[last] = nil
	p.entities = p.entities[:last]
	delete(p.slots, e)
}

// Root returns the physics tree of l, or nil.
func (p *KinematicPhysics) Root(l *ObjectLayer) *SpatialNode {
	return p.roots[l]
}

// NumEntities returns the number of tracked entities.
func (p *KinematicPhysics) NumEntities() int {
	return len(p.entities)
}

// ProcessFrame integrates velocities over dt and reports overlaps.
func (p *KinematicPhysics) ProcessFrame(dt float64) {
	if dt > 0 {
		p.moving = append(p.moving[:0], p.entities...)
		for i, e := range p.moving {
			p.moving[i] = nil
			if !p.tracks(e) || e.Velocity == (Vec2{}) {
				continue
			}
			e.Translate(e.Velocity.Scale(dt))
		}
		p.moving = p.moving[:0]
	}
	p.findPairs()
	for i, pr := range p.pairs {
		a, b := pr[0], pr[1]
		p.pairs[i] = [2]*Entity{}
		if !p.tracks(a) || !p.tracks(b) {
			continue
		}
		if c, ok := a.behavior.(Collider); ok {
			c.OnCollide(a, b)
		}
		if !p.tracks(a) || !p.tracks(b) {
			continue
		}
		if c, ok := b.behavior.(Collider); ok {
			c.OnCollide(b, a)
		}
	}
	p.pairs = p.pairs[:0]
}

// tracks reports whether e is still in the handler. Entities removed by a
// callback earlier in the frame are skipped.
func (p *KinematicPhysics) tracks(e *Entity) bool {
	_, ok := p.slots[e]
	return ok
}

// findPairs collects each overlapping pair once, lower object ID first.
// Callbacks run afterwards so they may move entities freely.
func (p *KinematicPhysics) findPairs() {
	for _, e := range p.entities {
		o := e.object
		r := o.radius[TreePhysics]
		if r <= 0 || o.layer == nil {
			continue
		}
		root := p.roots[o.layer]
		root.ForEachDynamicInArea(o.Transform.Position, r, o.layer, func(other *Object) bool {
			if other.ID > o.ID {
				p.pairs = append(p.pairs, [2]*Entity{e, other.entity})
			}
			return true
		})
	}
}

// Overlapping returns the entities whose physics circle overlaps the circle
// at center in layer l.
func (p *KinematicPhysics) Overlapping(l *ObjectLayer, center Vec2, radius float64, dst []*Entity) []*Entity {
	root := p.roots[l]
	if root == nil {
		return dst
	}
	root.ForEachDynamicInArea(center, radius, l, func(o *Object) bool {
		dst = append(dst, o.entity)
		return true
	})
	return dst
}

// Shutdown releases every tree. Called by World.Close once all dynamic
// objects are gone.
func (p *KinematicPhysics) Shutdown() {
	if len(p.entities) != 0 {
		p.log.Warn("physics shut down with live entities", zap.Int("entities", len(p.entities)))
	}
	for _, root := range p.roots {
		root.clear(nil)
	}
	clear(p.roots)
	clear(p.slots)
	p.entities = nil
	p.main = nil
}
