package strata

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxEntityCapacity is the reserved sentinel index; a World's entity
	// capacity must stay strictly below it.
	MaxEntityCapacity = 0xFFFF
	// DefaultEntityCapacity is used when NewWorld is given a capacity <= 0.
	DefaultEntityCapacity = 4096
)

var (
	// ErrUnknownLayer is returned when a layer name is not registered.
	ErrUnknownLayer = errors.New("strata: unknown layer")
	// ErrNoMainLayer is returned when an operation needs a main layer and
	// none has been set.
	ErrNoMainLayer = errors.New("strata: no main layer")
)

// PhysicsHandler is the external physics system driven by a World. The World
// calls it in a fixed order: AddEntity only after the entity is queryable in
// its layer's tree and holds a world index, RemoveEntity only after the entity
// left the tree, released its index and lost its pending events. A handler
// may also implement Shutdown, called by World.Close after every dynamic
// object is gone and before the layers are destroyed.
type PhysicsHandler interface {
	AddObjectLayer(l *ObjectLayer)
	SetMainObjectLayer(l *ObjectLayer)
	AddEntity(e *Entity)
	RemoveEntity(e *Entity)
	ProcessFrame(dt float64)
}

type physicsShutdowner interface {
	Shutdown()
}

type nopPhysics struct{}

func (nopPhysics) AddObjectLayer(*ObjectLayer)     {}
func (nopPhysics) SetMainObjectLayer(*ObjectLayer) {}
func (nopPhysics) AddEntity(*Entity)               {}
func (nopPhysics) RemoveEntity(*Entity)            {}
func (nopPhysics) ProcessFrame(float64)            {}

// EntityObserver hears about dynamic membership changes after the physics
// handler has been told.
type EntityObserver interface {
	EntityAdded(e *Entity)
	EntityRemoved(e *Entity)
}

// WorldOption configures a World at construction.
type WorldOption func(*World)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) WorldOption {
	return func(w *World) {
		if log != nil {
			w.log = log
		}
	}
}

// WithMetrics attaches Prometheus collectors created by NewMetrics.
func WithMetrics(m *Metrics) WorldOption {
	return func(w *World) {
		w.metrics = m
	}
}

// WithObserver registers an EntityObserver.
func WithObserver(obs EntityObserver) WorldOption {
	return func(w *World) {
		if obs != nil {
			w.observers = append(w.observers, obs)
		}
	}
}

// WithTreeConfig sets the tree shape used by NewLayer.
func WithTreeConfig(tc TreeConfig) WorldOption {
	return func(w *World) {
		w.treeConfig = tc
	}
}

// WithDebug enables per-frame validation and timing logs.
func WithDebug(enabled bool) WorldOption {
	return func(w *World) {
		w.debug = enabled
	}
}

// World composes ordered ObjectLayers, owns every dynamic object through a
// fixed-capacity entity table, drives a PhysicsHandler and runs a private
// deferred-event queue.
//
// All methods must be called from a single goroutine.
type World struct {
	layers []*ObjectLayer
	main   *ObjectLayer

	// entities is dense and fixed size. Every slot below lowestFree is
	// occupied; allocation scans forward from it.
	entities    []*Entity
	generations []uint32
	lowestFree  int
	numEntities int

	events eventQueue
	seq    uint64

	physics    PhysicsHandler
	observers  []EntityObserver
	treeConfig TreeConfig

	now     float64
	started bool
	frame   uint64

	log     *zap.Logger
	metrics *Metrics
	debug   bool
	closed  bool
}

// NewWorld creates a World with room for capacity dynamic objects. A nil
// physics handler is replaced by one that ignores every call.
func NewWorld(capacity int, physics PhysicsHandler, opts ...WorldOption) *World {
	if capacity <= 0 {
		capacity = DefaultEntityCapacity
	}
	if capacity >= MaxEntityCapacity {
		panic(fmt.Sprintf("strata: entity capacity %d must be below %d", capacity, MaxEntityCapacity))
	}
	if physics == nil {
		physics = nopPhysics{}
	}
	w := &World{
		entities:    make([]*Entity, capacity),
		generations: make([]uint32, capacity),
		physics:     physics,
		treeConfig:  DefaultTreeConfig(),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Logger returns the World's logger.
func (w *World) Logger() *zap.Logger { return w.log }

// Physics returns the physics handler.
func (w *World) Physics() PhysicsHandler { return w.physics }

// Now returns the time passed to the last ProcessFrame.
func (w *World) Now() float64 { return w.now }

// Frame returns the number of ProcessFrame calls so far.
func (w *World) Frame() uint64 { return w.frame }

// Capacity returns the size of the entity table.
func (w *World) Capacity() int { return len(w.entities) }

// NumEntities returns the number of dynamic objects in the World.
func (w *World) NumEntities() int { return w.numEntities }

// PendingEvents returns the number of queued deferred events.
func (w *World) PendingEvents() int { return len(w.events) }

// Layers returns the layers in the order they were added. The returned
// slice MUST NOT be mutated.
func (w *World) Layers() []*ObjectLayer { return w.layers }

// MainLayer returns the main layer, or nil.
func (w *World) MainLayer() *ObjectLayer { return w.main }

// Layer returns the layer with the given name.
func (w *World) Layer(name string) (*ObjectLayer, error) {
	for _, l := range w.layers {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownLayer, name)
}

// NewLayer creates a layer with the World's tree config and adds it. A
// config with Main set becomes the main layer.
func (w *World) NewLayer(cfg LayerConfig) *ObjectLayer {
	l := NewObjectLayer(cfg, w.treeConfig)
	w.AddObjectLayer(l)
	if cfg.Main {
		w.SetMainObjectLayer(l)
	}
	return l
}

// AddObjectLayer appends l to the layer list and tells the physics handler.
// The first layer added becomes the main layer.
func (w *World) AddObjectLayer(l *ObjectLayer) {
	if l == nil {
		panic("strata: cannot add nil layer")
	}
	assertf(!w.closed, "AddObjectLayer: world is closed")
	assertf(l.world == nil, "AddObjectLayer: layer %q already belongs to a world", l.Name)
	l.world = w
	w.layers = append(w.layers, l)
	w.physics.AddObjectLayer(l)
	w.log.Debug("layer added",
		zap.String("layer", l.Name),
		zap.Float64("side_length", l.SideLength),
		zap.Bool("wrapped", l.wrapped),
		zap.Float64("z_depth", l.ZDepth),
		zap.Int("tree_depth", l.root.Depth()),
	)
	if w.main == nil {
		w.SetMainObjectLayer(l)
	}
}

// SetMainObjectLayer makes l the main layer: the parallax reference plane
// and the default target for objects added with a nil layer.
func (w *World) SetMainObjectLayer(l *ObjectLayer) {
	assertf(l != nil && l.world == w, "SetMainObjectLayer: layer %q is not in this world", layerName(l))
	w.main = l
	w.physics.SetMainObjectLayer(l)
}

func (w *World) targetLayer(l *ObjectLayer, op string) *ObjectLayer {
	if l == nil {
		l = w.main
	}
	if l == nil {
		panic(fmt.Sprintf("strata: %s: %v", op, ErrNoMainLayer))
	}
	assertf(l.world == w, "%s: layer %q is not in this world", op, l.Name)
	return l
}

// AddStaticObject adds an object without an Entity to l (the main layer if
// nil). The layer takes ownership.
func (w *World) AddStaticObject(o *Object, l *ObjectLayer) {
	if o == nil {
		panic("strata: cannot add nil object")
	}
	assertf(o.entity == nil, "AddStaticObject: object %d has an entity", o.ID)
	w.targetLayer(l, "AddStaticObject").AddObject(o)
}

// AddDynamicObject adds an object with an Entity to l (the main layer if
// nil). The object is inserted into the layer's tree, assigned the lowest
// free world index and only then handed to the physics handler.
//
// When the entity table is full nothing changes: a warning is logged and
// false is returned.
func (w *World) AddDynamicObject(o *Object, l *ObjectLayer) bool {
	if o == nil {
		panic("strata: cannot add nil object")
	}
	assertf(!w.closed, "AddDynamicObject: world is closed")
	e := o.entity
	assertf(e != nil, "AddDynamicObject: object %d has no entity", o.ID)
	assertf(e.world == nil, "AddDynamicObject: entity of object %d is already in a world", o.ID)
	assertf(!e.destroyed, "AddDynamicObject: entity of object %d is destroyed", o.ID)
	l = w.targetLayer(l, "AddDynamicObject")

	if w.numEntities == len(w.entities) {
		w.log.Warn("entity table full, dynamic object not added",
			zap.Int("capacity", len(w.entities)),
			zap.String("layer", l.Name),
			zap.Uint32("object", o.ID),
		)
		w.metrics.capacityRejected()
		return false
	}

	l.AddObject(o)

	i := w.allocIndex()
	w.entities[i] = e
	w.numEntities++
	e.index = i
	e.world = w

	w.physics.AddEntity(e)
	for _, obs := range w.observers {
		obs.EntityAdded(e)
	}
	w.metrics.setEntities(w.numEntities)
	return true
}

// allocIndex returns the first free slot at or after lowestFree.
func (w *World) allocIndex() int {
	for i := w.lowestFree; i < len(w.entities); i++ {
		if w.entities[i] == nil {
			w.lowestFree = i + 1
			return i
		}
	}
	panic("strata: entity table corrupted: no free slot below capacity")
}

// RemoveDynamicObject takes o's Entity out of the World without destroying
// it. The object leaves its layer's tree, its index is freed, every pending
// event for it is purged and then the physics handler is told. It returns
// false when o is not a dynamic member of this World.
func (w *World) RemoveDynamicObject(o *Object) bool {
	if o == nil || o.entity == nil || o.entity.world != w || o.entity.index == NotInWorld {
		return false
	}
	e := o.entity

	if l := o.layer; l != nil {
		l.removeObject(o)
	}

	i := e.index
	w.entities[i] = nil
	w.generations[i]++
	w.numEntities--
	if i < w.lowestFree {
		w.lowestFree = i
	}
	e.index = NotInWorld

	w.events.purge(e)

	w.physics.RemoveEntity(e)
	for _, obs := range w.observers {
		obs.EntityRemoved(e)
	}
	e.world = nil
	w.metrics.setEntities(w.numEntities)
	return true
}

// DeleteDynamicObject removes o from the World and destroys its Entity and
// the object itself.
func (w *World) DeleteDynamicObject(o *Object) bool {
	if !w.RemoveDynamicObject(o) {
		return false
	}
	o.entity.destroy()
	return true
}

// Entity returns the Entity at table index i, or nil.
func (w *World) Entity(i int) *Entity {
	if i < 0 || i >= len(w.entities) {
		return nil
	}
	return w.entities[i]
}

// Lookup resolves a Handle. It returns nil once the slot has been freed,
// even if a newer Entity now occupies it.
func (w *World) Lookup(h Handle) *Entity {
	i := int(h.Index)
	if i < 0 || i >= len(w.entities) || w.generations[i] != h.Generation {
		return nil
	}
	return w.entities[i]
}

// ForEachEntity calls fn for every Entity in index order. Iteration stops
// when fn returns false. Entities removed during iteration are skipped;
// entities added at higher indices are visited.
func (w *World) ForEachEntity(fn func(e *Entity) bool) {
	for i := 0; i < len(w.entities); i++ {
		if e := w.entities[i]; e != nil {
			if !fn(e) {
				return
			}
		}
	}
}

// Schedule queues fn to run during the first ProcessFrame whose time is at
// least Now()+delay. It never runs synchronously.
func (w *World) Schedule(delay float64, fn func()) {
	if fn == nil {
		panic("strata: cannot schedule nil callback")
	}
	w.push(eventCall, nil, delay, fn)
}

func (w *World) scheduleEntity(e *Entity, kind eventKind, delay float64) {
	assertf(e.index != NotInWorld, "schedule: entity of object %d is not in the world", e.object.ID)
	w.push(kind, e, delay, nil)
}

func (w *World) push(kind eventKind, e *Entity, delay float64, fn func()) {
	assertf(!w.closed, "schedule: world is closed")
	assertf(delay >= 0 && !math.IsInf(delay, 0), "schedule: invalid delay %v", delay)
	w.seq++
	w.events.push(&event{at: w.now + delay, seq: w.seq, kind: kind, entity: e, fn: fn})
}

// ProcessFrame advances the World to time now (seconds). Behaviours are
// updated first, then the physics handler advances by the elapsed time and
// finally every deferred event due at or before now is run, including events
// scheduled by the behaviours and the physics step of this frame. The first
// call has an elapsed time of zero.
func (w *World) ProcessFrame(now float64) {
	assertf(!w.closed, "ProcessFrame: world is closed")
	var dt float64
	if w.started {
		dt = now - w.now
		assertf(dt >= 0, "ProcessFrame: time moved backwards from %v to %v", w.now, now)
	}
	w.started = true
	w.now = now
	w.frame++

	var stats frameStats
	t0 := time.Now()

	for i := 0; i < len(w.entities); i++ {
		e := w.entities[i]
		if e == nil || e.behavior == nil {
			continue
		}
		e.behavior.Update(e, dt)
	}
	t1 := time.Now()

	w.physics.ProcessFrame(dt)
	t2 := time.Now()

	for ev := w.events.popDue(now); ev != nil; ev = w.events.popDue(now) {
		w.run(ev)
		stats.eventsDrained++
	}
	t3 := time.Now()

	stats.behaviorTime = t1.Sub(t0)
	stats.physicsTime = t2.Sub(t1)
	stats.drainTime = t3.Sub(t2)
	stats.entities = w.numEntities
	stats.pending = len(w.events)

	w.metrics.frameProcessed(stats)
	if w.debug {
		w.debugFrame(stats)
	}
}

func (w *World) run(ev *event) {
	switch ev.kind {
	case eventCall:
		ev.fn()
	case eventDelete:
		if ev.entity.world == w {
			w.DeleteDynamicObject(ev.entity.object)
		}
	case eventRemove:
		if ev.entity.world == w {
			w.RemoveDynamicObject(ev.entity.object)
		}
	}
}

// Close tears the World down: every dynamic object is deleted, then the
// physics handler is shut down, then the layers and their static objects are
// destroyed. Close is idempotent.
func (w *World) Close() {
	if w.closed {
		return
	}
	deleted := 0
	for i := range w.entities {
		if e := w.entities[i]; e != nil {
			w.DeleteDynamicObject(e.object)
			deleted++
		}
	}
	for i := range w.events {
		w.events[i] = nil
	}
	w.events = w.events[:0]

	if s, ok := w.physics.(physicsShutdowner); ok {
		s.Shutdown()
	}

	for _, l := range w.layers {
		l.destroy()
	}
	w.layers = nil
	w.main = nil
	w.closed = true
	w.log.Debug("world closed", zap.Int("entities_deleted", deleted), zap.Uint64("frames", w.frame))
}

// IsClosed reports whether Close has run.
func (w *World) IsClosed() bool { return w.closed }

// Validate checks every layer tree and the entity table. It returns the
// first inconsistency found, or nil.
func (w *World) Validate() error {
	for _, l := range w.layers {
		if err := l.root.Validate(); err != nil {
			return fmt.Errorf("layer %q: %w", l.Name, err)
		}
	}
	n := 0
	for i, e := range w.entities {
		if e == nil {
			if i < w.lowestFree {
				return fmt.Errorf("entity table: free slot %d below cursor %d", i, w.lowestFree)
			}
			continue
		}
		n++
		if e.index != i || e.world != w {
			return fmt.Errorf("entity table: slot %d holds entity with index %d", i, e.index)
		}
		if e.object.layer == nil || e.object.layer.world != w {
			return fmt.Errorf("entity table: entity %d object %d is not in a world layer", i, e.object.ID)
		}
	}
	if n != w.numEntities {
		return fmt.Errorf("entity table: %d entities, counter says %d", n, w.numEntities)
	}
	for _, ev := range w.events {
		if ev.entity != nil && ev.entity.world != w {
			return fmt.Errorf("event queue: event for object %d outlived its entity", ev.entity.object.ID)
		}
	}
	return nil
}
