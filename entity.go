package strata

import "github.com/google/uuid"

// NotInWorld is the world index of an Entity that is not a dynamic member of
// any World.
const NotInWorld = -1

// Behavior is the per-frame logic of an Entity.
type Behavior interface {
	Update(e *Entity, dt float64)
}

// BehaviorFunc adapts a plain function to Behavior.
type BehaviorFunc func(e *Entity, dt float64)

// Update calls f(e, dt).
func (f BehaviorFunc) Update(e *Entity, dt float64) { f(e, dt) }

// ClampHandler is implemented by behaviours that react to being clamped
// against the edge of a non-wrapping layer. The Entity's velocity on each
// clamped axis has already been zeroed when it is called.
type ClampHandler interface {
	OnClamped(e *Entity, clampedX, clampedY bool)
}

// Collider is implemented by behaviours that want to hear about physics
// overlaps reported by a PhysicsHandler such as KinematicPhysics.
type Collider interface {
	OnCollide(e, other *Entity)
}

// Handle is a generation-checked reference to a World slot. It stays safe to
// hold after the Entity leaves the World: Lookup returns nil once the slot
// has been freed, even if a new Entity reuses the index.
type Handle struct {
	Index      int32
	Generation uint32
}

// Entity is the behaviour and identity attached to exactly one Object,
// making it dynamic.
type Entity struct {
	// GUID identifies the entity across snapshots.
	GUID uuid.UUID
	// Velocity in layer units per second. KinematicPhysics integrates it;
	// clamping zeroes the clamped axis.
	Velocity Vec2

	behavior Behavior
	object   *Object
	world    *World
	index    int

	wrappedOffset Vec2
	destroyed     bool
}

// NewEntity attaches a new Entity running b to o. The object must not be in a
// layer yet, since static and dynamic objects are counted separately by the
// trees.
func NewEntity(o *Object, b Behavior) *Entity {
	if o == nil {
		panic("strata: cannot attach entity to nil object")
	}
	assertf(o.entity == nil, "NewEntity: object %d already has an entity", o.ID)
	assertf(o.layer == nil, "NewEntity: object %d is already in layer %q", o.ID, layerName(o.layer))
	e := &Entity{
		GUID:     uuid.New(),
		behavior: b,
		object:   o,
		index:    NotInWorld,
	}
	o.entity = e
	return e
}

// Object returns the Entity's object.
func (e *Entity) Object() *Object {
	return e.object
}

// World returns the World the Entity is a member of, or nil.
func (e *Entity) World() *World {
	return e.world
}

// Index returns the Entity's slot in its World's table, or NotInWorld.
func (e *Entity) Index() int {
	return e.index
}

// InWorld reports whether the Entity is currently a dynamic member of a World.
func (e *Entity) InWorld() bool {
	return e.index != NotInWorld
}

// Handle returns a generation-checked handle to the Entity's slot. The zero
// Handle with Index -1 is returned when the Entity is not in a World.
func (e *Entity) Handle() Handle {
	if e.world == nil || e.index == NotInWorld {
		return Handle{Index: NotInWorld}
	}
	return Handle{Index: int32(e.index), Generation: e.world.generations[e.index]}
}

// Behavior returns the Entity's behaviour, which may be nil.
func (e *Entity) Behavior() Behavior {
	return e.behavior
}

// SetBehavior replaces the Entity's behaviour.
func (e *Entity) SetBehavior(b Behavior) {
	e.behavior = b
}

// IsDestroyed reports whether a scheduled or explicit deletion has destroyed
// the Entity.
func (e *Entity) IsDestroyed() bool {
	return e.destroyed
}

// Position returns the object's canonical position.
func (e *Entity) Position() Vec2 {
	return e.object.Transform.Position
}

// SetPosition moves the Entity's object, applying the layer's clamp or wrap
// policy and updating every tree that holds it.
func (e *Entity) SetPosition(p Vec2) {
	e.object.SetPosition(p)
}

// Translate moves the Entity's object by d.
func (e *Entity) Translate(d Vec2) {
	e.object.SetPosition(e.object.Transform.Position.Add(d))
}

// WrappedOffset returns the accumulated displacement removed by toroidal
// wrapping. It is always zero in clamped layers.
func (e *Entity) WrappedOffset() Vec2 {
	return e.wrappedOffset
}

// UnwrappedPosition reconstructs the continuous position the Entity would
// have had without wrapping.
func (e *Entity) UnwrappedPosition() Vec2 {
	return e.object.Transform.Position.Add(e.wrappedOffset)
}

// ResetWrappedOffset clears the wrapped-offset accumulator.
func (e *Entity) ResetWrappedOffset() {
	e.wrappedOffset = Vec2{}
}

// DeleteAfter schedules the Entity's removal from its World and destruction
// delay seconds from the current frame time. The deletion happens during a
// later (or the current) World.ProcessFrame, never synchronously, so it is
// safe to call while the World is iterating entities.
func (e *Entity) DeleteAfter(delay float64) {
	assertf(e.world != nil, "DeleteAfter: entity of object %d is not in a world", e.object.ID)
	e.world.scheduleEntity(e, eventDelete, delay)
}

// RemoveFromWorldAfter schedules the Entity's removal from its World without
// destroying it; the Entity can be added again later.
func (e *Entity) RemoveFromWorldAfter(delay float64) {
	assertf(e.world != nil, "RemoveFromWorldAfter: entity of object %d is not in a world", e.object.ID)
	e.world.scheduleEntity(e, eventRemove, delay)
}

// onClamped zeroes velocity on the clamped axes and notifies the behaviour.
func (e *Entity) onClamped(clampedX, clampedY bool) {
	if clampedX {
		e.Velocity.X = 0
	}
	if clampedY {
		e.Velocity.Y = 0
	}
	if h, ok := e.behavior.(ClampHandler); ok {
		h.OnClamped(e, clampedX, clampedY)
	}
}

func (e *Entity) destroy() {
	e.destroyed = true
	e.behavior = nil
	e.object.destroy()
}

func layerName(l *ObjectLayer) string {
	if l == nil {
		return ""
	}
	return l.Name
}
