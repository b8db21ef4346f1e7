package ecs

import (
	"github.com/phanxgames/strata"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// LifecycleKind tells whether an entity joined or left the strata World.
type LifecycleKind uint8

const (
	EntityAdded LifecycleKind = iota
	EntityRemoved
)

func (k LifecycleKind) String() string {
	if k == EntityAdded {
		return "added"
	}
	return "removed"
}

// LifecycleEvent describes one membership change. Position is the object's
// canonical position at the time of the change.
type LifecycleEvent struct {
	Kind     LifecycleKind
	Entity   *strata.Entity
	Mirror   donburi.Entity
	Layer    string
	Position strata.Vec2
}

// LifecycleEventType is the Donburi event type for strata lifecycle events.
var LifecycleEventType = events.NewEventType[LifecycleEvent]()

// EntityRefData points a Donburi entity at its strata Entity.
type EntityRefData struct {
	Entity *strata.Entity
}

// EntityRef is the component attached to every mirrored entity.
var EntityRef = donburi.NewComponentType[EntityRefData]()

// DonburiObserver mirrors strata entities into a Donburi world.
type DonburiObserver struct {
	world   donburi.World
	mirrors map[*strata.Entity]donburi.Entity
}

// NewDonburiObserver creates an observer backed by world. Register it with
// strata.WithObserver. Events are queued; consume them with
// LifecycleEventType.ProcessEvents or events.ProcessAllEvents.
func NewDonburiObserver(world donburi.World) *DonburiObserver {
	return &DonburiObserver{
		world:   world,
		mirrors: make(map[*strata.Entity]donburi.Entity),
	}
}

// EntityAdded creates the mirror entity and publishes an added event.
func (o *DonburiObserver) EntityAdded(e *strata.Entity) {
	m := o.world.Create(EntityRef)
	EntityRef.SetValue(o.world.Entry(m), EntityRefData{Entity: e})
	o.mirrors[e] = m
	LifecycleEventType.Publish(o.world, o.event(EntityAdded, e, m))
}

// EntityRemoved deletes the mirror entity and publishes a removed event.
func (o *DonburiObserver) EntityRemoved(e *strata.Entity) {
	m, ok := o.mirrors[e]
	if !ok {
		return
	}
	delete(o.mirrors, e)
	if o.world.Valid(m) {
		o.world.Remove(m)
	}
	LifecycleEventType.Publish(o.world, o.event(EntityRemoved, e, m))
}

// Mirror returns the Donburi entity mirroring e.
func (o *DonburiObserver) Mirror(e *strata.Entity) (donburi.Entity, bool) {
	m, ok := o.mirrors[e]
	return m, ok
}

// Len returns the number of mirrored entities.
func (o *DonburiObserver) Len() int {
	return len(o.mirrors)
}

func (o *DonburiObserver) event(kind LifecycleKind, e *strata.Entity, m donburi.Entity) LifecycleEvent {
	ev := LifecycleEvent{Kind: kind, Entity: e, Mirror: m, Position: e.Position()}
	if l := e.Object().Layer(); l != nil {
		ev.Layer = l.Name
	}
	return ev
}
