package strata

// objectIDCounter is a plain counter; strata is single-threaded.
var objectIDCounter uint32

func nextObjectID() uint32 {
	objectIDCounter++
	return objectIDCounter
}

// Object is a transform record for one world item. An Object without an
// Entity is static decoration; attaching an Entity makes it dynamic.
//
// An Object belongs to at most one ObjectLayer and, per tree type, to at most
// one SpatialNode. The layer and node back-references are non-owning: the
// layer (static objects) or the World (dynamic objects) owns the Object.
type Object struct {
	// ID is unique for the process lifetime and gives draw ordering and
	// query tie-breaks a stable final key.
	ID uint32
	// Type is a free-form type tag exposed to serializers and editors.
	Type string

	Transform Transform

	// Base radii at unit scale. The cached per-tree radii are derived from
	// these and Transform.Scale; call Reindex after mutating them directly.
	VisualRadius  float64
	PhysicsRadius float64

	Region    TextureRegion
	ColorBias PackedColor
	ColorMask PackedColor

	UserData any

	radius [numTreeTypes]float64
	node   [numTreeTypes]*SpatialNode
	slot   [numTreeTypes]int
	layer  *ObjectLayer
	entity *Entity

	destroyed bool
}

// NewObject creates a static object centered at the origin. The physics
// radius starts equal to the visual radius.
func NewObject(typeTag string, radius float64) *Object {
	o := &Object{
		ID:            nextObjectID(),
		Type:          typeTag,
		Transform:     IdentityTransform(),
		VisualRadius:  radius,
		PhysicsRadius: radius,
		ColorBias:     BiasNone,
		ColorMask:     MaskNone,
	}
	o.updateRadii()
	return o
}

// NewDynamicObject creates an object with an attached Entity running b.
func NewDynamicObject(typeTag string, radius float64, b Behavior) *Object {
	o := NewObject(typeTag, radius)
	NewEntity(o, b)
	return o
}

// Position returns the object's stored (canonical) position.
func (o *Object) Position() Vec2 {
	return o.Transform.Position
}

// Radius returns the cached bounding radius used by trees of type t.
func (o *Object) Radius(t TreeType) float64 {
	return o.radius[t]
}

// Layer returns the layer the object belongs to, or nil.
func (o *Object) Layer() *ObjectLayer {
	return o.layer
}

// Node returns the node that directly owns the object in a tree of type t,
// or nil if the object is not in such a tree.
func (o *Object) Node(t TreeType) *SpatialNode {
	return o.node[t]
}

// Entity returns the attached Entity, or nil for static objects.
func (o *Object) Entity() *Entity {
	return o.entity
}

// IsDynamic reports whether an Entity is attached.
func (o *Object) IsDynamic() bool {
	return o.entity != nil
}

// IsDestroyed reports whether the object's owner has destroyed it.
func (o *Object) IsDestroyed() bool {
	return o.destroyed
}

// SetPosition moves the object. Inside a layer the layer's clamp or wrap
// policy is applied and every tree the object is in is updated.
func (o *Object) SetPosition(p Vec2) {
	if o.layer != nil {
		o.layer.MoveObject(o, p)
		return
	}
	o.Transform.Position = p
}

// SetScale changes the scale and the cached radii that depend on it.
func (o *Object) SetScale(sx, sy float64) {
	o.Transform.Scale = Vec2{sx, sy}
	o.Reindex()
}

// SetAngle sets the rotation angle in radians. Radii are rotation invariant
// so no tree needs updating.
func (o *Object) SetAngle(a float64) {
	o.Transform.Angle = a
}

// Reindex recomputes the cached radii and relocates the object in every tree
// it belongs to. Call after changing VisualRadius, PhysicsRadius or Transform
// fields directly.
func (o *Object) Reindex() {
	o.updateRadii()
	o.reAddAll()
}

func (o *Object) updateRadii() {
	s := o.Transform.MaxScale()
	o.radius[TreeVisibility] = o.VisualRadius * s
	o.radius[TreePhysics] = o.PhysicsRadius * s
}

// reAddAll relocates the object in each tree that currently holds it.
func (o *Object) reAddAll() {
	for t := TreeType(0); t < numTreeTypes; t++ {
		if n := o.node[t]; n != nil {
			n.ReAdd(o)
		}
	}
}

func (o *Object) destroy() {
	o.destroyed = true
	o.layer = nil
	o.UserData = nil
}
