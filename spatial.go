package strata

import (
	"fmt"
	"math"
)

// Metric supplies the difference vector used by every distance and overlap
// test in a SpatialNode tree. ObjectLayer implements it so that the tree
// itself stays unaware of toroidal wrapping.
type Metric interface {
	AdjustedDifference(p, q Vec2) Vec2
}

type euclideanMetric struct{}

func (euclideanMetric) AdjustedDifference(p, q Vec2) Vec2 { return p.Sub(q) }

// Euclidean is the plain p-q Metric, for trees not owned by a wrapped layer.
var Euclidean Metric = euclideanMetric{}

// SpatialNode is one node of a fixed-shape quadtree. The shape is built once
// by NewSpatialTree; afterwards only membership changes.
//
// Placement is size banded: an object is owned directly by the node whose
// square contains its center and whose band matches its radius. A node owns
// an object directly iff it is a leaf or the object's radius is at least half
// the node's bounding radius. Smaller objects live further down, so every
// object stored under a non-root node has radius <= that node's radius and
// its whole circle lies within twice the node radius of the node center.
//
// Each node keeps the number of objects in its subtree (direct plus all
// descendants) and how many of those are static. Every mutation adjusts these
// counters on all affected ancestors before returning.
type SpatialNode struct {
	tree   TreeType
	min    Vec2
	max    Vec2
	center Vec2
	half   float64
	radius float64

	// closedX/closedY make the max edge inclusive. Only nodes on the root's
	// max edges have them, so sibling squares partition the plane exactly and
	// the containment test agrees with childFor.
	closedX bool
	closedY bool

	parent   *SpatialNode
	children *[4]*SpatialNode
	objects  []*Object

	count  int
	static int
}

// NewSpatialTree builds a complete quadtree of the given depth (0 = a single
// leaf) covering the square centered at center with the given half size.
func NewSpatialTree(tree TreeType, center Vec2, halfSize float64, depth int) *SpatialNode {
	if !(halfSize > 0) || math.IsInf(halfSize, 0) {
		panic(fmt.Sprintf("strata: invalid tree half size %v", halfSize))
	}
	if depth < 0 {
		panic(fmt.Sprintf("strata: invalid tree depth %d", depth))
	}
	min := Vec2{center.X - halfSize, center.Y - halfSize}
	max := Vec2{center.X + halfSize, center.Y + halfSize}
	return newSpatialNode(tree, nil, min, max, true, true, depth)
}

func newSpatialNode(tree TreeType, parent *SpatialNode, min, max Vec2, closedX, closedY bool, depth int) *SpatialNode {
	half := (max.X - min.X) / 2
	n := &SpatialNode{
		tree:    tree,
		min:     min,
		max:     max,
		center:  Vec2{(min.X + max.X) / 2, (min.Y + max.Y) / 2},
		half:    half,
		radius:  half * math.Sqrt2,
		closedX: closedX,
		closedY: closedY,
		parent:  parent,
	}
	if depth == 0 {
		return n
	}
	n.children = new([4]*SpatialNode)
	for i := range n.children {
		cmin, cmax := min, max
		cx, cy := false, false
		if i&1 != 0 {
			cmin.X = n.center.X
			cx = closedX
		} else {
			cmax.X = n.center.X
		}
		if i&2 != 0 {
			cmin.Y = n.center.Y
			cy = closedY
		} else {
			cmax.Y = n.center.Y
		}
		n.children[i] = newSpatialNode(tree, n, cmin, cmax, cx, cy, depth-1)
	}
	return n
}

// Tree returns the tree type tag shared by every node of this tree.
func (n *SpatialNode) Tree() TreeType { return n.tree }

// Center returns the center of the node's square.
func (n *SpatialNode) Center() Vec2 { return n.center }

// HalfSize returns half the side length of the node's square.
func (n *SpatialNode) HalfSize() float64 { return n.half }

// Radius returns the node's bounding radius, the circumradius of its square.
func (n *SpatialNode) Radius() float64 { return n.radius }

// Parent returns the parent node, or nil for the root.
func (n *SpatialNode) Parent() *SpatialNode { return n.parent }

// IsLeaf reports whether the node has no children.
func (n *SpatialNode) IsLeaf() bool { return n.children == nil }

// Children returns the four children in (-x,-y), (+x,-y), (-x,+y), (+x,+y)
// order, or nil for a leaf.
func (n *SpatialNode) Children() []*SpatialNode {
	if n.children == nil {
		return nil
	}
	return n.children[:]
}

// Objects returns the objects owned directly by this node. The returned
// slice MUST NOT be mutated and is invalidated by the next tree mutation.
func (n *SpatialNode) Objects() []*Object { return n.objects }

// Count returns the number of objects in this subtree.
func (n *SpatialNode) Count() int { return n.count }

// StaticCount returns the number of static objects in this subtree.
func (n *SpatialNode) StaticCount() int { return n.static }

// DynamicCount returns the number of dynamic objects in this subtree.
func (n *SpatialNode) DynamicCount() int { return n.count - n.static }

// Depth returns the number of levels below this node.
func (n *SpatialNode) Depth() int {
	d := 0
	for c := n; c.children != nil; c = c.children[0] {
		d++
	}
	return d
}

// Root returns the root of the tree containing n.
func (n *SpatialNode) Root() *SpatialNode {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// ChildIndex returns n's position in its parent's child array, or -1 for the
// root.
func (n *SpatialNode) ChildIndex() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

// Contains reports whether p falls in this node's square. Squares are
// half-open on their max edges except along the root's max edges, so sibling
// squares never both contain a point.
func (n *SpatialNode) Contains(p Vec2) bool {
	return p.X >= n.min.X && (p.X < n.max.X || n.closedX && p.X == n.max.X) &&
		p.Y >= n.min.Y && (p.Y < n.max.Y || n.closedY && p.Y == n.max.Y)
}

// ownsDirectly reports whether an object of radius r stops at this node.
// The half-radius boundary stays here.
func (n *SpatialNode) ownsDirectly(r float64) bool {
	return n.children == nil || r >= n.radius/2
}

// fits reports whether an object of radius r may live in this subtree. The
// root accepts any radius; that is what keeps oversized objects placeable.
// Below the root the radius must also be one the parent hands down, so a
// radius equal to the node's own stays with the parent.
func (n *SpatialNode) fits(r float64) bool {
	return n.parent == nil || r <= n.radius && !n.parent.ownsDirectly(r)
}

// childFor selects a child by comparing p to the node center per axis.
func (n *SpatialNode) childFor(p Vec2) *SpatialNode {
	i := 0
	if p.X >= n.center.X {
		i |= 1
	}
	if p.Y >= n.center.Y {
		i |= 2
	}
	return n.children[i]
}

// placement descends from n to the node that should own an object at p with
// radius r.
func (n *SpatialNode) placement(p Vec2, r float64) *SpatialNode {
	for !n.ownsDirectly(r) {
		n = n.childFor(p)
	}
	return n
}

// Add inserts o into this subtree. It returns false, leaving the tree
// unchanged, when o's center is outside the node's square. Adding an object
// that is already in a tree of this type, or whose radius exceeds a non-root
// node's radius, is a contract violation.
func (n *SpatialNode) Add(o *Object) bool {
	t := n.tree
	assertf(o.node[t] == nil, "Add: object %d is already in a %s tree", o.ID, t)
	p := o.Transform.Position
	if !n.Contains(p) {
		return false
	}
	r := o.radius[t]
	assertf(n.fits(r), "Add: object %d radius %v is outside the band of node radius %v", o.ID, r, n.radius)

	owner := n.placement(p, r)
	owner.insertDirect(o)
	delta := staticDelta(o)
	for a := owner; a != nil; a = a.parent {
		a.count++
		a.static += delta
	}
	return true
}

// Remove takes o out of this subtree. It returns false when o is not stored
// under n.
func (n *SpatialNode) Remove(o *Object) bool {
	owner := o.node[n.tree]
	if owner == nil || !owner.isWithin(n) {
		return false
	}
	owner.removeDirect(o)
	delta := staticDelta(o)
	for a := owner; a != nil; a = a.parent {
		a.count--
		a.static -= delta
	}
	return true
}

// ReAdd relocates o, already stored in this tree, after its position or
// radius changed. It climbs from o's current node to the nearest ancestor
// whose square contains the new position and whose band admits the radius,
// then descends from there. Only counters strictly below that turning node
// change, so a small move costs a few node visits instead of a reinsertion
// from the root. The result is identical to Remove followed by Add.
func (n *SpatialNode) ReAdd(o *Object) {
	t := n.tree
	owner := o.node[t]
	assertf(owner != nil, "ReAdd: object %d is not in a %s tree", o.ID, t)
	if assertionsEnabled && owner.Root() != n.Root() {
		panic(fmt.Sprintf("strata: ReAdd: object %d belongs to a different %s tree", o.ID, t))
	}
	p := o.Transform.Position
	r := o.radius[t]

	top := owner
	for top.parent != nil && !(top.Contains(p) && top.fits(r)) {
		top = top.parent
	}
	assertf(top.Contains(p), "ReAdd: object %d at (%v, %v) is outside the tree", o.ID, p.X, p.Y)

	target := top.placement(p, r)
	if target == owner {
		return
	}
	delta := staticDelta(o)
	owner.removeDirect(o)
	for a := owner; a != top; a = a.parent {
		a.count--
		a.static -= delta
	}
	target.insertDirect(o)
	for a := target; a != top; a = a.parent {
		a.count++
		a.static += delta
	}
}

func staticDelta(o *Object) int {
	if o.entity == nil {
		return 1
	}
	return 0
}

func (n *SpatialNode) insertDirect(o *Object) {
	o.node[n.tree] = n
	o.slot[n.tree] = len(n.objects)
	n.objects = append(n.objects, o)
}

// removeDirect swap-removes o from the direct set in O(1).
func (n *SpatialNode) removeDirect(o *Object) {
	t := n.tree
	i := o.slot[t]
	last := len(n.objects) - 1
	if i != last {
		moved := n.objects[last]
		n.objects[i] = moved
		moved.slot[t] = i
	}
	n.objects[last] = nil
	n.objects = n.objects[:last]
	o.node[t] = nil
	o.slot[t] = 0
}

// isWithin reports whether n is anc or one of its descendants.
func (n *SpatialNode) isWithin(anc *SpatialNode) bool {
	for a := n; a != nil; a = a.parent {
		if a == anc {
			return true
		}
	}
	return false
}

// reach is the distance from the node center within which every object
// stored under a non-root node lies entirely.
func (n *SpatialNode) reach() float64 {
	return 2 * n.radius
}

// SmallestObjectTouchingPoint returns the smallest object (by radius in this
// tree) whose circle contains p, or nil. Equal radii resolve to the lower
// object ID so the answer never depends on traversal or insertion order.
func (n *SpatialNode) SmallestObjectTouchingPoint(p Vec2, m Metric) *Object {
	return n.smallestTouching(p, m, nil)
}

func (n *SpatialNode) smallestTouching(p Vec2, m Metric, best *Object) *Object {
	if n.count == 0 {
		return best
	}
	if n.parent != nil && m.AdjustedDifference(p, n.center).LenSq() > sq(n.reach()) {
		return best
	}
	t := n.tree
	if n.children != nil {
		for _, c := range n.children {
			best = c.smallestTouching(p, m, best)
		}
		// Directly owned objects here are at least radius/2, so none of them
		// can beat a candidate already below that.
		if best != nil && best.radius[t] < n.radius/2 {
			return best
		}
	}
	for _, o := range n.objects {
		r := o.radius[t]
		if m.AdjustedDifference(p, o.Transform.Position).LenSq() > r*r {
			continue
		}
		if best == nil || r < best.radius[t] || r == best.radius[t] && o.ID < best.ID {
			best = o
		}
	}
	return best
}

// AnyObjectOverlapsArea reports whether any object's circle overlaps the
// circle at center with the given radius. Touching circles overlap.
func (n *SpatialNode) AnyObjectOverlapsArea(center Vec2, radius float64, m Metric) bool {
	assertRadius("AnyObjectOverlapsArea", radius)
	found := false
	n.visitArea(center, radius, m, false, func(*Object) bool {
		found = true
		return false
	})
	return found
}

// ForEachInArea calls fn for every object whose circle overlaps the query
// circle. Iteration stops early when fn returns false.
func (n *SpatialNode) ForEachInArea(center Vec2, radius float64, m Metric, fn func(o *Object) bool) {
	assertRadius("ForEachInArea", radius)
	n.visitArea(center, radius, m, false, fn)
}

// ForEachDynamicInArea is ForEachInArea restricted to dynamic objects.
// Subtrees holding only static objects are skipped using the static counters.
func (n *SpatialNode) ForEachDynamicInArea(center Vec2, radius float64, m Metric, fn func(o *Object) bool) {
	assertRadius("ForEachDynamicInArea", radius)
	n.visitArea(center, radius, m, true, fn)
}

// visitArea returns false once fn has asked to stop.
func (n *SpatialNode) visitArea(center Vec2, radius float64, m Metric, dynamicOnly bool, fn func(o *Object) bool) bool {
	if n.count == 0 || dynamicOnly && n.count == n.static {
		return true
	}
	if n.parent != nil && m.AdjustedDifference(center, n.center).LenSq() > sq(radius+n.reach()) {
		return true
	}
	t := n.tree
	for _, o := range n.objects {
		if dynamicOnly && o.entity == nil {
			continue
		}
		if m.AdjustedDifference(center, o.Transform.Position).LenSq() > sq(radius+o.radius[t]) {
			continue
		}
		if !fn(o) {
			return false
		}
	}
	if n.children != nil {
		for _, c := range n.children {
			if !c.visitArea(center, radius, m, dynamicOnly, fn) {
				return false
			}
		}
	}
	return true
}

// Walk visits n and its descendants in pre-order, children in index order.
// Returning false from fn skips that node's children.
func (n *SpatialNode) Walk(fn func(node *SpatialNode) bool) {
	if !fn(n) || n.children == nil {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Path returns the child indices leading from the root to n.
func (n *SpatialNode) Path() []int {
	var path []int
	for a := n; a.parent != nil; a = a.parent {
		path = append(path, a.ChildIndex())
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// clear detaches every object in the subtree from this tree type and resets
// all counters, calling fn for each detached object.
func (n *SpatialNode) clear(fn func(o *Object)) {
	t := n.tree
	for i, o := range n.objects {
		o.node[t] = nil
		o.slot[t] = 0
		n.objects[i] = nil
		if fn != nil {
			fn(o)
		}
	}
	n.objects = n.objects[:0]
	n.count = 0
	n.static = 0
	if n.children != nil {
		for _, c := range n.children {
			c.clear(fn)
		}
	}
}

// Validate checks the subtree's structural invariants: counters equal the
// direct count plus the children's counters, every object's back-reference
// and slot point at the node holding it, and every object sits in the node
// its position and radius select. It returns the first violation found.
func (n *SpatialNode) Validate() error {
	t := n.tree
	count, static := len(n.objects), 0
	for i, o := range n.objects {
		if o.node[t] != n || o.slot[t] != i {
			return fmt.Errorf("node %v: object %d has stale back-reference", n.Path(), o.ID)
		}
		if o.entity == nil {
			static++
		}
		if !n.Contains(o.Transform.Position) {
			return fmt.Errorf("node %v: object %d center outside node square", n.Path(), o.ID)
		}
		if !n.ownsDirectly(o.radius[t]) || !n.fits(o.radius[t]) {
			return fmt.Errorf("node %v: object %d radius %v outside node band", n.Path(), o.ID, o.radius[t])
		}
	}
	if n.children != nil {
		for _, c := range n.children {
			if c.parent != n {
				return fmt.Errorf("node %v: child has wrong parent", n.Path())
			}
			if err := c.Validate(); err != nil {
				return err
			}
			count += c.count
			static += c.static
		}
	}
	if count != n.count || static != n.static {
		return fmt.Errorf("node %v: counters (%d, %d) want (%d, %d)", n.Path(), n.count, n.static, count, static)
	}
	return nil
}

func sq(v float64) float64 { return v * v }
