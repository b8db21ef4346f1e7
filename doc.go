// Package strata is a 2D game-world core for [Ebitengine]: object storage,
// quadtree spatial indexing, layered worlds with optional toroidal wrapping
// and a split between static decoration and dynamic, behaviour-driven
// objects.
//
// # Quick start
//
//	world := strata.NewWorld(1024, strata.NewKinematicPhysics(strata.DefaultTreeConfig(), nil))
//	field := world.NewLayer(strata.LayerConfig{Name: "field", SideLength: 4000, Wrapped: true})
//
//	rock := strata.NewObject("rock", 40)
//	rock.Transform.Position = strata.Vec2{X: 300, Y: -120}
//	world.AddStaticObject(rock, field)
//
//	ship := strata.NewDynamicObject("ship", 12, strata.BehaviorFunc(func(e *strata.Entity, dt float64) {
//		e.Velocity.X += 10 * dt
//	}))
//	world.AddDynamicObject(ship, field)
//
//	cam := strata.NewCamera(strata.Rect{Width: 1280, Height: 720})
//	game := strata.NewGame(world, cam, nil, nil, strata.RunConfig{Title: "demo", Width: 1280, Height: 720})
//	_ = strata.Run(game)
//
// # Objects and entities
//
// An [Object] is a transform record with a visual and a physics radius. On
// its own it is static and owned by its [ObjectLayer]. Attaching an [Entity]
// with [NewEntity] or [NewDynamicObject] makes it dynamic: the [World] owns it
// through a fixed-capacity entity table and runs its [Behavior] every frame.
//
// # Spatial trees
//
// Every layer indexes its objects in a [SpatialNode] quadtree whose shape is
// fixed when the layer is built. Objects are banded by size: each node owns
// objects whose radius is at least half its own bounding radius, so queries
// prune whole subtrees by distance alone. Moving objects are relocated with
// [SpatialNode.ReAdd], which climbs only as far as it must.
//
// A second, independent tree type ([TreePhysics]) can be kept over the same
// objects by a [PhysicsHandler] such as [KinematicPhysics].
//
// # Wrapping
//
// Wrapped layers are tori: positions wrap into [-side/2, side/2) and every
// distance goes through [ObjectLayer.AdjustedDifference], the shortest vector
// across the seam. Entities remember the displacement removed by wrapping in
// their wrapped offset so cameras can follow them continuously.
//
// # Frames and deferred events
//
// [World.ProcessFrame] updates behaviours, advances the physics handler and
// then runs every deferred event that is due. [Entity.DeleteAfter] and
// [World.Schedule] never act synchronously, so behaviours may remove
// themselves while the World is iterating.
//
// # Drawing
//
// [DrawCollector] gathers the objects a [Camera] sees on each layer, culls
// and fades those that are too small on screen and sorts them back to front
// and by render state. [EbitenRenderer] draws the result.
//
// # Contracts
//
// Misuse such as adding an object twice or querying with a non-positive
// radius panics with a "strata:" message. Building with the strata_release
// tag compiles these checks out.
//
// [Ebitengine]: https://ebitengine.org
package strata
