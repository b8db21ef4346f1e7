// Package ecs bridges strata's dynamic entities into a [Donburi] world.
//
// [NewDonburiObserver] returns a [strata.EntityObserver] that mirrors every
// dynamic entity of a strata World as a Donburi entity carrying an
// [EntityRef] component, and publishes a [LifecycleEvent] on
// [LifecycleEventType] for each addition and removal. ECS systems can then
// query strata entities like any other component.
//
// Usage:
//
//	ecsWorld := donburi.NewWorld()
//	obs := ecs.NewDonburiObserver(ecsWorld)
//	world := strata.NewWorld(1024, nil, strata.WithObserver(obs))
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
