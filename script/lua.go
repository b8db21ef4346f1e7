// Package script runs entity behaviours written in Lua.
//
// A behaviour is a global Lua table with an update function and optional
// collision and clamp callbacks:
//
//	drifter = {}
//	function drifter.update(e, dt)
//	    local vx, vy = e:velocity()
//	    e:set_velocity(vx * 0.99, vy * 0.99)
//	end
//	function drifter.on_collide(e, other)
//	    e:delete_after(0)
//	end
//
// All behaviours of an Engine share one Lua VM and must be driven from the
// goroutine that calls World.ProcessFrame.
package script

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phanxgames/strata"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const entityTypeName = "strata.entity"

// Engine wraps a single gopher-lua VM.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a VM with the entity API registered. A nil log discards
// everything.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()
	e := &Engine{vm: vm, log: log}
	e.registerEntityType()
	return e
}

// Close shuts the VM down. Behaviours created by the Engine stop working.
func (e *Engine) Close() {
	e.vm.Close()
}

// LoadString runs a chunk of Lua source.
func (e *Engine) LoadString(name, src string) error {
	fn, err := e.vm.LoadString(src)
	if err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	e.vm.Push(fn)
	if err := e.vm.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("run %s: %w", name, err)
	}
	e.log.Debug("loaded lua chunk", zap.String("name", name))
	return nil
}

// LoadFile runs a Lua file.
func (e *Engine) LoadFile(path string) error {
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	e.log.Debug("loaded lua script", zap.String("file", path))
	return nil
}

// LoadDir runs every .lua file in dir in name order. A missing directory is
// not an error.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := e.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Behavior returns a behaviour driven by the global Lua table name. The
// table must define update; on_collide and on_clamped are optional.
func (e *Engine) Behavior(name string) (*Behavior, error) {
	tbl, ok := e.vm.GetGlobal(name).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua behaviour %q: global is not a table", name)
	}
	update, ok := tbl.RawGetString("update").(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("lua behaviour %q: missing update function", name)
	}
	b := &Behavior{engine: e, name: name, update: update}
	if fn, ok := tbl.RawGetString("on_collide").(*lua.LFunction); ok {
		b.onCollide = fn
	}
	if fn, ok := tbl.RawGetString("on_clamped").(*lua.LFunction); ok {
		b.onClamped = fn
	}
	return b, nil
}

// Behavior is a strata.Behavior backed by Lua functions. A Lua error logs
// and disables the behaviour so one faulty script cannot stall every frame.
type Behavior struct {
	engine    *Engine
	name      string
	update    *lua.LFunction
	onCollide *lua.LFunction
	onClamped *lua.LFunction
	failed    bool
}

var (
	_ strata.Behavior     = (*Behavior)(nil)
	_ strata.Collider     = (*Behavior)(nil)
	_ strata.ClampHandler = (*Behavior)(nil)
)

// Name returns the Lua table name.
func (b *Behavior) Name() string { return b.name }

// Failed reports whether a Lua error has disabled the behaviour.
func (b *Behavior) Failed() bool { return b.failed }

// Update calls update(entity, dt).
func (b *Behavior) Update(ent *strata.Entity, dt float64) {
	b.call("update", b.update, b.engine.entityValue(ent), lua.LNumber(dt))
}

// OnCollide calls on_collide(entity, other) when defined.
func (b *Behavior) OnCollide(ent, other *strata.Entity) {
	if b.onCollide != nil {
		b.call("on_collide", b.onCollide, b.engine.entityValue(ent), b.engine.entityValue(other))
	}
}

// OnClamped calls on_clamped(entity, clamped_x, clamped_y) when defined.
func (b *Behavior) OnClamped(ent *strata.Entity, clampedX, clampedY bool) {
	if b.onClamped != nil {
		b.call("on_clamped", b.onClamped, b.engine.entityValue(ent), lua.LBool(clampedX), lua.LBool(clampedY))
	}
}

func (b *Behavior) call(hook string, fn *lua.LFunction, args ...lua.LValue) {
	if b.failed {
		return
	}
	err := b.engine.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	if err != nil {
		b.failed = true
		b.engine.log.Error("lua behaviour failed, disabling",
			zap.String("behaviour", b.name),
			zap.String("hook", hook),
			zap.Error(err),
		)
	}
}

// --- entity userdata ---

func (e *Engine) registerEntityType() {
	mt := e.vm.NewTypeMetatable(entityTypeName)
	e.vm.SetField(mt, "__index", e.vm.SetFuncs(e.vm.NewTable(), entityMethods))
}

func (e *Engine) entityValue(ent *strata.Entity) lua.LValue {
	if ent == nil {
		return lua.LNil
	}
	ud := e.vm.NewUserData()
	ud.Value = ent
	e.vm.SetMetatable(ud, e.vm.GetTypeMetatable(entityTypeName))
	return ud
}

func checkEntity(L *lua.LState) *strata.Entity {
	ud := L.CheckUserData(1)
	if ent, ok := ud.Value.(*strata.Entity); ok {
		return ent
	}
	L.ArgError(1, "entity expected")
	return nil
}

var entityMethods = map[string]lua.LGFunction{
	"id": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkEntity(L).Object().ID))
		return 1
	},
	"type": func(L *lua.LState) int {
		L.Push(lua.LString(checkEntity(L).Object().Type))
		return 1
	},
	"guid": func(L *lua.LState) int {
		L.Push(lua.LString(checkEntity(L).GUID.String()))
		return 1
	},
	"position": func(L *lua.LState) int {
		p := checkEntity(L).Position()
		L.Push(lua.LNumber(p.X))
		L.Push(lua.LNumber(p.Y))
		return 2
	},
	"set_position": func(L *lua.LState) int {
		ent := checkEntity(L)
		ent.SetPosition(strata.Vec2{X: float64(L.CheckNumber(2)), Y: float64(L.CheckNumber(3))})
		return 0
	},
	"velocity": func(L *lua.LState) int {
		v := checkEntity(L).Velocity
		L.Push(lua.LNumber(v.X))
		L.Push(lua.LNumber(v.Y))
		return 2
	},
	"set_velocity": func(L *lua.LState) int {
		ent := checkEntity(L)
		ent.Velocity = strata.Vec2{X: float64(L.CheckNumber(2)), Y: float64(L.CheckNumber(3))}
		return 0
	},
	"radius": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkEntity(L).Object().Radius(strata.TreePhysics)))
		return 1
	},
	"in_world": func(L *lua.LState) int {
		L.Push(lua.LBool(checkEntity(L).InWorld()))
		return 1
	},
	"delete_after": func(L *lua.LState) int {
		ent := checkEntity(L)
		if ent.InWorld() {
			ent.DeleteAfter(float64(L.OptNumber(2, 0)))
		}
		return 0
	},
	"remove_after": func(L *lua.LState) int {
		ent := checkEntity(L)
		if ent.InWorld() {
			ent.RemoveFromWorldAfter(float64(L.OptNumber(2, 0)))
		}
		return 0
	},
}
