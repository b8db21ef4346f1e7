package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/phanxgames/strata"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const moverLua = `
mover = {}
function mover.update(e, dt)
    local x, y = e:position()
    local vx, vy = e:velocity()
    e:set_position(x + vx * dt, y + vy * dt)
end
function mover.on_clamped(e, cx, cy)
    clamp_log = (clamp_log or "") .. tostring(cx) .. "," .. tostring(cy) .. ";"
end
`

const fuseLua = `
fuse = {}
function fuse.update(e, dt)
    if e:in_world() then
        e:delete_after(0)
    end
end
function fuse.on_collide(e, other)
    hits = (hits or 0) + 1
    last_hit = other:type()
end
`

func newScriptWorld(t *testing.T, side float64) (*strata.World, *strata.ObjectLayer) {
	t.Helper()
	w := strata.NewWorld(8, nil)
	l := w.NewLayer(strata.LayerConfig{Name: "main", SideLength: side})
	t.Cleanup(w.Close)
	return w, l
}

func TestBehaviorUpdateMovesEntity(t *testing.T) {
	eng := NewEngine(nil)
	defer eng.Close()
	require.NoError(t, eng.LoadString("mover", moverLua))
	b, err := eng.Behavior("mover")
	require.NoError(t, err)
	require.Equal(t, "mover", b.Name())

	w, l := newScriptWorld(t, 1000)
	o := strata.NewDynamicObject("ship", 2, b)
	require.True(t, w.AddDynamicObject(o, l))
	o.Entity().Velocity = strata.Vec2{X: 10, Y: -20}

	w.ProcessFrame(0)
	w.ProcessFrame(0.5)
	require.Equal(t, strata.Vec2{X: 5, Y: -10}, o.Position())
	require.False(t, b.Failed())
}

func TestBehaviorOnClamped(t *testing.T) {
	eng := NewEngine(nil)
	defer eng.Close()
	require.NoError(t, eng.LoadString("mover", moverLua))
	b, err := eng.Behavior("mover")
	require.NoError(t, err)

	w, l := newScriptWorld(t, 100)
	o := strata.NewDynamicObject("ball", 1, b)
	require.True(t, w.AddDynamicObject(o, l))
	o.Entity().Velocity = strata.Vec2{X: 200, Y: 0}

	w.ProcessFrame(0)
	w.ProcessFrame(1)
	require.Equal(t, strata.Vec2{X: 50, Y: 0}, o.Position())
	require.Equal(t, "true,false;", eng.vm.GetGlobal("clamp_log").String())
}

func TestBehaviorDeleteAfterAndCollide(t *testing.T) {
	eng := NewEngine(nil)
	defer eng.Close()
	require.NoError(t, eng.LoadString("fuse", fuseLua))
	b, err := eng.Behavior("fuse")
	require.NoError(t, err)

	w, l := newScriptWorld(t, 100)
	o := strata.NewDynamicObject("fuse", 1, b)
	require.True(t, w.AddDynamicObject(o, l))
	other := strata.NewDynamicObject("rock", 1, nil)
	require.True(t, w.AddDynamicObject(other, l))

	b.OnCollide(o.Entity(), other.Entity())
	require.Equal(t, "1", eng.vm.GetGlobal("hits").String())
	require.Equal(t, "rock", eng.vm.GetGlobal("last_hit").String())

	w.ProcessFrame(0)
	require.True(t, o.Entity().IsDestroyed())
	require.Equal(t, 1, w.NumEntities())
}

func TestBehaviorLookupErrors(t *testing.T) {
	eng := NewEngine(nil)
	defer eng.Close()
	require.NoError(t, eng.LoadString("bad", `notatable = 3
noupdate = {}`))

	_, err := eng.Behavior("missing")
	require.Error(t, err)
	_, err = eng.Behavior("notatable")
	require.Error(t, err)
	_, err = eng.Behavior("noupdate")
	require.ErrorContains(t, err, "missing update")

	require.Error(t, eng.LoadString("syntax", "function ("))
	require.Error(t, eng.LoadString("runtime", "error('boom')"))
}

func TestBehaviorErrorDisables(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	eng := NewEngine(zap.New(core))
	defer eng.Close()
	require.NoError(t, eng.LoadString("broken", `
broken = {}
calls = 0
function broken.update(e, dt)
    calls = calls + 1
    e:no_such_method()
end
`))
	b, err := eng.Behavior("broken")
	require.NoError(t, err)

	w, l := newScriptWorld(t, 100)
	require.True(t, w.AddDynamicObject(strata.NewDynamicObject("x", 1, b), l))
	w.ProcessFrame(0)
	w.ProcessFrame(1)

	require.True(t, b.Failed())
	require.Equal(t, "1", eng.vm.GetGlobal("calls").String(), "a failed behaviour is not called again")
	entries := logs.FilterMessage("lua behaviour failed, disabling").All()
	require.Len(t, entries, 1)
	require.Equal(t, "broken", entries[0].ContextMap()["behaviour"])
	require.Equal(t, "update", entries[0].ContextMap()["hook"])
}

func TestEntityAccessors(t *testing.T) {
	eng := NewEngine(nil)
	defer eng.Close()
	require.NoError(t, eng.LoadString("probe", `
probe = {}
function probe.update(e, dt)
    seen_id = e:id()
    seen_guid = e:guid()
    seen_radius = e:radius()
    e:set_velocity(3, 4)
end
`))
	b, err := eng.Behavior("probe")
	require.NoError(t, err)

	w, l := newScriptWorld(t, 100)
	o := strata.NewDynamicObject("probe", 7, b)
	require.True(t, w.AddDynamicObject(o, l))
	w.ProcessFrame(0)

	require.Equal(t, float64(o.ID), float64(eng.vm.GetGlobal("seen_id").(lua.LNumber)))
	require.Equal(t, o.Entity().GUID.String(), eng.vm.GetGlobal("seen_guid").String())
	require.Equal(t, "7", eng.vm.GetGlobal("seen_radius").String())
	require.Equal(t, strata.Vec2{X: 3, Y: 4}, o.Entity().Velocity)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(moverLua), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(fuseLua), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not lua ("), 0o644))

	eng := NewEngine(nil)
	defer eng.Close()
	require.NoError(t, eng.LoadDir(dir))
	_, err := eng.Behavior("mover")
	require.NoError(t, err)
	_, err = eng.Behavior("fuse")
	require.NoError(t, err)

	require.NoError(t, eng.LoadDir(filepath.Join(dir, "missing")))
	require.Error(t, eng.LoadFile(filepath.Join(dir, "nope.lua")))
}
