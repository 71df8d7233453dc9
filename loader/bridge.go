package loader

import (
	"fmt"

	"github.com/nathoo/boardcore/engine/command"
	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/engine/game"
	lua "github.com/yuin/gopher-lua"
)

// runtime owns the live LState and the `g` bridge table passed to every
// Lua callback. Each invocation first installs the current engine
// context; bridge functions read it back. The engine serializes all
// callback entry points, so a plain field is enough.
type runtime struct {
	L      *lua.LState
	bridge *lua.LTable
	cur    current
}

// current is the engine context a callback runs against. exec is nil in
// read-only callbacks (conditions, filters, predicates); mutation
// attempts there raise a Lua error.
type current struct {
	g      *game.Game
	exec   *command.Executor
	player int
}

func newRuntime(L *lua.LState) *runtime {
	rt := &runtime{L: L, cur: current{player: -1}}
	rt.bridge = rt.buildBridge()
	return rt
}

// set installs the context for the next callback and returns the
// previous one so nested invocations restore correctly.
func (rt *runtime) set(g *game.Game, exec *command.Executor, player int) current {
	prev := rt.cur
	rt.cur = current{g: g, exec: exec, player: player}
	return prev
}

func (rt *runtime) restore(prev current) { rt.cur = prev }

// invoke calls a Lua function with the bridge as its first argument,
// protected, returning the single result.
func (rt *runtime) invoke(fn *lua.LFunction, args ...lua.LValue) (lua.LValue, error) {
	callArgs := append([]lua.LValue{rt.bridge}, args...)
	if err := rt.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, callArgs...); err != nil {
		return lua.LNil, err
	}
	ret := rt.L.Get(-1)
	rt.L.Pop(1)
	return ret, nil
}

// invokeBool is invoke for predicates: errors and non-truthy results
// both read as false.
func (rt *runtime) invokeBool(fn *lua.LFunction, args ...lua.LValue) bool {
	ret, err := rt.invoke(fn, args...)
	if err != nil {
		return false
	}
	return lua.LVAsBool(ret)
}

func (rt *runtime) element(id int) *element.Element {
	el, ok := rt.cur.g.Tree.Element(id)
	if !ok {
		return nil
	}
	return el
}

func (rt *runtime) execute(L *lua.LState, cmd command.Command) command.Result {
	if rt.cur.exec == nil {
		L.RaiseError("%s is not allowed here: callback is read-only", cmd.Type())
		return command.Result{}
	}
	res := rt.cur.exec.Execute(cmd)
	if !res.OK() {
		L.RaiseError("%s", res.Err.Error())
	}
	return res
}

func (rt *runtime) fn(f func(*lua.LState) int) *lua.LFunction {
	return rt.L.NewFunction(f)
}

// buildBridge assembles the `g` table. Mutators issue commands through
// the executor; readers inspect the game directly. Elements and
// players cross the boundary as integer ids and seat positions.
func (rt *runtime) buildBridge() *lua.LTable {
	t := rt.L.NewTable()

	// g.create(class, parent_id [, name [, owner]]) -> id
	t.RawSetString("create", rt.fn(func(L *lua.LState) int {
		cmd := command.Create{
			Class:  L.CheckString(1),
			Parent: L.CheckInt(2),
			Name:   L.OptString(3, ""),
			Owner:  L.OptInt(4, element.NoOwner),
		}
		res := rt.execute(L, cmd)
		L.Push(lua.LNumber(res.CreatedIDs[0]))
		return 1
	}))

	// g.create_many(class, count, parent_id [, owner]) -> {ids}
	t.RawSetString("create_many", rt.fn(func(L *lua.LState) int {
		cmd := command.CreateMany{
			Class:  L.CheckString(1),
			Count:  L.CheckInt(2),
			Parent: L.CheckInt(3),
			Owner:  L.OptInt(4, element.NoOwner),
		}
		res := rt.execute(L, cmd)
		ids := L.NewTable()
		for i, id := range res.CreatedIDs {
			ids.RawSetInt(i+1, lua.LNumber(id))
		}
		L.Push(ids)
		return 1
	}))

	// g.move(id, dest_id [, index])
	t.RawSetString("move", rt.fn(func(L *lua.LState) int {
		rt.execute(L, command.Move{
			Element: L.CheckInt(1),
			Dest:    L.CheckInt(2),
			Index:   L.OptInt(3, -1),
		})
		return 0
	}))

	// g.remove(id)
	t.RawSetString("remove", rt.fn(func(L *lua.LState) int {
		rt.execute(L, command.Remove{Element: L.CheckInt(1)})
		return 0
	}))

	// g.shuffle(id)
	t.RawSetString("shuffle", rt.fn(func(L *lua.LState) int {
		rt.execute(L, command.Shuffle{Element: L.CheckInt(1)})
		return 0
	}))

	// g.set_order(id, {ids})
	t.RawSetString("set_order", rt.fn(func(L *lua.LState) int {
		rt.execute(L, command.SetOrder{
			Element: L.CheckInt(1),
			Order:   toIntSlice(L.CheckTable(2)),
		})
		return 0
	}))

	// g.set(id, key, value)
	t.RawSetString("set", rt.fn(func(L *lua.LState) int {
		rt.execute(L, command.SetAttribute{
			Element: L.CheckInt(1),
			Key:     L.CheckString(2),
			Value:   toGoValue(L.Get(3)),
		})
		return 0
	}))

	// g.set_visibility(id, mode)
	t.RawSetString("set_visibility", rt.fn(func(L *lua.LState) int {
		mode, err := element.ParseMode(L.CheckString(2))
		if err != nil {
			L.RaiseError("%s", err.Error())
		}
		rt.execute(L, command.SetVisibility{
			Element:    L.CheckInt(1),
			Visibility: element.Visibility{Mode: mode, Explicit: true},
		})
		return 0
	}))

	// g.reveal(id, {players})
	t.RawSetString("reveal", rt.fn(func(L *lua.LState) int {
		rt.execute(L, command.AddVisibleTo{
			Element: L.CheckInt(1),
			Players: toIntSlice(L.CheckTable(2)),
		})
		return 0
	}))

	// g.set_current(player)
	t.RawSetString("set_current", rt.fn(func(L *lua.LState) int {
		rt.execute(L, command.SetCurrentPlayer{Player: L.CheckInt(1)})
		return 0
	}))

	// g.message(text)
	t.RawSetString("message", rt.fn(func(L *lua.LState) int {
		rt.execute(L, command.Message{Text: L.CheckString(1)})
		return 0
	}))

	// g.end_game({winners})
	t.RawSetString("end_game", rt.fn(func(L *lua.LState) int {
		var winners []int
		if tbl, ok := L.Get(1).(*lua.LTable); ok {
			winners = toIntSlice(tbl)
		}
		rt.execute(L, command.EndGame{Winners: winners})
		return 0
	}))

	// g.random(n) -> 0..n-1, from the seeded stream
	t.RawSetString("random", rt.fn(func(L *lua.LState) int {
		n := L.CheckInt(1)
		if n <= 0 {
			L.RaiseError("random: n must be positive, got %d", n)
		}
		L.Push(lua.LNumber(rt.cur.g.RNG.Intn(n)))
		return 1
	}))

	// g.roll(sides) -> 1..sides
	t.RawSetString("roll", rt.fn(func(L *lua.LState) int {
		sides := L.CheckInt(1)
		if sides <= 0 {
			L.RaiseError("roll: sides must be positive, got %d", sides)
		}
		L.Push(lua.LNumber(rt.cur.g.RNG.Roll(sides)))
		return 1
	}))

	// g.var(name) -> value
	t.RawSetString("var", rt.fn(func(L *lua.LState) int {
		v, ok := rt.cur.g.Var(L.CheckString(1))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(toLua(L, v))
		return 1
	}))

	// g.set_var(name, value) — flow variable, not element state
	t.RawSetString("set_var", rt.fn(func(L *lua.LState) int {
		rt.cur.g.SetVar(L.CheckString(1), toGoValue(L.Get(2)))
		return 0
	}))

	// g.get(id, key) -> attribute value
	t.RawSetString("get", rt.fn(func(L *lua.LState) int {
		el := rt.element(L.CheckInt(1))
		if el == nil {
			L.Push(lua.LNil)
			return 1
		}
		v, ok := el.Attr(L.CheckString(2))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(toLua(L, v))
		return 1
	}))

	// g.children(id) -> {ids}
	t.RawSetString("children", rt.fn(func(L *lua.LState) int {
		el := rt.element(L.CheckInt(1))
		ids := L.NewTable()
		if el != nil {
			for i, c := range el.Children() {
				ids.RawSetInt(i+1, lua.LNumber(c.ID()))
			}
		}
		L.Push(ids)
		return 1
	}))

	// g.count(id) -> child count
	t.RawSetString("count", rt.fn(func(L *lua.LState) int {
		el := rt.element(L.CheckInt(1))
		if el == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(len(el.Children())))
		return 1
	}))

	// g.first(class) -> id or nil
	t.RawSetString("first", rt.fn(func(L *lua.LState) int {
		if el := rt.cur.g.First(L.CheckString(1)); el != nil {
			L.Push(lua.LNumber(el.ID()))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	// g.named(name) -> id or nil
	t.RawSetString("named", rt.fn(func(L *lua.LState) int {
		if el := rt.cur.g.Named(L.CheckString(1)); el != nil {
			L.Push(lua.LNumber(el.ID()))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	// g.class_of / g.name_of / g.owner_of / g.parent_of
	t.RawSetString("class_of", rt.fn(func(L *lua.LState) int {
		el := rt.element(L.CheckInt(1))
		if el == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(el.Class()))
		return 1
	}))
	t.RawSetString("name_of", rt.fn(func(L *lua.LState) int {
		el := rt.element(L.CheckInt(1))
		if el == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(el.Name()))
		return 1
	}))
	t.RawSetString("owner_of", rt.fn(func(L *lua.LState) int {
		el := rt.element(L.CheckInt(1))
		if el == nil || el.Owner() == element.NoOwner {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(el.Owner()))
		return 1
	}))
	t.RawSetString("parent_of", rt.fn(func(L *lua.LState) int {
		el := rt.element(L.CheckInt(1))
		if el == nil || el.Parent() == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(el.Parent().ID()))
		return 1
	}))

	// g.players() -> seat count
	t.RawSetString("players", rt.fn(func(L *lua.LState) int {
		L.Push(lua.LNumber(rt.cur.g.Players.Len()))
		return 1
	}))

	// g.player_name(pos)
	t.RawSetString("player_name", rt.fn(func(L *lua.LState) int {
		p, ok := rt.cur.g.Players.Player(L.CheckInt(1))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(p.Name()))
		return 1
	}))

	// g.current_player() -> the player this callback runs for, falling
	// back to the roster's current seat
	t.RawSetString("current_player", rt.fn(func(L *lua.LState) int {
		if rt.cur.player >= 0 {
			L.Push(lua.LNumber(rt.cur.player))
			return 1
		}
		if p := rt.cur.g.Players.Current(); p != nil {
			L.Push(lua.LNumber(p.Position()))
			return 1
		}
		L.Push(lua.LNil)
		return 1
	}))

	// g.visible_to(id, player) -> bool
	t.RawSetString("visible_to", rt.fn(func(L *lua.LState) int {
		el := rt.element(L.CheckInt(1))
		if el == nil {
			L.Push(lua.LFalse)
			return 1
		}
		L.Push(lua.LBool(rt.cur.g.Tree.VisibleTo(el, L.CheckInt(2))))
		return 1
	}))

	return t
}

// toLua converts a Go value into its Lua representation.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		tbl := L.NewTable()
		for i, item := range val {
			tbl.RawSetInt(i+1, toLua(L, item))
		}
		return tbl
	case []int:
		tbl := L.NewTable()
		for i, item := range val {
			tbl.RawSetInt(i+1, lua.LNumber(item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range val {
			tbl.RawSetString(k, toLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// toIntSlice reads an array-style Lua table of numbers.
func toIntSlice(tbl *lua.LTable) []int {
	var out []int
	n := tbl.MaxN()
	for i := 1; i <= n; i++ {
		if num, ok := tbl.RawGetInt(i).(lua.LNumber); ok {
			out = append(out, int(num))
		}
	}
	return out
}
