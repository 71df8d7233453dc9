package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// Marker keys distinguishing DSL constructor output from plain tables.
const (
	markNode      = "__node"
	markSelection = "__selection"
)

// registerAPI registers all Lua constructors as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerSelectionHelpers(L)
	registerFlowHelpers(L, coll)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Game { name = "...", min_players = 2, ... }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		coll.game = L.CheckTable(1)
		return 0
	}))

	// PieceClass "card" { ... } — curried: returns a function taking a table.
	L.SetGlobal("PieceClass", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.classes = append(coll.classes, rawClass{name: name, kind: "piece", table: tbl})
			return 0
		}))
		return 1
	}))

	// SpaceClass "hand" { ... } — curried.
	L.SetGlobal("SpaceClass", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.classes = append(coll.classes, rawClass{name: name, kind: "space", table: tbl})
			return 0
		}))
		return 1
	}))

	// Setup(function(g) ... end)
	L.SetGlobal("Setup", L.NewFunction(func(L *lua.LState) int {
		coll.setup = L.CheckFunction(1)
		return 0
	}))

	// Action "draw" { condition = ..., selections = {...}, execute = ... }
	L.SetGlobal("Action", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.actions = append(coll.actions, rawAction{name: name, table: tbl})
			return 0
		}))
		return 1
	}))
}

// markTable tags a constructor argument with its kind and returns it.
func markTable(L *lua.LState, key, kind string) int {
	tbl := L.CheckTable(1)
	tbl.RawSetString(key, lua.LString(kind))
	L.Push(tbl)
	return 1
}

func registerSelectionHelpers(L *lua.LState) {
	// ChooseElement { name = "card", class = "card", where = fn, ... }
	L.SetGlobal("ChooseElement", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markSelection, "element")
	}))

	// ChooseElements { name = "cards", min = 1, max = 3, ... }
	L.SetGlobal("ChooseElements", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markSelection, "elements")
	}))

	// Choose { name = "suit", choices = {"hearts", ...} }
	L.SetGlobal("Choose", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markSelection, "choice")
	}))

	// ChoosePlayer { name = "target", filter = fn }
	L.SetGlobal("ChoosePlayer", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markSelection, "player")
	}))

	// ChooseNumber { name = "bid", min = 1, max = 10, integer = true }
	L.SetGlobal("ChooseNumber", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markSelection, "number")
	}))

	// ChooseText { name = "word", pattern = "^%a+$", min_len = 1 }
	L.SetGlobal("ChooseText", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markSelection, "text")
	}))
}

func registerFlowHelpers(L *lua.LState, coll *collector) {
	// Flow(node) — registers the root of the flow tree.
	L.SetGlobal("Flow", L.NewFunction(func(L *lua.LState) int {
		coll.flow = L.CheckTable(1)
		return 0
	}))

	// Seq { node1, node2, ... }
	L.SetGlobal("Seq", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markNode, "seq")
	}))

	// Loop { cond = fn, body = node, max = 100 }
	L.SetGlobal("Loop", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markNode, "loop")
	}))

	// EachPlayer { body = node, as = "player", reverse = false, filter = fn }
	L.SetGlobal("EachPlayer", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markNode, "each_player")
	}))

	// ForEachItem { items = fn, body = node, as = "item" }
	L.SetGlobal("ForEachItem", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markNode, "for_each")
	}))

	// Step { actions = {"draw","pass"}, prompt = "...", player = fn,
	//        skip_if = fn, repeat_until = fn }
	L.SetGlobal("Step", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markNode, "step")
	}))

	// AllPlayers { actions = {...}, players = fn, player_done = fn, all_done = fn }
	L.SetGlobal("AllPlayers", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markNode, "simultaneous")
	}))

	// If { cond = fn, body = node, orelse = node }
	L.SetGlobal("If", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markNode, "if")
	}))

	// Switch { on = fn, cases = { {value = 1, body = node}, ... }, default = node }
	L.SetGlobal("Switch", L.NewFunction(func(L *lua.LState) int {
		return markTable(L, markNode, "switch")
	}))

	// Do(fn) — a side-effecting step.
	L.SetGlobal("Do", L.NewFunction(func(L *lua.LState) int {
		fn := L.CheckFunction(1)
		tbl := L.NewTable()
		tbl.RawSetString(markNode, lua.LString("do"))
		tbl.RawSetString("fn", fn)
		L.Push(tbl)
		return 1
	}))
}
