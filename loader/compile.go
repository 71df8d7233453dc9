// Package loader loads Lua game definitions. Classes compile to plain
// data; conditions, filters, predicates, and effects stay as Lua
// functions, bridged into the engine's callback signatures through the
// shared runtime.
package loader

import (
	"fmt"
	"regexp"

	"github.com/nathoo/boardcore/engine"
	"github.com/nathoo/boardcore/engine/action"
	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/engine/flow"
	"github.com/nathoo/boardcore/engine/game"
	lua "github.com/yuin/gopher-lua"
)

// rawClass holds a class table before compilation.
type rawClass struct {
	name  string
	kind  string
	table *lua.LTable
}

// rawAction holds an action table before compilation.
type rawAction struct {
	name  string
	table *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// getFunction returns a function field from a Lua table, or nil.
func getFunction(tbl *lua.LTable, key string) *lua.LFunction {
	v := tbl.RawGetString(key)
	if f, ok := v.(*lua.LFunction); ok {
		return f
	}
	return nil
}

// toGoValue converts a Lua value to a Go value recursively.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Array (sequential integer keys starting at 1) or map.
		maxN := val.MaxN()
		if maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// tableToAnyMap converts a Lua table to a map[string]any.
func tableToAnyMap(tbl *lua.LTable) map[string]any {
	if tbl == nil {
		return nil
	}
	m := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			m[string(ks)] = toGoValue(v)
		}
	})
	return m
}

// toStringSlice reads an array-style Lua table of strings.
func toStringSlice(tbl *lua.LTable) []string {
	if tbl == nil {
		return nil
	}
	var out []string
	n := tbl.MaxN()
	for i := 1; i <= n; i++ {
		if s, ok := tbl.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// luaArg converts an engine-side argument value into its Lua form:
// elements and players cross as ids and seat positions.
func luaArg(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case *element.Element:
		return lua.LNumber(x.ID())
	case *game.Player:
		return lua.LNumber(x.Position())
	case []any:
		tbl := L.NewTable()
		for i, item := range x {
			tbl.RawSetInt(i+1, luaArg(L, item))
		}
		return tbl
	default:
		return toLua(L, v)
	}
}

// argsToLua converts a resolved args map into a Lua table.
func argsToLua(L *lua.LState, args action.Args) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range args {
		tbl.RawSetString(k, luaArg(L, v))
	}
	return tbl
}

// compile converts collected Lua data into an engine definition.
func compile(coll *collector, rt *runtime) (*engine.Definition, error) {
	if coll.game == nil {
		return nil, fmt.Errorf("no Game{} definition found")
	}
	def := &engine.Definition{
		Name:       getString(coll.game, "name"),
		MinPlayers: getInt(coll.game, "min_players"),
		MaxPlayers: getInt(coll.game, "max_players"),
	}
	if def.Name == "" {
		return nil, fmt.Errorf("Game{} requires a name")
	}

	for _, raw := range coll.classes {
		c, err := compileClass(raw)
		if err != nil {
			return nil, fmt.Errorf("compiling class %s: %w", raw.name, err)
		}
		def.Classes = append(def.Classes, c)
	}

	var defs []*action.Def
	for _, raw := range coll.actions {
		d, err := compileAction(rt, raw)
		if err != nil {
			return nil, fmt.Errorf("compiling action %s: %w", raw.name, err)
		}
		defs = append(defs, d)
	}
	def.Actions = action.NewSet(defs...)

	if coll.setup != nil {
		fn := coll.setup
		def.Setup = func(ctx *flow.Ctx) error {
			prev := rt.set(ctx.Game, ctx.Exec, ctxPlayer(ctx))
			defer rt.restore(prev)
			_, err := rt.invoke(fn)
			return err
		}
	}

	if coll.flow == nil {
		return nil, fmt.Errorf("no Flow() definition found")
	}
	root, err := compileNode(rt, coll.flow)
	if err != nil {
		return nil, fmt.Errorf("compiling flow: %w", err)
	}
	def.Flow = root

	if fn := getFunction(coll.game, "is_complete"); fn != nil {
		def.IsComplete = func(ctx *flow.Ctx) bool {
			prev := rt.set(ctx.Game, nil, ctxPlayer(ctx))
			defer rt.restore(prev)
			return rt.invokeBool(fn)
		}
	}
	if fn := getFunction(coll.game, "winners"); fn != nil {
		def.Winners = func(ctx *flow.Ctx) []int {
			prev := rt.set(ctx.Game, nil, ctxPlayer(ctx))
			defer rt.restore(prev)
			ret, err := rt.invoke(fn)
			if err != nil {
				return nil
			}
			if tbl, ok := ret.(*lua.LTable); ok {
				return toIntSlice(tbl)
			}
			return nil
		}
	}

	return def, nil
}

func ctxPlayer(ctx *flow.Ctx) int {
	if ctx.Player != nil {
		return ctx.Player.Position()
	}
	return -1
}

func compileClass(raw rawClass) (element.Class, error) {
	c := element.Class{Name: raw.name}
	switch raw.kind {
	case "piece":
		c.Kind = element.KindPiece
	case "space":
		c.Kind = element.KindSpace
	default:
		return c, fmt.Errorf("unknown class kind %q", raw.kind)
	}
	c.Attributes = tableToAnyMap(getTable(raw.table, "attributes"))

	v, err := compileVisibility(raw.table.RawGetString("visibility"))
	if err != nil {
		return c, err
	}
	c.Visibility = v
	return c, nil
}

// compileVisibility accepts either a bare mode string or a table with
// mode/add/except fields. nil means inherit.
func compileVisibility(v lua.LValue) (*element.Visibility, error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LString:
		mode, err := element.ParseMode(string(val))
		if err != nil {
			return nil, err
		}
		return &element.Visibility{Mode: mode, Explicit: true}, nil
	case *lua.LTable:
		mode, err := element.ParseMode(getString(val, "mode"))
		if err != nil {
			return nil, err
		}
		vis := &element.Visibility{Mode: mode, Explicit: true}
		if add := getTable(val, "add"); add != nil {
			vis.AddPlayers = toIntSlice(add)
		}
		if except := getTable(val, "except"); except != nil {
			vis.ExceptPlayers = toIntSlice(except)
		}
		return vis, nil
	default:
		return nil, fmt.Errorf("visibility must be a mode string or table")
	}
}

func compileAction(rt *runtime, raw rawAction) (*action.Def, error) {
	d := &action.Def{
		Name:   raw.name,
		Prompt: getString(raw.table, "prompt"),
	}

	if fn := getFunction(raw.table, "condition"); fn != nil {
		d.Condition = func(g *game.Game, p *game.Player, args action.Args) bool {
			prev := rt.set(g, nil, p.Position())
			defer rt.restore(prev)
			return rt.invokeBool(fn, argsToLua(rt.L, args))
		}
	}

	if sels := getTable(raw.table, "selections"); sels != nil {
		n := sels.MaxN()
		for i := 1; i <= n; i++ {
			selTbl, ok := sels.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("selection %d is not a constructor table", i)
			}
			sel, err := compileSelection(rt, selTbl)
			if err != nil {
				return nil, fmt.Errorf("selection %d: %w", i, err)
			}
			d.Selections = append(d.Selections, sel)
		}
	}

	if fn := getFunction(raw.table, "execute"); fn != nil {
		d.Execute = func(ctx *action.Context) (map[string]any, error) {
			prev := rt.set(ctx.Game, ctx.Exec, ctx.Player.Position())
			defer rt.restore(prev)
			ret, err := rt.invoke(fn, argsToLua(rt.L, ctx.Args))
			if err != nil {
				return nil, err
			}
			if tbl, ok := ret.(*lua.LTable); ok {
				return tableToAnyMap(tbl), nil
			}
			return nil, nil
		}
	}

	return d, nil
}

func compileSelection(rt *runtime, tbl *lua.LTable) (action.Selection, error) {
	sel := action.Selection{
		Name:          getString(tbl, "name"),
		Prompt:        getString(tbl, "prompt"),
		Optional:      getBool(tbl, "optional", false),
		SkipIfOnlyOne: getBool(tbl, "skip_if_only_one", false),
	}
	if sel.Name == "" {
		return sel, fmt.Errorf("selection requires a name")
	}

	if fb := getTable(tbl, "filter_by"); fb != nil {
		sel.FilterBy = &action.FilterBy{
			Key:       getString(fb, "key"),
			Selection: getString(fb, "selection"),
		}
	}

	if untilFn := getFunction(tbl, "repeat_until"); untilFn != nil {
		rep := &action.Repeat{
			Until: func(g *game.Game, p *game.Player, args action.Args, collected []any) bool {
				prev := rt.set(g, nil, p.Position())
				defer rt.restore(prev)
				return rt.invokeBool(untilFn, luaArg(rt.L, collected), argsToLua(rt.L, args))
			},
		}
		if eachFn := getFunction(tbl, "each"); eachFn != nil {
			rep.Each = func(ctx *action.Context, value any) error {
				prev := rt.set(ctx.Game, ctx.Exec, ctx.Player.Position())
				defer rt.restore(prev)
				_, err := rt.invoke(eachFn, luaArg(rt.L, value), argsToLua(rt.L, ctx.Args))
				return err
			}
		}
		sel.Repeat = rep
	}

	if valFn := getFunction(tbl, "validate"); valFn != nil {
		sel.Validate = func(g *game.Game, p *game.Player, args action.Args, value any) error {
			prev := rt.set(g, nil, p.Position())
			defer rt.restore(prev)
			ret, err := rt.invoke(valFn, luaArg(rt.L, value), argsToLua(rt.L, args))
			if err != nil {
				return err
			}
			switch out := ret.(type) {
			case lua.LString:
				return fmt.Errorf("%s", string(out))
			case lua.LBool:
				if !bool(out) {
					return fmt.Errorf("value rejected")
				}
			}
			return nil
		}
	}

	kind, err := compileSelectionKind(rt, tbl)
	if err != nil {
		return sel, err
	}
	sel.Kind = kind
	return sel, nil
}

func compileSelectionKind(rt *runtime, tbl *lua.LTable) (action.Kind, error) {
	switch getString(tbl, markSelection) {
	case "choice":
		k := action.Choice{}
		if choices := getTable(tbl, "choices"); choices != nil {
			if arr, ok := toGoValue(choices).([]any); ok {
				k.Choices = arr
			}
		}
		if fn := getFunction(tbl, "choices_fn"); fn != nil {
			k.Provider = func(g *game.Game, p *game.Player, args action.Args) []any {
				prev := rt.set(g, nil, p.Position())
				defer rt.restore(prev)
				ret, err := rt.invoke(fn, argsToLua(rt.L, args))
				if err != nil {
					return nil
				}
				if arr, ok := toGoValue(ret).([]any); ok {
					return arr
				}
				return nil
			}
		}
		if k.Choices == nil && k.Provider == nil {
			return nil, fmt.Errorf("Choose requires choices or choices_fn")
		}
		return k, nil

	case "player":
		k := action.Player{}
		if fn := getFunction(tbl, "filter"); fn != nil {
			k.Filter = func(g *game.Game, p *game.Player, args action.Args, candidate *game.Player) bool {
				prev := rt.set(g, nil, p.Position())
				defer rt.restore(prev)
				return rt.invokeBool(fn, lua.LNumber(candidate.Position()), argsToLua(rt.L, args))
			}
		}
		return k, nil

	case "element":
		k := action.Element{Class: getString(tbl, "class")}
		k.Scope = elementScope(rt, tbl)
		k.Where = elementWhere(rt, tbl)
		return k, nil

	case "elements":
		k := action.Elements{
			Class: getString(tbl, "class"),
			Min:   getInt(tbl, "min"),
			Max:   getInt(tbl, "max"),
		}
		k.Scope = elementScope(rt, tbl)
		k.Where = elementWhere(rt, tbl)
		return k, nil

	case "number":
		k := action.Number{Integer: getBool(tbl, "integer", false)}
		if tbl.RawGetString("min") != lua.LNil {
			min := getNumber(tbl, "min")
			k.Min = &min
		}
		if tbl.RawGetString("max") != lua.LNil {
			max := getNumber(tbl, "max")
			k.Max = &max
		}
		return k, nil

	case "text":
		k := action.Text{
			MinLen: getInt(tbl, "min_len"),
			MaxLen: getInt(tbl, "max_len"),
		}
		if pat := getString(tbl, "pattern"); pat != "" {
			re, err := regexp.Compile(pat)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", pat, err)
			}
			k.Pattern = re
		}
		return k, nil
	}
	return nil, fmt.Errorf("not a selection constructor (use ChooseElement, Choose, ...)")
}

// elementScope compiles the optional `from` function: it returns
// element ids; missing ids are dropped.
func elementScope(rt *runtime, tbl *lua.LTable) func(*game.Game, *game.Player, action.Args) []*element.Element {
	fn := getFunction(tbl, "from")
	if fn == nil {
		return nil
	}
	return func(g *game.Game, p *game.Player, args action.Args) []*element.Element {
		prev := rt.set(g, nil, p.Position())
		defer rt.restore(prev)
		ret, err := rt.invoke(fn, argsToLua(rt.L, args))
		if err != nil {
			return nil
		}
		idTbl, ok := ret.(*lua.LTable)
		if !ok {
			return nil
		}
		var out []*element.Element
		for _, id := range toIntSlice(idTbl) {
			if el, ok := g.Tree.Element(id); ok {
				out = append(out, el)
			}
		}
		return out
	}
}

func elementWhere(rt *runtime, tbl *lua.LTable) func(*game.Game, *game.Player, action.Args, *element.Element) bool {
	fn := getFunction(tbl, "where")
	if fn == nil {
		return nil
	}
	return func(g *game.Game, p *game.Player, args action.Args, el *element.Element) bool {
		prev := rt.set(g, nil, p.Position())
		defer rt.restore(prev)
		return rt.invokeBool(fn, lua.LNumber(el.ID()), argsToLua(rt.L, args))
	}
}

// compileNode converts one flow constructor table into a flow node.
func compileNode(rt *runtime, tbl *lua.LTable) (flow.Node, error) {
	kind := getString(tbl, markNode)
	switch kind {
	case "seq":
		var seq flow.Sequence
		n := tbl.MaxN()
		for i := 1; i <= n; i++ {
			childTbl, ok := tbl.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("Seq entry %d is not a flow node", i)
			}
			child, err := compileNode(rt, childTbl)
			if err != nil {
				return nil, err
			}
			seq.Steps = append(seq.Steps, child)
		}
		return seq, nil

	case "loop":
		body, err := requiredNode(rt, tbl, "body", "Loop")
		if err != nil {
			return nil, err
		}
		node := flow.Loop{Do: body, MaxIterations: getInt(tbl, "max")}
		if fn := getFunction(tbl, "cond"); fn != nil {
			node.While = rt.predicate(fn)
		}
		return node, nil

	case "each_player":
		body, err := requiredNode(rt, tbl, "body", "EachPlayer")
		if err != nil {
			return nil, err
		}
		node := flow.EachPlayer{
			Do:      body,
			As:      getString(tbl, "as"),
			Reverse: getBool(tbl, "reverse", false),
		}
		if fn := getFunction(tbl, "filter"); fn != nil {
			node.Filter = func(ctx *flow.Ctx, p *game.Player) bool {
				prev := rt.set(ctx.Game, nil, ctxPlayer(ctx))
				defer rt.restore(prev)
				return rt.invokeBool(fn, lua.LNumber(p.Position()))
			}
		}
		if fn := getFunction(tbl, "starting"); fn != nil {
			node.StartingPlayer = rt.intFn(fn)
		}
		return node, nil

	case "for_each":
		body, err := requiredNode(rt, tbl, "body", "ForEachItem")
		if err != nil {
			return nil, err
		}
		itemsFn := getFunction(tbl, "items")
		if itemsFn == nil {
			return nil, fmt.Errorf("ForEachItem requires items")
		}
		return flow.ForEach{
			Do: body,
			As: getString(tbl, "as"),
			Collection: func(ctx *flow.Ctx) []any {
				prev := rt.set(ctx.Game, nil, ctxPlayer(ctx))
				defer rt.restore(prev)
				ret, err := rt.invoke(itemsFn)
				if err != nil {
					return nil
				}
				if arr, ok := toGoValue(ret).([]any); ok {
					return arr
				}
				return nil
			},
		}, nil

	case "step":
		node := flow.ActionStep{
			Actions: toStringSlice(getTable(tbl, "actions")),
			Prompt:  getString(tbl, "prompt"),
		}
		if len(node.Actions) == 0 {
			return nil, fmt.Errorf("Step requires actions")
		}
		if fn := getFunction(tbl, "player"); fn != nil {
			node.Player = rt.intFn(fn)
		}
		if fn := getFunction(tbl, "skip_if"); fn != nil {
			node.SkipIf = rt.predicate(fn)
		}
		if fn := getFunction(tbl, "repeat_until"); fn != nil {
			node.RepeatUntil = rt.predicate(fn)
		}
		return node, nil

	case "simultaneous":
		node := flow.SimultaneousActionStep{
			Actions: toStringSlice(getTable(tbl, "actions")),
		}
		if len(node.Actions) == 0 {
			return nil, fmt.Errorf("AllPlayers requires actions")
		}
		if fn := getFunction(tbl, "players"); fn != nil {
			node.Players = func(ctx *flow.Ctx) []int {
				prev := rt.set(ctx.Game, nil, ctxPlayer(ctx))
				defer rt.restore(prev)
				ret, err := rt.invoke(fn)
				if err != nil {
					return nil
				}
				if t, ok := ret.(*lua.LTable); ok {
					return toIntSlice(t)
				}
				return nil
			}
		}
		if fn := getFunction(tbl, "player_done"); fn != nil {
			node.PlayerDone = func(ctx *flow.Ctx, p int) bool {
				prev := rt.set(ctx.Game, nil, ctxPlayer(ctx))
				defer rt.restore(prev)
				return rt.invokeBool(fn, lua.LNumber(p))
			}
		}
		if fn := getFunction(tbl, "all_done"); fn != nil {
			node.AllDone = rt.predicate(fn)
		}
		return node, nil

	case "if":
		then, err := requiredNode(rt, tbl, "body", "If")
		if err != nil {
			return nil, err
		}
		condFn := getFunction(tbl, "cond")
		if condFn == nil {
			return nil, fmt.Errorf("If requires cond")
		}
		node := flow.If{Condition: rt.predicate(condFn), Then: then}
		if elseTbl := getTable(tbl, "orelse"); elseTbl != nil {
			elseNode, err := compileNode(rt, elseTbl)
			if err != nil {
				return nil, err
			}
			node.Else = elseNode
		}
		return node, nil

	case "switch":
		onFn := getFunction(tbl, "on")
		if onFn == nil {
			return nil, fmt.Errorf("Switch requires on")
		}
		node := flow.Switch{
			On: func(ctx *flow.Ctx) any {
				prev := rt.set(ctx.Game, nil, ctxPlayer(ctx))
				defer rt.restore(prev)
				ret, err := rt.invoke(onFn)
				if err != nil {
					return nil
				}
				return toGoValue(ret)
			},
		}
		cases := getTable(tbl, "cases")
		if cases == nil {
			return nil, fmt.Errorf("Switch requires cases")
		}
		n := cases.MaxN()
		for i := 1; i <= n; i++ {
			caseTbl, ok := cases.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("Switch case %d is not a table", i)
			}
			bodyTbl := getTable(caseTbl, "body")
			if bodyTbl == nil {
				return nil, fmt.Errorf("Switch case %d has no body", i)
			}
			body, err := compileNode(rt, bodyTbl)
			if err != nil {
				return nil, err
			}
			node.Cases = append(node.Cases, flow.Case{
				Value: toGoValue(caseTbl.RawGetString("value")),
				Do:    body,
			})
		}
		if defTbl := getTable(tbl, "default"); defTbl != nil {
			defNode, err := compileNode(rt, defTbl)
			if err != nil {
				return nil, err
			}
			node.Default = defNode
		}
		return node, nil

	case "do":
		fn := getFunction(tbl, "fn")
		if fn == nil {
			return nil, fmt.Errorf("Do requires a function")
		}
		return flow.Execute{
			Fn: func(ctx *flow.Ctx) error {
				prev := rt.set(ctx.Game, ctx.Exec, ctxPlayer(ctx))
				defer rt.restore(prev)
				_, err := rt.invoke(fn)
				return err
			},
		}, nil
	}
	return nil, fmt.Errorf("not a flow node (use Seq, Loop, Step, ...)")
}

func requiredNode(rt *runtime, tbl *lua.LTable, key, ctor string) (flow.Node, error) {
	child := getTable(tbl, key)
	if child == nil {
		return nil, fmt.Errorf("%s requires %s", ctor, key)
	}
	return compileNode(rt, child)
}

// predicate wraps a Lua function as a read-only flow condition.
func (rt *runtime) predicate(fn *lua.LFunction) func(*flow.Ctx) bool {
	return func(ctx *flow.Ctx) bool {
		prev := rt.set(ctx.Game, nil, ctxPlayer(ctx))
		defer rt.restore(prev)
		return rt.invokeBool(fn)
	}
}

// intFn wraps a Lua function returning a number (player selectors).
func (rt *runtime) intFn(fn *lua.LFunction) func(*flow.Ctx) int {
	return func(ctx *flow.Ctx) int {
		prev := rt.set(ctx.Game, nil, ctxPlayer(ctx))
		defer rt.restore(prev)
		ret, err := rt.invoke(fn)
		if err != nil {
			return 0
		}
		if n, ok := ret.(lua.LNumber); ok {
			return int(n)
		}
		return 0
	}
}
