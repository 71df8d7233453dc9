package loader

import (
	"reflect"
	"strings"
	"testing"

	"github.com/nathoo/boardcore/engine"
	"github.com/nathoo/boardcore/engine/action"
	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/engine/flow"
	lua "github.com/yuin/gopher-lua"
)

func newTestVM(t *testing.T) (*lua.LState, *runtime, *collector) {
	t.Helper()
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	t.Cleanup(L.Close)
	openSafeLibs(L)
	sandbox(L)
	rt := newRuntime(L)
	coll := &collector{}
	registerAPI(L, coll)
	return L, rt, coll
}

// compileSource runs src through the DSL constructors and compiles the
// result, without the validation pass.
func compileSource(t *testing.T, src string) (*engine.Definition, error) {
	t.Helper()
	L, rt, coll := newTestVM(t)
	if err := L.DoString(src); err != nil {
		t.Fatalf("lua error: %v", err)
	}
	return compile(coll, rt)
}

func mustCompile(t *testing.T, src string) *engine.Definition {
	t.Helper()
	def, err := compileSource(t, src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return def
}

const minimalGame = `
Game { name = "probe", min_players = 2, max_players = 4 }
Flow(Seq {})
`

func TestSortedLuaFiles(t *testing.T) {
	got := sortedLuaFiles([]string{"setup.lua", "game.lua", "actions.lua"})
	want := []string{"game.lua", "actions.lua", "setup.lua"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sortedLuaFiles = %v, want %v", got, want)
	}

	got = sortedLuaFiles([]string{"b.lua", "a.lua"})
	want = []string{"a.lua", "b.lua"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sortedLuaFiles without game.lua = %v, want %v", got, want)
	}
}

func TestToGoValue(t *testing.T) {
	L, _, _ := newTestVM(t)
	if err := L.DoString(`probe = { n = 3, f = 2.5, s = "hi", b = true, list = {10, 20}, nested = { x = 1 } }`); err != nil {
		t.Fatalf("lua error: %v", err)
	}
	tbl := L.GetGlobal("probe").(*lua.LTable)

	got := toGoValue(tbl)
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("toGoValue returned %T, want map", got)
	}
	if m["n"] != 3 {
		t.Fatalf("n = %v (%T), want int 3", m["n"], m["n"])
	}
	if m["f"] != 2.5 {
		t.Fatalf("f = %v, want 2.5", m["f"])
	}
	if m["s"] != "hi" || m["b"] != true {
		t.Fatalf("s/b = %v/%v", m["s"], m["b"])
	}
	if !reflect.DeepEqual(m["list"], []any{10, 20}) {
		t.Fatalf("list = %v, want [10 20]", m["list"])
	}
	nested, ok := m["nested"].(map[string]any)
	if !ok || nested["x"] != 1 {
		t.Fatalf("nested = %v", m["nested"])
	}
}

func TestCompile_GameHeader(t *testing.T) {
	def := mustCompile(t, minimalGame)
	if def.Name != "probe" || def.MinPlayers != 2 || def.MaxPlayers != 4 {
		t.Fatalf("header = %q %d..%d", def.Name, def.MinPlayers, def.MaxPlayers)
	}

	if _, err := compileSource(t, `Game { min_players = 2 } Flow(Seq {})`); err == nil || !strings.Contains(err.Error(), "requires a name") {
		t.Fatalf("nameless game: err = %v", err)
	}
	if _, err := compileSource(t, `Flow(Seq {})`); err == nil || !strings.Contains(err.Error(), "no Game{}") {
		t.Fatalf("missing game: err = %v", err)
	}
	if _, err := compileSource(t, `Game { name = "probe" }`); err == nil || !strings.Contains(err.Error(), "no Flow()") {
		t.Fatalf("missing flow: err = %v", err)
	}
}

func TestCompile_Classes(t *testing.T) {
	def := mustCompile(t, minimalGame+`
PieceClass "card" {
	attributes = { rank = 0, suit = "" },
	visibility = "hidden",
}
SpaceClass "hand" {
	visibility = { mode = "owner", add = {1} },
}
SpaceClass "board" {}
`)
	if len(def.Classes) != 3 {
		t.Fatalf("classes = %d, want 3", len(def.Classes))
	}

	card := def.Classes[0]
	if card.Name != "card" || card.Kind != element.KindPiece {
		t.Fatalf("card = %q kind %v", card.Name, card.Kind)
	}
	if card.Attributes["rank"] != 0 || card.Attributes["suit"] != "" {
		t.Fatalf("card attributes = %v", card.Attributes)
	}
	if card.Visibility == nil || card.Visibility.Mode != element.ModeHidden {
		t.Fatalf("card visibility = %+v", card.Visibility)
	}

	hand := def.Classes[1]
	if hand.Kind != element.KindSpace {
		t.Fatalf("hand kind = %v", hand.Kind)
	}
	if hand.Visibility == nil || hand.Visibility.Mode != element.ModeOwner {
		t.Fatalf("hand visibility = %+v", hand.Visibility)
	}
	if !reflect.DeepEqual(hand.Visibility.AddPlayers, []int{1}) {
		t.Fatalf("hand add players = %v", hand.Visibility.AddPlayers)
	}

	if def.Classes[2].Visibility != nil {
		t.Fatalf("board should have no visibility override, got %+v", def.Classes[2].Visibility)
	}
}

func TestCompile_BadVisibilityMode(t *testing.T) {
	_, err := compileSource(t, minimalGame+`
PieceClass "card" { visibility = "translucent" }
`)
	if err == nil || !strings.Contains(err.Error(), "card") {
		t.Fatalf("err = %v, want class compile error", err)
	}
}

func TestCompile_SelectionKinds(t *testing.T) {
	def := mustCompile(t, minimalGame+`
Action "probe" {
	selections = {
		Choose { name = "suit", choices = {"hearts", "spades"} },
		ChoosePlayer { name = "target" },
		ChooseElement { name = "card", class = "card" },
		ChooseElements { name = "cards", class = "card", min = 1, max = 3 },
		ChooseNumber { name = "bid", min = 1, max = 10, integer = true },
		ChooseText { name = "word", pattern = "^[a-z]+$", min_len = 1, max_len = 8 },
	},
	execute = function(args) end,
}
`)
	d, ok := def.Actions.Get("probe")
	if !ok {
		t.Fatalf("action probe not compiled")
	}
	var kinds []string
	for _, s := range d.Selections {
		kinds = append(kinds, reflect.TypeOf(s.Kind).Name())
	}
	want := []string{"Choice", "Player", "Element", "Elements", "Number", "Text"}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("selection kinds = %v, want %v", kinds, want)
	}

	num := d.Selections[4].Kind.(action.Number)
	if num.Min == nil || *num.Min != 1 || num.Max == nil || *num.Max != 10 || !num.Integer {
		t.Fatalf("number kind = %+v", num)
	}
	els := d.Selections[3].Kind.(action.Elements)
	if els.Min != 1 || els.Max != 3 {
		t.Fatalf("elements kind = %+v", els)
	}
}

func TestCompile_SelectionRequiresName(t *testing.T) {
	_, err := compileSource(t, minimalGame+`
Action "probe" {
	selections = { ChooseNumber { min = 1, max = 2 } },
	execute = function(args) end,
}
`)
	if err == nil || !strings.Contains(err.Error(), "selection requires a name") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompile_ChoiceRequiresChoices(t *testing.T) {
	_, err := compileSource(t, minimalGame+`
Action "probe" {
	selections = { Choose { name = "pick" } },
	execute = function(args) end,
}
`)
	if err == nil || !strings.Contains(err.Error(), "Choose requires choices") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompile_BadTextPattern(t *testing.T) {
	_, err := compileSource(t, minimalGame+`
Action "probe" {
	selections = { ChooseText { name = "word", pattern = "([" } },
	execute = function(args) end,
}
`)
	if err == nil || !strings.Contains(err.Error(), "bad pattern") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompile_FlowNodes(t *testing.T) {
	def := mustCompile(t, `
Game { name = "probe" }
Action "pass" { execute = function(args) end }
Flow(Seq {
	Loop { cond = function() return false end, body = Seq {}, max = 5 },
	EachPlayer { body = Seq {}, as = "p", reverse = true },
	ForEachItem { items = function() return {1, 2} end, body = Seq {}, as = "item" },
	Step { actions = {"pass"}, prompt = "your move" },
	AllPlayers { actions = {"pass"} },
	If { cond = function() return true end, body = Seq {}, orelse = Seq {} },
	Switch {
		on = function() return 1 end,
		cases = { { value = 1, body = Seq {} } },
		default = Seq {},
	},
	Do(function(g) end),
})
`)
	root, ok := def.Flow.(flow.Sequence)
	if !ok {
		t.Fatalf("flow root is %T, want Sequence", def.Flow)
	}
	if n := len(root.Steps); n != 8 {
		t.Fatalf("root has %d children, want 8", n)
	}

	loop, ok := root.Steps[0].(flow.Loop)
	if !ok || loop.MaxIterations != 5 {
		t.Fatalf("loop = %#v", root.Steps[0])
	}
	step, ok := root.Steps[3].(flow.ActionStep)
	if !ok || !reflect.DeepEqual(step.Actions, []string{"pass"}) || step.Prompt != "your move" {
		t.Fatalf("step = %#v", root.Steps[3])
	}
	sw, ok := root.Steps[6].(flow.Switch)
	if !ok || len(sw.Cases) != 1 || sw.Cases[0].Value != 1 || sw.Default == nil {
		t.Fatalf("switch = %#v", root.Steps[6])
	}
}

func TestCompile_NodeErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"loop without body", `Flow(Loop { cond = function() return true end })`, "Loop"},
		{"if without cond", `Flow(If { body = Seq {} })`, "If"},
		{"step without actions", `Flow(Step {})`, "Step requires actions"},
		{"all players without actions", `Flow(AllPlayers {})`, "AllPlayers requires actions"},
		{"switch without on", `Flow(Switch { cases = {} })`, "Switch requires on"},
		{"switch without cases", `Flow(Switch { on = function() return 1 end })`, "Switch requires cases"},
		{"plain table", `Flow({})`, "not a flow node"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compileSource(t, `Game { name = "probe" } `+tc.src)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestCompile_GamePredicates(t *testing.T) {
	def := mustCompile(t, `
Game {
	name = "probe",
	is_complete = function(g) return true end,
	winners = function(g) return {1, 0} end,
}
Flow(Seq {})
`)
	if def.IsComplete == nil {
		t.Fatalf("is_complete not compiled")
	}
	if def.Winners == nil {
		t.Fatalf("winners not compiled")
	}
}
