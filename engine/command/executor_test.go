package command

import (
	"reflect"
	"testing"

	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/engine/game"
	"github.com/nathoo/boardcore/types"
)

func testGame(t *testing.T) *game.Game {
	t.Helper()
	g, err := game.New(types.GameConfig{
		Players: []string{"Alice", "Bob"},
		Seed:    "executor-test",
	})
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	classes := []element.Class{
		{Name: "deck", Kind: element.KindSpace, Visibility: &element.Visibility{Mode: element.ModeHidden}},
		{Name: "card", Kind: element.KindPiece, Attributes: map[string]any{"rank": float64(0)}},
	}
	for _, c := range classes {
		if err := g.Tree.Registry().Register(c); err != nil {
			t.Fatalf("register %q: %v", c.Name, err)
		}
	}
	return g
}

func mustExec(t *testing.T, x *Executor, cmd Command) Result {
	t.Helper()
	res := x.Execute(cmd)
	if !res.OK() {
		t.Fatalf("execute %s: %v", cmd.Type(), res.Err)
	}
	return res
}

func TestExecutor_CreateAndCreateMany(t *testing.T) {
	g := testGame(t)
	x := NewExecutor(g)

	res := mustExec(t, x, Create{Class: "deck", Name: "draw", Parent: g.Tree.Root().ID(), Owner: element.NoOwner})
	if len(res.CreatedIDs) != 1 {
		t.Fatalf("created ids = %v, want one id", res.CreatedIDs)
	}
	deckID := res.CreatedIDs[0]

	res = mustExec(t, x, CreateMany{Class: "card", Count: 5, Parent: deckID, Owner: element.NoOwner})
	if len(res.CreatedIDs) != 5 {
		t.Fatalf("created ids = %v, want five", res.CreatedIDs)
	}
	deck, _ := g.Element(deckID)
	if got := len(deck.Children()); got != 5 {
		t.Fatalf("deck has %d children, want 5", got)
	}
	if got := len(x.Log()); got != 2 {
		t.Fatalf("log has %d entries, want 2", got)
	}
}

func TestExecutor_FailedCommandLeavesStateUntouched(t *testing.T) {
	g := testGame(t)
	x := NewExecutor(g)
	deckID := mustExec(t, x, Create{Class: "deck", Parent: g.Tree.Root().ID(), Owner: element.NoOwner}).CreatedIDs[0]
	mustExec(t, x, CreateMany{Class: "card", Count: 3, Parent: deckID, Owner: element.NoOwner})

	before := g.Tree.Serialize()
	logBefore := len(x.Log())

	bad := []Command{
		Move{Element: 99, Dest: deckID, Index: -1},
		Move{Element: deckID, Dest: 99, Index: -1},
		Move{Element: deckID, Dest: deckID, Index: -1},
		Remove{Element: 99},
		Shuffle{Element: 99},
		SetAttribute{Element: 99, Key: "rank", Value: 1},
		SetAttribute{Element: deckID, Key: "", Value: 1},
		SetVisibility{Element: 99, Visibility: element.Visibility{Mode: element.ModeAll}},
		AddVisibleTo{Element: deckID, Players: []int{7}},
		SetCurrentPlayer{Player: 9},
		EndGame{Winners: []int{9}},
		SetOrder{Element: deckID, Order: []int{1}},
		CreateMany{Class: "card", Count: 0, Parent: deckID},
		Create{Class: "ghost", Parent: deckID},
	}
	for _, cmd := range bad {
		if res := x.Execute(cmd); res.OK() {
			t.Fatalf("%s unexpectedly succeeded", cmd.Type())
		}
	}
	if !reflect.DeepEqual(g.Tree.Serialize(), before) {
		t.Fatal("failed commands mutated the tree")
	}
	if got := len(x.Log()); got != logBefore {
		t.Fatalf("failed commands were logged: %d entries, want %d", got, logBefore)
	}
}

func TestExecutor_MoveShuffleSetOrder(t *testing.T) {
	g := testGame(t)
	x := NewExecutor(g)
	deckID := mustExec(t, x, Create{Class: "deck", Parent: g.Tree.Root().ID(), Owner: element.NoOwner}).CreatedIDs[0]
	ids := mustExec(t, x, CreateMany{Class: "card", Count: 3, Parent: deckID, Owner: element.NoOwner}).CreatedIDs

	mustExec(t, x, Move{Element: ids[2], Dest: g.Tree.Root().ID(), Index: -1})
	deck, _ := g.Element(deckID)
	if got := len(deck.Children()); got != 2 {
		t.Fatalf("deck has %d children after move, want 2", got)
	}

	mustExec(t, x, SetOrder{Element: deckID, Order: []int{ids[1], ids[0]}})
	if kids := deck.Children(); kids[0].ID() != ids[1] {
		t.Fatalf("set-order left #%d first, want #%d", kids[0].ID(), ids[1])
	}

	mustExec(t, x, Shuffle{Element: deckID})
	if g.RNG.Position() == 0 {
		t.Fatal("shuffle did not draw from the seeded rng")
	}
}

func TestExecutor_Lifecycle(t *testing.T) {
	g := testGame(t)
	x := NewExecutor(g)

	mustExec(t, x, StartGame{})
	if !g.Started {
		t.Fatal("game not marked started")
	}
	if res := x.Execute(StartGame{}); res.OK() {
		t.Fatal("double start unexpectedly succeeded")
	}

	mustExec(t, x, SetCurrentPlayer{Player: 1})
	if got := g.Players.Current().Position(); got != 1 {
		t.Fatalf("current player = %d, want 1", got)
	}

	mustExec(t, x, Message{Text: "round one"})
	if len(g.Messages) != 1 || g.Messages[0] != "round one" {
		t.Fatalf("messages = %v", g.Messages)
	}

	mustExec(t, x, EndGame{Winners: []int{1}})
	if !g.Ended || !reflect.DeepEqual(g.Winners, []int{1}) {
		t.Fatalf("ended=%v winners=%v", g.Ended, g.Winners)
	}
	if res := x.Execute(EndGame{}); res.OK() {
		t.Fatal("double end unexpectedly succeeded")
	}
}

func TestExecutor_VisibilityCommands(t *testing.T) {
	g := testGame(t)
	x := NewExecutor(g)
	deckID := mustExec(t, x, Create{Class: "deck", Parent: g.Tree.Root().ID(), Owner: element.NoOwner}).CreatedIDs[0]
	cardID := mustExec(t, x, Create{Class: "card", Parent: deckID, Owner: element.NoOwner}).CreatedIDs[0]

	card, _ := g.Element(cardID)
	if g.Tree.VisibleTo(card, 0) {
		t.Fatal("card in hidden deck should start hidden")
	}
	mustExec(t, x, AddVisibleTo{Element: cardID, Players: []int{0}})
	if !g.Tree.VisibleTo(card, 0) || g.Tree.VisibleTo(card, 1) {
		t.Fatal("reveal applied to the wrong players")
	}
	mustExec(t, x, SetVisibility{Element: deckID, Visibility: element.Visibility{Mode: element.ModeAll}})
	deck, _ := g.Element(deckID)
	if !g.Tree.VisibleTo(deck, 1) {
		t.Fatal("deck not visible after set-visibility all")
	}
}

func TestExecutor_AppendLogged(t *testing.T) {
	g := testGame(t)
	x := NewExecutor(g)
	x.AppendLogged(StartGame{}, Message{Text: "restored"})
	if got := len(x.Log()); got != 2 {
		t.Fatalf("log has %d entries, want 2", got)
	}
	// Re-recording must not apply: the game stays unstarted.
	if g.Started {
		t.Fatal("append-logged applied the command")
	}
}

func TestWire_RoundTrip(t *testing.T) {
	owner := 1
	cmds := []Command{
		Create{Class: "card", Name: "ace", Parent: 2, Owner: owner},
		CreateMany{Class: "card", Count: 4, Parent: 2, Owner: element.NoOwner},
		Move{Element: 3, Dest: 4, Index: 0},
		Remove{Element: 3},
		Shuffle{Element: 2},
		SetAttribute{Element: 3, Key: "rank", Value: float64(7)},
		SetVisibility{Element: 2, Visibility: element.Visibility{Mode: element.ModeOwner, Explicit: true}},
		AddVisibleTo{Element: 3, Players: []int{0, 1}},
		SetCurrentPlayer{Player: 1},
		Message{Text: "hello"},
		StartGame{},
		EndGame{Winners: []int{0}},
		SetOrder{Element: 2, Order: []int{4, 3}},
	}
	for _, cmd := range cmds {
		data, err := Marshal(cmd)
		if err != nil {
			t.Fatalf("marshal %s: %v", cmd.Type(), err)
		}
		decoded, err := Unmarshal(data)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", cmd.Type(), err)
		}
		if !reflect.DeepEqual(decoded, cmd) {
			t.Fatalf("%s round trip mismatch:\n got %#v\nwant %#v", cmd.Type(), decoded, cmd)
		}
	}

	ws := EncodeLog(cmds)
	back, err := DecodeLog(ws)
	if err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if !reflect.DeepEqual(back, cmds) {
		t.Fatal("log round trip mismatch")
	}
}

func TestWire_DecodeErrors(t *testing.T) {
	if _, err := Decode(Wire{Type: "TELEPORT"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
	if _, err := Decode(Wire{Type: TypeSetVisibility}); err == nil {
		t.Fatal("expected error for missing visibility descriptor")
	}
}

func TestWire_MoveIndexZeroSurvives(t *testing.T) {
	// Index 0 must not collapse to the -1 append default.
	cmd, err := Decode(Encode(Move{Element: 3, Dest: 4, Index: 0}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := cmd.(Move).Index; got != 0 {
		t.Fatalf("index = %d, want 0", got)
	}
	cmd, err = Decode(Encode(Move{Element: 3, Dest: 4, Index: -1}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := cmd.(Move).Index; got != -1 {
		t.Fatalf("index = %d, want -1", got)
	}
}
