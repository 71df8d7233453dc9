package element

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/nathoo/boardcore/engine/rng"
)

func testTree(t *testing.T) *Tree {
	t.Helper()
	reg := NewRegistry()
	classes := []Class{
		{Name: "deck", Kind: KindSpace, Visibility: &Visibility{Mode: ModeHidden}},
		{Name: "hand", Kind: KindSpace, Visibility: &Visibility{Mode: ModeOwner}},
		{Name: "card", Kind: KindPiece, Attributes: map[string]any{"rank": float64(0)}},
	}
	for _, c := range classes {
		if err := reg.Register(c); err != nil {
			t.Fatalf("register %q: %v", c.Name, err)
		}
	}
	return NewTree(reg)
}

func mustCreate(t *testing.T, tr *Tree, class, name string, parent *Element, owner int) *Element {
	t.Helper()
	e, err := tr.Create(class, name, parent, owner)
	if err != nil {
		t.Fatalf("create %q: %v", class, err)
	}
	return e
}

func TestTree_IDsMonotonic(t *testing.T) {
	tr := testTree(t)
	if got := tr.Root().ID(); got != 0 {
		t.Fatalf("root id = %d, want 0", got)
	}
	if got := tr.Sink().ID(); got != 1 {
		t.Fatalf("sink id = %d, want 1", got)
	}
	a := mustCreate(t, tr, "deck", "draw", tr.Root(), NoOwner)
	b := mustCreate(t, tr, "card", "", a, NoOwner)
	if a.ID() != 2 || b.ID() != 3 {
		t.Fatalf("ids = %d, %d, want 2, 3", a.ID(), b.ID())
	}
	if err := tr.Remove(b); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removed ids stay resolvable and are never reused.
	if _, ok := tr.Element(b.ID()); !ok {
		t.Fatalf("removed element id %d no longer resolves", b.ID())
	}
	c := mustCreate(t, tr, "card", "", a, NoOwner)
	if c.ID() != 4 {
		t.Fatalf("next id = %d, want 4", c.ID())
	}
}

func TestTree_CreateUnknownClass(t *testing.T) {
	tr := testTree(t)
	if _, err := tr.Create("nope", "", tr.Root(), NoOwner); err == nil {
		t.Fatal("expected error for unregistered class")
	}
}

func TestTree_CreateCopiesClassAttributes(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Class{
		Name:       "token",
		Kind:       KindPiece,
		Attributes: map[string]any{"tags": []any{"a"}},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	tr := NewTree(reg)
	e := mustCreate(t, tr, "token", "", tr.Root(), NoOwner)
	v, _ := e.Attr("tags")
	v.([]any)[0] = "mutated"
	other := mustCreate(t, tr, "token", "", tr.Root(), NoOwner)
	w, _ := other.Attr("tags")
	if got := w.([]any)[0]; got != "a" {
		t.Fatalf("class default leaked across instances: got %v, want a", got)
	}
}

func TestTree_PieceCannotContainSpace(t *testing.T) {
	tr := testTree(t)
	card := mustCreate(t, tr, "card", "", tr.Root(), NoOwner)
	if _, err := tr.Create("deck", "", card, NoOwner); err == nil {
		t.Fatal("expected containment error creating a space under a piece")
	}
	deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
	if err := tr.Move(deck, card, -1); err == nil {
		t.Fatal("expected containment error moving a space into a piece")
	}
}

func TestTree_MoveAppendAndIndex(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
	a := mustCreate(t, tr, "card", "a", deck, NoOwner)
	b := mustCreate(t, tr, "card", "b", deck, NoOwner)
	c := mustCreate(t, tr, "card", "c", tr.Root(), NoOwner)

	if err := tr.Move(c, deck, 1); err != nil {
		t.Fatalf("move: %v", err)
	}
	want := []*Element{a, c, b}
	if got := deck.Children(); !reflect.DeepEqual(got, want) {
		t.Fatalf("children after indexed move = %v, want a,c,b", names(got))
	}
	if c.Parent() != deck {
		t.Fatal("moved element's parent not updated")
	}
	if len(tr.Root().Children()) != 1 {
		t.Fatalf("source parent still holds the moved element")
	}
}

func TestTree_MoveWithinSameParent(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
	a := mustCreate(t, tr, "card", "a", deck, NoOwner)
	mustCreate(t, tr, "card", "b", deck, NoOwner)
	mustCreate(t, tr, "card", "c", deck, NoOwner)

	if err := tr.Move(a, deck, 2); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := names(deck.Children()); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("children = %v, want [b a c]", got)
	}
}

func TestTree_MoveRejectsCycle(t *testing.T) {
	tr := testTree(t)
	outer := mustCreate(t, tr, "deck", "outer", tr.Root(), NoOwner)
	inner := mustCreate(t, tr, "deck", "inner", outer, NoOwner)

	before := tr.Serialize()
	if err := tr.Move(outer, inner, -1); err == nil {
		t.Fatal("expected error moving an element into its own descendant")
	}
	if !reflect.DeepEqual(tr.Serialize(), before) {
		t.Fatal("failed move mutated the tree")
	}
}

func TestTree_MoveIndexOutOfRange(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
	card := mustCreate(t, tr, "card", "", tr.Root(), NoOwner)

	before := tr.Serialize()
	if err := tr.Move(card, deck, 5); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
	if !reflect.DeepEqual(tr.Serialize(), before) {
		t.Fatal("failed move mutated the tree")
	}
}

func TestTree_MoveRootRejected(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
	if err := tr.Move(tr.Root(), deck, -1); err == nil {
		t.Fatal("expected error moving the root")
	}
	if err := tr.Move(tr.Sink(), deck, -1); err == nil {
		t.Fatal("expected error moving the sink")
	}
}

func TestTree_RemoveRelocatesToSink(t *testing.T) {
	tr := testTree(t)
	card := mustCreate(t, tr, "card", "", tr.Root(), NoOwner)
	if err := tr.Remove(card); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if card.Parent() != tr.Sink() {
		t.Fatal("removed element not parented to the sink")
	}
	for _, e := range tr.All() {
		if e == card {
			t.Fatal("removed element still listed among in-play elements")
		}
	}
}

func TestTree_SetOrder(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
	a := mustCreate(t, tr, "card", "a", deck, NoOwner)
	b := mustCreate(t, tr, "card", "b", deck, NoOwner)
	c := mustCreate(t, tr, "card", "c", deck, NoOwner)

	if err := tr.SetOrder(deck, []int{c.ID(), a.ID(), b.ID()}); err != nil {
		t.Fatalf("set-order: %v", err)
	}
	if got := names(deck.Children()); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Fatalf("children = %v, want [c a b]", got)
	}

	if err := tr.SetOrder(deck, []int{a.ID(), b.ID()}); err == nil {
		t.Fatal("expected error for short id list")
	}
	if err := tr.SetOrder(deck, []int{a.ID(), a.ID(), b.ID()}); err == nil {
		t.Fatal("expected error for duplicated id")
	}
}

func TestTree_ShuffleDeterministic(t *testing.T) {
	build := func(seed string) []string {
		tr := testTree(t)
		deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
		for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
			mustCreate(t, tr, "card", n, deck, NoOwner)
		}
		if err := tr.Shuffle(deck, rng.New(seed)); err != nil {
			t.Fatalf("shuffle: %v", err)
		}
		return names(deck.Children())
	}
	first := build("alpha")
	second := build("alpha")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed shuffled differently: %v vs %v", first, second)
	}
}

func TestVisibility_Inheritance(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
	card := mustCreate(t, tr, "card", "", deck, NoOwner)

	if tr.VisibleTo(card, 0) {
		t.Fatal("card inside hidden deck should be hidden")
	}
	hand := mustCreate(t, tr, "hand", "", tr.Root(), 1)
	if err := tr.Move(card, hand, -1); err != nil {
		t.Fatalf("move: %v", err)
	}
	// Inherited visibility follows the new parent.
	if tr.VisibleTo(card, 0) {
		t.Fatal("card in player 1's hand visible to player 0")
	}
	if !tr.VisibleTo(hand, 1) {
		t.Fatal("owner-visible hand hidden from its owner")
	}
}

func TestVisibility_ExplicitOverridesAncestor(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
	card := mustCreate(t, tr, "card", "", deck, NoOwner)

	if err := tr.SetVisibility(card, Visibility{Mode: ModeAll}); err != nil {
		t.Fatalf("set-visibility: %v", err)
	}
	if !tr.VisibleTo(card, 0) {
		t.Fatal("explicitly all-visible card still hidden")
	}
}

func TestVisibility_ExceptBeatsAdd(t *testing.T) {
	tr := testTree(t)
	card := mustCreate(t, tr, "card", "", tr.Root(), NoOwner)
	v := Visibility{Mode: ModeHidden, AddPlayers: []int{0, 1}, ExceptPlayers: []int{1}}
	if err := tr.SetVisibility(card, v); err != nil {
		t.Fatalf("set-visibility: %v", err)
	}
	if !tr.VisibleTo(card, 0) {
		t.Fatal("added player cannot see the card")
	}
	if tr.VisibleTo(card, 1) {
		t.Fatal("excepted player can see the card")
	}
	if tr.VisibleTo(card, 2) {
		t.Fatal("unlisted player can see a hidden card")
	}
}

func TestVisibility_AddVisibleTo(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
	card := mustCreate(t, tr, "card", "", deck, NoOwner)

	if err := tr.AddVisibleTo(card, []int{1}); err != nil {
		t.Fatalf("add-visible-to: %v", err)
	}
	if !tr.VisibleTo(card, 1) {
		t.Fatal("revealed player cannot see the card")
	}
	if tr.VisibleTo(card, 0) {
		t.Fatal("reveal leaked to another player")
	}
	// The grant materializes on the card, not on the deck.
	other := mustCreate(t, tr, "card", "", deck, NoOwner)
	if tr.VisibleTo(other, 1) {
		t.Fatal("reveal leaked to a sibling")
	}
}

func TestParseMode_RoundTrip(t *testing.T) {
	for _, name := range []string{"all", "owner", "hidden", "count-only", "unordered"} {
		m, err := ParseMode(name)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if got := m.String(); got != name {
			t.Fatalf("mode %q round-tripped to %q", name, got)
		}
	}
	if _, err := ParseMode("translucent"); err == nil {
		t.Fatal("expected error for unknown mode name")
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "draw", tr.Root(), NoOwner)
	hand := mustCreate(t, tr, "hand", "", tr.Root(), 0)
	top := mustCreate(t, tr, "card", "ace", deck, NoOwner)
	if err := tr.SetAttribute(top, "rank", float64(7)); err != nil {
		t.Fatalf("set-attribute: %v", err)
	}
	held := mustCreate(t, tr, "card", "", hand, 0)
	if err := tr.AddVisibleTo(held, []int{1}); err != nil {
		t.Fatalf("add-visible-to: %v", err)
	}
	gone := mustCreate(t, tr, "card", "", deck, NoOwner)
	if err := tr.Remove(gone); err != nil {
		t.Fatalf("remove: %v", err)
	}

	root, sink := tr.Serialize(), tr.SerializeSink()
	data, err := json.Marshal(struct {
		Root *Node `json:"root"`
		Sink *Node `json:"sink"`
	}{root, sink})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Root *Node `json:"root"`
		Sink *Node `json:"sink"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored, err := Deserialize(tr.Registry(), decoded.Root, decoded.Sink)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if !reflect.DeepEqual(restored.Serialize(), root) {
		t.Fatal("restored tree differs from original")
	}
	if !reflect.DeepEqual(restored.SerializeSink(), sink) {
		t.Fatal("restored sink differs from original")
	}
	// Ids keep advancing past the restored maximum.
	next := mustCreate(t, restored, "card", "", restored.Root(), NoOwner)
	if next.ID() != gone.ID()+1 {
		t.Fatalf("next id after restore = %d, want %d", next.ID(), gone.ID()+1)
	}
	// Inherited visibility survives: the restored held card is still
	// owner-scoped with the explicit grant.
	rheld, ok := restored.Element(held.ID())
	if !ok {
		t.Fatalf("held card #%d missing after restore", held.ID())
	}
	if !restored.VisibleTo(rheld, 1) || restored.VisibleTo(rheld, 2) {
		t.Fatal("visibility grant lost in round trip")
	}
}

func TestDeserialize_Errors(t *testing.T) {
	reg := NewRegistry()
	if _, err := Deserialize(reg, nil, nil); err == nil {
		t.Fatal("expected error for missing nodes")
	}
	root := &Node{Class: RootClass, Children: []*Node{{Class: "ghost", ID: 2}}}
	if _, err := Deserialize(reg, root, &Node{Class: SinkClass, ID: 1}); err == nil {
		t.Fatal("expected error for unregistered class")
	}
	dup := &Node{Class: RootClass, Children: []*Node{
		{Class: SinkClass, ID: 1},
	}}
	if _, err := Deserialize(reg, dup, &Node{Class: SinkClass, ID: 1}); err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestViewFor_MasksHiddenElements(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "draw", tr.Root(), NoOwner)
	mustCreate(t, tr, "card", "secret", deck, NoOwner)

	view := tr.ViewFor(0)
	var deckNode *Node
	for _, c := range view.Children {
		if c.Class == "deck" {
			deckNode = c
		}
	}
	if deckNode == nil {
		t.Fatal("deck missing from view")
	}
	if !deckNode.Masked {
		t.Fatal("hidden deck not masked")
	}
	if deckNode.ID != 0 || deckNode.Name != "" {
		t.Fatalf("masked node leaks identity: id=%d name=%q", deckNode.ID, deckNode.Name)
	}
	if len(deckNode.Children) != 1 || !deckNode.Children[0].Masked {
		t.Fatal("card inside hidden deck not masked")
	}
}

func TestViewFor_CountMode(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
	if err := tr.SetVisibility(deck, Visibility{Mode: ModeCount}); err != nil {
		t.Fatalf("set-visibility: %v", err)
	}
	for i := 0; i < 3; i++ {
		mustCreate(t, tr, "card", "", deck, NoOwner)
	}
	view := tr.ViewFor(0)
	deckNode := view.Children[0]
	if deckNode.Count == nil || *deckNode.Count != 3 {
		t.Fatalf("count-only container count = %v, want 3", deckNode.Count)
	}
	if len(deckNode.Children) != 0 {
		t.Fatal("count-only container leaked children")
	}
}

func TestViewFor_UnorderedMode(t *testing.T) {
	tr := testTree(t)
	deck := mustCreate(t, tr, "deck", "", tr.Root(), NoOwner)
	if err := tr.SetVisibility(deck, Visibility{Mode: ModeUnordered}); err != nil {
		t.Fatalf("set-visibility: %v", err)
	}
	a := mustCreate(t, tr, "card", "a", deck, NoOwner)
	b := mustCreate(t, tr, "card", "b", deck, NoOwner)
	if err := tr.SetOrder(deck, []int{b.ID(), a.ID()}); err != nil {
		t.Fatalf("set-order: %v", err)
	}

	view := tr.ViewFor(0)
	deckNode := view.Children[0]
	if len(deckNode.Children) != 2 {
		t.Fatalf("unordered container children = %d, want 2", len(deckNode.Children))
	}
	// Canonical id order, not actual order.
	if deckNode.Children[0].ID != a.ID() || deckNode.Children[1].ID != b.ID() {
		t.Fatalf("unordered view did not canonicalize order: %d, %d",
			deckNode.Children[0].ID, deckNode.Children[1].ID)
	}
}

func TestViewFor_OwnerSees(t *testing.T) {
	tr := testTree(t)
	hand := mustCreate(t, tr, "hand", "", tr.Root(), 1)
	card := mustCreate(t, tr, "card", "held", hand, 1)

	mine := tr.ViewFor(1)
	handNode := mine.Children[0]
	if handNode.Masked {
		t.Fatal("owner's hand masked in own view")
	}
	if handNode.Children[0].Name != "held" {
		t.Fatal("owner cannot see own card's name")
	}

	theirs := tr.ViewFor(0)
	if !theirs.Children[0].Masked {
		t.Fatal("opponent's hand not masked")
	}
	_ = card
}

func names(cs []*Element) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name()
	}
	return out
}
