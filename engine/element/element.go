// Package element implements the hierarchical ownership tree for game
// pieces and spaces, with per-player visibility resolution. Every
// element has exactly one parent; moving an element atomically detaches
// it from the old parent and attaches it to the new one.
package element

import (
	"fmt"

	"github.com/nathoo/boardcore/engine/rng"
)

// Kind distinguishes containers from movable pieces.
type Kind int

const (
	// KindSpace is a container zone (board, deck, hand, discard).
	KindSpace Kind = iota
	// KindPiece is a movable game piece (card, token, pawn).
	KindPiece
)

func (k Kind) String() string {
	if k == KindPiece {
		return "piece"
	}
	return "space"
}

// NoOwner marks an element not owned by any player.
const NoOwner = -1

// Element is one node in the ownership tree. All mutation goes through
// Tree methods so structural invariants hold at every step.
type Element struct {
	id       int
	class    string
	kind     Kind
	name     string
	owner    int
	parent   *Element
	children []*Element
	attrs    map[string]any
	vis      Visibility
}

// ID returns the element's immutable per-game id.
func (e *Element) ID() int { return e.id }

// Class returns the registered class name the element was created from.
func (e *Element) Class() string { return e.class }

// Kind reports whether the element is a space or a piece.
func (e *Element) Kind() Kind { return e.kind }

// Name returns the optional display name.
func (e *Element) Name() string { return e.name }

// Owner returns the owning player's position, or NoOwner.
func (e *Element) Owner() int { return e.owner }

// Parent returns the current parent, or nil for the root and sink.
func (e *Element) Parent() *Element { return e.parent }

// Children returns the ordered children. The returned slice is a copy;
// mutating it does not affect the tree.
func (e *Element) Children() []*Element {
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// Attr returns one attribute value and whether it is set.
func (e *Element) Attr(key string) (any, bool) {
	v, ok := e.attrs[key]
	return v, ok
}

// Attrs returns a shallow copy of the attribute map.
func (e *Element) Attrs() map[string]any {
	out := make(map[string]any, len(e.attrs))
	for k, v := range e.attrs {
		out[k] = v
	}
	return out
}

// Contains reports whether other is a descendant of e (or e itself).
func (e *Element) Contains(other *Element) bool {
	for n := other; n != nil; n = n.parent {
		if n == e {
			return true
		}
	}
	return false
}

// Built-in class names for the two structural containers every game has.
const (
	RootClass = "table"
	SinkClass = "removed"
)

// Tree is the per-game element tree. Ids are assigned from a monotonic
// sequence at creation and never reused; removed elements live on in
// the sink so historical ids stay resolvable.
type Tree struct {
	registry *Registry
	root     *Element
	sink     *Element
	nextID   int
	byID     map[int]*Element
}

// NewTree creates an empty tree with its root table and removal sink.
// The root is id 0 and the sink id 1; game elements start at id 2.
func NewTree(reg *Registry) *Tree {
	t := &Tree{
		registry: reg,
		byID:     map[int]*Element{},
	}
	t.root = t.newElement(RootClass, KindSpace, "", NoOwner)
	t.root.vis = Visibility{Mode: ModeAll, Explicit: true}
	t.sink = t.newElement(SinkClass, KindSpace, "", NoOwner)
	t.sink.vis = Visibility{Mode: ModeHidden, Explicit: true}
	return t
}

// Registry returns the tree's class registry.
func (t *Tree) Registry() *Registry { return t.registry }

// Root returns the table root every in-play element descends from.
func (t *Tree) Root() *Element { return t.root }

// Sink returns the container removed elements are relocated into.
func (t *Tree) Sink() *Element { return t.sink }

// Element resolves an id to a live element.
func (t *Tree) Element(id int) (*Element, bool) {
	e, ok := t.byID[id]
	return e, ok
}

func (t *Tree) newElement(class string, kind Kind, name string, owner int) *Element {
	e := &Element{
		id:    t.nextID,
		class: class,
		kind:  kind,
		name:  name,
		owner: owner,
		attrs: map[string]any{},
	}
	t.nextID++
	t.byID[e.id] = e
	return e
}

// Create instantiates a registered class under parent. The class's
// default attributes are copied onto the new element; a class-level
// visibility default becomes the element's explicit visibility.
func (t *Tree) Create(class, name string, parent *Element, owner int) (*Element, error) {
	c, ok := t.registry.Lookup(class)
	if !ok {
		return nil, fmt.Errorf("element: class %q is not registered", class)
	}
	if parent == nil {
		return nil, fmt.Errorf("element: create %q: parent is required", class)
	}
	if err := checkContainment(parent, c.Kind); err != nil {
		return nil, err
	}
	e := t.newElement(class, c.Kind, name, owner)
	for k, v := range c.Attributes {
		e.attrs[k] = copyValue(v)
	}
	if c.Visibility != nil {
		v := *c.Visibility
		v.Explicit = true
		e.vis = v
	}
	e.parent = parent
	parent.children = append(parent.children, e)
	return e, nil
}

// checkContainment enforces the structural invariant that a piece may
// not directly contain a space.
func checkContainment(parent *Element, childKind Kind) error {
	if parent.kind == KindPiece && childKind == KindSpace {
		return fmt.Errorf("element: a piece (%q #%d) cannot contain a space", parent.class, parent.id)
	}
	return nil
}

// Move detaches el from its parent and attaches it to dest at the given
// child index (-1 appends). Detach and attach are one atomic step: on
// any error the tree is untouched.
func (t *Tree) Move(el, dest *Element, index int) error {
	if el == nil || dest == nil {
		return fmt.Errorf("element: move requires element and destination")
	}
	if el == t.root || el == t.sink {
		return fmt.Errorf("element: cannot move the %s container", el.class)
	}
	if el.Contains(dest) {
		return fmt.Errorf("element: moving #%d into its own descendant #%d", el.id, dest.id)
	}
	if err := checkContainment(dest, el.kind); err != nil {
		return err
	}
	if index < -1 || index > len(dest.children) {
		return fmt.Errorf("element: move index %d out of range for #%d", index, dest.id)
	}
	// Moving within the same parent: account for the slot freed by detach.
	if el.parent == dest && index > indexOf(dest.children, el) {
		index--
	}
	detach(el)
	if index == -1 || index >= len(dest.children) {
		dest.children = append(dest.children, el)
	} else {
		dest.children = append(dest.children, nil)
		copy(dest.children[index+1:], dest.children[index:])
		dest.children[index] = el
	}
	el.parent = dest
	return nil
}

// Remove relocates el into the sink. The id stays resolvable, which
// replay and historical lookups depend on.
func (t *Tree) Remove(el *Element) error {
	return t.Move(el, t.sink, -1)
}

// SetOrder reorders el's direct children. order must list every current
// child id exactly once.
func (t *Tree) SetOrder(el *Element, order []int) error {
	if el == nil {
		return fmt.Errorf("element: set-order requires an element")
	}
	if len(order) != len(el.children) {
		return fmt.Errorf("element: set-order on #%d: got %d ids, have %d children", el.id, len(order), len(el.children))
	}
	current := map[int]*Element{}
	for _, c := range el.children {
		current[c.id] = c
	}
	next := make([]*Element, 0, len(order))
	for _, id := range order {
		c, ok := current[id]
		if !ok {
			return fmt.Errorf("element: set-order on #%d: #%d is not a child or listed twice", el.id, id)
		}
		delete(current, id)
		next = append(next, c)
	}
	el.children = next
	return nil
}

// Shuffle performs a Fisher-Yates pass over el's direct children using
// the game's seeded RNG. Never an unseeded source.
func (t *Tree) Shuffle(el *Element, r *rng.RNG) error {
	if el == nil {
		return fmt.Errorf("element: shuffle requires an element")
	}
	cs := el.children
	for i := len(cs) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		cs[i], cs[j] = cs[j], cs[i]
	}
	return nil
}

// SetAttribute sets one attribute on el.
func (t *Tree) SetAttribute(el *Element, key string, value any) error {
	if el == nil {
		return fmt.Errorf("element: set-attribute requires an element")
	}
	if key == "" {
		return fmt.Errorf("element: set-attribute on #%d: key is required", el.id)
	}
	el.attrs[key] = value
	return nil
}

// SetName sets the element's display name.
func (t *Tree) SetName(el *Element, name string) {
	el.name = name
}

func detach(el *Element) {
	p := el.parent
	if p == nil {
		return
	}
	i := indexOf(p.children, el)
	if i >= 0 {
		p.children = append(p.children[:i], p.children[i+1:]...)
	}
	el.parent = nil
}

func indexOf(cs []*Element, el *Element) int {
	for i, c := range cs {
		if c == el {
			return i
		}
	}
	return -1
}

// copyValue deep-copies the plain JSON-like values class defaults are
// made of, so instances never alias class state.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, x := range val {
			m[k] = copyValue(x)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, x := range val {
			s[i] = copyValue(x)
		}
		return s
	default:
		return val
	}
}

// Walk visits el and all descendants depth-first in child order.
func (t *Tree) Walk(el *Element, fn func(*Element) bool) {
	if el == nil || !fn(el) {
		return
	}
	for _, c := range el.children {
		t.Walk(c, fn)
	}
}

// All returns every in-play element (descendants of root, excluding the
// root itself) in depth-first child order. Sink contents are excluded.
func (t *Tree) All() []*Element {
	var out []*Element
	t.Walk(t.root, func(e *Element) bool {
		if e != t.root {
			out = append(out, e)
		}
		return true
	})
	return out
}
