package element

import (
	"fmt"
	"sort"
)

// Node is the recursive serialized form of an element. Visibility is
// present only when explicitly set, so inherited values re-inherit
// after a round trip. Count and Masked appear only in per-player views.
type Node struct {
	Class      string         `json:"class"`
	ID         int            `json:"id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Owner      *int           `json:"owner,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Visibility *Visibility    `json:"visibility,omitempty"`
	Children   []*Node        `json:"children,omitempty"`
	Count      *int           `json:"count,omitempty"`
	Masked     bool           `json:"masked,omitempty"`
}

// Serialize emits the full, trusted form of the in-play tree. Replay
// equality is defined over this form (plus the sink).
func (t *Tree) Serialize() *Node {
	return t.serializeNode(t.root)
}

// SerializeSink emits the full form of the removal sink.
func (t *Tree) SerializeSink() *Node {
	return t.serializeNode(t.sink)
}

func (t *Tree) serializeNode(e *Element) *Node {
	n := &Node{
		Class: e.class,
		ID:    e.id,
		Name:  e.name,
	}
	if e.owner != NoOwner {
		o := e.owner
		n.Owner = &o
	}
	if len(e.attrs) > 0 {
		n.Attributes = e.Attrs()
	}
	if e.vis.Explicit {
		v := e.vis
		n.Visibility = &v
	}
	for _, c := range e.children {
		n.Children = append(n.Children, t.serializeNode(c))
	}
	return n
}

// ViewFor renders the tree as the given player is allowed to see it.
// Elements whose identity is hidden appear masked (class only);
// count-only containers expose a child count instead of children;
// unordered containers list children in canonical id order so the
// actual order stays secret.
func (t *Tree) ViewFor(player int) *Node {
	return t.viewNode(t.root, player)
}

func (t *Tree) viewNode(e *Element, player int) *Node {
	n := &Node{Class: e.class}
	if t.VisibleTo(e, player) {
		n.ID = e.id
		n.Name = e.name
		if e.owner != NoOwner {
			o := e.owner
			n.Owner = &o
		}
		if len(e.attrs) > 0 {
			n.Attributes = e.Attrs()
		}
	} else {
		n.Masked = true
	}

	switch t.Effective(e).Mode {
	case ModeCount:
		c := len(e.children)
		n.Count = &c
	case ModeUnordered:
		ordered := e.Children()
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })
		for _, c := range ordered {
			n.Children = append(n.Children, t.viewNode(c, player))
		}
	default:
		for _, c := range e.children {
			n.Children = append(n.Children, t.viewNode(c, player))
		}
	}
	return n
}

// Deserialize rebuilds a tree from its full serialized form. Every
// class name must already be registered in reg; the registry travels
// with the game instance, not the process.
func Deserialize(reg *Registry, root, sink *Node) (*Tree, error) {
	if root == nil || sink == nil {
		return nil, fmt.Errorf("element: deserialize requires root and sink nodes")
	}
	t := &Tree{registry: reg, byID: map[int]*Element{}}

	var err error
	t.root, err = t.restoreNode(root, nil)
	if err != nil {
		return nil, err
	}
	t.sink, err = t.restoreNode(sink, nil)
	if err != nil {
		return nil, err
	}
	maxID := 0
	for id := range t.byID {
		if id > maxID {
			maxID = id
		}
	}
	t.nextID = maxID + 1
	return t, nil
}

func (t *Tree) restoreNode(n *Node, parent *Element) (*Element, error) {
	c, ok := t.registry.Lookup(n.Class)
	if !ok {
		return nil, fmt.Errorf("element: deserialize: class %q is not registered", n.Class)
	}
	if _, dup := t.byID[n.ID]; dup {
		return nil, fmt.Errorf("element: deserialize: duplicate id %d", n.ID)
	}
	e := &Element{
		id:    n.ID,
		class: n.Class,
		kind:  c.Kind,
		name:  n.Name,
		owner: NoOwner,
		attrs: map[string]any{},
	}
	if n.Owner != nil {
		e.owner = *n.Owner
	}
	for k, v := range n.Attributes {
		e.attrs[k] = copyValue(v)
	}
	if n.Visibility != nil {
		v := *n.Visibility
		v.Explicit = true
		e.vis = v
	}
	t.byID[e.id] = e
	e.parent = parent
	for _, cn := range n.Children {
		child, err := t.restoreNode(cn, e)
		if err != nil {
			return nil, err
		}
		e.children = append(e.children, child)
	}
	return e, nil
}
