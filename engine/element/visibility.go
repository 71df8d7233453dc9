package element

import "fmt"

// Mode describes how an element renders to players other than through
// explicit per-player grants.
type Mode int

const (
	// ModeAll renders the element fully to every player.
	ModeAll Mode = iota
	// ModeOwner renders fully to the owning player only.
	ModeOwner
	// ModeHidden hides the element's identity from everyone.
	ModeHidden
	// ModeCount hides children identities but exposes their count.
	ModeCount
	// ModeUnordered exposes children identities but not their order.
	ModeUnordered
)

var modeNames = map[Mode]string{
	ModeAll:       "all",
	ModeOwner:     "owner",
	ModeHidden:    "hidden",
	ModeCount:     "count-only",
	ModeUnordered: "unordered",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// MarshalText encodes the mode by name for wire formats.
func (m Mode) MarshalText() ([]byte, error) {
	s, ok := modeNames[m]
	if !ok {
		return nil, fmt.Errorf("element: unknown visibility mode %d", int(m))
	}
	return []byte(s), nil
}

// UnmarshalText decodes a mode from its wire name.
func (m *Mode) UnmarshalText(b []byte) error {
	for mode, name := range modeNames {
		if name == string(b) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("element: unknown visibility mode %q", string(b))
}

// ParseMode converts a wire name to a Mode.
func ParseMode(s string) (Mode, error) {
	var m Mode
	if err := m.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return m, nil
}

// Visibility is the per-element visibility descriptor. Explicit marks a
// value set directly on the element; inherited values stay implicit so
// re-inheritance remains correct after re-parenting.
type Visibility struct {
	Mode          Mode  `json:"mode"`
	AddPlayers    []int `json:"add_players,omitempty"`
	ExceptPlayers []int `json:"except_players,omitempty"`
	Explicit      bool  `json:"explicit,omitempty"`
}

// Effective resolves el's visibility: the element's own explicit value,
// or the nearest ancestor space that declares one, or all-visible.
// Inherited values are returned with Explicit cleared.
func (t *Tree) Effective(el *Element) Visibility {
	if el.vis.Explicit {
		return el.vis
	}
	for a := el.parent; a != nil; a = a.parent {
		if a.kind == KindSpace && a.vis.Explicit {
			v := a.vis
			v.Explicit = false
			return v
		}
	}
	return Visibility{Mode: ModeAll}
}

// VisibleTo reports whether player may see el's identity (class, name,
// attributes). Count-only and unordered modes hide or reveal identity
// the same way hidden and all do; they differ in how a container's
// children render, which ViewFor handles.
func (t *Tree) VisibleTo(el *Element, player int) bool {
	v := t.Effective(el)
	for _, p := range v.ExceptPlayers {
		if p == player {
			return false
		}
	}
	for _, p := range v.AddPlayers {
		if p == player {
			return true
		}
	}
	switch v.Mode {
	case ModeAll, ModeUnordered:
		return true
	case ModeOwner:
		return el.owner == player
	case ModeHidden, ModeCount:
		return false
	}
	return false
}

// SetVisibility sets an explicit visibility descriptor on el.
func (t *Tree) SetVisibility(el *Element, v Visibility) error {
	if el == nil {
		return fmt.Errorf("element: set-visibility requires an element")
	}
	v.Explicit = true
	el.vis = v
	return nil
}

// AddVisibleTo grants identity visibility to players, materializing the
// inherited descriptor as explicit first so the grant sticks to this
// element rather than its ancestor.
func (t *Tree) AddVisibleTo(el *Element, players []int) error {
	if el == nil {
		return fmt.Errorf("element: add-visible-to requires an element")
	}
	v := t.Effective(el)
	v.Explicit = true
	for _, p := range players {
		if !containsInt(v.AddPlayers, p) {
			v.AddPlayers = append(v.AddPlayers, p)
		}
	}
	el.vis = v
	return nil
}

// VisibilityOf returns el's own descriptor, explicit or not.
func (t *Tree) VisibilityOf(el *Element) Visibility {
	return el.vis
}

func containsInt(s []int, n int) bool {
	for _, v := range s {
		if v == n {
			return true
		}
	}
	return false
}
