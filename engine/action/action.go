// Package action implements the declarative action selection system:
// each action declares an ordered pipeline of typed selections, and
// externally supplied values are validated against freshly recomputed
// legal-choice sets before the action's effect may run.
package action

import (
	"sort"

	"github.com/nathoo/boardcore/engine/command"
	"github.com/nathoo/boardcore/engine/game"
)

// Args carries the values resolved so far for one action attempt,
// keyed by selection name. Player and element selections hold live
// objects after resolution; before resolution values are primitives.
type Args map[string]any

// Context is what an action's Execute callback runs with. All mutation
// goes through Exec so the command log stays the source of truth.
type Context struct {
	Game   *game.Game
	Exec   *command.Executor
	Player *game.Player
	Args   Args
}

// Def describes one player action. Every callback must be a pure
// function of (game, player, args) plus the game's seeded RNG.
type Def struct {
	Name   string
	Prompt string

	// Condition gates availability. Nil means always available.
	Condition func(g *game.Game, p *game.Player, args Args) bool

	// Selections is the ordered input pipeline the player resolves.
	Selections []Selection

	// Execute applies the action's effect. The returned payload is
	// merged into the success result. Panics are caught at the
	// execution boundary and become failure results.
	Execute func(ctx *Context) (map[string]any, error)
}

// Available reports whether the action is currently offered to p.
func (d *Def) Available(g *game.Game, p *game.Player) bool {
	if d.Condition == nil {
		return true
	}
	return d.Condition(g, p, Args{})
}

// Selection resolves a declared selection by name.
func (d *Def) Selection(name string) (Selection, bool) {
	for _, s := range d.Selections {
		if s.Name == name {
			return s, true
		}
	}
	return Selection{}, false
}

// Set is the registry of actions a game defines.
type Set struct {
	defs   []*Def
	byName map[string]*Def
}

// NewSet builds a set. Later defs with duplicate names are ignored.
func NewSet(defs ...*Def) *Set {
	s := &Set{byName: map[string]*Def{}}
	for _, d := range defs {
		if _, exists := s.byName[d.Name]; exists {
			continue
		}
		s.defs = append(s.defs, d)
		s.byName[d.Name] = d
	}
	return s
}

// Get resolves an action by name.
func (s *Set) Get(name string) (*Def, bool) {
	d, ok := s.byName[name]
	return d, ok
}

// Names returns all action names in declaration order.
func (s *Set) Names() []string {
	out := make([]string, len(s.defs))
	for i, d := range s.defs {
		out[i] = d.Name
	}
	return out
}

// Available returns the sorted names of actions currently offered to p,
// optionally restricted to the declared subset.
func (s *Set) Available(g *game.Game, p *game.Player, subset []string) []string {
	allowed := map[string]bool{}
	if subset == nil {
		for _, d := range s.defs {
			allowed[d.Name] = true
		}
	} else {
		for _, n := range subset {
			allowed[n] = true
		}
	}
	var out []string
	for _, d := range s.defs {
		if allowed[d.Name] && d.Available(g, p) {
			out = append(out, d.Name)
		}
	}
	sort.Strings(out)
	return out
}
