// Package game holds the mutable per-instance state every other engine
// package operates on: the player roster, the element tree, the seeded
// RNG, flow variables, and the message log. Mutation is expected to go
// through the command executor; this package only provides the state
// and its invariant-preserving primitives.
package game

import (
	"fmt"

	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/engine/rng"
	"github.com/nathoo/boardcore/types"
)

// Game is the state hub for one game instance.
type Game struct {
	Config  types.GameConfig
	Players *Roster
	Tree    *element.Tree
	RNG     *rng.RNG

	// Vars are the flow variables: bindings committed by execute steps
	// and iteration nodes. Snapshot together with the flow position.
	Vars map[string]any

	// Messages accumulates MESSAGE command output in order.
	Messages []string

	Started bool
	Ended   bool
	Winners []int
}

// New builds a fresh game from configuration. The registry is created
// per instance; callers register classes on g.Tree.Registry().
func New(cfg types.GameConfig) (*Game, error) {
	if len(cfg.Players) == 0 {
		return nil, fmt.Errorf("game: at least one player is required")
	}
	roster := NewRoster(cfg.Players)
	return &Game{
		Config:  cfg,
		Players: roster,
		Tree:    element.NewTree(element.NewRegistry()),
		RNG:     rng.New(cfg.Seed),
		Vars:    map[string]any{},
	}, nil
}

// Var returns a flow variable.
func (g *Game) Var(name string) (any, bool) {
	v, ok := g.Vars[name]
	return v, ok
}

// SetVar commits a flow variable.
func (g *Game) SetVar(name string, value any) {
	g.Vars[name] = value
}

// Element resolves an element id against the tree.
func (g *Game) Element(id int) (*element.Element, bool) {
	return g.Tree.Element(id)
}

// First returns the first in-play element of the given class, walking
// depth-first in child order, or nil.
func (g *Game) First(class string) *element.Element {
	var found *element.Element
	g.Tree.Walk(g.Tree.Root(), func(e *element.Element) bool {
		if found != nil {
			return false
		}
		if e.Class() == class {
			found = e
			return false
		}
		return true
	})
	return found
}

// Named returns the first in-play element with the given name, or nil.
func (g *Game) Named(name string) *element.Element {
	var found *element.Element
	g.Tree.Walk(g.Tree.Root(), func(e *element.Element) bool {
		if found != nil {
			return false
		}
		if e.Name() == name {
			found = e
			return false
		}
		return true
	})
	return found
}
