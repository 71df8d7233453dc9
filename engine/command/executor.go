package command

import (
	"fmt"

	"github.com/nathoo/boardcore/engine/game"
)

// Result is the outcome of executing one command. Err is nil on
// success; CreatedIDs carries new ids for CREATE and CREATE_MANY.
type Result struct {
	CreatedIDs []int
	Err        error
}

// OK reports whether the command applied.
func (r Result) OK() bool { return r.Err == nil }

// Executor is the single choke point for state mutation. It validates,
// applies, and on success appends the command to the log. Failures are
// returned as values and leave state untouched — each variant checks
// every reference before mutating anything.
type Executor struct {
	game *game.Game
	log  []Command
}

// NewExecutor wires an executor to a game instance.
func NewExecutor(g *game.Game) *Executor {
	return &Executor{game: g}
}

// Game returns the game the executor mutates.
func (x *Executor) Game() *game.Game { return x.game }

// Log returns the ordered list of applied commands. The slice is a copy.
func (x *Executor) Log() []Command {
	out := make([]Command, len(x.log))
	copy(out, x.log)
	return out
}

// AppendLogged re-records a command without applying it. Used when
// restoring a snapshot whose log must be preserved verbatim.
func (x *Executor) AppendLogged(cmds ...Command) {
	x.log = append(x.log, cmds...)
}

// Execute applies one command. It never panics past this boundary.
func (x *Executor) Execute(cmd Command) Result {
	res := x.apply(cmd)
	if res.Err == nil {
		x.log = append(x.log, cmd)
	}
	return res
}

func (x *Executor) apply(cmd Command) Result {
	g := x.game
	switch c := cmd.(type) {
	case Create:
		parent, ok := g.Element(c.Parent)
		if !ok {
			return fail("create %s: unknown parent #%d", c.Class, c.Parent)
		}
		el, err := g.Tree.Create(c.Class, c.Name, parent, c.Owner)
		if err != nil {
			return Result{Err: err}
		}
		return Result{CreatedIDs: []int{el.ID()}}

	case CreateMany:
		if c.Count <= 0 {
			return fail("create-many %s: count must be positive", c.Class)
		}
		parent, ok := g.Element(c.Parent)
		if !ok {
			return fail("create-many %s: unknown parent #%d", c.Class, c.Parent)
		}
		if _, ok := g.Tree.Registry().Lookup(c.Class); !ok {
			return fail("create-many: class %q is not registered", c.Class)
		}
		ids := make([]int, 0, c.Count)
		for i := 0; i < c.Count; i++ {
			el, err := g.Tree.Create(c.Class, "", parent, c.Owner)
			if err != nil {
				return Result{Err: err}
			}
			ids = append(ids, el.ID())
		}
		return Result{CreatedIDs: ids}

	case Move:
		el, ok := g.Element(c.Element)
		if !ok {
			return fail("move: unknown element #%d", c.Element)
		}
		dest, ok := g.Element(c.Dest)
		if !ok {
			return fail("move: unknown destination #%d", c.Dest)
		}
		return Result{Err: g.Tree.Move(el, dest, c.Index)}

	case Remove:
		el, ok := g.Element(c.Element)
		if !ok {
			return fail("remove: unknown element #%d", c.Element)
		}
		return Result{Err: g.Tree.Remove(el)}

	case Shuffle:
		el, ok := g.Element(c.Element)
		if !ok {
			return fail("shuffle: unknown element #%d", c.Element)
		}
		return Result{Err: g.Tree.Shuffle(el, g.RNG)}

	case SetAttribute:
		el, ok := g.Element(c.Element)
		if !ok {
			return fail("set-attribute: unknown element #%d", c.Element)
		}
		return Result{Err: g.Tree.SetAttribute(el, c.Key, c.Value)}

	case SetVisibility:
		el, ok := g.Element(c.Element)
		if !ok {
			return fail("set-visibility: unknown element #%d", c.Element)
		}
		return Result{Err: g.Tree.SetVisibility(el, c.Visibility)}

	case AddVisibleTo:
		el, ok := g.Element(c.Element)
		if !ok {
			return fail("add-visible-to: unknown element #%d", c.Element)
		}
		for _, p := range c.Players {
			if _, ok := g.Players.Player(p); !ok {
				return fail("add-visible-to: no player at position %d", p)
			}
		}
		return Result{Err: g.Tree.AddVisibleTo(el, c.Players)}

	case SetCurrentPlayer:
		return Result{Err: g.Players.SetCurrent(c.Player)}

	case Message:
		g.Messages = append(g.Messages, c.Text)
		return Result{}

	case StartGame:
		if g.Started {
			return fail("start-game: game already started")
		}
		g.Started = true
		return Result{}

	case EndGame:
		if g.Ended {
			return fail("end-game: game already ended")
		}
		for _, w := range c.Winners {
			if _, ok := g.Players.Player(w); !ok {
				return fail("end-game: no player at position %d", w)
			}
		}
		g.Ended = true
		g.Winners = append([]int(nil), c.Winners...)
		return Result{}

	case SetOrder:
		el, ok := g.Element(c.Element)
		if !ok {
			return fail("set-order: unknown element #%d", c.Element)
		}
		return Result{Err: g.Tree.SetOrder(el, c.Order)}
	}
	// Command is sealed; a new variant must be added to the switch above.
	return fail("unhandled command type %q", cmd.Type())
}

func fail(format string, args ...any) Result {
	return Result{Err: fmt.Errorf("command: "+format, args...)}
}
