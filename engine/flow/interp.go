package flow

import (
	"fmt"

	"github.com/nathoo/boardcore/engine/action"
	"github.com/nathoo/boardcore/engine/command"
	"github.com/nathoo/boardcore/engine/game"
	"github.com/nathoo/boardcore/types"
)

// maxRunIterations is the global ceiling for one run call. Together
// with per-loop MaxIterations it converts runaway flow definitions into
// reported faults instead of hangs.
const maxRunIterations = 10000

// ErrCeiling is returned when a single run call exceeds the global
// iteration ceiling — an authoring bug in the flow definition, not a
// player-triggerable condition.
var ErrCeiling = fmt.Errorf("flow: run exceeded %d iterations", maxRunIterations)

// Interpreter executes a static flow-node tree against a game instance.
type Interpreter struct {
	root    Node
	actions *action.Set
	game    *game.Game
	exec    *command.Executor

	stack    []*frame
	current  int // active player position, -1 when unbound
	waiting  bool
	complete bool
	pending  *types.PendingAction

	isComplete func(*Ctx) bool
}

// New builds an interpreter over a static node tree. isComplete may be
// nil; the flow then completes only when the stack empties or the game
// is ended by command.
func New(root Node, set *action.Set, g *game.Game, exec *command.Executor, isComplete func(*Ctx) bool) *Interpreter {
	return &Interpreter{
		root:       root,
		actions:    set,
		game:       g,
		exec:       exec,
		current:    -1,
		isComplete: isComplete,
	}
}

// Actions returns the interpreter's action set.
func (it *Interpreter) Actions() *action.Set { return it.actions }

// Complete reports whether the flow has finished.
func (it *Interpreter) Complete() bool { return it.complete }

// Awaiting reports whether the flow is suspended for player input.
func (it *Interpreter) Awaiting() bool { return it.waiting }

// CurrentPlayer returns the active player binding, -1 when unbound.
func (it *Interpreter) CurrentPlayer() int { return it.current }

func (it *Interpreter) ctx() *Ctx {
	c := &Ctx{Game: it.game, Exec: it.exec}
	if it.current >= 0 {
		c.Player = playerAt(it.game, it.current)
	}
	return c
}

// Run drives the interpreter until it suspends for input, completes, or
// faults. The first call pushes the root frame; later calls continue
// from wherever the flow stands.
func (it *Interpreter) Run() (types.FlowSnapshot, error) {
	if it.stack == nil && !it.complete {
		it.stack = []*frame{newFrame(it.root)}
	}
	for i := 0; ; i++ {
		if i >= maxRunIterations {
			return it.Snapshot(), ErrCeiling
		}
		if it.game.Ended || (it.isComplete != nil && it.isComplete(it.ctx())) {
			it.complete = true
		}
		if it.complete {
			break
		}
		if len(it.stack) == 0 {
			it.complete = true
			break
		}
		if it.waiting {
			break
		}
		top := it.stack[len(it.stack)-1]
		if top.completed {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		if err := it.step(top); err != nil {
			return it.Snapshot(), err
		}
	}
	return it.Snapshot(), nil
}

// step executes the top frame's node once. Suspension points set
// waiting instead of pushing children.
func (it *Interpreter) step(f *frame) error {
	switch n := f.node.(type) {
	case Sequence:
		st := f.state.(*seqState)
		if st.next >= len(n.Steps) {
			f.completed = true
			return nil
		}
		child := n.Steps[st.next]
		st.next++
		it.push(child)

	case Loop:
		st := f.state.(*loopState)
		if n.MaxIterations > 0 && st.iteration >= n.MaxIterations {
			f.completed = true
			return nil
		}
		if n.While != nil && !n.While(it.ctx()) {
			f.completed = true
			return nil
		}
		st.iteration++
		it.push(n.Do)

	case EachPlayer:
		st := f.state.(*eachPlayerState)
		if !st.built {
			st.order = playerOrder(n, it.ctx())
			st.built = true
		}
		if st.cursor >= len(st.order) {
			f.completed = true
			return nil
		}
		pos := st.order[st.cursor]
		st.cursor++
		it.current = pos
		it.game.SetVar(bindingName(n.As, "player"), pos)
		it.push(n.Do)

	case ForEach:
		st := f.state.(*forEachState)
		if !st.built {
			if n.Collection != nil {
				st.items = n.Collection(it.ctx())
			}
			st.built = true
		}
		if st.index >= len(st.items) {
			f.completed = true
			return nil
		}
		item := st.items[st.index]
		st.index++
		it.game.SetVar(bindingName(n.As, "item"), item)
		it.push(n.Do)

	case ActionStep:
		st := f.state.(*actionState)
		if !st.started {
			st.player = it.stepPlayer(n.Player)
			st.started = true
			if n.SkipIf != nil && n.SkipIf(it.ctx()) {
				f.completed = true
				return nil
			}
		}
		p := playerAt(it.game, st.player)
		if p == nil {
			return fmt.Errorf("flow: action step has no player at position %d", st.player)
		}
		avail := it.actions.Available(it.game, p, n.Actions)
		if len(avail) == 0 {
			f.completed = true
			return nil
		}
		it.waiting = true

	case SimultaneousActionStep:
		st := f.state.(*simulState)
		if !st.built {
			if n.Players != nil {
				st.players = n.Players(it.ctx())
			} else {
				for _, p := range it.game.Players.All() {
					st.players = append(st.players, p.Position())
				}
			}
			st.done = map[int]bool{}
			st.built = true
		}
		if it.simulFinished(n, st) {
			f.completed = true
			return nil
		}
		it.waiting = true

	case Switch:
		st := f.state.(*branchState)
		if st.taken {
			f.completed = true
			return nil
		}
		st.taken = true
		var v any
		if n.On != nil {
			v = n.On(it.ctx())
		}
		st.child = matchCase(n, v)
		if st.child < 0 {
			f.completed = true
			return nil
		}
		it.push(branchChild(n, st.child))

	case If:
		st := f.state.(*branchState)
		if st.taken {
			f.completed = true
			return nil
		}
		st.taken = true
		st.child = -1
		if n.Condition != nil && n.Condition(it.ctx()) {
			if n.Then != nil {
				st.child = 0
				it.push(n.Then)
			}
		} else if n.Else != nil {
			st.child = 1
			it.push(n.Else)
		}
		if st.child < 0 {
			f.completed = true
		}

	case Execute:
		f.completed = true
		if n.Fn != nil {
			if err := n.Fn(it.ctx()); err != nil {
				return fmt.Errorf("flow: execute step: %w", err)
			}
		}

	default:
		// Node is sealed; a new kind must be handled above.
		return fmt.Errorf("flow: unhandled node kind %T", f.node)
	}
	return nil
}

func (it *Interpreter) push(n Node) {
	it.stack = append(it.stack, newFrame(n))
}

// stepPlayer resolves an action step's designated player: the node's
// own selector, else the flow's active binding, else the roster's
// current flag.
func (it *Interpreter) stepPlayer(selector func(*Ctx) int) int {
	if selector != nil {
		return selector(it.ctx())
	}
	if it.current >= 0 {
		return it.current
	}
	if p := it.game.Players.Current(); p != nil {
		return p.Position()
	}
	return 0
}

func (it *Interpreter) simulFinished(n SimultaneousActionStep, st *simulState) bool {
	if n.AllDone != nil && n.AllDone(it.ctx()) {
		return true
	}
	for _, pos := range st.players {
		if !st.done[pos] {
			return false
		}
	}
	return true
}

// Resume drives a validated action through the selection system and,
// when it succeeds, clears the waiting flag and continues the run loop.
// A failed result leaves the engine in the same waiting state so the
// caller can retry with corrected args — no state was mutated.
func (it *Interpreter) Resume(inv types.ActionInvocation) (types.FlowSnapshot, types.ActionResult, error) {
	if !it.waiting || len(it.stack) == 0 {
		return it.Snapshot(), types.ActionResult{OK: false, Error: "flow: not awaiting input"}, nil
	}
	top := it.stack[len(it.stack)-1]

	switch n := top.node.(type) {
	case ActionStep:
		st := top.state.(*actionState)
		if inv.Player != st.player {
			return it.Snapshot(), types.ActionResult{OK: false, Error: fmt.Sprintf("flow: waiting on player %d, got %d", st.player, inv.Player)}, nil
		}
		result := it.runAction(n.Actions, st.player, inv)
		if !result.OK {
			return it.Snapshot(), result, nil
		}
		if it.pending == nil {
			if n.RepeatUntil == nil || n.RepeatUntil(it.ctx()) {
				top.completed = true
			}
			it.waiting = false
		}
		snap, err := it.Run()
		return snap, result, err

	case SimultaneousActionStep:
		st := top.state.(*simulState)
		if !containsPos(st.players, inv.Player) {
			return it.Snapshot(), types.ActionResult{OK: false, Error: fmt.Sprintf("flow: player %d is not part of this step", inv.Player)}, nil
		}
		if st.done[inv.Player] {
			return it.Snapshot(), types.ActionResult{OK: false, Error: fmt.Sprintf("flow: player %d has already completed this step", inv.Player)}, nil
		}
		result := it.runAction(n.Actions, inv.Player, inv)
		if !result.OK {
			return it.Snapshot(), result, nil
		}
		if it.pending == nil {
			if n.PlayerDone == nil || n.PlayerDone(it.ctx(), inv.Player) {
				st.done[inv.Player] = true
			}
			if it.simulFinished(n, st) {
				top.completed = true
			}
			it.waiting = false
		}
		snap, err := it.Run()
		return snap, result, err
	}

	return it.Snapshot(), types.ActionResult{OK: false, Error: "flow: top frame does not accept input"}, nil
}

// runAction validates the invocation against the step's declared subset
// and delegates to the action selection system, threading any pending
// repeating-selection state.
func (it *Interpreter) runAction(declared []string, playerPos int, inv types.ActionInvocation) types.ActionResult {
	if !containsName(declared, inv.Name) {
		return types.ActionResult{OK: false, Error: fmt.Sprintf("flow: action %q is not offered here", inv.Name)}
	}
	def, ok := it.actions.Get(inv.Name)
	if !ok {
		return types.ActionResult{OK: false, Error: fmt.Sprintf("flow: unknown action %q", inv.Name)}
	}
	p := playerAt(it.game, playerPos)
	if p == nil {
		return types.ActionResult{OK: false, Error: fmt.Sprintf("flow: no player at position %d", playerPos)}
	}

	pending := it.pending
	if pending != nil && (pending.Action != inv.Name || pending.Player != inv.Player) {
		return types.ActionResult{OK: false, Error: fmt.Sprintf("flow: action %q is pending for player %d", pending.Action, pending.Player)}
	}

	result, pendingOut := action.Advance(it.game, it.exec, def, p, pending, inv.Args)
	if result.OK {
		it.pending = pendingOut
	}
	return result
}

// Snapshot describes the flow's externally visible state after a run or
// resume call.
func (it *Interpreter) Snapshot() types.FlowSnapshot {
	s := types.FlowSnapshot{
		Complete:      it.complete,
		AwaitingInput: it.waiting,
		CurrentPlayer: -1,
		Pending:       it.pending,
		Messages:      append([]string(nil), it.game.Messages...),
	}
	if !it.waiting || len(it.stack) == 0 {
		return s
	}
	top := it.stack[len(it.stack)-1]
	switch n := top.node.(type) {
	case ActionStep:
		st := top.state.(*actionState)
		s.CurrentPlayer = st.player
		s.Prompt = n.Prompt
		if p := playerAt(it.game, st.player); p != nil {
			s.AvailableActions = it.actions.Available(it.game, p, n.Actions)
		}
	case SimultaneousActionStep:
		st := top.state.(*simulState)
		for _, pos := range st.players {
			entry := types.AwaitingPlayer{Player: pos, Completed: st.done[pos]}
			if !entry.Completed {
				if p := playerAt(it.game, pos); p != nil {
					entry.AvailableActions = it.actions.Available(it.game, p, n.Actions)
				}
			}
			s.AwaitingPlayers = append(s.AwaitingPlayers, entry)
		}
	}
	return s
}

func bindingName(as, def string) string {
	if as != "" {
		return as
	}
	return def
}

func branchChild(n Switch, idx int) Node {
	if idx == len(n.Cases) {
		return n.Default
	}
	return n.Cases[idx].Do
}

func containsPos(s []int, p int) bool {
	for _, v := range s {
		if v == p {
			return true
		}
	}
	return false
}

func containsName(s []string, n string) bool {
	for _, v := range s {
		if v == n {
			return true
		}
	}
	return false
}
