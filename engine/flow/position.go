package flow

import (
	"fmt"

	"github.com/nathoo/boardcore/types"
)

// Position serializes the interpreter's stack into indices over the
// static node tree. The frames are recorded outermost first; completed
// frames never appear because they are popped before any suspension.
func (it *Interpreter) Position() types.Position {
	pos := types.Position{
		CurrentPlayer: it.current,
		Variables:     map[string]any{},
	}
	for k, v := range it.game.Vars {
		pos.Variables[k] = v
	}
	for _, f := range it.stack {
		if f.completed {
			continue
		}
		pos.Frames = append(pos.Frames, framePos(f))
	}
	return pos
}

func framePos(f *frame) types.FramePos {
	switch st := f.state.(type) {
	case *seqState:
		return types.FramePos{Step: st.next}
	case *loopState:
		return types.FramePos{Iteration: st.iteration}
	case *eachPlayerState:
		return types.FramePos{Cursor: st.cursor}
	case *forEachState:
		return types.FramePos{Cursor: st.index}
	case *actionState:
		return types.FramePos{Taken: st.started, Cursor: st.player}
	case *simulState:
		fp := types.FramePos{}
		for _, p := range st.players {
			if st.done[p] {
				fp.Done = append(fp.Done, p)
			}
		}
		return fp
	case *branchState:
		return types.FramePos{Taken: st.taken, Step: st.child}
	default:
		return types.FramePos{}
	}
}

// Pending returns the in-progress repeating selection, if any.
func (it *Interpreter) Pending() *types.PendingAction { return it.pending }

// SetPending installs a previously serialized repeating selection.
func (it *Interpreter) SetPending(p *types.PendingAction) { it.pending = p }

// Restore rebuilds the frame stack by re-walking the static node tree
// along the recorded indices. The game state (tree, vars, RNG) must be
// restored before this call; dynamic iteration orders are rebuilt from
// it. The interpreter is left not waiting — the next Run call
// re-suspends at the same step.
func (it *Interpreter) Restore(pos types.Position) error {
	it.current = pos.CurrentPlayer
	it.game.Vars = map[string]any{}
	for k, v := range pos.Variables {
		it.game.Vars[k] = v
	}

	it.stack = nil
	it.waiting = false
	it.complete = false
	if len(pos.Frames) == 0 {
		it.complete = true
		return nil
	}

	node := it.root
	for depth, fp := range pos.Frames {
		f := newFrame(node)
		if err := restoreFrame(it, f, fp); err != nil {
			return fmt.Errorf("flow: restore frame %d: %w", depth, err)
		}
		it.stack = append(it.stack, f)
		if depth == len(pos.Frames)-1 {
			break
		}
		child, err := childNode(f)
		if err != nil {
			return fmt.Errorf("flow: restore frame %d: %w", depth, err)
		}
		node = child
	}
	return nil
}

// restoreFrame applies one serialized FramePos to a fresh frame,
// rebuilding any derived iteration data from the restored game state.
func restoreFrame(it *Interpreter, f *frame, fp types.FramePos) error {
	switch st := f.state.(type) {
	case *seqState:
		n := f.node.(Sequence)
		if fp.Step < 0 || fp.Step > len(n.Steps) {
			return fmt.Errorf("sequence step %d out of range", fp.Step)
		}
		st.next = fp.Step
	case *loopState:
		st.iteration = fp.Iteration
	case *eachPlayerState:
		n := f.node.(EachPlayer)
		st.order = playerOrder(n, it.ctx())
		st.built = true
		if fp.Cursor < 0 || fp.Cursor > len(st.order) {
			return fmt.Errorf("player cursor %d out of range", fp.Cursor)
		}
		st.cursor = fp.Cursor
	case *forEachState:
		n := f.node.(ForEach)
		if n.Collection != nil {
			st.items = n.Collection(it.ctx())
		}
		st.built = true
		if fp.Cursor < 0 || fp.Cursor > len(st.items) {
			return fmt.Errorf("item cursor %d out of range", fp.Cursor)
		}
		st.index = fp.Cursor
	case *actionState:
		st.started = fp.Taken
		st.player = fp.Cursor
	case *simulState:
		n := f.node.(SimultaneousActionStep)
		if n.Players != nil {
			st.players = n.Players(it.ctx())
		} else {
			for _, p := range it.game.Players.All() {
				st.players = append(st.players, p.Position())
			}
		}
		st.done = map[int]bool{}
		for _, p := range fp.Done {
			st.done[p] = true
		}
		st.built = true
	case *branchState:
		st.taken = fp.Taken
		st.child = fp.Step
	case *execState:
		// Execute frames complete within a single step and never
		// survive into a serialized stack.
	}
	return nil
}

// childNode resolves which child a non-leaf frame had pushed, from its
// restored progress indices.
func childNode(f *frame) (Node, error) {
	switch n := f.node.(type) {
	case Sequence:
		st := f.state.(*seqState)
		if st.next < 1 || st.next > len(n.Steps) {
			return nil, fmt.Errorf("sequence has no active child at step %d", st.next)
		}
		return n.Steps[st.next-1], nil
	case Loop:
		return n.Do, nil
	case EachPlayer:
		return n.Do, nil
	case ForEach:
		return n.Do, nil
	case Switch:
		st := f.state.(*branchState)
		if st.child < 0 || st.child > len(n.Cases) {
			return nil, fmt.Errorf("switch has no active branch")
		}
		return branchChild(n, st.child), nil
	case If:
		st := f.state.(*branchState)
		switch st.child {
		case 0:
			return n.Then, nil
		case 1:
			return n.Else, nil
		}
		return nil, fmt.Errorf("if has no active branch")
	}
	return nil, fmt.Errorf("node kind %T has no children", f.node)
}
