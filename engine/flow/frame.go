package flow

import (
	"reflect"

	"github.com/nathoo/boardcore/engine/game"
)

// frame is one interpreter stack entry: a reference into the static
// node tree plus frame-kind-specific progress. Frames are created when
// a parent descends into a child and destroyed once completed.
type frame struct {
	node      Node
	completed bool
	state     frameState
}

// frameState is the closed union of per-kind progress data, replacing
// an untyped data bag so position snapshots stay well-typed.
type frameState interface {
	isFrameState()
}

type seqState struct {
	next int
}

type loopState struct {
	iteration int
}

type eachPlayerState struct {
	order  []int
	cursor int
	built  bool
}

type forEachState struct {
	items  []any
	index  int
	built  bool
}

type actionState struct {
	started bool
	player  int
}

type simulState struct {
	players []int
	done    map[int]bool
	built   bool
}

// branchState is shared by Switch and If: taken pins the decision the
// moment the child frame is pushed, so the branch is stable even if its
// inputs change mid-execution. child is -1 when no branch applied.
type branchState struct {
	taken bool
	child int
}

type execState struct{}

func (*seqState) isFrameState()        {}
func (*loopState) isFrameState()       {}
func (*eachPlayerState) isFrameState() {}
func (*forEachState) isFrameState()    {}
func (*actionState) isFrameState()     {}
func (*simulState) isFrameState()      {}
func (*branchState) isFrameState()     {}
func (*execState) isFrameState()       {}

// newFrame allocates a frame with zeroed progress for its node kind.
func newFrame(n Node) *frame {
	f := &frame{node: n}
	switch n.(type) {
	case Sequence:
		f.state = &seqState{}
	case Loop:
		f.state = &loopState{}
	case EachPlayer:
		f.state = &eachPlayerState{}
	case ForEach:
		f.state = &forEachState{}
	case ActionStep:
		f.state = &actionState{player: -1}
	case SimultaneousActionStep:
		f.state = &simulState{}
	case Switch, If:
		f.state = &branchState{child: -1}
	case Execute:
		f.state = &execState{}
	}
	return f
}

// playerOrder builds the iteration order for an EachPlayer node:
// filter, reverse, then rotate so StartingPlayer goes first.
func playerOrder(n EachPlayer, ctx *Ctx) []int {
	var order []int
	for _, p := range ctx.Game.Players.All() {
		if n.Filter != nil && !n.Filter(ctx, p) {
			continue
		}
		order = append(order, p.Position())
	}
	if n.Reverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	if n.StartingPlayer != nil && len(order) > 0 {
		start := n.StartingPlayer(ctx)
		for i, pos := range order {
			if pos == start {
				order = append(order[i:], order[:i]...)
				break
			}
		}
	}
	return order
}

// matchCase picks the branch index for a Switch value: the first case
// whose value is structurally equal, or len(Cases) for the default
// branch, or -1 when nothing applies.
func matchCase(n Switch, v any) int {
	for i, c := range n.Cases {
		if equalValue(c.Value, v) {
			return i
		}
	}
	if n.Default != nil {
		return len(n.Cases)
	}
	return -1
}

func equalValue(a, b any) bool {
	return reflect.DeepEqual(widen(a), widen(b))
}

// widen maps numeric types to float64 so values that crossed a JSON or
// Lua boundary compare equal to natively built ones.
func widen(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func playerAt(g *game.Game, pos int) *game.Player {
	p, _ := g.Players.Player(pos)
	return p
}
