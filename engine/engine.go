// Package engine wires the element tree, command executor, action
// selection, and flow interpreter into one session-facing orchestrator.
// All mutation flows through the command executor; the engine itself
// only sequences the pieces and keeps the action log.
package engine

import (
	"fmt"
	"sync"

	"github.com/nathoo/boardcore/engine/action"
	"github.com/nathoo/boardcore/engine/command"
	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/engine/flow"
	"github.com/nathoo/boardcore/engine/game"
	"github.com/nathoo/boardcore/engine/rng"
	"github.com/nathoo/boardcore/engine/save"
	"github.com/nathoo/boardcore/types"
)

// Definition is everything a game contributes: classes, setup, actions,
// and the flow tree. Definitions are static and shared; all mutable
// state lives in the Engine.
type Definition struct {
	Name       string
	MinPlayers int
	MaxPlayers int
	Classes    []element.Class
	Setup      func(*flow.Ctx) error
	Actions    *action.Set
	Flow       flow.Node
	IsComplete func(*flow.Ctx) bool
	Winners    func(*flow.Ctx) []int
}

// Engine is one running session. Methods are safe for concurrent use;
// a single mutex serializes everything because the whole point of the
// design is a deterministic total order of mutations.
type Engine struct {
	mu sync.Mutex

	def    *Definition
	game   *game.Game
	exec   *command.Executor
	interp *flow.Interpreter

	actionLog []types.ActionInvocation
}

// New builds a session from a definition and configuration. The game
// does not run until Start.
func New(def *Definition, cfg types.GameConfig) (*Engine, error) {
	if def == nil {
		return nil, fmt.Errorf("engine: nil definition")
	}
	n := len(cfg.Players)
	if def.MinPlayers > 0 && n < def.MinPlayers {
		return nil, fmt.Errorf("engine: %s needs at least %d players, got %d", def.Name, def.MinPlayers, n)
	}
	if def.MaxPlayers > 0 && n > def.MaxPlayers {
		return nil, fmt.Errorf("engine: %s allows at most %d players, got %d", def.Name, def.MaxPlayers, n)
	}

	g, err := game.New(cfg)
	if err != nil {
		return nil, err
	}
	for _, c := range def.Classes {
		if err := g.Tree.Registry().Register(c); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}

	e := &Engine{def: def, game: g}
	e.exec = command.NewExecutor(g)
	e.interp = flow.New(def.Flow, def.Actions, g, e.exec, def.IsComplete)
	return e, nil
}

// Game exposes the underlying game state for read access.
func (e *Engine) Game() *game.Game { return e.game }

// Definition returns the static definition this session runs.
func (e *Engine) Definition() *Definition { return e.def }

// Start runs setup and drives the flow to its first suspension point.
func (e *Engine) Start() (types.FlowSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.Started {
		return e.interp.Snapshot(), fmt.Errorf("engine: already started")
	}
	if res := e.exec.Execute(command.StartGame{}); !res.OK() {
		return e.interp.Snapshot(), res.Err
	}
	if e.def.Setup != nil {
		ctx := &flow.Ctx{Game: e.game, Exec: e.exec}
		if err := e.def.Setup(ctx); err != nil {
			return e.interp.Snapshot(), fmt.Errorf("engine: setup: %w", err)
		}
	}
	snap, err := e.interp.Run()
	if err != nil {
		return snap, err
	}
	return e.finishLocked(snap)
}

// finishLocked records winners when the flow completed without an
// explicit END_GAME command, e.g. through the definition's is-complete
// predicate.
func (e *Engine) finishLocked(snap types.FlowSnapshot) (types.FlowSnapshot, error) {
	if !snap.Complete || e.game.Ended {
		return snap, nil
	}
	var winners []int
	if e.def.Winners != nil {
		winners = e.def.Winners(&flow.Ctx{Game: e.game, Exec: e.exec})
	}
	if res := e.exec.Execute(command.EndGame{Winners: winners}); !res.OK() {
		return snap, res.Err
	}
	return e.interp.Snapshot(), nil
}

// Resume delivers one player action. Successful invocations — including
// each partial step of a repeating selection — are appended to the
// action log; failed ones leave the session untouched and unlogged.
func (e *Engine) Resume(inv types.ActionInvocation) (types.FlowSnapshot, types.ActionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumeLocked(inv)
}

func (e *Engine) resumeLocked(inv types.ActionInvocation) (types.FlowSnapshot, types.ActionResult, error) {
	if !e.game.Started {
		return e.interp.Snapshot(), types.ActionResult{OK: false, Error: "engine: not started"}, nil
	}
	snap, result, err := e.interp.Resume(inv)
	if result.OK {
		e.actionLog = append(e.actionLog, inv)
	}
	if err == nil && result.OK {
		snap, err = e.finishLocked(snap)
	}
	return snap, result, err
}

// Snapshot returns the current flow snapshot without advancing anything.
func (e *Engine) Snapshot() types.FlowSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interp.Snapshot()
}

// Position returns the serializable flow cursor.
func (e *Engine) Position() types.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interp.Position()
}

// Available lists the actions the flow currently offers to a player.
// Outside that player's window the list is empty.
func (e *Engine) Available(player int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.interp.Snapshot()
	if snap.CurrentPlayer == player {
		return snap.AvailableActions
	}
	for _, ap := range snap.AwaitingPlayers {
		if ap.Player == player {
			return ap.AvailableActions
		}
	}
	return nil
}

// ViewFor serializes the element tree as one player is allowed to see
// it. Player -1 is the spectator view.
func (e *Engine) ViewFor(player int) *element.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Tree.ViewFor(player)
}

// CommandLog returns the ordered mutation log.
func (e *Engine) CommandLog() []command.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exec.Log()
}

// ActionLog returns the ordered invocation log.
func (e *Engine) ActionLog() []types.ActionInvocation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.ActionInvocation(nil), e.actionLog...)
}

// Winners reports the recorded winners once the game has ended.
func (e *Engine) Winners() ([]int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.game.Ended {
		return nil, false
	}
	return append([]int(nil), e.game.Winners...), true
}

// Replay reconstructs a session by re-driving every logged action
// through a fresh engine. With the same definition, configuration, and
// log, the result is state-identical to the original session.
func Replay(def *Definition, cfg types.GameConfig, log []types.ActionInvocation) (*Engine, error) {
	e, err := New(def, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := e.Start(); err != nil {
		return nil, fmt.Errorf("engine: replay start: %w", err)
	}
	for i, inv := range log {
		_, result, err := e.Resume(inv)
		if err != nil {
			return nil, fmt.Errorf("engine: replay step %d: %w", i, err)
		}
		if !result.OK {
			return nil, fmt.Errorf("engine: replay step %d (%s by player %d): %s", i, inv.Name, inv.Player, result.Error)
		}
	}
	return e, nil
}

// Undo rewinds the last logged invocation by replaying the shortened
// log into a fresh session and adopting its state.
func (e *Engine) Undo() (types.FlowSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.actionLog) == 0 {
		return e.interp.Snapshot(), fmt.Errorf("engine: nothing to undo")
	}
	shorter := append([]types.ActionInvocation(nil), e.actionLog[:len(e.actionLog)-1]...)
	fresh, err := Replay(e.def, e.game.Config, shorter)
	if err != nil {
		return e.interp.Snapshot(), fmt.Errorf("engine: undo: %w", err)
	}
	e.adopt(fresh)
	return e.interp.Snapshot(), nil
}

// adopt takes over another engine's mutable state. Caller holds e.mu;
// the donor is freshly built and has no other users.
func (e *Engine) adopt(o *Engine) {
	e.game = o.game
	e.exec = o.exec
	e.interp = o.interp
	e.actionLog = o.actionLog
}

// Save captures the full session: snapshot plus both logs.
func (e *Engine) Save() *save.Data {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := -1
	if p := e.game.Players.Current(); p != nil {
		current = p.Position()
	}
	return &save.Data{
		Version:       save.Version,
		Game:          e.def.Name,
		Config:        e.game.Config,
		Root:          e.game.Tree.Serialize(),
		Sink:          e.game.Tree.SerializeSink(),
		CurrentPlayer: current,
		Messages:      append([]string(nil), e.game.Messages...),
		RNGPosition:   e.game.RNG.Position(),
		Flow:          e.interp.Position(),
		Pending:       e.interp.Pending(),
		CommandLog:    command.EncodeLog(e.exec.Log()),
		ActionLog:     append([]types.ActionInvocation(nil), e.actionLog...),
		Started:       e.game.Started,
		Ended:         e.game.Ended,
		Winners:       append([]int(nil), e.game.Winners...),
	}
}

// Load rebuilds a session from saved data: the snapshot is restored
// directly and the flow stack is re-derived from the saved cursor.
func Load(def *Definition, d *save.Data) (*Engine, error) {
	if d.Game != def.Name {
		return nil, fmt.Errorf("engine: save is for %q, definition is %q", d.Game, def.Name)
	}
	e, err := New(def, d.Config)
	if err != nil {
		return nil, err
	}

	tree, err := element.Deserialize(e.game.Tree.Registry(), d.Root, d.Sink)
	if err != nil {
		return nil, fmt.Errorf("engine: load: %w", err)
	}
	e.game.Tree = tree
	e.game.RNG = rng.Restore(d.Config.Seed, d.RNGPosition)
	e.game.Messages = append([]string(nil), d.Messages...)
	e.game.Started = d.Started
	e.game.Ended = d.Ended
	e.game.Winners = append([]int(nil), d.Winners...)
	if d.CurrentPlayer >= 0 {
		if err := e.game.Players.SetCurrent(d.CurrentPlayer); err != nil {
			return nil, fmt.Errorf("engine: load: %w", err)
		}
	}

	cmds, err := command.DecodeLog(d.CommandLog)
	if err != nil {
		return nil, fmt.Errorf("engine: load: %w", err)
	}
	e.exec.AppendLogged(cmds...)
	e.actionLog = append([]types.ActionInvocation(nil), d.ActionLog...)

	if err := e.interp.Restore(d.Flow); err != nil {
		return nil, fmt.Errorf("engine: load: %w", err)
	}
	e.interp.SetPending(d.Pending)
	if !d.Ended {
		snap, err := e.interp.Run()
		if err != nil {
			return nil, fmt.Errorf("engine: load: %w", err)
		}
		if _, err := e.finishLocked(snap); err != nil {
			return nil, fmt.Errorf("engine: load: %w", err)
		}
	}
	return e, nil
}
