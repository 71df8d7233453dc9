// Package flow interprets a static tree of flow nodes to decide, at any
// instant, whose turn it is and which actions are offered. The
// interpreter runs over an explicit frame stack so its position is
// introspectable and serializable at every suspension point; suspension
// is the run loop returning an awaiting-input snapshot, never a
// goroutine parked on a channel.
package flow

import (
	"time"

	"github.com/nathoo/boardcore/engine/command"
	"github.com/nathoo/boardcore/engine/game"
)

// Ctx is what flow callbacks run with. Player is the active player
// binding at this point in the flow, nil outside player iteration.
// All mutation goes through Exec.
type Ctx struct {
	Game   *game.Game
	Exec   *command.Executor
	Player *game.Player
}

// Node is the closed union of flow-node kinds. The tree is static per
// game and built once; loops are explicit node types, not graph cycles.
type Node interface {
	isNode()
}

// Sequence runs Steps in order, one child frame per resume.
type Sequence struct {
	Steps []Node
}

// Loop re-evaluates While before each iteration and stops on false or
// when MaxIterations (if positive) is reached. The iteration count
// lives in the frame, so the same static loop node can be entered
// reentrantly when nested inside player iteration.
type Loop struct {
	While         func(*Ctx) bool
	Do            Node
	MaxIterations int
}

// EachPlayer iterates the roster, one player per resume. The iteration
// order is built lazily on first entry: filtered, optionally reversed,
// optionally rotated to start at StartingPlayer. The active player is
// bound to the flow variable named As ("player" when empty).
type EachPlayer struct {
	Filter         func(*Ctx, *game.Player) bool
	Reverse        bool
	StartingPlayer func(*Ctx) int
	As             string
	Do             Node
}

// ForEach iterates a dynamically computed collection, binding each item
// to the flow variable named As.
type ForEach struct {
	Collection func(*Ctx) []any
	As         string
	Do         Node
}

// ActionStep is the primary suspension point. The offered set is the
// intersection of the declared Actions with the actions currently
// available to the designated player. Timeout is a hint carried in the
// definition for external session layers; the engine never enforces it.
type ActionStep struct {
	Actions     []string
	Player      func(*Ctx) int
	Prompt      string
	SkipIf      func(*Ctx) bool
	RepeatUntil func(*Ctx) bool
	Timeout     time.Duration
}

// SimultaneousActionStep awaits independent input from several players,
// tracking completion per player. It completes when every tracked
// player is done or AllDone holds. A nil PlayerDone marks a player done
// after one successful action.
type SimultaneousActionStep struct {
	Players    func(*Ctx) []int
	Actions    []string
	PlayerDone func(*Ctx, int) bool
	AllDone    func(*Ctx) bool
}

// Case is one branch of a Switch.
type Case struct {
	Value any
	Do    Node
}

// Switch evaluates On once, picks the first structurally equal Case (or
// Default), and never re-evaluates after the branch is taken.
type Switch struct {
	On      func(*Ctx) any
	Cases   []Case
	Default Node
}

// If is a single-shot branch with the same taken-once stability.
type If struct {
	Condition func(*Ctx) bool
	Then      Node
	Else      Node
}

// Execute is a pure side-effecting step: compute or commit variables,
// issue commands. It always completes immediately and never suspends.
type Execute struct {
	Fn func(*Ctx) error
}

func (Sequence) isNode()               {}
func (Loop) isNode()                   {}
func (EachPlayer) isNode()             {}
func (ForEach) isNode()                {}
func (ActionStep) isNode()             {}
func (SimultaneousActionStep) isNode() {}
func (Switch) isNode()                 {}
func (If) isNode()                     {}
func (Execute) isNode()                {}
