// Package command defines the closed set of atomic state mutations the
// engine supports and the single executor that applies them. Every
// higher-level mutation is some sequence of these commands; the ordered
// log of applied commands plus the seed reconstructs state exactly.
package command

import "github.com/nathoo/boardcore/engine/element"

// Type is the wire discriminator for a command variant.
type Type string

const (
	TypeCreate           Type = "CREATE"
	TypeCreateMany       Type = "CREATE_MANY"
	TypeMove             Type = "MOVE"
	TypeRemove           Type = "REMOVE"
	TypeShuffle          Type = "SHUFFLE"
	TypeSetAttribute     Type = "SET_ATTRIBUTE"
	TypeSetVisibility    Type = "SET_VISIBILITY"
	TypeAddVisibleTo     Type = "ADD_VISIBLE_TO"
	TypeSetCurrentPlayer Type = "SET_CURRENT_PLAYER"
	TypeMessage          Type = "MESSAGE"
	TypeStartGame        Type = "START_GAME"
	TypeEndGame          Type = "END_GAME"
	TypeSetOrder         Type = "SET_ORDER"
)

// Command is the closed union of engine mutations. The set is sealed:
// only the variants in this package implement it, so the executor's
// type switch covers every case.
type Command interface {
	Type() Type
	isCommand()
}

// Create instantiates one element of a registered class under Parent.
type Create struct {
	Class  string
	Name   string
	Parent int
	Owner  int
}

// CreateMany instantiates Count elements of a class under Parent.
type CreateMany struct {
	Class  string
	Count  int
	Parent int
	Owner  int
}

// Move re-parents Element under Dest at child Index (-1 appends).
// Detach and attach are one atomic step.
type Move struct {
	Element int
	Dest    int
	Index   int
}

// Remove relocates Element into the sink; its id stays resolvable.
type Remove struct {
	Element int
}

// Shuffle Fisher-Yates-shuffles Element's direct children with the
// game's seeded RNG.
type Shuffle struct {
	Element int
}

// SetAttribute sets one attribute on Element.
type SetAttribute struct {
	Element int
	Key     string
	Value   any
}

// SetVisibility sets an explicit visibility descriptor on Element.
type SetVisibility struct {
	Element    int
	Visibility element.Visibility
}

// AddVisibleTo grants identity visibility of Element to Players.
type AddVisibleTo struct {
	Element int
	Players []int
}

// SetCurrentPlayer moves the current flag to Player.
type SetCurrentPlayer struct {
	Player int
}

// Message appends Text to the game's message log.
type Message struct {
	Text string
}

// StartGame marks the game started.
type StartGame struct{}

// EndGame marks the game ended with the given winner positions.
type EndGame struct {
	Winners []int
}

// SetOrder reorders Element's children to the listed child ids.
type SetOrder struct {
	Element int
	Order   []int
}

func (Create) Type() Type           { return TypeCreate }
func (CreateMany) Type() Type       { return TypeCreateMany }
func (Move) Type() Type             { return TypeMove }
func (Remove) Type() Type           { return TypeRemove }
func (Shuffle) Type() Type          { return TypeShuffle }
func (SetAttribute) Type() Type     { return TypeSetAttribute }
func (SetVisibility) Type() Type    { return TypeSetVisibility }
func (AddVisibleTo) Type() Type     { return TypeAddVisibleTo }
func (SetCurrentPlayer) Type() Type { return TypeSetCurrentPlayer }
func (Message) Type() Type          { return TypeMessage }
func (StartGame) Type() Type        { return TypeStartGame }
func (EndGame) Type() Type          { return TypeEndGame }
func (SetOrder) Type() Type         { return TypeSetOrder }

func (Create) isCommand()           {}
func (CreateMany) isCommand()       {}
func (Move) isCommand()             {}
func (Remove) isCommand()           {}
func (Shuffle) isCommand()          {}
func (SetAttribute) isCommand()     {}
func (SetVisibility) isCommand()    {}
func (AddVisibleTo) isCommand()     {}
func (SetCurrentPlayer) isCommand() {}
func (Message) isCommand()          {}
func (StartGame) isCommand()        {}
func (EndGame) isCommand()          {}
func (SetOrder) isCommand()         {}
