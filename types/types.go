// Package types defines the shared boundary data structures for the
// boardcore engine. This package contains only type definitions — no
// logic, no methods.
package types

// GameConfig is the initial configuration a game instance is built from.
// Together with the ordered action log it fully determines engine state.
type GameConfig struct {
	Players []string `json:"players"`
	Seed    string   `json:"seed"`
}

// ActionInvocation is the serialized form of one player action as it
// crosses the network boundary. Player and element selection values are
// carried as integers and re-resolved to live objects before validation.
type ActionInvocation struct {
	Name   string         `json:"name"`
	Player int            `json:"player"`
	Args   map[string]any `json:"args,omitempty"`
}

// ActionResult is the structured outcome of one action attempt.
type ActionResult struct {
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// PendingAction captures an in-progress repeating selection so it can
// survive a network round trip. Values holds the selections committed
// so far; Collected holds the values accumulated by the repeating
// selection itself.
type PendingAction struct {
	Action    string         `json:"action"`
	Player    int            `json:"player"`
	Selection int            `json:"selection"`
	Values    map[string]any `json:"values,omitempty"`
	Collected []any          `json:"collected,omitempty"`
}

// AwaitingPlayer tracks one player's progress through a simultaneous
// action step.
type AwaitingPlayer struct {
	Player           int      `json:"player"`
	AvailableActions []string `json:"available_actions,omitempty"`
	Completed        bool     `json:"completed"`
}

// FlowSnapshot is returned after every run/resume call. It describes
// where the flow stands, not how to rebuild it — see Position for that.
type FlowSnapshot struct {
	Complete         bool             `json:"complete"`
	AwaitingInput    bool             `json:"awaiting_input"`
	CurrentPlayer    int              `json:"current_player"` // -1 when no single player is up
	AvailableActions []string         `json:"available_actions,omitempty"`
	Prompt           string           `json:"prompt,omitempty"`
	AwaitingPlayers  []AwaitingPlayer `json:"awaiting_players,omitempty"`
	Pending          *PendingAction   `json:"pending,omitempty"`
	Messages         []string         `json:"messages,omitempty"`
}

// FramePos is the serializable progress of one interpreter stack frame.
// Step is the child index the frame has advanced to; the remaining
// fields apply only to particular node kinds and are zero otherwise.
type FramePos struct {
	Step      int   `json:"step"`
	Iteration int   `json:"iteration,omitempty"`
	Cursor    int   `json:"cursor,omitempty"`
	Taken     bool  `json:"taken,omitempty"`
	Done      []int `json:"done,omitempty"`
}

// Position is the serializable flow cursor: one FramePos per stack
// depth plus the dynamic bindings. Rebuilding the frame stack needs
// only these indices because the flow-node tree is static.
type Position struct {
	Frames        []FramePos     `json:"frames"`
	CurrentPlayer int            `json:"current_player"`
	Variables     map[string]any `json:"variables,omitempty"`
}
