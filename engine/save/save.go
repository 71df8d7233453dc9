// Package save implements JSON serialization of a complete session:
// the trusted element tree, the flow cursor, and both logs. It holds
// plain data only; the engine package does the assembly and restore.
package save

import (
	"encoding/json"
	"fmt"

	"github.com/nathoo/boardcore/engine/command"
	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/types"
)

// Version is bumped whenever the format changes incompatibly.
const Version = 1

// Data is the JSON-serializable save format. It carries both the full
// snapshot and the ordered logs, so a load can restore the snapshot
// directly or re-derive it by replaying the action log.
type Data struct {
	Version       int                      `json:"version"`
	Game          string                   `json:"game"`
	Config        types.GameConfig         `json:"config"`
	Root          *element.Node            `json:"root"`
	Sink          *element.Node            `json:"sink"`
	CurrentPlayer int                      `json:"current_player"`
	Messages      []string                 `json:"messages,omitempty"`
	RNGPosition   int64                    `json:"rng_position"`
	Flow          types.Position           `json:"flow"`
	Pending       *types.PendingAction     `json:"pending,omitempty"`
	CommandLog    []command.Wire           `json:"command_log,omitempty"`
	ActionLog     []types.ActionInvocation `json:"action_log,omitempty"`
	Started       bool                     `json:"started"`
	Ended         bool                     `json:"ended"`
	Winners       []int                    `json:"winners,omitempty"`
}

// Encode marshals a session with indentation so save files stay
// inspectable.
func Encode(d *Data) ([]byte, error) {
	if d.Version == 0 {
		d.Version = Version
	}
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("save: encode: %w", err)
	}
	return out, nil
}

// Decode unmarshals a session, rejecting unknown versions and
// structurally incomplete files. Maps and slices inside the flow
// position are never nil after load.
func Decode(raw []byte) (*Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("save: decode: %w", err)
	}
	if d.Version != Version {
		return nil, fmt.Errorf("save: unsupported version %d", d.Version)
	}
	if d.Root == nil || d.Sink == nil {
		return nil, fmt.Errorf("save: missing element tree")
	}
	if d.Flow.Variables == nil {
		d.Flow.Variables = map[string]any{}
	}
	if d.Messages == nil {
		d.Messages = []string{}
	}
	return &d, nil
}
