package command

import (
	"encoding/json"
	"fmt"

	"github.com/nathoo/boardcore/engine/element"
)

// Wire is the flat JSON envelope every command variant serializes
// through. Only the fields a variant uses are populated; pointers
// distinguish "absent" from meaningful zero values.
type Wire struct {
	Type       Type                `json:"type"`
	Class      string              `json:"class,omitempty"`
	Name       string              `json:"name,omitempty"`
	Count      int                 `json:"count,omitempty"`
	Parent     *int                `json:"parent,omitempty"`
	Owner      *int                `json:"owner,omitempty"`
	Element    *int                `json:"element,omitempty"`
	Dest       *int                `json:"dest,omitempty"`
	Index      *int                `json:"index,omitempty"`
	Key        string              `json:"key,omitempty"`
	Value      any                 `json:"value,omitempty"`
	Visibility *element.Visibility `json:"visibility,omitempty"`
	Players    []int               `json:"players,omitempty"`
	Player     *int                `json:"player,omitempty"`
	Text       string              `json:"text,omitempty"`
	Winners    []int               `json:"winners,omitempty"`
	Order      []int               `json:"order,omitempty"`
}

// Encode converts a command to its wire envelope.
func Encode(cmd Command) Wire {
	switch c := cmd.(type) {
	case Create:
		return Wire{Type: c.Type(), Class: c.Class, Name: c.Name, Parent: ptr(c.Parent), Owner: ptr(c.Owner)}
	case CreateMany:
		return Wire{Type: c.Type(), Class: c.Class, Count: c.Count, Parent: ptr(c.Parent), Owner: ptr(c.Owner)}
	case Move:
		return Wire{Type: c.Type(), Element: ptr(c.Element), Dest: ptr(c.Dest), Index: ptr(c.Index)}
	case Remove:
		return Wire{Type: c.Type(), Element: ptr(c.Element)}
	case Shuffle:
		return Wire{Type: c.Type(), Element: ptr(c.Element)}
	case SetAttribute:
		return Wire{Type: c.Type(), Element: ptr(c.Element), Key: c.Key, Value: c.Value}
	case SetVisibility:
		v := c.Visibility
		return Wire{Type: c.Type(), Element: ptr(c.Element), Visibility: &v}
	case AddVisibleTo:
		return Wire{Type: c.Type(), Element: ptr(c.Element), Players: c.Players}
	case SetCurrentPlayer:
		return Wire{Type: c.Type(), Player: ptr(c.Player)}
	case Message:
		return Wire{Type: c.Type(), Text: c.Text}
	case StartGame:
		return Wire{Type: c.Type()}
	case EndGame:
		return Wire{Type: c.Type(), Winners: c.Winners}
	case SetOrder:
		return Wire{Type: c.Type(), Element: ptr(c.Element), Order: c.Order}
	}
	// Sealed union; a new variant must be added here.
	return Wire{Type: cmd.Type()}
}

// Decode converts a wire envelope back to a command.
func Decode(w Wire) (Command, error) {
	switch w.Type {
	case TypeCreate:
		return Create{Class: w.Class, Name: w.Name, Parent: deref(w.Parent, 0), Owner: deref(w.Owner, element.NoOwner)}, nil
	case TypeCreateMany:
		return CreateMany{Class: w.Class, Count: w.Count, Parent: deref(w.Parent, 0), Owner: deref(w.Owner, element.NoOwner)}, nil
	case TypeMove:
		return Move{Element: deref(w.Element, 0), Dest: deref(w.Dest, 0), Index: deref(w.Index, -1)}, nil
	case TypeRemove:
		return Remove{Element: deref(w.Element, 0)}, nil
	case TypeShuffle:
		return Shuffle{Element: deref(w.Element, 0)}, nil
	case TypeSetAttribute:
		return SetAttribute{Element: deref(w.Element, 0), Key: w.Key, Value: w.Value}, nil
	case TypeSetVisibility:
		if w.Visibility == nil {
			return nil, fmt.Errorf("command: SET_VISIBILITY requires a visibility descriptor")
		}
		return SetVisibility{Element: deref(w.Element, 0), Visibility: *w.Visibility}, nil
	case TypeAddVisibleTo:
		return AddVisibleTo{Element: deref(w.Element, 0), Players: w.Players}, nil
	case TypeSetCurrentPlayer:
		return SetCurrentPlayer{Player: deref(w.Player, 0)}, nil
	case TypeMessage:
		return Message{Text: w.Text}, nil
	case TypeStartGame:
		return StartGame{}, nil
	case TypeEndGame:
		return EndGame{Winners: w.Winners}, nil
	case TypeSetOrder:
		return SetOrder{Element: deref(w.Element, 0), Order: w.Order}, nil
	}
	return nil, fmt.Errorf("command: unknown command type %q", w.Type)
}

// EncodeLog converts a command log to wire envelopes.
func EncodeLog(cmds []Command) []Wire {
	out := make([]Wire, len(cmds))
	for i, c := range cmds {
		out[i] = Encode(c)
	}
	return out
}

// DecodeLog converts wire envelopes back to a command log.
func DecodeLog(ws []Wire) ([]Command, error) {
	out := make([]Command, len(ws))
	for i, w := range ws {
		c, err := Decode(w)
		if err != nil {
			return nil, fmt.Errorf("command: log entry %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// Marshal serializes one command as JSON.
func Marshal(cmd Command) ([]byte, error) {
	return json.Marshal(Encode(cmd))
}

// Unmarshal deserializes one command from JSON.
func Unmarshal(data []byte) (Command, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("command: %w", err)
	}
	return Decode(w)
}

func ptr(n int) *int { return &n }

func deref(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
