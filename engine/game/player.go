package game

import "fmt"

// Player is one seat at the table. Position is immutable; the current
// flag changes only through the roster's SetCurrent (driven by the
// SET_CURRENT_PLAYER command).
type Player struct {
	position int
	name     string
	current  bool
}

// Position returns the player's immutable seat index.
func (p *Player) Position() int { return p.position }

// Name returns the display name.
func (p *Player) Name() string { return p.name }

// Current reports whether this player holds the current flag.
func (p *Player) Current() bool { return p.current }

// Roster is the ordered player collection for one game.
type Roster struct {
	players []*Player
}

// NewRoster seats players in order; positions run 0..N-1 and the first
// seat starts current.
func NewRoster(names []string) *Roster {
	r := &Roster{}
	for i, name := range names {
		r.players = append(r.players, &Player{position: i, name: name})
	}
	if len(r.players) > 0 {
		r.players[0].current = true
	}
	return r
}

// Len returns the number of seats.
func (r *Roster) Len() int { return len(r.players) }

// Player resolves a seat position.
func (r *Roster) Player(position int) (*Player, bool) {
	if position < 0 || position >= len(r.players) {
		return nil, false
	}
	return r.players[position], true
}

// All returns the players in seat order. The slice is a copy.
func (r *Roster) All() []*Player {
	out := make([]*Player, len(r.players))
	copy(out, r.players)
	return out
}

// Current returns the player holding the current flag.
func (r *Roster) Current() *Player {
	for _, p := range r.players {
		if p.current {
			return p
		}
	}
	return nil
}

// SetCurrent moves the current flag to the given seat. Exactly one seat
// holds the flag at any time.
func (r *Roster) SetCurrent(position int) error {
	if position < 0 || position >= len(r.players) {
		return fmt.Errorf("game: no player at position %d", position)
	}
	for _, p := range r.players {
		p.current = p.position == position
	}
	return nil
}

// Names returns display names in seat order.
func (r *Roster) Names() []string {
	out := make([]string, len(r.players))
	for i, p := range r.players {
		out[i] = p.name
	}
	return out
}
