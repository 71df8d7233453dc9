package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderStatusBar produces a full-width inverted status line showing
// the game, whose turn it is, and the action count.
func (m Model) renderStatusBar() string {
	snap := m.engine.Snapshot()

	var turn string
	switch {
	case snap.Complete:
		turn = "game over"
	case snap.CurrentPlayer >= 0:
		turn = m.seatName(snap.CurrentPlayer) + " to act"
	case len(snap.AwaitingPlayers) > 0:
		var waiting []string
		for _, ap := range snap.AwaitingPlayers {
			if !ap.Completed {
				waiting = append(waiting, fmt.Sprintf("@%d", ap.Player))
			}
		}
		turn = "waiting on " + strings.Join(waiting, " ")
	default:
		turn = "running"
	}

	left := fmt.Sprintf(" %s | %s", m.def.Name, turn)
	right := fmt.Sprintf("seed %s | A:%d ", m.engine.Game().Config.Seed, len(m.engine.ActionLog()))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}

// seatName formats a seat for the status bar.
func (m Model) seatName(pos int) string {
	if p, ok := m.engine.Game().Players.Player(pos); ok {
		return p.Name()
	}
	return fmt.Sprintf("seat %d", pos)
}
