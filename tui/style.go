package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleMessage = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleTurn = lipgloss.NewStyle().
			Bold(true)

	styleActions = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleGameOver = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true)
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindMessage lineKind = iota
	kindTurn
	kindActions
	kindSystem
	kindError
	kindGameOver
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "Game over"):
		return kindGameOver
	case strings.Contains(line, " to act:"):
		return kindTurn
	case strings.HasPrefix(line, "Available:"), strings.Contains(line, "(use @"):
		return kindActions
	default:
		return kindMessage
	}
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindTurn:
		return styleTurn.Render(line)
	case kindActions:
		return styleActions.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindGameOver:
		return styleGameOver.Render(line)
	default:
		return styleMessage.Render(line)
	}
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
