package tui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/boardcore/engine"
	"github.com/nathoo/boardcore/engine/save"
	"github.com/nathoo/boardcore/types"
)

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed player input
	isSystem bool // true for system messages
}

// Model is the Bubble Tea model for a boardcore session.
type Model struct {
	engine *engine.Engine
	def    *engine.Definition

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated output lines (unstyled, for re-wrapping)

	width    int
	height   int
	ready    bool
	quitting bool
	saveDir  string
	printed  int // messages already shown
}

// gameOutputMsg carries output from the engine into the Update loop.
type gameOutputMsg struct {
	input    string   // echoed player input (empty for the opening)
	lines    []string // output lines
	isSystem bool     // true for meta-command output
}

// New creates a TUI model wired to the given session.
func New(eng *engine.Engine, def *engine.Definition) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	home, _ := os.UserHomeDir()
	return Model{
		engine:  eng,
		def:     def,
		input:   ti,
		history: NewHistory(100),
		saveDir: filepath.Join(home, ".boardcore", "saves"),
	}
}

// Run starts the Bubble Tea program.
func Run(eng *engine.Engine, def *engine.Definition) error {
	m := New(eng, def)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init starts the session and produces the opening output.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.initialOutput())
}

func (m Model) initialOutput() tea.Cmd {
	return func() tea.Msg {
		lines := []string{
			fmt.Sprintf("%s — seed %q, %d players", m.def.Name,
				m.engine.Game().Config.Seed, m.engine.Game().Players.Len()),
			"",
		}
		snap, err := m.engine.Start()
		if err != nil {
			lines = append(lines, fmt.Sprintf("Error: %v", err))
			return gameOutputMsg{lines: lines, isSystem: true}
		}
		lines = append(lines, snapshotLines(snap, 0, m.engine)...)
		return gameOutputMsg{lines: lines}
	}
}

// Update handles messages (key presses, window resize, game output).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case gameOutputMsg:
		m = m.appendOutput(msg)
		m.printed = len(m.engine.Snapshot().Messages)
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	m.history.Push(input)
	m.history.ResetCursor()

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m = m.appendOutput(gameOutputMsg{input: input, lines: output, isSystem: true})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	inv, err := parseInvocation(input, m.engine.Snapshot())
	if err != nil {
		m = m.appendOutput(gameOutputMsg{input: input, lines: []string{err.Error()}, isSystem: true})
		return m, nil
	}

	snap, result, err := m.engine.Resume(inv)
	if err != nil {
		m = m.appendOutput(gameOutputMsg{
			input: input, lines: []string{fmt.Sprintf("Engine fault: %v", err)}, isSystem: true,
		})
		return m, nil
	}
	if !result.OK {
		m = m.appendOutput(gameOutputMsg{input: input, lines: []string{result.Error}, isSystem: true})
		return m, nil
	}

	lines := snapshotLines(snap, m.printed, m.engine)
	m.printed = len(snap.Messages)
	m = m.appendOutput(gameOutputMsg{input: input, lines: lines})
	return m, nil
}

// snapshotLines formats a flow snapshot: messages newer than printed,
// then the prompt state.
func snapshotLines(snap types.FlowSnapshot, printed int, eng *engine.Engine) []string {
	var lines []string
	for i := printed; i < len(snap.Messages); i++ {
		lines = append(lines, snap.Messages[i])
	}
	if snap.Complete {
		winners, ok := eng.Winners()
		switch {
		case !ok || len(winners) == 0:
			lines = append(lines, "Game over. No winner.")
		default:
			names := make([]string, len(winners))
			for i, w := range winners {
				if p, found := eng.Game().Players.Player(w); found {
					names[i] = p.Name()
				} else {
					names[i] = fmt.Sprintf("seat %d", w)
				}
			}
			lines = append(lines, "Game over. Winner: "+strings.Join(names, ", "))
		}
		return lines
	}
	if snap.Pending != nil {
		lines = append(lines, fmt.Sprintf("(%s continues: %d chosen so far)",
			snap.Pending.Action, len(snap.Pending.Collected)))
	}
	if snap.CurrentPlayer >= 0 {
		if snap.Prompt != "" {
			lines = append(lines, snap.Prompt)
		}
		name := fmt.Sprintf("seat %d", snap.CurrentPlayer)
		if p, ok := eng.Game().Players.Player(snap.CurrentPlayer); ok {
			name = p.Name()
		}
		lines = append(lines, fmt.Sprintf("%s to act: %s", name, strings.Join(snap.AvailableActions, ", ")))
		return lines
	}
	for _, ap := range snap.AwaitingPlayers {
		name := fmt.Sprintf("seat %d", ap.Player)
		if p, ok := eng.Game().Players.Player(ap.Player); ok {
			name = p.Name()
		}
		if ap.Completed {
			lines = append(lines, fmt.Sprintf("%s: done", name))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (use @%d): %s",
			name, ap.Player, strings.Join(ap.AvailableActions, ", ")))
	}
	return lines
}

// parseInvocation reads the "action key=value ..." grammar, with an
// optional "@N" seat prefix for simultaneous steps.
func parseInvocation(input string, snap types.FlowSnapshot) (types.ActionInvocation, error) {
	fields := strings.Fields(input)
	player := snap.CurrentPlayer

	if strings.HasPrefix(fields[0], "@") {
		n, err := strconv.Atoi(fields[0][1:])
		if err != nil {
			return types.ActionInvocation{}, fmt.Errorf("bad seat %q", fields[0])
		}
		player = n
		fields = fields[1:]
		if len(fields) == 0 {
			return types.ActionInvocation{}, fmt.Errorf("expected an action after the seat")
		}
	}
	if player < 0 {
		return types.ActionInvocation{}, fmt.Errorf("no player is up; use @N to pick a seat")
	}

	inv := types.ActionInvocation{Name: fields[0], Player: player}
	for _, f := range fields[1:] {
		k, raw, ok := strings.Cut(f, "=")
		if !ok {
			return types.ActionInvocation{}, fmt.Errorf("argument %q is not key=value", f)
		}
		if inv.Args == nil {
			inv.Args = map[string]any{}
		}
		inv.Args[k] = parseValue(raw)
	}
	return inv, nil
}

// parseValue turns a literal into a number, bool, list, or string.
func parseValue(raw string) any {
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, parseValue(p))
		}
		return out
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// appendOutput adds lines to the log and refreshes the viewport.
func (m Model) appendOutput(msg gameOutputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{
			text: "> " + msg.input, isInput: true,
		})
	}

	for _, line := range msg.lines {
		rl := rawLine{text: line, isSystem: msg.isSystem}
		if !msg.isSystem {
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}

	// Blank line separator between turns.
	m.rawLines = append(m.rawLines, rawLine{})

	m.refreshViewport()

	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current
// width and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		wrapped := wordWrap(rl.text, width)

		switch {
		case rl.isInput:
			styled = append(styled, stylePlayerInput.Render(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	words := strings.Fields(text)
	lineLen := 0

	for i, word := range words {
		wLen := len(word)

		if i == 0 {
			result.WriteString(word)
			lineLen = wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/save":
		return m.cmdSave(arg), false

	case "/load":
		return m.cmdLoad(arg), false

	case "/undo":
		return m.cmdUndo(), false

	case "/replay":
		return m.cmdReplay(), false

	case "/state":
		return m.cmdState(arg), false

	case "/log":
		return m.cmdLog(), false

	case "/help":
		return m.cmdHelp(), false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdSave(name string) []string {
	if name == "" {
		name = "quicksave"
	}

	data, err := save.Encode(m.engine.Save())
	if err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	if err := os.MkdirAll(m.saveDir, 0o755); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	path := filepath.Join(m.saveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	return []string{fmt.Sprintf("Session saved to %s.", name)}
}

func (m *Model) cmdLoad(name string) []string {
	if name == "" {
		name = "quicksave"
	}

	path := filepath.Join(m.saveDir, name+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	data, err := save.Decode(raw)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	eng, err := engine.Load(m.def, data)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}
	m.engine = eng
	m.printed = 0

	snap := m.engine.Snapshot()
	output := []string{fmt.Sprintf("Session loaded from %s.", name)}
	output = append(output, snapshotLines(snap, 0, m.engine)...)
	m.printed = len(snap.Messages)
	return output
}

func (m *Model) cmdUndo() []string {
	snap, err := m.engine.Undo()
	if err != nil {
		return []string{fmt.Sprintf("Undo failed: %v", err)}
	}
	m.printed = len(snap.Messages)
	output := []string{"Last action undone."}
	return append(output, snapshotLines(snap, m.printed, m.engine)...)
}

func (m *Model) cmdReplay() []string {
	fresh, err := engine.Replay(m.def, m.engine.Game().Config, m.engine.ActionLog())
	if err != nil {
		return []string{fmt.Sprintf("Replay failed: %v", err)}
	}
	live := m.engine.Game()
	replayed := fresh.Game()
	switch {
	case !reflect.DeepEqual(live.Tree.Serialize(), replayed.Tree.Serialize()):
		return []string{"Replay DIVERGED: element trees differ."}
	case live.RNG.Position() != replayed.RNG.Position():
		return []string{"Replay DIVERGED: RNG positions differ."}
	default:
		return []string{fmt.Sprintf("Replay verified: %d actions, state identical.", len(m.engine.ActionLog()))}
	}
}

func (m *Model) cmdState(arg string) []string {
	node := m.engine.Game().Tree.Serialize()
	if arg != "" {
		seat, err := strconv.Atoi(arg)
		if err != nil {
			return []string{fmt.Sprintf("Bad seat %q", arg)}
		}
		node = m.engine.ViewFor(seat)
	}
	out, err := json.MarshalIndent(node, "", "  ")
	if err != nil {
		return []string{fmt.Sprintf("State dump failed: %v", err)}
	}
	return strings.Split(string(out), "\n")
}

func (m *Model) cmdLog() []string {
	log := m.engine.CommandLog()
	if len(log) == 0 {
		return []string{"Command log is empty."}
	}
	lines := make([]string, len(log))
	for i, cmd := range log {
		lines[i] = fmt.Sprintf("%4d  %s", i, cmd.Type())
	}
	return lines
}

func (m *Model) cmdHelp() []string {
	return []string{
		"System:",
		"  /save [name]   — Save session (default: quicksave)",
		"  /load [name]   — Load session (default: quicksave)",
		"  /undo          — Rewind the last action",
		"  /replay        — Verify the session replays deterministically",
		"  /state [seat]  — Dump the element tree (optionally a seat's view)",
		"  /log           — List the command log",
		"  /quit          — Exit",
		"  /help          — Show this help",
		"",
		"Playing:",
		"  <action> key=value ...  — Take an action (e.g. play card=5)",
		"  @N <action> ...         — Act as seat N in a simultaneous step",
		"  Values: numbers, true/false, text; commas make a list",
		"",
		"Navigation: PgUp/PgDn to scroll, Up/Down for command history",
	}
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
