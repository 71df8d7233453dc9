// Package cli provides terminal I/O, input parsing, and meta-command
// dispatch for boardcore game sessions.
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/nathoo/boardcore/engine"
	"github.com/nathoo/boardcore/engine/save"
	"github.com/nathoo/boardcore/types"
)

// CLI handles terminal interaction with the players. All seats share
// one terminal; simultaneous steps pick a seat with the "@N" prefix.
type CLI struct {
	Engine    *engine.Engine
	Def       *engine.Definition
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	EchoInput bool // echo each input line after the prompt (for script playback)

	printed int // messages already shown
}

// New creates a CLI wired to the given session.
func New(eng *engine.Engine, def *engine.Definition) *CLI {
	home, _ := os.UserHomeDir()
	saveDir := filepath.Join(home, ".boardcore", "saves")
	return &CLI{
		Engine:  eng,
		Def:     def,
		In:      os.Stdin,
		Out:     os.Stdout,
		SaveDir: saveDir,
	}
}

// Run starts the session loop: show the current snapshot, read a line,
// dispatch, repeat. It returns when the game ends or on /quit.
func (c *CLI) Run() error {
	snap, err := c.Engine.Start()
	if err != nil {
		return err
	}
	c.printSnapshot(snap)

	scanner := bufio.NewScanner(c.In)
	for {
		if snap.Complete {
			c.printWinners()
			return nil
		}
		c.print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return nil
			}
			snap = c.Engine.Snapshot()
			continue
		}

		inv, err := c.parseInvocation(input, c.Engine.Snapshot())
		if err != nil {
			c.printSystem(err.Error())
			continue
		}
		next, result, err := c.Engine.Resume(inv)
		if err != nil {
			c.printSystem(fmt.Sprintf("Engine fault: %v", err))
			return err
		}
		if !result.OK {
			c.printSystem(result.Error)
			continue
		}
		snap = next
		c.printSnapshot(snap)
	}
}

// parseInvocation reads the "action key=value ..." grammar. A leading
// "@N" selects the acting seat; otherwise the snapshot's current player
// acts. Comma-separated values become lists.
func (c *CLI) parseInvocation(input string, snap types.FlowSnapshot) (types.ActionInvocation, error) {
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
		key, raw, ok := strings.Cut(f, "=")
		if !ok {
			return types.ActionInvocation{}, fmt.Errorf("argument %q is not key=value", f)
		}
		if inv.Args == nil {
			inv.Args = map[string]any{}
		}
		inv.Args[key] = parseValue(raw)
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

// handleMeta dispatches meta-commands. Returns true if the session
// should exit.
func (c *CLI) handleMeta(input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/save":
		c.cmdSave(arg)

	case "/load":
		c.cmdLoad(arg)

	case "/undo":
		c.cmdUndo()

	case "/replay":
		c.cmdReplay()

	case "/state":
		c.cmdState(arg)

	case "/log":
		c.cmdLog()

	case "/help":
		c.cmdHelp()

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdSave(name string) {
	if name == "" {
		name = "quicksave"
	}
	data, err := save.Encode(c.Engine.Save())
	if err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	if err := os.MkdirAll(c.SaveDir, 0o755); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	path := filepath.Join(c.SaveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("Session saved to %s.", name))
}

func (c *CLI) cmdLoad(name string) {
	if name == "" {
		name = "quicksave"
	}
	path := filepath.Join(c.SaveDir, name+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	data, err := save.Decode(raw)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	eng, err := engine.Load(c.Def, data)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.Engine = eng
	c.printed = 0
	c.printSystem(fmt.Sprintf("Session loaded from %s.", name))
	c.printSnapshot(c.Engine.Snapshot())
}

func (c *CLI) cmdUndo() {
	snap, err := c.Engine.Undo()
	if err != nil {
		c.printSystem(fmt.Sprintf("Undo failed: %v", err))
		return
	}
	c.printed = len(snap.Messages)
	c.printSystem("Last action undone.")
	c.printSnapshot(snap)
}

// cmdReplay rebuilds the session from seed and action log and checks
// the result is state-identical to the live session.
func (c *CLI) cmdReplay() {
	fresh, err := engine.Replay(c.Def, c.Engine.Game().Config, c.Engine.ActionLog())
	if err != nil {
		c.printSystem(fmt.Sprintf("Replay failed: %v", err))
		return
	}
	live := c.Engine.Game()
	replayed := fresh.Game()
	switch {
	case !reflect.DeepEqual(live.Tree.Serialize(), replayed.Tree.Serialize()):
		c.printSystem("Replay DIVERGED: element trees differ.")
	case live.RNG.Position() != replayed.RNG.Position():
		c.printSystem("Replay DIVERGED: RNG positions differ.")
	default:
		c.printSystem(fmt.Sprintf("Replay verified: %d actions, state identical.", len(c.Engine.ActionLog())))
	}
}

// cmdState dumps the element tree. With a seat argument it shows that
// player's masked view; bare /state shows the full trusted state.
func (c *CLI) cmdState(arg string) {
	node := c.Engine.Game().Tree.Serialize()
	if arg != "" {
		seat, err := strconv.Atoi(arg)
		if err != nil {
			c.printSystem(fmt.Sprintf("Bad seat %q", arg))
			return
		}
		node = c.Engine.ViewFor(seat)
	}
	out, err := json.MarshalIndent(node, "", "  ")
	if err != nil {
		c.printSystem(fmt.Sprintf("State dump failed: %v", err))
		return
	}
	c.printLine(string(out))
}

func (c *CLI) cmdLog() {
	log := c.Engine.CommandLog()
	if len(log) == 0 {
		c.printSystem("Command log is empty.")
		return
	}
	for i, cmd := range log {
		c.printLine(fmt.Sprintf("%4d  %s", i, cmd.Type()))
	}
}

func (c *CLI) cmdHelp() {
	help := []string{
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
		"  Values: numbers, true/false, text; commas make a list (cards=3,7)",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

// printSnapshot shows new messages, then the prompt state.
func (c *CLI) printSnapshot(snap types.FlowSnapshot) {
	for ; c.printed < len(snap.Messages); c.printed++ {
		c.printLine(snap.Messages[c.printed])
	}
	if snap.Complete {
		return
	}
	if snap.Pending != nil {
		c.printLine(fmt.Sprintf("(%s continues: %d chosen so far)",
			snap.Pending.Action, len(snap.Pending.Collected)))
	}
	if snap.CurrentPlayer >= 0 {
		name := c.seatName(snap.CurrentPlayer)
		if snap.Prompt != "" {
			c.printLine(snap.Prompt)
		}
		c.printLine(fmt.Sprintf("%s to act: %s", name, strings.Join(snap.AvailableActions, ", ")))
		return
	}
	for _, ap := range snap.AwaitingPlayers {
		if ap.Completed {
			c.printLine(fmt.Sprintf("%s: done", c.seatName(ap.Player)))
			continue
		}
		c.printLine(fmt.Sprintf("%s (use @%d): %s",
			c.seatName(ap.Player), ap.Player, strings.Join(ap.AvailableActions, ", ")))
	}
}

func (c *CLI) printWinners() {
	winners, ok := c.Engine.Winners()
	if !ok {
		return
	}
	if len(winners) == 0 {
		c.printLine("Game over. No winner.")
		return
	}
	names := make([]string, len(winners))
	for i, w := range winners {
		names[i] = c.seatName(w)
	}
	c.printLine("Game over. Winner: " + strings.Join(names, ", "))
}

func (c *CLI) seatName(pos int) string {
	if p, ok := c.Engine.Game().Players.Player(pos); ok {
		return fmt.Sprintf("%s (seat %d)", p.Name(), pos)
	}
	return fmt.Sprintf("seat %d", pos)
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
