// Boardcore is a deterministic engine for turn-based multiplayer board
// and card games defined in Lua.
// Usage: boardcore [--version] [--plain] [--script <file>] [--session <file>]
//
//	[--players <a,b,...>] [--seed <seed>] <game_directory>
package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nathoo/boardcore/cli"
	"github.com/nathoo/boardcore/engine"
	"github.com/nathoo/boardcore/loader"
	"github.com/nathoo/boardcore/tui"
	"github.com/nathoo/boardcore/types"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// sessionFile is the YAML shape accepted by --session.
type sessionFile struct {
	Players []string `yaml:"players"`
	Seed    string   `yaml:"seed"`
}

func main() {
	plain := false
	var gameDir string
	var scriptFile string
	var sessionPath string
	var playersArg string
	seed := "boardcore"

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("boardcore %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--script":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--script requires a file path\n")
				os.Exit(1)
			}
			i++
			scriptFile = args[i]
		case "--session":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--session requires a file path\n")
				os.Exit(1)
			}
			i++
			sessionPath = args[i]
		case "--players":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--players requires a comma-separated list\n")
				os.Exit(1)
			}
			i++
			playersArg = args[i]
		case "--seed":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--seed requires a value\n")
				os.Exit(1)
			}
			i++
			seed = args[i]
		default:
			if gameDir == "" {
				gameDir = args[i]
			}
		}
	}

	if gameDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: boardcore [--version] [--plain] [--script <file>] [--session <file>] [--players <a,b,...>] [--seed <seed>] <game_directory>\n")
		os.Exit(1)
	}

	cfg := types.GameConfig{Seed: seed}
	if sessionPath != "" {
		raw, err := os.ReadFile(sessionPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading session file: %v\n", err)
			os.Exit(1)
		}
		var sess sessionFile
		if err := yaml.Unmarshal(raw, &sess); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing session file: %v\n", err)
			os.Exit(1)
		}
		cfg.Players = sess.Players
		if sess.Seed != "" {
			cfg.Seed = sess.Seed
		}
	}
	if playersArg != "" {
		cfg.Players = nil
		for _, name := range strings.Split(playersArg, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Players = append(cfg.Players, name)
			}
		}
	}

	// Load and compile the Lua game definition.
	def, err := loader.Load(gameDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading game: %v\n", err)
		os.Exit(1)
	}

	if len(cfg.Players) == 0 {
		n := def.MinPlayers
		if n <= 0 {
			n = 2
		}
		for i := 1; i <= n; i++ {
			cfg.Players = append(cfg.Players, fmt.Sprintf("Player %d", i))
		}
	}

	eng, err := engine.New(def, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating session: %v\n", err)
		os.Exit(1)
	}

	// Script mode: open file, force plain, echo inputs.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		fmt.Printf("%s — seed %q, %d players\n\n", def.Name, cfg.Seed, len(cfg.Players))
		c := cli.New(eng, def)
		c.In = f
		c.EchoInput = true
		if err := c.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Use plain CLI if --plain flag or stdout is not a terminal.
	if plain || !isTerminal() {
		fmt.Printf("%s — seed %q, %d players\n\n", def.Name, cfg.Seed, len(cfg.Players))
		c := cli.New(eng, def)
		if err := c.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := tui.Run(eng, def); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
