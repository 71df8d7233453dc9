package action

import (
	"regexp"

	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/engine/game"
)

// Selection is one declared unit of player input. Kind carries the
// type-specific configuration; the surrounding fields are modifiers
// shared by every kind.
type Selection struct {
	Name   string
	Prompt string

	// Optional selections may be left unfilled.
	Optional bool

	// SkipIfOnlyOne auto-supplies the value when the current choice set
	// has exactly one member. A UX shortcut: it never changes what is
	// legal, only who has to type it.
	SkipIfOnlyOne bool

	// FilterBy intersects this selection's choice set with choices
	// whose Key field equals the value already committed for another
	// selection.
	FilterBy *FilterBy

	// Repeat makes the selection accumulate values across round trips
	// until Until holds.
	Repeat *Repeat

	// Validate runs last, after membership and structural checks.
	Validate func(g *game.Game, p *game.Player, args Args, value any) error

	Kind Kind
}

// FilterBy names the dependency between two selections.
type FilterBy struct {
	Key       string
	Selection string
}

// Repeat configures a repeating selection.
type Repeat struct {
	// Until decides, over the running collection, when accumulation
	// stops. Required.
	Until func(g *game.Game, p *game.Player, args Args, collected []any) bool
	// Each is an optional per-item hook invoked as each value commits.
	Each func(ctx *Context, value any) error
}

// Kind is the closed union of selection kinds. Choice, Player, Element,
// and Elements enumerate legal sets; Text and Number are checked
// structurally instead.
type Kind interface {
	isSelectionKind()
}

// Choice offers a value from a static list or a provider.
type Choice struct {
	Choices  []any
	Provider func(g *game.Game, p *game.Player, args Args) []any
}

// Player offers a seat from the roster, optionally filtered.
type Player struct {
	Filter func(g *game.Game, p *game.Player, args Args, candidate *game.Player) bool
}

// Element offers a single element drawn from a scope (default: the
// whole in-play tree), optionally class-restricted and filtered.
type Element struct {
	Scope func(g *game.Game, p *game.Player, args Args) []*element.Element
	Class string
	Where func(g *game.Game, p *game.Player, args Args, el *element.Element) bool
}

// Elements offers a set of elements from the same kind of scope.
// Min/Max bound how many may be chosen; zero Max means unbounded.
type Elements struct {
	Scope func(g *game.Game, p *game.Player, args Args) []*element.Element
	Class string
	Where func(g *game.Game, p *game.Player, args Args, el *element.Element) bool
	Min   int
	Max   int
}

// Text accepts free text checked against structural constraints.
type Text struct {
	Pattern *regexp.Regexp
	MinLen  int
	MaxLen  int
}

// Number accepts a numeric value within structural bounds. Nil bounds
// are open; Integer requires a whole number.
type Number struct {
	Min     *float64
	Max     *float64
	Integer bool
}

func (Choice) isSelectionKind()   {}
func (Player) isSelectionKind()   {}
func (Element) isSelectionKind()  {}
func (Elements) isSelectionKind() {}
func (Text) isSelectionKind()     {}
func (Number) isSelectionKind()   {}
