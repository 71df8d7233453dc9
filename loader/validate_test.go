package loader

import (
	"strings"
	"testing"

	"github.com/nathoo/boardcore/engine"
	"github.com/nathoo/boardcore/engine/action"
	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/engine/flow"
)

// validDef builds a minimal definition that passes validation.
func validDef() *engine.Definition {
	return &engine.Definition{
		Name:       "probe",
		MinPlayers: 2,
		MaxPlayers: 4,
		Classes: []element.Class{
			{Name: "card", Kind: element.KindPiece},
			{Name: "hand", Kind: element.KindSpace},
		},
		Actions: action.NewSet(&action.Def{Name: "pass"}),
		Flow:    flow.ActionStep{Actions: []string{"pass"}},
	}
}

// errorsContain reports whether validate rejects def with a message
// containing want.
func errorsContain(t *testing.T, def *engine.Definition, want string) {
	t.Helper()
	err := validate(def)
	if err == nil {
		t.Fatalf("validate passed, want error containing %q", want)
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error is %T, want *ValidationError", err)
	}
	for _, msg := range ve.Errors {
		if strings.Contains(msg, want) {
			return
		}
	}
	t.Fatalf("errors %v lack %q", ve.Errors, want)
}

func TestValidate_ValidDefinition(t *testing.T) {
	if err := validate(validDef()); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate_PlayerBounds(t *testing.T) {
	def := validDef()
	def.MinPlayers = -1
	errorsContain(t, def, "must not be negative")

	def = validDef()
	def.MinPlayers = 5
	def.MaxPlayers = 3
	errorsContain(t, def, "min_players 5 exceeds max_players 3")
}

func TestValidate_ReservedClassName(t *testing.T) {
	def := validDef()
	def.Classes = append(def.Classes, element.Class{Name: element.RootClass, Kind: element.KindSpace})
	errorsContain(t, def, "reserved")

	def = validDef()
	def.Classes = append(def.Classes, element.Class{Name: element.SinkClass, Kind: element.KindSpace})
	errorsContain(t, def, "reserved")
}

func TestValidate_DuplicateClass(t *testing.T) {
	def := validDef()
	def.Classes = append(def.Classes, element.Class{Name: "card", Kind: element.KindSpace})
	errorsContain(t, def, `duplicate class "card"`)
}

func TestValidate_DuplicateSelection(t *testing.T) {
	def := validDef()
	def.Actions = action.NewSet(&action.Def{
		Name: "pass",
		Selections: []action.Selection{
			{Name: "x", Kind: action.Number{Integer: true}},
			{Name: "x", Kind: action.Number{Integer: true}},
		},
	})
	errorsContain(t, def, `duplicate selection "x"`)
}

func TestValidate_FilterByMustReferenceEarlierSelection(t *testing.T) {
	def := validDef()
	def.Actions = action.NewSet(&action.Def{
		Name: "pass",
		Selections: []action.Selection{
			{
				Name:     "card",
				Kind:     action.Element{Class: "card"},
				FilterBy: &action.FilterBy{Key: "suit", Selection: "suit"},
			},
			{Name: "suit", Kind: action.Choice{Choices: []any{"hearts"}}},
		},
	})
	errorsContain(t, def, "not an earlier selection")

	def = validDef()
	def.Actions = action.NewSet(&action.Def{
		Name: "pass",
		Selections: []action.Selection{
			{
				Name:     "card",
				Kind:     action.Element{Class: "card"},
				FilterBy: &action.FilterBy{Key: "", Selection: ""},
			},
		},
	})
	errorsContain(t, def, "needs key and selection")
}

func TestValidate_UnknownElementClass(t *testing.T) {
	def := validDef()
	def.Actions = action.NewSet(&action.Def{
		Name: "pass",
		Selections: []action.Selection{
			{Name: "pick", Kind: action.Element{Class: "token"}},
		},
	})
	errorsContain(t, def, `unknown class "token"`)
}

func TestValidate_ElementsMinExceedsMax(t *testing.T) {
	def := validDef()
	def.Actions = action.NewSet(&action.Def{
		Name: "pass",
		Selections: []action.Selection{
			{Name: "picks", Kind: action.Elements{Class: "card", Min: 4, Max: 2}},
		},
	})
	errorsContain(t, def, "min 4 exceeds max 2")
}

func TestValidate_FlowReferencesUndefinedAction(t *testing.T) {
	def := validDef()
	def.Flow = flow.Sequence{Steps: []flow.Node{
		flow.Loop{Do: flow.ActionStep{Actions: []string{"pass", "ghost"}}},
	}}
	errorsContain(t, def, `undefined action "ghost"`)
}

func TestValidate_MissingFlow(t *testing.T) {
	def := validDef()
	def.Flow = nil
	errorsContain(t, def, "no flow defined")
}

func TestValidate_NeverOfferedActionIsWarningOnly(t *testing.T) {
	def := validDef()
	def.Actions = action.NewSet(
		&action.Def{Name: "pass"},
		&action.Def{Name: "orphan"},
	)
	if err := validate(def); err != nil {
		t.Fatalf("warning should not fail validation: %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	ve := &ValidationError{Errors: []string{"first", "second"}}
	msg := ve.Error()
	if !strings.Contains(msg, "2 error(s)") || !strings.Contains(msg, "first") || !strings.Contains(msg, "second") {
		t.Fatalf("Error() = %q", msg)
	}
}
