package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/nathoo/boardcore/engine"
	"github.com/nathoo/boardcore/engine/action"
	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/engine/flow"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

// validate cross-checks a compiled definition: flow steps must
// reference defined actions, selection dependencies must point at
// earlier selections, and class declarations must be coherent.
// Catching these at load time keeps authoring errors out of live
// sessions.
func validate(def *engine.Definition) error {
	ve := &ValidationError{}

	if def.MinPlayers < 0 || def.MaxPlayers < 0 {
		ve.Errors = append(ve.Errors, "player bounds must not be negative")
	}
	if def.MinPlayers > 0 && def.MaxPlayers > 0 && def.MinPlayers > def.MaxPlayers {
		ve.Errors = append(ve.Errors, fmt.Sprintf(
			"min_players %d exceeds max_players %d", def.MinPlayers, def.MaxPlayers))
	}

	// Class names unique, reserved names rejected.
	classes := map[string]bool{
		element.RootClass: true,
		element.SinkClass: true,
	}
	for _, c := range def.Classes {
		switch {
		case c.Name == element.RootClass || c.Name == element.SinkClass:
			ve.Errors = append(ve.Errors, fmt.Sprintf("class name %q is reserved", c.Name))
		case classes[c.Name]:
			ve.Errors = append(ve.Errors, fmt.Sprintf("duplicate class %q", c.Name))
		default:
			classes[c.Name] = true
		}
	}

	for _, name := range def.Actions.Names() {
		d, _ := def.Actions.Get(name)
		validateAction(d, classes, ve)
	}

	if def.Flow != nil {
		validateFlow(def.Flow, def, ve)
	} else {
		ve.Errors = append(ve.Errors, "no flow defined")
	}

	// Warnings: actions no flow step ever offers.
	offered := map[string]bool{}
	if def.Flow != nil {
		collectOffered(def.Flow, offered)
	}
	for _, name := range def.Actions.Names() {
		if !offered[name] {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf(
				"action %q is never offered by any flow step", name))
		}
	}

	for _, w := range ve.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAction(d *action.Def, classes map[string]bool, ve *ValidationError) {
	seen := map[string]bool{}
	for _, sel := range d.Selections {
		if seen[sel.Name] {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"action %q: duplicate selection %q", d.Name, sel.Name))
		}
		if sel.FilterBy != nil {
			if sel.FilterBy.Key == "" || sel.FilterBy.Selection == "" {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"action %q selection %q: filter_by needs key and selection", d.Name, sel.Name))
			} else if !seen[sel.FilterBy.Selection] {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"action %q selection %q: filter_by references %q, which is not an earlier selection",
					d.Name, sel.Name, sel.FilterBy.Selection))
			}
		}
		switch k := sel.Kind.(type) {
		case action.Element:
			if k.Class != "" && !classes[k.Class] {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"action %q selection %q: unknown class %q", d.Name, sel.Name, k.Class))
			}
		case action.Elements:
			if k.Class != "" && !classes[k.Class] {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"action %q selection %q: unknown class %q", d.Name, sel.Name, k.Class))
			}
			if k.Max > 0 && k.Min > k.Max {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"action %q selection %q: min %d exceeds max %d", d.Name, sel.Name, k.Min, k.Max))
			}
		}
		seen[sel.Name] = true
	}
}

// validateFlow walks the static node tree checking every declared
// action name resolves.
func validateFlow(n flow.Node, def *engine.Definition, ve *ValidationError) {
	switch node := n.(type) {
	case flow.Sequence:
		for _, child := range node.Steps {
			validateFlow(child, def, ve)
		}
	case flow.Loop:
		validateFlow(node.Do, def, ve)
	case flow.EachPlayer:
		validateFlow(node.Do, def, ve)
	case flow.ForEach:
		validateFlow(node.Do, def, ve)
	case flow.ActionStep:
		checkActionNames(node.Actions, def, ve)
	case flow.SimultaneousActionStep:
		checkActionNames(node.Actions, def, ve)
	case flow.Switch:
		for _, c := range node.Cases {
			validateFlow(c.Do, def, ve)
		}
		if node.Default != nil {
			validateFlow(node.Default, def, ve)
		}
	case flow.If:
		validateFlow(node.Then, def, ve)
		if node.Else != nil {
			validateFlow(node.Else, def, ve)
		}
	}
}

func checkActionNames(names []string, def *engine.Definition, ve *ValidationError) {
	for _, name := range names {
		if _, ok := def.Actions.Get(name); !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"flow step references undefined action %q", name))
		}
	}
}

// collectOffered records every action name any step declares.
func collectOffered(n flow.Node, out map[string]bool) {
	switch node := n.(type) {
	case flow.Sequence:
		for _, child := range node.Steps {
			collectOffered(child, out)
		}
	case flow.Loop:
		collectOffered(node.Do, out)
	case flow.EachPlayer:
		collectOffered(node.Do, out)
	case flow.ForEach:
		collectOffered(node.Do, out)
	case flow.ActionStep:
		for _, a := range node.Actions {
			out[a] = true
		}
	case flow.SimultaneousActionStep:
		for _, a := range node.Actions {
			out[a] = true
		}
	case flow.Switch:
		for _, c := range node.Cases {
			collectOffered(c.Do, out)
		}
		if node.Default != nil {
			collectOffered(node.Default, out)
		}
	case flow.If:
		collectOffered(node.Then, out)
		if node.Else != nil {
			collectOffered(node.Else, out)
		}
	}
}
