package action

import (
	"fmt"
	"strings"

	"github.com/nathoo/boardcore/engine/command"
	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/engine/game"
	"github.com/nathoo/boardcore/types"
)

// Advance drives one attempt at an action. raw holds primitive values
// keyed by selection name, exactly as they arrive off the wire.
//
// The return shapes are:
//   - result.OK false: a validation or execution failure; state did not
//     advance and any prior pending record is still live.
//   - result.OK true with non-nil pending: a repeating selection needs
//     more round trips; the pending record is serializable.
//   - result.OK true with nil pending: the action fully committed.
//
// Every declared selection is validated against a freshly recomputed
// legal set before Execute runs, so an attempt either fully commits or
// fails with no observable partial mutation (per-item Repeat hooks are
// the one documented exception, committed item by item).
func Advance(g *game.Game, exec *command.Executor, def *Def, p *game.Player,
	pending *types.PendingAction, raw map[string]any) (types.ActionResult, *types.PendingAction) {

	if def.Condition != nil && !def.Condition(g, p, Args{}) {
		return failResult("action %q is not available", def.Name), pending
	}

	args := Args{}
	prim := map[string]any{}
	var collected []any
	start := 0

	if pending != nil {
		start = pending.Selection
		collected = append(collected, pending.Collected...)
		for k, v := range pending.Values {
			prim[k] = v
		}
		// Committed selections were validated when first supplied; only
		// re-resolve them to live objects here.
		for i := 0; i < start && i < len(def.Selections); i++ {
			sel := def.Selections[i]
			v, ok := pending.Values[sel.Name]
			if !ok {
				continue
			}
			resolved, err := resolveValue(g, sel, v)
			if err != nil {
				return failResult("resuming %q: %v", def.Name, err), pending
			}
			args[sel.Name] = resolved
		}
	}

	var errs []string
	for i := start; i < len(def.Selections); i++ {
		sel := def.Selections[i]

		if sel.Repeat != nil {
			next, done, err := advanceRepeat(g, exec, def, p, sel, args, collected, raw[sel.Name])
			if err != nil {
				return types.ActionResult{OK: false, Error: err.Error()}, pending
			}
			collected = next
			if !done {
				return types.ActionResult{OK: true}, &types.PendingAction{
					Action:    def.Name,
					Player:    p.Position(),
					Selection: i,
					Values:    prim,
					Collected: collected,
				}
			}
			// Each item was validated when it arrived; only re-resolve
			// here, since per-item hooks may have shifted the legal set.
			resolved := make([]any, 0, len(collected))
			for _, item := range collected {
				r, err := resolveValue(g, sel, item)
				if err != nil {
					return failResult("%q: %v", def.Name, err), pending
				}
				resolved = append(resolved, r)
			}
			args[sel.Name] = resolved
			prim[sel.Name] = append([]any(nil), collected...)
			collected = nil
			continue
		}

		v, present := raw[sel.Name]
		if !present || v == nil {
			if sel.SkipIfOnlyOne {
				if set, enumerable := Choices(g, p, sel, args); enumerable && len(set) == 1 {
					v, present = set[0], true
				}
			}
		}
		if !present || v == nil {
			if sel.Optional {
				continue
			}
			errs = append(errs, fmt.Sprintf("selection %q requires a value", sel.Name))
			continue
		}
		resolved, err := validateOne(g, p, sel, args, v)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		args[sel.Name] = resolved
		prim[sel.Name] = primitiveOf(resolved)
	}

	if len(errs) > 0 {
		return types.ActionResult{OK: false, Error: strings.Join(errs, "; ")}, pending
	}

	payload, err := runExecute(def, &Context{Game: g, Exec: exec, Player: p, Args: args})
	if err != nil {
		return types.ActionResult{OK: false, Error: err.Error()}, pending
	}
	return types.ActionResult{OK: true, Payload: payload}, nil
}

// Execute runs an action that must complete in a single attempt, the
// common case for scripted and replayed invocations.
func Execute(g *game.Game, exec *command.Executor, def *Def, p *game.Player, raw map[string]any) types.ActionResult {
	result, pending := Advance(g, exec, def, p, nil, raw)
	if result.OK && pending != nil {
		return failResult("action %q: repeating selection %q is incomplete", def.Name, def.Selections[pending.Selection].Name)
	}
	return result
}

// advanceRepeat absorbs the newly supplied value(s) for a repeating
// selection, validating and hooking each item, and reports whether the
// terminator now holds.
func advanceRepeat(g *game.Game, exec *command.Executor, def *Def, p *game.Player,
	sel Selection, args Args, collected []any, supplied any) ([]any, bool, error) {

	if sel.Repeat.Until == nil {
		return nil, false, fmt.Errorf("action %q: repeating selection %q has no terminator", def.Name, sel.Name)
	}

	var items []any
	switch v := supplied.(type) {
	case nil:
	case []any:
		items = v
	default:
		items = []any{v}
	}

	for _, item := range items {
		resolved, err := validateOne(g, p, sel, argsWith(args, sel.Name, collected), item)
		if err != nil {
			return nil, false, fmt.Errorf("%q: %v", def.Name, err)
		}
		if sel.Repeat.Each != nil {
			ctx := &Context{Game: g, Exec: exec, Player: p, Args: argsWith(args, sel.Name, collected)}
			if err := sel.Repeat.Each(ctx, resolved); err != nil {
				return nil, false, fmt.Errorf("%q: %v", def.Name, err)
			}
		}
		collected = append(collected, primitiveOf(resolved))
	}

	return collected, sel.Repeat.Until(g, p, args, collected), nil
}

func argsWith(args Args, key string, value any) Args {
	out := Args{}
	for k, v := range args {
		out[k] = v
	}
	out[key] = value
	return out
}

// validateOne checks one supplied value against its selection and
// returns the resolved form (live Player/Element objects for those
// kinds). Membership is structural against a freshly recomputed set.
func validateOne(g *game.Game, p *game.Player, sel Selection, args Args, v any) (any, error) {
	var resolved any

	switch k := sel.Kind.(type) {
	case Choice:
		set, _ := Choices(g, p, sel, args)
		if !containsValue(set, v) {
			return nil, fmt.Errorf("selection %q: value is not a legal choice", sel.Name)
		}
		resolved = v

	case Player:
		pos, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("selection %q: player value must be a seat position", sel.Name)
		}
		set, _ := Choices(g, p, sel, args)
		if !containsValue(set, pos) {
			return nil, fmt.Errorf("selection %q: player %d is not a legal choice", sel.Name, pos)
		}
		target, _ := g.Players.Player(pos)
		resolved = target

	case Element:
		id, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("selection %q: element value must be an id", sel.Name)
		}
		set, _ := Choices(g, p, sel, args)
		if !containsValue(set, id) {
			return nil, fmt.Errorf("selection %q: element #%d is not a legal choice", sel.Name, id)
		}
		el, found := g.Element(id)
		if !found {
			return nil, fmt.Errorf("selection %q: unknown element #%d", sel.Name, id)
		}
		resolved = el

	case Elements:
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("selection %q: value must be a list of element ids", sel.Name)
		}
		if len(list) < k.Min {
			return nil, fmt.Errorf("selection %q: at least %d elements required", sel.Name, k.Min)
		}
		if k.Max > 0 && len(list) > k.Max {
			return nil, fmt.Errorf("selection %q: at most %d elements allowed", sel.Name, k.Max)
		}
		set, _ := Choices(g, p, sel, args)
		els := make([]*element.Element, 0, len(list))
		for _, item := range list {
			id, ok := toInt(item)
			if !ok {
				return nil, fmt.Errorf("selection %q: element value must be an id", sel.Name)
			}
			if !containsValue(set, id) {
				return nil, fmt.Errorf("selection %q: element #%d is not a legal choice", sel.Name, id)
			}
			el, found := g.Element(id)
			if !found {
				return nil, fmt.Errorf("selection %q: unknown element #%d", sel.Name, id)
			}
			els = append(els, el)
		}
		resolved = els

	case Text:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("selection %q: value must be text", sel.Name)
		}
		if k.MinLen > 0 && len(s) < k.MinLen {
			return nil, fmt.Errorf("selection %q: text shorter than %d characters", sel.Name, k.MinLen)
		}
		if k.MaxLen > 0 && len(s) > k.MaxLen {
			return nil, fmt.Errorf("selection %q: text longer than %d characters", sel.Name, k.MaxLen)
		}
		if k.Pattern != nil && !k.Pattern.MatchString(s) {
			return nil, fmt.Errorf("selection %q: text does not match required pattern", sel.Name)
		}
		resolved = s

	case Number:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("selection %q: value must be a number", sel.Name)
		}
		if k.Integer && f != float64(int64(f)) {
			return nil, fmt.Errorf("selection %q: value must be an integer", sel.Name)
		}
		if k.Min != nil && f < *k.Min {
			return nil, fmt.Errorf("selection %q: value below minimum %v", sel.Name, *k.Min)
		}
		if k.Max != nil && f > *k.Max {
			return nil, fmt.Errorf("selection %q: value above maximum %v", sel.Name, *k.Max)
		}
		resolved = f

	default:
		return nil, fmt.Errorf("selection %q: unknown selection kind", sel.Name)
	}

	if sel.Validate != nil {
		if err := sel.Validate(g, p, args, resolved); err != nil {
			return nil, fmt.Errorf("selection %q: %v", sel.Name, err)
		}
	}
	return resolved, nil
}

// resolveValue converts a primitive back to its live form without a
// membership check.
func resolveValue(g *game.Game, sel Selection, v any) (any, error) {
	switch sel.Kind.(type) {
	case Player:
		pos, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("selection %q: player value must be a seat position", sel.Name)
		}
		target, found := g.Players.Player(pos)
		if !found {
			return nil, fmt.Errorf("selection %q: no player at position %d", sel.Name, pos)
		}
		return target, nil
	case Element:
		id, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("selection %q: element value must be an id", sel.Name)
		}
		el, found := g.Element(id)
		if !found {
			return nil, fmt.Errorf("selection %q: unknown element #%d", sel.Name, id)
		}
		return el, nil
	default:
		return v, nil
	}
}

// primitiveOf reduces a resolved value back to its wire form for
// pending records and logs.
func primitiveOf(v any) any {
	switch val := v.(type) {
	case *game.Player:
		return val.Position()
	case *element.Element:
		return val.ID()
	case []*element.Element:
		ids := make([]any, len(val))
		for i, el := range val {
			ids[i] = el.ID()
		}
		return ids
	default:
		return v
	}
}

// runExecute invokes the action body inside the failure boundary:
// panics become failure results and never escape the engine.
func runExecute(def *Def, ctx *Context) (payload map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %q: %v", def.Name, r)
		}
	}()
	if def.Execute == nil {
		return nil, nil
	}
	payload, err = def.Execute(ctx)
	if err != nil {
		err = fmt.Errorf("action %q: %w", def.Name, err)
	}
	return payload, err
}

func failResult(format string, a ...any) types.ActionResult {
	return types.ActionResult{OK: false, Error: fmt.Sprintf(format, a...)}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case float32:
		if float64(n) == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
