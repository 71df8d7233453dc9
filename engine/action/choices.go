package action

import (
	"reflect"

	"github.com/nathoo/boardcore/engine/element"
	"github.com/nathoo/boardcore/engine/game"
)

// Choices computes the current legal choice set for a selection, as
// primitives: raw values for choice kinds, seat positions for player
// kinds, element ids for element kinds. The second return is false for
// text and number selections, which have no enumerable set and are
// checked structurally instead.
//
// The set is recomputed on every call — callers must never cache it
// across mutations, and membership is structural, not reference-based.
func Choices(g *game.Game, p *game.Player, sel Selection, args Args) ([]any, bool) {
	switch k := sel.Kind.(type) {
	case Choice:
		list := k.Choices
		if k.Provider != nil {
			list = k.Provider(g, p, args)
		}
		return filterChoices(list, sel.FilterBy, args), true

	case Player:
		var out []any
		for _, cand := range g.Players.All() {
			if k.Filter != nil && !k.Filter(g, p, args, cand) {
				continue
			}
			out = append(out, cand.Position())
		}
		return out, true

	case Element:
		return elementChoices(g, p, sel, args, k.Scope, k.Class, k.Where), true

	case Elements:
		return elementChoices(g, p, sel, args, k.Scope, k.Class, k.Where), true
	}
	return nil, false
}

func elementChoices(g *game.Game, p *game.Player, sel Selection, args Args,
	scope func(*game.Game, *game.Player, Args) []*element.Element,
	class string,
	where func(*game.Game, *game.Player, Args, *element.Element) bool) []any {

	var pool []*element.Element
	if scope != nil {
		pool = scope(g, p, args)
	} else {
		pool = g.Tree.All()
	}

	var filterWant any
	filterActive := false
	if sel.FilterBy != nil {
		committed, ok := args[sel.FilterBy.Selection]
		if !ok {
			return nil
		}
		filterWant = primitiveValue(committed)
		filterActive = true
	}

	var out []any
	for _, el := range pool {
		if class != "" && el.Class() != class {
			continue
		}
		if where != nil && !where(g, p, args, el) {
			continue
		}
		if filterActive {
			attr, _ := el.Attr(sel.FilterBy.Key)
			if !equalValue(attr, filterWant) {
				continue
			}
		}
		out = append(out, el.ID())
	}
	return out
}

// filterChoices applies a FilterBy dependency to plain choice values.
// Only map-shaped choices carry a key field; others pass through when
// no filter applies and are dropped when one does.
func filterChoices(list []any, fb *FilterBy, args Args) []any {
	if fb == nil {
		return list
	}
	committed, ok := args[fb.Selection]
	if !ok {
		return nil
	}
	want := primitiveValue(committed)
	var out []any
	for _, c := range list {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if equalValue(m[fb.Key], want) {
			out = append(out, c)
		}
	}
	return out
}

// primitiveValue reduces a resolved value to the primitive form used in
// comparisons and wire formats: players become positions, elements ids.
func primitiveValue(v any) any {
	switch val := v.(type) {
	case *game.Player:
		return val.Position()
	case *element.Element:
		return val.ID()
	default:
		return v
	}
}

// containsValue reports structural (deep) membership, since choice
// objects may be rebuilt per call and numbers arrive from JSON as
// float64.
func containsValue(set []any, v any) bool {
	for _, c := range set {
		if equalValue(c, v) {
			return true
		}
	}
	return false
}

// equalValue compares two values structurally with numeric widening.
func equalValue(a, b any) bool {
	return reflect.DeepEqual(canonical(a), canonical(b))
}

// canonical rewrites numbers to float64 recursively so values that
// crossed a JSON boundary compare equal to natively built ones.
func canonical(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, x := range val {
			m[k] = canonical(x)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, x := range val {
			s[i] = canonical(x)
		}
		return s
	default:
		return v
	}
}
