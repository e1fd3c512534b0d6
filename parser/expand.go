package parser

import (
	"fmt"
	"strings"

	"github.com/shibukawa/fastest"
)

// ExpandParametrize applies every `@parametrize` marker on item and
// returns one TestItem per combination (spec.md §4.2). Markers are
// applied in the order they appear in item.Markers, which splitDecorators
// preserves as source (outer-to-inner) order; since each successive
// marker's combinations are nested inside the previous one's, the
// outermost decorator varies slowest and the innermost (closest to the
// function) varies fastest — matching pytest's own stacking semantics.
//
// indirect lists, across all parametrize markers on item, the argument
// names whose values must be routed through a same-named fixture instead
// of bound directly (spec.md §4.2 "indirect parametrization").
func ExpandParametrize(item fastest.TestItem) (items []fastest.TestItem, indirect []string, err error) {
	type pending struct {
		item    fastest.TestItem
		idParts []string // one joined-id chunk per applied parametrize marker, innermost-first
	}

	pendings := []pending{{item: item}}

	for _, m := range item.Markers {
		if m.Name != "parametrize" {
			continue
		}

		names, values, ids, ind, perr := parseParametrizeMarker(m)
		if perr != nil {
			return nil, nil, perr
		}

		indirect = append(indirect, ind...)

		var next []pending

		for _, p := range pendings {
			expanded, chunks, eerr := expandOne(p.item, names, values, ids)
			if eerr != nil {
				return nil, nil, eerr
			}

			for i, e := range expanded {
				// Markers are processed outermost first, so each later
				// (closer-to-function) decorator's chunk is prepended and the
				// innermost decorator's chunk ends up first in the id —
				// matching pytest's left-to-right id ordering for stacked
				// parametrize.
				parts := append([]string{chunks[i]}, p.idParts...)
				next = append(next, pending{item: e, idParts: parts})
			}
		}

		pendings = next
	}

	items = make([]fastest.TestItem, 0, len(pendings))

	for _, p := range pendings {
		final := p.item
		if len(p.idParts) > 0 {
			final.ID = final.ID + "[" + strings.Join(p.idParts, "-") + "]"
		}

		items = append(items, final)
	}

	return items, indirect, nil
}

func parseParametrizeMarker(m fastest.Marker) (names []string, values []fastest.Value, ids []string, indirect []string, err error) {
	if len(m.PositionalArgs) < 2 {
		return nil, nil, nil, nil, fmt.Errorf("%w: parametrize requires argnames and argvalues", fastest.ErrInvalidParametrize)
	}

	names = parseArgNames(m.PositionalArgs[0])

	argvalues := m.PositionalArgs[1]
	switch argvalues.Kind {
	case fastest.KindList, fastest.KindTuple:
		values = argvalues.Elements
	default:
		values = []fastest.Value{argvalues}
	}

	if idsVal, ok := m.NamedArgs["ids"]; ok {
		ids = parseIDs(idsVal, len(values))
	}

	switch indVal, ok := m.NamedArgs["indirect"]; {
	case !ok:
	case indVal.Kind == fastest.KindBool:
		if indVal.Bool {
			indirect = append(indirect, names...)
		}
	case indVal.Kind == fastest.KindList || indVal.Kind == fastest.KindTuple:
		for _, el := range indVal.Elements {
			if el.Kind == fastest.KindString {
				indirect = append(indirect, el.Str)
			}
		}
	case indVal.Kind == fastest.KindString:
		indirect = append(indirect, indVal.Str)
	}

	return names, values, ids, indirect, nil
}

// parseArgNames handles both forms pytest accepts: a single comma-separated
// string ("x,y") and an explicit list/tuple of name strings (["x", "y"]).
func parseArgNames(v fastest.Value) []string {
	if v.Kind == fastest.KindList || v.Kind == fastest.KindTuple {
		names := make([]string, 0, len(v.Elements))
		for _, el := range v.Elements {
			names = append(names, strings.TrimSpace(el.Str))
		}

		return names
	}

	raw := v.Str
	if v.Kind != fastest.KindString {
		raw = v.Raw
	}

	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))

	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			names = append(names, t)
		}
	}

	return names
}

func parseIDs(v fastest.Value, n int) []string {
	if v.Kind != fastest.KindList && v.Kind != fastest.KindTuple {
		return nil
	}

	ids := make([]string, 0, n)
	for _, el := range v.Elements {
		if el.Kind == fastest.KindString {
			ids = append(ids, el.Str)
		} else {
			ids = append(ids, el.CanonicalID(len(ids)))
		}
	}

	return ids
}

// expandOne multiplies a single parent item by one parametrize marker's
// values, assigning one Param per name. It returns the expanded items
// alongside a parallel slice of per-case id chunks (unbracketed); the
// caller is responsible for composing the final bracketed ID once all
// stacked markers have been applied.
func expandOne(parent fastest.TestItem, names []string, values []fastest.Value, ids []string) ([]fastest.TestItem, []string, error) {
	out := make([]fastest.TestItem, 0, len(values))
	chunks := make([]string, 0, len(values))

	for i, val := range values {
		clone := cloneItem(parent)

		var caseVals []fastest.Value
		if len(names) > 1 {
			if val.Kind != fastest.KindTuple && val.Kind != fastest.KindList {
				return nil, nil, fmt.Errorf("%w: %d argnames but value %q is not a tuple", fastest.ErrInvalidParametrize, len(names), val.Raw)
			}

			caseVals = val.Elements
		} else {
			caseVals = []fastest.Value{val}
		}

		if len(caseVals) != len(names) {
			return nil, nil, fmt.Errorf("%w: argnames/argvalues arity mismatch", fastest.ErrInvalidParametrize)
		}

		idParts := make([]string, len(names))

		for j, name := range names {
			clone.Parameters = append(clone.Parameters, fastest.Param{Name: name, Value: caseVals[j]})
			idParts[j] = caseVals[j].CanonicalIDNamed(name, i)
		}

		caseID := strings.Join(idParts, "-")
		if i < len(ids) && ids[i] != "" {
			caseID = ids[i]
		}

		out = append(out, clone)
		chunks = append(chunks, caseID)
	}

	return out, chunks, nil
}

func cloneItem(item fastest.TestItem) fastest.TestItem {
	clone := item
	clone.Parameters = append([]fastest.Param(nil), item.Parameters...)
	clone.Markers = append([]fastest.Marker(nil), item.Markers...)
	clone.FixtureDeps = append([]string(nil), item.FixtureDeps...)

	return clone
}
