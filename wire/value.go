package wire

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shibukawa/fastest"
)

// wireValue is the msgpack-serializable rendering of fastest.Value. A
// decimal.Decimal does not round-trip through msgpack on its own, so
// floats cross the wire as their canonical string form and are
// reparsed on arrival.
type wireValue struct {
	Kind     string               `msgpack:"kind"`
	Raw      string               `msgpack:"raw"`
	Str      string               `msgpack:"str,omitempty"`
	Int      int64                `msgpack:"int,omitempty"`
	Float    string               `msgpack:"float,omitempty"`
	Bool     bool                 `msgpack:"bool,omitempty"`
	Elements []wireValue          `msgpack:"elements,omitempty"`
	Entries  map[string]wireValue `msgpack:"entries,omitempty"`
}

func toWireValue(v fastest.Value) wireValue {
	w := wireValue{Kind: v.Kind.String(), Raw: v.Raw, Str: v.Str, Int: v.Int, Bool: v.Bool}

	if v.Kind == fastest.KindFloat {
		w.Float = v.Float.String()
	}

	for _, el := range v.Elements {
		w.Elements = append(w.Elements, toWireValue(el))
	}

	if v.Entries != nil {
		w.Entries = make(map[string]wireValue, len(v.Entries))
		for k, el := range v.Entries {
			w.Entries[k] = toWireValue(el)
		}
	}

	return w
}

func fromWireValue(w wireValue) (fastest.Value, error) {
	switch w.Kind {
	case "raw":
		return fastest.RawValue(w.Raw), nil
	case "string":
		return fastest.StringValue(w.Raw, w.Str), nil
	case "int":
		return fastest.IntValue(w.Raw, w.Int), nil
	case "bool":
		return fastest.BoolValue(w.Raw, w.Bool), nil
	case "none":
		return fastest.NoneValue(w.Raw), nil
	case "float":
		d, err := decimal.NewFromString(w.Float)
		if err != nil {
			return fastest.Value{}, fmt.Errorf("wire: decode float value %q: %w", w.Float, err)
		}

		return fastest.FloatValue(w.Raw, d), nil
	case "tuple", "list":
		els := make([]fastest.Value, 0, len(w.Elements))

		for _, wel := range w.Elements {
			el, err := fromWireValue(wel)
			if err != nil {
				return fastest.Value{}, err
			}

			els = append(els, el)
		}

		if w.Kind == "tuple" {
			return fastest.TupleValue(w.Raw, els...), nil
		}

		return fastest.ListValue(w.Raw, els...), nil
	case "dict":
		entries := make(map[string]fastest.Value, len(w.Entries))

		for k, wel := range w.Entries {
			el, err := fromWireValue(wel)
			if err != nil {
				return fastest.Value{}, err
			}

			entries[k] = el
		}

		return fastest.DictValue(w.Raw, entries), nil
	default:
		return fastest.Value{}, fmt.Errorf("wire: unknown value kind %q", w.Kind)
	}
}
