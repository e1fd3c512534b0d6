package fastest

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ValueKind discriminates the literal shapes the parser recognizes without
// evaluating arbitrary expressions (spec.md §4.1).
type ValueKind int

const (
	KindRaw ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindNone
	KindTuple
	KindList
	KindDict
)

// Value is a literal representation of a parametrize argument or decorator
// argument. Anything the parser cannot recognize as a literal is preserved
// as KindRaw carrying the original source text, per spec.md §4.1.
type Value struct {
	Kind     ValueKind
	Raw      string // original source text, always populated
	Str      string
	Int      int64
	Float    decimal.Decimal
	Bool     bool
	Elements []Value          // Tuple/List
	Entries  map[string]Value // Dict, keyed by the dict key's canonical rendering
}

func RawValue(src string) Value                { return Value{Kind: KindRaw, Raw: src} }
func StringValue(src, s string) Value           { return Value{Kind: KindString, Raw: src, Str: s} }
func IntValue(src string, n int64) Value        { return Value{Kind: KindInt, Raw: src, Int: n} }
func BoolValue(src string, b bool) Value        { return Value{Kind: KindBool, Raw: src, Bool: b} }
func NoneValue(src string) Value                { return Value{Kind: KindNone, Raw: src} }
func TupleValue(src string, el ...Value) Value  { return Value{Kind: KindTuple, Raw: src, Elements: el} }
func ListValue(src string, el ...Value) Value   { return Value{Kind: KindList, Raw: src, Elements: el} }

func FloatValue(src string, d decimal.Decimal) Value {
	return Value{Kind: KindFloat, Raw: src, Float: d}
}

func DictValue(src string, entries map[string]Value) Value {
	return Value{Kind: KindDict, Raw: src, Entries: entries}
}

// CanonicalID renders a Value the way spec.md §4.1 specifies for
// parametrize id generation: integers/floats/strings/bools rendered
// literally, everything else falls back to `value<index>` since no
// parametrize argname is available to this caller.
func (v Value) CanonicalID(positionalIndex int) string {
	return v.canonicalID("value", positionalIndex)
}

// CanonicalIDNamed is CanonicalID for a caller that knows the parametrize
// argname the value was bound to: spec.md §4.1's non-literal fallback is
// `name<index>` (e.g. pytest's own `config0`/`config1` for a dict-valued
// "config" parametrize), not the value's kind.
func (v Value) CanonicalIDNamed(name string, positionalIndex int) string {
	return v.canonicalID(name, positionalIndex)
}

func (v Value) canonicalID(fallbackName string, positionalIndex int) string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return v.Float.String()
	case KindBool:
		if v.Bool {
			return "True"
		}

		return "False"
	case KindNone:
		return "None"
	default:
		return fmt.Sprintf("%s%d", fallbackName, positionalIndex)
	}
}

func (k ValueKind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindNone:
		return "none"
	case KindTuple:
		return "tuple"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	default:
		return "unknown"
	}
}
