package fastest

// Scope is the lifetime of a fixture's cached value.
type Scope int

const (
	ScopeFunction Scope = iota
	ScopeClass
	ScopeModule
	ScopeSession
)

func (s Scope) String() string {
	switch s {
	case ScopeFunction:
		return "function"
	case ScopeClass:
		return "class"
	case ScopeModule:
		return "module"
	case ScopeSession:
		return "session"
	default:
		return "unknown"
	}
}

// ParseScope parses a scope name as it appears in source or on the wire.
func ParseScope(name string) (Scope, bool) {
	switch name {
	case "function", "":
		return ScopeFunction, true
	case "class":
		return ScopeClass, true
	case "module":
		return ScopeModule, true
	case "session":
		return ScopeSession, true
	default:
		return 0, false
	}
}

// WiderOrEqual reports whether s is the same as or a wider scope than
// other, i.e. whether a fixture of scope other is permitted to depend on
// one of scope s (spec.md §4.2: "session >= module >= class >= function").
func (s Scope) WiderOrEqual(other Scope) bool {
	return s >= other
}

// Marker is a decorator-driven annotation recognized or opaquely preserved
// on a TestItem: skip, skipif, xfail, parametrize, or a user marker.
type Marker struct {
	Name         string
	PositionalArgs []Value
	NamedArgs    map[string]Value
}

// Param is one resolved parametrize value bound to a test item, in
// declaration order.
type Param struct {
	Name  string
	Value Value
}

// TestItem is a single executable test occurrence, as specified in spec.md §3.
type TestItem struct {
	ID              string
	Path            string
	Line            int
	ModuleQualifier string
	ClassName       string
	FunctionName    string
	IsAsync         bool
	Parameters      []Param
	Markers         []Marker
	FixtureDeps     []string
}

// HasClass reports whether the item is bound to a test class.
func (t *TestItem) HasClass() bool { return t.ClassName != "" }

// Marker looks up the first marker with the given name, if any.
func (t *TestItem) Marker(name string) (Marker, bool) {
	for _, m := range t.Markers {
		if m.Name == name {
			return m, true
		}
	}

	return Marker{}, false
}
