package fastest

// Fixture is a declared dependency provider (spec.md §3).
type Fixture struct {
	Name        string
	Path        string
	Scope       Scope
	Autouse     bool
	Params      []Value
	IDs         []string
	Deps        []string
	IsGenerator bool
	IsAsync     bool
	// Builtin marks one of the fixed built-in fixtures (tmp_path,
	// tmp_path_factory, capsys, monkeypatch, request) rather than one
	// discovered from source.
	Builtin bool
}

// ScopeKey identifies a fixture's cache slot, per spec.md §3:
//
//	function: (fixture_name, test_item.id)
//	class:    (fixture_name, path, class_name)
//	module:   (fixture_name, path)
//	session:  (fixture_name)
type ScopeKey struct {
	FixtureName string
	TestID      string // function scope only
	Path        string // class/module scope
	ClassName   string // class scope only
}

// Key renders the ScopeKey as a unique string suitable for map lookups.
func (k ScopeKey) Key() string {
	return k.FixtureName + "\x00" + k.Path + "\x00" + k.ClassName + "\x00" + k.TestID
}

// ScopeKeyFor computes a fixture's scope cache key for a given test item.
func ScopeKeyFor(fixtureScope Scope, fixtureName string, item *TestItem) ScopeKey {
	switch fixtureScope {
	case ScopeFunction:
		return ScopeKey{FixtureName: fixtureName, TestID: item.ID}
	case ScopeClass:
		return ScopeKey{FixtureName: fixtureName, Path: item.Path, ClassName: item.ClassName}
	case ScopeModule:
		return ScopeKey{FixtureName: fixtureName, Path: item.Path}
	default: // ScopeSession
		return ScopeKey{FixtureName: fixtureName}
	}
}

// PlanEntry is one fixture resolved into a test's setup/teardown order.
type PlanEntry struct {
	Name    string
	Scope   Scope
	Autouse bool
	// IndirectParam is non-nil when this fixture receives an indirect
	// parametrize value via request.param (spec.md §4.2).
	IndirectParam *Value
	Key           ScopeKey
	// IsGenerator mirrors the source Fixture's IsGenerator flag; the
	// Scheduler uses it to decide whether a session/module-scoped
	// fixture is safe to batch across multiple items in one unit
	// (spec.md §4.5).
	IsGenerator bool
}

// FixturePlan is the per-test resolved fixture artifact (spec.md §3):
// a topologically sorted setup order, whose reverse is the teardown order.
type FixturePlan struct {
	Setup []PlanEntry
}

// Teardown returns the plan's fixtures in reverse setup order.
func (p FixturePlan) Teardown() []PlanEntry {
	out := make([]PlanEntry, len(p.Setup))
	for i, e := range p.Setup {
		out[len(p.Setup)-1-i] = e
	}

	return out
}
