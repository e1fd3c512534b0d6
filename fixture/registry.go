// Package fixture resolves a TestItem's fixture dependencies into an
// ordered setup/teardown plan (spec.md §3, §4.2): autouse seeding,
// transitive dependency expansion, topological sort, and cycle/missing/
// scope-violation detection.
package fixture

import (
	"fmt"
	"sort"

	"github.com/shibukawa/fastest"
)

// Registry holds every fixture visible to a test run, keyed by name with
// precedence: a file's own fixtures shadow its ancestor conftest.py
// fixtures, which shadow the built-ins (spec.md §4.1).
type Registry struct {
	// byName holds, per fixture name, the candidates in precedence order
	// (closest first); name resolution for a given test picks the first
	// candidate visible from that test's file.
	byName map[string][]Candidate
}

// Candidate is one fixture definition plus the directory scope it is
// visible from: its own file's directory for file-local fixtures, or a
// conftest.py's directory for fixtures shared across a subtree. Built-ins
// have an empty Dir, meaning visible everywhere.
type Candidate struct {
	Fixture fastest.Fixture
	Dir     string
}

// NewRegistry builds a Registry from every discovered fixture plus the
// fixed built-ins (tmp_path, tmp_path_factory, capsys, monkeypatch, request).
func NewRegistry(discovered []fastest.Fixture, dirOf func(path string) string) *Registry {
	r := &Registry{byName: map[string][]Candidate{}}

	for _, b := range builtins {
		r.add(Candidate{Fixture: b, Dir: ""})
	}

	for _, fx := range discovered {
		r.add(Candidate{Fixture: fx, Dir: dirOf(fx.Path)})
	}

	return r
}

func (r *Registry) add(c Candidate) {
	r.byName[c.Fixture.Name] = append(r.byName[c.Fixture.Name], c)
}

// Resolve finds the fixture visible to a test file at testPath with name,
// applying pytest's precedence order (spec.md §4.1): a fixture defined in
// testPath itself wins outright; otherwise the conftest.py whose
// directory is the longest (nearest) prefix of testPath's directory
// wins; built-ins (Dir == "") are the fallback. ok is false if no
// candidate is visible.
func (r *Registry) Resolve(name, testPath string) (fastest.Fixture, bool) {
	candidates, found := r.byName[name]
	if !found {
		return fastest.Fixture{}, false
	}

	testDir := dirname(testPath)

	var best *Candidate
	bestLen := -1
	var fileLocal *Candidate

	for i, c := range candidates {
		if c.Fixture.Path == testPath {
			fileLocal = &candidates[i]

			continue
		}

		if c.Dir != "" && !isUnder(testDir, c.Dir) {
			continue
		}

		l := len(c.Dir)
		if l > bestLen {
			bestLen = l
			best = &candidates[i]
		}
	}

	if fileLocal != nil {
		return fileLocal.Fixture, true
	}

	if best == nil {
		return fastest.Fixture{}, false
	}

	return best.Fixture, true
}

// dirname mirrors path/filepath.Dir without depending on the OS path
// separator, since fixture paths in the registry may be slash-separated
// regardless of platform (they come from discovery, not the filesystem
// APIs directly).
func dirname(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}

	return "."
}

func isUnder(testDir, fixtureDir string) bool {
	if fixtureDir == testDir {
		return true
	}

	return len(testDir) > len(fixtureDir) && testDir[:len(fixtureDir)] == fixtureDir && testDir[len(fixtureDir)] == '/'
}

// Plan resolves item's full fixture setup order: autouse fixtures visible
// to item's scope, item's declared FixtureDeps, and their transitive
// dependencies, topologically sorted so each fixture is set up only after
// everything it depends on (spec.md §3). testPath is item's source file
// path, used to apply file-local-over-conftest precedence.
func (r *Registry) Plan(item *fastest.TestItem, testPath string, indirect map[string]fastest.Value) (fastest.FixturePlan, error) {
	visiting := map[string]bool{}
	visited := map[string]bool{}

	var order []fastest.PlanEntry

	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}

		if visiting[name] {
			return fmt.Errorf("%w: %s", fastest.ErrFixtureCycle, name)
		}

		fx, ok := r.Resolve(name, testPath)
		if !ok {
			return fmt.Errorf("%w: %s", fastest.ErrFixtureNotFound, name)
		}

		visiting[name] = true

		for _, dep := range fx.Deps {
			if isBuiltinRequestParam(dep) {
				continue
			}

			if err := visit(dep); err != nil {
				return err
			}
		}

		for _, anc := range r.ancestorScopeViolations(fx, name, testPath) {
			return anc
		}

		visiting[name] = false
		visited[name] = true

		entry := fastest.PlanEntry{
			Name: name, Scope: fx.Scope, Autouse: fx.Autouse,
			Key: fastest.ScopeKeyFor(fx.Scope, name, item), IsGenerator: fx.IsGenerator,
		}

		if v, ok := indirect[name]; ok {
			vCopy := v
			entry.IndirectParam = &vCopy
		}

		order = append(order, entry)

		return nil
	}

	for _, name := range r.autouseNames(dirname(testPath)) {
		if err := visit(name); err != nil {
			return fastest.FixturePlan{}, err
		}
	}

	for _, name := range item.FixtureDeps {
		if err := visit(name); err != nil {
			return fastest.FixturePlan{}, err
		}
	}

	return fastest.FixturePlan{Setup: order}, nil
}

// ancestorScopeViolations reports an error if fx (depended on by name)
// has a narrower scope than the test item requires it to outlive — i.e.
// every fixture fx itself depends on must have equal or wider scope
// (spec.md §3: "session >= module >= class >= function").
func (r *Registry) ancestorScopeViolations(fx fastest.Fixture, name, testPath string) []error {
	var errs []error

	for _, dep := range fx.Deps {
		if isBuiltinRequestParam(dep) {
			continue
		}

		depFx, ok := r.Resolve(dep, testPath)
		if !ok {
			continue // reported separately by visit()'s ErrFixtureNotFound
		}

		if !depFx.Scope.WiderOrEqual(fx.Scope) {
			errs = append(errs, fmt.Errorf("%w: %s (scope %s) depends on %s (scope %s)",
				fastest.ErrFixtureScopeViolation, name, fx.Scope, dep, depFx.Scope))
		}
	}

	return errs
}

// autouseNames collects every autouse fixture name visible from testDir.
// r.byName is a Go map, so iteration order is randomized per run; the
// result is sorted before returning so that two independently-scoped
// autouse fixtures always seed Plan's Setup in the same order run to run
// (spec.md §8's idempotence property).
func (r *Registry) autouseNames(testDir string) []string {
	seen := map[string]bool{}

	var names []string

	for name, candidates := range r.byName {
		for _, c := range candidates {
			if c.Dir != "" && !isUnder(testDir, c.Dir) {
				continue
			}

			if c.Fixture.Autouse && !seen[name] {
				seen[name] = true

				names = append(names, name)
			}
		}
	}

	sort.Strings(names)

	return names
}

// isBuiltinRequestParam recognizes the special "request" fixture
// parameter name, which every fixture/test may accept without it being a
// real dependency edge in the graph (spec.md §4.3).
func isBuiltinRequestParam(name string) bool { return name == "request" }
