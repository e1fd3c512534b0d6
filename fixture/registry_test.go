package fixture

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shibukawa/fastest"
)

func dirOf(p string) string { return filepath.Dir(p) }

func TestRegistry_ResolvesFileLocalOverConftest(t *testing.T) {
	discovered := []fastest.Fixture{
		{Name: "db", Path: "pkg/conftest.py", Scope: fastest.ScopeSession},
		{Name: "db", Path: "pkg/test_mod.py", Scope: fastest.ScopeFunction},
	}

	r := NewRegistry(discovered, dirOf)

	fx, ok := r.Resolve("db", "pkg/test_mod.py")
	require.True(t, ok)
	assert.Equal(t, "pkg/test_mod.py", fx.Path)
}

func TestRegistry_BuiltinVisibleEverywhere(t *testing.T) {
	r := NewRegistry(nil, dirOf)

	fx, ok := r.Resolve("tmp_path", "some/deeply/nested/dir/test_x.py")
	require.True(t, ok)
	assert.True(t, fx.Builtin)
}

func TestRegistry_Plan_TopologicalOrder(t *testing.T) {
	discovered := []fastest.Fixture{
		{Name: "conn", Path: "conftest.py", Scope: fastest.ScopeSession, Deps: nil},
		{Name: "session_db", Path: "conftest.py", Scope: fastest.ScopeSession, Deps: []string{"conn"}},
	}
	r := NewRegistry(discovered, dirOf)

	item := &fastest.TestItem{ID: "test_x.py::test_x", Path: "test_x.py", FixtureDeps: []string{"session_db"}}

	plan, err := r.Plan(item, item.Path, nil)
	require.NoError(t, err)
	require.Equal(t, 2, len(plan.Setup))
	assert.Equal(t, "conn", plan.Setup[0].Name)
	assert.Equal(t, "session_db", plan.Setup[1].Name)
}

func TestRegistry_Plan_DetectsCycle(t *testing.T) {
	discovered := []fastest.Fixture{
		{Name: "a", Path: "conftest.py", Scope: fastest.ScopeFunction, Deps: []string{"b"}},
		{Name: "b", Path: "conftest.py", Scope: fastest.ScopeFunction, Deps: []string{"a"}},
	}
	r := NewRegistry(discovered, dirOf)

	item := &fastest.TestItem{ID: "t.py::test_x", Path: "t.py", FixtureDeps: []string{"a"}}

	_, err := r.Plan(item, item.Path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, fastest.ErrFixtureCycle)
}

func TestRegistry_Plan_DetectsScopeViolation(t *testing.T) {
	discovered := []fastest.Fixture{
		{Name: "narrow", Path: "conftest.py", Scope: fastest.ScopeFunction},
		{Name: "wide", Path: "conftest.py", Scope: fastest.ScopeSession, Deps: []string{"narrow"}},
	}
	r := NewRegistry(discovered, dirOf)

	item := &fastest.TestItem{ID: "t.py::test_x", Path: "t.py", FixtureDeps: []string{"wide"}}

	_, err := r.Plan(item, item.Path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, fastest.ErrFixtureScopeViolation)
}

func TestRegistry_Plan_MissingFixtureErrors(t *testing.T) {
	r := NewRegistry(nil, dirOf)
	item := &fastest.TestItem{ID: "t.py::test_x", Path: "t.py", FixtureDeps: []string{"nope"}}

	_, err := r.Plan(item, item.Path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, fastest.ErrFixtureNotFound)
}

func TestRegistry_Plan_AutouseSeeded(t *testing.T) {
	discovered := []fastest.Fixture{
		{Name: "setup_logging", Path: "conftest.py", Scope: fastest.ScopeSession, Autouse: true},
	}
	r := NewRegistry(discovered, dirOf)

	item := &fastest.TestItem{ID: "t.py::test_x", Path: "t.py"}

	plan, err := r.Plan(item, item.Path, nil)
	require.NoError(t, err)
	require.Equal(t, 1, len(plan.Setup))
	assert.Equal(t, "setup_logging", plan.Setup[0].Name)
}

func TestRegistry_Plan_MultipleAutouseFixturesAreOrderStable(t *testing.T) {
	discovered := []fastest.Fixture{
		{Name: "setup_logging", Path: "conftest.py", Scope: fastest.ScopeSession, Autouse: true},
		{Name: "module_setup", Path: "conftest.py", Scope: fastest.ScopeModule, Autouse: true},
		{Name: "class_autouse", Path: "conftest.py", Scope: fastest.ScopeClass, Autouse: true},
	}
	r := NewRegistry(discovered, dirOf)

	item := &fastest.TestItem{ID: "t.py::test_x", Path: "t.py"}

	var names []string

	for i := 0; i < 5; i++ {
		plan, err := r.Plan(item, item.Path, nil)
		require.NoError(t, err)

		got := make([]string, 0, len(plan.Setup))
		for _, e := range plan.Setup {
			got = append(got, e.Name)
		}

		if names == nil {
			names = got
		} else {
			assert.Equal(t, names, got)
		}
	}

	assert.Equal(t, []string{"class_autouse", "module_setup", "setup_logging"}, names)
}

func TestFixturePlan_TeardownReversesSetup(t *testing.T) {
	plan := fastest.FixturePlan{Setup: []fastest.PlanEntry{{Name: "a"}, {Name: "b"}, {Name: "c"}}}

	names := make([]string, 0, 3)
	for _, e := range plan.Teardown() {
		names = append(names, e.Name)
	}

	assert.Equal(t, []string{"c", "b", "a"}, names)
}
