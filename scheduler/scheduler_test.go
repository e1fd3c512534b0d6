package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shibukawa/fastest"
)

// fakeDispatcher runs units synchronously without any subprocess,
// recording which scope keys were broadcast for teardown.
type fakeDispatcher struct {
	mu        sync.Mutex
	teardowns [][]string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, _ uint64, unit *fastest.WorkUnit) ([]fastest.TestResult, error) {
	results := make([]fastest.TestResult, 0, len(unit.Items))
	for _, item := range unit.Items {
		results = append(results, fastest.TestResult{ID: item.ID, Outcome: fastest.Passed})
	}

	return results, nil
}

func (f *fakeDispatcher) BroadcastTeardown(keys []string) {
	if len(keys) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.teardowns = append(f.teardowns, keys)
}

func TestScheduler_RunAggregatesAllResults(t *testing.T) {
	items := []*fastest.TestItem{
		item("t.py::test_a", "t.py", ""),
		item("t.py::test_b", "t.py", ""),
	}
	plans := map[string]fastest.FixturePlan{
		"t.py::test_a": {},
		"t.py::test_b": {},
	}

	dispatcher := &fakeDispatcher{}
	s := New(dispatcher, fastest.SchedulingConfig{BatchSize: 16}, 0)

	report, err := s.Run(context.Background(), items, plans, fastest.WarmWorkers)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Passed)
	assert.True(t, report.Success())
}

func TestScheduler_BroadcastsTeardownWhenLastUnitReferencingScopeCompletes(t *testing.T) {
	items := []*fastest.TestItem{
		item("t.py::C::test_a", "t.py", "C"),
		item("t.py::C::test_b", "t.py", "C"),
	}
	plans := map[string]fastest.FixturePlan{
		"t.py::C::test_a": classScopedPlan("t.py", "C"),
		"t.py::C::test_b": classScopedPlan("t.py", "C"),
	}

	dispatcher := &fakeDispatcher{}
	// batchSize=1 forces two units sharing the same class-scoped fixture
	// key; teardown should fire only once, after the second unit.
	s := New(dispatcher, fastest.SchedulingConfig{BatchSize: 1}, 0)

	_, err := s.Run(context.Background(), items, plans, fastest.WarmWorkers)
	require.NoError(t, err)

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	require.Len(t, dispatcher.teardowns, 1)
	assert.Contains(t, dispatcher.teardowns[0][0], "conn")
}

func TestScheduler_PropagatesDispatchError(t *testing.T) {
	items := []*fastest.TestItem{item("t.py::test_a", "t.py", "")}
	plans := map[string]fastest.FixturePlan{"t.py::test_a": {}}

	dispatcher := &erroringDispatcher{}
	s := New(dispatcher, fastest.SchedulingConfig{BatchSize: 16}, 0)

	_, err := s.Run(context.Background(), items, plans, fastest.WarmWorkers)
	assert.Error(t, err)
}

type erroringDispatcher struct{}

func (e *erroringDispatcher) Dispatch(context.Context, uint64, *fastest.WorkUnit) ([]fastest.TestResult, error) {
	return nil, fastest.ErrNoWorkerAvailable
}

func (e *erroringDispatcher) BroadcastTeardown([]string) {}
