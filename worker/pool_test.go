package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shibukawa/fastest"
)

func newHelperPool(t *testing.T, size int) *Pool {
	t.Helper()

	require.NoError(t, os.Setenv(helperProcessEnv, "1"))
	t.Cleanup(func() { os.Unsetenv(helperProcessEnv) })

	p := NewPool(fastest.WorkerConfig{
		BinaryPath:   os.Args[0],
		GracePeriod:  2 * time.Second,
		RespawnLimit: 2,
	}, size, t.TempDir())
	p.args = []string{"-test.run=^TestHelperProcess$"}

	return p
}

func TestPool_DispatchLazySpawnsUpToSize(t *testing.T) {
	p := newHelperPool(t, 2)
	ctx := context.Background()

	unit := &fastest.WorkUnit{Items: []*fastest.TestItem{{ID: "t.py::test_ok"}}, Plans: map[string]fastest.FixturePlan{}}

	results, err := p.Dispatch(ctx, 1, unit)
	require.NoError(t, err)
	assert.Equal(t, fastest.Passed, results[0].Outcome)
	assert.Equal(t, 1, p.Live())

	require.NoError(t, p.Shutdown(ctx))
}

func TestPool_DispatchRecoversFromCrash(t *testing.T) {
	p := newHelperPool(t, 1)
	ctx := context.Background()

	crashUnit := &fastest.WorkUnit{Items: []*fastest.TestItem{{ID: "t.py::test_x[crash]"}}, Plans: map[string]fastest.FixturePlan{}}

	results, err := p.Dispatch(ctx, 1, crashUnit)
	require.NoError(t, err) // crash is reported as a result, not a Dispatch error
	require.Equal(t, 1, len(results))
	assert.Equal(t, fastest.Error, results[0].Outcome)
	assert.Equal(t, "WorkerCrashed", results[0].ErrorType)

	okUnit := &fastest.WorkUnit{Items: []*fastest.TestItem{{ID: "t.py::test_ok"}}, Plans: map[string]fastest.FixturePlan{}}

	results, err = p.Dispatch(ctx, 2, okUnit)
	require.NoError(t, err)
	assert.Equal(t, fastest.Passed, results[0].Outcome)

	require.NoError(t, p.Shutdown(ctx))
}

func TestPool_ShutdownIsIdempotentAcrossWorkers(t *testing.T) {
	p := newHelperPool(t, 2)
	ctx := context.Background()

	unit := &fastest.WorkUnit{Items: []*fastest.TestItem{{ID: "t.py::test_ok"}}, Plans: map[string]fastest.FixturePlan{}}

	_, err := p.Dispatch(ctx, 1, unit)
	require.NoError(t, err)

	require.NoError(t, p.Shutdown(ctx))
	require.NoError(t, p.Shutdown(ctx))
}
