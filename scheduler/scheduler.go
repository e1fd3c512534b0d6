package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/shibukawa/fastest"
	"github.com/shibukawa/fastest/worker"
)

// Dispatcher is the subset of worker.Pool the Scheduler depends on, so
// tests can substitute an in-process fake. cmd/fastest runs even the
// InProcess strategy through a one-worker worker.Pool.
type Dispatcher interface {
	Dispatch(ctx context.Context, reqID uint64, unit *fastest.WorkUnit) ([]fastest.TestResult, error)
	BroadcastTeardown(keys []string)
}

// Scheduler turns discovered items and their fixture plans into batched
// WorkUnits, dispatches them concurrently, tracks fixture-scope teardown,
// and aggregates the outcome into a Report (spec.md §4.5).
type Scheduler struct {
	pool        Dispatcher
	cfg         fastest.SchedulingConfig
	maxInFlight int
}

// New builds a Scheduler dispatching through pool, batching per cfg, with
// at most maxInFlight units dispatched concurrently (0 means unbounded,
// i.e. bounded only by the pool's own backpressure).
func New(pool Dispatcher, cfg fastest.SchedulingConfig, maxInFlight int) *Scheduler {
	return &Scheduler{pool: pool, cfg: cfg, maxInFlight: maxInFlight}
}

// Run batches items, dispatches every unit, and returns the aggregated
// Report. Results are folded into the Report in dispatch order, matching
// the input items slice, regardless of the order units actually complete
// in (spec.md §5: "results across units may interleave arbitrarily; the
// scheduler reassembles by dispatch sequence").
func (s *Scheduler) Run(ctx context.Context, items []*fastest.TestItem, plans map[string]fastest.FixturePlan, strategy fastest.Strategy) (*Report, error) {
	units := Batch(items, plans, strategy, s.cfg.BatchSize)
	runID := ulid.Make().String()

	perUnit := make([][]fastest.TestResult, len(units))
	tracker := newTeardownTracker(units)

	eg, egCtx := errgroup.WithContext(ctx)

	if s.maxInFlight > 0 {
		eg.SetLimit(s.maxInFlight)
	}

	for i, unit := range units {
		i, unit := i, unit
		unit.RunID = runID
		unit.ReqID = uint64(i + 1)

		eg.Go(func() error {
			results, err := s.pool.Dispatch(egCtx, unit.ReqID, unit)
			if err != nil {
				return err
			}

			perUnit[i] = results

			s.pool.BroadcastTeardown(tracker.complete(unit))

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	report := NewReport(s.cfg.StrictXPass)

	for _, results := range perUnit {
		for _, r := range results {
			report.Add(r)
		}
	}

	return report, nil
}

// teardownTracker counts, per fixture scope key, how many still-pending
// units reference it; when a unit completes and a key it touched drops to
// zero, that key is ready for teardown (spec.md §4.5).
type teardownTracker struct {
	mu      sync.Mutex
	pending map[string]int
}

func newTeardownTracker(units []*fastest.WorkUnit) *teardownTracker {
	t := &teardownTracker{pending: map[string]int{}}

	for _, unit := range units {
		for _, key := range scopeKeysOf(unit) {
			t.pending[key]++
		}
	}

	return t
}

// complete decrements every scope key unit referenced and returns the
// ones that reached zero, i.e. ready for teardown.
func (t *teardownTracker) complete(unit *fastest.WorkUnit) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ready []string

	for _, key := range scopeKeysOf(unit) {
		t.pending[key]--

		if t.pending[key] <= 0 {
			ready = append(ready, key)
			delete(t.pending, key)
		}
	}

	return ready
}

// scopeKeysOf returns the distinct class/module/session-scoped fixture
// keys any item in unit depends on.
func scopeKeysOf(unit *fastest.WorkUnit) []string {
	seen := map[string]bool{}

	var keys []string

	for _, plan := range unit.Plans {
		for _, e := range plan.Setup {
			if e.Scope != fastest.ScopeClass && e.Scope != fastest.ScopeModule && e.Scope != fastest.ScopeSession {
				continue
			}

			key := e.Key.Key()
			if !seen[key] {
				seen[key] = true

				keys = append(keys, key)
			}
		}
	}

	return keys
}

// WaitShutdown is a convenience helper CLIs use to bound pool shutdown by
// a grace period (spec.md §4.4), mirroring worker.Pool.Shutdown's own
// signature so callers don't need to import worker directly just for this.
func WaitShutdown(ctx context.Context, pool *worker.Pool, grace time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	return pool.Shutdown(shutdownCtx)
}
