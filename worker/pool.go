package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shibukawa/fastest"
)

// Pool owns a set of worker subprocesses and dispatches WorkUnits to
// them, spawning lazily up to size and respawning crashed workers up to
// a configured limit (spec.md §4.4).
type Pool struct {
	binaryPath   string
	workDir      string
	size         int
	grace        time.Duration
	respawnLimit int
	// args is appended to every Spawn invocation. Empty in production;
	// tests in this package set it to re-exec the test binary as a
	// helper process (see pool_test.go).
	args []string

	mu       sync.Mutex
	spawned  int
	live     map[*Worker]struct{}
	respawns int
	idle     chan *Worker
}

// NewPool builds a Pool that will spawn up to size workers of
// cfg.BinaryPath, rooted at workDir.
func NewPool(cfg fastest.WorkerConfig, size int, workDir string) *Pool {
	if size < 1 {
		size = 1
	}

	return &Pool{
		binaryPath:   cfg.BinaryPath,
		workDir:      workDir,
		size:         size,
		grace:        cfg.GracePeriod,
		respawnLimit: cfg.RespawnLimit,
		live:         make(map[*Worker]struct{}, size),
		idle:         make(chan *Worker, size),
	}
}

// acquire returns an idle worker, spawning a new one if the pool has not
// yet reached its target size, otherwise blocking until one frees up
// (spec.md §4.4 "at most one outstanding unit per worker").
func (p *Pool) acquire(ctx context.Context) (*Worker, error) {
	p.mu.Lock()
	canSpawn := p.spawned < p.size
	if canSpawn {
		p.spawned++
	}
	p.mu.Unlock()

	if canSpawn {
		w, err := Spawn(ctx, p.binaryPath, p.workDir, p.args...)
		if err != nil {
			p.mu.Lock()
			p.spawned--
			p.mu.Unlock()

			return nil, fmt.Errorf("%w: %v", fastest.ErrNoWorkerAvailable, err)
		}

		p.mu.Lock()
		p.live[w] = struct{}{}
		p.mu.Unlock()

		return w, nil
	}

	select {
	case w := <-p.idle:
		return w, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(w *Worker) {
	p.mu.Lock()
	_, stillLive := p.live[w]
	p.mu.Unlock()

	if stillLive {
		p.idle <- w
	}
}

func (p *Pool) retire(w *Worker) {
	p.mu.Lock()
	delete(p.live, w)
	p.mu.Unlock()

	w.Kill()
}

// Dispatch runs one unit on an idle worker. On a worker crash it
// synthesizes an error TestResult for every item in the unit, retires the
// worker, and attempts one respawn so the pool does not shrink below its
// target size (bounded by respawnLimit total over the pool's lifetime).
func (p *Pool) Dispatch(ctx context.Context, reqID uint64, unit *fastest.WorkUnit) ([]fastest.TestResult, error) {
	w, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}

	results, execErr := w.Exec(reqID, unit)
	if execErr == nil {
		p.release(w)

		return results, nil
	}

	var crashErr *fastest.WorkerCrashError

	fatal := errors.As(execErr, &crashErr)
	crashed := errors.Is(execErr, fastest.ErrWorkerCrashed)

	if !fatal && !crashed {
		p.release(w)

		return nil, execErr
	}

	// Both a closed/errored stream and an explicit "fatal" response mean
	// the worker cannot continue (spec.md §4.4); either way it is
	// retired and, if under the respawn limit, replaced.
	p.retire(w)
	p.respawnIfAllowed(ctx)

	synthesized := make([]fastest.TestResult, 0, len(unit.Items))
	for _, item := range unit.Items {
		synthesized = append(synthesized, fastest.TestResult{
			ID:           item.ID,
			Outcome:      fastest.Error,
			ErrorType:    "WorkerCrashed",
			ErrorMessage: execErr.Error(),
		})
	}

	return synthesized, nil
}

func (p *Pool) respawnIfAllowed(ctx context.Context) {
	p.mu.Lock()
	if p.respawns >= p.respawnLimit {
		p.mu.Unlock()

		return
	}

	p.respawns++
	p.spawned-- // make room for acquire() to spawn a replacement slot
	p.mu.Unlock()

	w, err := Spawn(ctx, p.binaryPath, p.workDir, p.args...)
	if err != nil {
		return // pool runs one worker short; Dispatch callers still make progress via remaining workers
	}

	p.mu.Lock()
	p.spawned++
	p.live[w] = struct{}{}
	p.mu.Unlock()

	p.idle <- w
}

// Shutdown sends every live worker a shutdown message in parallel and
// waits up to the configured grace period for each to exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	workers := make([]*Worker, 0, len(p.live))
	for w := range p.live {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	eg, _ := errgroup.WithContext(ctx)

	for _, w := range workers {
		w := w

		eg.Go(func() error {
			return w.Shutdown(p.grace)
		})
	}

	return eg.Wait()
}

// BroadcastTeardown notifies every live worker that the given scope
// keys have no more pending units referencing them (spec.md §4.5). The
// pool does not track which worker ran which unit, so this notifies
// all of them; a worker that never saw the scope key simply ignores it.
func (p *Pool) BroadcastTeardown(keys []string) {
	if len(keys) == 0 {
		return
	}

	p.mu.Lock()
	workers := make([]*Worker, 0, len(p.live))
	for w := range p.live {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	for _, w := range workers {
		_ = w.NotifyTeardown(keys) // best effort; a dead worker is handled by its next Exec
	}
}

// Live reports the number of workers currently spawned and not retired.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.live)
}
