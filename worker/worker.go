// Package worker manages the subprocess lifecycle of test-execution
// workers and the pool that dispatches WorkUnits to them (spec.md §4.4).
package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shibukawa/fastest"
	"github.com/shibukawa/fastest/wire"
)

// readyTimeout bounds how long Spawn waits for a worker's readiness frame.
const readyTimeout = 10 * time.Second

// Worker wraps one worker subprocess and its IPC streams. A Worker
// executes at most one unit at a time; callers serialize Exec calls
// through the owning Pool.
type Worker struct {
	ID string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu      sync.Mutex
	retired bool
}

// Spawn starts the worker binary at binaryPath with workDir as its
// working directory and FASTEST_WORKER=1 added to its environment, then
// blocks until it emits its readiness frame (spec.md §6).
func Spawn(ctx context.Context, binaryPath, workDir string, args ...string) (*Worker, error) {
	cmd := exec.CommandContext(ctx, binaryPath, args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "FASTEST_WORKER=1")
	cmd.Stderr = os.Stderr // diagnostics channel, not parsed (spec.md §4.4)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker: stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("worker: start %s: %w", binaryPath, err)
	}

	w := &Worker{ID: uuid.NewString(), cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}

	if err := w.awaitReady(ctx); err != nil {
		_ = w.cmd.Process.Kill()

		return nil, err
	}

	return w, nil
}

func (w *Worker) awaitReady(ctx context.Context) error {
	type readyResult struct {
		err error
	}

	done := make(chan readyResult, 1)

	go func() {
		payload, err := wire.ReadFrame(w.stdout)
		if err != nil {
			done <- readyResult{err: fmt.Errorf("%w: %v", fastest.ErrWorkerCrashed, err)}

			return
		}

		resp, err := wire.UnmarshalResponse(payload)
		if err != nil {
			done <- readyResult{err: err}

			return
		}

		if resp.Kind != wire.KindReady {
			done <- readyResult{err: fmt.Errorf("worker: expected ready frame, got %q", resp.Kind)}

			return
		}

		done <- readyResult{}
	}()

	select {
	case r := <-done:
		return r.err
	case <-time.After(readyTimeout):
		return fmt.Errorf("worker: readiness frame not received within %s", readyTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyTeardown sends a fire-and-forget teardown notification for the
// given scope keys. The worker does not reply; any write error just
// means the worker is gone, which the next Exec/Shutdown will also
// discover.
func (w *Worker) NotifyTeardown(keys []string) error {
	payload, err := wire.MarshalRequest(wire.NewTeardownRequest(keys))
	if err != nil {
		return err
	}

	return wire.WriteFrame(w.stdin, payload)
}

// Exec sends a unit to the worker and waits for its result response. A
// closed stdout or any read error is reported as fastest.ErrWorkerCrashed
// so the pool can retire the worker and synthesize error results.
func (w *Worker) Exec(reqID uint64, unit *fastest.WorkUnit) ([]fastest.TestResult, error) {
	req := wire.NewExecRequest(reqID, unit)

	payload, err := wire.MarshalRequest(req)
	if err != nil {
		return nil, err
	}

	if err := wire.WriteFrame(w.stdin, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", fastest.ErrWorkerCrashed, err)
	}

	respPayload, err := wire.ReadFrame(w.stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fastest.ErrWorkerCrashed, err)
	}

	resp, err := wire.UnmarshalResponse(respPayload)
	if err != nil {
		return nil, err
	}

	switch resp.Kind {
	case wire.KindFatal:
		return nil, &fastest.WorkerCrashError{WorkerID: w.ID, ReqID: reqID, Reason: fmt.Errorf("%s", resp.Error)}
	case wire.KindResult:
		results := make([]fastest.TestResult, 0, len(resp.Results))
		for _, r := range resp.Results {
			results = append(results, wire.DecodeResult(r))
		}

		return results, nil
	default:
		return nil, fmt.Errorf("worker: unexpected response kind %q", resp.Kind)
	}
}

// Shutdown sends a shutdown request and waits up to grace for the
// process to exit cleanly, killing it if it does not.
func (w *Worker) Shutdown(grace time.Duration) error {
	w.mu.Lock()
	if w.retired {
		w.mu.Unlock()

		return nil
	}

	w.retired = true
	w.mu.Unlock()

	payload, err := wire.MarshalRequest(wire.NewShutdownRequest())
	if err == nil {
		_ = wire.WriteFrame(w.stdin, payload) // best effort; process may already be gone
	}

	_ = w.stdin.Close()

	exited := make(chan error, 1)
	go func() { exited <- w.cmd.Wait() }()

	select {
	case <-exited:
		return nil
	case <-time.After(grace):
		_ = w.cmd.Process.Kill()
		<-exited

		return nil
	}
}

// Kill terminates the worker immediately without attempting a graceful
// shutdown handshake, for crash cleanup.
func (w *Worker) Kill() {
	w.mu.Lock()
	w.retired = true
	w.mu.Unlock()

	_ = w.cmd.Process.Kill()
	_ = w.cmd.Wait()
}
