// Package testworker is a minimal Go-native worker implementing the exact
// wire contract spec.md §4.4/§6 describes. It never inspects Python
// source or executes anything; item IDs ending in a bracketed suffix
// select a canned outcome, which is all the WorkerPool's tests need. It
// is exercised only by worker package tests, via the os.Args[0]
// re-exec helper-process pattern (see worker/main_test.go's TestHelperProcess).
package testworker

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/shibukawa/fastest"
	"github.com/shibukawa/fastest/wire"
)

// Main runs the worker loop to completion: emit the readiness frame,
// then service exec/shutdown requests until stdin closes or a shutdown
// arrives.
func Main() {
	run(os.Stdin, os.Stdout)
}

func run(in io.Reader, out io.Writer) {
	r := bufio.NewReader(in)
	w := bufio.NewWriter(out)

	if err := sendResponse(w, wire.Response{Kind: wire.KindReady}); err != nil {
		return
	}

	for {
		payload, err := wire.ReadFrame(r)
		if err != nil {
			return
		}

		req, err := wire.UnmarshalRequest(payload)
		if err != nil {
			return
		}

		switch req.Kind {
		case wire.KindShutdown:
			return
		case wire.KindTeardown:
			continue // no real fixtures to finalize in this reference worker
		case wire.KindExec:
			if req.Unit != nil && containsCrashItem(req.Unit.Items) {
				os.Exit(1)
			}

			resp := wire.NewResultResponse(req.ReqID, execResults(req.Unit))
			if sendResponse(w, resp) != nil {
				return
			}
		}
	}
}

func sendResponse(w *bufio.Writer, resp wire.Response) error {
	payload, err := wire.MarshalResponse(resp)
	if err != nil {
		return err
	}

	if err := wire.WriteFrame(w, payload); err != nil {
		return err
	}

	return w.Flush()
}

func containsCrashItem(items []wire.Item) bool {
	for _, item := range items {
		if strings.Contains(item.ID, "[crash]") {
			return true
		}
	}

	return false
}

func execResults(unit *wire.Unit) []fastest.TestResult {
	if unit == nil {
		return nil
	}

	results := make([]fastest.TestResult, 0, len(unit.Items))

	for _, item := range unit.Items {
		switch {
		case strings.Contains(item.ID, "[fail]"):
			results = append(results, fastest.TestResult{
				ID: item.ID, Outcome: fastest.Failed,
				ErrorType: "AssertionError", ErrorMessage: "synthetic failure",
			})
		case strings.Contains(item.ID, "[skip]"):
			results = append(results, fastest.TestResult{ID: item.ID, Outcome: fastest.Skipped})
		default:
			results = append(results, fastest.TestResult{ID: item.ID, Outcome: fastest.Passed})
		}
	}

	return results
}
