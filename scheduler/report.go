package scheduler

import (
	"time"

	"github.com/shibukawa/fastest"
)

// Report is the aggregate outcome of one scheduler run (spec.md §6/§8),
// modeled on the teacher's TestSummary: a running tally plus every
// individual result.
type Report struct {
	StrictXPass bool

	Results []fastest.TestResult

	Passed   int
	Failed   int
	Skipped  int
	XFailed  int
	XPassed  int
	Errored  int
	Duration time.Duration
}

// NewReport builds an empty Report honoring the run's strict-xpass
// configuration (spec.md §6 "Exit behavior").
func NewReport(strictXPass bool) *Report {
	return &Report{StrictXPass: strictXPass}
}

// Add folds one TestResult into the report's tallies.
func (r *Report) Add(res fastest.TestResult) {
	r.Results = append(r.Results, res)
	r.Duration += res.Duration

	switch res.Outcome {
	case fastest.Passed:
		r.Passed++
	case fastest.Failed:
		r.Failed++
	case fastest.Skipped:
		r.Skipped++
	case fastest.XFailed:
		r.XFailed++
	case fastest.XPassed:
		r.XPassed++
	case fastest.Error:
		r.Errored++
	}
}

// Success reports whether every result counts as successful under the
// run's strict-xpass setting (spec.md §6).
func (r *Report) Success() bool {
	for _, res := range r.Results {
		if !res.Outcome.Successful(r.StrictXPass) {
			return false
		}
	}

	return true
}

// Failures returns every result that counts as a failure or error, in
// the order they were added — the subset a report writer highlights.
func (r *Report) Failures() []fastest.TestResult {
	var out []fastest.TestResult

	for _, res := range r.Results {
		if res.Outcome == fastest.Failed || res.Outcome == fastest.Error {
			out = append(out, res)
		}
	}

	return out
}
