package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shibukawa/fastest"
)

func TestReport_TalliesAndSuccess(t *testing.T) {
	r := NewReport(false)
	r.Add(fastest.TestResult{ID: "a", Outcome: fastest.Passed, Duration: 10 * time.Millisecond})
	r.Add(fastest.TestResult{ID: "b", Outcome: fastest.Skipped})
	r.Add(fastest.TestResult{ID: "c", Outcome: fastest.XFailed})

	assert.Equal(t, 1, r.Passed)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.XFailed)
	assert.True(t, r.Success())
	assert.Equal(t, 10*time.Millisecond, r.Duration)
}

func TestReport_FailureMakesRunUnsuccessful(t *testing.T) {
	r := NewReport(false)
	r.Add(fastest.TestResult{ID: "a", Outcome: fastest.Passed})
	r.Add(fastest.TestResult{ID: "b", Outcome: fastest.Failed, ErrorType: "AssertionError", ErrorMessage: "boom"})

	assert.False(t, r.Success())
	assert.Equal(t, 1, r.Failed)
}

func TestReport_StrictXPassFailsOnUnexpectedPass(t *testing.T) {
	strict := NewReport(true)
	strict.Add(fastest.TestResult{ID: "a", Outcome: fastest.XPassed})
	assert.False(t, strict.Success())

	lenient := NewReport(false)
	lenient.Add(fastest.TestResult{ID: "a", Outcome: fastest.XPassed})
	assert.True(t, lenient.Success())
}

func TestReport_ErrorOutcomeCountsAsUnsuccessful(t *testing.T) {
	r := NewReport(false)
	r.Add(fastest.TestResult{ID: "a", Outcome: fastest.Error, ErrorType: "WorkerCrashed"})

	assert.Equal(t, 1, r.Errored)
	assert.False(t, r.Success())
}

func TestReport_FailuresReturnsOnlyFailedAndErrored(t *testing.T) {
	r := NewReport(false)
	r.Add(fastest.TestResult{ID: "a", Outcome: fastest.Passed})
	r.Add(fastest.TestResult{ID: "b", Outcome: fastest.Failed})
	r.Add(fastest.TestResult{ID: "c", Outcome: fastest.Error})
	r.Add(fastest.TestResult{ID: "d", Outcome: fastest.Skipped})

	failures := r.Failures()
	assert.Len(t, failures, 2)
	assert.Equal(t, "b", failures[0].ID)
	assert.Equal(t, "c", failures[1].ID)
}
