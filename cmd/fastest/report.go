package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/shibukawa/fastest"
	"github.com/shibukawa/fastest/scheduler"
)

// printReport writes a colorized human-readable summary to color.Output,
// in the teacher's testrunner.PrintSummary/fixture_runner.go idiom
// (SPEC_FULL.md §2.3: the core never prints, cmd/fastest does).
func printReport(r *scheduler.Report, quiet bool) {
	if quiet {
		return
	}

	fmt.Fprintln(color.Output)
	fmt.Fprintln(color.Output, "=== Test Summary ===")
	fmt.Fprintf(color.Output, "Tests: %d total, %d passed, %d failed, %d skipped, %d xfailed, %d xpassed, %d errored\n",
		len(r.Results), r.Passed, r.Failed, r.Skipped, r.XFailed, r.XPassed, r.Errored)
	fmt.Fprintf(color.Output, "Duration: %.3fs\n", r.Duration.Seconds())

	failLabel := color.New(color.Bold, color.FgRed).SprintFunc()
	errorLabel := color.New(color.Bold, color.FgMagenta).SprintFunc()

	failures := r.Failures()
	if len(failures) > 0 {
		fmt.Fprintln(color.Output, "\nFailed tests:")

		for _, res := range failures {
			label := failLabel("FAIL")
			if res.Outcome == fastest.Error {
				label = errorLabel("ERROR")
			}

			fmt.Fprintf(color.Output, "  %s %s\n", label, res.ID)

			if res.ErrorMessage != "" {
				fmt.Fprintf(color.Output, "    %s: %s\n", res.ErrorType, res.ErrorMessage)
			}
		}
	}

	if r.Success() {
		fmt.Fprintln(color.Output, "\n"+color.New(color.Bold, color.FgGreen).Sprint("All tests passed!"))
	} else {
		fmt.Fprintln(color.Output, "\n"+color.New(color.Bold, color.FgRed).Sprint("Some tests failed!"))
	}
}
