// Package scheduler performs end-to-end orchestration: batching
// discovered items into work units, dispatching them to a worker.Pool
// (or running them in-process), tracking fixture-scope teardown, and
// aggregating results into a Report (spec.md §4.5).
package scheduler

import (
	"sort"
	"strings"

	"github.com/shibukawa/fastest"
)

// Batch groups items into work units per spec.md §4.5: consecutive
// items sharing (path, class_name) are grouped up to batchSize,
// provided they share the same session/module/class-scoped fixture
// requirements; InProcess strategy and items depending on a
// session/module-scoped generator fixture always get their own
// single-item unit.
func Batch(items []*fastest.TestItem, plans map[string]fastest.FixturePlan, strategy fastest.Strategy, batchSize int) []*fastest.WorkUnit {
	if batchSize <= 0 {
		batchSize = 1
	}

	var units []*fastest.WorkUnit

	var cur *fastest.WorkUnit

	var curSig string

	for _, item := range items {
		plan := plans[item.ID]
		forceSingle := strategy == fastest.InProcess || hasUnserializableGenerator(plan)
		sig := sharedScopeSignature(plan)

		startNew := cur == nil ||
			len(cur.Items) >= batchSize ||
			cur.Items[0].Path != item.Path ||
			cur.Items[0].ClassName != item.ClassName ||
			curSig != sig

		if startNew {
			cur = &fastest.WorkUnit{Plans: map[string]fastest.FixturePlan{}}
			units = append(units, cur)
			curSig = sig
		}

		cur.Items = append(cur.Items, item)
		cur.Plans[item.ID] = plan

		if forceSingle {
			cur = nil // next item (even a matching one) must open a fresh unit
		}
	}

	return units
}

// hasUnserializableGenerator reports whether plan depends on a
// session/module-scoped generator fixture, which spec.md §4.5 requires
// to run in its own unit (a pre-flight conservative approximation: our
// Value model can always serialize literal parametrize data, so the
// only real risk is a generator fixture's live handle, not its data).
func hasUnserializableGenerator(plan fastest.FixturePlan) bool {
	for _, e := range plan.Setup {
		if e.IsGenerator && (e.Scope == fastest.ScopeModule || e.Scope == fastest.ScopeSession) {
			return true
		}
	}

	return false
}

// sharedScopeSignature renders the class-or-wider-scoped fixture keys a
// plan depends on, so two items can only share a unit when this
// signature matches exactly.
func sharedScopeSignature(plan fastest.FixturePlan) string {
	keys := make([]string, 0, len(plan.Setup))

	for _, e := range plan.Setup {
		if e.Scope == fastest.ScopeClass || e.Scope == fastest.ScopeModule || e.Scope == fastest.ScopeSession {
			keys = append(keys, e.Key.Key())
		}
	}

	sort.Strings(keys)

	return strings.Join(keys, "\x1f")
}
