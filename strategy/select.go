// Package strategy picks the execution mode and worker pool size for a run
// from the number of discovered test items and the host's core count
// (spec.md §4.3).
package strategy

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"

	"github.com/shibukawa/fastest"
)

// Selector decides Strategy and worker pool size from item count and
// hardware, honoring Config overrides.
type Selector struct {
	cfg fastest.StrategyConfig
}

// New builds a Selector from the run's strategy thresholds.
func New(cfg fastest.StrategyConfig) *Selector {
	return &Selector{cfg: cfg}
}

// Decision is the chosen Strategy plus how many workers to pre-spawn.
type Decision struct {
	Strategy  fastest.Strategy
	PoolSize  int
	CoreCount int
}

// Select chooses a Strategy for itemCount items, per spec.md §4.3:
// InProcess for itemCount<=InProcessMax, WarmWorkers up to WarmWorkersMax
// with a pool capped at min(cores, WarmWorkersPoolCap), FullDistributed
// beyond that with a pool of one worker per core.
func (s *Selector) Select(itemCount int) Decision {
	cores := coreCount()

	switch {
	case itemCount <= s.cfg.InProcessMax:
		return Decision{Strategy: fastest.InProcess, PoolSize: 0, CoreCount: cores}
	case itemCount <= s.cfg.WarmWorkersMax:
		return Decision{Strategy: fastest.WarmWorkers, PoolSize: min(cores, s.cfg.WarmWorkersPoolCap), CoreCount: cores}
	default:
		return Decision{Strategy: fastest.FullDistributed, PoolSize: cores, CoreCount: cores}
	}
}

// coreCount reports the usable logical core count: the smaller of cpuid's
// hardware-reported LogicalCores (when cpuid reports one) and
// runtime.NumCPU. runtime.NumCPU reflects the scheduler's view, which is
// what a worker pool actually gets to run on, so it is the upper bound.
func coreCount() int {
	n := runtime.NumCPU()

	if cpuid.CPU.LogicalCores > 0 && cpuid.CPU.LogicalCores < n {
		return cpuid.CPU.LogicalCores
	}

	return n
}
