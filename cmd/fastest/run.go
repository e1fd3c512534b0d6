package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/shibukawa/fastest"
	"github.com/shibukawa/fastest/fixture"
	"github.com/shibukawa/fastest/parser"
	"github.com/shibukawa/fastest/parser/discoverycache"
	"github.com/shibukawa/fastest/scheduler"
	"github.com/shibukawa/fastest/strategy"
	"github.com/shibukawa/fastest/worker"
)

// runAll discovers every test under paths, resolves fixture plans, picks
// an execution strategy, dispatches through a worker pool, and returns
// the aggregated report. verbose controls whether discovery diagnostics
// are printed as they're found.
func runAll(ctx context.Context, cfg *fastest.Config, paths []string, verbose bool) (*scheduler.Report, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var allItems []fastest.TestItem

	var allFixtures []fastest.Fixture

	for _, root := range paths {
		res, err := discover(root, cfg)
		if err != nil {
			return nil, fmt.Errorf("discovering %s: %w", root, err)
		}

		for _, d := range res.Diagnostics {
			if verbose {
				fmt.Fprintf(color.Output, "%s %v\n", color.New(color.FgYellow).Sprint("WARN"), d)
			}
		}

		allItems = append(allItems, res.Items...)
		allFixtures = append(allFixtures, res.Fixtures...)
	}

	registry := fixture.NewRegistry(allFixtures, filepath.Dir)

	items := make([]*fastest.TestItem, 0, len(allItems))
	plans := map[string]fastest.FixturePlan{}
	report := scheduler.NewReport(cfg.Scheduling.StrictXPass)

	for i := range allItems {
		item := &allItems[i]

		plan, err := registry.Plan(item, item.Path, fixture.IndirectValues(item))
		if err != nil {
			report.Add(fastest.TestResult{
				ID: item.ID, Outcome: fastest.Error,
				ErrorType: "FixtureResolutionError", ErrorMessage: err.Error(),
			})

			continue
		}

		items = append(items, item)
		plans[item.ID] = plan
	}

	if len(items) == 0 {
		return report, nil
	}

	decision := strategy.New(cfg.Strategy).Select(len(items))

	poolSize := decision.PoolSize
	if poolSize < 1 {
		poolSize = 1 // this Go core has no embedded language runtime to execute
		// tests truly in-process; InProcess mode still runs one worker, but
		// batch.go's forceSingle rule still gives it single-item units.
	}

	workDir := paths[0]

	pool := worker.NewPool(cfg.Worker, poolSize, workDir)
	defer func() { _ = scheduler.WaitShutdown(ctx, pool, cfg.Worker.GracePeriod+shutdownGrace) }()

	s := scheduler.New(pool, cfg.Scheduling, poolSize)

	dispatched, err := s.Run(ctx, items, plans, decision.Strategy)
	if err != nil {
		return nil, fmt.Errorf("scheduler run: %w", err)
	}

	for _, r := range dispatched.Results {
		report.Add(r)
	}

	return report, nil
}

func discover(root string, cfg *fastest.Config) (parser.DiscoverResult, error) {
	if !cfg.Discovery.CacheEnabled {
		return parser.DiscoverDir(root)
	}

	cache, err := discoverycache.Open(cfg.Discovery.CachePath)
	if err != nil {
		return parser.DiscoverResult{}, fmt.Errorf("open discovery cache: %w", err)
	}
	defer cache.Close()

	return parser.DiscoverDirCached(root, cache)
}
