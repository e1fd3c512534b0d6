package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/shibukawa/fastest"
)

// Context carries global flags shared by every subcommand.
type Context struct {
	Config  string
	Verbose bool
	Quiet   bool
}

// RunCmd discovers tests under Paths (default ".") and executes them,
// printing a colorized summary and exiting non-zero on failure
// (spec.md §1, §6).
type RunCmd struct {
	Paths       []string `arg:"" optional:"" name:"path" help:"Directories to discover tests under" default:"."`
	StrictXPass bool     `help:"Treat an unexpectedly passing xfail test as a failure"`
	BatchSize   int      `help:"Override the configured batch size" default:"0"`
	WorkerBin   string   `help:"Override the configured worker binary path"`
}

func (cmd *RunCmd) Run(ctx *Context) error {
	cfg, err := fastest.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cmd.StrictXPass {
		cfg.Scheduling.StrictXPass = true
	}

	if cmd.BatchSize > 0 {
		cfg.Scheduling.BatchSize = cmd.BatchSize
	}

	if cmd.WorkerBin != "" {
		cfg.Worker.BinaryPath = cmd.WorkerBin
	}

	report, err := runAll(context.Background(), cfg, cmd.Paths, !ctx.Quiet)
	if err != nil {
		return err
	}

	printReport(report, ctx.Quiet)

	if !report.Success() {
		os.Exit(1)
	}

	return nil
}

// VersionCmd prints the runner's version.
type VersionCmd struct{}

func (cmd *VersionCmd) Run() error {
	fmt.Println("fastest v0.1.0")

	return nil
}

// CLI is the top-level command tree (spec.md §1's "CLI" external concern;
// kong parses flags into the Cmd structs, same wiring the teacher's
// cmd/snapsql/main.go uses).
var CLI struct {
	Config  string `help:"Configuration file path" default:"fastest.yaml"`
	Verbose bool   `help:"Enable verbose output" short:"v"`
	Quiet   bool   `help:"Suppress the summary report" short:"q"`

	Run     RunCmd     `cmd:"" default:"withargs" help:"Discover and run tests"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

func main() {
	kctx := kong.Parse(&CLI)

	appCtx := &Context{Config: CLI.Config, Verbose: CLI.Verbose, Quiet: CLI.Quiet}

	if err := kctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// shutdownGrace bounds how long Run waits for worker pool teardown after
// dispatch completes, on top of each worker's own configured grace period.
const shutdownGrace = 30 * time.Second
