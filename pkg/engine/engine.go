// Package engine orchestrates one complete borgman run: preflight
// validation, then the create, prune and sync stages, strictly in that
// order. The first failing stage aborts the run; nothing is retried.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pixelgardenlabs.io/borgman/pkg/borg"
	"pixelgardenlabs.io/borgman/pkg/command"
	"pixelgardenlabs.io/borgman/pkg/config"
	"pixelgardenlabs.io/borgman/pkg/hints"
	"pixelgardenlabs.io/borgman/pkg/metrics"
	"pixelgardenlabs.io/borgman/pkg/plog"
	"pixelgardenlabs.io/borgman/pkg/preflight"
	"pixelgardenlabs.io/borgman/pkg/rclone"
	"pixelgardenlabs.io/borgman/pkg/transcript"
)

// Stage names, in execution order.
const (
	StageCreate = "create"
	StagePrune  = "prune"
	StageSync   = "sync"
)

// Runner executes one run against its injected collaborators. All external
// effects go through the command.Executor, so tests can substitute a fake
// that records invocations.
type Runner struct {
	cfg      config.Config
	executor command.Executor
	sink     metrics.Sink
	recorder *transcript.Recorder
}

// NewRunner creates a Runner for the given validated configuration.
func NewRunner(cfg config.Config, executor command.Executor, sink metrics.Sink, recorder *transcript.Recorder) *Runner {
	return &Runner{
		cfg:      cfg,
		executor: executor,
		sink:     sink,
		recorder: recorder,
	}
}

// ExecuteRun performs the whole run and reports its outcome. The outcome is
// recorded to the metrics sink and the transcript whether the run succeeded
// or failed; neither can fail the run. Dry-run mode touches nothing
// external: no subprocesses, no metrics push, no transcript file.
func (r *Runner) ExecuteRun(ctx context.Context) error {
	start := time.Now()
	err := r.execute(ctx)
	finished := time.Now()

	if !r.cfg.DryRun {
		r.sink.RecordOutcome(err == nil, finished, finished.Sub(start))
		r.flushTranscript(finished, err == nil)
	}
	return err
}

func (r *Runner) execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := preflight.Run(r.cfg.Inputs, r.cfg.RepoPath); err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}

	stages := []struct {
		name    string
		program string
		args    []string
	}{
		{StageCreate, borg.Program, borg.CreateArgs(r.cfg.RepoPath, r.cfg.ArchivePrefix, r.cfg.Excludes, r.cfg.Inputs)},
		{StagePrune, borg.Program, borg.PruneArgs(r.cfg.RepoPath, r.cfg.ArchivePrefix, r.cfg.KeepDaily, r.cfg.KeepWeekly, r.cfg.KeepMonthly)},
		{StageSync, rclone.Program, rclone.SyncArgs(r.cfg.RepoPath, r.cfg.RcloneDest, r.cfg.RcloneDelete)},
	}

	for _, stage := range stages {
		if err := r.runStage(ctx, stage.name, stage.program, stage.args); err != nil {
			return err
		}
	}

	plog.Info("Run completed")
	return nil
}

// runStage executes one external command, or only logs it in dry-run mode.
func (r *Runner) runStage(ctx context.Context, stage, program string, args []string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	commandLine := program + " " + strings.Join(args, " ")
	if r.cfg.DryRun {
		plog.Info("[DRY RUN] Would execute", "stage", stage, "command", commandLine)
		return nil
	}

	plog.Info("Executing", "stage", stage, "command", commandLine)
	stdout, err := r.executor.Execute(ctx, program, args)

	stderr := ""
	var exitErr *command.ExitError
	if errors.As(err, &exitErr) {
		stderr = exitErr.Stderr
	}
	r.recorder.RecordStage(stage, program, args, stdout, stderr)

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s stage canceled: %w", stage, ctx.Err())
		}
		return fmt.Errorf("%s stage failed: %w", stage, err)
	}

	plog.Info("Stage completed", "stage", stage)
	plog.Debug("Stage output", "stage", stage, "output", stdout)
	return nil
}

// flushTranscript writes the run transcript. A disabled recorder is a hint,
// not a failure; real write errors are logged and swallowed.
func (r *Runner) flushTranscript(finishedAt time.Time, succeeded bool) {
	path, err := r.recorder.Flush(finishedAt, succeeded)
	if err != nil {
		if hints.IsHint(err) {
			return
		}
		plog.Warn("Could not write run transcript", "error", err)
		return
	}
	plog.Info("Wrote run transcript", "path", path)
}
