// Command borgman runs one rotating backup cycle: it archives the given
// input paths into a borg repository, prunes old archives under a retention
// policy and mirrors the repository to a remote with rclone. It is designed
// to be invoked once per run from a scheduler such as cron or a systemd
// timer.
package main

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"pixelgardenlabs.io/borgman/pkg/buildinfo"
	"pixelgardenlabs.io/borgman/pkg/command"
	"pixelgardenlabs.io/borgman/pkg/config"
	"pixelgardenlabs.io/borgman/pkg/engine"
	"pixelgardenlabs.io/borgman/pkg/metrics"
	"pixelgardenlabs.io/borgman/pkg/plog"
	"pixelgardenlabs.io/borgman/pkg/transcript"
)

// newRootCommand builds the CLI surface. The run callback is injected so
// tests can exercise flag parsing and config resolution without spawning
// subprocesses.
func newRootCommand(run func(ctx context.Context, cfg config.Config) error) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "borgman [flags] INPUT...",
		Short:   "Manages rotating borg backups and mirrors the repository with rclone",
		Version: buildinfo.Version,
		Args:    cobra.ArbitraryArgs,
		// Errors are rendered by main through plog, with the full chain.
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, args, configPath)
			if err != nil {
				return err
			}

			plog.SetLevel(plog.LevelFromString(cfg.LogLevel))
			plog.Info("Starting "+buildinfo.Name, "version", buildinfo.Version, "pid", os.Getpid())
			plog.Info("Run configuration", cfg.LogSummary()...)

			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayP("exclude", "e", nil, "Exclude paths matching PATTERN (repeatable).")
	flags.Uint8P("keep-daily", "d", 1, "Number of daily archives to keep.")
	flags.Uint8P("keep-weekly", "w", 1, "Number of weekly archives to keep.")
	flags.Uint8P("keep-monthly", "m", 1, "Number of monthly archives to keep.")
	flags.StringP("repo", "r", "", "Borg repository the archives are written to.")
	flags.String("archive-prefix", config.DefaultArchivePrefix, "Name prefix for archives created by this tool.")
	flags.String("rclone-dest", "", "Rclone destination the repository is mirrored to.")
	flags.Bool("rclone-delete", false, "Delete remote files that no longer exist locally.")
	flags.String("prometheus-push-addr", "", "Pushgateway address to report the run outcome to.")
	flags.BoolP("dry-run", "n", false, "Log the exact commands for all stages without executing them.")
	flags.String("log-level", "info", "Logging level: 'debug', 'info', 'warn', 'error'.")
	flags.StringVar(&configPath, "config", "", "Path to a JSON config file; flags override its values.")
	flags.String("transcript-dir", "", "Directory for compressed per-run transcripts (disabled when empty).")
	flags.Int("transcript-keep", config.DefaultTranscriptKeep, "Number of run transcripts to retain.")
	flags.String("transcript-format", string(transcript.FormatGzip), "Transcript compression: 'gz' or 'zst'.")

	return cmd
}

// resolveConfig assembles the effective configuration: defaults, then the
// optional config file, then every flag the user explicitly set, then the
// positional input paths. Validation runs on the merged result so required
// values may come from either source.
func resolveConfig(cmd *cobra.Command, args []string, configPath string) (config.Config, error) {
	base := config.NewDefault()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return base, err
		}
		base = loaded
	}

	cfg := config.Merge(base, collectSetFlags(cmd))
	if len(args) > 0 {
		cfg.Inputs = args
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// collectSetFlags returns the values of exactly those flags the user set,
// keyed by long flag name, so unset flags never clobber config-file values.
func collectSetFlags(cmd *cobra.Command) map[string]any {
	flags := cmd.Flags()
	set := make(map[string]any)

	if flags.Changed("exclude") {
		set["exclude"], _ = flags.GetStringArray("exclude")
	}
	if flags.Changed("keep-daily") {
		set["keep-daily"], _ = flags.GetUint8("keep-daily")
	}
	if flags.Changed("keep-weekly") {
		set["keep-weekly"], _ = flags.GetUint8("keep-weekly")
	}
	if flags.Changed("keep-monthly") {
		set["keep-monthly"], _ = flags.GetUint8("keep-monthly")
	}
	if flags.Changed("repo") {
		set["repo"], _ = flags.GetString("repo")
	}
	if flags.Changed("archive-prefix") {
		set["archive-prefix"], _ = flags.GetString("archive-prefix")
	}
	if flags.Changed("rclone-dest") {
		set["rclone-dest"], _ = flags.GetString("rclone-dest")
	}
	if flags.Changed("rclone-delete") {
		set["rclone-delete"], _ = flags.GetBool("rclone-delete")
	}
	if flags.Changed("prometheus-push-addr") {
		set["prometheus-push-addr"], _ = flags.GetString("prometheus-push-addr")
	}
	if flags.Changed("dry-run") {
		set["dry-run"], _ = flags.GetBool("dry-run")
	}
	if flags.Changed("log-level") {
		set["log-level"], _ = flags.GetString("log-level")
	}
	if flags.Changed("transcript-dir") {
		set["transcript-dir"], _ = flags.GetString("transcript-dir")
	}
	if flags.Changed("transcript-keep") {
		set["transcript-keep"], _ = flags.GetInt("transcript-keep")
	}
	if flags.Changed("transcript-format") {
		set["transcript-format"], _ = flags.GetString("transcript-format")
	}
	return set
}

// runBackup wires the concrete collaborators and executes the run.
func runBackup(ctx context.Context, cfg config.Config) error {
	executor := command.New(exec.CommandContext)

	var sink metrics.Sink = metrics.NoopSink{}
	if cfg.PushAddr != "" {
		sink = metrics.NewPushSink(cfg.PushAddr)
	}

	format, err := transcript.FormatFromString(cfg.TranscriptFormat)
	if err != nil {
		// Validate only checks the format when transcripts are enabled, so
		// this can only happen with an empty transcript dir. The recorder is
		// disabled either way.
		format = transcript.FormatGzip
	}
	recorder := transcript.New(cfg.TranscriptDir, cfg.TranscriptKeep, format)

	runner := engine.NewRunner(cfg, executor, sink, recorder)

	start := time.Now()
	if err := runner.ExecuteRun(ctx); err != nil {
		return err
	}
	plog.Info(buildinfo.Name+" finished successfully", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func main() {
	// Set up a context that is canceled when an interrupt signal is received.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := newRootCommand(runBackup).ExecuteContext(ctx); err != nil {
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		os.Exit(1)
	}
}
