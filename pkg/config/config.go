// Package config holds the resolved, immutable configuration for one borgman
// run. A Config is assembled from defaults, an optional JSON config file and
// the command-line flags that were explicitly set, in that order of
// precedence, and then validated once before any external command is issued.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"pixelgardenlabs.io/borgman/pkg/transcript"
)

// DefaultArchivePrefix is prepended to every archive name borgman creates.
// The prune stage filters on this prefix so that archives created by other
// tools in the same repository are never pruned.
const DefaultArchivePrefix = "borgman-"

// DefaultTranscriptKeep is the number of compressed run transcripts retained
// when transcript recording is enabled.
const DefaultTranscriptKeep = 30

// FlagError describes a malformed or missing configuration value, named after
// the command-line flag that carries it. An empty Flag marks a value that has
// no flag of its own, such as the positional input paths.
type FlagError struct {
	Flag   string
	Reason string
}

func (e *FlagError) Error() string {
	if e.Flag == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid value for --%s: %s", e.Flag, e.Reason)
}

// Config is the full configuration for a single run.
type Config struct {
	// Inputs is the ordered list of filesystem paths to archive. Never empty
	// after validation.
	Inputs []string `json:"inputs"`
	// Excludes is the ordered list of glob-style exclusion patterns passed to
	// the archive tool. May be empty.
	Excludes []string `json:"excludes"`

	// Retention counts for the prune stage.
	KeepDaily   uint8 `json:"keepDaily"`
	KeepWeekly  uint8 `json:"keepWeekly"`
	KeepMonthly uint8 `json:"keepMonthly"`

	// RepoPath is the borg repository the archives are written to and pruned
	// in, and the local side of the sync stage.
	RepoPath string `json:"repo"`
	// ArchivePrefix names the archives this tool creates and scopes the prune
	// stage to them.
	ArchivePrefix string `json:"archivePrefix"`

	// RcloneDest is the remote the repository is mirrored to.
	RcloneDest string `json:"rcloneDest"`
	// RcloneDelete selects mirror semantics for the sync stage: when true,
	// remote files that no longer exist locally are deleted.
	RcloneDelete bool `json:"rcloneDelete"`

	// PushAddr is the optional Prometheus pushgateway address the run outcome
	// is reported to. Empty disables metrics.
	PushAddr string `json:"prometheusPushAddr"`

	// TranscriptDir enables per-run transcript recording when non-empty.
	TranscriptDir    string `json:"transcriptDir"`
	TranscriptKeep   int    `json:"transcriptKeep"`
	TranscriptFormat string `json:"transcriptFormat"`

	LogLevel string `json:"logLevel"`

	// DryRun is never read from the config file; it is a per-invocation
	// override only.
	DryRun bool `json:"-"`
}

// NewDefault creates a Config with the documented default values.
func NewDefault() Config {
	return Config{
		KeepDaily:        1,
		KeepWeekly:       1,
		KeepMonthly:      1,
		ArchivePrefix:    DefaultArchivePrefix,
		TranscriptKeep:   DefaultTranscriptKeep,
		TranscriptFormat: string(transcript.FormatGzip),
		LogLevel:         "info",
	}
}

// Load reads a JSON config file over the defaults. A missing file is an
// error; callers only pass a path the user explicitly asked for.
func Load(path string) (Config, error) {
	cfg := NewDefault()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Merge overlays the flag values that were explicitly set by the user onto a
// base configuration. Keys mirror the long flag names.
func Merge(base Config, setFlags map[string]any) Config {
	merged := base
	if v, ok := setFlags["exclude"]; ok {
		merged.Excludes = v.([]string)
	}
	if v, ok := setFlags["keep-daily"]; ok {
		merged.KeepDaily = v.(uint8)
	}
	if v, ok := setFlags["keep-weekly"]; ok {
		merged.KeepWeekly = v.(uint8)
	}
	if v, ok := setFlags["keep-monthly"]; ok {
		merged.KeepMonthly = v.(uint8)
	}
	if v, ok := setFlags["repo"]; ok {
		merged.RepoPath = v.(string)
	}
	if v, ok := setFlags["archive-prefix"]; ok {
		merged.ArchivePrefix = v.(string)
	}
	if v, ok := setFlags["rclone-dest"]; ok {
		merged.RcloneDest = v.(string)
	}
	if v, ok := setFlags["rclone-delete"]; ok {
		merged.RcloneDelete = v.(bool)
	}
	if v, ok := setFlags["prometheus-push-addr"]; ok {
		merged.PushAddr = v.(string)
	}
	if v, ok := setFlags["transcript-dir"]; ok {
		merged.TranscriptDir = v.(string)
	}
	if v, ok := setFlags["transcript-keep"]; ok {
		merged.TranscriptKeep = v.(int)
	}
	if v, ok := setFlags["transcript-format"]; ok {
		merged.TranscriptFormat = v.(string)
	}
	if v, ok := setFlags["log-level"]; ok {
		merged.LogLevel = v.(string)
	}
	if v, ok := setFlags["dry-run"]; ok {
		merged.DryRun = v.(bool)
	}
	return merged
}

// Validate checks the invariants of a fully merged configuration. It reports
// the first violation as a FlagError naming the offending flag.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		// Inputs are positional INPUT arguments, not a flag.
		return &FlagError{Reason: "at least one INPUT path is required"}
	}
	for _, pattern := range c.Excludes {
		if pattern == "" {
			return &FlagError{Flag: "exclude", Reason: "empty exclusion pattern"}
		}
	}
	if c.RepoPath == "" {
		return &FlagError{Flag: "repo", Reason: "a repository path is required"}
	}
	if c.ArchivePrefix == "" {
		return &FlagError{Flag: "archive-prefix", Reason: "the archive prefix must not be empty"}
	}
	if c.RcloneDest == "" {
		return &FlagError{Flag: "rclone-dest", Reason: "a sync destination is required"}
	}
	if c.TranscriptDir != "" {
		if _, err := transcript.FormatFromString(c.TranscriptFormat); err != nil {
			return &FlagError{Flag: "transcript-format", Reason: err.Error()}
		}
		if c.TranscriptKeep < 1 {
			return &FlagError{Flag: "transcript-keep", Reason: "must keep at least one transcript"}
		}
	}
	return nil
}

// LogSummary returns the key/value pairs describing the effective
// configuration, suitable for a single structured log record.
func (c *Config) LogSummary() []any {
	return []any{
		"inputs", c.Inputs,
		"excludes", c.Excludes,
		"keepDaily", c.KeepDaily,
		"keepWeekly", c.KeepWeekly,
		"keepMonthly", c.KeepMonthly,
		"repo", c.RepoPath,
		"rcloneDest", c.RcloneDest,
		"rcloneDelete", c.RcloneDelete,
		"dryRun", c.DryRun,
	}
}
