// Package transcript records the exact command lines and captured output of a
// run and writes them to a compressed per-run file, so a failed overnight run
// can be diagnosed without re-running it. The transcript directory is pruned
// to the newest N files after every flush.
package transcript

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"pixelgardenlabs.io/borgman/pkg/hints"
)

// Format selects the compression applied to flushed transcript files.
type Format string

const (
	FormatGzip Format = "gz"
	FormatZstd Format = "zst"
)

// FormatFromString parses a user-supplied transcript format name.
func FormatFromString(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gz", "gzip":
		return FormatGzip, nil
	case "zst", "zstd":
		return FormatZstd, nil
	default:
		return "", fmt.Errorf("unknown transcript format '%s' (want 'gz' or 'zst')", s)
	}
}

// ErrDisabled signals that transcript recording is not configured. It is a
// hint, not a failure.
var ErrDisabled = hints.New("transcript recording is disabled")

// filePrefix names transcript files so retention never touches foreign files
// in a shared directory.
const filePrefix = "borgman-"

// stageRecord is one executed (or dry-run) command within a run.
type stageRecord struct {
	Stage   string
	Command string
	Stdout  string
	Stderr  string
}

// Recorder accumulates stage records in memory and flushes them as one
// compressed file at the end of the run. It is not safe for concurrent use;
// the run pipeline is strictly sequential.
type Recorder struct {
	dir     string
	keep    int
	format  Format
	records []stageRecord
}

// New creates a Recorder writing into dir, retaining the newest keep
// transcripts. An empty dir yields a disabled recorder.
func New(dir string, keep int, format Format) *Recorder {
	return &Recorder{dir: dir, keep: keep, format: format}
}

// Enabled reports whether Flush will write anything.
func (r *Recorder) Enabled() bool {
	return r.dir != ""
}

// RecordStage appends one command invocation and its captured output.
func (r *Recorder) RecordStage(stage, program string, args []string, stdout, stderr string) {
	if !r.Enabled() {
		return
	}
	r.records = append(r.records, stageRecord{
		Stage:   stage,
		Command: program + " " + strings.Join(args, " "),
		Stdout:  stdout,
		Stderr:  stderr,
	})
}

// Flush writes the accumulated records as one compressed transcript file and
// prunes the transcript directory. It returns the written path, or
// ErrDisabled when no directory is configured.
func (r *Recorder) Flush(finishedAt time.Time, succeeded bool) (string, error) {
	if !r.Enabled() {
		return "", ErrDisabled
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("could not create transcript directory %s: %w", r.dir, err)
	}

	name := fmt.Sprintf("%s%s.log.%s", filePrefix, finishedAt.UTC().Format("2006-01-02T15-04-05"), r.format)
	path := filepath.Join(r.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("could not create transcript file %s: %w", path, err)
	}

	cw, err := r.newCompressedWriter(f)
	if err != nil {
		f.Close()
		return "", err
	}

	if err := r.write(cw, finishedAt, succeeded); err != nil {
		cw.Close()
		f.Close()
		return "", fmt.Errorf("could not write transcript %s: %w", path, err)
	}
	if err := cw.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("could not finalize transcript %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("could not close transcript %s: %w", path, err)
	}

	if err := r.prune(); err != nil {
		return path, fmt.Errorf("could not prune transcripts in %s: %w", r.dir, err)
	}
	return path, nil
}

// newCompressedWriter wraps the file in the configured compression writer.
func (r *Recorder) newCompressedWriter(f *os.File) (io.WriteCloser, error) {
	switch r.format {
	case FormatZstd:
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("could not create zstd writer: %w", err)
		}
		return zw, nil
	default:
		return pgzip.NewWriter(f), nil
	}
}

func (r *Recorder) write(w io.Writer, finishedAt time.Time, succeeded bool) error {
	outcome := "success"
	if !succeeded {
		outcome = "failure"
	}
	if _, err := fmt.Fprintf(w, "run finished %s outcome=%s\n", finishedAt.UTC().Format(time.RFC3339), outcome); err != nil {
		return err
	}
	for _, rec := range r.records {
		if _, err := fmt.Fprintf(w, "\n=== stage %s ===\n$ %s\n", rec.Stage, rec.Command); err != nil {
			return err
		}
		if rec.Stdout != "" {
			if _, err := fmt.Fprintf(w, "--- stdout ---\n%s\n", rec.Stdout); err != nil {
				return err
			}
		}
		if rec.Stderr != "" {
			if _, err := fmt.Fprintf(w, "--- stderr ---\n%s\n", rec.Stderr); err != nil {
				return err
			}
		}
	}
	return nil
}

// prune removes the oldest transcripts beyond the configured keep count.
// The timestamped file names sort chronologically, so a name sort suffices.
func (r *Recorder) prune() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) <= r.keep {
		return nil
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	for _, name := range names[r.keep:] {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil {
			return err
		}
	}
	return nil
}
