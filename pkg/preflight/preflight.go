// Package preflight validates the run's inputs before any external mutating
// command is issued. The checks are stateless and read-only.
//
// The empty-directory check is the one genuine safety invariant in borgman:
// an empty or unmounted source must never be silently archived, because the
// subsequent prune and sync stages would propagate that emptiness to the
// remote backup, destroying previously retained data.
package preflight

import (
	"fmt"
	"io"
	"os"
	"strings"

	"pixelgardenlabs.io/borgman/pkg/plog"
)

// InputError describes a rejected input path.
type InputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("input %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("input %s: %s", e.Path, e.Reason)
}

func (e *InputError) Unwrap() error { return e.Err }

// Reasons used in InputError. Kept as constants so tests and log scrapers can
// match on them.
const (
	ReasonMetadataUnavailable = "metadata unavailable"
	ReasonEmptyDirectory      = "empty directory"
)

// CheckInputAccessible validates a single backup input path.
// A regular file is accepted as-is; a directory must have at least one
// immediate entry.
func CheckInputAccessible(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &InputError{Path: path, Reason: ReasonMetadataUnavailable, Err: err}
	}
	if !info.IsDir() {
		return nil
	}

	dir, err := os.Open(path)
	if err != nil {
		return &InputError{Path: path, Reason: ReasonMetadataUnavailable, Err: err}
	}
	defer dir.Close()

	// One entry is enough; no need to enumerate the whole directory.
	_, err = dir.Readdirnames(1)
	if err == io.EOF {
		return &InputError{Path: path, Reason: ReasonEmptyDirectory}
	}
	if err != nil {
		return &InputError{Path: path, Reason: ReasonMetadataUnavailable, Err: err}
	}
	return nil
}

// CheckRepoAccessible guards against archiving into a "ghost" repository
// directory: a local path that should be a mounted backup disk but currently
// sits on the root filesystem. A repository on the system disk can be a
// legitimate setup, so the mount check only warns. Remote repositories
// (user@host:path) and repositories that do not exist yet are accepted; borg
// reports those itself.
func CheckRepoAccessible(repoPath string) error {
	if looksRemote(repoPath) {
		return nil
	}
	info, err := os.Stat(repoPath)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		return fmt.Errorf("repository path %s exists but is not a directory", repoPath)
	}
	if err := platformValidateMountPoint(repoPath); err != nil {
		plog.Warn("Repository mount check", "repo", repoPath, "warning", err)
	}
	return nil
}

// Run validates every input path in order, failing fast on the first
// violation, then checks the repository path. No external command may run
// before this returns nil.
func Run(inputs []string, repoPath string) error {
	for _, path := range inputs {
		if err := CheckInputAccessible(path); err != nil {
			return err
		}
	}
	return CheckRepoAccessible(repoPath)
}

// looksRemote reports whether the repository location is in borg's
// user@host:path form rather than a local filesystem path. A single-letter
// prefix before the colon is a Windows drive, not an SSH host.
func looksRemote(repoPath string) bool {
	colon := strings.IndexByte(repoPath, ':')
	if colon < 0 {
		return false
	}
	if colon == 1 && isDriveLetter(repoPath[0]) {
		return false
	}
	separator := strings.IndexAny(repoPath, `/\`)
	return separator < 0 || colon < separator
}

func isDriveLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
