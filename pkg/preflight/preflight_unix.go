//go:build !windows

package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// platformValidateMountPoint checks if the path resides on the root
// filesystem. If it does, the backup disk is assumed NOT to be mounted
// (ghost detection).
func platformValidateMountPoint(path string) error {
	// Repositories under the home directory are usually intentional.
	homeDir, _ := os.UserHomeDir()
	if homeDir != "" && strings.HasPrefix(path, homeDir) {
		return nil
	}

	rootInfo, err := os.Stat("/")
	if err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	}
	rootStat, ok := rootInfo.Sys().(*unix.Stat_t)
	if !ok {
		return fmt.Errorf("unsupported platform for unix.Stat_t")
	}

	pathInfo, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat repository path: %w", err)
	}
	pathStat, ok := pathInfo.Sys().(*unix.Stat_t)
	if !ok {
		return fmt.Errorf("unsupported platform for unix.Stat_t")
	}

	// Same device as / means we are writing to the system partition.
	if pathStat.Dev == rootStat.Dev && path != "/" {
		return fmt.Errorf("repository path '%s' is on the root filesystem (system disk). "+
			"Ensure your backup drive is mounted", path)
	}
	return nil
}
