// Package borg constructs the argument lists for the borg create and prune
// stages. One canonical scheme is used for both: archives are named
// PREFIX{now:...} so the prune stage can filter on the prefix and never touch
// archives created by other tools in the same repository.
package borg

import (
	"strconv"
)

// Program is the borg executable looked up on PATH.
const Program = "borg"

// TimestampPlaceholder is expanded by borg itself at archive creation time,
// so the archive name always reflects the moment borg ran, not the moment
// borgman built the argument list.
const TimestampPlaceholder = "{now:%Y-%m-%dT%H:%M:%S}"

// compression is fixed: lz4 is cheap enough to always be worth it for a
// nightly run, and changing it would fragment the deduplication store.
const compression = "lz4"

// ArchiveName returns the REPO::NAME token for a new archive.
func ArchiveName(repoPath, prefix string) string {
	return repoPath + "::" + prefix + TimestampPlaceholder
}

// CreateArgs builds the argument list for the create stage:
// fixed flag set, one --exclude per pattern (none when there are no
// patterns), the archive name, then every input path in its original order.
func CreateArgs(repoPath, prefix string, excludes, inputs []string) []string {
	args := []string{
		"create",
		"--verbose",
		"--list",
		"--filter", "AME",
		"--stats",
		"--compression", compression,
		"--exclude-caches",
	}
	for _, pattern := range excludes {
		args = append(args, "--exclude", pattern)
	}
	args = append(args, ArchiveName(repoPath, prefix))
	args = append(args, inputs...)
	return args
}

// PruneArgs builds the argument list for the prune stage. The glob filter
// restricts pruning to archives created under our naming scheme.
func PruneArgs(repoPath, prefix string, keepDaily, keepWeekly, keepMonthly uint8) []string {
	return []string{
		"prune",
		"--list",
		"--glob-archives", prefix + "*",
		"--keep-daily", strconv.Itoa(int(keepDaily)),
		"--keep-weekly", strconv.Itoa(int(keepWeekly)),
		"--keep-monthly", strconv.Itoa(int(keepMonthly)),
		repoPath,
	}
}
