// Package rclone constructs the argument list for the remote synchronization
// stage.
package rclone

// Program is the rclone executable looked up on PATH.
const Program = "rclone"

// SyncArgs builds the argument list mirroring the local repository to the
// remote destination. With mirror semantics enabled, remote files that no
// longer exist locally are deleted ("sync"); otherwise they are left in
// place ("copy").
func SyncArgs(repoPath, dest string, mirror bool) []string {
	subcommand := "copy"
	if mirror {
		subcommand = "sync"
	}
	return []string{subcommand, "--verbose", repoPath, dest}
}
