package borg_test

import (
	"reflect"
	"strings"
	"testing"

	"pixelgardenlabs.io/borgman/pkg/borg"
)

func TestCreateArgs(t *testing.T) {
	tests := []struct {
		name     string
		excludes []string
		inputs   []string
		want     []string
	}{
		{
			name:   "no exclusions emits no exclude flag",
			inputs: []string{"/home/user"},
			want: []string{
				"create", "--verbose", "--list", "--filter", "AME", "--stats",
				"--compression", "lz4", "--exclude-caches",
				"/backups/repo::borgman-{now:%Y-%m-%dT%H:%M:%S}",
				"/home/user",
			},
		},
		{
			name:     "exclusions in order, then archive name, then inputs",
			excludes: []string{"*.tmp", "cache/"},
			inputs:   []string{"/home/user", "/etc"},
			want: []string{
				"create", "--verbose", "--list", "--filter", "AME", "--stats",
				"--compression", "lz4", "--exclude-caches",
				"--exclude", "*.tmp",
				"--exclude", "cache/",
				"/backups/repo::borgman-{now:%Y-%m-%dT%H:%M:%S}",
				"/home/user", "/etc",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := borg.CreateArgs("/backups/repo", "borgman-", tc.excludes, tc.inputs)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("CreateArgs() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPruneArgs(t *testing.T) {
	got := borg.PruneArgs("/backups/repo", "borgman-", 1, 1, 1)
	want := []string{
		"prune", "--list",
		"--glob-archives", "borgman-*",
		"--keep-daily", "1",
		"--keep-weekly", "1",
		"--keep-monthly", "1",
		"/backups/repo",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PruneArgs() = %v, want %v", got, want)
	}

	joined := strings.Join(got, " ")
	if strings.Contains(joined, "--exclude") {
		t.Errorf("prune command must not carry exclude flags: %s", joined)
	}
}

func TestPruneArgsRetentionCounts(t *testing.T) {
	got := strings.Join(borg.PruneArgs("/r", "nightly-", 7, 4, 12), " ")
	for _, want := range []string{"--keep-daily 7", "--keep-weekly 4", "--keep-monthly 12", "--glob-archives nightly-*"} {
		if !strings.Contains(got, want) {
			t.Errorf("PruneArgs() = %q, missing %q", got, want)
		}
	}
}

func TestArchiveName(t *testing.T) {
	got := borg.ArchiveName("/backups/repo", "borgman-")
	if got != "/backups/repo::borgman-"+borg.TimestampPlaceholder {
		t.Errorf("ArchiveName() = %q", got)
	}
}
