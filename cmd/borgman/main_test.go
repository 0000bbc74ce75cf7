package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"pixelgardenlabs.io/borgman/pkg/config"
)

// executeCommand runs the root command with the given args and a stubbed run
// callback, returning the resolved configuration.
func executeCommand(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()

	var resolved config.Config
	called := false
	cmd := newRootCommand(func(ctx context.Context, cfg config.Config) error {
		called = true
		resolved = cfg
		return nil
	})

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil && !called {
		t.Fatal("run callback was not invoked")
	}
	return resolved, err
}

func TestFlagResolution(t *testing.T) {
	cfg, err := executeCommand(t,
		"-e", "*.tmp", "-e", "cache/",
		"-d", "2", "-w", "3", "-m", "4",
		"-r", "/backups/repo",
		"--rclone-dest", "remote:backups",
		"/home/user", "/etc",
	)
	if err != nil {
		t.Fatalf("Execute() = %v, want nil", err)
	}

	if !reflect.DeepEqual(cfg.Inputs, []string{"/home/user", "/etc"}) {
		t.Errorf("Inputs = %v", cfg.Inputs)
	}
	if !reflect.DeepEqual(cfg.Excludes, []string{"*.tmp", "cache/"}) {
		t.Errorf("Excludes = %v, want patterns in given order", cfg.Excludes)
	}
	if cfg.KeepDaily != 2 || cfg.KeepWeekly != 3 || cfg.KeepMonthly != 4 {
		t.Errorf("retention = %d/%d/%d, want 2/3/4", cfg.KeepDaily, cfg.KeepWeekly, cfg.KeepMonthly)
	}
	if cfg.RepoPath != "/backups/repo" {
		t.Errorf("RepoPath = %q", cfg.RepoPath)
	}
	if cfg.RcloneDest != "remote:backups" {
		t.Errorf("RcloneDest = %q", cfg.RcloneDest)
	}
	if cfg.DryRun {
		t.Error("DryRun = true, want false by default")
	}
}

func TestRetentionDefaultsToOne(t *testing.T) {
	cfg, err := executeCommand(t, "-r", "/repo", "--rclone-dest", "remote:b", "/data")
	if err != nil {
		t.Fatalf("Execute() = %v, want nil", err)
	}
	if cfg.KeepDaily != 1 || cfg.KeepWeekly != 1 || cfg.KeepMonthly != 1 {
		t.Errorf("retention = %d/%d/%d, want 1/1/1", cfg.KeepDaily, cfg.KeepWeekly, cfg.KeepMonthly)
	}
}

func TestInvalidRetentionCount(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "out of range", value: "300"},
		{name: "not a number", value: "weekly"},
		{name: "negative", value: "-1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := executeCommand(t, "-r", "/repo", "--rclone-dest", "remote:b", "--keep-daily", tc.value, "/data")
			if err == nil {
				t.Fatal("Execute() = nil, want parse error")
			}
			if !strings.Contains(err.Error(), "keep-daily") {
				t.Errorf("error = %q, must name the offending flag", err.Error())
			}
		})
	}
}

func TestMissingRequiredValues(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{name: "no inputs", args: []string{"-r", "/repo", "--rclone-dest", "remote:b"}, wantFlag: ""},
		{name: "no repo", args: []string{"--rclone-dest", "remote:b", "/data"}, wantFlag: "repo"},
		{name: "no rclone dest", args: []string{"-r", "/repo", "/data"}, wantFlag: "rclone-dest"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := executeCommand(t, tc.args...)

			var flagErr *config.FlagError
			if !errors.As(err, &flagErr) {
				t.Fatalf("Execute() = %v, want *config.FlagError", err)
			}
			if flagErr.Flag != tc.wantFlag {
				t.Errorf("FlagError.Flag = %q, want %q", flagErr.Flag, tc.wantFlag)
			}
		})
	}
}

func TestConfigFileMergedUnderFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "borgman.json")
	content := `{
		"inputs": ["/srv/data"],
		"keepDaily": 7,
		"keepWeekly": 5,
		"repo": "/backups/repo",
		"rcloneDest": "remote:backups"
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := executeCommand(t, "--config", path, "-d", "3")
	if err != nil {
		t.Fatalf("Execute() = %v, want nil", err)
	}

	if cfg.KeepDaily != 3 {
		t.Errorf("KeepDaily = %d, want flag override 3", cfg.KeepDaily)
	}
	if cfg.KeepWeekly != 5 {
		t.Errorf("KeepWeekly = %d, want file value 5", cfg.KeepWeekly)
	}
	if cfg.RepoPath != "/backups/repo" {
		t.Errorf("RepoPath = %q, want file value", cfg.RepoPath)
	}
	if !reflect.DeepEqual(cfg.Inputs, []string{"/srv/data"}) {
		t.Errorf("Inputs = %v, want file inputs", cfg.Inputs)
	}
}

func TestPositionalInputsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "borgman.json")
	content := `{"inputs": ["/srv/data"], "repo": "/repo", "rcloneDest": "remote:b"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := executeCommand(t, "--config", path, "/other")
	if err != nil {
		t.Fatalf("Execute() = %v, want nil", err)
	}
	if !reflect.DeepEqual(cfg.Inputs, []string{"/other"}) {
		t.Errorf("Inputs = %v, want positional override", cfg.Inputs)
	}
}

func TestDryRunFlag(t *testing.T) {
	cfg, err := executeCommand(t, "-n", "-r", "/repo", "--rclone-dest", "remote:b", "/data")
	if err != nil {
		t.Fatalf("Execute() = %v, want nil", err)
	}
	if !cfg.DryRun {
		t.Error("DryRun = false, want true with -n")
	}
}
