// Package command provides the single narrow interface through which borgman
// talks to external programs. The orchestrator and its tests substitute a
// fake Executor that records invocations without touching the filesystem or
// network.
package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"pixelgardenlabs.io/borgman/pkg/plog"
)

// Executor runs one external program to completion and returns its captured
// standard output.
type Executor interface {
	Execute(ctx context.Context, program string, args []string) (string, error)
}

// SpawnError reports that a process could not be started (or was lost before
// producing an exit status).
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("could not run %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError reports that a process ran but exited with a non-zero status.
// It carries the full command line and both captured streams for diagnosis.
type ExitError struct {
	Program  string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s %s: exit status %d", e.Program, strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += "\nstderr:\n" + e.Stderr
	}
	return msg
}

// OSExecutor is the real Executor backed by os/exec.
type OSExecutor struct {
	// commandContext allows mocking os/exec for testing.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// New creates an OSExecutor. Pass exec.CommandContext for production use.
func New(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *OSExecutor {
	return &OSExecutor{commandContext: commandContext}
}

// Execute runs the program, streaming both output pipes line-by-line to the
// debug log while capturing them in full. Failure is judged solely by the
// process exit status; undecodable output is sanitized, never fatal.
func (e *OSExecutor) Execute(ctx context.Context, program string, args []string) (string, error) {
	cmd := e.commandContext(ctx, program, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", &SpawnError{Program: program, Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", &SpawnError{Program: program, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return "", &SpawnError{Program: program, Err: err}
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	g := new(errgroup.Group)
	g.Go(func() error { return drain(stdoutPipe, &stdoutBuf, program, "stdout") })
	g.Go(func() error { return drain(stderrPipe, &stderrBuf, program, "stderr") })
	drainErr := g.Wait()

	waitErr := cmd.Wait()
	stdout := Sanitize(stdoutBuf.String())
	stderr := Sanitize(stderrBuf.String())

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return stdout, &ExitError{
				Program:  program,
				Args:     args,
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout,
				Stderr:   stderr,
			}
		}
		return stdout, &SpawnError{Program: program, Err: waitErr}
	}
	// Failure is judged solely by the exit status. A capture hiccup on a
	// process that exited 0 is worth a warning, never a run failure.
	if drainErr != nil {
		plog.Warn("Output capture incomplete", "program", program, "error", drainErr)
	}
	return stdout, nil
}

// drain copies one output pipe into buf while echoing each line to the debug
// log, so long-running borg invocations remain observable at -log-level=debug.
// The pipe is always read to EOF regardless of line length; a reader that
// stops early would leave the child blocked on a full pipe forever.
func drain(pipe io.Reader, buf *bytes.Buffer, program, stream string) error {
	reader := bufio.NewReader(io.TeeReader(pipe, buf))
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			plog.Debug(program, "stream", stream, "line", strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Sanitize replaces invalid UTF-8 sequences in captured output with the
// Unicode replacement character. Command failure is judged by exit status,
// never by decodability of output.
func Sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

var _ Executor = (*OSExecutor)(nil)
