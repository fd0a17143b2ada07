// Package executor runs stored commands through a system shell.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// DefaultShell is used when no shell is configured.
const DefaultShell = "sh"

// Executor runs a command line and reports the exit code.
type Executor interface {
	Run(ctx context.Context, text string) (int, error)
}

// Shell runs commands with `<Path> -c <text>`, wired to the given streams.
type Shell struct {
	Path   string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewShell creates a Shell executor wired to the given streams.
func NewShell(path string, stdin io.Reader, stdout, stderr io.Writer) *Shell {
	if path == "" {
		path = DefaultShell
	}
	return &Shell{
		Path:   path,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}
}

// Run executes text and returns the child's exit code. A non-zero exit is not
// an error, and a child killed by a signal reports 128+signal like a shell
// does. Only failing to start is an error.
//
// ctx is checked before the child starts but never kills it: the child
// shares the terminal's process group, so it receives Ctrl+C itself and
// decides how to handle it.
func (s *Shell) Run(ctx context.Context, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	cmd := exec.Command(s.Path, "-c", text)
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
	}
	return -1, fmt.Errorf("running %s: %w", s.Path, err)
}
