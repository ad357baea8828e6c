package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result is the outcome of a finished command.
type Result struct {
	// ExitCode is the process exit status, -1 if it was killed by a signal.
	ExitCode int
	// Stdout holds everything the process wrote to standard output.
	Stdout []byte
	// Stderr holds everything the process wrote to standard error.
	Stderr []byte
}

// Success reports whether the command exited with status 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Diagnostic returns the most useful failure text: stderr, then stdout, then the bare status.
func (r *Result) Diagnostic() string {
	if s := strings.TrimSpace(string(r.Stderr)); s != "" {
		return s
	}

	if s := strings.TrimSpace(string(r.Stdout)); s != "" {
		return s
	}

	return fmt.Sprintf("exit status %d", r.ExitCode)
}

// Runner executes a command to completion.
// A non-zero exit is reported through Result, not as an error;
// the error is reserved for commands that could not be run at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by real subprocesses.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run starts name with args, waits for it and captures both output streams.
func (*ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return nil, fmt.Errorf("run %s: %w", name, err)
}
