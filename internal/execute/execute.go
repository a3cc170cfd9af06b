// Package execute wraps the external OS tools the pipeline drives: the
// package installer, the disk-image mounter, the profile installer, and the
// items themselves when they are scripts. Every invocation is captured as an
// explicit Result so callers map outcomes deterministically instead of
// branching on error types.
package execute

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Result captures a single external command invocation.
type Result struct {
	Launched bool // the process started; false means Err holds the launch error
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error // launch error when Launched is false
}

// Runner executes one external command and reports its Result.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) Result
}

// CommandRunner is the os/exec backed Runner. A non-zero Timeout bounds every
// invocation with a context deadline; the zero value waits indefinitely,
// matching the behaviour of the logout hook this replaces.
type CommandRunner struct {
	Timeout time.Duration
}

// Run executes name with args, capturing stdout and stderr.
func (r *CommandRunner) Run(ctx context.Context, name string, args ...string) Result {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Launched: true,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if err == nil {
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res
	}
	// The process never started (bad path, bad executable format, …).
	return Result{Err: err, Stderr: stderr.String()}
}

// errText condenses a Result's stderr into a single line for error messages.
func errText(res Result) string {
	s := strings.TrimSpace(res.Stderr)
	if s == "" {
		return "(no error output)"
	}
	return strings.Join(strings.Fields(s), " ")
}
