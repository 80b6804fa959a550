package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

var (
	// ErrCommandStart indicates the external process could not be launched
	ErrCommandStart = errors.New("command failed to start")

	// ErrCommandTimeout indicates the external process exceeded its time bound
	ErrCommandTimeout = errors.New("command timed out")
)

// waitDelay bounds how long Wait blocks on inherited pipes after a kill
const waitDelay = 2 * time.Second

// Result is the captured outcome of a process that completed within its bound
type Result struct {
	Stdout   string
	ExitCode int
	Duration time.Duration
}

// Executor runs an external command with a wall-clock bound
type Executor interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)
}

// ProcessExecutor runs commands as OS subprocesses with stdout captured
type ProcessExecutor struct {
	// Stderr receives the child's standard error (inherited in production)
	Stderr io.Writer

	// Dir is the working directory, empty for the current one
	Dir string
}

// NewProcessExecutor creates an executor forwarding child stderr to stderr
func NewProcessExecutor(stderr io.Writer) *ProcessExecutor {
	return &ProcessExecutor{Stderr: stderr}
}

// Run starts name with args and waits for it to exit or for timeout to pass.
// A process exceeding the bound is killed and ErrCommandTimeout is returned;
// its partial output is discarded. A non-zero exit status is not an error:
// the exit code is reported and stdout is returned as-is.
func (e *ProcessExecutor) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = e.Stderr
	cmd.Dir = e.Dir
	cmd.WaitDelay = waitDelay

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrCommandStart, name, err)
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(startTime)

	if ctx.Err() != nil {
		return Result{}, fmt.Errorf("%s interrupted: %w", name, ctx.Err())
	}
	if waitErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Result{}, fmt.Errorf("%w: %s exceeded %v", ErrCommandTimeout, name, timeout)
	}

	result := Result{
		Stdout:   stdout.String(),
		Duration: elapsed,
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Result{}, fmt.Errorf("failed waiting for %s: %w", name, waitErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

// ErrorType maps a collector error to a short category for reporting
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCommandTimeout):
		return "timeout"
	case errors.Is(err, ErrCommandStart):
		return "start"
	case errors.Is(err, ErrMalformedTiming):
		return "parse"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}

