package probe

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/config"
)

// writeScript creates an executable shell script in a temp directory
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "stub.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("Failed to write stub: %v", err)
	}
	return path
}

// TestProcessExecutor_CapturesStdout tests normal completion
func TestProcessExecutor_CapturesStdout(t *testing.T) {
	script := writeScript(t, `printf '0.1;0.2;0.3;0.5;0.8'; echo "progress" >&2`)
	exec := NewProcessExecutor(io.Discard)

	result, err := exec.Run(context.Background(), 5*time.Second, script)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Stdout != "0.1;0.2;0.3;0.5;0.8" {
		t.Errorf("Expected timing output, got %q", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("Expected exit code 0, got %d", result.ExitCode)
	}
}

// TestProcessExecutor_PassesArgs tests argv handling without a shell
func TestProcessExecutor_PassesArgs(t *testing.T) {
	script := writeScript(t, `printf '%s|' "$@"`)
	exec := NewProcessExecutor(io.Discard)

	result, err := exec.Run(context.Background(), 5*time.Second, script, "-A", "Mozilla/5.0 (Windows NT 10.0)", "%{time_total}")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Stdout != "-A|Mozilla/5.0 (Windows NT 10.0)|%{time_total}|" {
		t.Errorf("Expected arguments passed verbatim, got %q", result.Stdout)
	}
}

// TestProcessExecutor_NonZeroExit tests that exit status is reported, not raised
func TestProcessExecutor_NonZeroExit(t *testing.T) {
	script := writeScript(t, `printf 'partial'; exit 6`)
	exec := NewProcessExecutor(io.Discard)

	result, err := exec.Run(context.Background(), 5*time.Second, script)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.ExitCode != 6 {
		t.Errorf("Expected exit code 6, got %d", result.ExitCode)
	}
	if result.Stdout != "partial" {
		t.Errorf("Expected stdout preserved, got %q", result.Stdout)
	}
}

// TestProcessExecutor_StartFailure tests a missing binary
func TestProcessExecutor_StartFailure(t *testing.T) {
	exec := NewProcessExecutor(io.Discard)

	_, err := exec.Run(context.Background(), time.Second, filepath.Join(t.TempDir(), "does-not-exist"))
	if !errors.Is(err, ErrCommandStart) {
		t.Errorf("Expected ErrCommandStart, got %v", err)
	}
	if errors.Is(err, ErrCommandTimeout) {
		t.Error("Start failure must not be reported as timeout")
	}
}

// TestProcessExecutor_Timeout tests that an overrunning process is killed
func TestProcessExecutor_Timeout(t *testing.T) {
	script := writeScript(t, `printf 'early'; exec sleep 10`)
	exec := NewProcessExecutor(io.Discard)

	start := time.Now()
	result, err := exec.Run(context.Background(), 200*time.Millisecond, script)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrCommandTimeout) {
		t.Fatalf("Expected ErrCommandTimeout, got %v", err)
	}
	if result.Stdout != "" {
		t.Errorf("Expected partial output to be discarded, got %q", result.Stdout)
	}
	if elapsed > 5*time.Second {
		t.Errorf("Expected process to be killed promptly, took %v", elapsed)
	}
}

// TestProcessExecutor_ParentCancel tests cancellation of the caller's context
func TestProcessExecutor_ParentCancel(t *testing.T) {
	script := writeScript(t, `exec sleep 10`)
	exec := NewProcessExecutor(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := exec.Run(ctx, 5*time.Second, script)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrCommandTimeout) {
		t.Error("Cancellation must not be reported as timeout")
	}
}

// TestCommandSpec_Render tests named parameter substitution
func TestCommandSpec_Render(t *testing.T) {
	spec, err := NewCommandSpec(config.CommandTemplate{
		Binary: "curl",
		Args:   []string{"-o", "{{.ArchivePath}}", "--url={{.URL}}", "-s"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	args, err := spec.Render(TimingParams{URL: "https://allegro.pl", ArchivePath: "/data/archive/allegro.pl.txt"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []string{"-o", "/data/archive/allegro.pl.txt", "--url=https://allegro.pl", "-s"}
	for i := range expected {
		if args[i] != expected[i] {
			t.Errorf("Arg %d: expected %q, got %q", i, expected[i], args[i])
		}
	}
}

// TestCommandSpec_Errors tests invalid templates and unknown parameters
func TestCommandSpec_Errors(t *testing.T) {
	if _, err := NewCommandSpec(config.CommandTemplate{}); err == nil {
		t.Error("Expected error for empty binary")
	}
	if _, err := NewCommandSpec(config.CommandTemplate{Binary: "curl", Args: []string{"{{.URL"}}); err == nil {
		t.Error("Expected error for unterminated template")
	}

	spec, err := NewCommandSpec(config.CommandTemplate{Binary: "curl", Args: []string{"{{.Endpoint}}"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := spec.Render(TimingParams{URL: "https://allegro.pl"}); err == nil {
		t.Error("Expected error for parameter unknown to the timing command")
	}
}
