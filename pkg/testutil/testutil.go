// Package testutil provides testing utilities for the brutalist application
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"brutalist/pkg/runner"
)

// FakeScriptRunner implements runner.ScriptRunner for testing
type FakeScriptRunner struct {
	mu    sync.RWMutex
	calls []ExecutedRun

	// Lines are handed to the listener by Stream, and joined by Output.
	Lines []string
	// Err is returned after all lines were delivered.
	Err   error
	Delay time.Duration
}

type ExecutedRun struct {
	Params  runner.Params
	Mode    runner.Mode
	Context context.Context
}

func NewFakeScriptRunner(lines ...string) *FakeScriptRunner {
	return &FakeScriptRunner{Lines: lines}
}

func (f *FakeScriptRunner) record(ctx context.Context, p runner.Params, mode runner.Mode) {
	f.mu.Lock()
	f.calls = append(f.calls, ExecutedRun{Params: p, Mode: mode, Context: ctx})
	f.mu.Unlock()

	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}
}

func (f *FakeScriptRunner) Output(ctx context.Context, p runner.Params) (string, error) {
	f.record(ctx, p, runner.ModeBlocking)
	if f.Err != nil {
		return "", f.Err
	}

	out := ""
	for _, line := range f.Lines {
		out += line + "\n"
	}
	return out, nil
}

func (f *FakeScriptRunner) Stream(ctx context.Context, p runner.Params, onLine runner.LineHandler) error {
	f.record(ctx, p, runner.ModeStreaming)
	for _, line := range f.Lines {
		if err := onLine(line); err != nil {
			return err
		}
	}
	return f.Err
}

func (f *FakeScriptRunner) Runs() []ExecutedRun {
	f.mu.RLock()
	defer f.mu.RUnlock()

	runs := make([]ExecutedRun, len(f.calls))
	copy(runs, f.calls)
	return runs
}

// WriteStubScript writes an executable /bin/sh script into dir and returns
// its path. Tests using it are skipped on windows.
func WriteStubScript(t *testing.T, dir, name, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell stubs are not supported on windows")
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("Failed to write stub script %s: %v", path, err)
	}
	return path
}

// CreateTestFile creates a test file with the given content
func CreateTestFile(t *testing.T, dir, filename, content string) string {
	t.Helper()

	filePath := filepath.Join(dir, filename)
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file %s: %v", filePath, err)
	}

	return filePath
}

// WithTimeout creates a context with timeout for tests
func WithTimeout(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), timeout)
}

// Eventually polls cond until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
