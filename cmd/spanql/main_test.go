package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tracekit/spanql/internal/config"
	"github.com/tracekit/spanql/internal/module"
	"github.com/tracekit/spanql/internal/query/executor"
	"github.com/tracekit/spanql/internal/stdlib"
	"github.com/tracekit/spanql/internal/store"
	"github.com/tracekit/spanql/pkg/types"
)

func testExecutor(t *testing.T) (*executor.Executor, *store.Handle) {
	t.Helper()

	handle, err := store.Load([]types.Event{
		{ID: 1, Name: "Air/First", TopLevelName: "Air", Iteration: 0, Subtest: "First", Dur: 9639007},
		{ID: 2, Name: "Air/Worst", TopLevelName: "Air", Iteration: 0, Subtest: "Worst", Dur: 10490546},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	registry := module.NewRegistry()
	if err := stdlib.RegisterBuiltins(registry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return executor.New(registry, nil), handle
}

func TestRunBatchWritesResultsInOrder(t *testing.T) {
	exec, handle := testExecutor(t)
	cfg := config.DefaultConfig()
	cfg.Parallelism = 2

	var buf bytes.Buffer
	failures := runBatch(exec, handle, []string{
		"SELECT COUNT(*) FROM slice",
		"SELECT name FROM slice ORDER BY name LIMIT 1",
	}, cfg, &buf)

	if failures != 0 {
		t.Fatalf("expected no failures, got %d", failures)
	}
	want := "2\n\"Air/First\"\n"
	if buf.String() != want {
		t.Errorf("batch output = %q, want %q", buf.String(), want)
	}
}

func TestRunBatchCountsFailures(t *testing.T) {
	exec, handle := testExecutor(t)
	cfg := config.DefaultConfig()

	var buf bytes.Buffer
	failures := runBatch(exec, handle, []string{
		"SELECT nonsense FROM slice",
		"SELECT COUNT(*) FROM slice",
	}, cfg, &buf)

	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
	if buf.String() != "2\n" {
		t.Errorf("batch output = %q, want %q", buf.String(), "2\n")
	}
}

func TestWriteResultCapsRows(t *testing.T) {
	exec, handle := testExecutor(t)
	cfg := config.DefaultConfig()
	cfg.MaxRows = 1

	res, err := exec.Execute(context.Background(), handle, "SELECT id FROM slice ORDER BY id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := writeResult(&buf, res, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "1\n" {
		t.Errorf("output = %q, want %q", buf.String(), "1\n")
	}
}

func TestLoadScriptsFromArgs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.sql")
	b := filepath.Join(dir, "b.sql")
	if err := os.WriteFile(a, []byte("SELECT 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("SELECT 2"), 0o644); err != nil {
		t.Fatal(err)
	}

	scripts, err := loadScripts(flags{}, []string{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scripts) != 2 || scripts[0] != "SELECT 1" || scripts[1] != "SELECT 2" {
		t.Errorf("loaded scripts = %q", scripts)
	}

	if _, err := loadScripts(flags{query: "SELECT 1"}, []string{a}); err == nil {
		t.Error("expected error mixing -query with script arguments")
	}
	if _, err := loadScripts(flags{}, nil); err == nil {
		t.Error("expected error with no query source")
	}
}
