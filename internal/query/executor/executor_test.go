package executor

import (
	"bytes"
	"context"
	"testing"

	"github.com/tracekit/spanql/internal/module"
	"github.com/tracekit/spanql/internal/store"
	"github.com/tracekit/spanql/pkg/types"
)

func testHandle(t *testing.T) *store.Handle {
	t.Helper()
	h, err := store.Load([]types.Event{
		{ID: 1, Name: "Air/First", TopLevelName: "Air", Iteration: 0, Subtest: "First", Dur: 100},
		{ID: 2, Name: "Air/Worst", TopLevelName: "Air", Iteration: 0, Subtest: "Worst", Dur: 400},
		{ID: 3, Name: "WSL/main", TopLevelName: "WSL", Iteration: 0, Subtest: "main", Dur: 250},
	})
	if err != nil {
		t.Fatalf("loading events: %v", err)
	}
	return h
}

func testExecutor(t *testing.T) *Executor {
	t.Helper()
	reg := module.NewRegistry()
	err := reg.Register(&module.Module{
		Name: "test.tools",
		Tables: []*module.TableDef{
			{Name: "named_slices", SQL: "SELECT name, dur FROM slice WHERE top_level_name <> ''"},
		},
		Functions: []*module.FunctionDef{
			{Name: "slice_count", SQL: "SELECT COUNT(*) FROM slice"},
		},
	})
	if err != nil {
		t.Fatalf("registering module: %v", err)
	}
	return New(reg, nil)
}

func TestExecuteSelect(t *testing.T) {
	exec := testExecutor(t)
	res, err := exec.Execute(context.Background(), testHandle(t), "SELECT name FROM slice ORDER BY name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.QueryID == "" {
		t.Error("expected a query id")
	}
	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(res.Rows))
	}
	if res.Columns[0] != "name" || res.Types[0] != types.TypeString {
		t.Errorf("unexpected schema: %v %v", res.Columns, res.Types)
	}
	if res.Stats.RowsScanned != 3 {
		t.Errorf("rows scanned = %d, want 3", res.Stats.RowsScanned)
	}
}

func TestExecuteWithInclude(t *testing.T) {
	exec := testExecutor(t)
	script := "INCLUDE MODULE test.tools; SELECT name FROM named_slices ORDER BY name LIMIT 1"
	res, err := exec.Execute(context.Background(), testHandle(t), script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != "Air/First" {
		t.Errorf("unexpected rows: %v", res.Rows)
	}
}

func TestExecuteFunction(t *testing.T) {
	exec := testExecutor(t)
	script := "INCLUDE MODULE test.tools; SELECT slice_count() AS n"
	res, err := exec.Execute(context.Background(), testHandle(t), script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rows[0][0] != int64(3) {
		t.Errorf("slice_count() = %v, want 3", res.Rows[0][0])
	}
}

func TestExecuteIncludeNotRegistered(t *testing.T) {
	exec := testExecutor(t)
	_, err := exec.Execute(context.Background(), testHandle(t), "INCLUDE MODULE chrome.missing; SELECT 1")
	if !types.IsNotFoundError(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestExecuteScopeDoesNotLeak(t *testing.T) {
	exec := testExecutor(t)
	h := testHandle(t)

	script := "INCLUDE MODULE test.tools; SELECT name FROM named_slices LIMIT 1"
	if _, err := exec.Execute(context.Background(), h, script); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Without the include the view must be invisible.
	_, err := exec.Execute(context.Background(), h, "SELECT name FROM named_slices")
	if !types.IsSchemaError(err) {
		t.Errorf("expected schema error, got %v", err)
	}
}

func TestExecuteScriptShape(t *testing.T) {
	exec := testExecutor(t)
	h := testHandle(t)

	tests := []string{
		"INCLUDE MODULE test.tools",
		"SELECT 1; SELECT 2",
		"SELECT 1; INCLUDE MODULE test.tools",
	}
	for _, script := range tests {
		if _, err := exec.Execute(context.Background(), h, script); err == nil {
			t.Errorf("script %q: expected error", script)
		}
	}
}

func TestExecuteFailingQueryYieldsNoRows(t *testing.T) {
	exec := testExecutor(t)
	res, err := exec.Execute(context.Background(), testHandle(t), "SELECT dur / 0 FROM slice")
	if !types.IsDataError(err) {
		t.Fatalf("expected data error, got %v", err)
	}
	if res != nil {
		t.Error("failing query must not return a result")
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	exec := testExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := exec.Execute(ctx, testHandle(t), "SELECT 1"); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestExecuteBatch(t *testing.T) {
	exec := testExecutor(t)
	h := testHandle(t)

	scripts := []string{
		"SELECT COUNT(*) FROM slice",
		"SELECT dur / 0 FROM slice",
		"INCLUDE MODULE test.tools; SELECT COUNT(*) FROM named_slices",
	}
	items := exec.ExecuteBatch(context.Background(), h, scripts, 2)

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Err != nil || items[0].Result.Rows[0][0] != int64(3) {
		t.Errorf("item 0: %v %v", items[0].Err, items[0].Result)
	}
	if !types.IsDataError(items[1].Err) {
		t.Errorf("item 1: expected data error, got %v", items[1].Err)
	}
	if items[2].Err != nil || items[2].Result.Rows[0][0] != int64(3) {
		t.Errorf("item 2: %v %v", items[2].Err, items[2].Result)
	}
}

func TestWriteCSV(t *testing.T) {
	res := &Result{
		Columns: []string{"name", "score", "n"},
		Types:   []types.ColumnType{types.TypeString, types.TypeFloat, types.TypeInt},
		Rows: [][]interface{}{
			{"Air", 513.20932, int64(9)},
			{`say "hi"`, 0.5, nil},
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "\"Air\",513.20932,9\n\"say \"\"hi\"\"\",0.5,\n"
	if buf.String() != want {
		t.Errorf("csv output:\ngot  %q\nwant %q", buf.String(), want)
	}
}

func TestWriteJSON(t *testing.T) {
	res := &Result{
		Columns: []string{"name", "score"},
		Types:   []types.ColumnType{types.TypeString, types.TypeFloat},
		Rows: [][]interface{}{
			{"Air", 513.20932},
		},
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"columns":["name","score"],"types":["string","float"],"rows":[{"name":"Air","score":513.20932}]}` + "\n"
	if buf.String() != want {
		t.Errorf("json output:\ngot  %q\nwant %q", buf.String(), want)
	}
}

func TestWriteJSONDeterministic(t *testing.T) {
	res := &Result{
		Columns: []string{"b", "a"},
		Types:   []types.ColumnType{types.TypeInt, types.TypeInt},
		Rows:    [][]interface{}{{int64(1), int64(2)}},
	}

	var first bytes.Buffer
	if err := WriteJSON(&first, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var second bytes.Buffer
	if err := WriteJSON(&second, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("json encoding is not deterministic")
	}
	// Column order, not lexical order.
	if !bytes.Contains(first.Bytes(), []byte(`{"b":1,"a":2}`)) {
		t.Errorf("json does not preserve column order: %s", first.String())
	}
}
