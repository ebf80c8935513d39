package stdlib

import (
	"testing"

	"github.com/tracekit/spanql/internal/module"
)

func TestRegisterBuiltins(t *testing.T) {
	reg := module.NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, err := reg.Resolve("chrome.jetstream_3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tables := map[string]bool{}
	for _, td := range m.Tables {
		tables[td.Name] = true
	}
	for _, name := range []string{
		"chrome_jetstream_3_measure",
		"chrome_jetstream_3_reference",
		"chrome_jetstream_3_subtest_score",
		"chrome_jetstream_3_benchmark_score",
	} {
		if !tables[name] {
			t.Errorf("missing table %s", name)
		}
	}

	if len(m.Functions) != 1 || m.Functions[0].Name != "chrome_jetstream_3_score" {
		t.Errorf("unexpected functions: %v", m.Functions)
	}
}

func TestViewDefinitionsParse(t *testing.T) {
	m := ChromeJetstream3()
	reg := module.NewRegistry()
	if err := reg.Register(m); err != nil {
		t.Fatalf("module does not validate: %v", err)
	}

	for _, td := range m.Tables {
		if td.Static != nil {
			continue
		}
		if td.Definition() == nil {
			t.Errorf("table %s has no parsed definition", td.Name)
		}
	}
}

func TestReferenceTable(t *testing.T) {
	m := ChromeJetstream3()
	for _, td := range m.Tables {
		if td.Name != "chrome_jetstream_3_reference" {
			continue
		}
		if td.Static == nil {
			t.Fatal("reference table must be static")
		}
		if len(td.Static.Rows) != 1 {
			t.Fatalf("expected one reference row, got %d", len(td.Static.Rows))
		}
		if td.Static.Rows[0][1] != 5000000000.0 {
			t.Errorf("reference_ns = %v, want 5000000000.0", td.Static.Rows[0][1])
		}
		return
	}
	t.Fatal("reference table not found")
}
