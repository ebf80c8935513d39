package observability

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tracekit/spanql/pkg/types"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{fmt.Errorf("eval: column x: %w", types.ErrSchema), "schema"},
		{fmt.Errorf("module: a.b: %w", types.ErrNotFound), "not_found"},
		{fmt.Errorf("module: a.b: %w", types.ErrCyclicDependency), "cyclic_dependency"},
		{fmt.Errorf("eval: division by zero: %w", types.ErrData), "data"},
		{fmt.Errorf("executor: column x: %w", types.ErrTypeMismatch), "type_mismatch"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.kind {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.kind)
		}
	}
}

func TestObserveQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveQuery(nil, 5*time.Millisecond, 100)
	m.ObserveQuery(fmt.Errorf("x: %w", types.ErrData), time.Millisecond, 0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"spanql_queries_total",
		"spanql_query_duration_seconds",
		"spanql_rows_scanned_total",
		"spanql_query_errors_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	m.ObserveQuery(nil, time.Millisecond, 1)
	m.ObserveQuery(errors.New("boom"), time.Millisecond, 1)
}
