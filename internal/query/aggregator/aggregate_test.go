package aggregator

import (
	"math"
	"testing"

	"github.com/tracekit/spanql/pkg/types"
)

func accumulate(t *testing.T, typ AggregateType, values ...interface{}) interface{} {
	t.Helper()
	acc := NewAccumulator(typ)
	for _, v := range values {
		if err := acc.Accumulate(v); err != nil {
			t.Fatalf("unexpected error accumulating %v: %v", v, err)
		}
	}
	out, err := acc.Result()
	if err != nil {
		t.Fatalf("unexpected error finalizing: %v", err)
	}
	return out
}

func TestParseAggregateType(t *testing.T) {
	for name, want := range map[string]AggregateType{
		"COUNT": AggCount, "sum": AggSum, "Avg": AggAvg,
		"MIN": AggMin, "MAX": AggMax, "GEOMEAN": AggGeoMean,
	} {
		got, err := ParseAggregateType(name)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
	}

	if _, err := ParseAggregateType("MEDIAN"); !types.IsNotFoundError(err) {
		t.Error("expected not-found error for unknown aggregate")
	}
}

func TestCount(t *testing.T) {
	if got := accumulate(t, AggCount, int64(1), "x", 2.5); got != int64(3) {
		t.Errorf("COUNT = %v, want 3", got)
	}
	// NULLs are not counted.
	if got := accumulate(t, AggCount, int64(1), nil, nil); got != int64(1) {
		t.Errorf("COUNT with NULLs = %v, want 1", got)
	}
	// COUNT over no rows is 0, not NULL.
	if got := accumulate(t, AggCount); got != int64(0) {
		t.Errorf("empty COUNT = %v, want 0", got)
	}
}

func TestSumAvg(t *testing.T) {
	if got := accumulate(t, AggSum, int64(1), int64(2), 3.5); got != 6.5 {
		t.Errorf("SUM = %v, want 6.5", got)
	}
	if got := accumulate(t, AggAvg, 1.0, 2.0, 3.0); got != 2.0 {
		t.Errorf("AVG = %v, want 2", got)
	}
	if got := accumulate(t, AggSum); got != nil {
		t.Errorf("empty SUM = %v, want NULL", got)
	}
}

func TestMinMax(t *testing.T) {
	if got := accumulate(t, AggMin, int64(3), int64(1), int64(2)); got != int64(1) {
		t.Errorf("MIN = %v, want 1", got)
	}
	if got := accumulate(t, AggMax, "Air", "cdjs", "WSL"); got != "cdjs" {
		t.Errorf("MAX = %v, want cdjs", got)
	}
}

func TestGeoMean(t *testing.T) {
	got := accumulate(t, AggGeoMean, 2.0, 8.0)
	if math.Abs(got.(float64)-4.0) > 1e-12 {
		t.Errorf("GEOMEAN(2, 8) = %v, want 4", got)
	}

	// Degenerate single value.
	got = accumulate(t, AggGeoMean, 513.20932)
	if math.Abs(got.(float64)-513.20932) > 1e-9 {
		t.Errorf("GEOMEAN of one value = %v, want the value", got)
	}
}

func TestGeoMeanRejectsNonPositive(t *testing.T) {
	for _, bad := range []float64{0, -1} {
		acc := NewAccumulator(AggGeoMean)
		if err := acc.Accumulate(bad); err != nil {
			t.Fatalf("unexpected accumulate error: %v", err)
		}
		if _, err := acc.Result(); !types.IsDataError(err) {
			t.Errorf("GEOMEAN over %v: expected data error, got %v", bad, err)
		}
	}
}

func TestAccumulateNonNumeric(t *testing.T) {
	acc := NewAccumulator(AggAvg)
	if err := acc.Accumulate("Air"); !types.IsTypeMismatchError(err) {
		t.Errorf("expected type-mismatch error, got %v", err)
	}
}

func TestAccumulateNonFinite(t *testing.T) {
	acc := NewAccumulator(AggSum)
	if err := acc.Accumulate(math.Inf(1)); !types.IsDataError(err) {
		t.Errorf("expected data error for Inf, got %v", err)
	}
	if err := acc.Accumulate(math.NaN()); !types.IsDataError(err) {
		t.Errorf("expected data error for NaN, got %v", err)
	}
}

func TestReductionOrderInvariance(t *testing.T) {
	a := []interface{}{0.1, 0.2, 0.3, 1e17, -1e17, 0.4}
	b := []interface{}{1e17, 0.4, 0.1, -1e17, 0.3, 0.2}

	sumA := accumulate(t, AggSum, a...)
	sumB := accumulate(t, AggSum, b...)
	if sumA != sumB {
		t.Errorf("SUM depends on input order: %v vs %v", sumA, sumB)
	}

	avgA := accumulate(t, AggAvg, a...)
	avgB := accumulate(t, AggAvg, b...)
	if avgA != avgB {
		t.Errorf("AVG depends on input order: %v vs %v", avgA, avgB)
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		a, b interface{}
		want int
	}{
		{nil, nil, 0},
		{nil, int64(0), -1},
		{int64(0), nil, 1},
		{int64(1), int64(2), -1},
		{2.5, int64(2), 1},
		{"Air", "Basic", -1},
		{"WSL", "cdjs", -1}, // byte-wise, uppercase sorts first
		{"x", "x", 0},
	}
	for _, tt := range tests {
		if got := CompareValues(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareValues(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSortRowsStable(t *testing.T) {
	rows := [][]interface{}{
		{"b", int64(1)},
		{"a", int64(2)},
		{"a", int64(1)},
		{"b", int64(2)},
	}
	SortRows(rows, []SortKey{{Index: 0}, {Index: 1, Desc: true}})

	want := [][]interface{}{
		{"a", int64(2)},
		{"a", int64(1)},
		{"b", int64(2)},
		{"b", int64(1)},
	}
	for i := range want {
		if rows[i][0] != want[i][0] || rows[i][1] != want[i][1] {
			t.Fatalf("row %d: got %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestLimitOffset(t *testing.T) {
	rows := [][]interface{}{{int64(1)}, {int64(2)}, {int64(3)}}
	lim := int64(1)
	off := int64(1)

	out := Limit(rows, &lim, &off)
	if len(out) != 1 || out[0][0] != int64(2) {
		t.Errorf("LIMIT 1 OFFSET 1 = %v", out)
	}

	bigOff := int64(10)
	if out := Limit(rows, nil, &bigOff); len(out) != 0 {
		t.Errorf("offset past end should yield no rows, got %v", out)
	}
	if out := Limit(rows, nil, nil); len(out) != 3 {
		t.Errorf("no bounds should keep all rows, got %v", out)
	}
}
