// Package aggregator provides aggregate accumulation and deterministic
// row ordering for query evaluation. Accumulators that reduce floating
// point values sort their inputs before reducing, so results are
// invariant to the order rows are fed in.
package aggregator

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aclements/go-moremath/stats"
	"github.com/tracekit/spanql/pkg/types"
)

// AggregateType represents the type of aggregate function.
type AggregateType int

const (
	AggCount AggregateType = iota
	AggSum
	AggMin
	AggMax
	AggAvg
	AggGeoMean
)

// ParseAggregateType converts a function name string to AggregateType.
func ParseAggregateType(name string) (AggregateType, error) {
	switch strings.ToUpper(name) {
	case "COUNT":
		return AggCount, nil
	case "SUM":
		return AggSum, nil
	case "MIN":
		return AggMin, nil
	case "MAX":
		return AggMax, nil
	case "AVG":
		return AggAvg, nil
	case "GEOMEAN":
		return AggGeoMean, nil
	default:
		return 0, fmt.Errorf("aggregator: unknown aggregate function %q: %w", name, types.ErrNotFound)
	}
}

// Accumulator accumulates values for a single aggregate expression
// within one group.
type Accumulator struct {
	typ   AggregateType
	count int64
	vals  []float64   // collected values for SUM/AVG/GEOMEAN
	min   interface{} // current minimum (nil if no rows)
	max   interface{} // current maximum (nil if no rows)
	isSet bool
}

// NewAccumulator creates an empty accumulator of the given type.
func NewAccumulator(typ AggregateType) *Accumulator {
	return &Accumulator{typ: typ}
}

// Accumulate adds a single value. NULL values are ignored by all
// aggregate functions. Non-numeric values fed to a numeric aggregate
// are a data error at finalization.
func (a *Accumulator) Accumulate(value interface{}) error {
	if value == nil {
		return nil
	}

	switch a.typ {
	case AggCount:
		a.count++
		a.isSet = true

	case AggSum, AggAvg, AggGeoMean:
		f, ok := ToFloat(value)
		if !ok {
			return fmt.Errorf("aggregator: non-numeric value %v: %w", value, types.ErrTypeMismatch)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("aggregator: non-finite value: %w", types.ErrData)
		}
		a.vals = append(a.vals, f)
		a.count++
		a.isSet = true

	case AggMin:
		if !a.isSet || CompareValues(value, a.min) < 0 {
			a.min = value
		}
		a.count++
		a.isSet = true

	case AggMax:
		if !a.isSet || CompareValues(value, a.max) > 0 {
			a.max = value
		}
		a.count++
		a.isSet = true
	}

	return nil
}

// Result returns the final value of the aggregate. The reduction order
// is fixed by sorting the collected values, so any permutation of the
// accumulated rows produces an identical result.
func (a *Accumulator) Result() (interface{}, error) {
	if !a.isSet {
		if a.typ == AggCount {
			return int64(0), nil
		}
		return nil, nil
	}

	switch a.typ {
	case AggCount:
		return a.count, nil

	case AggSum:
		sort.Float64s(a.vals)
		var sum float64
		for _, v := range a.vals {
			sum += v
		}
		return sum, nil

	case AggAvg:
		sort.Float64s(a.vals)
		var sum float64
		for _, v := range a.vals {
			sum += v
		}
		return sum / float64(len(a.vals)), nil

	case AggGeoMean:
		for _, v := range a.vals {
			if v <= 0 {
				return nil, fmt.Errorf("aggregator: geomean requires positive values, got %v: %w", v, types.ErrData)
			}
		}
		sort.Float64s(a.vals)
		g := stats.GeoMean(a.vals)
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return nil, fmt.Errorf("aggregator: geomean is not finite: %w", types.ErrData)
		}
		return g, nil

	case AggMin:
		return a.min, nil

	case AggMax:
		return a.max, nil
	}

	return nil, nil
}

// ResultType returns the declared column type an aggregate produces.
// MIN/MAX carry their input type, which the caller infers from the
// argument expression.
func (t AggregateType) ResultType(arg types.ColumnType) types.ColumnType {
	switch t {
	case AggCount:
		return types.TypeInt
	case AggSum, AggAvg, AggGeoMean:
		return types.TypeFloat
	default:
		return arg
	}
}
