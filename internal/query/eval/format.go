package eval

import (
	"fmt"
	"math"
	"strings"

	"github.com/tracekit/spanql/pkg/types"
)

// formatValue implements the format() builtin. The spec string must
// contain exactly one verb: %s, %d, %f or %.Nf. Float formatting uses
// fmt's round-half-even behavior, so format('%.5f', x) is the canonical
// way to render scores.
func formatValue(spec string, v interface{}) (string, error) {
	verb, err := checkFormatSpec(spec)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("eval: format of NULL: %w", types.ErrData)
	}

	switch verb {
	case 's':
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("eval: format %%s applied to %v: %w", v, types.ErrTypeMismatch)
		}
		return fmt.Sprintf(spec, s), nil

	case 'd':
		n, ok := v.(int64)
		if !ok {
			return "", fmt.Errorf("eval: format %%d applied to %v: %w", v, types.ErrTypeMismatch)
		}
		return fmt.Sprintf(spec, n), nil

	case 'f':
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int64:
			f = float64(n)
		default:
			return "", fmt.Errorf("eval: format %%f applied to %v: %w", v, types.ErrTypeMismatch)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("eval: format of non-finite value: %w", types.ErrData)
		}
		return fmt.Sprintf(spec, f), nil
	}

	return "", fmt.Errorf("eval: unsupported format verb %%%c: %w", verb, types.ErrSchema)
}

// checkFormatSpec validates a format spec with exactly one %s, %d or %f
// directive and returns its verb. A precision is accepted on %f only.
// Literal text around the directive passes through verbatim, so
// '%.5fms' renders a duration with a unit suffix.
func checkFormatSpec(spec string) (byte, error) {
	bad := func() (byte, error) {
		return 0, fmt.Errorf("eval: bad format spec %q: %w", spec, types.ErrSchema)
	}

	if strings.Count(spec, "%") != 1 {
		return bad()
	}
	i := strings.IndexByte(spec, '%')
	rest := spec[i+1:]
	if rest == "" {
		return bad()
	}

	hasPrecision := false
	if rest[0] == '.' {
		rest = rest[1:]
		j := 0
		for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
			j++
		}
		if j == 0 {
			return bad()
		}
		rest = rest[j:]
		hasPrecision = true
	}

	if len(rest) == 0 {
		return bad()
	}
	switch verb := rest[0]; verb {
	case 'f':
		return verb, nil
	case 's', 'd':
		if hasPrecision {
			return bad()
		}
		return verb, nil
	}
	return bad()
}
