package aggregator

import "fmt"

// ToFloat converts a value to float64 for numeric aggregation.
func ToFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	}
	return 0, false
}

// CompareValues compares two scalar values. NULL sorts before every
// other value; numbers compare numerically, strings byte-wise. Values
// of incomparable dynamic types fall back to string comparison so that
// ordering is total and deterministic.
func CompareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	fa, aOk := ToFloat(a)
	fb, bOk := ToFloat(b)
	if aOk && bOk {
		if fa < fb {
			return -1
		} else if fa > fb {
			return 1
		}
		return 0
	}

	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		if sa < sb {
			return -1
		} else if sa > sb {
			return 1
		}
		return 0
	}

	// Fallback: compare as strings
	sa = fmt.Sprintf("%v", a)
	sb = fmt.Sprintf("%v", b)
	if sa < sb {
		return -1
	} else if sa > sb {
		return 1
	}
	return 0
}
