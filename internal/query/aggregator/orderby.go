package aggregator

import "sort"

// SortKey identifies one ORDER BY key: a column index in the row plus
// its direction.
type SortKey struct {
	Index int
	Desc  bool
}

// SortRows sorts rows in place by the given keys. The sort is stable,
// so rows with equal keys keep their prior relative order and repeated
// sorts of identical input yield identical output.
func SortRows(rows [][]interface{}, keys []SortKey) {
	if len(keys) == 0 || len(rows) <= 1 {
		return
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			var a, b interface{}
			if key.Index < len(rows[i]) {
				a = rows[i][key.Index]
			}
			if key.Index < len(rows[j]) {
				b = rows[j][key.Index]
			}

			cmp := CompareValues(a, b)
			if cmp == 0 {
				continue
			}
			if key.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// Limit applies LIMIT/OFFSET to sorted rows. A nil limit or offset
// leaves that bound unset.
func Limit(rows [][]interface{}, limit, offset *int64) [][]interface{} {
	if offset != nil && *offset > 0 {
		off := int(*offset)
		if off >= len(rows) {
			return [][]interface{}{}
		}
		rows = rows[off:]
	}

	if limit != nil {
		lim := int(*limit)
		if lim < 0 {
			lim = 0
		}
		if lim < len(rows) {
			rows = rows[:lim]
		}
	}

	return rows
}
