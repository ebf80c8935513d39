// Package eval expands derived-table definitions into materialized
// relations and evaluates SELECT statements against them. All state is
// query-local: an Env carries the memoized materializations for one
// query and nothing else, so concurrent queries never interfere.
package eval

import (
	"fmt"

	"github.com/tracekit/spanql/pkg/types"
)

// Col describes one relation column: its bare name, an optional
// qualifier (the FROM/JOIN alias it came in under), and its type.
type Col struct {
	Name string
	Qual string
	Type types.ColumnType
}

// Relation is a materialized rowset. Rows hold string, int64, float64
// or nil values positionally matching Cols.
type Relation struct {
	Cols []Col
	Rows [][]interface{}
}

// Resolve returns the index of the column referenced by (table, column).
// An empty table matches any qualifier. Zero matches is a schema error,
// more than one an ambiguity error.
func (r *Relation) Resolve(table, column string) (int, error) {
	found := -1
	for i, c := range r.Cols {
		if c.Name != column {
			continue
		}
		if table != "" && c.Qual != table {
			continue
		}
		if found >= 0 {
			return 0, fmt.Errorf("eval: ambiguous column %q: %w", refString(table, column), types.ErrSchema)
		}
		found = i
	}
	if found < 0 {
		return 0, fmt.Errorf("eval: column %q: %w", refString(table, column), types.ErrSchema)
	}
	return found, nil
}

func refString(table, column string) string {
	if table == "" {
		return column
	}
	return table + "." + column
}

// qualified returns a shallow copy of the relation with every column
// re-qualified under the given alias. Rows are shared; relations are
// read-only once materialized.
func (r *Relation) qualified(alias string) *Relation {
	cols := make([]Col, len(r.Cols))
	for i, c := range r.Cols {
		cols[i] = Col{Name: c.Name, Qual: alias, Type: c.Type}
	}
	return &Relation{Cols: cols, Rows: r.Rows}
}
