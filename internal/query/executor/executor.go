// Package executor runs query scripts end to end: parse, apply INCLUDE
// MODULE statements to a fresh scope, evaluate the final SELECT, and
// validate the typed rowset before handing it to the caller.
package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tracekit/spanql/internal/module"
	"github.com/tracekit/spanql/internal/observability"
	"github.com/tracekit/spanql/internal/query/eval"
	"github.com/tracekit/spanql/internal/query/parser"
	"github.com/tracekit/spanql/internal/store"
	"github.com/tracekit/spanql/pkg/types"
)

// Executor executes scripts against a module registry. It is safe for
// concurrent use; every Execute call gets its own scope and evaluation
// environment.
type Executor struct {
	registry *module.Registry
	metrics  *observability.Metrics
}

// New creates an executor. metrics may be nil.
func New(registry *module.Registry, metrics *observability.Metrics) *Executor {
	return &Executor{registry: registry, metrics: metrics}
}

// Stats describes the work one query did.
type Stats struct {
	RowsScanned        int64
	TablesMaterialized int
	Elapsed            time.Duration
}

// Result is a fully evaluated, typed rowset.
type Result struct {
	QueryID string
	Columns []string
	Types   []types.ColumnType
	Rows    [][]interface{}
	Stats   Stats
}

// Execute runs one script: zero or more INCLUDE MODULE statements
// followed by exactly one SELECT. A failing query yields no rows, only
// an error.
func (e *Executor) Execute(ctx context.Context, h *store.Handle, script string) (*Result, error) {
	start := time.Now()
	res, err := e.execute(ctx, h, script)

	var scanned int64
	if res != nil {
		res.Stats.Elapsed = time.Since(start)
		scanned = res.Stats.RowsScanned
	}
	e.metrics.ObserveQuery(err, time.Since(start), scanned)

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Executor) execute(ctx context.Context, h *store.Handle, script string) (*Result, error) {
	stmts, err := parser.ParseScript(script)
	if err != nil {
		return nil, err
	}

	scope := e.registry.NewScope()
	var sel *parser.SelectStatement
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch s := stmt.(type) {
		case *parser.IncludeStatement:
			if sel != nil {
				return nil, fmt.Errorf("executor: INCLUDE MODULE after SELECT: %w", types.ErrSchema)
			}
			if err := scope.Include(s.Module); err != nil {
				return nil, err
			}
		case *parser.SelectStatement:
			if sel != nil {
				return nil, fmt.Errorf("executor: statement %d: only one SELECT per script: %w", i+1, types.ErrSchema)
			}
			sel = s
		default:
			return nil, fmt.Errorf("executor: unsupported statement %T: %w", stmt, types.ErrSchema)
		}
	}
	if sel == nil {
		return nil, fmt.Errorf("executor: script has no SELECT: %w", types.ErrSchema)
	}

	env := eval.NewEnv(h, scope)
	rel, err := env.Select(sel)
	if err != nil {
		return nil, err
	}

	res := &Result{
		QueryID: uuid.NewString(),
		Columns: make([]string, len(rel.Cols)),
		Types:   make([]types.ColumnType, len(rel.Cols)),
		Rows:    rel.Rows,
	}
	for i, c := range rel.Cols {
		res.Columns[i] = c.Name
		res.Types[i] = c.Type
	}
	stats := env.Stats()
	res.Stats.RowsScanned = stats.RowsScanned
	res.Stats.TablesMaterialized = stats.TablesMaterialized

	if err := validate(res); err != nil {
		return nil, err
	}
	return res, nil
}

// validate checks every output value against its declared column type
// and rejects non-finite floats. NULL matches any type.
func validate(res *Result) error {
	for _, row := range res.Rows {
		if len(row) != len(res.Columns) {
			return fmt.Errorf("executor: row has %d values, want %d: %w", len(row), len(res.Columns), types.ErrSchema)
		}
		for i, v := range row {
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				return fmt.Errorf("executor: column %q: non-finite value: %w", res.Columns[i], types.ErrData)
			}
			if !res.Types[i].Matches(v) {
				return fmt.Errorf("executor: column %q: %v does not match declared type %s: %w",
					res.Columns[i], v, res.Types[i], types.ErrTypeMismatch)
			}
		}
	}
	return nil
}
