package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tracekit/spanql/internal/module"
	"github.com/tracekit/spanql/internal/query/aggregator"
	"github.com/tracekit/spanql/internal/query/parser"
	"github.com/tracekit/spanql/internal/store"
	"github.com/tracekit/spanql/pkg/types"
)

// Stats counts work done while evaluating one query.
type Stats struct {
	RowsScanned        int64
	TablesMaterialized int
}

// Env is the evaluation environment for a single query: the event store,
// the scope populated by INCLUDE MODULE, and memoized materializations
// of derived tables and function results. An Env must not be shared
// between queries.
type Env struct {
	store *store.Handle
	scope *module.Scope

	tables    map[string]*Relation
	fnResults map[string]interface{}
	resolving map[string]bool
	stats     Stats
}

// NewEnv creates an evaluation environment over the store and scope.
func NewEnv(h *store.Handle, scope *module.Scope) *Env {
	return &Env{
		store:     h,
		scope:     scope,
		tables:    make(map[string]*Relation),
		fnResults: make(map[string]interface{}),
		resolving: make(map[string]bool),
	}
}

// Stats returns the work counters accumulated so far.
func (e *Env) Stats() Stats {
	return e.stats
}

// Table materializes the named table: the base event table, a static
// module table, or a derived view. Results are memoized, so a view
// referenced by several queries in the same statement is expanded once.
func (e *Env) Table(name string) (*Relation, error) {
	if rel, ok := e.tables[name]; ok {
		return rel, nil
	}
	if e.resolving[name] {
		return nil, fmt.Errorf("eval: table %q refers to itself: %w", name, types.ErrCyclicDependency)
	}

	var rel *Relation
	switch {
	case name == store.TableName:
		r, err := e.scanBase()
		if err != nil {
			return nil, err
		}
		rel = r

	default:
		def, ok := e.scope.Table(name)
		if !ok {
			return nil, fmt.Errorf("eval: unknown table %q: %w", name, types.ErrSchema)
		}
		if def.Static != nil {
			rel = staticRelation(def.Static)
			break
		}

		e.resolving[name] = true
		r, err := e.Select(def.Definition())
		delete(e.resolving, name)
		if err != nil {
			return nil, fmt.Errorf("eval: view %q: %w", name, err)
		}
		rel = r
	}

	e.tables[name] = rel
	e.stats.TablesMaterialized++
	return rel, nil
}

func (e *Env) scanBase() (*Relation, error) {
	cursor, err := e.store.Scan(store.TableName)
	if err != nil {
		return nil, err
	}

	names := store.Columns()
	colTypes := store.ColumnTypes()
	cols := make([]Col, len(names))
	for i, n := range names {
		cols[i] = Col{Name: n, Type: colTypes[i]}
	}

	rows := make([][]interface{}, 0, e.store.NumEvents())
	for cursor.Next() {
		row := make([]interface{}, len(cols))
		copy(row, cursor.Row())
		rows = append(rows, row)
	}
	e.stats.RowsScanned += int64(len(rows))

	return &Relation{Cols: cols, Rows: rows}, nil
}

func staticRelation(s *module.StaticTable) *Relation {
	cols := make([]Col, len(s.Columns))
	for i, n := range s.Columns {
		cols[i] = Col{Name: n, Type: s.Types[i]}
	}
	return &Relation{Cols: cols, Rows: s.Rows}
}

// callFunction evaluates a zero-argument module function. The body must
// yield at most one row; its single value is memoized for the query.
func (e *Env) callFunction(name string) (interface{}, error) {
	if v, ok := e.fnResults[name]; ok {
		return v, nil
	}

	def, ok := e.scope.Function(name)
	if !ok {
		return nil, fmt.Errorf("eval: unknown function %q: %w", name, types.ErrNotFound)
	}

	guard := "fn:" + name
	if e.resolving[guard] {
		return nil, fmt.Errorf("eval: function %q refers to itself: %w", name, types.ErrCyclicDependency)
	}
	e.resolving[guard] = true
	rel, err := e.Select(def.Definition())
	delete(e.resolving, guard)
	if err != nil {
		return nil, fmt.Errorf("eval: function %q: %w", name, err)
	}

	if len(rel.Cols) != 1 {
		return nil, fmt.Errorf("eval: function %q yields %d columns, want 1: %w", name, len(rel.Cols), types.ErrSchema)
	}
	var v interface{}
	switch len(rel.Rows) {
	case 0:
		v = nil
	case 1:
		v = rel.Rows[0][0]
	default:
		return nil, fmt.Errorf("eval: function %q yields %d rows, want at most 1: %w", name, len(rel.Rows), types.ErrData)
	}

	e.fnResults[name] = v
	return v, nil
}

// Select evaluates one SELECT statement to a relation.
func (e *Env) Select(stmt *parser.SelectStatement) (*Relation, error) {
	src, err := e.sourceRelation(stmt)
	if err != nil {
		return nil, err
	}

	rows := src.Rows
	if stmt.Where != nil {
		filtered := make([][]interface{}, 0, len(rows))
		for _, row := range rows {
			v, err := e.evalExpr(stmt.Where, src, row)
			if err != nil {
				return nil, err
			}
			if truth(v) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	var out *Relation
	if len(stmt.GroupBy) > 0 || hasAggregate(stmt.Columns) {
		out, err = e.evalGrouped(stmt, src, rows)
	} else {
		out, err = e.project(stmt.Columns, src, rows)
	}
	if err != nil {
		return nil, err
	}

	if stmt.Distinct {
		out.Rows = distinctRows(out.Rows)
	}

	if len(stmt.OrderBy) > 0 {
		keys := make([]aggregator.SortKey, len(stmt.OrderBy))
		for i, clause := range stmt.OrderBy {
			idx, err := orderIndex(clause.Expr, out)
			if err != nil {
				return nil, err
			}
			keys[i] = aggregator.SortKey{Index: idx, Desc: clause.Desc}
		}
		aggregator.SortRows(out.Rows, keys)
	}

	out.Rows = aggregator.Limit(out.Rows, stmt.Limit, stmt.Offset)
	return out, nil
}

// sourceRelation builds the input relation for a SELECT: a single empty
// row when there is no FROM, the (re-qualified) FROM table, or the
// nested-loop join of FROM and JOIN filtered by the ON predicate.
func (e *Env) sourceRelation(stmt *parser.SelectStatement) (*Relation, error) {
	if stmt.From == nil {
		return &Relation{Rows: [][]interface{}{{}}}, nil
	}

	left, err := e.Table(stmt.From.Name)
	if err != nil {
		return nil, err
	}
	left = left.qualified(tableQual(stmt.From))

	if stmt.Join == nil {
		return left, nil
	}

	right, err := e.Table(stmt.Join.Table.Name)
	if err != nil {
		return nil, err
	}
	right = right.qualified(tableQual(stmt.Join.Table))

	joined := &Relation{Cols: append(append([]Col{}, left.Cols...), right.Cols...)}
	for _, lrow := range left.Rows {
		for _, rrow := range right.Rows {
			row := make([]interface{}, 0, len(lrow)+len(rrow))
			row = append(row, lrow...)
			row = append(row, rrow...)

			v, err := e.evalExpr(stmt.Join.On, joined, row)
			if err != nil {
				return nil, err
			}
			if truth(v) {
				joined.Rows = append(joined.Rows, row)
			}
		}
	}
	return joined, nil
}

func tableQual(ref *parser.TableRef) string {
	if ref.Alias != "" {
		return ref.Alias
	}
	return ref.Name
}

// projCol is one expanded projection item. Stars expand to one projCol
// per source column.
type projCol struct {
	name string
	expr parser.Expression
}

func expandColumns(columns []parser.SelectColumn, src *Relation) ([]projCol, error) {
	var out []projCol
	for _, col := range columns {
		star, ok := col.Expr.(*parser.StarExpr)
		if !ok {
			name := col.Alias
			if name == "" {
				name = col.Expr.String()
			}
			out = append(out, projCol{name: name, expr: col.Expr})
			continue
		}

		if col.Alias != "" {
			return nil, fmt.Errorf("eval: cannot alias %s: %w", star.String(), types.ErrSchema)
		}
		matched := false
		for _, c := range src.Cols {
			if star.Table != "" && c.Qual != star.Table {
				continue
			}
			matched = true
			out = append(out, projCol{
				name: c.Name,
				expr: &parser.ColumnRef{Table: c.Qual, Column: c.Name},
			})
		}
		if !matched {
			return nil, fmt.Errorf("eval: %s matches no columns: %w", star.String(), types.ErrSchema)
		}
	}
	return out, nil
}

func (e *Env) project(columns []parser.SelectColumn, src *Relation, rows [][]interface{}) (*Relation, error) {
	cols, err := expandColumns(columns, src)
	if err != nil {
		return nil, err
	}

	out := &Relation{Cols: make([]Col, len(cols))}
	for i, pc := range cols {
		t, err := e.inferType(pc.expr, src)
		if err != nil {
			return nil, err
		}
		out.Cols[i] = Col{Name: pc.name, Type: t}
	}

	out.Rows = make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		outRow := make([]interface{}, len(cols))
		for i, pc := range cols {
			v, err := e.evalExpr(pc.expr, src, row)
			if err != nil {
				return nil, err
			}
			outRow[i] = v
		}
		out.Rows = append(out.Rows, outRow)
	}
	return out, nil
}

// aggGroup is the running state of one GROUP BY group.
type aggGroup struct {
	keyVals []interface{}
	accs    []*aggregator.Accumulator
	seen    []map[string]bool // per-accumulator DISTINCT filter
}

// evalGrouped evaluates an aggregating SELECT. Every projected column
// must be either an aggregate or one of the GROUP BY expressions. Output
// groups are sorted by their key values, so group order never depends on
// input order.
func (e *Env) evalGrouped(stmt *parser.SelectStatement, src *Relation, rows [][]interface{}) (*Relation, error) {
	cols, err := expandColumns(stmt.Columns, src)
	if err != nil {
		return nil, err
	}

	// Map each projected column to a group-by key slot or an aggregate.
	type colPlan struct {
		keyIdx int                   // >= 0 when the column is a group key
		agg    *parser.AggregateExpr // set when the column aggregates
		typ    aggregator.AggregateType
	}
	plans := make([]colPlan, len(cols))
	var aggExprs []*parser.AggregateExpr
	for i, pc := range cols {
		if agg, ok := pc.expr.(*parser.AggregateExpr); ok {
			typ, err := aggregator.ParseAggregateType(agg.Function)
			if err != nil {
				return nil, err
			}
			plans[i] = colPlan{keyIdx: -1, agg: agg, typ: typ}
			aggExprs = append(aggExprs, agg)
			continue
		}

		keyIdx := -1
		for j, g := range stmt.GroupBy {
			if pc.expr.String() == g.String() {
				keyIdx = j
				break
			}
		}
		if keyIdx < 0 {
			return nil, fmt.Errorf("eval: column %s must appear in GROUP BY or an aggregate: %w",
				pc.expr.String(), types.ErrSchema)
		}
		plans[i] = colPlan{keyIdx: keyIdx}
	}

	newGroup := func(keyVals []interface{}) *aggGroup {
		g := &aggGroup{
			keyVals: keyVals,
			accs:    make([]*aggregator.Accumulator, len(aggExprs)),
			seen:    make([]map[string]bool, len(aggExprs)),
		}
		for i, agg := range aggExprs {
			typ, _ := aggregator.ParseAggregateType(agg.Function)
			g.accs[i] = aggregator.NewAccumulator(typ)
			if agg.Distinct {
				g.seen[i] = make(map[string]bool)
			}
		}
		return g
	}

	groups := make(map[string]*aggGroup)
	if len(stmt.GroupBy) == 0 {
		// A single group so that aggregates over an empty input still
		// produce one output row.
		groups[""] = newGroup(nil)
	}

	for _, row := range rows {
		keyVals := make([]interface{}, len(stmt.GroupBy))
		for i, g := range stmt.GroupBy {
			v, err := e.evalExpr(g, src, row)
			if err != nil {
				return nil, err
			}
			keyVals[i] = v
		}
		key := encodeRowKey(keyVals)

		g, ok := groups[key]
		if !ok {
			g = newGroup(keyVals)
			groups[key] = g
		}

		for i, agg := range aggExprs {
			var v interface{} = int64(1) // COUNT(*) counts rows
			if agg.Arg != nil {
				if _, isStar := agg.Arg.(*parser.StarExpr); !isStar {
					v, err = e.evalExpr(agg.Arg, src, row)
					if err != nil {
						return nil, err
					}
				}
			}
			if g.seen[i] != nil {
				k := encodeRowKey([]interface{}{v})
				if g.seen[i][k] {
					continue
				}
				g.seen[i][k] = true
			}
			if err := g.accs[i].Accumulate(v); err != nil {
				return nil, err
			}
		}
	}

	ordered := make([]*aggGroup, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sortGroups(ordered)

	out := &Relation{Cols: make([]Col, len(cols))}
	for i, pc := range cols {
		var t types.ColumnType
		if plans[i].agg != nil {
			argType := types.TypeInt
			if plans[i].agg.Arg != nil {
				if _, isStar := plans[i].agg.Arg.(*parser.StarExpr); !isStar {
					argType, err = e.inferType(plans[i].agg.Arg, src)
					if err != nil {
						return nil, err
					}
				}
			}
			t = plans[i].typ.ResultType(argType)
		} else {
			t, err = e.inferType(stmt.GroupBy[plans[i].keyIdx], src)
			if err != nil {
				return nil, err
			}
		}
		out.Cols[i] = Col{Name: pc.name, Type: t}
	}

	out.Rows = make([][]interface{}, 0, len(ordered))
	for _, g := range ordered {
		row := make([]interface{}, len(cols))
		accIdx := 0
		for i := range cols {
			if plans[i].agg != nil {
				v, err := g.accs[accIdx].Result()
				if err != nil {
					return nil, err
				}
				row[i] = v
				accIdx++
			} else {
				row[i] = g.keyVals[plans[i].keyIdx]
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// sortGroups orders groups by their key values ascending.
func sortGroups(groups []*aggGroup) {
	rows := make([][]interface{}, len(groups))
	for i, g := range groups {
		rows[i] = append(append([]interface{}{}, g.keyVals...), g)
	}
	keys := make([]aggregator.SortKey, 0)
	if len(groups) > 0 {
		for i := range groups[0].keyVals {
			keys = append(keys, aggregator.SortKey{Index: i})
		}
	}
	aggregator.SortRows(rows, keys)
	for i, row := range rows {
		groups[i] = row[len(row)-1].(*aggGroup)
	}
}

func hasAggregate(columns []parser.SelectColumn) bool {
	for _, col := range columns {
		if _, ok := col.Expr.(*parser.AggregateExpr); ok {
			return true
		}
	}
	return false
}

// distinctRows drops duplicate rows, keeping the first occurrence.
func distinctRows(rows [][]interface{}) [][]interface{} {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		k := encodeRowKey(row)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out
}

// orderIndex resolves an ORDER BY expression against the output
// relation: a bare column reference matches an output column name or
// alias, any other expression matches a column projected under the same
// text.
func orderIndex(expr parser.Expression, out *Relation) (int, error) {
	target := expr.String()
	if cr, ok := expr.(*parser.ColumnRef); ok && cr.Table == "" {
		target = cr.Column
	}
	for i, c := range out.Cols {
		if c.Name == target {
			return i, nil
		}
	}
	return 0, fmt.Errorf("eval: ORDER BY %s does not name an output column: %w", expr.String(), types.ErrSchema)
}

// encodeRowKey builds a type-tagged string key for grouping and
// DISTINCT so that values of different types never collide.
func encodeRowKey(vals []interface{}) string {
	var sb strings.Builder
	for _, v := range vals {
		switch n := v.(type) {
		case nil:
			sb.WriteString("n|")
		case int64:
			sb.WriteString("i")
			sb.WriteString(strconv.FormatInt(n, 10))
			sb.WriteString("|")
		case float64:
			sb.WriteString("f")
			sb.WriteString(strconv.FormatFloat(n, 'g', -1, 64))
			sb.WriteString("|")
		case string:
			sb.WriteString("s")
			sb.WriteString(strconv.Quote(n))
			sb.WriteString("|")
		default:
			fmt.Fprintf(&sb, "v%v|", n)
		}
	}
	return sb.String()
}

// inferType computes the static type of an expression over src.
func (e *Env) inferType(expr parser.Expression, src *Relation) (types.ColumnType, error) {
	switch ex := expr.(type) {
	case *parser.Literal:
		if t, ok := types.ValueType(ex.Value); ok {
			return t, nil
		}
		return types.TypeString, nil

	case *parser.ColumnRef:
		idx, err := src.Resolve(ex.Table, ex.Column)
		if err != nil {
			return 0, err
		}
		return src.Cols[idx].Type, nil

	case *parser.ParenExpr:
		return e.inferType(ex.Expr, src)

	case *parser.UnaryExpr:
		if ex.Operator == "NOT" {
			return types.TypeInt, nil
		}
		return e.inferType(ex.Operand, src)

	case *parser.BinaryExpr:
		switch ex.Operator {
		case "/":
			return types.TypeFloat, nil
		case "+", "-", "*":
			lt, err := e.inferType(ex.Left, src)
			if err != nil {
				return 0, err
			}
			rt, err := e.inferType(ex.Right, src)
			if err != nil {
				return 0, err
			}
			if lt == types.TypeFloat || rt == types.TypeFloat {
				return types.TypeFloat, nil
			}
			return types.TypeInt, nil
		}
		return types.TypeInt, nil

	case *parser.InExpr, *parser.BetweenExpr, *parser.IsNullExpr, *parser.LikeExpr:
		return types.TypeInt, nil

	case *parser.FunctionCall:
		if strings.EqualFold(ex.Name, "format") {
			return types.TypeString, nil
		}
		v, err := e.callFunction(ex.Name)
		if err != nil {
			return 0, err
		}
		if t, ok := types.ValueType(v); ok {
			return t, nil
		}
		return types.TypeFloat, nil

	case *parser.AggregateExpr:
		typ, err := aggregator.ParseAggregateType(ex.Function)
		if err != nil {
			return 0, err
		}
		argType := types.TypeInt
		if ex.Arg != nil {
			if _, isStar := ex.Arg.(*parser.StarExpr); !isStar {
				argType, err = e.inferType(ex.Arg, src)
				if err != nil {
					return 0, err
				}
			}
		}
		return typ.ResultType(argType), nil
	}

	return 0, fmt.Errorf("eval: cannot type expression %s: %w", expr.String(), types.ErrSchema)
}
