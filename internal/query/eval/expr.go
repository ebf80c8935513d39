package eval

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/tracekit/spanql/internal/query/aggregator"
	"github.com/tracekit/spanql/internal/query/parser"
	"github.com/tracekit/spanql/pkg/types"
)

// evalExpr evaluates a scalar expression against one row of rel.
// Comparisons and boolean connectives yield int64 0/1 so that any
// expression can appear in a projection.
func (e *Env) evalExpr(expr parser.Expression, rel *Relation, row []interface{}) (interface{}, error) {
	switch ex := expr.(type) {
	case *parser.Literal:
		return ex.Value, nil

	case *parser.ColumnRef:
		idx, err := rel.Resolve(ex.Table, ex.Column)
		if err != nil {
			return nil, err
		}
		return row[idx], nil

	case *parser.ParenExpr:
		return e.evalExpr(ex.Expr, rel, row)

	case *parser.UnaryExpr:
		return e.evalUnary(ex, rel, row)

	case *parser.BinaryExpr:
		return e.evalBinary(ex, rel, row)

	case *parser.InExpr:
		return e.evalIn(ex, rel, row)

	case *parser.BetweenExpr:
		return e.evalBetween(ex, rel, row)

	case *parser.IsNullExpr:
		v, err := e.evalExpr(ex.Expr, rel, row)
		if err != nil {
			return nil, err
		}
		return boolValue((v == nil) != ex.Not), nil

	case *parser.LikeExpr:
		return e.evalLike(ex, rel, row)

	case *parser.FunctionCall:
		return e.evalCall(ex, rel, row)

	case *parser.AggregateExpr:
		return nil, fmt.Errorf("eval: aggregate %s outside of aggregation: %w", ex.Function, types.ErrSchema)

	case *parser.StarExpr:
		return nil, fmt.Errorf("eval: * is only valid in SELECT and COUNT(*): %w", types.ErrSchema)
	}

	return nil, fmt.Errorf("eval: unsupported expression %s: %w", expr.String(), types.ErrSchema)
}

func (e *Env) evalUnary(ex *parser.UnaryExpr, rel *Relation, row []interface{}) (interface{}, error) {
	v, err := e.evalExpr(ex.Operand, rel, row)
	if err != nil {
		return nil, err
	}

	switch ex.Operator {
	case "NOT":
		return boolValue(!truth(v)), nil
	case "-":
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		case nil:
			return nil, nil
		}
		return nil, fmt.Errorf("eval: cannot negate %v: %w", v, types.ErrTypeMismatch)
	}
	return nil, fmt.Errorf("eval: unsupported unary operator %q: %w", ex.Operator, types.ErrSchema)
}

func (e *Env) evalBinary(ex *parser.BinaryExpr, rel *Relation, row []interface{}) (interface{}, error) {
	// AND/OR short-circuit on the left operand.
	switch ex.Operator {
	case "AND":
		l, err := e.evalExpr(ex.Left, rel, row)
		if err != nil {
			return nil, err
		}
		if !truth(l) {
			return boolValue(false), nil
		}
		r, err := e.evalExpr(ex.Right, rel, row)
		if err != nil {
			return nil, err
		}
		return boolValue(truth(r)), nil

	case "OR":
		l, err := e.evalExpr(ex.Left, rel, row)
		if err != nil {
			return nil, err
		}
		if truth(l) {
			return boolValue(true), nil
		}
		r, err := e.evalExpr(ex.Right, rel, row)
		if err != nil {
			return nil, err
		}
		return boolValue(truth(r)), nil
	}

	left, err := e.evalExpr(ex.Left, rel, row)
	if err != nil {
		return nil, err
	}
	right, err := e.evalExpr(ex.Right, rel, row)
	if err != nil {
		return nil, err
	}

	switch ex.Operator {
	case "+", "-", "*", "/":
		return arithmetic(ex.Operator, left, right)
	case "=", "<>", "!=", "<", "<=", ">", ">=":
		return compare(ex.Operator, left, right)
	}
	return nil, fmt.Errorf("eval: unsupported operator %q: %w", ex.Operator, types.ErrSchema)
}

// arithmetic applies +, -, * or / to two numeric operands. Integer
// operands stay integer except under division, which always produces a
// float. Dividing by zero is a data error, never an Inf or NaN result.
func arithmetic(op string, left, right interface{}) (interface{}, error) {
	if left == nil || right == nil {
		return nil, nil
	}

	li, lInt := left.(int64)
	ri, rInt := right.(int64)
	if lInt && rInt && op != "/" {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		}
	}

	lf, lOk := aggregator.ToFloat(left)
	rf, rOk := aggregator.ToFloat(right)
	if !lOk || !rOk {
		return nil, fmt.Errorf("eval: %s requires numeric operands, got %v and %v: %w",
			op, left, right, types.ErrTypeMismatch)
	}

	var out float64
	switch op {
	case "+":
		out = lf + rf
	case "-":
		out = lf - rf
	case "*":
		out = lf * rf
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("eval: division by zero: %w", types.ErrData)
		}
		out = lf / rf
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return nil, fmt.Errorf("eval: non-finite arithmetic result: %w", types.ErrData)
	}
	return out, nil
}

// compare applies a comparison operator. Comparing against NULL yields
// false; mixing a string with a number is a type error.
func compare(op string, left, right interface{}) (interface{}, error) {
	if left == nil || right == nil {
		return boolValue(false), nil
	}

	_, lStr := left.(string)
	_, rStr := right.(string)
	if lStr != rStr {
		return nil, fmt.Errorf("eval: cannot compare %v with %v: %w", left, right, types.ErrTypeMismatch)
	}

	cmp := aggregator.CompareValues(left, right)
	switch op {
	case "=":
		return boolValue(cmp == 0), nil
	case "<>", "!=":
		return boolValue(cmp != 0), nil
	case "<":
		return boolValue(cmp < 0), nil
	case "<=":
		return boolValue(cmp <= 0), nil
	case ">":
		return boolValue(cmp > 0), nil
	case ">=":
		return boolValue(cmp >= 0), nil
	}
	return nil, fmt.Errorf("eval: unsupported comparison %q: %w", op, types.ErrSchema)
}

func (e *Env) evalIn(ex *parser.InExpr, rel *Relation, row []interface{}) (interface{}, error) {
	v, err := e.evalExpr(ex.Expr, rel, row)
	if err != nil {
		return nil, err
	}

	match := false
	for _, cand := range ex.Values {
		cv, err := e.evalExpr(cand, rel, row)
		if err != nil {
			return nil, err
		}
		eq, err := compare("=", v, cv)
		if err != nil {
			return nil, err
		}
		if truth(eq) {
			match = true
			break
		}
	}
	return boolValue(match != ex.Not), nil
}

func (e *Env) evalBetween(ex *parser.BetweenExpr, rel *Relation, row []interface{}) (interface{}, error) {
	v, err := e.evalExpr(ex.Expr, rel, row)
	if err != nil {
		return nil, err
	}
	low, err := e.evalExpr(ex.Low, rel, row)
	if err != nil {
		return nil, err
	}
	high, err := e.evalExpr(ex.High, rel, row)
	if err != nil {
		return nil, err
	}

	ge, err := compare(">=", v, low)
	if err != nil {
		return nil, err
	}
	le, err := compare("<=", v, high)
	if err != nil {
		return nil, err
	}
	in := truth(ge) && truth(le)
	return boolValue(in != ex.Not), nil
}

func (e *Env) evalLike(ex *parser.LikeExpr, rel *Relation, row []interface{}) (interface{}, error) {
	v, err := e.evalExpr(ex.Expr, rel, row)
	if err != nil {
		return nil, err
	}
	p, err := e.evalExpr(ex.Pattern, rel, row)
	if err != nil {
		return nil, err
	}

	s, sOk := v.(string)
	pat, pOk := p.(string)
	if v == nil || p == nil {
		return boolValue(false), nil
	}
	if !sOk || !pOk {
		return nil, fmt.Errorf("eval: LIKE requires string operands: %w", types.ErrTypeMismatch)
	}

	re, err := likePattern(pat)
	if err != nil {
		return nil, err
	}
	return boolValue(re.MatchString(s) != ex.Not), nil
}

// likePattern compiles a LIKE pattern: % matches any run of characters,
// _ matches exactly one.
func likePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("eval: bad LIKE pattern %q: %w", pattern, types.ErrData)
	}
	return re, nil
}

func (e *Env) evalCall(ex *parser.FunctionCall, rel *Relation, row []interface{}) (interface{}, error) {
	if strings.EqualFold(ex.Name, "format") {
		if len(ex.Args) != 2 {
			return nil, fmt.Errorf("eval: format takes 2 arguments, got %d: %w", len(ex.Args), types.ErrSchema)
		}
		spec, err := e.evalExpr(ex.Args[0], rel, row)
		if err != nil {
			return nil, err
		}
		specStr, ok := spec.(string)
		if !ok {
			return nil, fmt.Errorf("eval: format spec must be a string: %w", types.ErrTypeMismatch)
		}
		v, err := e.evalExpr(ex.Args[1], rel, row)
		if err != nil {
			return nil, err
		}
		return formatValue(specStr, v)
	}

	if len(ex.Args) != 0 {
		return nil, fmt.Errorf("eval: function %s takes no arguments: %w", ex.Name, types.ErrSchema)
	}
	return e.callFunction(ex.Name)
}

// truth reports whether a value counts as true in a boolean position.
// NULL and zero are false, everything else true.
func truth(v interface{}) bool {
	switch n := v.(type) {
	case nil:
		return false
	case int64:
		return n != 0
	case float64:
		return n != 0
	case string:
		return n != ""
	}
	return true
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
