// Package module provides named bundles of derived-table and scalar-function
// definitions, a registry resolving them by dotted name, and the per-query
// scope that INCLUDE MODULE populates.
package module

import (
	"fmt"
	"regexp"

	"github.com/tracekit/spanql/internal/query/parser"
	"github.com/tracekit/spanql/pkg/types"
)

// Module is a named bundle of definitions, loadable by dotted name
// (e.g. "chrome.jetstream_3"). Modules may depend on other modules via
// Includes; the dependency graph must be acyclic.
type Module struct {
	// Name is the dotted module name.
	Name string

	// Includes lists modules whose definitions this module builds on.
	Includes []string

	// Tables are the derived tables the module defines.
	Tables []*TableDef

	// Functions are the scalar functions the module defines.
	Functions []*FunctionDef
}

// TableDef defines a derived table: either a view over other tables
// (SQL set) or a static literal relation (Static set). Exactly one of
// the two must be present.
type TableDef struct {
	Name   string
	SQL    string
	Static *StaticTable

	stmt *parser.SelectStatement // parsed at registration
}

// Definition returns the parsed view definition, or nil for static tables.
func (d *TableDef) Definition() *parser.SelectStatement {
	return d.stmt
}

// StaticTable is a literal relation shipped with a module, such as a
// table of per-suite reference times.
type StaticTable struct {
	Columns []string
	Types   []types.ColumnType
	Rows    [][]interface{}
}

// FunctionDef defines a zero-argument scalar function as a SELECT that
// yields a single row with a single column.
type FunctionDef struct {
	Name string
	SQL  string

	stmt *parser.SelectStatement // parsed at registration
}

// Definition returns the parsed function body.
func (d *FunctionDef) Definition() *parser.SelectStatement {
	return d.stmt
}

var moduleNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)*$`)

// validate checks the module's shape and parses its definitions.
func (m *Module) validate() error {
	if !moduleNameRe.MatchString(m.Name) {
		return fmt.Errorf("module: invalid module name %q", m.Name)
	}

	for _, t := range m.Tables {
		if t.Name == "" {
			return fmt.Errorf("module %s: unnamed table", m.Name)
		}
		switch {
		case t.SQL != "" && t.Static != nil:
			return fmt.Errorf("module %s: table %q has both SQL and static rows", m.Name, t.Name)
		case t.SQL != "":
			stmt, err := parser.ParseSelect(t.SQL)
			if err != nil {
				return fmt.Errorf("module %s: table %q: %w", m.Name, t.Name, err)
			}
			t.stmt = stmt
		case t.Static != nil:
			if err := t.Static.validate(); err != nil {
				return fmt.Errorf("module %s: table %q: %w", m.Name, t.Name, err)
			}
		default:
			return fmt.Errorf("module %s: table %q has no definition", m.Name, t.Name)
		}
	}

	for _, f := range m.Functions {
		if f.Name == "" {
			return fmt.Errorf("module %s: unnamed function", m.Name)
		}
		stmt, err := parser.ParseSelect(f.SQL)
		if err != nil {
			return fmt.Errorf("module %s: function %q: %w", m.Name, f.Name, err)
		}
		if len(stmt.Columns) != 1 {
			return fmt.Errorf("module %s: function %q must select exactly one column", m.Name, f.Name)
		}
		f.stmt = stmt
	}

	return nil
}

// validate checks that every static row matches the declared schema.
func (s *StaticTable) validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("static table has no columns")
	}
	if len(s.Types) != len(s.Columns) {
		return fmt.Errorf("static table declares %d columns but %d types", len(s.Columns), len(s.Types))
	}
	for i, row := range s.Rows {
		if len(row) != len(s.Columns) {
			return fmt.Errorf("static row %d has %d values, want %d", i, len(row), len(s.Columns))
		}
		for j, v := range row {
			if !s.Types[j].Matches(v) {
				return fmt.Errorf("static row %d column %q: %v does not match declared type %s: %w",
					i, s.Columns[j], v, s.Types[j], types.ErrTypeMismatch)
			}
		}
	}
	return nil
}
