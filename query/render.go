package query

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// DIALECTS
// =============================================================================

// Dialect covers the SQL differences between supported backends.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder(n int) string
	// FoldLike renders a case-insensitive pattern match.
	FoldLike(column, placeholder string) string
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string          { return "sqlite" }
func (sqliteDialect) Placeholder(int) string { return "?" }
func (sqliteDialect) FoldLike(column, ph string) string {
	return "LOWER(" + column + ") LIKE LOWER(" + ph + ")"
}

type postgresDialect struct{}

func (postgresDialect) Name() string            { return "postgres" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) FoldLike(column, ph string) string {
	return column + " ILIKE " + ph
}

var (
	SQLite   Dialect = sqliteDialect{}
	Postgres Dialect = postgresDialect{}
)

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "pgx":
		return Postgres, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

// Placeholders returns n bind markers starting at argument position start.
func Placeholders(d Dialect, start, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = d.Placeholder(start + i)
	}
	return out
}

// =============================================================================
// STATEMENT RENDERING
// =============================================================================

// Statement is rendered SQL with its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

type writer struct {
	dialect Dialect
	sb      strings.Builder
	args    []any
}

func (w *writer) write(parts ...string) {
	for _, p := range parts {
		w.sb.WriteString(p)
	}
}

// bind records v as the next argument and returns its placeholder.
func (w *writer) bind(v any) string {
	w.args = append(w.args, v)
	return w.dialect.Placeholder(len(w.args))
}

// Render turns the spec into a parameterized SELECT.
// Filters render in call order, sort keys in call order (first is primary).
func (s Spec[T]) Render(d Dialect) Statement {
	w := &writer{dialect: d}

	cols := s.Columns()
	names := make([]string, len(cols))
	for i, f := range cols {
		names[i] = f.Column()
	}
	w.write("SELECT ", strings.Join(names, ", "), " FROM ", s.Table.Name())

	for i, e := range s.Filters {
		if i == 0 {
			w.write(" WHERE ")
		} else {
			w.write(" AND ")
		}
		e.render(w)
	}

	for i, k := range s.Sorts {
		if i == 0 {
			w.write(" ORDER BY ")
		} else {
			w.write(", ")
		}
		dir := "ASC"
		if !k.Ascending {
			dir = "DESC"
		}
		w.write(k.Field.Column(), " ", dir)
	}

	switch {
	case s.Arity == ArityOne:
		// Two rows are enough to tell "exactly one" from "ambiguous".
		w.write(" LIMIT 2")
	case s.Limit > 0:
		w.write(" LIMIT ", strconv.Itoa(s.Limit))
	}

	return Statement{SQL: w.sb.String(), Args: w.args}
}
