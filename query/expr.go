package query

import (
	"strings"
)

// Expr is one filter clause. Clauses on a spec are conjoined with AND.
// The variants are Comparison, Range and Membership; the set is closed.
type Expr[T any] interface {
	Field() FieldRef[T]
	Operator() Operator
	Operands() []any

	validate() error
	render(w *writer)
}

// Comparison is a single-operand clause: =, <>, <, >, <=, >=, LIKE, ILIKE.
type Comparison[T any] struct {
	field FieldRef[T]
	op    Operator
	value any
}

func (c Comparison[T]) Field() FieldRef[T] { return c.field }
func (c Comparison[T]) Operator() Operator { return c.op }
func (c Comparison[T]) Operands() []any    { return []any{c.value} }

func (c Comparison[T]) validate() error {
	if c.op == Between || c.op == In || !c.op.Valid() {
		return invalid(c.field.Name(), "%s is not a single-operand operator", c.op)
	}
	return nil
}

func (c Comparison[T]) render(w *writer) {
	col := c.field.Column()
	switch c.op {
	case ILike:
		w.write(w.dialect.FoldLike(col, w.bind(c.value)), likeEscapeClause)
	case Like:
		w.write(col, " LIKE ", w.bind(c.value), likeEscapeClause)
	default:
		w.write(col, " ", c.op.Symbol(), " ", w.bind(c.value))
	}
}

// LIKE and ILIKE patterns treat a backslash as the escape character on every
// dialect, so EscapeLike output matches literally.
const likeEscapeClause = ` ESCAPE '\'`

// EscapeLike escapes the LIKE wildcards and the escape character in s, for
// embedding user input in a pattern.
func EscapeLike(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '%', '_', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Range is an inclusive BETWEEN clause.
type Range[T any] struct {
	field  FieldRef[T]
	lo, hi any
}

func (r Range[T]) Field() FieldRef[T] { return r.field }
func (r Range[T]) Operator() Operator { return Between }
func (r Range[T]) Operands() []any    { return []any{r.lo, r.hi} }
func (r Range[T]) validate() error    { return nil }

func (r Range[T]) render(w *writer) {
	w.write(r.field.Column(), " BETWEEN ", w.bind(r.lo), " AND ", w.bind(r.hi))
}

// Membership is an IN clause over a non-empty set.
type Membership[T any] struct {
	field  FieldRef[T]
	values []any
}

func (m Membership[T]) Field() FieldRef[T] { return m.field }
func (m Membership[T]) Operator() Operator { return In }

func (m Membership[T]) Operands() []any {
	out := make([]any, len(m.values))
	copy(out, m.values)
	return out
}

func (m Membership[T]) validate() error {
	if err := In.checkArity(len(m.values)); err != nil {
		return invalid(m.field.Name(), "%v", err)
	}
	return nil
}

func (m Membership[T]) render(w *writer) {
	phs := make([]string, len(m.values))
	for i, v := range m.values {
		phs[i] = w.bind(v)
	}
	w.write(m.field.Column(), " IN (", strings.Join(phs, ", "), ")")
}
