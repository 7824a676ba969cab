/*
Package query builds and executes parameterized queries over typed records.

PURPOSE:
  Turns a declarative description (target table, projection, filters, sort
  keys, result arity) into a parameterized SELECT and scans the rows back into
  the record type. The package knows nothing about any particular domain.

BUILDER CONTRACT:
  b := store.Select[Quote](gw)            // or query.New[Quote](executor)
  b.From(Quotes).
    Where(QuoteDate.Between(start, end)).
    OrderBy(QuoteDate, true).
    List(ctx)

  - Select(fields...)   replaces the projection (last call wins); no fields
                        means all fields.
  - From(table)         required exactly once.
  - Where(exprs...)     appends clauses; all clauses are AND-ed.
  - OrderBy(f, asc)     appends a sort key; first call is the primary key.
  - One(ctx)            zero rows -> empty Optional, more than one row ->
                        ErrAmbiguousResult.
  - List(ctx)           zero rows -> empty, non-nil slice.

  The *Named variants accept attribute names as strings for callers that get
  them at runtime. Names are checked against the table's attribute set when
  the Spec is built, before anything reaches the backend.

VALIDATION:
  The first validation failure is kept and every later chained call is a
  no-op. Build, One and List return it without touching the backend.

SINGLE USE:
  A builder executes once. The Spec it hands to the executor is a fresh copy
  and is never cached.

SEE ALSO:
  - field.go:  Field and Table declarations
  - expr.go:   clause variants
  - render.go: SQL rendering per dialect
  - store/gateway.go: the executor used in production
*/
package query

import (
	"context"
	"database/sql"
	"fmt"
)

// Arity is the result shape requested from a Spec.
type Arity int

const (
	ArityMany Arity = iota
	ArityOne
)

// SortKey orders results by one field.
type SortKey[T any] struct {
	Field     FieldRef[T]
	Ascending bool
}

// Spec is a fully validated query description. Empty Projection means all
// fields of the table.
type Spec[T any] struct {
	Table      *Table[T]
	Projection []FieldRef[T]
	Filters    []Expr[T]
	Sorts      []SortKey[T]
	Arity      Arity
	Limit      int
}

// Columns returns the fields the query selects, in select order.
func (s Spec[T]) Columns() []FieldRef[T] {
	if len(s.Projection) > 0 {
		return s.Projection
	}
	return s.Table.Fields()
}

// Executor runs rendered statements. *store.Gateway implements it.
type Executor interface {
	Dialect() Dialect
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// =============================================================================
// BUILDER
// =============================================================================

type fieldStep[T any] struct {
	ref  FieldRef[T]
	name string
}

type filterStep[T any] struct {
	expr     Expr[T]
	name     string
	op       Operator
	operands []any
}

type sortStep[T any] struct {
	ref  FieldRef[T]
	name string
	asc  bool
}

// Builder incrementally describes a query over record type T.
type Builder[T any] struct {
	exec Executor

	table     *Table[T]
	fromCalls int
	project   []fieldStep[T]
	filters   []filterStep[T]
	sorts     []sortStep[T]
	limit     int

	err   error
	spent bool
}

// New returns a builder bound to exec. A nil exec is allowed for builders
// that are only rendered.
func New[T any](exec Executor) *Builder[T] {
	return &Builder[T]{exec: exec}
}

func (b *Builder[T]) fail(err error) *Builder[T] {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Select sets the projection, replacing any earlier one.
func (b *Builder[T]) Select(fields ...FieldRef[T]) *Builder[T] {
	if b.err != nil {
		return b
	}
	b.project = b.project[:0]
	for _, f := range fields {
		b.project = append(b.project, fieldStep[T]{ref: f})
	}
	return b
}

// SelectNamed sets the projection by attribute name, replacing any earlier one.
func (b *Builder[T]) SelectNamed(names ...string) *Builder[T] {
	if b.err != nil {
		return b
	}
	b.project = b.project[:0]
	for _, n := range names {
		b.project = append(b.project, fieldStep[T]{name: n})
	}
	return b
}

// From fixes the target table.
func (b *Builder[T]) From(t *Table[T]) *Builder[T] {
	if b.err != nil {
		return b
	}
	b.fromCalls++
	if b.fromCalls > 1 {
		return b.fail(&ValidationError{Table: t.Name(), Reason: "From called more than once"})
	}
	b.table = t
	return b
}

// Where appends typed clauses.
func (b *Builder[T]) Where(exprs ...Expr[T]) *Builder[T] {
	if b.err != nil {
		return b
	}
	for _, e := range exprs {
		if err := e.validate(); err != nil {
			return b.fail(err)
		}
		b.filters = append(b.filters, filterStep[T]{expr: e})
	}
	return b
}

// WhereNamed appends a clause on the attribute called name. Operand arity is
// checked immediately; the name and operand types are checked at build time.
// IN takes either the members as separate operands or a single []V.
func (b *Builder[T]) WhereNamed(name string, op Operator, operands ...any) *Builder[T] {
	if b.err != nil {
		return b
	}
	if !op.Valid() {
		return b.fail(invalid(name, "unknown operator %d", int(op)))
	}
	if err := op.checkArity(len(operands)); err != nil {
		return b.fail(invalid(name, "%v", err))
	}
	b.filters = append(b.filters, filterStep[T]{name: name, op: op, operands: operands})
	return b
}

// OrderBy appends a sort key.
func (b *Builder[T]) OrderBy(f FieldRef[T], ascending bool) *Builder[T] {
	if b.err != nil {
		return b
	}
	b.sorts = append(b.sorts, sortStep[T]{ref: f, asc: ascending})
	return b
}

// OrderByNamed appends a sort key on the attribute called name.
func (b *Builder[T]) OrderByNamed(name string, ascending bool) *Builder[T] {
	if b.err != nil {
		return b
	}
	b.sorts = append(b.sorts, sortStep[T]{name: name, asc: ascending})
	return b
}

// Limit caps the number of rows List returns. Zero means no cap.
func (b *Builder[T]) Limit(n int) *Builder[T] {
	if b.err != nil {
		return b
	}
	if n < 0 {
		return b.fail(invalid("", "negative limit %d", n))
	}
	b.limit = n
	return b
}

// Build validates the builder and returns the resulting Spec.
func (b *Builder[T]) Build(arity Arity) (Spec[T], error) {
	if b.err != nil {
		return Spec[T]{}, b.err
	}
	if b.table == nil {
		return Spec[T]{}, invalid("", "no target table: From must be called before execution")
	}
	t := b.table
	tableErr := func(err error) error {
		if ve, ok := err.(*ValidationError); ok && ve.Table == "" {
			ve.Table = t.Name()
		}
		return err
	}

	spec := Spec[T]{Table: t, Arity: arity, Limit: b.limit}

	for _, s := range b.project {
		f, err := b.resolve(s.ref, s.name, "select")
		if err != nil {
			return Spec[T]{}, tableErr(err)
		}
		spec.Projection = append(spec.Projection, f)
	}

	for _, s := range b.filters {
		if s.expr != nil {
			if !t.Has(s.expr.Field()) {
				return Spec[T]{}, tableErr(invalid(s.expr.Field().Name(), "where: not an attribute of this table"))
			}
			spec.Filters = append(spec.Filters, s.expr)
			continue
		}
		f, err := b.resolve(nil, s.name, "where")
		if err != nil {
			return Spec[T]{}, tableErr(err)
		}
		e, err := f.clause(s.op, s.operands)
		if err != nil {
			return Spec[T]{}, tableErr(err)
		}
		spec.Filters = append(spec.Filters, e)
	}

	for _, s := range b.sorts {
		f, err := b.resolve(s.ref, s.name, "orderBy")
		if err != nil {
			return Spec[T]{}, tableErr(err)
		}
		spec.Sorts = append(spec.Sorts, SortKey[T]{Field: f, Ascending: s.asc})
	}

	return spec, nil
}

func (b *Builder[T]) resolve(ref FieldRef[T], name, role string) (FieldRef[T], error) {
	if ref != nil {
		if !b.table.Has(ref) {
			return nil, invalid(ref.Name(), "%s: not an attribute of this table", role)
		}
		return ref, nil
	}
	f, ok := b.table.Field(name)
	if !ok {
		return nil, invalid(name, "%s: unknown field", role)
	}
	return f, nil
}

// =============================================================================
// EXECUTION
// =============================================================================

// One executes a single-result query.
func (b *Builder[T]) One(ctx context.Context) (Optional[T], error) {
	recs, err := b.run(ctx, ArityOne)
	if err != nil {
		return None[T](), err
	}
	switch len(recs) {
	case 0:
		return None[T](), nil
	case 1:
		return Some(recs[0]), nil
	default:
		return None[T](), fmt.Errorf("%s: %w", b.table.Name(), ErrAmbiguousResult)
	}
}

// List executes a multi-result query.
func (b *Builder[T]) List(ctx context.Context) ([]T, error) {
	return b.run(ctx, ArityMany)
}

func (b *Builder[T]) run(ctx context.Context, arity Arity) ([]T, error) {
	if b.spent {
		return nil, ErrBuilderSpent
	}
	spec, err := b.Build(arity)
	if err != nil {
		return nil, err
	}
	if b.exec == nil {
		return nil, ErrNoExecutor
	}
	b.spent = true

	st := spec.Render(b.exec.Dialect())
	rows, err := b.exec.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", spec.Table.Name(), err)
	}
	defer rows.Close()

	return ScanAll(rows, spec.Columns())
}

// ScanAll reads every row into a new T, scanning columns in order into the
// given fields. The result is never nil.
func ScanAll[T any](rows *sql.Rows, cols []FieldRef[T]) ([]T, error) {
	out := []T{}
	for rows.Next() {
		rec, err := ScanOne(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanOne scans the current row into a new T.
func ScanOne[T any](row Scanner, cols []FieldRef[T]) (T, error) {
	var rec T
	dest := make([]any, len(cols))
	for i, f := range cols {
		dest[i] = f.Addr(&rec)
	}
	if err := row.Scan(dest...); err != nil {
		return rec, fmt.Errorf("scan: %w", err)
	}
	return rec, nil
}
