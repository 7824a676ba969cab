/*
field.go - Typed field tokens and table descriptors

PURPOSE:
  A Field[T, V] is a compile-time reference to one attribute of record type T
  whose Go type is V. Clause constructors on the field only accept operands of
  type V, so a date column cannot be compared against a string by accident.

  A Table[T] is the target-type descriptor handed to From(). It owns the
  attribute set used to validate names on the dynamic (string) path, and it
  knows how identity is assigned on insert.

EXAMPLE:
  type Widget struct {
      ID   int64
      Name string
  }

  var (
      WidgetID   = query.NewField("id", "id", func(w *Widget) *int64 { return &w.ID })
      WidgetName = query.NewField("name", "name", func(w *Widget) *string { return &w.Name })
      Widgets    = query.NewTable[Widget]("widgets", WidgetID, WidgetName)
  )

  b.From(Widgets).Where(WidgetName.Eq("bolt"), WidgetID.Gt(10))
*/
package query

import (
	"fmt"
	"reflect"
)

// FieldRef is the type-erased view of a Field used by tables and specs.
// It is implemented only by Field.
type FieldRef[T any] interface {
	// Name is the attribute name used on the dynamic path.
	Name() string
	// Column is the storage column the attribute maps to.
	Column() string
	// Addr returns a pointer to the attribute inside rec, suitable for Scan.
	Addr(rec *T) any
	// Value returns the attribute's current value, suitable as a bind argument.
	Value(rec *T) any

	clause(op Operator, operands []any) (Expr[T], error)
	isZero(rec *T) bool
}

// Field references attribute V of record type T.
type Field[T any, V any] struct {
	name   string
	column string
	ref    func(*T) *V
}

// NewField declares a field. ref must return a pointer into the record.
func NewField[T any, V any](name, column string, ref func(*T) *V) Field[T, V] {
	return Field[T, V]{name: name, column: column, ref: ref}
}

func (f Field[T, V]) Name() string   { return f.name }
func (f Field[T, V]) Column() string { return f.column }

func (f Field[T, V]) Addr(rec *T) any  { return f.ref(rec) }
func (f Field[T, V]) Value(rec *T) any { return *f.ref(rec) }

// Get returns the attribute value of rec.
func (f Field[T, V]) Get(rec *T) V { return *f.ref(rec) }

// Set assigns the attribute value of rec.
func (f Field[T, V]) Set(rec *T, v V) { *f.ref(rec) = v }

func (f Field[T, V]) isZero(rec *T) bool {
	return reflect.ValueOf(f.ref(rec)).Elem().IsZero()
}

// =============================================================================
// TYPED CLAUSE CONSTRUCTORS
// =============================================================================

func (f Field[T, V]) Eq(v V) Expr[T] { return comparison[T](f, Equal, v) }
func (f Field[T, V]) Ne(v V) Expr[T] { return comparison[T](f, NotEqual, v) }
func (f Field[T, V]) Gt(v V) Expr[T] { return comparison[T](f, GreaterThan, v) }
func (f Field[T, V]) Lt(v V) Expr[T] { return comparison[T](f, LessThan, v) }
func (f Field[T, V]) Ge(v V) Expr[T] { return comparison[T](f, GreaterOrEqual, v) }
func (f Field[T, V]) Le(v V) Expr[T] { return comparison[T](f, LessOrEqual, v) }

// Between matches lo <= field <= hi.
func (f Field[T, V]) Between(lo, hi V) Expr[T] {
	return Range[T]{field: f, lo: lo, hi: hi}
}

// In matches any of values. An empty set is rejected when the clause is
// added to a builder.
func (f Field[T, V]) In(values ...V) Expr[T] {
	ops := make([]any, len(values))
	for i, v := range values {
		ops[i] = v
	}
	return Membership[T]{field: f, values: ops}
}

// Matches is a case-sensitive LIKE on a text field.
func Matches[T any](f Field[T, string], pattern string) Expr[T] {
	return comparison[T](f, Like, pattern)
}

// MatchesFold is a case-insensitive ILIKE on a text field.
func MatchesFold[T any](f Field[T, string], pattern string) Expr[T] {
	return comparison[T](f, ILike, pattern)
}

// clause builds an expression from untyped operands, checking arity and
// operand types against V.
func (f Field[T, V]) clause(op Operator, operands []any) (Expr[T], error) {
	if !op.Valid() {
		return nil, invalid(f.name, "unknown operator %d", int(op))
	}
	if op == In && len(operands) == 1 {
		if set, ok := operands[0].([]V); ok {
			operands = make([]any, len(set))
			for i, v := range set {
				operands[i] = v
			}
		}
	}
	if err := op.checkArity(len(operands)); err != nil {
		return nil, invalid(f.name, "%v", err)
	}

	if op.IsPattern() {
		if _, ok := any(*new(V)).(string); !ok {
			return nil, invalid(f.name, "%s requires a text field, field type is %s", op, typeName[V]())
		}
	}

	typed := make([]any, len(operands))
	for i, o := range operands {
		v, ok := o.(V)
		if !ok {
			return nil, invalid(f.name, "operand %v (%T) does not match field type %s", o, o, typeName[V]())
		}
		typed[i] = v
	}

	switch op {
	case Between:
		return Range[T]{field: f, lo: typed[0], hi: typed[1]}, nil
	case In:
		return Membership[T]{field: f, values: typed}, nil
	default:
		return Comparison[T]{field: f, op: op, value: typed[0]}, nil
	}
}

func comparison[T any](f FieldRef[T], op Operator, v any) Expr[T] {
	return Comparison[T]{field: f, op: op, value: v}
}

func typeName[V any]() string {
	return reflect.TypeOf((*V)(nil)).Elem().String()
}

// =============================================================================
// TABLE DESCRIPTOR
// =============================================================================

// Table describes record type T as stored in one table.
type Table[T any] struct {
	name     string
	identity FieldRef[T]
	generate func(*T)
	fields   []FieldRef[T]
	byName   map[string]FieldRef[T]
	byColumn map[string]FieldRef[T]
}

// NewTable declares a table. The identity field is added to the attribute set
// if it is not listed. Duplicate attribute names or columns panic, since
// tables are package-level declarations.
func NewTable[T any](name string, identity FieldRef[T], fields ...FieldRef[T]) *Table[T] {
	t := &Table[T]{
		name:     name,
		identity: identity,
		byName:   make(map[string]FieldRef[T]),
		byColumn: make(map[string]FieldRef[T]),
	}
	all := fields
	if !containsColumn(fields, identity.Column()) {
		all = append([]FieldRef[T]{identity}, fields...)
	}
	for _, f := range all {
		if _, dup := t.byName[f.Name()]; dup {
			panic(fmt.Sprintf("query: table %s declares field %q twice", name, f.Name()))
		}
		if _, dup := t.byColumn[f.Column()]; dup {
			panic(fmt.Sprintf("query: table %s declares column %q twice", name, f.Column()))
		}
		t.byName[f.Name()] = f
		t.byColumn[f.Column()] = f
		t.fields = append(t.fields, f)
	}
	return t
}

// WithIdentityGenerator makes inserts assign identity in the application
// (e.g. a UUID) instead of letting the database assign it.
func (t *Table[T]) WithIdentityGenerator(gen func(*T)) *Table[T] {
	t.generate = gen
	return t
}

func (t *Table[T]) Name() string          { return t.name }
func (t *Table[T]) Identity() FieldRef[T] { return t.identity }

// Fields returns the attribute set in declaration order.
func (t *Table[T]) Fields() []FieldRef[T] {
	out := make([]FieldRef[T], len(t.fields))
	copy(out, t.fields)
	return out
}

// Field looks up an attribute by name.
func (t *Table[T]) Field(name string) (FieldRef[T], bool) {
	f, ok := t.byName[name]
	return f, ok
}

// Has reports whether f belongs to this table.
func (t *Table[T]) Has(f FieldRef[T]) bool {
	got, ok := t.byColumn[f.Column()]
	return ok && got.Name() == f.Name()
}

// GeneratesIdentity reports whether identity is assigned by the application.
func (t *Table[T]) GeneratesIdentity() bool { return t.generate != nil }

// AssignIdentity runs the identity generator on rec, if one is configured.
func (t *Table[T]) AssignIdentity(rec *T) {
	if t.generate != nil {
		t.generate(rec)
	}
}

// HasIdentity reports whether rec already carries an identity.
func (t *Table[T]) HasIdentity(rec *T) bool {
	return !t.identity.isZero(rec)
}

func containsColumn[T any](fields []FieldRef[T], column string) bool {
	for _, f := range fields {
		if f.Column() == column {
			return true
		}
	}
	return false
}
