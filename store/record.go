package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/quote-engine/query"
)

var (
	// ErrIdentityUnset is returned by Update for a record that was never stored.
	ErrIdentityUnset = errors.New("record has no identity")

	// ErrRecordNotFound is returned by Update when no row carries the identity.
	ErrRecordNotFound = errors.New("record not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("unique constraint violated")
)

// =============================================================================
// WHOLE-RECORD PRIMITIVES
// =============================================================================

// Insert persists rec as a new row and returns it as stored, identity
// included. Identity comes from the table's generator when it has one,
// otherwise from the database.
func Insert[T any](ctx context.Context, g *Gateway, t *query.Table[T], rec T) (T, error) {
	if t.GeneratesIdentity() && !t.HasIdentity(&rec) {
		t.AssignIdentity(&rec)
	}
	cols := insertColumns(t)
	st := insertStatement(g.dialect, t, cols, &rec)
	st.SQL += returning(t)

	return writeOne(ctx, g, t, st)
}

// Update overwrites every non-identity column of the stored row that shares
// rec's identity and returns the row as stored.
func Update[T any](ctx context.Context, g *Gateway, t *query.Table[T], rec T) (T, error) {
	if !t.HasIdentity(&rec) {
		var zero T
		return zero, fmt.Errorf("update %s: %w", t.Name(), ErrIdentityUnset)
	}

	var (
		sets []string
		args []any
	)
	for _, f := range t.Fields() {
		if f.Name() == t.Identity().Name() {
			continue
		}
		args = append(args, f.Value(&rec))
		sets = append(sets, f.Column()+" = "+g.dialect.Placeholder(len(args)))
	}
	args = append(args, t.Identity().Value(&rec))

	st := query.Statement{
		SQL: "UPDATE " + t.Name() + " SET " + strings.Join(sets, ", ") +
			" WHERE " + t.Identity().Column() + " = " + g.dialect.Placeholder(len(args)) +
			returning(t),
		Args: args,
	}
	return writeOne(ctx, g, t, st)
}

// Upsert inserts rec, or, when a row already matches on the conflict columns,
// overwrites only the set columns of that row. It returns the row as stored.
// The conflict columns must be covered by a unique index.
func Upsert[T any](ctx context.Context, g *Gateway, t *query.Table[T], rec T, conflict, set []query.FieldRef[T]) (T, error) {
	var zero T
	if len(conflict) == 0 || len(set) == 0 {
		return zero, fmt.Errorf("upsert %s: conflict and set columns are required", t.Name())
	}
	for _, f := range append(append([]query.FieldRef[T]{}, conflict...), set...) {
		if !t.Has(f) {
			return zero, fmt.Errorf("upsert %s: %q is not an attribute of this table", t.Name(), f.Name())
		}
	}

	if t.GeneratesIdentity() && !t.HasIdentity(&rec) {
		t.AssignIdentity(&rec)
	}
	cols := insertColumns(t)
	st := insertStatement(g.dialect, t, cols, &rec)

	targets := make([]string, len(conflict))
	for i, f := range conflict {
		targets[i] = f.Column()
	}
	updates := make([]string, len(set))
	for i, f := range set {
		updates[i] = f.Column() + " = excluded." + f.Column()
	}
	st.SQL += " ON CONFLICT (" + strings.Join(targets, ", ") + ") DO UPDATE SET " +
		strings.Join(updates, ", ") + returning(t)

	return writeOne(ctx, g, t, st)
}

// Get loads one record by identity.
func Get[T any, V any](ctx context.Context, g *Gateway, t *query.Table[T], id query.Field[T, V], value V) (query.Optional[T], error) {
	return Select[T](g).From(t).Where(id.Eq(value)).One(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

// insertColumns lists the columns an INSERT writes. A database-assigned
// identity is left out.
func insertColumns[T any](t *query.Table[T]) []query.FieldRef[T] {
	var cols []query.FieldRef[T]
	for _, f := range t.Fields() {
		if f.Name() == t.Identity().Name() && !t.GeneratesIdentity() {
			continue
		}
		cols = append(cols, f)
	}
	return cols
}

func insertStatement[T any](d query.Dialect, t *query.Table[T], cols []query.FieldRef[T], rec *T) query.Statement {
	names := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, f := range cols {
		names[i] = f.Column()
		args[i] = f.Value(rec)
	}
	return query.Statement{
		SQL: "INSERT INTO " + t.Name() + " (" + strings.Join(names, ", ") + ") VALUES (" +
			strings.Join(query.Placeholders(d, 1, len(cols)), ", ") + ")",
		Args: args,
	}
}

func returning[T any](t *query.Table[T]) string {
	fields := t.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Column()
	}
	return " RETURNING " + strings.Join(names, ", ")
}

// writeOne runs a single-row write in its own unit of work and scans the
// returned row.
func writeOne[T any](ctx context.Context, g *Gateway, t *query.Table[T], st query.Statement) (T, error) {
	var out T
	err := g.WithTx(ctx, func(tx *Gateway) error {
		row := tx.QueryRowContext(ctx, st.SQL, st.Args...)
		rec, err := query.ScanOne(row, t.Fields())
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return out, fmt.Errorf("write %s: %w", t.Name(), ErrRecordNotFound)
	case IsConflict(err):
		return out, fmt.Errorf("write %s: %w: %v", t.Name(), ErrConflict, err)
	case err != nil:
		return out, fmt.Errorf("write %s: %w", t.Name(), err)
	}
	return out, nil
}

// IsConflict reports whether err comes from a uniqueness violation on either
// backend.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
