/*
Package store is the execution gateway between typed query specs and a SQL
backend.

PURPOSE:
  Opens SQLite or PostgreSQL through database/sql, applies the embedded
  migrations, executes query builders, and provides whole-record insert,
  update and upsert primitives. Every primitive is its own unit of work
  unless the gateway was handed out by WithTx, in which case it joins that
  transaction.

BACKENDS:
  sqlite    github.com/mattn/go-sqlite3 (":memory:" for tests)
  postgres  github.com/jackc/pgx/v5/stdlib

USAGE:
  gw, err := store.Open(ctx, store.Options{Driver: "sqlite", Path: "./data/quotes.db"})
  if err != nil {
      log.Fatal(err)
  }
  defer gw.Close()

  recs, err := store.Select[quotes.PriceRecord](gw).
      From(quotes.PriceRecords).
      Where(quotes.PriceDate.Between(start, end)).
      List(ctx)

TIME VALUES:
  SQLite keeps timestamps as text and compares them lexically, so every
  time.Time handed to the gateway must be in UTC.

SEE ALSO:
  - record.go:    Insert / Update / Upsert
  - migrate.go:   schema management
  - query/:       spec construction and rendering
*/
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/quote-engine/query"
)

// Options selects and configures a backend.
type Options struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// Path is the SQLite database file, or ":memory:".
	Path string
	// DSN is the PostgreSQL connection URL.
	DSN string
	// Developer logs every statement the gateway runs.
	Developer bool
	// SkipMigrations leaves the schema untouched on Open.
	SkipMigrations bool
}

// Gateway executes statements against one database. A Gateway returned by
// WithTx is bound to that transaction and must not be used after fn returns.
type Gateway struct {
	db      *sql.DB
	tx      *sql.Tx
	dialect query.Dialect
	debug   bool

	// dsn, when set, lets migrations open their own PostgreSQL pool.
	dsn string

	// writeMu serializes write transactions on SQLite, which allows a single
	// writer. Nil on PostgreSQL.
	writeMu *sync.Mutex
}

// Open connects to the configured backend and migrates it to the latest
// schema version.
func Open(ctx context.Context, opts Options) (*Gateway, error) {
	var (
		db  *sql.DB
		err error
	)
	switch opts.Driver {
	case "sqlite", "sqlite3", "":
		path := opts.Path
		if path == "" {
			path = ":memory:"
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		// _cslike keeps LIKE case-sensitive; ILIKE is rendered with LOWER().
		db, err = sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_cslike=true")
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if path == ":memory:" {
			// Each connection would otherwise get its own empty database.
			db.SetMaxOpenConns(1)
		}
	case "postgres", "pgx":
		if opts.DSN == "" {
			return nil, errors.New("postgres driver requires a DSN")
		}
		db, err = sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	gw, err := New(db, opts.Driver, opts.Developer)
	if err != nil {
		db.Close()
		return nil, err
	}
	if gw.dialect == query.Postgres {
		gw.dsn = opts.DSN
	}

	if !opts.SkipMigrations {
		if err := gw.Migrate(MigrateUp, 0); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return gw, nil
}

// New wraps an already open database.
func New(db *sql.DB, driver string, developer bool) (*Gateway, error) {
	if driver == "" {
		driver = "sqlite"
	}
	d, err := query.DialectFor(driver)
	if err != nil {
		return nil, err
	}
	gw := &Gateway{db: db, dialect: d, debug: developer}
	if d == query.SQLite {
		gw.writeMu = &sync.Mutex{}
	}
	return gw, nil
}

// Close closes the database connection.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// DB exposes the underlying pool.
func (g *Gateway) DB() *sql.DB { return g.db }

// Dialect implements query.Executor.
func (g *Gateway) Dialect() query.Dialect { return g.dialect }

// InTx reports whether the gateway is bound to a transaction.
func (g *Gateway) InTx() bool { return g.tx != nil }

// =============================================================================
// STATEMENT EXECUTION
// =============================================================================

type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (g *Gateway) conn() conn {
	if g.tx != nil {
		return g.tx
	}
	return g.db
}

func (g *Gateway) trace(stmt string, args []any) {
	if g.debug {
		log.Printf("[SQL] %s (%d args)", stmt, len(args))
	}
}

// QueryContext implements query.Executor.
func (g *Gateway) QueryContext(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	g.trace(stmt, args)
	return g.conn().QueryContext(ctx, stmt, args...)
}

// QueryRowContext runs a statement expected to return one row.
func (g *Gateway) QueryRowContext(ctx context.Context, stmt string, args ...any) *sql.Row {
	g.trace(stmt, args)
	return g.conn().QueryRowContext(ctx, stmt, args...)
}

// ExecContext runs a statement that returns no rows.
func (g *Gateway) ExecContext(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	g.trace(stmt, args)
	return g.conn().ExecContext(ctx, stmt, args...)
}

// =============================================================================
// TRANSACTION SCOPE
// =============================================================================

// WithTx runs fn inside one database transaction. Every call made through the
// gateway passed to fn joins the transaction. If fn returns an error the
// transaction is rolled back. Calling WithTx on a gateway that is already
// bound to a transaction runs fn in the enclosing transaction.
func (g *Gateway) WithTx(ctx context.Context, fn func(tx *Gateway) error) error {
	if g.tx != nil {
		return fn(g)
	}

	if g.writeMu != nil {
		g.writeMu.Lock()
		defer g.writeMu.Unlock()
	}

	sqlTx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	scoped := &Gateway{db: g.db, tx: sqlTx, dialect: g.dialect, debug: g.debug}
	if err := fn(scoped); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Select returns a builder bound to g. With no fields the query selects all
// fields of the table passed to From.
func Select[T any](g *Gateway, fields ...query.FieldRef[T]) *query.Builder[T] {
	return query.New[T](g).Select(fields...)
}
