package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/warp/quote-engine/query"
)

//go:embed migrations
var migrations embed.FS

// Direction selects which way Migrate moves the schema.
type Direction string

const (
	MigrateUp   Direction = "up"
	MigrateDown Direction = "down"
)

// Migrate applies the embedded migrations for the gateway's dialect. With
// steps > 0 it moves at most that many versions; otherwise it goes all the way
// in the given direction. Already being at the target version is not an error.
func (g *Gateway) Migrate(dir Direction, steps int) error {
	m, done, err := g.migrator()
	if err != nil {
		return err
	}
	defer done()

	switch dir {
	case MigrateUp:
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case MigrateDown:
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("unknown direction: %s", dir)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}

	if v, dirty, verr := m.Version(); verr == nil {
		log.Printf("[MIGRATE] %s schema at version %d (dirty=%t)", g.dialect.Name(), v, dirty)
	}
	return nil
}

// SchemaVersion returns the current migration version, or 0 when none has
// been applied.
func (g *Gateway) SchemaVersion() (uint, bool, error) {
	m, done, err := g.migrator()
	if err != nil {
		return 0, false, err
	}
	defer done()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// migrator builds a migrate instance and the func that releases it. The
// postgres driver holds a dedicated connection, so when the DSN is known it
// runs on its own pool that done closes. The sqlite driver would close the
// shared *sql.DB, so done leaves it open.
func (g *Gateway) migrator() (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrations, "migrations/"+g.dialect.Name())
	if err != nil {
		return nil, nil, fmt.Errorf("load migrations: %w", err)
	}

	owned := false
	var drv database.Driver
	switch g.dialect {
	case query.SQLite:
		drv, err = sqlitemigrate.WithInstance(g.db, &sqlitemigrate.Config{})
	case query.Postgres:
		db := g.db
		if g.dsn != "" {
			if db, err = sql.Open("pgx", g.dsn); err != nil {
				return nil, nil, fmt.Errorf("open migration pool: %w", err)
			}
			owned = true
		}
		drv, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
		if err != nil && owned {
			db.Close()
		}
	default:
		return nil, nil, fmt.Errorf("no migrations for dialect %s", g.dialect.Name())
	}
	if err != nil {
		return nil, nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, g.dialect.Name(), drv)
	if err != nil {
		if owned {
			drv.Close()
		}
		return nil, nil, fmt.Errorf("migrator: %w", err)
	}

	done := func() {
		if !owned {
			return
		}
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("[MIGRATE] close: source=%v database=%v", srcErr, dbErr)
		}
	}
	return m, done, nil
}
