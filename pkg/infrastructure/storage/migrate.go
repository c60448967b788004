package storage

import (
	"database/sql"
	"embed"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations
var migrationsFS embed.FS

type Direction int

const (
	Up Direction = iota
	Down
)

// Migrate applies or reverts the embedded schema on its own connection,
// which is closed before returning.
func Migrate(cfg Config, direction Direction) error {
	dsn, err := migrationDSN(cfg.Driver, cfg.DSN)
	if err != nil {
		return err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return errors.Wrap(err, "open database for migrations")
	}

	var drv database.Driver
	switch cfg.Driver {
	case DriverMySQL:
		drv, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	case DriverSQLite:
		drv, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case DriverPgx:
		drv, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	}
	if err != nil {
		_ = db.Close()
		return classify(err, "init migration driver")
	}

	src, err := iofs.New(migrationsFS, "migrations/"+migrationsDir(cfg.Driver))
	if err != nil {
		_ = db.Close()
		return errors.Wrap(err, "load embedded migrations")
	}

	m, err := migrate.NewWithInstance("iofs", src, cfg.Driver, drv)
	if err != nil {
		_ = db.Close()
		return errors.Wrap(err, "init migrations")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.WithFields(log.Fields{"source": srcErr, "database": dbErr}).Warn("failed to close migrator")
		}
	}()

	if direction == Down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("schema is up to date")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "run migrations")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return errors.Wrap(err, "read schema version")
	}
	log.WithFields(log.Fields{"version": version, "dirty": dirty}).Info("migrations applied")
	return nil
}

func migrationsDir(driver string) string {
	if driver == DriverPgx {
		return "postgres"
	}
	return driver
}

func migrationDSN(driver, dsn string) (string, error) {
	dsn, err := normalizeDSN(driver, dsn)
	if err != nil || driver != DriverMySQL {
		return dsn, err
	}

	// Migration files hold several statements each.
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}
