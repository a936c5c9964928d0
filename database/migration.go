package database

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-survey-forms/log"
)

//go:embed migrations
var dbMigrations embed.FS

// migrateLogger routes migrate's progress messages to the debug log.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	log.Debugf("db.migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return log.IsLevelEnabled(log.DebugLevel)
}

func migrateDB(db *sql.DB) error {
	src, err := iofs.New(dbMigrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "db.migrate.source")
	}

	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return errors.Wrap(err, "db.migrate.driver")
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "sqlite3", dst)
	if err != nil {
		return errors.Wrap(err, "db.migrate.init")
	}
	migrator.Log = migrateLogger{}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		// db already up to date
	case err != nil:
		return errors.Wrap(err, "db.migrate.up")
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return errors.Wrap(err, "db.migrate.version")
	}
	if dirty {
		return errors.Errorf("db.migrate: schema version %d is dirty", version)
	}
	log.Debugf("db.migrate: schema at version %d", version)
	return nil
}
