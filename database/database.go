package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbolis/quick-survey-forms/config"
)

// connection options: foreign keys enable cascades, immediate transactions
// take the write lock on BEGIN so that read-check-write sequences serialize.
const dsnOptions = "_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"

func dsn(url string) string {
	if strings.Contains(url, "?") {
		return url + "&" + dsnOptions
	}
	return url + "?" + dsnOptions
}

func Open(cfg config.Config) (db *sql.DB, err error) {
	db, err = sql.Open("sqlite3", dsn(cfg.DBUrl))
	if err != nil {
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	return
}

// EnsureAdmin creates the given admin user, or resets its password.
func EnsureAdmin(ctx context.Context, db *sql.DB, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "db.ensure_admin.hash")
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO user (username, password_hash) VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE SET password_hash = excluded.password_hash`,
		username,
		hash,
	)
	return errors.Wrap(err, "db.ensure_admin")
}
