package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avolkov/snapsync/internal/client/store/migrations"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded migrations to the given database.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (or creates) the local SQLite database, applies migrations and
// returns a ready store. The caller owns closing the handle.
func Open(ctx context.Context, dsn string) (*SQLiteStore, *sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	// single writer; also keeps a ":memory:" database on one connection
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}

	return NewSQLiteStore(db), db, nil
}
