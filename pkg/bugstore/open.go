package bugstore

import (
	"context"
	"database/sql"
	"fmt"

	sqlite "modernc.org/sqlite"
)

const driverSQLite = "triagekit-sqlite"

func init() {
	sql.Register(driverSQLite, &sqlite.Driver{})
}

// Open opens (and creates if needed) the SQLite-backed bug store.
//
// Local file paths are created if parent directories do not exist. WAL and
// busy_timeout are applied for predictable behavior under concurrent jobs.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open bug store: %w", err)
	}

	if err := configureLocalSQLite(ctx, db, dsn); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping bug store: %w", err)
	}

	return db, nil
}
