// Package database centralises sqlx connection helpers.  The driver is
// jackc/pgx (database/sql mode) because the store of record is Postgres and
// the bulk upserts rely on ON CONFLICT clauses with explicit conflict keys.
//
// Public entry points:
//
//	Open(ctx, dsn)                  – quick helper with conservative pool sizes.
//	OpenWithOptions(ctx, dsn, opts) – fine-grained control.
//
// Both helpers Ping the database before returning so callers can fail fast
// during bootstrap.  Callers should Close() the returned *sqlx.DB when no
// longer needed.
package database

import (
	"context"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Options tunes one pool.  The zero value is not useful; use Defaults as a
// starting point.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retries         int // additional ping attempts after the first
	RetryBackoff    time.Duration
}

// Defaults suits the roster pool: 15 max open, 5 idle, 30-minute lifetime.
var Defaults = Options{
	MaxOpenConns:    15,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
}

// PerShop keeps each shop pipeline's private pool small.  Every shop run
// opens its own pool and closes it on completion, so connection counts stay
// bounded by the shop count.
var PerShop = Options{
	MaxOpenConns:    5,
	MaxIdleConns:    2,
	ConnMaxLifetime: 30 * time.Minute,
	Retries:         2,
	RetryBackoff:    500 * time.Millisecond,
}

// Open returns a *sqlx.DB with the default pool sizes.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, Defaults)
}

// OpenWithOptions opens, tunes, and pings a pool.  A failed ping is retried
// opts.Retries times with a fixed backoff before the last error is returned.
func OpenWithOptions(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	for attempt := 0; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt >= opts.Retries {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(opts.RetryBackoff):
		}
	}

	db.Close()
	return nil, err
}
