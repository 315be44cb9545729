// Package database centralises sqlx connection helpers.  The default driver
// is go-sql-driver/mysql, which also works with MariaDB when configured for
// the MySQL wire protocol.
//
// Public entry points:
//
//	Open(ctx, dsn)                     – conservative pool sizes.
//	OpenWithOptions(ctx, dsn, opts)    – fine-grained control.
//	Migrate(ctx, db, stmts)            – idempotent schema statements.
//
// Both helpers Ping the database before returning, retrying with a short
// linear backoff so a container that starts before MySQL still boots.
// Callers should Close() the returned *sqlx.DB when no longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Options tunes the pool and the boot-time ping.
type Options struct {
	MaxOpen int
	MaxIdle int
	Retries int           // extra Ping attempts after the first
	Backoff time.Duration // wait between attempts, multiplied by attempt
}

// Open returns a *sqlx.DB with sane defaults: 15 max open, 5 idle, and a
// 30-minute connection lifetime.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, Options{MaxOpen: 15, MaxIdle: 5, Retries: 5, Backoff: time.Second})
}

// OpenWithOptions normalises dsn (parseTime on, UTC), opens the pool, and
// pings until it answers or retries run out.
func OpenWithOptions(ctx context.Context, dsn string, o Options) (*sqlx.DB, error) {
	norm, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("mysql", norm)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(o.MaxOpen)
	db.SetMaxIdleConns(o.MaxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	for attempt := 0; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt >= o.Retries || ctx.Err() != nil {
			break
		}
		zap.S().Warnw("database ping failed; retrying", "attempt", attempt+1, "err", err)
		select {
		case <-ctx.Done():
		case <-time.After(o.Backoff * time.Duration(attempt+1)):
		}
	}
	_ = db.Close()
	return nil, fmt.Errorf("database ping: %w", err)
}

// normalizeDSN forces the driver options the stores rely on.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("database dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Migrate executes each statement in order.  Statements must be idempotent
// (CREATE TABLE IF NOT EXISTS and friends).
func Migrate(ctx context.Context, db *sqlx.DB, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
