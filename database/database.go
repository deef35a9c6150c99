package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ecomoro/storefront/config"
	"github.com/jmoiron/sqlx"

	// Register the postgres driver.
	_ "github.com/lib/pq"
)

// Open builds a pooled connection to the storefront database. The handle is
// constructed once at startup and passed down explicitly; nothing in this
// codebase reaches for a package-level client.
func Open(cfg config.DB) (*sqlx.DB, error) {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}

	db, err := sqlx.Open("postgres", u.String())
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	return db, nil
}

// StatusCheck waits for the database to be reachable, backing off until the
// context expires. It ends with a round trip query so a positive answer
// really means queries can run, not just that a socket opened.
func StatusCheck(ctx context.Context, db *sqlx.DB) error {
	var pingError error
	for attempts := 1; ; attempts++ {
		pingError = db.Ping()
		if pingError == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	const q = `SELECT true`
	var tmp bool
	return db.QueryRowContext(ctx, q).Scan(&tmp)
}

// Transaction runs fn inside a transaction, committing when it returns nil
// and rolling back otherwise. Callers pass the received ExtContext down to
// the store functions so a whole operation shares one transaction.
func Transaction(db *sqlx.DB, fn func(sqlx.ExtContext) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if errRb := tx.Rollback(); errRb != nil {
			return fmt.Errorf("rolling back transaction: %v: %w", errRb, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
