package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// poolOpts are the database/sql pool knobs shared by the MySQL and ClickHouse pools.
// Zero values keep the driver defaults.
type poolOpts struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// openPool opens driver, applies the pool settings and pings once. A failed ping
// closes the pool.
func openPool(driver, dsn string, o poolOpts, defaultPing time.Duration) (*sqlx.DB, error) {
	dbx, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if o.MaxOpenConns > 0 {
		dbx.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		dbx.SetMaxIdleConns(o.MaxIdleConns)
	}
	if o.ConnMaxLifetime > 0 {
		dbx.SetConnMaxLifetime(o.ConnMaxLifetime)
	}
	if o.ConnMaxIdleTime > 0 {
		dbx.SetConnMaxIdleTime(o.ConnMaxIdleTime)
	}

	timeout := o.PingTimeout
	if timeout <= 0 {
		timeout = defaultPing
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := dbx.PingContext(ctx); err != nil {
		_ = dbx.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return dbx, nil
}
