package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
)

// ClickHouseOpts configures the entry history pool.
type ClickHouseOpts struct {
	DSN             string // clickhouse://default:@localhost:9000/nexogym?dial_timeout=5s
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration // default 3s
}

// NewClickHouseConnection opens the pool behind the entry history reads and the
// history writer. The DSN is validated before dialing.
func NewClickHouseConnection(opts ClickHouseOpts) (*sqlx.DB, error) {
	if opts.DSN == "" {
		return nil, errors.New("empty ClickHouse DSN")
	}
	if _, err := clickhouse.ParseDSN(opts.DSN); err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	return openPool("clickhouse", opts.DSN, poolOpts{
		MaxOpenConns:    opts.MaxOpenConns,
		MaxIdleConns:    opts.MaxIdleConns,
		ConnMaxLifetime: opts.ConnMaxLifetime,
		ConnMaxIdleTime: opts.ConnMaxIdleTime,
		PingTimeout:     opts.PingTimeout,
	}, 3*time.Second)
}
