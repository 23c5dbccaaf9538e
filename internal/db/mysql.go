package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

type MySQLOpts struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration // default 5s
}

// NewMySQLConnection opens the system-of-record pool used by every repository.
func NewMySQLConnection(dsn string, opts MySQLOpts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty MySQL DSN")
	}
	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	return openPool("mysql", dsn, poolOpts(opts), 5*time.Second)
}

// normalizeDSN forces the settings the repositories rely on: DATE/DATETIME columns
// scanned as time.Time in UTC, and multi-statement migrations.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}
