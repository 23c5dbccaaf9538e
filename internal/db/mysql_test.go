package db

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN(t *testing.T) {
	out, err := normalizeDSN("u:p@tcp(db:3306)/nexogym")
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(out)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.True(t, cfg.MultiStatements)
	assert.Equal(t, "UTC", cfg.Loc.String())
	assert.Equal(t, "nexogym", cfg.DBName)

	_, err = normalizeDSN("not a dsn")
	assert.Error(t, err)
}

func TestConnectionsRejectMissingAddress(t *testing.T) {
	_, err := NewMySQLConnection("", MySQLOpts{})
	assert.ErrorContains(t, err, "empty MySQL DSN")

	_, err = NewClickHouseConnection(ClickHouseOpts{})
	assert.ErrorContains(t, err, "empty ClickHouse DSN")

	_, err = NewClickHouseConnection(ClickHouseOpts{DSN: "::not-a-url"})
	assert.ErrorContains(t, err, "parse clickhouse dsn")

	_, err = NewRedisClient(RedisOpts{})
	assert.ErrorContains(t, err, "empty redis addr")
}
