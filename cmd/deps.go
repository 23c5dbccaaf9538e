package cmd

import (
	"fmt"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/access"
	"github.com/herwingx/nexogym-sub000/internal/config"
	"github.com/herwingx/nexogym-sub000/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

func openMySQL(cfg config.Config) (*sqlx.DB, error) {
	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	return dbx, nil
}

func openClickHouse(cfg config.Config) (*sqlx.DB, error) {
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	return chDB, nil
}

func openRedis(cfg config.Config) (*redis.Client, error) {
	rdb, err := db.NewRedisClient(db.RedisOpts{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return rdb, nil
}

// replayGuard builds the anti-passback guard on the configured backend. A nil redis
// client forces the in-process store.
func replayGuard(cfg config.Config, rdb *redis.Client) *access.ReplayGuard {
	var store access.ReplayStore
	if cfg.Replay.Backend == "memory" || rdb == nil {
		store = access.NewMemoryReplayStore(time.Minute)
	} else {
		store = access.NewRedisReplayStore(rdb, cfg.Replay.KeyPrefix)
	}
	return access.NewReplayGuard(store, access.Cooldowns{
		Member:    cfg.Checkin.MemberCooldown,
		Staff:     cfg.Checkin.StaffCooldown,
		Biometric: cfg.Checkin.BiometricCooldown,
	})
}
