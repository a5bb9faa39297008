// Package bootstrap wires the persistence and queue backends selected by
// config for the cmd binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
	"github.com/hackgods/booking-lifecycle/internal/config"
	"github.com/hackgods/booking-lifecycle/internal/db"
	redisclient "github.com/hackgods/booking-lifecycle/internal/redis"
)

const connectTimeout = 10 * time.Second

// Store is an opened repository plus what the health endpoint and shutdown
// need to know about it.
type Store struct {
	Repo   appointment.Repository
	Driver string
	Ping   func(ctx context.Context) error
	Close  func()
}

// OpenStore connects to the configured driver and applies migrations.
func OpenStore(ctx context.Context, cfg config.Config) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Printf("opened sqlite path=%s", cfg.SQLitePath)
		return &Store{
			Repo:   appointment.NewSQLiteRepository(conn),
			Driver: config.DriverSQLite,
			Ping:   conn.PingContext,
			Close: func() {
				if err := conn.Close(); err != nil {
					log.Printf("error closing sqlite: %v", err)
				}
			},
		}, nil

	case config.DriverPostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := db.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Println("connected to Postgres")
		return &Store{
			Repo:   appointment.NewPgRepository(pool),
			Driver: config.DriverPostgres,
			Ping:   pool.Ping,
			Close:  pool.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// OpenRedis returns nil without error when redis is not configured.
func OpenRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if !cfg.RedisEnabled() {
		return nil, nil
	}
	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}
	log.Printf("connected to Redis addr=%s", cfg.RedisAddr)
	return rdb, nil
}

// CloseRedis tolerates a nil client.
func CloseRedis(rdb *redis.Client) {
	if rdb == nil {
		return
	}
	if err := rdb.Close(); err != nil {
		log.Printf("error closing redis: %v", err)
	}
}
