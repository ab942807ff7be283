package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreDB owns the pgx connection pool shared by every repository.
type PostgreDB struct {
	Pool *pgxpool.Pool
}

// Config is the part of the database configuration the pool cares about.
type Config interface {
	GetDSN() string
	PoolLimits() (maxConns, minConns int32)
	ConnLifetimes() (maxLifetime, maxIdleTime time.Duration)
}

func New(ctx context.Context, config Config) (*PostgreDB, error) {
	dbConfig, err := pgxpool.ParseConfig(config.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	dbConfig.MaxConns, dbConfig.MinConns = config.PoolLimits()
	dbConfig.MaxConnLifetime, dbConfig.MaxConnIdleTime = config.ConnLifetimes()

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgreDB{Pool: pool}, nil
}
