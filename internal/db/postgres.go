package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	poolMaxConns        = 20
	poolMinConns        = 2
	poolConnMaxLifetime = 30 * time.Minute
	poolConnMaxIdle     = 5 * time.Minute
)

// NewPostgresPool opens and pings a pgx pool. Connection sizing is fixed;
// one API instance owns one pool.
func NewPostgresPool(ctx context.Context, dsn string, log *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = poolMaxConns
	cfg.MinConns = poolMinConns
	cfg.MaxConnLifetime = poolConnMaxLifetime
	cfg.MaxConnIdleTime = poolConnMaxIdle

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("postgres ready", zap.Int32("max_conns", cfg.MaxConns))
	return pool, nil
}
