// Package db provides PostgreSQL database connection management.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"bingo-bot/internal/config"
)

// ErrPoolExhausted is returned when no connection could be acquired within
// the configured wait, after all retries.
var ErrPoolExhausted = errors.New("database connection pool exhausted")

// Pool wraps pgxpool.Pool with bounded acquisition and transaction helpers.
type Pool struct {
	*pgxpool.Pool
	acquireTimeout time.Duration
	acquireRetries int
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
		poolConfig.MinConns = int32(cfg.PoolSize / 4) // 25% of max as minimum
	}
	if poolConfig.MinConns < 1 {
		poolConfig.MinConns = 1
	}

	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	} else {
		poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second
	}

	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	} else {
		poolConfig.MaxConnLifetime = time.Hour
	}

	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	} else {
		poolConfig.MaxConnIdleTime = 30 * time.Minute
	}

	poolConfig.HealthCheckPeriod = 30 * time.Second

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to PostgreSQL")

	return Wrap(pool, cfg.AcquireTimeout, cfg.AcquireRetries), nil
}

// Wrap adapts an existing pgxpool.Pool.
// Non-positive values fall back to a 3s acquire timeout and 3 attempts.
func Wrap(pool *pgxpool.Pool, acquireTimeout time.Duration, acquireRetries int) *Pool {
	if acquireTimeout <= 0 {
		acquireTimeout = 3 * time.Second
	}
	if acquireRetries <= 0 {
		acquireRetries = 3
	}
	return &Pool{
		Pool:           pool,
		acquireTimeout: acquireTimeout,
		acquireRetries: acquireRetries,
	}
}

// Close closes the connection pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		log.Info().Msg("PostgreSQL connection pool closed")
	}
}

// HealthCheck performs a health check on the database connection.
func (p *Pool) HealthCheck(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// acquire takes a connection, waiting at most acquireTimeout per attempt.
// Only acquisition is retried; statements never are.
func (p *Pool) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= p.acquireRetries; attempt++ {
		acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
		conn, err := p.Pool.Acquire(acquireCtx)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int32("acquired", p.Pool.Stat().AcquiredConns()).
			Msg("Connection acquire failed, retrying")
	}
	return nil, fmt.Errorf("%w: %v", ErrPoolExhausted, lastErr)
}

// InTx runs fn inside a READ COMMITTED transaction.
// The transaction is committed when fn returns nil and rolled back otherwise.
func (p *Pool) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	conn, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
