package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"notary/internal/config"
	"notary/internal/txn"
)

// CreateConnectionPool creates a pgx connection pool sized for transaction
// work and verifies connectivity with a ping.
//
// Transaction control statements carry no parameters, so they gain nothing
// from statement caching; when the connection string selects the default
// exec mode, the pool is switched to simple protocol, which also keeps
// transaction poolers like PgBouncer out of trouble. An explicit
// default_query_exec_mode in the connection string takes precedence.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	cfg.MaxConns = config.PoolMaxConns
	cfg.MinConns = config.PoolMinConns

	if cfg.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// ConnFor returns the pgx connection a query must run on to participate in
// the transaction carried by ctx, or nil when no transaction is present
// and the caller should use the pool directly.
func ConnFor(ctx context.Context) *pgxpool.Conn {
	tx := txn.FromContext(ctx)
	if tx == nil {
		return nil
	}
	pc, ok := tx.Conn().(*PooledConn)
	if !ok {
		return nil
	}
	return pc.Conn()
}
