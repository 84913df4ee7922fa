package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"notary/internal/config"
	"notary/internal/txn"
)

// PooledConn is one pool connection dedicated to a root transaction. Query
// layers obtain the underlying pgx connection through Conn to run
// statements inside the transaction.
type PooledConn struct {
	conn *pgxpool.Conn
}

// IsConn marks PooledConn as a binder-owned connection handle.
func (*PooledConn) IsConn() {}

// Conn exposes the underlying pool connection for query execution.
func (c *PooledConn) Conn() *pgxpool.Conn { return c.conn }

// PoolBinder supplies dedicated connections from a pgx pool and executes
// transaction control statements on them.
type PoolBinder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPoolBinder wraps pool as a connection binder.
func NewPoolBinder(pool *pgxpool.Pool, logger *slog.Logger) *PoolBinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PoolBinder{pool: pool, logger: logger}
}

// Acquire checks a connection out of the pool for the exclusive use of one
// root transaction.
func (b *PoolBinder) Acquire(ctx context.Context) (txn.Conn, error) {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &PooledConn{conn: conn}, nil
}

// Exec runs one control statement on the dedicated connection.
func (b *PoolBinder) Exec(ctx context.Context, conn txn.Conn, stmt string) error {
	pc := conn.(*PooledConn)
	_, err := pc.conn.Exec(ctx, stmt)
	return err
}

// Release returns a healthy connection to the pool.
func (b *PoolBinder) Release(conn txn.Conn) {
	conn.(*PooledConn).conn.Release()
}

// Discard permanently removes a connection whose session state is unknown.
// The connection is hijacked out of the pool first, so the pool can never
// hand it to another caller, then closed outright.
func (b *PoolBinder) Discard(conn txn.Conn) {
	pc := conn.(*PooledConn)
	hijacked := pc.conn.Hijack()

	ctx, cancel := context.WithTimeout(context.Background(), config.DiscardCloseTimeout)
	defer cancel()
	if err := hijacked.Close(ctx); err != nil {
		b.logger.Warn("closing discarded connection", "error", err)
	}
}

var _ txn.Binder = (*PoolBinder)(nil)
