package config

import "time"

const (
	// PoolMaxConns caps the connection pool. Every pending root
	// transaction pins one connection for its whole lifetime, so this is
	// also the ceiling on concurrent transactions.
	PoolMaxConns = 25

	// PoolMinConns keeps warm connections around so a burst of begins
	// does not pay dial latency.
	PoolMinConns = 5

	// DiscardCloseTimeout bounds the goodbye message sent when closing a
	// connection whose session state is unknown. The connection is dead
	// to the pool either way.
	DiscardCloseTimeout = 3 * time.Second

	// DefaultOperationTimeout bounds a single control statement round
	// trip in the probe tool.
	DefaultOperationTimeout = 10 * time.Second

	// MaxLogFiles is how many timestamped log files are kept before the
	// oldest are removed.
	MaxLogFiles = 10
)
