package txn

import "context"

// Conn is one dedicated backend connection, exclusively owned by its root
// transaction from acquisition until release or discard. The binder owns
// the concrete type; the transaction layer never looks inside the handle,
// it only routes control statements through the binder and hands the
// connection back on terminal transitions. Query layers type-assert to the
// binder implementation's concrete type to run statements on the
// transaction's connection.
type Conn interface {
	// IsConn prevents arbitrary types from satisfying the interface by
	// accident; binder implementations declare it explicitly.
	IsConn()
}

// Binder is the driver-side collaborator that supplies dedicated
// connections and executes control statements on them. The manager issues
// statements of the shapes
//
//	BEGIN [ISOLATION LEVEL <level>] [<type>] [READ ONLY] [<deferrable>]
//	SAVEPOINT <name>
//	COMMIT
//	ROLLBACK
//	RELEASE SAVEPOINT <name>
//	ROLLBACK TO SAVEPOINT <name>
//
// plus the dialect's session pre-statements (SET TRANSACTION ISOLATION
// LEVEL, SET autocommit) where the profile calls for them, and never
// touches the wire itself.
type Binder interface {
	// Acquire returns a connection for the exclusive use of one root
	// transaction. Failure means the pool is exhausted or the backend is
	// unreachable; the manager reports it as ConnectionUnavailableError
	// and creates nothing.
	Acquire(ctx context.Context) (Conn, error)

	// Exec runs one control statement on conn. The error is the backend's
	// failure verbatim; the manager wraps it in BackendError together with
	// the offending statement.
	Exec(ctx context.Context, conn Conn, stmt string) error

	// Release returns a healthy connection to the pool after a clean
	// terminal transition.
	Release(conn Conn)

	// Discard destroys a connection whose session state is unknown (a
	// failed or interrupted control statement). The connection must never
	// return to the pool.
	Discard(conn Conn)
}

// Statements projects catalog configuration into the control statements the
// binder issues. The dialect package provides implementations per backend
// profile; the manager only sees this interface.
type Statements interface {
	// Begin builds the transaction-start statement for the configuration.
	// Options the backend profile does not support are omitted from the
	// projection; catalog validation happened earlier.
	Begin(cfg TransactionConfig) string

	// SetIsolation builds the pre-begin statement selecting the isolation
	// level for backends whose start grammar carries no isolation clause,
	// with ok=false when the level travels inside Begin instead.
	SetIsolation(level IsolationLevel) (stmt string, ok bool)

	// Autocommit builds the session statement toggling autocommit, with
	// ok=false when the backend has no such toggle.
	Autocommit(on bool) (stmt string, ok bool)

	Commit() string
	Rollback() string
	Savepoint(name string) string
	ReleaseSavepoint(name string) string
	RollbackToSavepoint(name string) string

	// LockClause builds the row-lock clause (FOR <level> [OF <entity>])
	// for a read query, failing when the lock level is outside the
	// catalog or the backend profile cannot express it.
	LockClause(mode LockMode) (string, error)
}

// ConfigChecker is implemented by Statements renderers that can reject
// configurations their backend cannot express, a catalog-valid isolation
// level the profile does not carry, for instance. The manager consults it
// before acquiring a connection, so a rejected configuration costs
// nothing.
type ConfigChecker interface {
	CheckConfig(cfg TransactionConfig) error
}
