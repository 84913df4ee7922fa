package txn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"notary/internal/domain"
)

// State is a transaction lifecycle state. Pending is the only initial
// state; Committed and RolledBack are terminal and absorbing, no operation
// leaves them.
type State int32

const (
	StatePending State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s != StatePending
}

// Hook is an after-commit callback. Hooks take no business arguments; the
// context is the one passed to Commit, so a hook observes the same
// deadline as the commit call that triggered it.
type Hook func(ctx context.Context) error

// Transaction is one logical unit of work bound to a dedicated backend
// connection. A root transaction owns its connection for its whole
// lifetime; a nested transaction is a savepoint on the root's connection
// and owns nothing.
//
// Operations on one handle must be serialized by the caller: the handle
// performs no internal locking. Independent handles may proceed
// concurrently, each on its own connection.
type Transaction struct {
	id     uuid.UUID
	cfg    TransactionConfig
	logger *slog.Logger
	mgr    *Manager

	state   State
	started time.Time

	// Tagged nesting variant: exactly one of the two groups is set. A root
	// holds the owned connection; a nested transaction records its parent
	// and savepoint name and borrows the root's connection.
	conn      Conn
	parent    *Transaction
	savepoint string

	// afterCommit hooks in registration order, append-only until fired.
	hooks []Hook
}

// ID returns the process-unique transaction handle identity.
func (t *Transaction) ID() uuid.UUID { return t.id }

// State returns the current lifecycle state.
func (t *Transaction) State() State { return t.state }

// Config returns the configuration the transaction was created with.
func (t *Transaction) Config() TransactionConfig { return t.cfg }

// Parent returns the enclosing transaction for a nested handle, nil for a
// root.
func (t *Transaction) Parent() *Transaction { return t.parent }

// Nested reports whether the transaction is a savepoint on an enclosing
// transaction.
func (t *Transaction) Nested() bool { return t.parent != nil }

// SavepointName returns the manager-generated savepoint name for a nested
// transaction, empty for a root.
func (t *Transaction) SavepointName() string { return t.savepoint }

// Conn returns the connection the transaction's statements run on: the
// owned connection for a root, the root's connection for a nested handle.
// The connection stays valid until the root reaches a terminal state.
func (t *Transaction) Conn() Conn {
	if t.parent != nil {
		return t.parent.Conn()
	}
	return t.conn
}

// LockModes returns the catalog enumeration of row-lock strengths for use
// when building locking read queries. Pure accessor, no side effects.
func (t *Transaction) LockModes() []LockLevel {
	return LockLevels()
}

// AfterCommit registers fn to run after a successful commit. Hooks run in
// registration order, exactly once, strictly after the transition to
// Committed. Registration on a terminal transaction fails with
// InvalidStateError: a hook that could never fire must not be silently
// accepted.
func (t *Transaction) AfterCommit(fn Hook) error {
	if t.state.Terminal() {
		return &domain.InvalidStateError{Op: "after-commit registration", State: t.state.String()}
	}
	t.hooks = append(t.hooks, fn)
	return nil
}

// Commit ends the unit of work successfully. Valid only from Pending. A
// root issues COMMIT and releases its connection; a nested transaction
// issues RELEASE SAVEPOINT and leaves the connection to its root. After
// the transition to Committed every registered hook runs in registration
// order; hook failures come back as a HookError but the commit itself is
// irreversible once the backend acknowledged it.
//
// When the backend rejects the statement the transaction becomes
// RolledBack-equivalent and a root's connection is discarded, never
// returned to the pool.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.state != StatePending {
		return &domain.InvalidStateError{Op: "commit", State: t.state.String()}
	}

	var stmt string
	if t.parent != nil {
		stmt = t.mgr.stmts.ReleaseSavepoint(t.savepoint)
	} else {
		stmt = t.mgr.stmts.Commit()
	}
	if err := t.mgr.binder.Exec(ctx, t.Conn(), stmt); err != nil {
		return t.fail(stmt, err)
	}

	if t.parent == nil {
		t.mgr.binder.Release(t.conn)
		t.conn = nil
	}
	t.state = StateCommitted
	t.mgr.forget(t, OutcomeCommitted)

	t.logger.Debug("transaction committed",
		"id", t.id,
		"nested", t.Nested(),
		"hooks", len(t.hooks),
	)

	return t.runHooks(ctx)
}

// Rollback abandons the unit of work. Valid only from Pending. A root
// issues ROLLBACK and releases its connection; a nested transaction issues
// ROLLBACK TO SAVEPOINT followed by RELEASE SAVEPOINT on the borrowed
// connection. Registered after-commit hooks are discarded, never invoked.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.state != StatePending {
		return &domain.InvalidStateError{Op: "rollback", State: t.state.String()}
	}

	if t.parent != nil {
		stmt := t.mgr.stmts.RollbackToSavepoint(t.savepoint)
		if err := t.mgr.binder.Exec(ctx, t.Conn(), stmt); err != nil {
			return t.fail(stmt, err)
		}
		stmt = t.mgr.stmts.ReleaseSavepoint(t.savepoint)
		if err := t.mgr.binder.Exec(ctx, t.Conn(), stmt); err != nil {
			return t.fail(stmt, err)
		}
	} else {
		stmt := t.mgr.stmts.Rollback()
		if err := t.mgr.binder.Exec(ctx, t.Conn(), stmt); err != nil {
			return t.fail(stmt, err)
		}
		t.mgr.binder.Release(t.conn)
		t.conn = nil
	}

	t.state = StateRolledBack
	t.hooks = nil
	t.mgr.forget(t, OutcomeRolledBack)

	t.logger.Debug("transaction rolled back",
		"id", t.id,
		"nested", t.Nested(),
	)
	return nil
}

// fail moves the transaction to the RolledBack-equivalent terminal state
// after the backend rejected a control statement. The true backend state is
// unknown, so a root's connection is discarded rather than pooled; a
// nested transaction leaves the shared connection to its root, whose own
// terminal transition will discard it if the session is poisoned.
func (t *Transaction) fail(stmt string, cause error) error {
	if t.parent == nil {
		t.mgr.binder.Discard(t.conn)
		t.mgr.recordDiscard()
		t.conn = nil
	}
	t.state = StateRolledBack
	t.hooks = nil
	t.mgr.forget(t, OutcomeFailed)

	t.logger.Error("backend rejected control statement",
		"id", t.id,
		"statement", stmt,
		"error", cause,
	)
	return &domain.BackendError{Statement: stmt, Cause: cause}
}

// runHooks delivers after-commit hooks in registration order. Every hook
// runs even when an earlier one failed; failures are collected and
// surfaced as one HookError. The committed state is never reverted.
func (t *Transaction) runHooks(ctx context.Context) error {
	if len(t.hooks) == 0 {
		return nil
	}

	var errs []error
	for i, fn := range t.hooks {
		if err := fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("hook %d: %w", i, err))
		}
	}
	t.hooks = nil

	if len(errs) == 0 {
		return nil
	}
	t.mgr.recordHookFailures(len(errs))
	t.logger.Warn("after-commit hooks failed",
		"id", t.id,
		"failed", len(errs),
	)
	return &domain.HookError{Errs: errs}
}
