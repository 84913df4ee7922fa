package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is(). Every typed error below matches
// exactly one sentinel, so callers can branch on the failure class without
// holding the concrete struct.
var (
	ErrInvalidConfiguration  = errors.New("invalid transaction configuration")
	ErrInvalidState          = errors.New("invalid transaction state")
	ErrConnectionUnavailable = errors.New("connection unavailable")
	ErrBackend               = errors.New("backend statement failed")
	ErrHook                  = errors.New("after-commit hook failed")
)

// InvalidConfigurationError indicates a transaction configuration that was
// rejected before any connection work happened: an isolation level or
// transaction type outside the catalog enumerations.
type InvalidConfigurationError struct {
	Field  string // offending configuration field
	Value  string // the rejected value
	Reason string // human-readable explanation
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid transaction configuration: %s %q: %s", e.Field, e.Value, e.Reason)
}

// Is allows errors.Is() to match against ErrInvalidConfiguration
func (e *InvalidConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// InvalidStateError indicates a lifecycle precondition violation on a
// transaction handle: commit or rollback on a terminal transaction, or hook
// registration after commit. These are local errors; nothing was sent to
// the backend.
type InvalidStateError struct {
	Op    string // the rejected operation (commit, rollback, after-commit)
	State string // the transaction state at the time of the call
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s on %s transaction", e.Op, e.State)
}

// Is allows errors.Is() to match against ErrInvalidState
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// ConnectionUnavailableError indicates the connection binder could not
// supply a dedicated connection (pool exhaustion, network failure). No
// transaction was created and no state changed.
type ConnectionUnavailableError struct {
	Cause error
}

func (e *ConnectionUnavailableError) Error() string {
	return fmt.Sprintf("connection unavailable: %v", e.Cause)
}

func (e *ConnectionUnavailableError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is() to match against ErrConnectionUnavailable
func (e *ConnectionUnavailableError) Is(target error) bool {
	return target == ErrConnectionUnavailable
}

// BackendError indicates the backend rejected or failed a control statement
// (BEGIN, COMMIT, ROLLBACK, SAVEPOINT, RELEASE). The transaction is left in
// a terminal rolled-back-equivalent state and its connection is discarded,
// never returned to the pool, since its true state is unknown.
type BackendError struct {
	Statement string // the offending statement
	Cause     error  // the backend's error, verbatim
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend rejected %q: %v", e.Statement, e.Cause)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is() to match against ErrBackend
func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

// HookError aggregates failures from after-commit hooks. The commit itself
// succeeded and is irreversible: hook failures are reported to the caller
// but never revert the committed state.
type HookError struct {
	Errs []error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%d after-commit hook(s) failed: %v", len(e.Errs), errors.Join(e.Errs...))
}

// Unwrap exposes the individual hook failures to errors.Is and errors.As.
func (e *HookError) Unwrap() []error {
	return e.Errs
}

// Is allows errors.Is() to match against ErrHook
func (e *HookError) Is(target error) bool {
	return target == ErrHook
}
