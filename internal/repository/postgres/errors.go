package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsSerializationFailure checks if error is a serialization failure
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 = serialization_failure
		return pgErr.Code == "40001"
	}
	return false
}

// IsDeadlockDetected checks if error is a deadlock between transactions
func IsDeadlockDetected(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40P01 = deadlock_detected
		return pgErr.Code == "40P01"
	}
	return false
}

// IsFailedTransaction checks if error means the session's transaction is
// aborted and only ROLLBACK will be accepted
func IsFailedTransaction(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 25P02 = in_failed_sql_transaction
		return pgErr.Code == "25P02"
	}
	return false
}

// IsInvalidSavepoint checks if error is a reference to a savepoint that no
// longer exists
func IsInvalidSavepoint(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 3B001 = invalid_savepoint_specification
		return pgErr.Code == "3B001"
	}
	return false
}

// IsRetryable reports whether the whole transaction is worth retrying from
// the top: serialization failures and deadlocks are transient by contract.
func IsRetryable(err error) bool {
	return IsSerializationFailure(err) || IsDeadlockDetected(err)
}
