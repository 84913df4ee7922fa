package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"notary/internal/domain"
)

func TestSQLStateClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		serialize   bool
		deadlock    bool
		failedTx    bool
		badSavepnt  bool
		retryable   bool
	}{
		{
			name:      "serialization failure",
			err:       &pgconn.PgError{Code: "40001", Message: "could not serialize access"},
			serialize: true,
			retryable: true,
		},
		{
			name:      "deadlock detected",
			err:       &pgconn.PgError{Code: "40P01", Message: "deadlock detected"},
			deadlock:  true,
			retryable: true,
		},
		{
			name:     "failed sql transaction",
			err:      &pgconn.PgError{Code: "25P02", Message: "current transaction is aborted"},
			failedTx: true,
		},
		{
			name:       "invalid savepoint",
			err:        &pgconn.PgError{Code: "3B001", Message: "savepoint does not exist"},
			badSavepnt: true,
		},
		{
			name: "unrelated pg error",
			err:  &pgconn.PgError{Code: "23505", Message: "duplicate key"},
		},
		{
			name: "plain error",
			err:  errors.New("connection refused"),
		},
		{
			name: "nil",
			err:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSerializationFailure(tt.err); got != tt.serialize {
				t.Errorf("IsSerializationFailure() = %v, want %v", got, tt.serialize)
			}
			if got := IsDeadlockDetected(tt.err); got != tt.deadlock {
				t.Errorf("IsDeadlockDetected() = %v, want %v", got, tt.deadlock)
			}
			if got := IsFailedTransaction(tt.err); got != tt.failedTx {
				t.Errorf("IsFailedTransaction() = %v, want %v", got, tt.failedTx)
			}
			if got := IsInvalidSavepoint(tt.err); got != tt.badSavepnt {
				t.Errorf("IsInvalidSavepoint() = %v, want %v", got, tt.badSavepnt)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestSQLStateClassificationThroughWrapping(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	wrapped := &domain.BackendError{Statement: "COMMIT", Cause: fmt.Errorf("exec: %w", pgErr)}

	if !IsSerializationFailure(wrapped) {
		t.Error("IsSerializationFailure() = false through BackendError wrapping")
	}
	if !IsRetryable(wrapped) {
		t.Error("IsRetryable() = false through BackendError wrapping")
	}
	if IsDeadlockDetected(wrapped) {
		t.Error("IsDeadlockDetected() = true for a serialization failure")
	}
}
