package txn

import (
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"notary/internal/domain"
)

// TransactionConfig is the immutable per-transaction configuration supplied
// at creation. The zero value is usable: it begins a read-write transaction
// at the manager's default isolation level.
type TransactionConfig struct {
	// IsolationLevel must be a catalog member. Empty means the manager's
	// process-wide default (REPEATABLE READ unless overridden).
	IsolationLevel IsolationLevel

	// Type is the backend-specific transaction-start mode
	// (DEFERRED/IMMEDIATE/EXCLUSIVE). Optional; projected only where the
	// backend profile declares support.
	Type TxType

	// Autocommit requests the backend's session autocommit toggle.
	// Projected only where the backend profile declares support.
	Autocommit bool

	// ReadOnly requests a read-only transaction where the backend
	// supports the access mode.
	ReadOnly bool

	// Deferrable is a backend-specific clause appended verbatim to BEGIN
	// where the backend profile declares support (e.g. "DEFERRABLE" for a
	// serializable read-only Postgres transaction).
	Deferrable string

	// Logger is an optional per-transaction logging sink. Nil falls back
	// to the manager's logger.
	Logger *slog.Logger
}

// normalized returns a copy with defaults applied. defaultLevel fills an
// unset isolation level.
func (c TransactionConfig) normalized(defaultLevel IsolationLevel) TransactionConfig {
	if c.IsolationLevel == "" {
		c.IsolationLevel = defaultLevel
	}
	return c
}

// Validate checks the configuration against the catalog enumerations. It
// runs before any connection work: a rejected configuration never reaches
// the backend.
func (c TransactionConfig) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.IsolationLevel,
			validation.Required.Error("must be set"),
			validation.In(enumValues(IsolationLevels())...).Error("not a catalog isolation level"),
		),
		validation.Field(&c.Type,
			validation.In(enumValues(TxTypes())...).Error("not a catalog transaction type"),
		),
	)
	if err == nil {
		return nil
	}

	if errs, ok := err.(validation.Errors); ok {
		if fieldErr, ok := errs["IsolationLevel"]; ok {
			return &domain.InvalidConfigurationError{
				Field:  "isolationLevel",
				Value:  string(c.IsolationLevel),
				Reason: fieldErr.Error(),
			}
		}
		if fieldErr, ok := errs["Type"]; ok {
			return &domain.InvalidConfigurationError{
				Field:  "type",
				Value:  string(c.Type),
				Reason: fieldErr.Error(),
			}
		}
	}
	return &domain.InvalidConfigurationError{Field: "config", Reason: err.Error()}
}

// enumValues adapts a typed catalog enumeration to the []interface{} shape
// ozzo's In rule expects.
func enumValues[T ~string](values []T) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
