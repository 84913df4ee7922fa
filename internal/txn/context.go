package txn

import "context"

// txContextKey is the type for transaction context keys
type txContextKey string

// txKey is the context key for storing transaction handles
const txKey txContextKey = "notary_tx"

// WithTransaction tags a context with a transaction handle so lower layers
// (repositories, query builders) can route their statements onto the
// transaction's connection. This is operation tagging only: nesting is
// never inferred from a context, callers pass the enclosing handle to
// Begin explicitly.
func WithTransaction(ctx context.Context, tx *Transaction) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// FromContext retrieves the transaction handle from the context.
// Returns nil if no transaction is present.
func FromContext(ctx context.Context) *Transaction {
	tx, ok := ctx.Value(txKey).(*Transaction)
	if !ok {
		return nil
	}
	return tx
}
