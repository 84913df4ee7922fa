package metrics

import (
	"time"

	"notary/internal/txn"
)

func kindLabel(nested bool) string {
	if nested {
		return "nested"
	}
	return "root"
}

// TransactionBegun records a transaction entering the pending state.
func (r *Registry) TransactionBegun(nested bool) {
	r.TransactionsBegun.WithLabelValues(kindLabel(nested)).Inc()
	r.TransactionsActive.Inc()
}

// TransactionCompleted records a terminal transition and the transaction's
// lifetime.
func (r *Registry) TransactionCompleted(nested bool, outcome txn.Outcome, lifetime time.Duration) {
	kind := kindLabel(nested)
	r.TransactionsCompleted.WithLabelValues(kind, string(outcome)).Inc()
	r.TransactionsActive.Dec()
	r.TransactionDuration.WithLabelValues(kind).Observe(lifetime.Seconds())
}

// HookFailures records n after-commit hooks failing on one commit.
func (r *Registry) HookFailures(n int) {
	r.HookFailuresTotal.Add(float64(n))
}

// ConnectionDiscarded records a connection destroyed instead of pooled.
func (r *Registry) ConnectionDiscarded() {
	r.ConnectionsDiscarded.Inc()
}

var _ txn.Recorder = (*Registry)(nil)
