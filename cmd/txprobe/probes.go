package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"notary/internal/domain"
	"notary/internal/repository/postgres"
	"notary/internal/txn"
)

type probeFn func(ctx context.Context, m *txn.Manager, logger *slog.Logger) error

// ping runs a trivial query on the transaction's dedicated connection,
// proving the statement really executes inside the transaction.
func ping(ctx context.Context) error {
	conn := postgres.ConnFor(ctx)
	if conn == nil {
		return errors.New("no transaction connection in context")
	}
	_, err := conn.Exec(ctx, "SELECT 1")
	return err
}

// probeIsolationLevels begins and commits one transaction per catalog
// isolation level, reporting which levels the dialect accepts and the
// round-trip cost of each.
func probeIsolationLevels(ctx context.Context, m *txn.Manager, logger *slog.Logger) error {
	for _, level := range txn.IsolationLevels() {
		start := time.Now()
		tx, err := m.Begin(ctx, nil, txn.TransactionConfig{IsolationLevel: level})
		if errors.Is(err, domain.ErrInvalidConfiguration) {
			logger.Info("isolation level not in dialect", "level", level)
			continue
		}
		if err != nil {
			return fmt.Errorf("begin at %s: %w", level, err)
		}
		if err := ping(txn.WithTransaction(ctx, tx)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("query at %s: %w", level, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit at %s: %w", level, err)
		}
		logger.Info("isolation level supported",
			"level", level,
			"round_trip", time.Since(start),
		)
	}
	return nil
}

func probeCommitHooks(ctx context.Context, m *txn.Manager, logger *slog.Logger) error {
	var order []string

	err := m.RunInTransaction(ctx, nil, txn.TransactionConfig{}, func(ctx context.Context, tx *txn.Transaction) error {
		if err := ping(ctx); err != nil {
			return err
		}
		if err := tx.AfterCommit(func(context.Context) error {
			order = append(order, "first")
			return nil
		}); err != nil {
			return err
		}
		return tx.AfterCommit(func(context.Context) error {
			order = append(order, "second")
			return nil
		})
	})
	if err != nil {
		return err
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		return fmt.Errorf("hooks ran as %v, want [first second]", order)
	}
	return nil
}

func probeRollback(ctx context.Context, m *txn.Manager, logger *slog.Logger) error {
	tx, err := m.Begin(ctx, nil, txn.TransactionConfig{})
	if err != nil {
		return err
	}

	hookRan := false
	if err := tx.AfterCommit(func(context.Context) error {
		hookRan = true
		return nil
	}); err != nil {
		return err
	}

	if err := ping(txn.WithTransaction(ctx, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Rollback(ctx); err != nil {
		return err
	}

	if tx.State() != txn.StateRolledBack {
		return fmt.Errorf("state after rollback = %v", tx.State())
	}
	if hookRan {
		return errors.New("after-commit hook ran on a rolled back transaction")
	}
	return nil
}

func probeNested(ctx context.Context, m *txn.Manager, logger *slog.Logger) error {
	root, err := m.Begin(ctx, nil, txn.TransactionConfig{})
	if err != nil {
		return err
	}
	defer func() {
		if root.State() == txn.StatePending {
			_ = root.Rollback(ctx)
		}
	}()

	// First nested unit rolls back without disturbing the root.
	abandoned, err := m.Begin(ctx, root, txn.TransactionConfig{})
	if err != nil {
		return err
	}
	if abandoned.Parent() != root {
		return errors.New("nested transaction does not report its parent")
	}
	if err := ping(txn.WithTransaction(ctx, abandoned)); err != nil {
		return err
	}
	if err := abandoned.Rollback(ctx); err != nil {
		return err
	}
	if root.State() != txn.StatePending {
		return fmt.Errorf("root state after nested rollback = %v", root.State())
	}

	// Second nested unit commits, then the root commits.
	kept, err := m.Begin(ctx, root, txn.TransactionConfig{})
	if err != nil {
		return err
	}
	logger.Debug("nested savepoint established", "savepoint", kept.SavepointName())
	if err := kept.Commit(ctx); err != nil {
		return err
	}
	return root.Commit(ctx)
}

func probeInvalidConfig(ctx context.Context, m *txn.Manager, logger *slog.Logger) error {
	_, err := m.Begin(ctx, nil, txn.TransactionConfig{
		IsolationLevel: txn.IsolationLevel("CHAOS"),
	})
	if err == nil {
		return errors.New("begin accepted an unknown isolation level")
	}
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		return fmt.Errorf("unknown isolation level returned %w, want configuration error", err)
	}
	logger.Debug("unknown isolation level rejected", "error", err)
	return nil
}

func probeTerminalMisuse(ctx context.Context, m *txn.Manager, logger *slog.Logger) error {
	tx, err := m.Begin(ctx, nil, txn.TransactionConfig{})
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); !errors.Is(err, domain.ErrInvalidState) {
		return fmt.Errorf("second commit returned %w, want state error", err)
	}
	if err := tx.Rollback(ctx); !errors.Is(err, domain.ErrInvalidState) {
		return fmt.Errorf("rollback after commit returned %w, want state error", err)
	}
	err = tx.AfterCommit(func(context.Context) error { return nil })
	if !errors.Is(err, domain.ErrInvalidState) {
		return fmt.Errorf("hook registration after commit returned %w, want state error", err)
	}
	return nil
}

func probeLockClauses(ctx context.Context, m *txn.Manager, logger *slog.Logger) error {
	for _, level := range txn.LockLevels() {
		clause, err := m.LockClause(txn.LockMode{Level: level})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidConfiguration) {
				logger.Debug("lock level not in dialect", "level", level)
				continue
			}
			return err
		}
		if !strings.HasPrefix(clause, "FOR ") {
			return fmt.Errorf("lock clause %q for %s", clause, level)
		}
		logger.Debug("lock clause rendered", "level", level, "clause", clause)
	}
	return nil
}

// probeSerializationRetry drives the retry pattern callers are expected to
// use: rerun the whole unit of work while the backend reports a transient
// serialization conflict.
func probeSerializationRetry(ctx context.Context, m *txn.Manager, logger *slog.Logger) error {
	const maxAttempts = 3

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = m.RunInTransaction(ctx, nil, txn.TransactionConfig{
			IsolationLevel: txn.Serializable,
		}, func(ctx context.Context, tx *txn.Transaction) error {
			return ping(ctx)
		})
		if err == nil {
			return nil
		}
		if !postgres.IsRetryable(err) {
			return err
		}
		logger.Warn("serialization conflict, retrying", "attempt", attempt, "error", err)
	}
	return fmt.Errorf("gave up after %d attempts: %w", maxAttempts, err)
}
