package txn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"notary/internal/domain"
)

func newPropertyManager(binder *fakeBinder) *Manager {
	m, err := NewManager(ManagerConfig{
		Binder:     binder,
		Statements: fakeStatements{},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		panic(err)
	}
	return m
}

// TestTransactionInvariants verifies lifecycle invariants that must hold
// for every operation sequence, not just the handful picked by the
// example-based tests.
func TestTransactionInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	// Property 1: hooks fire exactly once, in registration order, for any
	// number of registrations.
	properties.Property("hooks fire once in registration order", prop.ForAll(
		func(n int) bool {
			m := newPropertyManager(&fakeBinder{})
			ctx := context.Background()
			tx, err := m.Begin(ctx, nil, TransactionConfig{})
			if err != nil {
				return false
			}

			var order []int
			for i := 0; i < n; i++ {
				i := i
				if err := tx.AfterCommit(func(context.Context) error {
					order = append(order, i)
					return nil
				}); err != nil {
					return false
				}
			}
			if err := tx.Commit(ctx); err != nil {
				return false
			}

			if len(order) != n {
				return false
			}
			for i, got := range order {
				if got != i {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 16),
	))

	// Property 2: a terminal state absorbs every further operation without
	// issuing statements or changing state.
	properties.Property("terminal states absorb all operations", prop.ForAll(
		func(commitFirst bool, attempts []bool) bool {
			b := &fakeBinder{}
			m := newPropertyManager(b)
			ctx := context.Background()
			tx, err := m.Begin(ctx, nil, TransactionConfig{})
			if err != nil {
				return false
			}

			if commitFirst {
				err = tx.Commit(ctx)
			} else {
				err = tx.Rollback(ctx)
			}
			if err != nil {
				return false
			}
			terminal := tx.State()
			issued := len(b.statements())

			for _, asCommit := range attempts {
				var opErr error
				if asCommit {
					opErr = tx.Commit(ctx)
				} else {
					opErr = tx.Rollback(ctx)
				}
				if !errors.Is(opErr, domain.ErrInvalidState) {
					return false
				}
			}

			return tx.State() == terminal && len(b.statements()) == issued
		},
		gen.Bool(),
		gen.SliceOf(gen.Bool()),
	))

	// Property 3: the root connection is retired exactly once, released on
	// a clean terminal statement and discarded on a rejected one.
	properties.Property("root connection retired exactly once", prop.ForAll(
		func(commit, backendFails bool) bool {
			errBoom := errors.New("backend failure")
			b := &fakeBinder{}
			if backendFails {
				b.execHook = func(stmt string) error {
					if stmt == "COMMIT" || stmt == "ROLLBACK" {
						return errBoom
					}
					return nil
				}
			}
			m := newPropertyManager(b)
			ctx := context.Background()
			tx, err := m.Begin(ctx, nil, TransactionConfig{})
			if err != nil {
				return false
			}

			if commit {
				err = tx.Commit(ctx)
			} else {
				err = tx.Rollback(ctx)
			}
			if backendFails && !errors.Is(err, domain.ErrBackend) {
				return false
			}

			retired := b.releases() + b.discards()
			if retired != 1 {
				return false
			}
			if backendFails && b.discards() != 1 {
				return false
			}
			if !backendFails && b.releases() != 1 {
				return false
			}
			return m.ActiveCount() == 0
		},
		gen.Bool(),
		gen.Bool(),
	))

	// Property 4: savepoint names never collide, whatever the nesting count.
	properties.Property("savepoint names are unique", prop.ForAll(
		func(n int) bool {
			b := &fakeBinder{}
			m := newPropertyManager(b)
			ctx := context.Background()
			root, err := m.Begin(ctx, nil, TransactionConfig{})
			if err != nil {
				return false
			}

			seen := make(map[string]bool, n)
			for i := 0; i < n; i++ {
				nested, err := m.Begin(ctx, root, TransactionConfig{})
				if err != nil {
					return false
				}
				name := nested.SavepointName()
				if !strings.HasPrefix(name, "sp_") || seen[name] {
					return false
				}
				seen[name] = true
				if err := nested.Commit(ctx); err != nil {
					return false
				}
			}
			return len(seen) == n
		},
		gen.IntRange(1, 12),
	))

	// Property 5: however each root ends, the registry drains to zero and
	// every connection is retired.
	properties.Property("registry drains for any termination mix", prop.ForAll(
		func(commits []bool) bool {
			b := &fakeBinder{}
			m := newPropertyManager(b)
			ctx := context.Background()

			for _, asCommit := range commits {
				tx, err := m.Begin(ctx, nil, TransactionConfig{})
				if err != nil {
					return false
				}
				if asCommit {
					err = tx.Commit(ctx)
				} else {
					err = tx.Rollback(ctx)
				}
				if err != nil {
					return false
				}
			}

			return m.ActiveCount() == 0 && b.releases() == len(commits)
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
