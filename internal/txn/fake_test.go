package txn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// fakeConn is a recorded connection handed out by fakeBinder.
type fakeConn struct {
	id        int
	released  int
	discarded int
}

func (*fakeConn) IsConn() {}

type execRecord struct {
	conn *fakeConn
	stmt string
}

// fakeBinder records every acquire, exec, release and discard so tests can
// assert on the exact statement stream and on connection retirement.
type fakeBinder struct {
	mu         sync.Mutex
	nextID     int
	conns      []*fakeConn
	execs      []execRecord
	acquireErr error
	// execHook, when set, decides per statement whether Exec fails. The
	// statement is recorded either way.
	execHook func(stmt string) error
}

func (b *fakeBinder) Acquire(ctx context.Context) (Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.acquireErr != nil {
		return nil, b.acquireErr
	}
	b.nextID++
	c := &fakeConn{id: b.nextID}
	b.conns = append(b.conns, c)
	return c, nil
}

func (b *fakeBinder) Exec(ctx context.Context, conn Conn, stmt string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.execs = append(b.execs, execRecord{conn: conn.(*fakeConn), stmt: stmt})
	if b.execHook != nil {
		return b.execHook(stmt)
	}
	return nil
}

func (b *fakeBinder) Release(conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	conn.(*fakeConn).released++
}

func (b *fakeBinder) Discard(conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	conn.(*fakeConn).discarded++
}

// statements returns the statement stream in execution order.
func (b *fakeBinder) statements() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.execs))
	for i, e := range b.execs {
		out[i] = e.stmt
	}
	return out
}

func (b *fakeBinder) acquired() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *fakeBinder) releases() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.conns {
		n += c.released
	}
	return n
}

func (b *fakeBinder) discards() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.conns {
		n += c.discarded
	}
	return n
}

// fakeStatements renders deterministic control statements. The autocommit
// and isolationSet switches turn on the optional pre-begin projections so
// those paths stay testable without a real dialect.
type fakeStatements struct {
	autocommit   bool
	isolationSet bool
}

func (fakeStatements) Begin(cfg TransactionConfig) string {
	var sb strings.Builder
	sb.WriteString("BEGIN ISOLATION LEVEL ")
	sb.WriteString(string(cfg.IsolationLevel))
	if cfg.ReadOnly {
		sb.WriteString(" READ ONLY")
	}
	return sb.String()
}

func (s fakeStatements) SetIsolation(level IsolationLevel) (string, bool) {
	if !s.isolationSet {
		return "", false
	}
	return "SET TRANSACTION ISOLATION LEVEL " + string(level), true
}

func (s fakeStatements) Autocommit(on bool) (string, bool) {
	if !s.autocommit {
		return "", false
	}
	if on {
		return "SET autocommit = 1", true
	}
	return "SET autocommit = 0", true
}

func (fakeStatements) Commit() string   { return "COMMIT" }
func (fakeStatements) Rollback() string { return "ROLLBACK" }

func (fakeStatements) Savepoint(name string) string {
	return "SAVEPOINT " + name
}

func (fakeStatements) ReleaseSavepoint(name string) string {
	return "RELEASE SAVEPOINT " + name
}

func (fakeStatements) RollbackToSavepoint(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

func (fakeStatements) LockClause(mode LockMode) (string, error) {
	if !mode.Level.Valid() {
		return "", fmt.Errorf("unknown lock level %q", mode.Level)
	}
	clause := "FOR " + string(mode.Level)
	if mode.Of != "" {
		clause += " OF " + mode.Of
	}
	return clause, nil
}

func newTestManager(t *testing.T, binder *fakeBinder, stmts Statements) *Manager {
	t.Helper()
	if stmts == nil {
		stmts = fakeStatements{}
	}
	m, err := NewManager(ManagerConfig{
		Binder:     binder,
		Statements: stmts,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewManager() unexpected error: %v", err)
	}
	return m
}
