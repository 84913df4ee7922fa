package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"notary/internal/domain"
)

// Outcome labels how a transaction reached its terminal state.
type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeFailed marks a transaction forced terminal because the backend
	// rejected one of its control statements.
	OutcomeFailed Outcome = "failed"
)

// Recorder receives transaction lifecycle events. Implementations must be
// safe for concurrent use. A nil Recorder disables recording.
type Recorder interface {
	TransactionBegun(nested bool)
	TransactionCompleted(nested bool, outcome Outcome, lifetime time.Duration)
	HookFailures(n int)
	ConnectionDiscarded()
}

// ManagerConfig carries the collaborators a Manager is built from.
type ManagerConfig struct {
	// Binder supplies and retires backend connections. Required.
	Binder Binder
	// Statements renders control statements for the target backend. Required.
	Statements Statements
	// DefaultIsolation applies when a TransactionConfig leaves the level
	// empty. Zero value selects the catalog default.
	DefaultIsolation IsolationLevel
	// Logger for lifecycle events. Nil selects slog.Default().
	Logger *slog.Logger
	// Metrics receives lifecycle events. Nil disables recording.
	Metrics Recorder
}

// Manager creates transactions and tracks the ones still pending. All
// methods are safe for concurrent use; the transactions it hands out are
// not, each handle expects serialized calls.
type Manager struct {
	binder       Binder
	stmts        Statements
	defaultLevel IsolationLevel
	logger       *slog.Logger
	rec          Recorder

	mu     sync.Mutex
	active map[uuid.UUID]*Transaction

	savepointSeq atomic.Uint64
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Binder == nil {
		return nil, &domain.InvalidConfigurationError{
			Field:  "Binder",
			Reason: "must be set",
		}
	}
	if cfg.Statements == nil {
		return nil, &domain.InvalidConfigurationError{
			Field:  "Statements",
			Reason: "must be set",
		}
	}
	level := cfg.DefaultIsolation
	if level == "" {
		level = DefaultIsolationLevel
	}
	if !level.Valid() {
		return nil, &domain.InvalidConfigurationError{
			Field:  "DefaultIsolation",
			Value:  string(level),
			Reason: "not a catalog isolation level",
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		binder:       cfg.Binder,
		stmts:        cfg.Statements,
		defaultLevel: level,
		logger:       logger,
		rec:          cfg.Metrics,
		active:       make(map[uuid.UUID]*Transaction),
	}, nil
}

// Begin starts a transaction. With parent nil it acquires a dedicated
// connection and issues the dialect's begin statement; with a parent it
// establishes a savepoint on the parent's connection instead. Nesting is
// always explicit through the parent argument, never inferred from ctx.
//
// A nested transaction runs inside the parent's backend session, so the
// parent's isolation level and access mode stay in force; cfg still must
// validate, and its Logger override is honored.
//
// Configuration problems surface as InvalidConfigurationError before any
// connection is touched. Acquisition failures surface as
// ConnectionUnavailableError, backend rejections as BackendError.
func (m *Manager) Begin(ctx context.Context, parent *Transaction, cfg TransactionConfig) (*Transaction, error) {
	cfg = cfg.normalized(m.defaultLevel)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if checker, ok := m.stmts.(ConfigChecker); ok {
		if err := checker.CheckConfig(cfg); err != nil {
			return nil, err
		}
	}
	if parent != nil {
		return m.beginNested(ctx, parent, cfg)
	}
	return m.beginRoot(ctx, cfg)
}

func (m *Manager) beginRoot(ctx context.Context, cfg TransactionConfig) (*Transaction, error) {
	conn, err := m.binder.Acquire(ctx)
	if err != nil {
		return nil, &domain.ConnectionUnavailableError{Cause: err}
	}

	if stmt, ok := m.stmts.Autocommit(cfg.Autocommit); ok {
		if err := m.binder.Exec(ctx, conn, stmt); err != nil {
			m.binder.Discard(conn)
			m.recordDiscard()
			return nil, &domain.BackendError{Statement: stmt, Cause: err}
		}
	}

	// Immediately before begin so the level binds to the transaction the
	// begin statement starts.
	if stmt, ok := m.stmts.SetIsolation(cfg.IsolationLevel); ok {
		if err := m.binder.Exec(ctx, conn, stmt); err != nil {
			m.binder.Discard(conn)
			m.recordDiscard()
			return nil, &domain.BackendError{Statement: stmt, Cause: err}
		}
	}

	stmt := m.stmts.Begin(cfg)
	if err := m.binder.Exec(ctx, conn, stmt); err != nil {
		m.binder.Discard(conn)
		m.recordDiscard()
		return nil, &domain.BackendError{Statement: stmt, Cause: err}
	}

	tx := &Transaction{
		id:      uuid.New(),
		cfg:     cfg,
		logger:  m.loggerFor(cfg),
		mgr:     m,
		state:   StatePending,
		started: time.Now(),
		conn:    conn,
	}
	m.track(tx)

	tx.logger.Debug("transaction begun",
		"id", tx.id,
		"isolation", cfg.IsolationLevel,
		"read_only", cfg.ReadOnly,
	)
	return tx, nil
}

func (m *Manager) beginNested(ctx context.Context, parent *Transaction, cfg TransactionConfig) (*Transaction, error) {
	if parent.State() != StatePending {
		return nil, &domain.InvalidStateError{Op: "nested begin", State: parent.State().String()}
	}

	name := m.nextSavepointName()
	stmt := m.stmts.Savepoint(name)
	if err := m.binder.Exec(ctx, parent.Conn(), stmt); err != nil {
		// No child came into being and the parent keeps its connection. If
		// the session itself is poisoned the parent's own terminal
		// transition retires it.
		return nil, &domain.BackendError{Statement: stmt, Cause: err}
	}

	inherited := parent.Config()
	inherited.Logger = cfg.Logger

	tx := &Transaction{
		id:        uuid.New(),
		cfg:       inherited,
		logger:    m.loggerFor(cfg),
		mgr:       m,
		state:     StatePending,
		started:   time.Now(),
		parent:    parent,
		savepoint: name,
	}
	m.track(tx)

	tx.logger.Debug("nested transaction begun",
		"id", tx.id,
		"parent", parent.ID(),
		"savepoint", name,
	)
	return tx, nil
}

// nextSavepointName builds a name unique within the manager. Savepoint
// names share one namespace per backend session, so a sequence number
// alone would collide across sibling managers; the random suffix keeps
// names distinct even then.
func (m *Manager) nextSavepointName() string {
	seq := m.savepointSeq.Add(1)
	return fmt.Sprintf("sp_%d_%s", seq, uuid.NewString()[:8])
}

// WorkFn is the unit of work RunInTransaction drives. The ctx it receives
// carries the transaction, retrievable with FromContext.
type WorkFn func(ctx context.Context, tx *Transaction) error

// RunInTransaction begins a transaction, runs work, then commits on nil
// error and rolls back otherwise. A panic in work rolls the transaction
// back and re-panics. If work already drove the transaction to a terminal
// state, RunInTransaction leaves it alone.
//
// When both work and the rollback it triggers fail, the two errors come
// back joined.
func (m *Manager) RunInTransaction(ctx context.Context, parent *Transaction, cfg TransactionConfig, work WorkFn) error {
	tx, err := m.Begin(ctx, parent, cfg)
	if err != nil {
		return err
	}
	ctx = WithTransaction(ctx, tx)

	defer func() {
		if r := recover(); r != nil {
			if tx.State() == StatePending {
				_ = tx.Rollback(ctx)
			}
			panic(r)
		}
	}()

	if err := work(ctx, tx); err != nil {
		if tx.State() == StatePending {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				return errors.Join(err, rbErr)
			}
		}
		return err
	}
	if tx.State() != StatePending {
		return nil
	}
	return tx.Commit(ctx)
}

// LockClause renders the row-lock clause for mode on the manager's
// dialect. Lock strengths outside the dialect's support surface as
// InvalidConfigurationError.
func (m *Manager) LockClause(mode LockMode) (string, error) {
	return m.stmts.LockClause(mode)
}

// ActiveCount reports how many transactions created by this manager are
// still pending.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// ActiveIDs lists the pending transactions in no particular order.
func (m *Manager) ActiveIDs() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) track(t *Transaction) {
	m.mu.Lock()
	m.active[t.id] = t
	m.mu.Unlock()
	if m.rec != nil {
		m.rec.TransactionBegun(t.Nested())
	}
}

func (m *Manager) forget(t *Transaction, outcome Outcome) {
	m.mu.Lock()
	delete(m.active, t.id)
	m.mu.Unlock()
	if m.rec != nil {
		m.rec.TransactionCompleted(t.Nested(), outcome, time.Since(t.started))
	}
}

func (m *Manager) recordHookFailures(n int) {
	if m.rec != nil {
		m.rec.HookFailures(n)
	}
}

func (m *Manager) recordDiscard() {
	if m.rec != nil {
		m.rec.ConnectionDiscarded()
	}
}

func (m *Manager) loggerFor(cfg TransactionConfig) *slog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return m.logger
}
