// Package txn coordinates logical units of work over a relational backend.
//
// It owns the transaction state machine, the isolation-level and lock-mode
// catalog, savepoint-based nesting, and after-commit hook delivery. Talking
// to the database goes through the Binder collaborator; building the SQL the
// binder executes goes through the dialect package.
package txn

import (
	"fmt"
	"strings"
)

// IsolationLevel is a transaction isolation level from the fixed catalog.
// Values are the SQL spellings so they can be projected into BEGIN
// statements directly.
type IsolationLevel string

const (
	ReadUncommitted IsolationLevel = "READ UNCOMMITTED"
	ReadCommitted   IsolationLevel = "READ COMMITTED"
	RepeatableRead  IsolationLevel = "REPEATABLE READ"
	Serializable    IsolationLevel = "SERIALIZABLE"
)

// DefaultIsolationLevel is the level applied when a configuration leaves it
// unset and no process-wide override is configured.
const DefaultIsolationLevel = RepeatableRead

// IsolationLevels returns the catalog enumeration in strictness order.
func IsolationLevels() []IsolationLevel {
	return []IsolationLevel{ReadUncommitted, ReadCommitted, RepeatableRead, Serializable}
}

// Valid reports whether the level is a member of the catalog.
func (l IsolationLevel) Valid() bool {
	switch l {
	case ReadUncommitted, ReadCommitted, RepeatableRead, Serializable:
		return true
	}
	return false
}

func (l IsolationLevel) String() string { return string(l) }

// ParseIsolationLevel converts a configuration token into a catalog member.
// Tokens are case-insensitive and may use underscores in place of spaces
// (READ_COMMITTED and "read committed" both parse).
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", " "))
	level := IsolationLevel(normalized)
	if !level.Valid() {
		return "", fmt.Errorf("unknown isolation level %q", s)
	}
	return level, nil
}

// TxType is a backend-specific transaction-start mode. SQLite understands
// all three; backends without the concept omit it from BEGIN.
type TxType string

const (
	Deferred  TxType = "DEFERRED"
	Immediate TxType = "IMMEDIATE"
	Exclusive TxType = "EXCLUSIVE"
)

// TxTypes returns the catalog enumeration of transaction types.
func TxTypes() []TxType {
	return []TxType{Deferred, Immediate, Exclusive}
}

// Valid reports whether the type is a member of the catalog. The empty
// value is not a member; an unset type is normalized away before
// validation.
func (t TxType) Valid() bool {
	switch t {
	case Deferred, Immediate, Exclusive:
		return true
	}
	return false
}

func (t TxType) String() string { return string(t) }

// LockLevel is a row-lock strength from the fixed catalog. Values are the
// SQL spellings used after FOR in a locking clause.
type LockLevel string

const (
	LockUpdate      LockLevel = "UPDATE"
	LockShare       LockLevel = "SHARE"
	LockKeyShare    LockLevel = "KEY SHARE"
	LockNoKeyUpdate LockLevel = "NO KEY UPDATE"
)

// LockLevels returns the catalog enumeration of row-lock strengths.
func LockLevels() []LockLevel {
	return []LockLevel{LockUpdate, LockShare, LockKeyShare, LockNoKeyUpdate}
}

// Valid reports whether the level is a member of the catalog.
func (l LockLevel) Valid() bool {
	switch l {
	case LockUpdate, LockShare, LockKeyShare, LockNoKeyUpdate:
		return true
	}
	return false
}

func (l LockLevel) String() string { return string(l) }

// LockMode describes a row-lock request attached to a read operation. Of
// optionally scopes the lock to one named entity when several are joined in
// an eager-load query. LockMode is descriptive data only; it is not owned
// by any transaction.
type LockMode struct {
	Level LockLevel
	Of    string
}
