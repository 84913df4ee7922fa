// Package dialect projects the transaction catalog onto concrete backend
// grammars. Each backend is described by a declarative profile loaded from
// an embedded YAML file; a Dialect renders control statements from its
// profile and rejects configurations the profile cannot express.
package dialect

import (
	"strings"

	"notary/internal/domain"
	"notary/internal/txn"
)

// Profile declares what one backend's transaction grammar supports.
type Profile struct {
	// Name identifies the dialect, "postgres" for instance.
	Name string `yaml:"dialect"`

	// BeginKeyword overrides the transaction-start keyword. Empty renders
	// BEGIN; MySQL needs START TRANSACTION because its BEGIN form takes no
	// access-mode clauses.
	BeginKeyword string `yaml:"begin_keyword"`

	// IsolationLevels the backend accepts. Empty means the backend runs a
	// single fixed level and the begin statement carries no clause.
	IsolationLevels []string `yaml:"isolation_levels"`

	// IsolationInBegin controls whether the level is rendered into BEGIN.
	// Backends that pin their level (SQLite) accept it in configuration
	// but have no clause to render.
	IsolationInBegin bool `yaml:"isolation_in_begin"`

	// IsolationViaSet controls whether the level travels in a SET
	// TRANSACTION ISOLATION LEVEL statement issued immediately before
	// begin, the MySQL arrangement.
	IsolationViaSet bool `yaml:"isolation_via_set"`

	// TransactionTypes the begin grammar accepts (DEFERRED, IMMEDIATE,
	// EXCLUSIVE). Empty for backends without start modes.
	TransactionTypes []string `yaml:"transaction_types"`

	// ReadOnly reports whether BEGIN accepts a READ ONLY clause.
	ReadOnly bool `yaml:"read_only"`

	// Deferrable reports whether BEGIN accepts a deferrable clause. The
	// configured value passes through verbatim.
	Deferrable bool `yaml:"deferrable"`

	// Autocommit reports whether the backend has an explicit autocommit
	// toggle statement. Backends managing autocommit implicitly leave it
	// false and the configuration flag is accepted without effect.
	Autocommit bool `yaml:"autocommit"`

	// LockLevels the row-lock grammar accepts (UPDATE, SHARE, ...).
	LockLevels []string `yaml:"lock_levels"`

	// LockOf reports whether a lock clause may name target relations
	// (FOR UPDATE OF <entity>).
	LockOf bool `yaml:"lock_of"`
}

func (p Profile) supportsIsolation(level txn.IsolationLevel) bool {
	for _, l := range p.IsolationLevels {
		if l == string(level) {
			return true
		}
	}
	return false
}

func (p Profile) supportsType(typ txn.TxType) bool {
	for _, t := range p.TransactionTypes {
		if t == string(typ) {
			return true
		}
	}
	return false
}

func (p Profile) supportsLock(level txn.LockLevel) bool {
	for _, l := range p.LockLevels {
		if l == string(level) {
			return true
		}
	}
	return false
}

// Dialect renders control statements for one backend profile. It
// implements the statement projection the transaction manager consumes and
// the pre-begin configuration check.
type Dialect struct {
	profile Profile
}

// NewDialect wraps a profile in its statement renderer.
func NewDialect(profile Profile) *Dialect {
	return &Dialect{profile: profile}
}

// Profile returns the declarative support surface the dialect renders from.
func (d *Dialect) Profile() Profile { return d.profile }

// Name returns the dialect name.
func (d *Dialect) Name() string { return d.profile.Name }

// CheckConfig rejects configurations the profile cannot express. Catalog
// membership was validated before this runs; here only per-backend support
// is at stake.
func (d *Dialect) CheckConfig(cfg txn.TransactionConfig) error {
	if !d.profile.supportsIsolation(cfg.IsolationLevel) {
		return &domain.InvalidConfigurationError{
			Field:  "isolationLevel",
			Value:  string(cfg.IsolationLevel),
			Reason: "not supported by dialect " + d.profile.Name,
		}
	}
	if cfg.Type != "" && !d.profile.supportsType(cfg.Type) {
		return &domain.InvalidConfigurationError{
			Field:  "type",
			Value:  string(cfg.Type),
			Reason: "not supported by dialect " + d.profile.Name,
		}
	}
	if cfg.ReadOnly && !d.profile.ReadOnly {
		return &domain.InvalidConfigurationError{
			Field:  "readOnly",
			Value:  "true",
			Reason: "not supported by dialect " + d.profile.Name,
		}
	}
	if cfg.Deferrable != "" && !d.profile.Deferrable {
		return &domain.InvalidConfigurationError{
			Field:  "deferrable",
			Value:  cfg.Deferrable,
			Reason: "not supported by dialect " + d.profile.Name,
		}
	}
	return nil
}

// Begin renders the transaction-start statement. Clause order follows the
// begin grammar: BEGIN [ISOLATION LEVEL <level>] [<type>] [READ ONLY]
// [<deferrable>]. CheckConfig gates entry, so only expressible
// configurations reach this point.
func (d *Dialect) Begin(cfg txn.TransactionConfig) string {
	var sb strings.Builder
	if d.profile.BeginKeyword != "" {
		sb.WriteString(d.profile.BeginKeyword)
	} else {
		sb.WriteString("BEGIN")
	}
	if d.profile.IsolationInBegin && cfg.IsolationLevel != "" {
		sb.WriteString(" ISOLATION LEVEL ")
		sb.WriteString(string(cfg.IsolationLevel))
	}
	if cfg.Type != "" {
		sb.WriteString(" ")
		sb.WriteString(string(cfg.Type))
	}
	if cfg.ReadOnly {
		sb.WriteString(" READ ONLY")
	}
	if cfg.Deferrable != "" {
		sb.WriteString(" ")
		sb.WriteString(cfg.Deferrable)
	}
	return sb.String()
}

// SetIsolation renders the pre-begin isolation statement for profiles that
// carry the level outside the begin grammar.
func (d *Dialect) SetIsolation(level txn.IsolationLevel) (string, bool) {
	if !d.profile.IsolationViaSet || level == "" {
		return "", false
	}
	return "SET TRANSACTION ISOLATION LEVEL " + string(level), true
}

// Autocommit renders the explicit autocommit toggle for backends that have
// one. Of the shipped profiles only mysql carries the session variable;
// the rest manage autocommit implicitly and return ok=false.
func (d *Dialect) Autocommit(on bool) (string, bool) {
	if !d.profile.Autocommit {
		return "", false
	}
	if on {
		return "SET autocommit = 1", true
	}
	return "SET autocommit = 0", true
}

func (d *Dialect) Commit() string   { return "COMMIT" }
func (d *Dialect) Rollback() string { return "ROLLBACK" }

func (d *Dialect) Savepoint(name string) string {
	return "SAVEPOINT " + name
}

func (d *Dialect) ReleaseSavepoint(name string) string {
	return "RELEASE SAVEPOINT " + name
}

func (d *Dialect) RollbackToSavepoint(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

// LockClause renders FOR <level> [OF <entity>] for locking reads.
func (d *Dialect) LockClause(mode txn.LockMode) (string, error) {
	if !mode.Level.Valid() {
		return "", &domain.InvalidConfigurationError{
			Field:  "lock",
			Value:  string(mode.Level),
			Reason: "not a catalog lock level",
		}
	}
	if !d.profile.supportsLock(mode.Level) {
		return "", &domain.InvalidConfigurationError{
			Field:  "lock",
			Value:  string(mode.Level),
			Reason: "not supported by dialect " + d.profile.Name,
		}
	}
	clause := "FOR " + string(mode.Level)
	if mode.Of != "" {
		if !d.profile.LockOf {
			return "", &domain.InvalidConfigurationError{
				Field:  "lock.of",
				Value:  mode.Of,
				Reason: "not supported by dialect " + d.profile.Name,
			}
		}
		clause += " OF " + mode.Of
	}
	return clause, nil
}

var (
	_ txn.Statements    = (*Dialect)(nil)
	_ txn.ConfigChecker = (*Dialect)(nil)
)
