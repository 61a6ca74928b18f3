// Package sqlite is the relational identity store on modernc.org/sqlite.
// Keys are ULIDs (idx.ID).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/store"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know the bind style of.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type Option func(*Store)

// WithAutoSave sets the initial auto-save mode. Default on.
func WithAutoSave(on bool) Option { return func(s *Store) { s.autoSave = on } }

// WithMaxKeyLength rejects keys longer than n on create. Zero leaves only
// the schema limit.
func WithMaxKeyLength(n int) Option { return func(s *Store) { s.maxKeyLength = n } }

// WithIDGenerator replaces the process wide ULID generator.
func WithIDGenerator(g *idx.Generator) Option { return func(s *Store) { s.ids = g } }

type Store struct {
	db           *sqlx.DB
	ids          *idx.Generator
	maxKeyLength int

	mu       sync.Mutex
	autoSave bool
	tx       *sqlx.Tx // open while changes are pending
}

var _ store.Store[idx.ID] = (*Store)(nil)

func NewStore(dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One connection: sqlite serialises writers anyway and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:       db,
		ids:      idx.NewGenerator(nil),
		autoSave: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	_ = s.DiscardChanges()
	return s.db.Close()
}

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	pending := s.tx != nil
	s.mu.Unlock()
	if pending {
		// The only connection is held by the pending transaction.
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Users() store.Users[idx.ID]           { return &usersRepo{s: s} }
func (s *Store) UserClaims() store.UserClaims[idx.ID] { return &userClaimsRepo{s: s} }
func (s *Store) UserRoles() store.UserRoles[idx.ID]   { return &userRolesRepo{s: s} }
func (s *Store) Roles() store.Roles[idx.ID]           { return &rolesRepo{s: s} }
func (s *Store) RoleClaims() store.RoleClaims[idx.ID] { return &roleClaimsRepo{s: s} }

func (s *Store) NewKey() idx.ID { return s.ids.New() }

func (s *Store) AutoSaveChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoSave
}

// SetAutoSaveChanges switches mode for later mutations. A pending
// transaction stays open until SaveChanges.
func (s *Store) SetAutoSaveChanges(on bool) {
	s.mu.Lock()
	s.autoSave = on
	s.mu.Unlock()
}

func (s *Store) SaveChanges(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	return mapErr(err)
}

func (s *Store) DiscardChanges() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// reader returns the handle reads go through.
func (s *Store) reader() sqlx.ExtContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// writer returns the handle a single statement mutation goes through,
// opening the pending transaction when auto-save is off.
func (s *Store) writer(ctx context.Context) (sqlx.ExtContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx, nil
	}
	if s.autoSave {
		return s.db, nil
	}
	// The pending transaction outlives the call that opened it.
	tx, err := s.db.BeginTxx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, err
	}
	s.tx = tx
	return tx, nil
}

// atomic runs a multi statement mutation. Under auto-save it gets its own
// transaction, otherwise it joins the pending one.
func (s *Store) atomic(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	s.mu.Lock()
	direct := s.autoSave && s.tx == nil
	s.mu.Unlock()

	if !direct {
		q, err := s.writer(ctx)
		if err != nil {
			return err
		}
		return fn(q)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return mapErr(tx.Commit())
}

func (s *Store) checkKey(id idx.ID) error {
	if s.maxKeyLength > 0 && len(id) > s.maxKeyLength {
		return store.ErrKeyTooLong
	}
	return nil
}

func newStamp() string { return uuid.NewString() }

// mapErr converts driver errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return store.ErrAlreadyExists
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return store.ErrNotFound
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return store.ErrKeyTooLong
		}
	}
	return err
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time.UTC()
		return &val
	}
	return nil
}

func mapOptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
