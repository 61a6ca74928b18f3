// Package memory is an in-process identity store. It keeps every entity in
// maps guarded by one lock and hands out copies, so callers never share state
// with the store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
	"github.com/google/uuid"
)

var ErrClosed = errors.New("memory: store closed")

type config struct {
	autoSave     bool
	maxKeyLength int
}

type Option func(*config)

// WithAutoSave sets the initial auto-save mode. Default on.
func WithAutoSave(on bool) Option { return func(c *config) { c.autoSave = on } }

// WithMaxKeyLength rejects keys whose printed form is longer than n. Zero
// disables the check.
func WithMaxKeyLength(n int) Option { return func(c *config) { c.maxKeyLength = n } }

// Store implements store.Store for any comparable key type.
type Store[K comparable] struct {
	mu      sync.RWMutex
	newKey  func() K
	cfg     config
	closed  bool
	seq     uint64
	current *state[K]
	pending *state[K] // working copy while auto-save is off
}

var _ store.Store[string] = (*Store[string])(nil)

// New builds an empty store. newKey supplies keys for entities created
// without one.
func New[K comparable](newKey func() K, opts ...Option) *Store[K] {
	cfg := config{autoSave: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store[K]{
		newKey:  newKey,
		cfg:     cfg,
		current: newState[K](),
	}
}

func (s *Store[K]) Users() store.Users[K]           { return usersRepo[K]{s: s} }
func (s *Store[K]) UserClaims() store.UserClaims[K] { return userClaimsRepo[K]{s: s} }
func (s *Store[K]) UserRoles() store.UserRoles[K]   { return userRolesRepo[K]{s: s} }
func (s *Store[K]) Roles() store.Roles[K]           { return rolesRepo[K]{s: s} }
func (s *Store[K]) RoleClaims() store.RoleClaims[K] { return roleClaimsRepo[K]{s: s} }

func (s *Store[K]) NewKey() K { return s.newKey() }

func (s *Store[K]) AutoSaveChanges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.autoSave
}

// SetAutoSaveChanges switches mode for later mutations. Changes already
// pending stay pending until SaveChanges.
func (s *Store[K]) SetAutoSaveChanges(on bool) {
	s.mu.Lock()
	s.cfg.autoSave = on
	s.mu.Unlock()
}

func (s *Store[K]) SaveChanges(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.pending != nil {
		s.current = s.pending
		s.pending = nil
	}
	return nil
}

func (s *Store[K]) DiscardChanges() error {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	return nil
}

// ApplyMigrations is a no-op; there is no schema.
func (s *Store[K]) ApplyMigrations() error { return nil }

func (s *Store[K]) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store[K]) Close() error {
	s.mu.Lock()
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
	return nil
}

// view returns the state reads should observe. Caller holds s.mu.
func (s *Store[K]) view() *state[K] {
	if s.pending != nil {
		return s.pending
	}
	return s.current
}

// edit returns the state mutations go to, opening a working copy when
// auto-save is off. Caller holds s.mu for writing.
func (s *Store[K]) edit() (*state[K], error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.pending != nil {
		return s.pending, nil
	}
	if s.cfg.autoSave {
		return s.current, nil
	}
	s.pending = s.current.clone()
	return s.pending, nil
}

func (s *Store[K]) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Store[K]) checkKey(k K) error {
	if s.cfg.maxKeyLength > 0 && len(fmt.Sprint(k)) > s.cfg.maxKeyLength {
		return store.ErrKeyTooLong
	}
	return nil
}

func newStamp() string { return uuid.NewString() }

type userRow[K comparable] struct {
	user domain.User[K]
	seq  uint64
}

type roleRow[K comparable] struct {
	role domain.Role[K]
	seq  uint64
}

type state[K comparable] struct {
	users      map[K]userRow[K]
	roles      map[K]roleRow[K]
	userClaims []domain.UserClaim[K]
	roleClaims []domain.RoleClaim[K]
	userRoles  map[domain.UserRole[K]]struct{}
	claimSeq   int64
}

func newState[K comparable]() *state[K] {
	return &state[K]{
		users:     make(map[K]userRow[K]),
		roles:     make(map[K]roleRow[K]),
		userRoles: make(map[domain.UserRole[K]]struct{}),
	}
}

func (st *state[K]) clone() *state[K] {
	c := newState[K]()
	for k, v := range st.users {
		v.user = copyUser(v.user)
		c.users[k] = v
	}
	for k, v := range st.roles {
		c.roles[k] = v
	}
	for k := range st.userRoles {
		c.userRoles[k] = struct{}{}
	}
	c.userClaims = append([]domain.UserClaim[K](nil), st.userClaims...)
	c.roleClaims = append([]domain.RoleClaim[K](nil), st.roleClaims...)
	c.claimSeq = st.claimSeq
	return c
}

// copyUser detaches the LockoutEnd pointer from the original.
func copyUser[K comparable](u domain.User[K]) domain.User[K] {
	if u.LockoutEnd != nil {
		end := *u.LockoutEnd
		u.LockoutEnd = &end
	}
	return u
}
