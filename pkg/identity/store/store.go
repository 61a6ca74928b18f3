package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
)

var (
	ErrNotFound           = errors.New("store: not found")
	ErrAlreadyExists      = errors.New("store: already exists")
	ErrConcurrencyFailure = errors.New("store: concurrency stamp mismatch")
	ErrKeyTooLong         = errors.New("store: key too long")
)

// Store is the root data access interface, generic over the key type. Drivers
// (memory, sqlite) implement it and expose one sub-repository per entity.
//
// With auto-save on (the default) every mutation is committed when the call
// returns. With it off, mutations accumulate until SaveChanges or are dropped
// by DiscardChanges. Reads always observe pending changes.
type Store[K comparable] interface {
	Users() Users[K]
	UserClaims() UserClaims[K]
	UserRoles() UserRoles[K]
	Roles() Roles[K]
	RoleClaims() RoleClaims[K]

	// NewKey returns a fresh key for an entity created without one.
	NewKey() K

	AutoSaveChanges() bool
	SetAutoSaveChanges(on bool)

	// SaveChanges commits pending mutations. It is a no-op when nothing is
	// pending.
	SaveChanges(ctx context.Context) error

	// DiscardChanges drops pending mutations.
	DiscardChanges() error

	ApplyMigrations() error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources. Pending changes are dropped.
	Close() error
}

type Users[K comparable] interface {
	// Create inserts u and assigns a fresh concurrency stamp. The normalized
	// user name must be unique (ErrAlreadyExists).
	Create(ctx context.Context, u *domain.User[K]) error

	// Update persists u when its concurrency stamp matches the stored one and
	// rotates the stamp on success. A mismatch returns ErrConcurrencyFailure.
	Update(ctx context.Context, u *domain.User[K]) error

	// Delete removes the user along with its claims and role memberships.
	Delete(ctx context.Context, id K) error

	FindByID(ctx context.Context, id K) (domain.User[K], error)
	FindByNormalizedName(ctx context.Context, normalizedName string) (domain.User[K], error)

	// FindByNormalizedEmail returns the oldest user with the address.
	FindByNormalizedEmail(ctx context.Context, normalizedEmail string) (domain.User[K], error)

	// List returns every user ordered by creation time.
	List(ctx context.Context) ([]domain.User[K], error)

	// IncrementAccessFailed adds one failed attempt in a single atomic step.
	// When the stored user has lockout enabled and the count reaches
	// maxAttempts, the count is reset and LockoutEnd is set to now+lockFor.
	// It returns the user as stored afterwards.
	IncrementAccessFailed(ctx context.Context, id K, maxAttempts int, lockFor time.Duration, now time.Time) (domain.User[K], error)
}

type UserClaims[K comparable] interface {
	List(ctx context.Context, userID K) ([]domain.Claim, error)
	Add(ctx context.Context, userID K, claims ...domain.Claim) error

	// Replace rewrites every claim of the user equal to old.
	Replace(ctx context.Context, userID K, old, replacement domain.Claim) error

	// Remove deletes each matching claim. Missing claims are ignored.
	Remove(ctx context.Context, userID K, claims ...domain.Claim) error

	UsersForClaim(ctx context.Context, c domain.Claim) ([]domain.User[K], error)
}

type UserRoles[K comparable] interface {
	// Add links the user to the role. A duplicate pair returns ErrAlreadyExists.
	Add(ctx context.Context, userID, roleID K) error

	// Remove unlinks the pair, ErrNotFound when it is absent.
	Remove(ctx context.Context, userID, roleID K) error

	Exists(ctx context.Context, userID, roleID K) (bool, error)
	RolesForUser(ctx context.Context, userID K) ([]domain.Role[K], error)
	UsersInRole(ctx context.Context, roleID K) ([]domain.User[K], error)
}

type Roles[K comparable] interface {
	// Create and Update follow the same stamp rules as Users.
	Create(ctx context.Context, r *domain.Role[K]) error
	Update(ctx context.Context, r *domain.Role[K]) error

	// Delete removes the role along with its claims and memberships.
	Delete(ctx context.Context, id K) error

	FindByID(ctx context.Context, id K) (domain.Role[K], error)
	FindByNormalizedName(ctx context.Context, normalizedName string) (domain.Role[K], error)
	List(ctx context.Context) ([]domain.Role[K], error)
}

type RoleClaims[K comparable] interface {
	List(ctx context.Context, roleID K) ([]domain.Claim, error)
	Add(ctx context.Context, roleID K, claims ...domain.Claim) error
	Remove(ctx context.Context, roleID K, claims ...domain.Claim) error
}
