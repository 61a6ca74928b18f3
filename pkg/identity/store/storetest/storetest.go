// Package storetest holds the behaviour every store.Store driver must share.
// Driver packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated store. It is called once per subtest.
type Factory[K comparable] func(t *testing.T) store.Store[K]

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func Run[K comparable](t *testing.T, newStore Factory[K]) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Concurrency", func(t *testing.T) { testConcurrency(t, newStore(t)) })
	t.Run("AccessFailed", func(t *testing.T) { testAccessFailed(t, newStore(t)) })
	t.Run("UserClaims", func(t *testing.T) { testUserClaims(t, newStore(t)) })
	t.Run("Roles", func(t *testing.T) { testRoles(t, newStore(t)) })
	t.Run("UserRoles", func(t *testing.T) { testUserRoles(t, newStore(t)) })
	t.Run("AutoSave", func(t *testing.T) { testAutoSave(t, newStore(t)) })
}

// NewUser builds an unsaved user with a fresh key.
func NewUser[K comparable](s store.Store[K], name string) *domain.User[K] {
	return &domain.User[K]{
		ID:                 s.NewKey(),
		UserName:           name,
		NormalizedUserName: upper(name),
		Email:              name + "@example.com",
		NormalizedEmail:    upper(name + "@example.com"),
		SecurityStamp:      "stamp-" + name,
		LockoutEnabled:     true,
		CreatedAt:          epoch,
		UpdatedAt:          epoch,
	}
}

// NewRole builds an unsaved role with a fresh key.
func NewRole[K comparable](s store.Store[K], name string) *domain.Role[K] {
	return &domain.Role[K]{
		ID:             s.NewKey(),
		Name:           name,
		NormalizedName: upper(name),
		CreatedAt:      epoch,
		UpdatedAt:      epoch,
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func testUsers[K comparable](t *testing.T, s store.Store[K]) {
	ctx := context.Background()
	users := s.Users()

	alice := NewUser(s, "alice")
	require.NoError(t, users.Create(ctx, alice))
	require.NotEmpty(t, alice.ConcurrencyStamp)

	bob := NewUser(s, "bob")
	require.NoError(t, users.Create(ctx, bob))

	t.Run("find", func(t *testing.T) {
		got, err := users.FindByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, "alice", got.UserName)
		require.Equal(t, alice.ConcurrencyStamp, got.ConcurrencyStamp)
		require.True(t, got.LockoutEnabled)

		got, err = users.FindByNormalizedName(ctx, "BOB")
		require.NoError(t, err)
		require.Equal(t, bob.ID, got.ID)

		got, err = users.FindByNormalizedEmail(ctx, "ALICE@EXAMPLE.COM")
		require.NoError(t, err)
		require.Equal(t, alice.ID, got.ID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := users.FindByNormalizedName(ctx, "CAROL")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = users.FindByID(ctx, s.NewKey())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate name", func(t *testing.T) {
		dup := NewUser(s, "alice")
		require.ErrorIs(t, users.Create(ctx, dup), store.ErrAlreadyExists)
	})

	t.Run("list in creation order", func(t *testing.T) {
		all, err := users.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, alice.ID, all[0].ID)
		require.Equal(t, bob.ID, all[1].ID)
	})

	t.Run("update persists fields", func(t *testing.T) {
		end := epoch.Add(time.Hour)
		alice.PhoneNumber = "+61400000000"
		alice.LockoutEnd = &end
		alice.AccessFailedCount = 2
		require.NoError(t, users.Update(ctx, alice))

		got, err := users.FindByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, "+61400000000", got.PhoneNumber)
		require.Equal(t, 2, got.AccessFailedCount)
		require.NotNil(t, got.LockoutEnd)
		require.True(t, end.Equal(*got.LockoutEnd))
	})

	t.Run("rename onto another user", func(t *testing.T) {
		b, err := users.FindByID(ctx, bob.ID)
		require.NoError(t, err)
		b.NormalizedUserName = "ALICE"
		require.ErrorIs(t, users.Update(ctx, &b), store.ErrAlreadyExists)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, users.Delete(ctx, bob.ID))
		_, err := users.FindByID(ctx, bob.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		require.ErrorIs(t, users.Delete(ctx, bob.ID), store.ErrNotFound)
	})
}

func testConcurrency[K comparable](t *testing.T, s store.Store[K]) {
	ctx := context.Background()
	users := s.Users()

	u := NewUser(s, "alice")
	require.NoError(t, users.Create(ctx, u))

	first, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	second, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)

	before := first.ConcurrencyStamp
	first.PhoneNumber = "1"
	require.NoError(t, users.Update(ctx, &first))
	require.NotEqual(t, before, first.ConcurrencyStamp)

	second.PhoneNumber = "2"
	require.ErrorIs(t, users.Update(ctx, &second), store.ErrConcurrencyFailure)

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "1", got.PhoneNumber)

	roles := s.Roles()
	r := NewRole(s, "admin")
	require.NoError(t, roles.Create(ctx, r))
	stale := *r
	r.Name = "Admin"
	require.NoError(t, roles.Update(ctx, r))
	stale.Name = "ADMIN"
	require.ErrorIs(t, roles.Update(ctx, &stale), store.ErrConcurrencyFailure)
}

func testAccessFailed[K comparable](t *testing.T, s store.Store[K]) {
	ctx := context.Background()
	users := s.Users()

	u := NewUser(s, "alice")
	require.NoError(t, users.Create(ctx, u))

	got, err := users.IncrementAccessFailed(ctx, u.ID, 3, 5*time.Minute, epoch)
	require.NoError(t, err)
	require.Equal(t, 1, got.AccessFailedCount)
	require.Nil(t, got.LockoutEnd)

	got, err = users.IncrementAccessFailed(ctx, u.ID, 3, 5*time.Minute, epoch)
	require.NoError(t, err)
	require.Equal(t, 2, got.AccessFailedCount)

	got, err = users.IncrementAccessFailed(ctx, u.ID, 3, 5*time.Minute, epoch)
	require.NoError(t, err)
	require.Equal(t, 0, got.AccessFailedCount)
	require.NotNil(t, got.LockoutEnd)
	require.True(t, epoch.Add(5*time.Minute).Equal(*got.LockoutEnd))
	require.NotEqual(t, u.ConcurrencyStamp, got.ConcurrencyStamp)

	_, err = users.IncrementAccessFailed(ctx, s.NewKey(), 3, time.Minute, epoch)
	require.ErrorIs(t, err, store.ErrNotFound)

	unlocked := NewUser(s, "bob")
	unlocked.LockoutEnabled = false
	require.NoError(t, users.Create(ctx, unlocked))
	for i := 1; i <= 4; i++ {
		got, err = users.IncrementAccessFailed(ctx, unlocked.ID, 3, 5*time.Minute, epoch)
		require.NoError(t, err)
		require.Equal(t, i, got.AccessFailedCount)
		require.Nil(t, got.LockoutEnd)
	}
}

func testUserClaims[K comparable](t *testing.T, s store.Store[K]) {
	ctx := context.Background()
	claims := s.UserClaims()

	alice := NewUser(s, "alice")
	bob := NewUser(s, "bob")
	require.NoError(t, s.Users().Create(ctx, alice))
	require.NoError(t, s.Users().Create(ctx, bob))

	dept := domain.Claim{Type: "department", Value: "ops"}
	level := domain.Claim{Type: "level", Value: "3"}

	require.NoError(t, claims.Add(ctx, alice.ID, dept, level))
	require.NoError(t, claims.Add(ctx, bob.ID, dept))

	got, err := claims.List(ctx, alice.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []domain.Claim{dept, level}, got)

	holders, err := claims.UsersForClaim(ctx, dept)
	require.NoError(t, err)
	require.Len(t, holders, 2)

	promoted := domain.Claim{Type: "level", Value: "4"}
	require.NoError(t, claims.Replace(ctx, alice.ID, level, promoted))
	got, err = claims.List(ctx, alice.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []domain.Claim{dept, promoted}, got)

	require.NoError(t, claims.Remove(ctx, alice.ID, dept, domain.Claim{Type: "missing", Value: "x"}))
	got, err = claims.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, []domain.Claim{promoted}, got)

	require.NoError(t, s.Users().Delete(ctx, bob.ID))
	holders, err = claims.UsersForClaim(ctx, dept)
	require.NoError(t, err)
	require.Empty(t, holders)
}

func testRoles[K comparable](t *testing.T, s store.Store[K]) {
	ctx := context.Background()
	roles := s.Roles()

	admin := NewRole(s, "admin")
	require.NoError(t, roles.Create(ctx, admin))
	require.NotEmpty(t, admin.ConcurrencyStamp)
	require.ErrorIs(t, roles.Create(ctx, NewRole(s, "admin")), store.ErrAlreadyExists)

	got, err := roles.FindByNormalizedName(ctx, "ADMIN")
	require.NoError(t, err)
	require.Equal(t, admin.ID, got.ID)

	editor := NewRole(s, "editor")
	require.NoError(t, roles.Create(ctx, editor))

	all, err := roles.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, admin.ID, all[0].ID)

	perm := domain.Claim{Type: "permission", Value: "users.write"}
	require.NoError(t, s.RoleClaims().Add(ctx, admin.ID, perm))
	rc, err := s.RoleClaims().List(ctx, admin.ID)
	require.NoError(t, err)
	require.Equal(t, []domain.Claim{perm}, rc)

	require.NoError(t, s.RoleClaims().Remove(ctx, admin.ID, perm))
	rc, err = s.RoleClaims().List(ctx, admin.ID)
	require.NoError(t, err)
	require.Empty(t, rc)

	require.NoError(t, roles.Delete(ctx, editor.ID))
	_, err = roles.FindByID(ctx, editor.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testUserRoles[K comparable](t *testing.T, s store.Store[K]) {
	ctx := context.Background()
	links := s.UserRoles()

	alice := NewUser(s, "alice")
	require.NoError(t, s.Users().Create(ctx, alice))
	admin := NewRole(s, "admin")
	editor := NewRole(s, "editor")
	require.NoError(t, s.Roles().Create(ctx, admin))
	require.NoError(t, s.Roles().Create(ctx, editor))

	require.NoError(t, links.Add(ctx, alice.ID, admin.ID))
	require.ErrorIs(t, links.Add(ctx, alice.ID, admin.ID), store.ErrAlreadyExists)
	require.NoError(t, links.Add(ctx, alice.ID, editor.ID))

	ok, err := links.Exists(ctx, alice.ID, admin.ID)
	require.NoError(t, err)
	require.True(t, ok)

	roles, err := links.RolesForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, roles, 2)

	members, err := links.UsersInRole(ctx, editor.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, alice.ID, members[0].ID)

	require.NoError(t, links.Remove(ctx, alice.ID, editor.ID))
	require.ErrorIs(t, links.Remove(ctx, alice.ID, editor.ID), store.ErrNotFound)

	// Deleting the role drops the membership.
	require.NoError(t, s.Roles().Delete(ctx, admin.ID))
	ok, err = links.Exists(ctx, alice.ID, admin.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func testAutoSave[K comparable](t *testing.T, s store.Store[K]) {
	ctx := context.Background()
	require.True(t, s.AutoSaveChanges())

	s.SetAutoSaveChanges(false)
	require.False(t, s.AutoSaveChanges())

	dropped := NewUser(s, "dropped")
	require.NoError(t, s.Users().Create(ctx, dropped))
	_, err := s.Users().FindByID(ctx, dropped.ID)
	require.NoError(t, err, "pending changes are visible to the same store")

	require.NoError(t, s.DiscardChanges())
	_, err = s.Users().FindByID(ctx, dropped.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	kept := NewUser(s, "kept")
	require.NoError(t, s.Users().Create(ctx, kept))
	require.NoError(t, s.UserClaims().Add(ctx, kept.ID, domain.Claim{Type: "a", Value: "b"}))
	require.NoError(t, s.SaveChanges(ctx))
	require.NoError(t, s.DiscardChanges())

	_, err = s.Users().FindByID(ctx, kept.ID)
	require.NoError(t, err)
	claims, err := s.UserClaims().List(ctx, kept.ID)
	require.NoError(t, err)
	require.Len(t, claims, 1)

	s.SetAutoSaveChanges(true)
	require.NoError(t, s.SaveChanges(ctx), "nothing pending")
}
