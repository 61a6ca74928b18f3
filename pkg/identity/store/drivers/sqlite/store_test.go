package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
	"github.com/aussiebroadwan/membership/pkg/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/membership/pkg/identity/store/storetest"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...sqlite.Option) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store[idx.ID] {
		return newStore(t)
	})
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestForeignKeysMapToNotFound(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.UserClaims().Add(ctx, idx.New(), domain.Claim{Type: "a", Value: "b"})
	require.ErrorIs(t, err, store.ErrNotFound)

	u := storetest.NewUser[idx.ID](s, "alice")
	require.NoError(t, s.Users().Create(ctx, u))
	require.ErrorIs(t, s.UserRoles().Add(ctx, u.ID, idx.New()), store.ErrNotFound)
}

func TestMaxKeyLength(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, sqlite.WithMaxKeyLength(10))

	err := s.Users().Create(ctx, storetest.NewUser[idx.ID](s, "alice"))
	require.ErrorIs(t, err, store.ErrKeyTooLong)
}

func TestPendingChangesSurviveCallerContext(t *testing.T) {
	s := newStore(t, sqlite.WithAutoSave(false))

	ctx, cancel := context.WithCancel(context.Background())
	u := storetest.NewUser[idx.ID](s, "alice")
	require.NoError(t, s.Users().Create(ctx, u))
	cancel()

	require.NoError(t, s.SaveChanges(context.Background()))
	got, err := s.Users().FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.UserName)
}

func TestFileDatabaseReopens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "identity.db")

	s, err := sqlite.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	u := storetest.NewUser[idx.ID](s, "alice")
	require.NoError(t, s.Users().Create(ctx, u))
	require.NoError(t, s.Close())

	s, err = sqlite.NewStore(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.ApplyMigrations())

	got, err := s.Users().FindByNormalizedName(ctx, "ALICE")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, u.ConcurrencyStamp, got.ConcurrencyStamp)
}
