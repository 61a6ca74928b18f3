package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/service"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestAccessFailedLocksOnNthAttempt(t *testing.T) {
	ctx := context.Background()
	m, clk := newUsers(t)
	u := createUser(t, m, "alice", goodPassword)
	maxAttempts := m.Options().Lockout.MaxFailedAccessAttempts

	for i := 1; i < maxAttempts; i++ {
		res, err := m.AccessFailed(ctx, u)
		require.NoError(t, err)
		require.True(t, res.Succeeded())
		require.Equal(t, i, m.GetAccessFailedCount(u))
	}

	res, err := m.AccessFailed(ctx, u)
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodeUserLockedOut))
	require.Zero(t, m.GetAccessFailedCount(u))

	end := m.GetLockoutEnd(u)
	require.NotNil(t, end)
	require.True(t, end.Equal(epoch.Add(m.Options().Lockout.DefaultLockoutTimeSpan)))

	locked, err := m.IsLockedOut(ctx, reload(t, m, u))
	require.NoError(t, err)
	require.True(t, locked)

	clk.Advance(m.Options().Lockout.DefaultLockoutTimeSpan + time.Second)
	locked, err = m.IsLockedOut(ctx, reload(t, m, u))
	require.NoError(t, err)
	require.False(t, locked)
}

func TestAccessFailedWithLockoutDisabled(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	u := createUser(t, m, "alice", goodPassword)

	res, err := m.SetLockoutEnabled(ctx, u, false)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	for range m.Options().Lockout.MaxFailedAccessAttempts + 2 {
		res, err := m.AccessFailed(ctx, u)
		require.NoError(t, err)
		require.True(t, res.Succeeded())
	}
	require.Equal(t, m.Options().Lockout.MaxFailedAccessAttempts+2, reload(t, m, u).AccessFailedCount)

	locked, err := m.IsLockedOut(ctx, u)
	require.NoError(t, err)
	require.False(t, locked)

	res, err = m.SetLockoutEnd(ctx, u, &epoch)
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodeUserLockoutNotEnabled))
}

func TestAccessFailedRequiresStoredUser(t *testing.T) {
	m, _ := newUsers(t)

	_, err := m.AccessFailed(context.Background(), &domain.User[idx.ID]{ID: idx.New(), UserName: "ghost"})
	require.ErrorIs(t, err, service.ErrUserNotFound)

	_, err = m.AccessFailed(context.Background(), nil)
	require.ErrorIs(t, err, service.ErrNilUser)
}

func TestSetLockoutEnd(t *testing.T) {
	ctx := context.Background()
	m, clk := newUsers(t)
	u := createUser(t, m, "alice", goodPassword)

	end := clk.Now().Add(time.Hour)
	res, err := m.SetLockoutEnd(ctx, u, &end)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	locked, err := m.IsLockedOut(ctx, reload(t, m, u))
	require.NoError(t, err)
	require.True(t, locked)

	res, err = m.SetLockoutEnd(ctx, u, nil)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	locked, err = m.IsLockedOut(ctx, reload(t, m, u))
	require.NoError(t, err)
	require.False(t, locked)
}

func TestResetAccessFailedCount(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	u := createUser(t, m, "alice", goodPassword)

	_, err := m.AccessFailed(ctx, u)
	require.NoError(t, err)
	_, err = m.AccessFailed(ctx, u)
	require.NoError(t, err)
	require.Equal(t, 2, reload(t, m, u).AccessFailedCount)

	res, err := m.ResetAccessFailedCount(ctx, u)
	require.NoError(t, err)
	require.True(t, res.Succeeded(), res.String())
	require.Zero(t, reload(t, m, u).AccessFailedCount)
}

func TestResetAccessFailedCountWithStaleCopy(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	u := createUser(t, m, "alice", goodPassword)
	stale := *u

	_, err := m.AccessFailed(ctx, u)
	require.NoError(t, err)
	require.Equal(t, 1, reload(t, m, u).AccessFailedCount)
	require.Zero(t, stale.AccessFailedCount)

	res, err := m.ResetAccessFailedCount(ctx, &stale)
	require.NoError(t, err)
	require.True(t, res.Succeeded(), res.String())
	require.Zero(t, reload(t, m, u).AccessFailedCount)
	require.Equal(t, reload(t, m, u).ConcurrencyStamp, stale.ConcurrencyStamp)
}

func TestAccessFailedUsesStoredLockoutFlag(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	maxAttempts := m.Options().Lockout.MaxFailedAccessAttempts

	t.Run("disabled in store", func(t *testing.T) {
		u := createUser(t, m, "alice", goodPassword)
		stale := *u
		res, err := m.SetLockoutEnabled(ctx, u, false)
		require.NoError(t, err)
		require.True(t, res.Succeeded())
		require.True(t, stale.LockoutEnabled)

		for range maxAttempts {
			res, err := m.AccessFailed(ctx, &stale)
			require.NoError(t, err)
			require.True(t, res.Succeeded())
		}
		fresh := reload(t, m, u)
		require.Nil(t, fresh.LockoutEnd)
		require.Equal(t, maxAttempts, fresh.AccessFailedCount)
	})

	t.Run("enabled in store", func(t *testing.T) {
		u := createUser(t, m, "bob", goodPassword)
		stale := *u
		stale.LockoutEnabled = false

		var res domain.Result
		var err error
		for range maxAttempts {
			res, err = m.AccessFailed(ctx, &stale)
			require.NoError(t, err)
		}
		require.True(t, res.Has(domain.CodeUserLockedOut))

		locked, err := m.IsLockedOut(ctx, reload(t, m, u))
		require.NoError(t, err)
		require.True(t, locked)
	})
}
