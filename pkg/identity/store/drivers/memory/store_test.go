package memory_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
	"github.com/aussiebroadwan/membership/pkg/identity/store/drivers/memory"
	"github.com/aussiebroadwan/membership/pkg/identity/store/storetest"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestContractULID(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store[idx.ID] {
		return memory.New(idx.New)
	})
}

func TestContractUUID(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store[uuid.UUID] {
		return memory.New(uuid.New)
	})
}

func TestReturnedUsersAreCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New(idx.New)

	u := storetest.NewUser[idx.ID](s, "alice")
	require.NoError(t, s.Users().Create(ctx, u))

	got, err := s.Users().FindByID(ctx, u.ID)
	require.NoError(t, err)
	got.UserName = "mallory"

	again, err := s.Users().FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", again.UserName)
}

func TestMaxKeyLength(t *testing.T) {
	ctx := context.Background()
	s := memory.New(func() string { return "a-rather-long-key" }, memory.WithMaxKeyLength(8))

	err := s.Users().Create(ctx, &domain.User[string]{ID: s.NewKey(), NormalizedUserName: "X"})
	require.ErrorIs(t, err, store.ErrKeyTooLong)

	err = s.Roles().Create(ctx, &domain.Role[string]{ID: "short", NormalizedName: "R"})
	require.NoError(t, err)
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	s := memory.New(uuid.New)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Ping(ctx), memory.ErrClosed)
	require.ErrorIs(t, s.Users().Create(ctx, &domain.User[uuid.UUID]{ID: uuid.New()}), memory.ErrClosed)
}
