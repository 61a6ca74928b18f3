package service_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/policy"
	"github.com/aussiebroadwan/membership/pkg/identity/service"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)

	u := createUser(t, m, "Alice", goodPassword)
	require.False(t, u.ID.IsZero())
	require.Equal(t, "ALICE", u.NormalizedUserName)
	require.Equal(t, "ALICE@EXAMPLE.COM", u.NormalizedEmail)
	require.NotEmpty(t, u.SecurityStamp)
	require.NotEmpty(t, u.ConcurrencyStamp)
	require.True(t, u.LockoutEnabled)
	require.Equal(t, epoch, u.CreatedAt)
	require.True(t, m.HasPassword(u))

	byName, err := m.FindByName(ctx, "  alice ")
	require.NoError(t, err)
	require.Equal(t, u.ID, byName.ID)

	byEmail, err := m.FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	_, err = m.FindByName(ctx, "bob")
	require.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestCreateUserRejections(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	createUser(t, m, "alice", goodPassword)

	t.Run("duplicate name", func(t *testing.T) {
		res, err := m.Create(ctx, &domain.User[idx.ID]{UserName: "ALICE"}, goodPassword)
		require.NoError(t, err)
		require.True(t, res.Has(domain.CodeDuplicateUserName))
	})

	t.Run("invalid name", func(t *testing.T) {
		res, err := m.Create(ctx, &domain.User[idx.ID]{UserName: "al ice"}, goodPassword)
		require.NoError(t, err)
		require.True(t, res.Has(domain.CodeInvalidUserName))
	})

	t.Run("weak password", func(t *testing.T) {
		res, err := m.Create(ctx, &domain.User[idx.ID]{UserName: "bob"}, "abc")
		require.NoError(t, err)
		require.False(t, res.Succeeded())
		require.Equal(t, []domain.Error{{
			Code:        domain.CodePasswordRequiresDigit,
			Description: "Passwords must have at least one digit ('0'-'9').",
		}}, res.Errors())

		_, err = m.FindByName(ctx, "bob")
		require.ErrorIs(t, err, service.ErrUserNotFound)
	})

	t.Run("nil user", func(t *testing.T) {
		_, err := m.Create(ctx, nil, goodPassword)
		require.ErrorIs(t, err, service.ErrNilUser)
	})
}

func TestCreateWithoutPassword(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)

	u := &domain.User[idx.ID]{UserName: "nopass"}
	res, err := m.CreateWithoutPassword(ctx, u)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.False(t, m.HasPassword(u))

	ok, err := m.CheckPassword(ctx, u, "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateRejectsEmptyPassword(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)

	u := &domain.User[idx.ID]{UserName: "bob"}
	res, err := m.Create(ctx, u, "")
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodePasswordRequiresDigit), res.String())

	_, err = m.FindByName(ctx, "bob")
	require.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestUniqueEmail(t *testing.T) {
	ctx := context.Background()
	opts := policy.DefaultOptions()
	opts.User.RequireUniqueEmail = true
	m, _ := newUsers(t, service.WithOptions(opts))

	createUser(t, m, "alice", goodPassword)

	res, err := m.Create(ctx, &domain.User[idx.ID]{UserName: "alice2", Email: "Alice@Example.com"}, goodPassword)
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodeDuplicateEmail))

	res, err = m.Create(ctx, &domain.User[idx.ID]{UserName: "carol", Email: "not-an-email"}, goodPassword)
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodeInvalidEmail))
}

func TestKeyTooLong(t *testing.T) {
	opts := policy.DefaultOptions()
	opts.Store.MaxKeyLength = 10
	m, _ := newUsers(t, service.WithOptions(opts))

	res, err := m.Create(context.Background(), &domain.User[idx.ID]{UserName: "alice"}, goodPassword)
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodeKeyTooLong))
}

func TestConcurrencyFailure(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	u := createUser(t, m, "alice", goodPassword)

	first := reload(t, m, u)
	second := reload(t, m, u)

	res, err := m.SetUserName(ctx, first, "alice.one")
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	res, err = m.SetUserName(ctx, second, "alice.two")
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodeConcurrencyFailure))

	require.Equal(t, "alice.one", reload(t, m, u).UserName)
}

func TestSetEmailAndConfirm(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	u := createUser(t, m, "alice", goodPassword)

	token, err := m.GenerateEmailConfirmationToken(ctx, u)
	require.NoError(t, err)

	res, err := m.ConfirmEmail(ctx, u, "00000000")
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodeInvalidToken))

	res, err = m.ConfirmEmail(ctx, u, token)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.True(t, reload(t, m, u).EmailConfirmed)

	res, err = m.SetEmail(ctx, u, "alice@new.example.com")
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	fresh := reload(t, m, u)
	require.False(t, fresh.EmailConfirmed)
	require.Equal(t, "ALICE@NEW.EXAMPLE.COM", fresh.NormalizedEmail)

	// The old token was bound to the old address and stamp.
	res, err = m.ConfirmEmail(ctx, fresh, token)
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodeInvalidToken))
}

func TestSetPhoneNumber(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	u := createUser(t, m, "alice", goodPassword)

	res, err := m.SetPhoneNumber(ctx, u, "0412 345 678")
	require.NoError(t, err)
	require.True(t, res.Succeeded(), res.String())
	require.Equal(t, "+61412345678", reload(t, m, u).PhoneNumber)

	res, err = m.SetPhoneNumber(ctx, u, "12")
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodeInvalidPhoneNumber))

	res, err = m.SetPhoneNumber(ctx, u, "")
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.Empty(t, reload(t, m, u).PhoneNumber)
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	u := createUser(t, m, "alice", goodPassword)
	createUser(t, m, "bob", goodPassword)

	res, err := m.Delete(ctx, u)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	_, err = m.FindByID(ctx, u.ID)
	require.ErrorIs(t, err, service.ErrUserNotFound)

	users, err := m.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "bob", users[0].UserName)

	_, err = m.Delete(ctx, u)
	require.ErrorIs(t, err, service.ErrUserNotFound)
}
