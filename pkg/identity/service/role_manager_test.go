package service_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/policy"
	"github.com/aussiebroadwan/membership/pkg/identity/service"
	"github.com/aussiebroadwan/membership/pkg/identity/store/drivers/memory"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRoleLifecycle(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	roles := m.Roles()
	r := createRole(t, m, "admin")
	require.Equal(t, "ADMIN", r.NormalizedName)

	found, err := roles.FindByName(ctx, "Admin")
	require.NoError(t, err)
	require.Equal(t, r.ID, found.ID)

	ok, err := roles.RoleExists(ctx, r.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = roles.RoleExistsByName(ctx, "nope")
	require.NoError(t, err)
	require.False(t, ok)

	res, err := roles.Create(ctx, &domain.Role[idx.ID]{Name: "ADMIN"})
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodeDuplicateRoleName))

	res, err = roles.SetRoleName(ctx, r, "administrator")
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	all, err := roles.Roles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "administrator", all[0].Name)

	res, err = roles.Delete(ctx, r)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	_, err = roles.FindByID(ctx, r.ID)
	require.ErrorIs(t, err, service.ErrRoleNotFound)
}

func TestRoleDeleteDropsMemberships(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	u := createUser(t, m, "alice", goodPassword)
	r := createRole(t, m, "admin")

	res, err := m.AddToRole(ctx, u, "admin")
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	res, err = m.Roles().Delete(ctx, r)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	roles, err := m.GetRoles(ctx, u)
	require.NoError(t, err)
	require.Empty(t, roles)
}

func TestRoleNamePolicy(t *testing.T) {
	ctx := context.Background()
	opts := policy.DefaultOptions()
	opts.Role = policy.RoleOptions{AllowedNameCharacters: policy.Letters, MinimumNameLength: 6}
	m, _ := newUsers(t, service.WithOptions(opts))

	tests := []struct {
		name string
		code domain.ErrorCode
	}{
		{name: "Administrator"},
		{name: "admin", code: domain.CodeRoleNameTooShort},
		{name: "admin!", code: domain.CodeInvalidRoleName},
		{name: "admin1", code: domain.CodeInvalidRoleName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Roles().Create(ctx, &domain.Role[idx.ID]{Name: tt.name})
			require.NoError(t, err)
			if tt.code == "" {
				require.True(t, res.Succeeded(), res.String())
				return
			}
			require.True(t, res.Has(tt.code), res.String())
		})
	}
}

func TestRoleClaims(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	roles := m.Roles()
	r := createRole(t, m, "admin")
	perm := domain.Claim{Type: "permission", Value: "users.write"}

	res, err := roles.AddClaim(ctx, r, perm)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	claims, err := roles.GetClaims(ctx, r)
	require.NoError(t, err)
	require.Equal(t, []domain.Claim{perm}, claims)

	res, err = roles.RemoveClaim(ctx, r, perm)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	// Removing again is a no-op.
	res, err = roles.RemoveClaim(ctx, r, perm)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	_, err = roles.AddClaim(ctx, &domain.Role[idx.ID]{ID: idx.New()}, perm)
	require.ErrorIs(t, err, service.ErrRoleNotFound)

	_, err = roles.AddClaim(ctx, nil, perm)
	require.ErrorIs(t, err, service.ErrNilRole)
}

func TestStandaloneRoleManagerWithUUIDKeys(t *testing.T) {
	ctx := context.Background()
	roles := service.NewRoleManager[uuid.UUID](memory.New(uuid.New))

	r := &domain.Role[uuid.UUID]{Name: "viewer"}
	res, err := roles.Create(ctx, r)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.NotEqual(t, uuid.Nil, r.ID)

	found, err := roles.FindByID(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, "viewer", found.Name)
}
