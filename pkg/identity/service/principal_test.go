package service_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/policy"
	"github.com/aussiebroadwan/membership/pkg/identity/service"
	"github.com/stretchr/testify/require"
)

func TestCreatePrincipal(t *testing.T) {
	ctx := context.Background()
	m, _ := newUsers(t)
	u := createUser(t, m, "alice", goodPassword)
	admin := createRole(t, m, "admin")
	perm := domain.Claim{Type: "permission", Value: "users.write"}

	res, err := m.AddClaim(ctx, u, deptClaim)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	res, err = m.Roles().AddClaim(ctx, admin, perm)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	res, err = m.AddToRole(ctx, u, "admin")
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	p, err := service.NewPrincipalFactory(m).CreatePrincipal(ctx, u)
	require.NoError(t, err)

	require.Equal(t, []domain.Claim{
		{Type: policy.ClaimTypeUserID, Value: u.ID.String()},
		{Type: policy.ClaimTypeUserName, Value: "alice"},
		{Type: policy.ClaimTypeEmail, Value: "alice@example.com"},
		{Type: policy.ClaimTypeSecurityStamp, Value: u.SecurityStamp},
		deptClaim,
		{Type: policy.ClaimTypeRole, Value: "admin"},
		perm,
	}, p.Claims)

	require.Equal(t, u.ID.String(), p.UserID())
	require.Equal(t, "alice", p.UserName())
	require.True(t, p.IsInRole("admin"))
	require.False(t, p.IsInRole("editor"))
	require.True(t, p.HasClaim("permission", "users.write"))
	require.Equal(t, []string{"admin"}, p.Roles())

	c, ok := p.FindFirst("department")
	require.True(t, ok)
	require.Equal(t, "ops", c.Value)

	_, ok = p.FindFirst("missing")
	require.False(t, ok)
}

func TestCustomClaimTypes(t *testing.T) {
	opts := policy.DefaultOptions()
	opts.ClaimsIdentity.RoleClaimType = "groups"
	m, _ := newUsers(t, service.WithOptions(opts))
	u := createUser(t, m, "alice", goodPassword)
	createRole(t, m, "admin")

	res, err := m.AddToRole(context.Background(), u, "admin")
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	p, err := service.NewPrincipalFactory(m).CreatePrincipal(context.Background(), u)
	require.NoError(t, err)
	require.True(t, p.HasClaim("groups", "admin"))
	require.True(t, p.IsInRole("admin"))
}
