package policy_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/policy"
	"github.com/aussiebroadwan/membership/pkg/identity/store/drivers/memory"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestRoleValidatorName(t *testing.T) {
	v := policy.NewRoleValidator[idx.ID](policy.RoleOptions{
		AllowedNameCharacters: policy.Letters,
		MinimumNameLength:     6,
	}, nil)

	tests := []struct {
		name string
		code domain.ErrorCode
	}{
		{"Administrator", ""},
		{"admin", domain.CodeRoleNameTooShort},
		{"admin!", domain.CodeInvalidRoleName},
		{"admin1", domain.CodeInvalidRoleName},
		{"", domain.CodeInvalidRoleName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateName(tt.name)
			if tt.code == "" {
				require.True(t, res.Succeeded(), res.String())
				return
			}
			require.False(t, res.Succeeded())
			require.Equal(t, tt.code, res.Errors()[0].Code)
		})
	}
}

func TestRoleValidatorDuplicate(t *testing.T) {
	ctx := context.Background()
	s := memory.New(idx.New)
	v := policy.NewRoleValidator[idx.ID](policy.DefaultRoleOptions(), nil)

	admin := &domain.Role[idx.ID]{ID: s.NewKey(), Name: "admin", NormalizedName: "ADMIN"}
	require.NoError(t, s.Roles().Create(ctx, admin))

	res, err := v.Validate(ctx, s.Roles(), admin)
	require.NoError(t, err)
	require.True(t, res.Succeeded(), "a role does not clash with itself")

	other := &domain.Role[idx.ID]{ID: s.NewKey(), Name: "Admin", NormalizedName: "ADMIN"}
	res, err = v.Validate(ctx, s.Roles(), other)
	require.NoError(t, err)
	require.True(t, res.Has(domain.CodeDuplicateRoleName))
}

func TestUserValidator(t *testing.T) {
	ctx := context.Background()
	s := memory.New(idx.New)

	opts := policy.DefaultUserOptions()
	opts.RequireUniqueEmail = true
	v := policy.NewUserValidator[idx.ID](opts, nil)

	alice := &domain.User[idx.ID]{
		ID:                 s.NewKey(),
		UserName:           "alice",
		NormalizedUserName: "ALICE",
		Email:              "alice@example.com",
		NormalizedEmail:    "ALICE@EXAMPLE.COM",
	}
	require.NoError(t, s.Users().Create(ctx, alice))

	tests := []struct {
		name string
		user domain.User[idx.ID]
		code domain.ErrorCode
	}{
		{"self", *alice, ""},
		{"bad characters", domain.User[idx.ID]{UserName: "al ice", Email: "x@example.com"}, domain.CodeInvalidUserName},
		{"empty name", domain.User[idx.ID]{UserName: "", Email: "x@example.com"}, domain.CodeInvalidUserName},
		{"taken name", domain.User[idx.ID]{UserName: "Alice", NormalizedUserName: "ALICE", Email: "x@example.com"}, domain.CodeDuplicateUserName},
		{"bad email", domain.User[idx.ID]{UserName: "bob", NormalizedUserName: "BOB", Email: "not-an-email"}, domain.CodeInvalidEmail},
		{"taken email", domain.User[idx.ID]{UserName: "bob", NormalizedUserName: "BOB", Email: "Alice@example.com", NormalizedEmail: "ALICE@EXAMPLE.COM"}, domain.CodeDuplicateEmail},
		{"fresh", domain.User[idx.ID]{UserName: "bob", NormalizedUserName: "BOB", Email: "bob@example.com", NormalizedEmail: "BOB@EXAMPLE.COM"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.user
			if u.ID.IsZero() {
				u.ID = s.NewKey()
			}
			res, err := v.Validate(ctx, s.Users(), &u)
			require.NoError(t, err)
			if tt.code == "" {
				require.True(t, res.Succeeded(), res.String())
				return
			}
			require.Equal(t, tt.code, res.Errors()[0].Code)
		})
	}
}

func TestIsEmail(t *testing.T) {
	require.True(t, policy.IsEmail("alice@example.com"))
	require.False(t, policy.IsEmail("Alice <alice@example.com>"))
	require.False(t, policy.IsEmail("alice"))
	require.False(t, policy.IsEmail(""))
}

func TestUpperNormalizer(t *testing.T) {
	n := policy.UpperNormalizer{}
	require.Equal(t, "ALICE", n.NormalizeName("  alice "))
	require.Equal(t, "ÉMILE@EXAMPLE.COM", n.NormalizeEmail("émile@example.com"))
}
