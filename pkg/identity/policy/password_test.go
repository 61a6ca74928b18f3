package policy_test

import (
	"testing"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/policy"
	"github.com/stretchr/testify/require"
)

func strictPasswords() policy.PasswordOptions {
	return policy.PasswordOptions{
		RequiredLength:         8,
		RequiredUniqueChars:    1,
		RequireNonAlphanumeric: true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireDigit:           true,
	}
}

func TestPasswordValidator(t *testing.T) {
	v := policy.NewPasswordValidator(strictPasswords(), nil)

	tests := []struct {
		name     string
		password string
		code     domain.ErrorCode
	}{
		{"all rules met", "D0nt4get!", ""},
		{"no non-alphanumeric", "Alexander32", domain.CodePasswordRequiresNonAlphanumeric},
		{"too short", "Alex2!", domain.CodePasswordTooShort},
		{"no digit", "Password!", domain.CodePasswordRequiresDigit},
		{"no lowercase", "PASSWORD1!", domain.CodePasswordRequiresLower},
		{"no uppercase", "password1!", domain.CodePasswordRequiresUpper},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.password)
			if tt.code == "" {
				require.True(t, res.Succeeded(), res.String())
				return
			}
			require.False(t, res.Succeeded())
			require.Len(t, res.Errors(), 1, "first failure only")
			require.Equal(t, tt.code, res.Errors()[0].Code)
		})
	}
}

func TestPasswordValidatorRuleOrder(t *testing.T) {
	v := policy.NewPasswordValidator(strictPasswords(), nil)

	// Breaks every rule; digit is checked first.
	res := v.Validate("")
	require.Equal(t, domain.CodePasswordRequiresDigit, res.Errors()[0].Code)

	// Has a digit, so length is next.
	res = v.Validate("1")
	require.Equal(t, domain.CodePasswordTooShort, res.Errors()[0].Code)
}

func TestPasswordValidatorUniqueChars(t *testing.T) {
	opts := policy.PasswordOptions{RequiredLength: 4, RequiredUniqueChars: 3}
	v := policy.NewPasswordValidator(opts, nil)

	require.False(t, v.Validate("aaaa").Succeeded())
	require.False(t, v.Validate("abab").Succeeded())
	require.True(t, v.Validate("abca").Succeeded())
}

func TestPasswordValidatorDisabledRules(t *testing.T) {
	v := policy.NewPasswordValidator(policy.PasswordOptions{}, nil)
	require.True(t, v.Validate("").Succeeded())
}
