package domain_test

import (
	"errors"
	"testing"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r := domain.Success()
		require.True(t, r.Succeeded())
		require.Empty(t, r.Errors())
		require.NoError(t, r.Err())
		require.Equal(t, "Succeeded", r.String())
	})

	t.Run("failure carries codes", func(t *testing.T) {
		d := domain.DefaultDescriber{}
		r := domain.Failed(d.Describe(domain.CodePasswordTooShort, 8), d.Describe(domain.CodeUserLockedOut))

		require.False(t, r.Succeeded())
		require.True(t, r.Has(domain.CodeUserLockedOut))
		require.False(t, r.Has(domain.CodeInvalidToken))
		require.Equal(t, "Failed: PasswordTooShort,UserLockedOut", r.String())

		var de domain.Error
		require.True(t, errors.As(r.Err(), &de))
		require.Equal(t, domain.CodePasswordTooShort, de.Code)
		require.Equal(t, "Passwords must be at least 8 characters.", de.Description)
	})

	t.Run("errors are copied", func(t *testing.T) {
		r := domain.Failed(domain.Error{Code: domain.CodeDefaultError})
		errs := r.Errors()
		errs[0].Code = "Tampered"
		require.True(t, r.Has(domain.CodeDefaultError))
	})

	t.Run("zero value is a failure", func(t *testing.T) {
		var r domain.Result
		require.False(t, r.Succeeded())
		require.Error(t, r.Err())
	})
}

func TestDefaultDescriberFallsBack(t *testing.T) {
	e := domain.DefaultDescriber{}.Describe("NoSuchCode")
	require.Equal(t, domain.ErrorCode("NoSuchCode"), e.Code)
	require.Equal(t, "An unknown failure has occurred.", e.Description)
}
