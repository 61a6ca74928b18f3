package service_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/policy"
	"github.com/aussiebroadwan/membership/pkg/identity/service"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestTokenProvider(t *testing.T) {
	clk := clockwork.NewFakeClockAt(epoch)
	opts := policy.DefaultTokenOptions()
	p := service.NewTokenProvider(opts, clk)

	tok, err := p.Generate(service.PurposePasswordReset, "stamp", "user-1")
	require.NoError(t, err)

	require.True(t, p.Validate(service.PurposePasswordReset, tok, "stamp", "user-1"))
	require.False(t, p.Validate(service.PurposeEmailConfirmation, tok, "stamp", "user-1"))
	require.False(t, p.Validate(service.PurposePasswordReset, tok, "rotated", "user-1"))
	require.False(t, p.Validate(service.PurposePasswordReset, tok, "stamp", "user-2"))
	require.False(t, p.Validate(service.PurposePasswordReset, tok, "", "user-1"))
	require.False(t, p.Validate(service.PurposePasswordReset, "", "stamp", "user-1"))

	clk.Advance(opts.TokenLifespan)
	require.True(t, p.Validate(service.PurposePasswordReset, tok, "stamp", "user-1"))

	clk.Advance(opts.TokenLifespan + time.Second)
	require.False(t, p.Validate(service.PurposePasswordReset, tok, "stamp", "user-1"))
}
