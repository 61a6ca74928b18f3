package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/membership/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "membership-test"

func newRing(t *testing.T, now func() time.Time) (*jwtx.KeyRing, *jwtx.EdDSASigner) {
	t.Helper()
	signer, err := jwtx.NewEphemeralSigner()
	require.NoError(t, err)
	return jwtx.NewKeyRing(signer, jwtx.VerifyOptions{Issuer: exampleIssuer, Audience: []string{"api"}, Now: now}), signer
}

func TestSignAndVerify(t *testing.T) {
	ring, _ := newRing(t, nil)

	claims := jwtx.NewSessionClaims("user-1", "sid-1", "alice", "STAMP", []string{jwtx.AMRPassword},
		5*time.Minute, exampleIssuer, []string{"api"}, time.Now())

	token, err := ring.Sign(claims)
	require.NoError(t, err)

	parsed, err := ring.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", parsed.Subject)
	require.Equal(t, "sid-1", parsed.SID)
	require.Equal(t, "alice", parsed.Username)
	require.Equal(t, "STAMP", parsed.Stamp)
	require.Equal(t, []string{jwtx.AMRPassword}, parsed.AMR)
	require.NotEmpty(t, parsed.ID)
}

func TestVerifyRejectsWrongIssuerAndAudience(t *testing.T) {
	ring, _ := newRing(t, nil)
	now := time.Now()

	token, err := ring.Sign(jwtx.NewSessionClaims("u", "s", "n", "st", nil, time.Minute, "someone-else", []string{"api"}, now))
	require.NoError(t, err)
	_, err = ring.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)

	token, err = ring.Sign(jwtx.NewSessionClaims("u", "s", "n", "st", nil, time.Minute, exampleIssuer, []string{"web"}, now))
	require.NoError(t, err)
	_, err = ring.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrAudience)
}

func TestVerifyRejectsExpired(t *testing.T) {
	current := time.Now()
	ring, _ := newRing(t, func() time.Time { return current })

	token, err := ring.Sign(jwtx.NewSessionClaims("u", "s", "n", "st", nil, time.Minute, exampleIssuer, []string{"api"}, current))
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = ring.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestRotationKeepsOldTokensValid(t *testing.T) {
	ring, first := newRing(t, nil)
	now := time.Now()

	old, err := ring.Sign(jwtx.NewSessionClaims("u", "s", "n", "st", nil, time.Minute, exampleIssuer, []string{"api"}, now))
	require.NoError(t, err)

	next, err := jwtx.NewEphemeralSigner()
	require.NoError(t, err)
	require.NotEqual(t, first.KID(), next.KID())
	ring.Rotate(next)

	_, err = ring.Verify(old)
	require.NoError(t, err)

	// A foreign ring never saw our keys.
	foreign, _ := newRing(t, nil)
	_, err = foreign.Verify(old)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
}

func TestSignWithoutActiveKey(t *testing.T) {
	ring := jwtx.NewKeyRing(nil, jwtx.VerifyOptions{})
	_, err := ring.Sign(jwtx.Claims{})
	require.ErrorIs(t, err, jwtx.ErrNoSigner)

	_, err = ring.Verify("not.a.token")
	require.Error(t, err)
}
