package service

import (
	"crypto/sha256"
	"encoding/base32"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/policy"
	"github.com/jonboulle/clockwork"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Token purposes. A token generated for one purpose never validates for
// another.
const (
	PurposeEmailConfirmation = "email_confirmation"
	PurposePasswordReset     = "password_reset"
)

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TokenProvider issues short numeric tokens for e-mail confirmation and
// password reset. Tokens are TOTP codes over a secret derived from the
// user's security stamp, so rotating the stamp revokes every outstanding
// token. A token stays valid for at least TokenLifespan and at most twice
// that.
type TokenProvider struct {
	clock clockwork.Clock
	opts  totp.ValidateOpts
}

func NewTokenProvider(opts policy.TokenOptions, clock clockwork.Clock) *TokenProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	period := uint(opts.TokenLifespan / time.Second)
	if period == 0 {
		period = 30
	}
	return &TokenProvider{
		clock: clock,
		opts: totp.ValidateOpts{
			Period:    period,
			Skew:      1,
			Digits:    otp.DigitsEight,
			Algorithm: otp.AlgorithmSHA256,
		},
	}
}

// Generate returns a token bound to purpose, stamp and subject.
func (p *TokenProvider) Generate(purpose, stamp, subject string) (string, error) {
	return totp.GenerateCodeCustom(p.secret(purpose, stamp, subject), p.clock.Now(), p.opts)
}

// Validate reports whether token was generated for the same inputs and is
// still inside its lifespan. An empty stamp never validates.
func (p *TokenProvider) Validate(purpose, token, stamp, subject string) bool {
	if stamp == "" || token == "" {
		return false
	}
	ok, err := totp.ValidateCustom(token, p.secret(purpose, stamp, subject), p.clock.Now(), p.opts)
	return err == nil && ok
}

func (p *TokenProvider) secret(purpose, stamp, subject string) string {
	h := sha256.New()
	for _, part := range []string{purpose, stamp, subject} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return b32NoPadding.EncodeToString(h.Sum(nil))
}
