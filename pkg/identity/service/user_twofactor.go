package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/membership/pkg/cryptox"
	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Authenticator apps expect these parameters.
var authenticatorOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// ResetAuthenticatorKey replaces the user's TOTP secret and rotates the
// security stamp. The new key is on u after a successful result.
func (m *UserManager[K]) ResetAuthenticatorKey(ctx context.Context, u *domain.User[K]) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.cfg.Options.Tokens.AuthenticatorIssuer,
		AccountName: u.UserName,
		Period:      authenticatorOpts.Period,
		Digits:      authenticatorOpts.Digits,
		Algorithm:   authenticatorOpts.Algorithm,
	})
	if err != nil {
		return domain.Result{}, fmt.Errorf("generate authenticator key: %w", err)
	}
	u.AuthenticatorKey = key.Secret()
	u.SecurityStamp = cryptox.NewStamp()
	return m.update(ctx, "reset_authenticator_key", u)
}

func (m *UserManager[K]) GetAuthenticatorKey(u *domain.User[K]) string {
	if u == nil {
		return ""
	}
	return u.AuthenticatorKey
}

// AuthenticatorKeyURI renders the otpauth:// URI for enrolling the user's
// current key in an authenticator app.
func (m *UserManager[K]) AuthenticatorKeyURI(u *domain.User[K]) (string, error) {
	if u == nil {
		return "", ErrNilUser
	}
	if u.AuthenticatorKey == "" {
		return "", fmt.Errorf("user %s has no authenticator key", keyString(u.ID))
	}
	secret, err := b32NoPadding.DecodeString(u.AuthenticatorKey)
	if err != nil {
		return "", fmt.Errorf("decode authenticator key: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.cfg.Options.Tokens.AuthenticatorIssuer,
		AccountName: u.UserName,
		Period:      authenticatorOpts.Period,
		Digits:      authenticatorOpts.Digits,
		Algorithm:   authenticatorOpts.Algorithm,
		Secret:      secret,
	})
	if err != nil {
		return "", fmt.Errorf("build authenticator uri: %w", err)
	}
	return key.URL(), nil
}

// VerifyTwoFactorCode checks a 6 digit authenticator code against the
// user's key using the manager's clock.
func (m *UserManager[K]) VerifyTwoFactorCode(ctx context.Context, u *domain.User[K], code string) (bool, error) {
	if u == nil {
		return false, ErrNilUser
	}
	if u.AuthenticatorKey == "" {
		m.log(ctx).Warn("two factor code for user without key", slog.String("user_id", keyString(u.ID)))
		return false, nil
	}
	ok, err := totp.ValidateCustom(code, u.AuthenticatorKey, m.cfg.Clock.Now(), authenticatorOpts)
	if err != nil {
		// Malformed codes are just wrong codes.
		return false, nil
	}
	return ok, nil
}
