package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/membership/pkg/cryptox"
	"github.com/aussiebroadwan/membership/pkg/identity/domain"
)

func (m *UserManager[K]) HasPassword(u *domain.User[K]) bool {
	return u != nil && u.HasPassword()
}

// CheckPassword reports whether password matches. A match against a legacy
// or outdated hash is rehashed and saved; failing to save it does not fail
// the check.
func (m *UserManager[K]) CheckPassword(ctx context.Context, u *domain.User[K], password string) (bool, error) {
	if u == nil {
		return false, ErrNilUser
	}
	l := m.log(ctx).With(slog.String("user_id", keyString(u.ID)))

	v := m.verify(ctx, u, password)
	switch v {
	case cryptox.VerificationFailed:
		l.Warn("invalid password")
		return false, nil
	case cryptox.VerificationSuccessRehashNeeded:
		stamp := u.SecurityStamp
		if _, err := m.setPasswordHash(u, password, false); err != nil {
			l.Error("failed to rehash password", slog.Any("error", err))
			return true, nil
		}
		// Same password, so sessions stay valid.
		u.SecurityStamp = stamp
		if res, err := m.update(ctx, "rehash_password", u); err != nil || !res.Succeeded() {
			l.Warn("rehashed password not saved", slog.String("result", res.String()), slog.Any("error", err))
		}
	}
	return true, nil
}

func (m *UserManager[K]) verify(ctx context.Context, u *domain.User[K], password string) cryptox.Verification {
	if !u.HasPassword() {
		return cryptox.VerificationFailed
	}
	v, err := m.cfg.Hasher.Verify(keyString(u.ID), password, u.PasswordHash)
	if err != nil {
		m.log(ctx).Error("stored password hash unreadable",
			slog.String("user_id", keyString(u.ID)),
			slog.Any("error", err),
		)
		return cryptox.VerificationFailed
	}
	return v
}

// AddPassword sets a password on a user that has none.
func (m *UserManager[K]) AddPassword(ctx context.Context, u *domain.User[K], password string) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	if u.HasPassword() {
		m.log(ctx).Warn("user already has a password", slog.String("user_id", keyString(u.ID)))
		return m.fail(domain.CodeUserAlreadyHasPassword), nil
	}
	if res, err := m.setPasswordHash(u, password, true); err != nil || !res.Succeeded() {
		return res, err
	}
	return m.update(ctx, "add_password", u)
}

func (m *UserManager[K]) RemovePassword(ctx context.Context, u *domain.User[K]) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	u.PasswordHash = ""
	u.SecurityStamp = cryptox.NewStamp()
	return m.update(ctx, "remove_password", u)
}

// ChangePassword replaces the password after verifying the current one.
func (m *UserManager[K]) ChangePassword(ctx context.Context, u *domain.User[K], current, next string) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	if m.verify(ctx, u, current) == cryptox.VerificationFailed {
		m.log(ctx).Warn("change password failed, current password mismatch", slog.String("user_id", keyString(u.ID)))
		return m.fail(domain.CodePasswordMismatch), nil
	}
	if res, err := m.setPasswordHash(u, next, true); err != nil || !res.Succeeded() {
		return res, err
	}
	return m.update(ctx, "change_password", u)
}

func (m *UserManager[K]) GeneratePasswordResetToken(ctx context.Context, u *domain.User[K]) (string, error) {
	if u == nil {
		return "", ErrNilUser
	}
	return m.tokens.Generate(PurposePasswordReset, u.SecurityStamp, keyString(u.ID))
}

// ResetPassword sets a new password given a token from
// GeneratePasswordResetToken. The token dies with the security stamp it was
// minted under, so it works once.
func (m *UserManager[K]) ResetPassword(ctx context.Context, u *domain.User[K], token, next string) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	if !m.tokens.Validate(PurposePasswordReset, token, u.SecurityStamp, keyString(u.ID)) {
		m.log(ctx).Warn("invalid password reset token", slog.String("user_id", keyString(u.ID)))
		return m.fail(domain.CodeInvalidToken), nil
	}
	if res, err := m.setPasswordHash(u, next, true); err != nil || !res.Succeeded() {
		return res, err
	}
	return m.update(ctx, "reset_password", u)
}

// setPasswordHash validates (when asked) and hashes password into u and
// rotates the security stamp. Nothing is persisted.
func (m *UserManager[K]) setPasswordHash(u *domain.User[K], password string, validate bool) (domain.Result, error) {
	if validate {
		if res := m.ValidatePassword(password); !res.Succeeded() {
			return res, nil
		}
	}
	hash, err := m.cfg.Hasher.Hash(keyString(u.ID), password)
	if err != nil {
		return domain.Result{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	u.SecurityStamp = cryptox.NewStamp()
	return domain.Success(), nil
}

// ValidatePassword runs every password validator and joins their failures.
func (m *UserManager[K]) ValidatePassword(password string) domain.Result {
	var errs []domain.Error
	failed := false
	for _, v := range m.cfg.PasswordValidators {
		if res := v.Validate(password); !res.Succeeded() {
			failed = true
			errs = append(errs, res.Errors()...)
		}
	}
	if failed {
		return domain.Failed(errs...)
	}
	return domain.Success()
}

func (m *UserManager[K]) GetSecurityStamp(u *domain.User[K]) string {
	if u == nil {
		return ""
	}
	return u.SecurityStamp
}

// UpdateSecurityStamp rotates the stamp, which invalidates every session
// and token minted under the old one.
func (m *UserManager[K]) UpdateSecurityStamp(ctx context.Context, u *domain.User[K]) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	u.SecurityStamp = cryptox.NewStamp()
	return m.update(ctx, "update_security_stamp", u)
}
