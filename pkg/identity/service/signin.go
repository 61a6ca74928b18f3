package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/aussiebroadwan/membership/pkg/jwtx"
)

// PendingSessionTTL bounds the gap between the password check and the
// second factor.
const PendingSessionTTL = 5 * time.Minute

type SignInResult int

const (
	SignInFailed SignInResult = iota
	SignInSucceeded
	SignInInvalidCredential
	SignInLockedOut
	// SignInNotAllowed is reserved for confirmation requirements and is not
	// produced by this package.
	SignInNotAllowed
	SignInRequiresTwoFactor
)

func (r SignInResult) String() string {
	switch r {
	case SignInSucceeded:
		return "Succeeded"
	case SignInInvalidCredential:
		return "InvalidCredential"
	case SignInLockedOut:
		return "LockedOut"
	case SignInNotAllowed:
		return "NotAllowed"
	case SignInRequiresTwoFactor:
		return "RequiresTwoFactor"
	default:
		return "Failed"
	}
}

// SignInManager authenticates users and issues signed sessions. Sessions are
// stateless JWTs pinned to the user's security stamp; rotating the stamp
// revokes them.
type SignInManager[K comparable] struct {
	Users      *UserManager[K]
	Principals *PrincipalFactory[K]

	keys *jwtx.KeyRing
}

func NewSignInManager[K comparable](users *UserManager[K], keys *jwtx.KeyRing) *SignInManager[K] {
	return &SignInManager[K]{
		Users:      users,
		Principals: NewPrincipalFactory(users),
		keys:       keys,
	}
}

// PasswordSignIn checks the user name and password and, when two factor is
// off, returns a signed session. With lockoutOnFailure a wrong password
// counts towards lockout.
func (m *SignInManager[K]) PasswordSignIn(ctx context.Context, userName, password string, lockoutOnFailure bool) (SignInResult, *Session, error) {
	l := m.Users.log(ctx).With(slog.String("user_name", userName))

	if lim := m.Users.cfg.Limiter; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return SignInFailed, nil, fmt.Errorf("sign-in pacing: %w", err)
		}
	}

	u, err := m.Users.FindByName(ctx, userName)
	if errors.Is(err, ErrUserNotFound) {
		l.Warn("sign-in for unknown user")
		return SignInInvalidCredential, nil, nil
	}
	if err != nil {
		return SignInFailed, nil, err
	}

	res, err := m.checkPassword(ctx, u, password, lockoutOnFailure)
	if err != nil || res != SignInSucceeded {
		return res, nil, err
	}

	if u.TwoFactorEnabled {
		s, err := m.issue(u, []string{jwtx.AMRPassword}, true, "")
		if err != nil {
			return SignInFailed, nil, err
		}
		l.Info("sign-in requires two factor", slog.String("user_id", keyString(u.ID)))
		return SignInRequiresTwoFactor, s, nil
	}

	return m.complete(ctx, u, []string{jwtx.AMRPassword}, "")
}

// CheckPasswordSignIn runs the password, lockout and two factor checks of
// PasswordSignIn without issuing a session. A full success resets the
// access failure count.
func (m *SignInManager[K]) CheckPasswordSignIn(ctx context.Context, u *domain.User[K], password string, lockoutOnFailure bool) (SignInResult, error) {
	if u == nil {
		return SignInFailed, ErrNilUser
	}
	res, err := m.checkPassword(ctx, u, password, lockoutOnFailure)
	if err != nil || res != SignInSucceeded {
		return res, err
	}
	if u.TwoFactorEnabled {
		return SignInRequiresTwoFactor, nil
	}
	if _, err := m.Users.ResetAccessFailedCount(ctx, u); err != nil {
		return SignInFailed, err
	}
	return SignInSucceeded, nil
}

func (m *SignInManager[K]) checkPassword(ctx context.Context, u *domain.User[K], password string, lockoutOnFailure bool) (SignInResult, error) {
	l := m.Users.log(ctx).With(slog.String("user_id", keyString(u.ID)))

	locked, err := m.Users.IsLockedOut(ctx, u)
	if err != nil {
		return SignInFailed, err
	}

	ok, err := m.Users.CheckPassword(ctx, u, password)
	if err != nil {
		return SignInFailed, err
	}
	if !ok {
		l.Warn("sign-in with wrong password")
		if lockoutOnFailure && !locked {
			return m.recordFailure(ctx, u, SignInInvalidCredential)
		}
		return SignInInvalidCredential, nil
	}

	if locked {
		l.Warn("sign-in for locked out user")
		return SignInLockedOut, nil
	}
	return SignInSucceeded, nil
}

// recordFailure counts a failed attempt and turns it into LockedOut when it
// tripped the lockout.
func (m *SignInManager[K]) recordFailure(ctx context.Context, u *domain.User[K], otherwise SignInResult) (SignInResult, error) {
	res, err := m.Users.AccessFailed(ctx, u)
	if err != nil {
		return SignInFailed, err
	}
	if res.Has(domain.CodeUserLockedOut) {
		return SignInLockedOut, nil
	}
	return otherwise, nil
}

// TwoFactorSignIn completes a sign-in that returned RequiresTwoFactor. A
// wrong code counts towards lockout.
func (m *SignInManager[K]) TwoFactorSignIn(ctx context.Context, pendingToken, code string) (SignInResult, *Session, error) {
	claims, u, err := m.verify(ctx, pendingToken)
	if err != nil {
		return SignInFailed, nil, err
	}
	if !claims.Pending {
		return SignInFailed, nil, ErrInvalidSession
	}
	l := m.Users.log(ctx).With(slog.String("user_id", keyString(u.ID)))

	locked, err := m.Users.IsLockedOut(ctx, u)
	if err != nil {
		return SignInFailed, nil, err
	}
	if locked {
		l.Warn("two factor sign-in for locked out user")
		return SignInLockedOut, nil, nil
	}

	ok, err := m.Users.VerifyTwoFactorCode(ctx, u, code)
	if err != nil {
		return SignInFailed, nil, err
	}
	if !ok {
		l.Warn("two factor sign-in with wrong code")
		res, err := m.recordFailure(ctx, u, SignInFailed)
		return res, nil, err
	}

	amr := append(slices.Clone(claims.AMR), jwtx.AMROTP, jwtx.AMRMFA)
	return m.complete(ctx, u, amr, claims.SID)
}

// ValidateSession verifies token and rebuilds its principal from the store.
// Tokens issued before the user's last security stamp rotation fail with
// ErrInvalidSession, as do pending two factor tokens.
func (m *SignInManager[K]) ValidateSession(ctx context.Context, token string) (*Session, error) {
	claims, u, err := m.verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.Pending {
		return nil, ErrInvalidSession
	}
	p, err := m.Principals.CreatePrincipal(ctx, u)
	if err != nil {
		return nil, err
	}
	s := sessionFromClaims(token, claims)
	s.Principal = p
	return s, nil
}

// RefreshSignIn re-issues a still valid session with a fresh expiry and the
// current principal. The session id and authentication methods carry over.
func (m *SignInManager[K]) RefreshSignIn(ctx context.Context, s *Session) (*Session, error) {
	if s == nil || s.Pending {
		return nil, ErrInvalidSession
	}
	claims, u, err := m.verify(ctx, s.Token)
	if err != nil {
		return nil, err
	}
	if claims.Pending {
		return nil, ErrInvalidSession
	}
	next, err := m.issue(u, claims.AMR, false, claims.SID)
	if err != nil {
		return nil, err
	}
	if next.Principal, err = m.Principals.CreatePrincipal(ctx, u); err != nil {
		return nil, err
	}
	m.Users.log(ctx).Info("session refreshed", slog.String("user_id", keyString(u.ID)), slog.String("sid", next.ID))
	return next, nil
}

// SignOut forgets s. The token itself stays valid until it expires; use
// SignOutEverywhere to revoke.
func (m *SignInManager[K]) SignOut(ctx context.Context, s *Session) {
	if s == nil {
		return
	}
	m.Users.log(ctx).Info("signed out", slog.String("user_id", s.UserID), slog.String("sid", s.ID))
	*s = Session{}
}

// SignOutEverywhere rotates the user's security stamp, which invalidates
// every session and outstanding token.
func (m *SignInManager[K]) SignOutEverywhere(ctx context.Context, u *domain.User[K]) (domain.Result, error) {
	return m.Users.UpdateSecurityStamp(ctx, u)
}

func (m *SignInManager[K]) complete(ctx context.Context, u *domain.User[K], amr []string, sid string) (SignInResult, *Session, error) {
	if _, err := m.Users.ResetAccessFailedCount(ctx, u); err != nil {
		return SignInFailed, nil, err
	}
	s, err := m.issue(u, amr, false, sid)
	if err != nil {
		return SignInFailed, nil, err
	}
	if s.Principal, err = m.Principals.CreatePrincipal(ctx, u); err != nil {
		return SignInFailed, nil, err
	}
	m.Users.log(ctx).Info("signed in",
		slog.String("user_id", keyString(u.ID)),
		slog.String("sid", s.ID),
		slog.Any("amr", s.AMR),
	)
	return SignInSucceeded, s, nil
}

func (m *SignInManager[K]) issue(u *domain.User[K], amr []string, pending bool, sid string) (*Session, error) {
	tok := m.Users.cfg.Options.Tokens
	ttl := tok.SessionTTL
	if pending {
		ttl = PendingSessionTTL
	}
	if sid == "" {
		sid = idx.NewAt(m.Users.now()).String()
	}

	claims := jwtx.NewSessionClaims(keyString(u.ID), sid, u.UserName, u.SecurityStamp, amr, ttl,
		tok.Issuer, []string{tok.Audience}, m.Users.now())
	claims.Pending = pending

	token, err := m.keys.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return sessionFromClaims(token, &claims), nil
}

// verify checks the token signature and registered claims, then reloads the
// user and requires the subject and security stamp to still match.
func (m *SignInManager[K]) verify(ctx context.Context, token string) (*jwtx.Claims, *domain.User[K], error) {
	l := m.Users.log(ctx)

	claims, err := m.keys.Verify(token)
	if err != nil {
		l.Warn("session token rejected", slog.Any("error", err))
		return nil, nil, errors.Join(ErrInvalidSession, err)
	}

	u, err := m.Users.FindByName(ctx, claims.Username)
	if errors.Is(err, ErrUserNotFound) {
		l.Warn("session for missing user", slog.String("sub", claims.Subject))
		return nil, nil, ErrInvalidSession
	}
	if err != nil {
		return nil, nil, err
	}
	if keyString(u.ID) != claims.Subject || u.SecurityStamp != claims.Stamp {
		l.Warn("session revoked", slog.String("user_id", keyString(u.ID)), slog.String("sid", claims.SID))
		return nil, nil, ErrInvalidSession
	}
	return claims, u, nil
}

func sessionFromClaims(token string, c *jwtx.Claims) *Session {
	s := &Session{
		Token:    token,
		ID:       c.SID,
		UserID:   c.Subject,
		UserName: c.Username,
		AMR:      c.AMR,
		Pending:  c.Pending,
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}
