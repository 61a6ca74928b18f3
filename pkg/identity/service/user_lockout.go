package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
)

func (m *UserManager[K]) now() time.Time { return m.cfg.Clock.Now().UTC() }

func (m *UserManager[K]) SetLockoutEnabled(ctx context.Context, u *domain.User[K], enabled bool) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	u.LockoutEnabled = enabled
	return m.update(ctx, "set_lockout_enabled", u)
}

// SetLockoutEnd locks the user out until end. A nil or past end unlocks.
func (m *UserManager[K]) SetLockoutEnd(ctx context.Context, u *domain.User[K], end *time.Time) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	if !u.LockoutEnabled {
		m.log(ctx).Warn("lockout not enabled for user", slog.String("user_id", keyString(u.ID)))
		return m.fail(domain.CodeUserLockoutNotEnabled), nil
	}
	if end != nil {
		utc := end.UTC()
		end = &utc
	}
	u.LockoutEnd = end
	return m.update(ctx, "set_lockout_end", u)
}

func (m *UserManager[K]) GetLockoutEnd(u *domain.User[K]) *time.Time {
	if u == nil || u.LockoutEnd == nil {
		return nil
	}
	end := *u.LockoutEnd
	return &end
}

// IsLockedOut reports whether lockout is enabled for u and its lockout end
// is still ahead of the manager's clock.
func (m *UserManager[K]) IsLockedOut(ctx context.Context, u *domain.User[K]) (bool, error) {
	if u == nil {
		return false, ErrNilUser
	}
	if !u.LockoutEnabled || u.LockoutEnd == nil {
		return false, nil
	}
	return u.LockoutEnd.After(m.now()), nil
}

// AccessFailed records a failed attempt. The count and, once it reaches
// LockoutOptions.MaxFailedAccessAttempts, the lockout end are written in one
// atomic store operation; the call that locks the user returns a
// UserLockedOut failure. Whether lockout is enabled is read from the stored
// user, not u. Users with lockout disabled are counted but never locked.
func (m *UserManager[K]) AccessFailed(ctx context.Context, u *domain.User[K]) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	l := m.log(ctx).With(slog.String("user_id", keyString(u.ID)))
	lo := m.cfg.Options.Lockout

	maxAttempts := lo.MaxFailedAccessAttempts
	fresh, err := m.Store.Users().IncrementAccessFailed(ctx, u.ID, maxAttempts, lo.DefaultLockoutTimeSpan, m.now())
	if errors.Is(err, store.ErrNotFound) {
		return domain.Result{}, ErrUserNotFound
	}
	if err != nil {
		l.Error("failed to record access failure", slog.Any("error", err))
		return domain.Result{}, fmt.Errorf("record access failure: %w", err)
	}

	u.AccessFailedCount = fresh.AccessFailedCount
	u.LockoutEnabled = fresh.LockoutEnabled
	u.LockoutEnd = fresh.LockoutEnd
	u.ConcurrencyStamp = fresh.ConcurrencyStamp
	u.UpdatedAt = fresh.UpdatedAt

	// The increment only lands on zero when it tripped the lockout.
	if fresh.LockoutEnabled && maxAttempts > 0 && fresh.AccessFailedCount == 0 {
		l.Warn("user locked out", slog.Time("lockout_end", *fresh.LockoutEnd))
		return m.fail(domain.CodeUserLockedOut), nil
	}

	l.Info("access failure recorded", slog.Int("access_failed_count", fresh.AccessFailedCount))
	return domain.Success(), nil
}

// ResetAccessFailedCount clears the stored failure count. The decision is
// made on the stored user, so a stale u with a zero count still resets it.
func (m *UserManager[K]) ResetAccessFailedCount(ctx context.Context, u *domain.User[K]) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	fresh, err := m.Store.Users().FindByID(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Result{}, ErrUserNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("find user: %w", err)
	}
	if fresh.AccessFailedCount == 0 {
		u.AccessFailedCount = 0
		return domain.Success(), nil
	}

	fresh.AccessFailedCount = 0
	res, err := m.update(ctx, "reset_access_failed", &fresh)
	if err != nil || !res.Succeeded() {
		return res, err
	}
	u.AccessFailedCount = 0
	u.ConcurrencyStamp = fresh.ConcurrencyStamp
	u.UpdatedAt = fresh.UpdatedAt
	return res, nil
}

func (m *UserManager[K]) GetAccessFailedCount(u *domain.User[K]) int {
	if u == nil {
		return 0
	}
	return u.AccessFailedCount
}
