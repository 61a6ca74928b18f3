package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
)

func (m *UserManager[K]) GetClaims(ctx context.Context, u *domain.User[K]) ([]domain.Claim, error) {
	if u == nil {
		return nil, ErrNilUser
	}
	claims, err := m.Store.UserClaims().List(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list user claims: %w", err)
	}
	return claims, nil
}

func (m *UserManager[K]) AddClaim(ctx context.Context, u *domain.User[K], c domain.Claim) (domain.Result, error) {
	return m.AddClaims(ctx, u, c)
}

// AddClaims appends claims to the user. Identical claims are allowed unless
// UserOptions.RejectDuplicateClaims is set.
func (m *UserManager[K]) AddClaims(ctx context.Context, u *domain.User[K], claims ...domain.Claim) (domain.Result, error) {
	if err := m.exists(ctx, u); err != nil {
		return domain.Result{}, err
	}
	l := m.log(ctx).With(slog.String("user_id", keyString(u.ID)))

	if m.cfg.Options.User.RejectDuplicateClaims {
		held, err := m.GetClaims(ctx, u)
		if err != nil {
			return domain.Result{}, err
		}
		for _, c := range claims {
			if slices.Contains(held, c) {
				l.Warn("claim already associated", slog.String("claim", c.String()))
				return m.fail(domain.CodeClaimAlreadyAssociated, c.String()), nil
			}
			held = append(held, c)
		}
	}

	if err := m.Store.UserClaims().Add(ctx, u.ID, claims...); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Result{}, ErrUserNotFound
		}
		l.Error("failed to add claims", slog.Any("error", err))
		return domain.Result{}, fmt.Errorf("add user claims: %w", err)
	}

	l.Info("claims added", slog.Int("count", len(claims)))
	return domain.Success(), nil
}

func (m *UserManager[K]) ReplaceClaim(ctx context.Context, u *domain.User[K], old, replacement domain.Claim) (domain.Result, error) {
	if err := m.exists(ctx, u); err != nil {
		return domain.Result{}, err
	}
	if err := m.Store.UserClaims().Replace(ctx, u.ID, old, replacement); err != nil {
		m.log(ctx).Error("failed to replace claim", slog.String("user_id", keyString(u.ID)), slog.Any("error", err))
		return domain.Result{}, fmt.Errorf("replace user claim: %w", err)
	}
	m.log(ctx).Info("claim replaced",
		slog.String("user_id", keyString(u.ID)),
		slog.String("old", old.String()),
		slog.String("new", replacement.String()),
	)
	return domain.Success(), nil
}

func (m *UserManager[K]) RemoveClaim(ctx context.Context, u *domain.User[K], c domain.Claim) (domain.Result, error) {
	return m.RemoveClaims(ctx, u, c)
}

// RemoveClaims deletes the given claims. Claims the user does not hold are
// skipped, not reported.
func (m *UserManager[K]) RemoveClaims(ctx context.Context, u *domain.User[K], claims ...domain.Claim) (domain.Result, error) {
	if err := m.exists(ctx, u); err != nil {
		return domain.Result{}, err
	}
	if err := m.Store.UserClaims().Remove(ctx, u.ID, claims...); err != nil {
		m.log(ctx).Error("failed to remove claims", slog.String("user_id", keyString(u.ID)), slog.Any("error", err))
		return domain.Result{}, fmt.Errorf("remove user claims: %w", err)
	}
	m.log(ctx).Info("claims removed", slog.String("user_id", keyString(u.ID)), slog.Int("count", len(claims)))
	return domain.Success(), nil
}

func (m *UserManager[K]) GetUsersForClaim(ctx context.Context, c domain.Claim) ([]domain.User[K], error) {
	users, err := m.Store.UserClaims().UsersForClaim(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("users for claim: %w", err)
	}
	return users, nil
}

// AddToRole makes u a member of the named role. Both must exist.
func (m *UserManager[K]) AddToRole(ctx context.Context, u *domain.User[K], roleName string) (domain.Result, error) {
	if err := m.exists(ctx, u); err != nil {
		return domain.Result{}, err
	}
	role, err := m.roles.FindByName(ctx, roleName)
	if err != nil {
		return domain.Result{}, err
	}
	l := m.log(ctx).With(slog.String("user_id", keyString(u.ID)), slog.String("role_id", keyString(role.ID)))

	member, err := m.Store.UserRoles().Exists(ctx, u.ID, role.ID)
	if err != nil {
		return domain.Result{}, fmt.Errorf("check role membership: %w", err)
	}
	if member {
		l.Warn("user already in role")
		return m.fail(domain.CodeUserAlreadyInRole, role.Name), nil
	}

	err = m.Store.UserRoles().Add(ctx, u.ID, role.ID)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		// Lost a race with a concurrent add.
		l.Warn("user already in role")
		return m.fail(domain.CodeUserAlreadyInRole, role.Name), nil
	case err != nil:
		l.Error("failed to add user to role", slog.Any("error", err))
		return domain.Result{}, fmt.Errorf("add user to role: %w", err)
	}

	l.Info("user added to role", slog.String("role", role.Name))
	return domain.Success(), nil
}

// AddToRoles adds u to each role in turn and stops at the first failure.
func (m *UserManager[K]) AddToRoles(ctx context.Context, u *domain.User[K], roleNames ...string) (domain.Result, error) {
	for _, name := range roleNames {
		if res, err := m.AddToRole(ctx, u, name); err != nil || !res.Succeeded() {
			return res, err
		}
	}
	return domain.Success(), nil
}

func (m *UserManager[K]) RemoveFromRole(ctx context.Context, u *domain.User[K], roleName string) (domain.Result, error) {
	if err := m.exists(ctx, u); err != nil {
		return domain.Result{}, err
	}
	role, err := m.roles.FindByName(ctx, roleName)
	if err != nil {
		return domain.Result{}, err
	}
	l := m.log(ctx).With(slog.String("user_id", keyString(u.ID)), slog.String("role_id", keyString(role.ID)))

	err = m.Store.UserRoles().Remove(ctx, u.ID, role.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l.Warn("user not in role")
		return m.fail(domain.CodeUserNotInRole, role.Name), nil
	case err != nil:
		l.Error("failed to remove user from role", slog.Any("error", err))
		return domain.Result{}, fmt.Errorf("remove user from role: %w", err)
	}

	l.Info("user removed from role", slog.String("role", role.Name))
	return domain.Success(), nil
}

func (m *UserManager[K]) RemoveFromRoles(ctx context.Context, u *domain.User[K], roleNames ...string) (domain.Result, error) {
	for _, name := range roleNames {
		if res, err := m.RemoveFromRole(ctx, u, name); err != nil || !res.Succeeded() {
			return res, err
		}
	}
	return domain.Success(), nil
}

// GetRoles returns the names of the user's roles.
func (m *UserManager[K]) GetRoles(ctx context.Context, u *domain.User[K]) ([]string, error) {
	if u == nil {
		return nil, ErrNilUser
	}
	roles, err := m.Store.UserRoles().RolesForUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("roles for user: %w", err)
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return names, nil
}

// IsInRole is false for roles that do not exist.
func (m *UserManager[K]) IsInRole(ctx context.Context, u *domain.User[K], roleName string) (bool, error) {
	if u == nil {
		return false, ErrNilUser
	}
	role, err := m.roles.FindByName(ctx, roleName)
	if errors.Is(err, ErrRoleNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ok, err := m.Store.UserRoles().Exists(ctx, u.ID, role.ID)
	if err != nil {
		return false, fmt.Errorf("check role membership: %w", err)
	}
	return ok, nil
}

func (m *UserManager[K]) GetUsersInRole(ctx context.Context, roleName string) ([]domain.User[K], error) {
	role, err := m.roles.FindByName(ctx, roleName)
	if err != nil {
		return nil, err
	}
	users, err := m.Store.UserRoles().UsersInRole(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("users in role: %w", err)
	}
	return users, nil
}
