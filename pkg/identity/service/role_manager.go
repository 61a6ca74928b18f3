package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/policy"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
	"github.com/aussiebroadwan/membership/pkg/slogx"
)

// RoleManager handles role lifecycle and role claims.
type RoleManager[K comparable] struct {
	Store store.Store[K]

	// RoleValidators run on every create and update, in order.
	RoleValidators []policy.RoleValidator[K]

	cfg Config
}

func NewRoleManager[K comparable](s store.Store[K], opts ...Option) *RoleManager[K] {
	return newRoleManager(s, newConfig(opts))
}

func newRoleManager[K comparable](s store.Store[K], cfg Config) *RoleManager[K] {
	return &RoleManager[K]{
		Store:          s,
		RoleValidators: []policy.RoleValidator[K]{policy.NewRoleValidator[K](cfg.Options.Role, cfg.Describer)},
		cfg:            cfg,
	}
}

func (m *RoleManager[K]) log(ctx context.Context) *slog.Logger {
	return slogx.FromContext(ctx, m.cfg.Logger)
}

func (m *RoleManager[K]) fail(code domain.ErrorCode, args ...any) domain.Result {
	return domain.Failed(m.cfg.Describer.Describe(code, args...))
}

func (m *RoleManager[K]) Create(ctx context.Context, r *domain.Role[K]) (domain.Result, error) {
	if r == nil {
		return domain.Result{}, ErrNilRole
	}
	if isZeroKey(r.ID) {
		r.ID = m.Store.NewKey()
	}
	if keyMax := m.cfg.Options.Store.MaxKeyLength; keyMax > 0 && len(keyString(r.ID)) > keyMax {
		return m.fail(domain.CodeKeyTooLong, keyMax), nil
	}

	r.NormalizedName = m.cfg.Normalizer.NormalizeName(r.Name)
	if res, err := m.validate(ctx, "create", r); err != nil || !res.Succeeded() {
		return res, err
	}

	now := m.cfg.Clock.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	if err := m.Store.Roles().Create(ctx, r); err != nil {
		return m.storeFailure(ctx, "create", r, err)
	}

	m.log(ctx).Info("role created", slog.String("role_id", keyString(r.ID)), slog.String("role", r.Name))
	return domain.Success(), nil
}

func (m *RoleManager[K]) Update(ctx context.Context, r *domain.Role[K]) (domain.Result, error) {
	if r == nil {
		return domain.Result{}, ErrNilRole
	}
	return m.update(ctx, "update", r)
}

func (m *RoleManager[K]) update(ctx context.Context, op string, r *domain.Role[K]) (domain.Result, error) {
	r.NormalizedName = m.cfg.Normalizer.NormalizeName(r.Name)
	if res, err := m.validate(ctx, op, r); err != nil || !res.Succeeded() {
		return res, err
	}

	r.UpdatedAt = m.cfg.Clock.Now().UTC()
	if err := m.Store.Roles().Update(ctx, r); err != nil {
		return m.storeFailure(ctx, op, r, err)
	}

	m.log(ctx).Info("role updated", slog.String("op", op), slog.String("role_id", keyString(r.ID)))
	return domain.Success(), nil
}

// Delete removes the role, its claims and every membership in it.
func (m *RoleManager[K]) Delete(ctx context.Context, r *domain.Role[K]) (domain.Result, error) {
	if r == nil {
		return domain.Result{}, ErrNilRole
	}
	if err := m.Store.Roles().Delete(ctx, r.ID); err != nil {
		return m.storeFailure(ctx, "delete", r, err)
	}
	m.log(ctx).Info("role deleted", slog.String("role_id", keyString(r.ID)), slog.String("role", r.Name))
	return domain.Success(), nil
}

func (m *RoleManager[K]) SetRoleName(ctx context.Context, r *domain.Role[K], name string) (domain.Result, error) {
	if r == nil {
		return domain.Result{}, ErrNilRole
	}
	r.Name = name
	return m.update(ctx, "set_role_name", r)
}

func (m *RoleManager[K]) FindByID(ctx context.Context, id K) (*domain.Role[K], error) {
	return found(m.Store.Roles().FindByID(ctx, id))
}

func (m *RoleManager[K]) FindByName(ctx context.Context, name string) (*domain.Role[K], error) {
	return found(m.Store.Roles().FindByNormalizedName(ctx, m.cfg.Normalizer.NormalizeName(name)))
}

func found[K comparable](r domain.Role[K], err error) (*domain.Role[K], error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find role: %w", err)
	}
	return &r, nil
}

// RoleExists looks the role up in the store.
func (m *RoleManager[K]) RoleExists(ctx context.Context, id K) (bool, error) {
	_, err := m.FindByID(ctx, id)
	if errors.Is(err, ErrRoleNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *RoleManager[K]) RoleExistsByName(ctx context.Context, name string) (bool, error) {
	_, err := m.FindByName(ctx, name)
	if errors.Is(err, ErrRoleNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Roles lists every role in creation order.
func (m *RoleManager[K]) Roles(ctx context.Context) ([]domain.Role[K], error) {
	roles, err := m.Store.Roles().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

func (m *RoleManager[K]) GetClaims(ctx context.Context, r *domain.Role[K]) ([]domain.Claim, error) {
	if r == nil {
		return nil, ErrNilRole
	}
	claims, err := m.Store.RoleClaims().List(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("list role claims: %w", err)
	}
	return claims, nil
}

func (m *RoleManager[K]) AddClaim(ctx context.Context, r *domain.Role[K], c domain.Claim) (domain.Result, error) {
	if err := m.exists(ctx, r); err != nil {
		return domain.Result{}, err
	}
	err := m.Store.RoleClaims().Add(ctx, r.ID, c)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Result{}, ErrRoleNotFound
	}
	if err != nil {
		m.log(ctx).Error("failed to add role claim", slog.String("role_id", keyString(r.ID)), slog.Any("error", err))
		return domain.Result{}, fmt.Errorf("add role claim: %w", err)
	}
	m.log(ctx).Info("role claim added", slog.String("role_id", keyString(r.ID)), slog.String("claim", c.String()))
	return domain.Success(), nil
}

// RemoveClaim succeeds when the role does not hold the claim.
func (m *RoleManager[K]) RemoveClaim(ctx context.Context, r *domain.Role[K], c domain.Claim) (domain.Result, error) {
	if err := m.exists(ctx, r); err != nil {
		return domain.Result{}, err
	}
	if err := m.Store.RoleClaims().Remove(ctx, r.ID, c); err != nil {
		m.log(ctx).Error("failed to remove role claim", slog.String("role_id", keyString(r.ID)), slog.Any("error", err))
		return domain.Result{}, fmt.Errorf("remove role claim: %w", err)
	}
	m.log(ctx).Info("role claim removed", slog.String("role_id", keyString(r.ID)), slog.String("claim", c.String()))
	return domain.Success(), nil
}

func (m *RoleManager[K]) exists(ctx context.Context, r *domain.Role[K]) error {
	if r == nil {
		return ErrNilRole
	}
	ok, err := m.RoleExists(ctx, r.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoleNotFound
	}
	return nil
}

func (m *RoleManager[K]) validate(ctx context.Context, op string, r *domain.Role[K]) (domain.Result, error) {
	var errs []domain.Error
	failed := false
	for _, v := range m.RoleValidators {
		res, err := v.Validate(ctx, m.Store.Roles(), r)
		if err != nil {
			return domain.Result{}, err
		}
		if !res.Succeeded() {
			failed = true
			errs = append(errs, res.Errors()...)
		}
	}
	if !failed {
		return domain.Success(), nil
	}
	res := domain.Failed(errs...)
	m.log(ctx).Warn("role change rejected",
		slog.String("op", op),
		slog.String("role_id", keyString(r.ID)),
		slog.String("result", res.String()),
	)
	return res, nil
}

func (m *RoleManager[K]) storeFailure(ctx context.Context, op string, r *domain.Role[K], err error) (domain.Result, error) {
	l := m.log(ctx).With(slog.String("op", op), slog.String("role_id", keyString(r.ID)))

	var res domain.Result
	switch {
	case errors.Is(err, store.ErrConcurrencyFailure):
		res = m.fail(domain.CodeConcurrencyFailure)
	case errors.Is(err, store.ErrAlreadyExists):
		res = m.fail(domain.CodeDuplicateRoleName, r.Name)
	case errors.Is(err, store.ErrKeyTooLong):
		res = m.fail(domain.CodeKeyTooLong, m.cfg.Options.Store.MaxKeyLength)
	case errors.Is(err, store.ErrNotFound):
		l.Warn("role not found")
		return domain.Result{}, ErrRoleNotFound
	default:
		l.Error("role store failure", slog.Any("error", err))
		return domain.Result{}, fmt.Errorf("%s role: %w", op, err)
	}

	l.Warn("role change rejected by store", slog.String("result", res.String()))
	return res, nil
}
