package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/membership/pkg/cryptox"
	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/policy"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
	"github.com/aussiebroadwan/membership/pkg/slogx"
	"github.com/nyaruka/phonenumbers"
)

// UserManager is the entry point for user lifecycle, credentials, lockout,
// claims and role membership. Business-rule failures come back as a failed
// domain.Result; a non-nil error means a precondition was violated or the
// store failed.
type UserManager[K comparable] struct {
	Store store.Store[K]

	// UserValidators run on every create and update, in order.
	UserValidators []policy.UserValidator[K]

	cfg    Config
	roles  *RoleManager[K]
	tokens *TokenProvider
}

func NewUserManager[K comparable](s store.Store[K], opts ...Option) *UserManager[K] {
	cfg := newConfig(opts)
	return &UserManager[K]{
		Store:          s,
		UserValidators: []policy.UserValidator[K]{policy.NewUserValidator[K](cfg.Options.User, cfg.Describer)},
		cfg:            cfg,
		roles:          newRoleManager(s, cfg),
		tokens:         NewTokenProvider(cfg.Options.Tokens, cfg.Clock),
	}
}

// Roles returns the role manager sharing this manager's store and config.
func (m *UserManager[K]) Roles() *RoleManager[K] { return m.roles }

func (m *UserManager[K]) Options() policy.Options { return m.cfg.Options }

// Close releases the store when the manager was built WithOwnedStore.
func (m *UserManager[K]) Close() error {
	if !m.cfg.OwnsStore {
		return nil
	}
	return m.Store.Close()
}

func (m *UserManager[K]) log(ctx context.Context) *slog.Logger {
	return slogx.FromContext(ctx, m.cfg.Logger)
}

func (m *UserManager[K]) fail(code domain.ErrorCode, args ...any) domain.Result {
	return domain.Failed(m.cfg.Describer.Describe(code, args...))
}

func keyString[K comparable](k K) string { return fmt.Sprint(k) }

func isZeroKey[K comparable](k K) bool {
	var zero K
	return k == zero
}

// Create validates and stores u. The password is checked against the
// password validators and hashed; an empty one fails the policy like any
// other. Use CreateWithoutPassword for accounts without a password.
func (m *UserManager[K]) Create(ctx context.Context, u *domain.User[K], password string) (domain.Result, error) {
	return m.create(ctx, u, &password)
}

// CreateWithoutPassword stores u with no password. Such users can only sign
// in after AddPassword or ResetPassword.
func (m *UserManager[K]) CreateWithoutPassword(ctx context.Context, u *domain.User[K]) (domain.Result, error) {
	return m.create(ctx, u, nil)
}

func (m *UserManager[K]) create(ctx context.Context, u *domain.User[K], password *string) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	l := m.log(ctx)

	if isZeroKey(u.ID) {
		u.ID = m.Store.NewKey()
	}
	if keyMax := m.cfg.Options.Store.MaxKeyLength; keyMax > 0 && len(keyString(u.ID)) > keyMax {
		return m.fail(domain.CodeKeyTooLong, keyMax), nil
	}
	if u.SecurityStamp == "" {
		u.SecurityStamp = cryptox.NewStamp()
	}
	if m.cfg.Options.Lockout.AllowedForNewUsers {
		u.LockoutEnabled = true
	}

	m.normalize(u)
	res, err := m.validateUser(ctx, u)
	if err != nil || !res.Succeeded() {
		m.logRejected(l, "create", u, res, err)
		return res, err
	}

	if password != nil {
		res, err := m.setPasswordHash(u, *password, true)
		if err != nil || !res.Succeeded() {
			m.logRejected(l, "create", u, res, err)
			return res, err
		}
	}

	now := m.now()
	u.CreatedAt, u.UpdatedAt = now, now
	if err := m.Store.Users().Create(ctx, u); err != nil {
		return m.storeFailure(ctx, "create", u, err)
	}

	l.Info("user created", slog.String("user_id", keyString(u.ID)), slog.String("user_name", u.UserName))
	return domain.Success(), nil
}

// Update validates and persists u. The concurrency stamp on u must match
// the stored one.
func (m *UserManager[K]) Update(ctx context.Context, u *domain.User[K]) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	return m.update(ctx, "update", u)
}

func (m *UserManager[K]) update(ctx context.Context, op string, u *domain.User[K]) (domain.Result, error) {
	l := m.log(ctx)

	m.normalize(u)
	res, err := m.validateUser(ctx, u)
	if err != nil || !res.Succeeded() {
		m.logRejected(l, op, u, res, err)
		return res, err
	}

	u.UpdatedAt = m.now()
	if err := m.Store.Users().Update(ctx, u); err != nil {
		return m.storeFailure(ctx, op, u, err)
	}

	l.Info("user updated", slog.String("op", op), slog.String("user_id", keyString(u.ID)))
	return domain.Success(), nil
}

func (m *UserManager[K]) Delete(ctx context.Context, u *domain.User[K]) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	if err := m.Store.Users().Delete(ctx, u.ID); err != nil {
		return m.storeFailure(ctx, "delete", u, err)
	}
	m.log(ctx).Info("user deleted", slog.String("user_id", keyString(u.ID)))
	return domain.Success(), nil
}

func (m *UserManager[K]) FindByID(ctx context.Context, id K) (*domain.User[K], error) {
	return m.found(m.Store.Users().FindByID(ctx, id))
}

func (m *UserManager[K]) FindByName(ctx context.Context, userName string) (*domain.User[K], error) {
	return m.found(m.Store.Users().FindByNormalizedName(ctx, m.cfg.Normalizer.NormalizeName(userName)))
}

func (m *UserManager[K]) FindByEmail(ctx context.Context, email string) (*domain.User[K], error) {
	return m.found(m.Store.Users().FindByNormalizedEmail(ctx, m.cfg.Normalizer.NormalizeEmail(email)))
}

func (m *UserManager[K]) found(u domain.User[K], err error) (*domain.User[K], error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// Users lists every user in creation order.
func (m *UserManager[K]) Users(ctx context.Context) ([]domain.User[K], error) {
	users, err := m.Store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (m *UserManager[K]) SetUserName(ctx context.Context, u *domain.User[K], userName string) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	u.UserName = userName
	u.SecurityStamp = cryptox.NewStamp()
	return m.update(ctx, "set_user_name", u)
}

// SetEmail changes the address and clears its confirmation.
func (m *UserManager[K]) SetEmail(ctx context.Context, u *domain.User[K], email string) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	u.Email = email
	u.EmailConfirmed = false
	u.SecurityStamp = cryptox.NewStamp()
	return m.update(ctx, "set_email", u)
}

func (m *UserManager[K]) GenerateEmailConfirmationToken(ctx context.Context, u *domain.User[K]) (string, error) {
	if u == nil {
		return "", ErrNilUser
	}
	return m.tokens.Generate(PurposeEmailConfirmation, u.SecurityStamp, keyString(u.ID)+":"+u.Email)
}

func (m *UserManager[K]) ConfirmEmail(ctx context.Context, u *domain.User[K], token string) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	if !m.tokens.Validate(PurposeEmailConfirmation, token, u.SecurityStamp, keyString(u.ID)+":"+u.Email) {
		m.log(ctx).Warn("invalid email confirmation token", slog.String("user_id", keyString(u.ID)))
		return m.fail(domain.CodeInvalidToken), nil
	}
	u.EmailConfirmed = true
	return m.update(ctx, "confirm_email", u)
}

// SetPhoneNumber stores phone in E.164 form. Numbers without a country code
// are read in UserOptions.DefaultPhoneRegion. An empty phone clears it.
func (m *UserManager[K]) SetPhoneNumber(ctx context.Context, u *domain.User[K], phone string) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	if phone != "" {
		num, err := phonenumbers.Parse(phone, m.cfg.Options.User.DefaultPhoneRegion)
		if err != nil || !phonenumbers.IsValidNumber(num) {
			m.log(ctx).Warn("invalid phone number", slog.String("user_id", keyString(u.ID)))
			return m.fail(domain.CodeInvalidPhoneNumber, phone), nil
		}
		phone = phonenumbers.Format(num, phonenumbers.E164)
	}
	u.PhoneNumber = phone
	u.PhoneNumberConfirmed = false
	u.SecurityStamp = cryptox.NewStamp()
	return m.update(ctx, "set_phone_number", u)
}

func (m *UserManager[K]) SetTwoFactorEnabled(ctx context.Context, u *domain.User[K], enabled bool) (domain.Result, error) {
	if u == nil {
		return domain.Result{}, ErrNilUser
	}
	u.TwoFactorEnabled = enabled
	u.SecurityStamp = cryptox.NewStamp()
	return m.update(ctx, "set_two_factor", u)
}

func (m *UserManager[K]) normalize(u *domain.User[K]) {
	u.NormalizedUserName = m.cfg.Normalizer.NormalizeName(u.UserName)
	u.NormalizedEmail = m.cfg.Normalizer.NormalizeEmail(u.Email)
}

// validateUser runs every user validator and joins their failures.
func (m *UserManager[K]) validateUser(ctx context.Context, u *domain.User[K]) (domain.Result, error) {
	var errs []domain.Error
	failed := false
	for _, v := range m.UserValidators {
		res, err := v.Validate(ctx, m.Store.Users(), u)
		if err != nil {
			return domain.Result{}, err
		}
		if !res.Succeeded() {
			failed = true
			errs = append(errs, res.Errors()...)
		}
	}
	if failed {
		return domain.Failed(errs...), nil
	}
	return domain.Success(), nil
}

// storeFailure turns a storage error into a failed result where the error
// is a business outcome, and wraps it otherwise.
func (m *UserManager[K]) storeFailure(ctx context.Context, op string, u *domain.User[K], err error) (domain.Result, error) {
	l := m.log(ctx).With(slog.String("op", op), slog.String("user_id", keyString(u.ID)))

	var res domain.Result
	switch {
	case errors.Is(err, store.ErrConcurrencyFailure):
		res = m.fail(domain.CodeConcurrencyFailure)
	case errors.Is(err, store.ErrAlreadyExists):
		res = m.fail(domain.CodeDuplicateUserName, u.UserName)
	case errors.Is(err, store.ErrKeyTooLong):
		res = m.fail(domain.CodeKeyTooLong, m.cfg.Options.Store.MaxKeyLength)
	case errors.Is(err, store.ErrNotFound):
		l.Warn("user not found")
		return domain.Result{}, ErrUserNotFound
	default:
		l.Error("user store failure", slog.Any("error", err))
		return domain.Result{}, fmt.Errorf("%s user: %w", op, err)
	}

	l.Warn("user change rejected by store", slog.String("result", res.String()))
	return res, nil
}

func (m *UserManager[K]) logRejected(l *slog.Logger, op string, u *domain.User[K], res domain.Result, err error) {
	if err != nil {
		l.Error("user change failed", slog.String("op", op), slog.String("user_id", keyString(u.ID)), slog.Any("error", err))
		return
	}
	l.Warn("user change rejected",
		slog.String("op", op),
		slog.String("user_id", keyString(u.ID)),
		slog.String("result", res.String()),
	)
}

// exists confirms the user is stored. Callers may hold a stale copy, so the
// check is a store round trip.
func (m *UserManager[K]) exists(ctx context.Context, u *domain.User[K]) error {
	if u == nil {
		return ErrNilUser
	}
	_, err := m.Store.Users().FindByID(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	return nil
}
