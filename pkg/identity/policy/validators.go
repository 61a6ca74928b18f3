package policy

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
)

// UserValidator checks a user before it is created or updated. Business
// failures come back as a failed Result, storage failures as an error.
type UserValidator[K comparable] interface {
	Validate(ctx context.Context, users store.Users[K], u *domain.User[K]) (domain.Result, error)
}

// RoleValidator is the role counterpart of UserValidator.
type RoleValidator[K comparable] interface {
	Validate(ctx context.Context, roles store.Roles[K], r *domain.Role[K]) (domain.Result, error)
}

// DefaultUserValidator checks the user name characters and uniqueness, then
// the e-mail address when UserOptions.RequireUniqueEmail is set. It expects
// the normalized fields to be filled in.
type DefaultUserValidator[K comparable] struct {
	Options   UserOptions
	Describer domain.Describer
}

func NewUserValidator[K comparable](opts UserOptions, d domain.Describer) *DefaultUserValidator[K] {
	if d == nil {
		d = domain.DefaultDescriber{}
	}
	return &DefaultUserValidator[K]{Options: opts, Describer: d}
}

func (v *DefaultUserValidator[K]) Validate(ctx context.Context, users store.Users[K], u *domain.User[K]) (domain.Result, error) {
	fail := func(code domain.ErrorCode, args ...any) (domain.Result, error) {
		return domain.Failed(v.Describer.Describe(code, args...)), nil
	}

	if !allowedName(u.UserName, v.Options.AllowedUserNameCharacters) {
		return fail(domain.CodeInvalidUserName, u.UserName)
	}
	owner, err := users.FindByNormalizedName(ctx, u.NormalizedUserName)
	switch {
	case err == nil && owner.ID != u.ID:
		return fail(domain.CodeDuplicateUserName, u.UserName)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return domain.Result{}, fmt.Errorf("find user by name: %w", err)
	}

	if !v.Options.RequireUniqueEmail {
		return domain.Success(), nil
	}
	if !IsEmail(u.Email) {
		return fail(domain.CodeInvalidEmail, u.Email)
	}
	owner, err = users.FindByNormalizedEmail(ctx, u.NormalizedEmail)
	switch {
	case err == nil && owner.ID != u.ID:
		return fail(domain.CodeDuplicateEmail, u.Email)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return domain.Result{}, fmt.Errorf("find user by email: %w", err)
	}
	return domain.Success(), nil
}

// DefaultRoleValidator checks the role name characters, its length and its
// uniqueness, in that order.
type DefaultRoleValidator[K comparable] struct {
	Options   RoleOptions
	Describer domain.Describer
}

func NewRoleValidator[K comparable](opts RoleOptions, d domain.Describer) *DefaultRoleValidator[K] {
	if d == nil {
		d = domain.DefaultDescriber{}
	}
	return &DefaultRoleValidator[K]{Options: opts, Describer: d}
}

func (v *DefaultRoleValidator[K]) Validate(ctx context.Context, roles store.Roles[K], r *domain.Role[K]) (domain.Result, error) {
	if res := v.ValidateName(r.Name); !res.Succeeded() {
		return res, nil
	}

	owner, err := roles.FindByNormalizedName(ctx, r.NormalizedName)
	switch {
	case err == nil && owner.ID != r.ID:
		return domain.Failed(v.Describer.Describe(domain.CodeDuplicateRoleName, r.Name)), nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return domain.Result{}, fmt.Errorf("find role by name: %w", err)
	}
	return domain.Success(), nil
}

// ValidateName runs the checks that need no storage.
func (v *DefaultRoleValidator[K]) ValidateName(name string) domain.Result {
	if !allowedName(name, v.Options.AllowedNameCharacters) {
		return domain.Failed(v.Describer.Describe(domain.CodeInvalidRoleName, name))
	}
	minLen := max(v.Options.MinimumNameLength, 1)
	if len([]rune(name)) < minLen {
		return domain.Failed(v.Describer.Describe(domain.CodeRoleNameTooShort, name, minLen))
	}
	return domain.Success()
}

// allowedName reports whether name is non-blank and, when allowed is set,
// made only of runes from allowed.
func allowedName(name, allowed string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	if allowed == "" {
		return true
	}
	for _, r := range name {
		if !strings.ContainsRune(allowed, r) {
			return false
		}
	}
	return true
}

// IsEmail reports whether s is a bare RFC 5322 address.
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
