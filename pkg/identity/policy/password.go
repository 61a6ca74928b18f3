package policy

import (
	"unicode"
	"unicode/utf8"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
)

// PasswordValidator checks a candidate password against a policy.
type PasswordValidator interface {
	Validate(password string) domain.Result
}

// DefaultPasswordValidator applies PasswordOptions and reports the first
// rule that fails. Rules run as: digit, length, unique characters,
// lowercase, non-alphanumeric, uppercase.
type DefaultPasswordValidator struct {
	Options   PasswordOptions
	Describer domain.Describer
}

func NewPasswordValidator(opts PasswordOptions, d domain.Describer) *DefaultPasswordValidator {
	if d == nil {
		d = domain.DefaultDescriber{}
	}
	return &DefaultPasswordValidator{Options: opts, Describer: d}
}

func (v *DefaultPasswordValidator) Validate(password string) domain.Result {
	o := v.Options
	fail := func(code domain.ErrorCode, args ...any) domain.Result {
		return domain.Failed(v.Describer.Describe(code, args...))
	}

	if o.RequireDigit && !containsFunc(password, isDigit) {
		return fail(domain.CodePasswordRequiresDigit)
	}
	if utf8.RuneCountInString(password) < o.RequiredLength {
		return fail(domain.CodePasswordTooShort, o.RequiredLength)
	}
	if o.RequiredUniqueChars >= 1 && distinctRunes(password) < o.RequiredUniqueChars {
		return fail(domain.CodePasswordRequiresUniqueChars, o.RequiredUniqueChars)
	}
	if o.RequireLowercase && !containsFunc(password, isLower) {
		return fail(domain.CodePasswordRequiresLower)
	}
	if o.RequireNonAlphanumeric && !containsFunc(password, isNonAlphanumeric) {
		return fail(domain.CodePasswordRequiresNonAlphanumeric)
	}
	if o.RequireUppercase && !containsFunc(password, isUpper) {
		return fail(domain.CodePasswordRequiresUpper)
	}
	return domain.Success()
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func isNonAlphanumeric(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func containsFunc(s string, f func(rune) bool) bool {
	for _, r := range s {
		if f(r) {
			return true
		}
	}
	return false
}

func distinctRunes(s string) int {
	seen := make(map[rune]struct{}, len(s))
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}
