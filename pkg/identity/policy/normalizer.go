package policy

import "strings"

// LookupNormalizer folds names and e-mail addresses into the form used for
// lookups and uniqueness checks.
type LookupNormalizer interface {
	NormalizeName(name string) string
	NormalizeEmail(email string) string
}

// UpperNormalizer trims and upper-cases with Unicode case mapping.
type UpperNormalizer struct{}

func (UpperNormalizer) NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func (UpperNormalizer) NormalizeEmail(email string) string {
	return strings.ToUpper(strings.TrimSpace(email))
}
