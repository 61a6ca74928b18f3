package domain

import "time"

// User is a stored account. K is the key type chosen by the backing store.
type User[K comparable] struct {
	ID                 K
	UserName           string
	NormalizedUserName string
	Email              string
	NormalizedEmail    string
	EmailConfirmed     bool

	PasswordHash string

	// SecurityStamp changes whenever credentials change. Sessions minted
	// under an older stamp are rejected.
	SecurityStamp string

	// ConcurrencyStamp is rotated by the store on every update and used to
	// detect lost updates.
	ConcurrencyStamp string

	PhoneNumber          string
	PhoneNumberConfirmed bool

	TwoFactorEnabled bool
	AuthenticatorKey string // base32 TOTP secret, empty until enrolled

	LockoutEnabled    bool
	LockoutEnd        *time.Time // UTC
	AccessFailedCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether a password hash is set.
func (u *User[K]) HasPassword() bool { return u.PasswordHash != "" }
