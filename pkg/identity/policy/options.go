package policy

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"golang.org/x/time/rate"
)

// Claim types written into principals and session tokens by default.
const (
	ClaimTypeUserID        = "sub"
	ClaimTypeUserName      = "name"
	ClaimTypeEmail         = "email"
	ClaimTypeRole          = "role"
	ClaimTypeSecurityStamp = "security_stamp"
)

const (
	// Letters is the ASCII alphabet.
	Letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// DefaultUserNameCharacters is the default for UserOptions.AllowedUserNameCharacters.
	DefaultUserNameCharacters = Letters + "0123456789-._@+"
)

// Options groups every policy knob the managers read.
type Options struct {
	Password       PasswordOptions
	Lockout        LockoutOptions
	User           UserOptions
	Role           RoleOptions
	ClaimsIdentity ClaimsIdentityOptions
	Store          StoreOptions
	Tokens         TokenOptions
	SignIn         SignInOptions
}

func DefaultOptions() Options {
	return Options{
		Password:       DefaultPasswordOptions(),
		Lockout:        DefaultLockoutOptions(),
		User:           DefaultUserOptions(),
		Role:           DefaultRoleOptions(),
		ClaimsIdentity: DefaultClaimsIdentityOptions(),
		Store:          DefaultStoreOptions(),
		Tokens:         DefaultTokenOptions(),
		SignIn:         DefaultSignInOptions(),
	}
}

func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Password),
		validation.Field(&o.Lockout),
		validation.Field(&o.User),
		validation.Field(&o.Role),
		validation.Field(&o.ClaimsIdentity),
		validation.Field(&o.Store),
		validation.Field(&o.Tokens),
		validation.Field(&o.SignIn),
	)
}

type PasswordOptions struct {
	RequiredLength         int
	RequiredUniqueChars    int
	RequireNonAlphanumeric bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireDigit           bool
}

func DefaultPasswordOptions() PasswordOptions {
	return PasswordOptions{
		RequiredLength:         6,
		RequiredUniqueChars:    1,
		RequireNonAlphanumeric: true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireDigit:           true,
	}
}

func (o PasswordOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.RequiredLength, validation.Min(0), validation.Max(1024)),
		validation.Field(&o.RequiredUniqueChars, validation.Min(0), validation.Max(1024)),
	)
}

type LockoutOptions struct {
	// AllowedForNewUsers seeds User.LockoutEnabled on create.
	AllowedForNewUsers      bool
	MaxFailedAccessAttempts int
	DefaultLockoutTimeSpan  time.Duration
}

func DefaultLockoutOptions() LockoutOptions {
	return LockoutOptions{
		AllowedForNewUsers:      true,
		MaxFailedAccessAttempts: 5,
		DefaultLockoutTimeSpan:  5 * time.Minute,
	}
}

func (o LockoutOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.MaxFailedAccessAttempts, validation.Required, validation.Min(1)),
		validation.Field(&o.DefaultLockoutTimeSpan, validation.Required, validation.Min(time.Second)),
	)
}

type UserOptions struct {
	// AllowedUserNameCharacters limits user names. Empty allows anything.
	AllowedUserNameCharacters string
	RequireUniqueEmail        bool

	// RejectDuplicateClaims makes AddClaim fail with ClaimAlreadyAssociated
	// when the user already holds an identical claim.
	RejectDuplicateClaims bool

	// DefaultPhoneRegion is the CLDR region used to parse phone numbers
	// written without a country code.
	DefaultPhoneRegion string
}

func DefaultUserOptions() UserOptions {
	return UserOptions{
		AllowedUserNameCharacters: DefaultUserNameCharacters,
		DefaultPhoneRegion:        "AU",
	}
}

func (o UserOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.DefaultPhoneRegion, validation.Required, validation.Length(2, 2)),
	)
}

type RoleOptions struct {
	// AllowedNameCharacters limits role names. Empty allows anything.
	AllowedNameCharacters string
	MinimumNameLength     int
}

func DefaultRoleOptions() RoleOptions {
	return RoleOptions{MinimumNameLength: 1}
}

func (o RoleOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.MinimumNameLength, validation.Min(1)),
	)
}

// ClaimsIdentityOptions names the claim types a principal carries.
type ClaimsIdentityOptions struct {
	UserIDClaimType        string
	UserNameClaimType      string
	EmailClaimType         string
	RoleClaimType          string
	SecurityStampClaimType string
}

func DefaultClaimsIdentityOptions() ClaimsIdentityOptions {
	return ClaimsIdentityOptions{
		UserIDClaimType:        ClaimTypeUserID,
		UserNameClaimType:      ClaimTypeUserName,
		EmailClaimType:         ClaimTypeEmail,
		RoleClaimType:          ClaimTypeRole,
		SecurityStampClaimType: ClaimTypeSecurityStamp,
	}
}

func (o ClaimsIdentityOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.UserIDClaimType, validation.Required),
		validation.Field(&o.UserNameClaimType, validation.Required),
		validation.Field(&o.EmailClaimType, validation.Required),
		validation.Field(&o.RoleClaimType, validation.Required),
		validation.Field(&o.SecurityStampClaimType, validation.Required),
	)
}

type StoreOptions struct {
	// MaxKeyLength caps the printed length of entity keys. Zero disables it.
	MaxKeyLength int
}

func DefaultStoreOptions() StoreOptions {
	return StoreOptions{MaxKeyLength: 128}
}

func (o StoreOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.MaxKeyLength, validation.Min(0), validation.Max(450)),
	)
}

type TokenOptions struct {
	Issuer     string
	Audience   string
	SessionTTL time.Duration
	Leeway     time.Duration

	// TokenLifespan bounds password reset and e-mail confirmation tokens.
	TokenLifespan time.Duration

	// AuthenticatorIssuer labels the otpauth:// key URI shown to users.
	AuthenticatorIssuer string
}

func DefaultTokenOptions() TokenOptions {
	return TokenOptions{
		Issuer:              "membership",
		Audience:            "membership",
		SessionTTL:          12 * time.Hour,
		Leeway:              30 * time.Second,
		TokenLifespan:       15 * time.Minute,
		AuthenticatorIssuer: "membership",
	}
}

func (o TokenOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Issuer, validation.Required),
		validation.Field(&o.Audience, validation.Required),
		validation.Field(&o.SessionTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&o.Leeway, validation.Min(time.Duration(0)), validation.Max(5*time.Minute)),
		validation.Field(&o.TokenLifespan, validation.Required, validation.Min(30*time.Second)),
		validation.Field(&o.AuthenticatorIssuer, validation.Required),
	)
}

type SignInOptions struct {
	// AttemptsPerSecond paces password sign-ins process wide. Zero disables
	// pacing.
	AttemptsPerSecond float64
	Burst             int
}

func DefaultSignInOptions() SignInOptions {
	return SignInOptions{}
}

func (o SignInOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.AttemptsPerSecond, validation.Min(0.0)),
		validation.Field(&o.Burst, validation.Min(0), validation.By(func(any) error {
			if o.AttemptsPerSecond > 0 && o.Burst < 1 {
				return errors.New("must be at least 1 when pacing is on")
			}
			return nil
		})),
	)
}

// Limiter returns the pacing limiter, or nil when pacing is off.
func (o SignInOptions) Limiter() *rate.Limiter {
	if o.AttemptsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(o.AttemptsPerSecond), o.Burst)
}
