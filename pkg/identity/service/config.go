package service

import (
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/membership/pkg/cryptox"
	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/policy"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

var (
	ErrNilUser      = errors.New("identity: nil user")
	ErrNilRole      = errors.New("identity: nil role")
	ErrUserNotFound = errors.New("identity: user not found")
	ErrRoleNotFound = errors.New("identity: role not found")
)

// PasswordHasher hashes passwords keyed by the owning user's key.
// cryptox.PasswordHasher satisfies it.
type PasswordHasher interface {
	Hash(key, password string) (string, error)
	Verify(key, password, encoded string) (cryptox.Verification, error)
}

// Config is shared by every manager built from the same options.
type Config struct {
	Options            policy.Options
	Hasher             PasswordHasher
	PasswordValidators []policy.PasswordValidator
	Normalizer         policy.LookupNormalizer
	Describer          domain.Describer
	Clock              clockwork.Clock
	Logger             *slog.Logger

	// Limiter paces password sign-ins. Nil disables pacing.
	Limiter *rate.Limiter

	// OwnsStore makes Close on the user manager close the store.
	OwnsStore bool
}

type Option func(*Config)

func WithOptions(o policy.Options) Option             { return func(c *Config) { c.Options = o } }
func WithHasher(h PasswordHasher) Option              { return func(c *Config) { c.Hasher = h } }
func WithNormalizer(n policy.LookupNormalizer) Option { return func(c *Config) { c.Normalizer = n } }
func WithDescriber(d domain.Describer) Option         { return func(c *Config) { c.Describer = d } }
func WithClock(clk clockwork.Clock) Option            { return func(c *Config) { c.Clock = clk } }
func WithLogger(l *slog.Logger) Option                { return func(c *Config) { c.Logger = l } }
func WithRateLimiter(l *rate.Limiter) Option          { return func(c *Config) { c.Limiter = l } }
func WithOwnedStore() Option                          { return func(c *Config) { c.OwnsStore = true } }

// WithPasswordValidators replaces the default policy validator.
func WithPasswordValidators(v ...policy.PasswordValidator) Option {
	return func(c *Config) { c.PasswordValidators = v }
}

func newConfig(opts []Option) Config {
	c := Config{Options: policy.DefaultOptions()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.Hasher == nil {
		c.Hasher = cryptox.NewPasswordHasher("")
	}
	if c.Normalizer == nil {
		c.Normalizer = policy.UpperNormalizer{}
	}
	if c.Describer == nil {
		c.Describer = domain.DefaultDescriber{}
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.PasswordValidators == nil {
		c.PasswordValidators = []policy.PasswordValidator{
			policy.NewPasswordValidator(c.Options.Password, c.Describer),
		}
	}
	if c.Limiter == nil {
		c.Limiter = c.Options.SignIn.Limiter()
	}
	return c
}

// Validate checks the policy options.
func (c Config) Validate() error { return c.Options.Validate() }
