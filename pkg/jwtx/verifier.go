package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrNoSigner    = errors.New("jwtx: no active signer")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// VerifyOptions captures the expectations checked on every token.
type VerifyOptions struct {
	// Issuer the token must have. Empty means "don't care".
	Issuer string

	// Audience values the token must contain. Empty means "don't care".
	Audience []string

	// Leeway allows small clock skew when validating exp/nbf.
	Leeway time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// KeyRing signs with one active key and verifies against every key it has
// ever held, so tokens survive a rotation until they expire.
type KeyRing struct {
	mu     sync.RWMutex
	active Signer
	pub    map[string]ed25519.PublicKey
	opts   VerifyOptions
}

// NewKeyRing returns a ring signing with active.
func NewKeyRing(active Signer, opts VerifyOptions) *KeyRing {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &KeyRing{pub: make(map[string]ed25519.PublicKey), opts: opts}
	if active != nil {
		r.Rotate(active)
	}
	return r
}

// Rotate makes next the signing key. Earlier keys stay valid for verification.
func (r *KeyRing) Rotate(next Signer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = next
	r.pub[next.KID()] = next.Public()
}

// Sign signs claims with the active key.
func (r *KeyRing) Sign(claims Claims) (string, error) {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()
	if active == nil {
		return "", ErrNoSigner
	}
	return active.Sign(claims)
}

// Verify validates the token's signature and claim requirements and returns
// its claims.
func (r *KeyRing) Verify(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(r.opts.Now),
		jwt.WithLeeway(r.opts.Leeway),
	)

	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrMalformed)
		}

		r.mu.RLock()
		pub, ok := r.pub[kid]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
		}
		return pub, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrNotYetValid
		}
		return nil, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}

	if err := claims.ValidateIssuer(r.opts.Issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(r.opts.Audience); err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiry(r.opts.Now(), r.opts.Leeway); err != nil {
		return nil, err
	}
	return claims, nil
}
