package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Verification is the outcome of checking a password against a stored hash.
type Verification int

const (
	VerificationFailed Verification = iota
	VerificationSuccess
	// VerificationSuccessRehashNeeded means the password matched a hash that
	// was produced by an older algorithm or weaker parameters.
	VerificationSuccessRehashNeeded
)

func (v Verification) String() string {
	switch v {
	case VerificationSuccess:
		return "success"
	case VerificationSuccessRehashNeeded:
		return "success_rehash_needed"
	default:
		return "failed"
	}
}

var ErrInvalidHash = errors.New("cryptox: invalid hash format")

// Argon2Params are the Argon2id cost settings encoded in every hash.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  uint32
}

// DefaultArgon2Params follows the OWASP minimum for Argon2id.
var DefaultArgon2Params = Argon2Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	KeyLength:   32,
	SaltLength:  16,
}

// PasswordHasher produces PHC-format Argon2id hashes keyed to the owning
// user, so two accounts sharing a password never share a hash input.
type PasswordHasher struct {
	Params Argon2Params
	Pepper string
}

// NewPasswordHasher returns a hasher with default parameters.
func NewPasswordHasher(pepper string) *PasswordHasher {
	return &PasswordHasher{Params: DefaultArgon2Params, Pepper: pepper}
}

func (h *PasswordHasher) material(key, password string) []byte {
	return []byte(password + "\x00" + key + h.Pepper)
}

// Hash hashes password for the user identified by key.
func (h *PasswordHasher) Hash(key, password string) (string, error) {
	p := h.Params
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	sum := argon2.IDKey(h.material(key, password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Iterations,
		p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify checks password against encoded for the user identified by key.
// A mismatch is VerificationFailed with a nil error; the error is reserved
// for hashes that cannot be parsed.
func (h *PasswordHasher) Verify(key, password, encoded string) (Verification, error) {
	if isBcrypt(encoded) {
		return verifyBcrypt(password, encoded)
	}

	// $argon2id$v=19$m=X,t=Y,p=Z$salt$hash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return VerificationFailed, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return VerificationFailed, fmt.Errorf("%w: unsupported version %q", ErrInvalidHash, parts[2])
	}

	var stored Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &stored.Memory, &stored.Iterations, &stored.Parallelism); err != nil {
		return VerificationFailed, fmt.Errorf("%w: parameters: %v", ErrInvalidHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return VerificationFailed, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return VerificationFailed, fmt.Errorf("%w: digest", ErrInvalidHash)
	}
	stored.SaltLength = uint32(len(salt))
	stored.KeyLength = uint32(len(expected))

	computed := argon2.IDKey(h.material(key, password), salt, stored.Iterations, stored.Memory, stored.Parallelism, stored.KeyLength)
	if subtle.ConstantTimeCompare(computed, expected) != 1 {
		return VerificationFailed, nil
	}

	if stored != h.Params {
		return VerificationSuccessRehashNeeded, nil
	}
	return VerificationSuccess, nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

// verifyBcrypt accepts hashes imported from systems that used bcrypt. They
// are never keyed, so a match always asks for a rehash.
func verifyBcrypt(password, encoded string) (Verification, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return VerificationSuccessRehashNeeded, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return VerificationFailed, nil
	default:
		return VerificationFailed, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
}

const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*-_=+?"
)

// GeneratePassword returns a random password of length characters holding
// at least one lowercase, uppercase, digit and symbol character.
func GeneratePassword(length int) (string, error) {
	if length < 4 {
		return "", fmt.Errorf("cryptox: password length must be at least 4, got %d", length)
	}

	classes := []string{lowerChars, upperChars, digitChars, symbolChars}
	all := strings.Join(classes, "")

	out := make([]byte, length)
	for i := range out {
		set := all
		if i < len(classes) {
			set = classes[i]
		}
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		out[i] = c
	}

	// Shuffle so the guaranteed classes are not always in front.
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("cryptox: failed to shuffle password: %w", err)
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}
	return string(out), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("cryptox: failed to generate random password: %w", err)
	}
	return set[n.Int64()], nil
}
