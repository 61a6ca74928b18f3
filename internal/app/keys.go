package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/membership/pkg/cryptox"
	"github.com/aussiebroadwan/membership/pkg/jwtx"
)

// loadSigner returns the session signing key.
//
// With no key file a fresh key is generated and every session dies with the
// process. Otherwise the key is read from the file, which is created on
// first use, so sessions survive restarts. The kid is derived from the key
// material and stays stable across restarts too.
func loadSigner(path string, logger *slog.Logger) (*jwtx.EdDSASigner, error) {
	if path == "" {
		logger.Info("using ephemeral signing key, sessions will not survive a restart")
		return jwtx.NewEphemeralSigner()
	}

	path = filepath.Clean(path)
	pemKey, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if pemKey, err = cryptox.GenerateEd25519Key(); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create signing key dir: %w", err)
		}
		if err := os.WriteFile(path, pemKey, 0o600); err != nil {
			return nil, fmt.Errorf("write signing key: %w", err)
		}
		logger.Info("generated signing key", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	kid := cryptox.FingerprintToken(string(pemKey))[:16]
	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	if err != nil {
		return nil, fmt.Errorf("load signing key %s: %w", path, err)
	}
	logger.Info("signing key loaded", "path", path, "kid", kid)
	return signer, nil
}
