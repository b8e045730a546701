package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
)

// InitAuthKeys creates the KeyManager for the configured algorithm.
//
// With AUTH_SIGNING_KEY_FILE set the key is read from (or generated into)
// that file and tokens survive restarts. Without it the key lives in
// memory and every restart invalidates outstanding tokens, refresh tokens
// and emailed links included.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	keyManager, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		KeyFile:   cfg.SigningKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}

	if cfg.SigningKeyFile == "" {
		logger.Warn("signing key is in memory only, all tokens are invalidated on restart",
			"algorithm", keyManager.Algorithm(),
		)
	} else {
		logger.Info("signing key loaded",
			"algorithm", keyManager.Algorithm(),
			"key_file", cfg.SigningKeyFile,
			"issuer", cfg.Issuer,
		)
	}

	return keyManager, nil
}
