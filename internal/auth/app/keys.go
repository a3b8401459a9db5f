package app

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/regconsole/pkg/cryptox"
)

// masterKeySize is the amount of random key material written to a new key file.
const masterKeySize = 32

// InitSealer returns the sealer protecting stored tokens, or nil when no
// master key path is configured (values are then stored as-is).
//
// A missing key file is created with fresh random material and mode 0600.
// Losing the file makes a stored session unreadable; the console then treats
// itself as signed out.
func InitSealer(path string, logger *slog.Logger) (*cryptox.Sealer, error) {
	if path == "" {
		logger.Warn("no master key configured, session tokens are stored unsealed")
		return nil, nil
	}

	created, err := ensureMasterKey(path)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("generated new master key", "path", path)
	}

	sealer, err := cryptox.NewSealerFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}

	logger.Debug("session sealing enabled", "path", path)
	return sealer, nil
}

func ensureMasterKey(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat master key: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return false, fmt.Errorf("failed to create master key directory: %w", err)
		}
	}

	key := make([]byte, masterKeySize)
	if _, err := rand.Read(key); err != nil {
		return false, fmt.Errorf("failed to generate master key: %w", err)
	}

	// O_EXCL: never clobber a key another process just wrote.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create master key: %w", err)
	}
	if _, err := f.Write(key); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("failed to write master key: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("failed to write master key: %w", err)
	}
	return true, nil
}
