package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureUserConfig returns the path of the config file inside dataDir,
// seeding it from the shipped default (portal selectors, column maps, limiter
// pacing) on first run. An existing file is never touched; operators tune
// selectors in place when a portal changes its markup.
func EnsureUserConfig(dataDir, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	if _, err := os.Stat(userPath); err == nil {
		return userPath, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	b, err := os.ReadFile(defaultPath)
	if err != nil {
		return "", fmt.Errorf("config: read default %s: %w", defaultPath, err)
	}
	if err := os.WriteFile(userPath, b, 0o644); err != nil {
		return "", fmt.Errorf("config: seed %s: %w", userPath, err)
	}

	// a default that doesn't parse would fail every later run with a
	// confusing error path, so reject it here
	if _, err := Load(userPath); err != nil {
		os.Remove(userPath)
		return "", fmt.Errorf("config: shipped default is invalid: %w", err)
	}
	return userPath, nil
}
