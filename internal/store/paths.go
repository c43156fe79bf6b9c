package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDBName is the database file inside the episim directory.
const DefaultDBName = "runs.db"

// GlobalEpisimPath returns ~/.episim (%USERPROFILE%\.episim on Windows).
func GlobalEpisimPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".episim"), nil
}

// DefaultPath returns the run database used when none is configured.
func DefaultPath() (string, error) {
	dir, err := GlobalEpisimPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultDBName), nil
}
