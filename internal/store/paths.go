package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const (
	appDirName = "codex-tracker"
	DBFileName = "codex-tracker.db"
)

// DefaultDataDir is the per-user directory holding the database and the
// pricing mirror.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, appDirName)
}

func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), DBFileName)
}

// DefaultCodexHome returns $CODEX_HOME, else ~/.codex.
func DefaultCodexHome() (string, error) {
	if v := strings.TrimSpace(os.Getenv("CODEX_HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".codex"), nil
}
