package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults holds the locations used when no flags override them.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults resolves default paths, checking the environment first:
//   - CFGPUSH_CONFIG_PATH: config file (default ~/.config/cfgpush.toml)
//   - CFGPUSH_HOME: data directory (default ~/.local/share/cfgpush)
func GetDefaults() (*Defaults, error) {
	configPath := os.Getenv("CFGPUSH_CONFIG_PATH")
	baseDir := os.Getenv("CFGPUSH_HOME")

	if configPath == "" || baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if configPath == "" {
			configPath = filepath.Join(home, ".config", "cfgpush.toml")
		}
		if baseDir == "" {
			baseDir = filepath.Join(home, ".local", "share", "cfgpush")
		}
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}
