package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appDirName = ".vibeshell"

// DataDir returns the base data directory. VIBESHELL_HOME overrides the
// default of ~/.vibeshell.
func DataDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("VIBESHELL_HOME")); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// ConfigPath returns the path to the TOML configuration file.
func ConfigPath() (string, error) {
	return dataPath("config.toml")
}

// StatePath returns the path to the bbolt preference database.
func StatePath() (string, error) {
	return dataPath("state.db")
}

// UILogPath returns the path the terminal UI logs to.
func UILogPath() (string, error) {
	return dataPath("ui.log")
}

func dataPath(name string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}
