package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir is the standard configuration directory name
const ConfigDir = "roster"

// configDirectory returns the platform-appropriate config directory.
//   - Windows: %APPDATA%\Roster
//   - Unix: ~/.config/roster
func configDirectory() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Roster")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", ConfigDir)
	}
	return ""
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	dir := configDirectory()
	if dir == "" {
		return "config.ini"
	}
	return filepath.Join(dir, "config.ini")
}

// DefaultTokenPath returns where the session token is kept when the config
// does not name a file.
func DefaultTokenPath() string {
	dir := configDirectory()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "token")
}

// LogDirectory returns the directory for rotating log files.
func LogDirectory() string {
	dir := configDirectory()
	if dir == "" {
		return filepath.Join(os.TempDir(), "roster-logs")
	}
	return filepath.Join(dir, "logs")
}
