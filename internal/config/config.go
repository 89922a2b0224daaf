// Package config provides configuration management for the roster client.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/schoolroster/roster-client/internal/constants"
)

// Config is the client configuration.
//
// Config file location: see DefaultConfigPath.
//
// INI format:
//
//	[server]
//	api_url = http://localhost:8080
//
//	[session]
//	token_file = ~/.config/roster/token
//
//	[list]
//	page_size = 5
//
//	[http]
//	timeout_seconds = 60
//	max_retries = 0
//	requests_per_second = 5
//	burst = 10
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	no_proxy =
//
//	[notifications]
//	enabled = true
//	desktop = false
//
//	[logging]
//	level = info
//	file =
type Config struct {
	// Backend base URL, without the /api suffix
	APIURL string

	// Where the session token is persisted. Empty means DefaultTokenPath().
	TokenFile string

	// Page size used when the URL does not carry one
	PageSize int

	// HTTP settings
	TimeoutSeconds    int
	MaxRetries        int // retries on transport errors only; 0 disables
	RequestsPerSecond float64
	Burst             int

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never persisted
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	Notifications NotificationConfig

	LogLevel string
	LogFile  string
}

// NotificationConfig contains settings for user-facing notices.
type NotificationConfig struct {
	// Enabled turns notices on. Default: true
	Enabled bool

	// Desktop mirrors notices as OS desktop notifications. Default: false
	Desktop bool
}

// Validation errors
var (
	ErrMissingAPIURL    = errors.New("api_url is required")
	ErrInvalidAPIURL    = errors.New("api_url must be an absolute http(s) URL")
	ErrInvalidPageSize  = fmt.Errorf("page_size must be between 1 and %d", constants.MaxPageSize)
	ErrInvalidTimeout   = errors.New("timeout_seconds must be between 1 and 3600")
	ErrInvalidRetries   = errors.New("max_retries must be between 0 and 10")
	ErrInvalidRate      = errors.New("requests_per_second must be positive")
	ErrInvalidBurst     = errors.New("burst must be at least 1")
	ErrInvalidProxyMode = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
)

// EnvAPIURL overrides the configured API URL when set.
const EnvAPIURL = "ROSTER_API_URL"

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		APIURL:            "http://localhost:8080",
		PageSize:          constants.DefaultPageSize,
		TimeoutSeconds:    int(constants.HTTPClientTimeout.Seconds()),
		MaxRetries:        0,
		RequestsPerSecond: 5,
		Burst:             10,
		ProxyMode:         "no-proxy",
		ProxyPort:         8080,
		Notifications: NotificationConfig{
			Enabled: true,
			Desktop: false,
		},
		LogLevel: "info",
	}
}

// LoadConfig loads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := iniFile.Section("server")
	cfg.APIURL = server.Key("api_url").MustString(cfg.APIURL)

	session := iniFile.Section("session")
	cfg.TokenFile = session.Key("token_file").String()

	list := iniFile.Section("list")
	cfg.PageSize = list.Key("page_size").MustInt(cfg.PageSize)

	httpSection := iniFile.Section("http")
	cfg.TimeoutSeconds = httpSection.Key("timeout_seconds").MustInt(cfg.TimeoutSeconds)
	cfg.MaxRetries = httpSection.Key("max_retries").MustInt(cfg.MaxRetries)
	cfg.RequestsPerSecond = httpSection.Key("requests_per_second").MustFloat64(cfg.RequestsPerSecond)
	cfg.Burst = httpSection.Key("burst").MustInt(cfg.Burst)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	notify := iniFile.Section("notifications")
	cfg.Notifications.Enabled = notify.Key("enabled").MustBool(true)
	cfg.Notifications.Desktop = notify.Key("desktop").MustBool(false)

	logSection := iniFile.Section("logging")
	cfg.LogLevel = logSection.Key("level").MustString(cfg.LogLevel)
	cfg.LogFile = logSection.Key("file").String()

	return cfg, nil
}

// SaveConfig saves configuration to an INI file.
// Creates parent directories if they don't exist. The proxy password is never written.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name   string
		values [][2]string
	}{
		{"server", [][2]string{{"api_url", cfg.APIURL}}},
		{"session", [][2]string{{"token_file", cfg.TokenFile}}},
		{"list", [][2]string{{"page_size", fmt.Sprintf("%d", cfg.PageSize)}}},
		{"http", [][2]string{
			{"timeout_seconds", fmt.Sprintf("%d", cfg.TimeoutSeconds)},
			{"max_retries", fmt.Sprintf("%d", cfg.MaxRetries)},
			{"requests_per_second", fmt.Sprintf("%g", cfg.RequestsPerSecond)},
			{"burst", fmt.Sprintf("%d", cfg.Burst)},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", fmt.Sprintf("%d", cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"no_proxy", cfg.NoProxy},
			{"warmup", fmt.Sprintf("%t", cfg.ProxyWarmup)},
		}},
		{"notifications", [][2]string{
			{"enabled", fmt.Sprintf("%t", cfg.Notifications.Enabled)},
			{"desktop", fmt.Sprintf("%t", cfg.Notifications.Desktop)},
		}},
		{"logging", [][2]string{
			{"level", cfg.LogLevel},
			{"file", cfg.LogFile},
		}},
	}

	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.values {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// ApplyEnv overrides file values with environment variables.
func (cfg *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.APIURL = v
	}
}

// Validate checks if the configuration is usable.
func (cfg *Config) Validate() error {
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		return ErrMissingAPIURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidAPIURL
	}
	if cfg.PageSize < 1 || cfg.PageSize > constants.MaxPageSize {
		return ErrInvalidPageSize
	}
	if cfg.TimeoutSeconds < 1 || cfg.TimeoutSeconds > 3600 {
		return ErrInvalidTimeout
	}
	if cfg.MaxRetries < 0 || cfg.MaxRetries > 10 {
		return ErrInvalidRetries
	}
	if cfg.RequestsPerSecond <= 0 {
		return ErrInvalidRate
	}
	if cfg.Burst < 1 {
		return ErrInvalidBurst
	}
	switch strings.ToLower(cfg.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return ErrInvalidProxyMode
	}
	return nil
}

// BaseURL returns the API URL without a trailing slash.
func (cfg *Config) BaseURL() string {
	return strings.TrimSuffix(strings.TrimSpace(cfg.APIURL), "/")
}

// ResolveTokenFile returns the configured token path or the default one.
func (cfg *Config) ResolveTokenFile() string {
	if cfg.TokenFile != "" {
		return expandHome(cfg.TokenFile)
	}
	return DefaultTokenPath()
}

// expandHome turns a leading "~/" into the user's home directory.
// ResolveLogFile returns the log file path, or "" when file logging is off.
// A bare name lands in LogDirectory().
func (cfg *Config) ResolveLogFile() string {
	if cfg.LogFile == "" {
		return ""
	}
	path := expandHome(cfg.LogFile)
	if !filepath.IsAbs(path) && filepath.Base(path) == path {
		return filepath.Join(LogDirectory(), path)
	}
	return path
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
