// Package config loads the CLI configuration from flags, PACKASTACK_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/packastack/packastack-core/providers/api/launchpad"
	"github.com/packastack/packastack-core/providers/fetchers"
)

// EnvPrefix prefixes every environment variable, e.g. PACKASTACK_TIMEOUT.
const EnvPrefix = "PACKASTACK"

// Configuration keys. They double as flag names and YAML keys.
const (
	KeyConfig       = "config"
	KeyTimeout      = "timeout"
	KeyUserAgent    = "user-agent"
	KeyRetries      = "retries"
	KeyTeam         = "team"
	KeyLaunchpadURL = "launchpad-url"
	KeyPyPIURL      = "pypi-url"
	KeyLogDir       = "log-dir"
	KeyCacheSize    = "cache-size"
	KeyEnvFile      = "env-file"
)

// Defaults.
const (
	DefaultRetries      = 3
	DefaultLaunchpadURL = "https://api.launchpad.net"
	DefaultPyPIURL      = "https://pypi.org"
)

// ErrInvalid is returned for configuration values out of range.
var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved CLI configuration.
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	Retries      int
	Team         string
	LaunchpadURL string
	PyPIURL      string
	// LogDir is the root of the logs/ directory, the working directory when empty.
	LogDir string
	// CacheSize is the number of upstream pages kept in memory during a run.
	CacheSize int
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfig, "", "Path to a YAML config file")
	fs.Duration(KeyTimeout, fetchers.DefaultTimeout, "HTTP request timeout")
	fs.String(KeyUserAgent, fetchers.DefaultUserAgent, "User-Agent sent to upstream sites")
	fs.Int(KeyRetries, DefaultRetries, "Attempts per upstream request")
	fs.String(KeyTeam, launchpad.DefaultTeam, "Launchpad team owning the packaging repositories")
	fs.String(KeyLaunchpadURL, DefaultLaunchpadURL, "Launchpad API base URL")
	fs.String(KeyPyPIURL, DefaultPyPIURL, "PyPI base URL")
	fs.String(KeyLogDir, "", "Directory receiving logs/ (defaults to the working directory)")
	fs.Int(KeyCacheSize, fetchers.DefaultCacheSize, "Upstream pages cached in memory during a run")
	fs.String(KeyEnvFile, "", "Dotenv file exporting PACKASTACK_* variables (defaults to ./.env when present)")
}

// Load resolves the configuration. Flags registered with RegisterFlags take
// precedence when set, then environment variables, then the config file
// named by --config (or PACKASTACK_CONFIG), then the flag defaults.
//
// Variables of the dotenv file never override the ones already exported.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := loadEnvFile(fs); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyTimeout, fetchers.DefaultTimeout)
	v.SetDefault(KeyUserAgent, fetchers.DefaultUserAgent)
	v.SetDefault(KeyRetries, DefaultRetries)
	v.SetDefault(KeyTeam, launchpad.DefaultTeam)
	v.SetDefault(KeyLaunchpadURL, DefaultLaunchpadURL)
	v.SetDefault(KeyPyPIURL, DefaultPyPIURL)
	v.SetDefault(KeyCacheSize, fetchers.DefaultCacheSize)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Timeout:      v.GetDuration(KeyTimeout),
		UserAgent:    strings.TrimSpace(v.GetString(KeyUserAgent)),
		Retries:      v.GetInt(KeyRetries),
		Team:         strings.TrimSpace(v.GetString(KeyTeam)),
		LaunchpadURL: strings.TrimRight(v.GetString(KeyLaunchpadURL), "/"),
		PyPIURL:      strings.TrimRight(v.GetString(KeyPyPIURL), "/"),
		LogDir:       v.GetString(KeyLogDir),
		CacheSize:    v.GetInt(KeyCacheSize),
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, KeyTimeout, cfg.Timeout)
	}
	if cfg.Retries < 1 {
		return nil, fmt.Errorf("%w: %s must be at least 1, got %d", ErrInvalid, KeyRetries, cfg.Retries)
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("%w: %s can't be negative, got %d", ErrInvalid, KeyCacheSize, cfg.CacheSize)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = fetchers.DefaultUserAgent
	}

	return cfg, nil
}

// loadEnvFile exports the variables of --env-file, or of ./.env when it exists.
func loadEnvFile(fs *pflag.FlagSet) error {
	var path string
	if fs != nil {
		if f := fs.Lookup(KeyEnvFile); f != nil {
			path = f.Value.String()
		}
	}

	if path == "" {
		// optional
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to read env file: %w", err)
	}
	return nil
}
