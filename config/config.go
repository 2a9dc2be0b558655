// Package config defines the application configuration structures and
// how they are loaded.
//
// Separated from cmd to allow other packages (api, ssh, tui) to depend
// on config without importing Cobra.
//
// Precedence, highest first: command-line flags, NLSQL_* environment
// variables (a .env file in the working directory is loaded into the
// environment first), the YAML config file, then built-in defaults.
// A named server profile, when selected, overrides the backend address
// and adds SSH settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "NLSQL"
	DefaultAPIURL  = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second
)

// Viper keys, also used as flag names.
const (
	KeyConfig         = "config"
	KeyAPIURL         = "api-url"
	KeyTimeout        = "timeout"
	KeyProfile        = "profile"
	KeyLogLevel       = "log-level"
	KeyDataDir        = "data-dir"
	KeyMetricsAddress = "metrics-address"
)

// Config holds all application settings.
type Config struct {
	APIURL         string
	Timeout        time.Duration
	Profile        string
	LogLevel       string
	DataDir        string
	MetricsAddress string

	SSH SSHConfig
}

// SSHConfig holds SSH tunnel settings.
type SSHConfig struct {
	Enabled        bool
	Host           string
	Port           int
	User           string
	KeyPath        string
	KeyPassphrase  string
	KnownHostsPath string
}

// DefaultDataDir is ~/.nlsql, or .nlsql when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nlsql"
	}
	return filepath.Join(home, ".nlsql")
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, DefaultAPIURL)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyDataDir, DefaultDataDir())
}

// Load resolves the configuration from v, which should already have the
// command flags bound.
func Load(v *viper.Viper) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString(KeyDataDir))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		APIURL:         v.GetString(KeyAPIURL),
		Timeout:        v.GetDuration(KeyTimeout),
		Profile:        v.GetString(KeyProfile),
		LogLevel:       strings.ToLower(v.GetString(KeyLogLevel)),
		DataDir:        v.GetString(KeyDataDir),
		MetricsAddress: v.GetString(KeyMetricsAddress),
	}

	if cfg.Profile != "" {
		profiles, err := NewProfileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		p, ok := profiles.Get(cfg.Profile)
		if !ok {
			return nil, fmt.Errorf("profile %q not found in %s", cfg.Profile, profiles.Path())
		}
		if err := p.Apply(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail later with a
// less helpful error.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url %q: want http(s)://host[:port]", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.SSH.Enabled && (c.SSH.Host == "" || c.SSH.User == "") {
		return errors.New("ssh tunnel needs a host and a user")
	}
	return nil
}

// StatePath is where the local key-value store lives.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}
