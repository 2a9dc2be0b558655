package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set(KeyDataDir, t.TempDir())
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.SSH.Enabled)
	assert.Equal(t, filepath.Join(cfg.DataDir, "state"), cfg.StatePath())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	v := newViper(t)
	dir := v.GetString(KeyDataDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("api-url: http://file:9000\ntimeout: 10s\nlog-level: DEBUG\n"), 0o600))
	t.Setenv("NLSQL_API_URL", "http://env:8001")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://env:8001", cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api-url: https://nl2sql.internal\n"), 0o600))
	v := newViper(t)
	v.Set(KeyConfig, path)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://nl2sql.internal", cfg.APIURL)

	v = newViper(t)
	v.Set(KeyConfig, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load(v)
	assert.Error(t, err)
}

func TestLoad_Profile(t *testing.T) {
	v := newViper(t)
	dir := v.GetString(KeyDataDir)

	store, err := NewProfileStore(dir)
	require.NoError(t, err)
	store.Add(Profile{
		Name:    "staging",
		APIURL:  "http://10.0.0.5:8000",
		Timeout: "45s",
		SSH:     SSHEntry{Enabled: true, Host: "bastion", User: "ops", KeyPath: "/keys/id"},
	})
	require.NoError(t, store.Save())

	v.Set(KeyProfile, "staging")
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000", cfg.APIURL)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.True(t, cfg.SSH.Enabled)
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, "bastion", cfg.SSH.Host)

	v.Set(KeyProfile, "prod")
	_, err = Load(v)
	assert.ErrorContains(t, err, `profile "prod" not found`)
}

func TestValidate(t *testing.T) {
	base := Config{APIURL: DefaultAPIURL, Timeout: time.Second, LogLevel: "info"}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"no scheme", func(c *Config) { c.APIURL = "localhost:8000" }, false},
		{"ftp", func(c *Config) { c.APIURL = "ftp://host" }, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, false},
		{"bad level", func(c *Config) { c.LogLevel = "verbose" }, false},
		{"ssh without host", func(c *Config) { c.SSH = SSHConfig{Enabled: true, User: "u"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestProfileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewProfileStore(dir)
	require.NoError(t, err)
	assert.Empty(t, s.Profiles)

	s.Add(Profile{Name: "a", APIURL: "http://a"})
	s.Add(Profile{Name: "b", APIURL: "http://b"})
	s.Add(Profile{Name: "a", APIURL: "http://a2"})
	require.NoError(t, s.Save())

	reloaded, err := NewProfileStore(dir)
	require.NoError(t, err)
	require.Len(t, reloaded.Profiles, 2)
	p, ok := reloaded.Get("a")
	require.True(t, ok)
	assert.Equal(t, "http://a2", p.APIURL)

	reloaded.Delete("a")
	_, ok = reloaded.Get("a")
	assert.False(t, ok)
	assert.Len(t, reloaded.Profiles, 1)
}

func TestSSHEntryConfig(t *testing.T) {
	cfg, err := SSHEntry{}.Config()
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	cfg, err = SSHEntry{Enabled: true, Host: "h", Port: "2222", User: "u"}.Config()
	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.Port)

	_, err = SSHEntry{Enabled: true, Port: "ssh"}.Config()
	assert.Error(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	cfg, err = SSHEntry{Enabled: true, KeyPath: "~/.ssh/id_ed25519"}.Config()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ssh/id_ed25519"), cfg.KeyPath)
}
