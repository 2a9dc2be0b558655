// profiles.go manages saved backend server profiles.
//
// Profiles are stored in <data-dir>/profiles.json so users can switch
// between backends (local, staging, behind a bastion) without retyping
// addresses and SSH settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Profile is a named, saveable backend endpoint.
type Profile struct {
	Name    string   `json:"name"`
	APIURL  string   `json:"api_url"`
	Timeout string   `json:"timeout,omitempty"` // Go duration, e.g. "45s"
	SSH     SSHEntry `json:"ssh,omitempty"`
}

// SSHEntry holds SSH tunnel settings for a saved profile.
type SSHEntry struct {
	Enabled        bool   `json:"enabled,omitempty"`
	Host           string `json:"host,omitempty"`
	Port           string `json:"port,omitempty"`
	User           string `json:"user,omitempty"`
	KeyPath        string `json:"key_path,omitempty"`
	KeyPassphrase  string `json:"key_passphrase,omitempty"`
	KnownHostsPath string `json:"known_hosts,omitempty"`
}

// Apply copies the profile's settings over cfg.
func (p Profile) Apply(cfg *Config) error {
	if p.APIURL != "" {
		cfg.APIURL = p.APIURL
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return fmt.Errorf("profile %s: timeout: %w", p.Name, err)
		}
		cfg.Timeout = d
	}
	ssh, err := p.SSH.Config()
	if err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	cfg.SSH = ssh
	cfg.Profile = p.Name
	return nil
}

// Config converts the saved entry to an SSHConfig.
func (e SSHEntry) Config() (SSHConfig, error) {
	if !e.Enabled {
		return SSHConfig{}, nil
	}
	port := 22
	if e.Port != "" {
		p, err := strconv.Atoi(e.Port)
		if err != nil || p <= 0 || p > 65535 {
			return SSHConfig{}, fmt.Errorf("invalid ssh port %q", e.Port)
		}
		port = p
	}
	return SSHConfig{
		Enabled:        true,
		Host:           e.Host,
		Port:           port,
		User:           e.User,
		KeyPath:        expandHome(e.KeyPath),
		KeyPassphrase:  e.KeyPassphrase,
		KnownHostsPath: expandHome(e.KnownHostsPath),
	}, nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// ProfileStore manages saved profiles on disk.
type ProfileStore struct {
	path     string
	Profiles []Profile `json:"profiles"`
}

// NewProfileStore creates a store, loading from <dataDir>/profiles.json.
func NewProfileStore(dataDir string) (*ProfileStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}

	store := &ProfileStore{
		path: filepath.Join(dataDir, "profiles.json"),
	}

	data, err := os.ReadFile(store.path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	return store, nil
}

// Path returns the backing file.
func (s *ProfileStore) Path() string { return s.path }

// Save writes all profiles to disk.
func (s *ProfileStore) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Add adds or updates a profile by name.
func (s *ProfileStore) Add(p Profile) {
	for i, c := range s.Profiles {
		if c.Name == p.Name {
			s.Profiles[i] = p
			return
		}
	}
	s.Profiles = append(s.Profiles, p)
}

// Delete removes a profile by name.
func (s *ProfileStore) Delete(name string) {
	for i, c := range s.Profiles {
		if c.Name == name {
			s.Profiles = append(s.Profiles[:i], s.Profiles[i+1:]...)
			return
		}
	}
}

// Get retrieves a profile by name.
func (s *ProfileStore) Get(name string) (Profile, bool) {
	for _, c := range s.Profiles {
		if c.Name == name {
			return c, true
		}
	}
	return Profile{}, false
}

// DefaultProfile returns a profile pointing at a local backend.
func DefaultProfile() Profile {
	return Profile{
		APIURL: DefaultAPIURL,
		SSH:    SSHEntry{Port: "22"},
	}
}
