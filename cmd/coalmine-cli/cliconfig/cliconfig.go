// Package cliconfig holds the coalmine-cli's own persistent configuration:
// the server to talk to and how to authenticate against it. This is
// separate from internal/config, which configures the server process
// itself — the source's equivalent split is the WSGI server's coal-mine.ini
// versus an operator's own client config, per spec.md §6's "CLI ... thin
// HTTP client with a persistent INI configuration file" requirement,
// rendered here as YAML rather than INI.
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

const keyringService = "coalmine-cli"
const keyringAuthKeyName = "auth_key"

// Config is the CLI's persisted settings.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AuthKey is stored here only if the user declined keyring storage.
	AuthKey string `yaml:"auth_key,omitempty"`
	// UseKeyring, when true, means AuthKey is stored in the OS keyring
	// instead of this file.
	UseKeyring bool `yaml:"use_keyring"`
}

// DefaultPath returns ~/.config/coalmine-cli/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "coalmine-cli", "config.yaml"), nil
}

// Load reads the CLI config from path, returning a default Config
// (127.0.0.1:8080, no auth key) rather than an error if the file doesn't
// exist yet.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{Host: "127.0.0.1", Port: 8080}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cli config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing cli config: %w", err)
	}
	return cfg, nil
}

// Save writes the CLI config to path, creating parent directories as
// needed, with owner-only permissions since it may hold a plaintext key.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling cli config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ResolveAuthKey returns the auth key to send on every request, preferring
// the OS keyring over the plaintext config field.
func (c *Config) ResolveAuthKey() string {
	if c.UseKeyring {
		if val, err := keyring.Get(keyringService, keyringAuthKeyName); err == nil {
			return val
		}
	}
	return c.AuthKey
}

// StoreAuthKeyInKeyring moves the auth key into the OS keyring and clears
// it from the in-memory config (the caller must Save afterward).
func (c *Config) StoreAuthKeyInKeyring(key string) error {
	if err := keyring.Set(keyringService, keyringAuthKeyName, key); err != nil {
		return fmt.Errorf("storing auth key in OS keyring: %w", err)
	}
	c.AuthKey = ""
	c.UseKeyring = true
	return nil
}
