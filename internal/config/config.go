// Package config loads the YAML configuration file used by the coalmine
// server. The CLI keeps its own settings in cmd/coalmine-cli/cliconfig.
package config

import "fmt"

// Config is the top-level configuration for the coalmine server.
type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Auth    AuthConfig    `yaml:"auth"`
	Store   StoreConfig   `yaml:"store"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Discord DiscordConfig `yaml:"discord"`
	Log     LogConfig     `yaml:"log"`
	Process ProcessConfig `yaml:"process"`
}

// ListenConfig is the HTTP bind address.
type ListenConfig struct {
	Address string `yaml:"address"`
}

// AuthConfig carries the shared secret required on every API request except
// trigger. An empty key disables auth.
type AuthConfig struct {
	Key string `yaml:"key"`
}

// StoreConfig selects and configures the canary store backend.
type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	// DSN is the sqlite file path (ignored for the memory driver).
	DSN string `yaml:"dsn"`
}

// SMTPConfig configures the email notifier. Host is required to enable it;
// User/Pass must both be set or both be empty.
type SMTPConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	Sender string `yaml:"sender"`
}

func (c SMTPConfig) enabled() bool { return c.Host != "" }

// DiscordConfig configures the optional Discord notifier transport. Both
// fields are required to enable it.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

func (c DiscordConfig) enabled() bool { return c.BotToken != "" && c.ChannelID != "" }

// LogConfig selects the slog handler and its destination.
type LogConfig struct {
	// Format is "text" or "json".
	Format string `yaml:"format"`
	// File is a path to log to, or "" for stderr.
	File string `yaml:"file"`
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`
}

// ProcessConfig selects which subsystems this process instance runs.
// A single coalmine binary can run the HTTP API, the deadline engine, or
// both in one process; splitting them lets an operator run the engine on
// one host and several stateless API replicas on others, as long as they
// share the same durable store.
type ProcessConfig struct {
	Web        bool `yaml:"web"`
	Background bool `yaml:"background"`
}

// Default returns a Config with the same defaults the teacher's
// DefaultConfig uses: sensible out-of-the-box values. No auth key is set,
// and Validate does not require one, so auth stays disabled unless a key
// is configured.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Address: "127.0.0.1:8080"},
		Store:   StoreConfig{Driver: "memory"},
		Log:     LogConfig{Format: "text", Level: "info"},
		Process: ProcessConfig{Web: true, Background: true},
	}
}

// Validate checks invariants that span multiple fields.
func (c *Config) Validate() error {
	if c.Store.Driver != "memory" && c.Store.Driver != "sqlite" {
		return fmt.Errorf("config: store.driver must be \"memory\" or \"sqlite\", got %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.DSN == "" {
		return fmt.Errorf("config: store.dsn is required for the sqlite driver")
	}
	if (c.SMTP.User == "") != (c.SMTP.Pass == "") {
		return fmt.Errorf("config: smtp.user and smtp.pass must both be set or both be empty")
	}
	if c.Discord.BotToken != "" && c.Discord.ChannelID == "" {
		return fmt.Errorf("config: discord.channel_id is required when discord.bot_token is set")
	}
	if !c.Process.Web && !c.Process.Background {
		return fmt.Errorf("config: process.web and process.background cannot both be false")
	}
	return nil
}

// SMTPEnabled reports whether the SMTP notifier transport is configured.
func (c *Config) SMTPEnabled() bool { return c.SMTP.enabled() }

// DiscordEnabled reports whether the Discord notifier transport is configured.
func (c *Config) DiscordEnabled() bool { return c.Discord.enabled() }
