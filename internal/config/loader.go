package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR}, ${VAR:-default}, and ${VAR:?error}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}`)

// Load reads a YAML config file, expands environment variable references,
// and applies the environment-wins overrides for the store DSN.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets COALMINE_STORE_DSN win outright over whatever the
// config file says, mirroring the MONGODB_URI-wins convention this system
// was modeled on: an operator's environment always takes precedence over a
// checked-in config file for connection strings.
func applyEnvOverrides(cfg *Config) {
	if dsn := os.Getenv("COALMINE_STORE_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
		cfg.Store.Driver = "sqlite"
	}
	if key := os.Getenv("COALMINE_AUTH_KEY"); key != "" {
		cfg.Auth.Key = key
	}
}

func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR}, ${VAR:-default}, and ${VAR:?msg} references.
// Unset variables without a modifier are left as empty strings. A ${VAR:?msg}
// reference to an unset variable fails the whole expansion.
func expandEnvVars(input string) (string, error) {
	var firstErr error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		if firstErr != nil {
			return match
		}
		groups := envVarPattern.FindStringSubmatch(match)
		name, modifier, arg := groups[1], groups[2], groups[3]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		switch modifier {
		case "-":
			return arg
		case "?":
			msg := arg
			if msg == "" {
				msg = "required environment variable not set"
			}
			firstErr = fmt.Errorf("%s: %s", name, msg)
			return match
		default:
			return ""
		}
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
