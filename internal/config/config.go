package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for zapdesk.
type Config struct {
	Server   ServerConfig   `json:"server"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Storage  StorageConfig  `json:"storage"`
	Archive  ArchiveConfig  `json:"archive"`
	Logging  LoggingConfig  `json:"logging"`
}

type ServerConfig struct {
	Port        int    `json:"port"`
	WebhookPath string `json:"webhookPath"`
}

type WhatsAppConfig struct {
	AccessToken   string `json:"accessToken"`
	PhoneNumberID string `json:"phoneNumberId"`
	VerifyToken   string `json:"verifyToken"`
	AppSecret     string `json:"appSecret,omitempty"`
	APIBase       string `json:"apiBase,omitempty"`     // override for local testing
	SendDelayMs   int    `json:"sendDelayMs,omitempty"` // inter-message delay in batch sends
}

type StorageConfig struct {
	// DBPath is the SQLite database location. When InMemory is set the
	// database is skipped and history lives in a bounded in-process registry.
	DBPath   string `json:"dbPath"`
	InMemory bool   `json:"inMemory,omitempty"`
}

type ArchiveConfig struct {
	// Dir receives one JSON file per webhook delivery; empty disables
	// archival.
	Dir string `json:"dir,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level"` // debug | info | warn | error
}

// DefaultConfigDir returns the default config directory (~/.zapdesk).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zapdesk"
	}
	return filepath.Join(home, ".zapdesk")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Storage.DBPath = expandPath(cfg.Storage.DBPath)
	cfg.Archive.Dir = expandPath(cfg.Archive.Dir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if !strings.HasPrefix(cfg.Server.WebhookPath, "/") {
		errs = append(errs, "server.webhookPath must start with /")
	}
	if cfg.WhatsApp.SendDelayMs < 0 {
		errs = append(errs, "whatsapp.sendDelayMs must be >= 0")
	}
	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	if !cfg.Storage.InMemory && cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.dbPath is required unless storage.inMemory is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
