// Package config loads and validates the engine's runtime
// configuration from YAML, with defaults suitable for local use.
package config

import (
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
)

// Config is the full runtime configuration.
type Config struct {
	Playbook   PlaybookConfig   `yaml:"playbook"`
	Session    SessionConfig    `yaml:"session"`
	Engine     EngineConfig     `yaml:"engine"`
	Logging    LoggingConfig    `yaml:"logging"`
	Escalation EscalationConfig `yaml:"escalation"`
}

// PlaybookConfig selects the persistence backend for the ledger.
type PlaybookConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=file sqlite"`
	Path        string `yaml:"path" validate:"required"`
	TokenBudget int    `yaml:"token_budget" validate:"gte=0"`
}

// SessionConfig names the working root whose agent and command assets
// sessions resolve.
type SessionConfig struct {
	Root string `yaml:"root" validate:"required"`
}

// EngineConfig binds sessions to an external reasoning engine. The API
// key is read from the named environment variable, never from the file.
type EngineConfig struct {
	Provider  string `yaml:"provider" validate:"oneof=anthropic scripted"`
	Model     string `yaml:"model" validate:"required"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// LoggingConfig controls log verbosity and the optional JSONL log file.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
}

// EscalationConfig tunes the skill-session escalation policy.
type EscalationConfig struct {
	Keywords        []string `yaml:"keywords"`
	RepeatThreshold int      `yaml:"repeat_threshold" validate:"gte=0"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Playbook: PlaybookConfig{
			Backend:     "file",
			Path:        "playbook.json",
			TokenBudget: playbook.DefaultTokenBudget,
		},
		Session: SessionConfig{Root: "."},
		Engine: EngineConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-5",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config over the defaults. An empty path yields the
// defaults; a named but unreadable file is a configuration failure.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.ConfigurationFailed, "failed to read config file"),
			errors.Fields{"path": path},
		)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.ConfigurationFailed, "failed to parse config file"),
			errors.Fields{"path": path},
		)
	}

	return cfg, cfg.Validate()
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks the structural constraints. Violations surface as one
// ConfigurationFailed error naming the offending fields.
func (c *Config) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New()
	})

	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, errors.ConfigurationFailed, "invalid configuration")
	}
	return nil
}

// Store builds the configured playbook store.
func (c *Config) Store() (playbook.Store, error) {
	switch c.Playbook.Backend {
	case "file":
		return playbook.NewFileStore(c.Playbook.Path, c.Playbook.TokenBudget), nil
	case "sqlite":
		return playbook.NewSQLiteStore(c.Playbook.Path, c.Playbook.TokenBudget)
	default:
		return nil, errors.WithFields(
			errors.New(errors.ConfigurationFailed, "unknown playbook backend"),
			errors.Fields{"backend": c.Playbook.Backend},
		)
	}
}

// APIKey resolves the engine credential from the environment.
func (c *Config) APIKey() string {
	if c.Engine.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Engine.APIKeyEnv)
}

// Severity maps the configured log level to a logging severity.
func (c *Config) Severity() logging.Severity {
	switch c.Logging.Level {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	default:
		return logging.INFO
	}
}
