package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/brightfame/crewgen/internal/constants"
)

type Config struct {
	Project       ProjectConfig       `toml:"project"`
	LLM           LLMConfig           `toml:"llm"`
	Output        OutputConfig        `toml:"output"`
	Logging       LoggingConfig       `toml:"logging"`
	Notifications NotificationsConfig `toml:"notifications"`
	Git           GitConfig           `toml:"git"`

	// Credentials are only read from the environment, never from the TOML file.
	Credentials Credentials `toml:"-"`

	warnings []string
}

type ProjectConfig struct {
	Name            string `toml:"name"`
	Description     string `toml:"description"`
	Features        string `toml:"features"`
	TechnologyStack string `toml:"technology_stack"`
}

type LLMConfig struct {
	Provider  string   `toml:"provider"`
	Model     string   `toml:"model"`
	Command   string   `toml:"command"`
	Args      []string `toml:"args"`
	MaxRPM    int      `toml:"max_rpm"`
	TestMode  bool     `toml:"test_mode"`
	ReplayDir string   `toml:"replay_dir"`
}

type OutputConfig struct {
	BaseDir string `toml:"base_dir"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type NotificationsConfig struct {
	WebhookURL string `toml:"webhook_url"`
}

type GitConfig struct {
	Snapshot    bool   `toml:"snapshot"`
	AuthorName  string `toml:"author_name"`
	AuthorEmail string `toml:"author_email"`
}

// Credentials holds provider secrets taken from the environment.
type Credentials struct {
	OpenAIAPIKey          string
	AnthropicAPIKey       string
	AzureOpenAIAPIKey     string
	AzureOpenAIAPIBase    string
	AzureOpenAIAPIVersion string
}

// Env returns the non-empty credentials as KEY=value pairs.
func (c Credentials) Env() []string {
	pairs := []struct{ key, value string }{
		{"OPENAI_API_KEY", c.OpenAIAPIKey},
		{"ANTHROPIC_API_KEY", c.AnthropicAPIKey},
		{"AZURE_OPENAI_API_KEY", c.AzureOpenAIAPIKey},
		{"AZURE_OPENAI_API_BASE", c.AzureOpenAIAPIBase},
		{"AZURE_OPENAI_API_VERSION", c.AzureOpenAIAPIVersion},
	}
	var env []string
	for _, p := range pairs {
		if p.value != "" {
			env = append(env, p.key+"="+p.value)
		}
	}
	return env
}

// Providers lists the supported values of llm.provider.
var Providers = []string{"openai", "anthropic", "azure"}

// Default returns the configuration used when no crewgen.toml exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a TOML config file from path and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := finish(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDir loads <dir>/.env (if present) into the environment, then reads
// <dir>/crewgen.toml or falls back to defaults when it does not exist.
func LoadDir(dir string) (*Config, error) {
	envPath := filepath.Join(dir, constants.EnvFile)
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", constants.EnvFile, err)
	}

	path := filepath.Join(dir, constants.ConfigFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		cfg := &Config{}
		if err := finish(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

// Write encodes cfg as TOML to path.
func Write(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		_ = f.Close()
		return fmt.Errorf("encoding config: %w", err)
	}
	return f.Close()
}

// Warnings returns non-fatal problems found while loading, such as missing
// credentials for the selected provider.
func (c *Config) Warnings() []string {
	return c.warnings
}

// SlogLevel returns the parsed logging level.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func finish(cfg *Config) error {
	if err := applyEnv(cfg); err != nil {
		return err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return err
	}
	cfg.warnings = credentialWarnings(cfg)
	return nil
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("DEFAULT_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("DEFAULT_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OUTPUT_BASE_DIR"); v != "" {
		cfg.Output.BaseDir = v
	}
	if v := os.Getenv("MAX_RPM"); v != "" {
		rpm, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MAX_RPM: %w", err)
		}
		cfg.LLM.MaxRPM = rpm
	}
	if v := os.Getenv("TEST_MODE"); v != "" {
		cfg.LLM.TestMode = strings.EqualFold(v, "true")
	}

	cfg.Credentials = Credentials{
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		AzureOpenAIAPIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		AzureOpenAIAPIBase:    os.Getenv("AZURE_OPENAI_API_BASE"),
		AzureOpenAIAPIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
	}
	return nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-sonnet-4-5"
	}
	if cfg.LLM.Command == "" {
		cfg.LLM.Command = "claude"
		if len(cfg.LLM.Args) == 0 {
			cfg.LLM.Args = []string{"--print", "--model", "${MODEL}"}
		}
	}
	if cfg.LLM.MaxRPM == 0 {
		cfg.LLM.MaxRPM = 10
	}
	if cfg.Output.BaseDir == "" {
		cfg.Output.BaseDir = "."
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = constants.RunLogFile
	}
	if cfg.Git.Snapshot {
		if cfg.Git.AuthorName == "" {
			if name, err := exec.Command("git", "config", "user.name").Output(); err == nil {
				cfg.Git.AuthorName = strings.TrimSpace(string(name))
			}
		}
		if cfg.Git.AuthorEmail == "" {
			if email, err := exec.Command("git", "config", "user.email").Output(); err == nil {
				cfg.Git.AuthorEmail = strings.TrimSpace(string(email))
			}
		}
	}
}

func validate(cfg *Config) error {
	valid := false
	for _, p := range Providers {
		if cfg.LLM.Provider == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid llm.provider: %q", cfg.LLM.Provider)
	}

	if cfg.LLM.MaxRPM < 0 {
		return fmt.Errorf("llm.max_rpm must not be negative")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", cfg.Logging.Level)
	}

	if cfg.LLM.TestMode && cfg.LLM.ReplayDir == "" {
		return fmt.Errorf("llm.replay_dir is required when test_mode is enabled")
	}

	return nil
}

func credentialWarnings(cfg *Config) []string {
	c := cfg.Credentials
	var warnings []string

	if c.OpenAIAPIKey == "" && c.AnthropicAPIKey == "" && c.AzureOpenAIAPIKey == "" {
		warnings = append(warnings, "no API keys found; set at least one of OPENAI_API_KEY, ANTHROPIC_API_KEY or AZURE_OPENAI_API_KEY")
	}

	switch cfg.LLM.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			warnings = append(warnings, "openai selected as provider but OPENAI_API_KEY is not set")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			warnings = append(warnings, "anthropic selected as provider but ANTHROPIC_API_KEY is not set")
		}
	case "azure":
		if c.AzureOpenAIAPIKey == "" {
			warnings = append(warnings, "azure selected as provider but AZURE_OPENAI_API_KEY is not set")
		}
		if c.AzureOpenAIAPIBase == "" {
			warnings = append(warnings, "azure selected as provider but AZURE_OPENAI_API_BASE is not set")
		}
	}
	return warnings
}
