// Package config loads featsync settings from defaults, an optional YAML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ProjectConfigFile is looked up in the working directory when no path is given.
	ProjectConfigFile = "featsync.yaml"
	// DefaultBaseURL is the remote service used when none is configured.
	DefaultBaseURL = "https://app.testomat.io"

	OnMissingKeySkip = "skip"
	OnMissingKeyFail = "fail"
)

// ErrNoAPIKey is returned when an operation needs the remote service but no
// API key is configured.
var ErrNoAPIKey = errors.New("API key not provided")

// Config holds every setting featsync reads outside of command-line flags.
type Config struct {
	// APIKey authenticates against the remote service
	APIKey string `yaml:"api_key"`
	// BaseURL of the remote service (default: https://app.testomat.io)
	BaseURL string `yaml:"url"`
	Branch  string `yaml:"branch"`
	// Suite restricts a push to one remote suite
	Suite string `yaml:"suite"`
	// WorkDir replaces the analyzed directory as the base of reported file paths
	WorkDir string `yaml:"workdir"`
	// PrependDir is prefixed to every reported file path
	PrependDir string   `yaml:"prepend_dir"`
	Labels     []string `yaml:"labels"`
	// TitleIDs writes identifiers into titles instead of tag lines
	TitleIDs bool `yaml:"title_ids"`
	// OnMissingKey is what push does without an API key: "skip" or "fail"
	OnMissingKey string `yaml:"on_missing_key"`
	// JournalPath is the sqlite run journal; empty disables journaling
	JournalPath string     `yaml:"journal"`
	Code        CodeConfig `yaml:"code"`
}

// CodeConfig selects which enclosing text is prefixed to a scenario's code.
type CodeConfig struct {
	Feature    bool `yaml:"feature"`
	Rule       bool `yaml:"rule"`
	Background bool `yaml:"background"`
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      DefaultBaseURL,
		OnMissingKey: OnMissingKeySkip,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("url is required")
	}
	switch c.OnMissingKey {
	case OnMissingKeySkip, OnMissingKeyFail:
	default:
		return fmt.Errorf("on_missing_key must be %q or %q, got %q", OnMissingKeySkip, OnMissingKeyFail, c.OnMissingKey)
	}
	return nil
}

// HasAPIKey reports whether an API key is configured.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load builds the effective configuration. path names a YAML file; when
// empty, ProjectConfigFile is used if it exists in the working directory.
// A .env file in the working directory is loaded next, then environment
// variables override whatever the file set.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		if _, err := os.Stat(ProjectConfigFile); err == nil {
			path = ProjectConfigFile
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	// a missing .env is not an error
	_ = godotenv.Load()
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	if v := firstEnv("TESTOMATIO", "TESTOMATIO_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := getEnv("TESTOMATIO_URL", ""); v != "" {
		c.BaseURL = strings.TrimRight(v, "/")
	}
	c.Branch = getEnv("TESTOMATIO_BRANCH", c.Branch)
	c.Suite = getEnv("TESTOMATIO_SUITE", c.Suite)
	c.WorkDir = getEnv("TESTOMATIO_WORKDIR", c.WorkDir)
	c.PrependDir = getEnv("TESTOMATIO_PREPEND_DIR", c.PrependDir)
	if v := firstEnv("TESTOMATIO_LABELS", "TESTOMATIO_SYNC_LABELS"); v != "" {
		c.Labels = splitList(v)
	}
	c.TitleIDs = getEnvBool("TESTOMATIO_TITLE_IDS", c.TitleIDs)
	c.OnMissingKey = getEnv("TESTOMATIO_ON_MISSING_KEY", c.OnMissingKey)
	c.JournalPath = getEnv("TESTOMATIO_JOURNAL", c.JournalPath)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// splitList splits a comma-separated list, trimming entries and dropping empties.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
