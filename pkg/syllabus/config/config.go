// Package config loads pipeline configuration from the environment, with an
// optional YAML file for per-deployment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds everything the pipeline needs: credentials and endpoint for
// the extraction service, and the storage location.
type Config struct {
	GoogleAPIKey string `envconfig:"GOOGLE_API_KEY" required:"true"`

	Model          string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash-lite"`
	BaseURL        string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	PollInterval   time.Duration `envconfig:"GEMINI_POLL_INTERVAL" default:"2s"`
	RequestTimeout time.Duration `envconfig:"GEMINI_REQUEST_TIMEOUT" default:"2m"`

	DBPath string `envconfig:"SYLLABUS_DB" default:"syllabus_master.db"`

	// Prompt overrides the built-in extraction prompt when non-empty.
	// Settable only via the config file.
	Prompt string `ignored:"true"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored if present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// fileOverrides is the shape of the optional YAML config file. Empty fields
// leave the environment-derived value in place.
type fileOverrides struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	DBPath  string `yaml:"db_path"`
	Prompt  string `yaml:"prompt"`
}

// ApplyFile overlays settings from a YAML file onto c.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f fileOverrides
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Model != "" {
		c.Model = f.Model
	}
	if f.BaseURL != "" {
		c.BaseURL = f.BaseURL
	}
	if f.DBPath != "" {
		c.DBPath = f.DBPath
	}
	if f.Prompt != "" {
		c.Prompt = f.Prompt
	}
	return nil
}
