// Package config loads and writes the endpoint settings in ~/.halp.env.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Keys as they appear in the env file.
const (
	KeyBaseURL      = "BASE_URL"
	KeyAPIKey       = "API_KEY"
	KeyDefaultModel = "DEFAULT_MODEL"
)

const envPrefix = "HALP"

// ErrIncomplete is returned by Validate when the endpoint or model is missing.
var ErrIncomplete = errors.New("BASE_URL and DEFAULT_MODEL are required. Set them in ~/.halp.env or via CLI overrides")

// Config holds the effective endpoint settings.
type Config struct {
	BaseURL      string `yaml:"BASE_URL"`
	APIKey       string `yaml:"API_KEY"`
	DefaultModel string `yaml:"DEFAULT_MODEL"`
}

// Overrides come from command-line flags. Empty fields are ignored.
type Overrides struct {
	BaseURL      string
	APIKey       string
	DefaultModel string
}

func (o Overrides) any() bool {
	return o.BaseURL != "" || o.APIKey != "" || o.DefaultModel != ""
}

// Load reads path (if it exists), then HALP_* environment variables, then overrides.
// Later sources win.
func Load(path string, overrides Overrides) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	if fileExists(path) {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	applyOverrides(v, overrides)
	return fromViper(v), nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("env")

	for _, key := range []string{KeyBaseURL, KeyAPIKey, KeyDefaultModel} {
		if err := v.BindEnv(key, envPrefix+"_"+key); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}
	return v, nil
}

func applyOverrides(v *viper.Viper, o Overrides) {
	if o.BaseURL != "" {
		v.Set(KeyBaseURL, o.BaseURL)
	}
	if o.APIKey != "" {
		v.Set(KeyAPIKey, o.APIKey)
	}
	if o.DefaultModel != "" {
		v.Set(KeyDefaultModel, o.DefaultModel)
	}
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		BaseURL:      strings.TrimSpace(v.GetString(KeyBaseURL)),
		APIKey:       strings.TrimSpace(v.GetString(KeyAPIKey)),
		DefaultModel: strings.TrimSpace(v.GetString(KeyDefaultModel)),
	}
}

// Validate checks the settings needed to talk to a model.
func (c *Config) Validate() error {
	if c.BaseURL == "" || c.DefaultModel == "" {
		return ErrIncomplete
	}
	return nil
}

// Write stores cfg at path as KEY=VALUE lines in a fixed order, readable only by the owner.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	content := fmt.Sprintf("%s=%s\n%s=%s\n%s=%s\n",
		KeyBaseURL, cfg.BaseURL,
		KeyAPIKey, cfg.APIKey,
		KeyDefaultModel, cfg.DefaultModel,
	)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("restricting config file: %w", err)
	}
	return nil
}

// Masked returns a copy safe to print.
func (c *Config) Masked() Config {
	masked := *c
	masked.APIKey = MaskSecret(c.APIKey)
	return masked
}

// MaskSecret keeps a short prefix and suffix of long secrets and hides short ones entirely.
func MaskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return strings.Repeat("*", len(secret))
	default:
		return secret[:3] + "..." + secret[len(secret)-4:]
	}
}

// Dump prints the masked config as YAML.
func (c *Config) Dump(w io.Writer) error {
	data, err := yaml.Marshal(c.Masked())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
