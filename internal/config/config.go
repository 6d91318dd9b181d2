// Package config loads the tool's configuration: mandatory environment
// variables for the GitHub App identity plus an optional YAML file for
// server tuning.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen      = ":7878"
	defaultCloneURL    = "https://github.com/typst/packages.git"
	defaultPackagesDir = ".."
)

// Config is the resolved configuration for one process.
type Config struct {
	// PackagesDir is the local clone of the package registry repository.
	PackagesDir string
	// AppID is the numeric GitHub App identifier.
	AppID string
	// WebhookSecret is the shared HMAC secret for webhook verification.
	WebhookSecret string
	// PrivateKey is the App's PEM signing key. Never log it.
	PrivateKey string

	// Listen is the HTTP listen address (server mode).
	Listen string
	// CloneURL is cloned into PackagesDir when no repository exists there.
	CloneURL string
	// DisabledRules lists rule IDs to skip.
	DisabledRules []string
}

// fileConfig is the optional package-check.yaml schema.
type fileConfig struct {
	Listen        string   `yaml:"listen"`
	CloneURL      string   `yaml:"clone_url"`
	DisabledRules []string `yaml:"disabled_rules"`
}

// LoadCheck builds the configuration for CLI check mode, where only the
// registry clone location matters.
func LoadCheck() *Config {
	cfg := &Config{PackagesDir: os.Getenv("PACKAGES_DIR")}
	if cfg.PackagesDir == "" {
		cfg.PackagesDir = defaultPackagesDir
	}
	applyFile(cfg)
	return cfg
}

// LoadServer builds and validates the configuration for server mode. All
// four GitHub App environment variables are mandatory there.
func LoadServer() (*Config, error) {
	return load(true)
}

// LoadAction is LoadServer minus the webhook secret, which action mode never
// verifies (there is no inbound request to verify).
func LoadAction() (*Config, error) {
	return load(false)
}

func load(needSecret bool) (*Config, error) {
	cfg := &Config{
		PackagesDir:   os.Getenv("PACKAGES_DIR"),
		AppID:         os.Getenv("GITHUB_APP_IDENTIFIER"),
		WebhookSecret: os.Getenv("GITHUB_WEBHOOK_SECRET"),
		PrivateKey:    DecodePrivateKey(os.Getenv("GITHUB_PRIVATE_KEY")),
		Listen:        defaultListen,
		CloneURL:      defaultCloneURL,
	}
	applyFile(cfg)

	if err := validate(cfg, needSecret); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile overlays the optional YAML file onto the defaults.
func applyFile(cfg *Config) {
	for _, name := range []string{"package-check.yaml", ".package-check.yaml"} {
		data, err := os.ReadFile(name)
		if err != nil {
			continue
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			logger.Warnf("ignoring malformed config file %s: %v", name, err)
			return
		}
		if fc.Listen != "" {
			cfg.Listen = fc.Listen
		}
		if fc.CloneURL != "" {
			cfg.CloneURL = fc.CloneURL
		}
		cfg.DisabledRules = append(cfg.DisabledRules, fc.DisabledRules...)
		return
	}
}

func validate(cfg *Config, needSecret bool) error {
	if cfg.PackagesDir == "" {
		return errors.New("PACKAGES_DIR is not set")
	}
	if cfg.AppID == "" {
		return errors.New("GITHUB_APP_IDENTIFIER is not set")
	}
	if needSecret && cfg.WebhookSecret == "" {
		return errors.New("GITHUB_WEBHOOK_SECRET is not set")
	}
	if cfg.PrivateKey == "" {
		return errors.New("GITHUB_PRIVATE_KEY is not set")
	}
	if !strings.Contains(cfg.PrivateKey, "-----BEGIN") {
		return fmt.Errorf("GITHUB_PRIVATE_KEY does not look like a PEM key")
	}
	return nil
}

// DecodePrivateKey undoes the single-line encoding used to fit a PEM key
// into an environment variable, where '&' stands for a newline.
func DecodePrivateKey(raw string) string {
	return strings.ReplaceAll(raw, "&", "\n")
}

// Disabled returns the disabled rule set in lookup form.
func (c *Config) Disabled() map[string]bool {
	if len(c.DisabledRules) == 0 {
		return nil
	}
	disabled := make(map[string]bool, len(c.DisabledRules))
	for _, id := range c.DisabledRules {
		disabled[id] = true
	}
	return disabled
}
