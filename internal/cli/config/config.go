// Package config reads distctl.yaml, the per-project list of gateway
// profiles and redirect settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const ConfigFileName = "distctl.yaml"

// ErrNotFound means no distctl.yaml exists in the directory or its parents
var ErrNotFound = errors.New(ConfigFileName + " not found")

// Gateway is one authentication API the console can talk to
type Gateway struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Insecure bool   `yaml:"insecure,omitempty"` // accept self-signed certificates
}

// Redirect overrides the post-login redirect defaults
type Redirect struct {
	DefaultPath string   `yaml:"default_path,omitempty"`
	Exclude     []string `yaml:"exclude,omitempty"`
}

// Config represents the project configuration file
type Config struct {
	Gateways          []Gateway `yaml:"gateways"`
	Redirect          Redirect  `yaml:"redirect,omitempty"`
	PasswordMinLength int       `yaml:"password_min_length,omitempty"`
}

// DefaultConfig returns a configuration pointing at a local simulator
func DefaultConfig() *Config {
	return &Config{
		Gateways: []Gateway{
			{
				Name: "local",
				URL:  "http://localhost:8080",
			},
		},
	}
}

// FindConfigFile searches for distctl.yaml in the current directory and its parents
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return FindConfigFileFrom(currentDir)
}

// FindConfigFileFrom searches upwards from dir
func FindConfigFileFrom(start string) (string, error) {
	dir := start
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%w in %s or any parent directory", ErrNotFound, start)
}

// Load reads and validates the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads config from current directory or parent directories
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return nil, err
	}

	return Load(configPath)
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks gateway names and URLs and the redirect paths
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Gateways))
	for i, gw := range c.Gateways {
		if gw.Name == "" {
			return fmt.Errorf("gateway #%d has no name", i+1)
		}
		if seen[gw.Name] {
			return fmt.Errorf("duplicate gateway name '%s'", gw.Name)
		}
		seen[gw.Name] = true

		u, err := url.Parse(gw.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("gateway '%s' has invalid url '%s'", gw.Name, gw.URL)
		}
	}

	if p := c.Redirect.DefaultPath; p != "" && !strings.HasPrefix(p, "/") {
		return fmt.Errorf("redirect default_path must start with '/': %q", p)
	}
	for _, p := range c.Redirect.Exclude {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("redirect exclude entries must start with '/': %q", p)
		}
	}
	if c.PasswordMinLength < 0 {
		return fmt.Errorf("password_min_length must not be negative")
	}
	return nil
}

// GetGatewayByName returns a gateway by its name
func (c *Config) GetGatewayByName(name string) (*Gateway, error) {
	for i := range c.Gateways {
		if c.Gateways[i].Name == name {
			return &c.Gateways[i], nil
		}
	}
	return nil, fmt.Errorf("gateway '%s' not found", name)
}

// GetGatewayByNameOrURL finds a gateway by name, then by URL
func (c *Config) GetGatewayByNameOrURL(nameOrURL string) (*Gateway, error) {
	if gw, err := c.GetGatewayByName(nameOrURL); err == nil {
		return gw, nil
	}
	trimmed := strings.TrimRight(nameOrURL, "/")
	for i := range c.Gateways {
		if strings.TrimRight(c.Gateways[i].URL, "/") == trimmed {
			return &c.Gateways[i], nil
		}
	}
	return nil, fmt.Errorf("gateway with name or url '%s' not found", nameOrURL)
}

// GetDefaultGateway returns the first gateway in the list
func (c *Config) GetDefaultGateway() (*Gateway, error) {
	if len(c.Gateways) == 0 {
		return nil, fmt.Errorf("no gateways configured in %s", ConfigFileName)
	}
	return &c.Gateways[0], nil
}
