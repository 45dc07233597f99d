package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/voltway/distctl/internal/config"
)

const (
	configFileName = "config.json"
)

// UserConfig represents the user's local configuration stored in ~/.config/distctl/config.json
type UserConfig struct {
	SelectedGateway string `json:"selected_gateway"`
}

// GetConfigPath returns the path to the user config file. DISTCTL_STATE_DIR
// overrides the directory.
func GetConfigPath() (string, error) {
	configDir := os.Getenv("DISTCTL_STATE_DIR")
	if configDir == "" {
		dir, err := config.DefaultStateDir()
		if err != nil {
			return "", err
		}
		configDir = dir
	}
	return filepath.Join(configDir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If config doesn't exist, return empty config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Create config directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetSelectedGateway updates the selected gateway name and saves the config
func SetSelectedGateway(name string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.SelectedGateway = name
	return Save(cfg)
}

// GetSelectedGateway returns the selected gateway name, or empty string if not set
func GetSelectedGateway() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}

	return cfg.SelectedGateway, nil
}
