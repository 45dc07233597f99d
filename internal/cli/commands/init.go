package commands

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voltway/distctl/internal/cli/config"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	var name string
	var insecure bool

	cmd := &cobra.Command{
		Use:   "init <gateway-url>",
		Short: "Add an authentication gateway to distctl.yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, args[0], name, insecure)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Profile name (defaults to production, then gateway-N)")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "Accept self-signed TLS certificates")

	return cmd
}

func runInit(cmd *cobra.Command, rawURL, name string, insecure bool) error {
	out := cmd.OutOrStdout()
	gatewayURL := strings.TrimRight(rawURL, "/")
	if u, err := url.Parse(gatewayURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid gateway URL %q: expected http(s)://host", rawURL)
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Fprintf(out, "Found existing %s\n", config.ConfigFileName)
	} else if errors.Is(err, os.ErrNotExist) {
		cfg = &config.Config{Gateways: []config.Gateway{}}
		isNewConfig = true
	} else {
		return fmt.Errorf("failed to check %s: %w", config.ConfigFileName, err)
	}

	if existing, err := cfg.GetGatewayByNameOrURL(gatewayURL); err == nil {
		fmt.Fprintf(out, "Gateway %s already exists in %s as %s\n", gatewayURL, config.ConfigFileName, existing.Name)
		return nil
	}

	if name == "" {
		if len(cfg.Gateways) == 0 {
			name = "production"
		} else {
			name = fmt.Sprintf("gateway-%d", len(cfg.Gateways)+1)
		}
	}
	if _, err := cfg.GetGatewayByName(name); err == nil {
		return fmt.Errorf("a gateway named %q already exists in %s", name, config.ConfigFileName)
	}

	cfg.Gateways = append(cfg.Gateways, config.Gateway{Name: name, URL: gatewayURL, Insecure: insecure})
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		fmt.Fprintf(out, "✓ Created ./%s with gateway %s (%s)\n", config.ConfigFileName, gatewayURL, name)
	} else {
		fmt.Fprintf(out, "✓ Added gateway %s (%s) to ./%s\n", gatewayURL, name, config.ConfigFileName)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'distctl login' to authenticate")
	fmt.Fprintln(out, "  2. Run 'distctl visit <path>' to open a console page")

	return nil
}
