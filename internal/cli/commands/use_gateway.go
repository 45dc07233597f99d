package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltway/distctl/internal/cli/config"
	"github.com/voltway/distctl/internal/cli/gatewayselect"
	"github.com/voltway/distctl/internal/cli/userconfig"
)

// NewUseGatewayCmd creates the use-gateway command
func NewUseGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use-gateway [name-or-url]",
		Short: "Select the gateway to use for commands",
		Long: `Select the gateway to use for commands.

If no param is provided, an interactive prompt will be shown.

Examples:
  $ distctl use-gateway                          # Interactive selection
  $ distctl use-gateway staging                  # Select by name
  $ distctl use-gateway https://auth.example.com # Select by URL`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var nameOrURL string
			if len(args) > 0 {
				nameOrURL = args[0]
			}
			return runUseGateway(cmd, nameOrURL)
		},
	}

	return cmd
}

func runUseGateway(cmd *cobra.Command, nameOrURL string) error {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'distctl init <url>' to create a configuration file", err)
	}

	var gw *config.Gateway
	if nameOrURL != "" {
		gw, err = cfg.GetGatewayByNameOrURL(nameOrURL)
	} else {
		gw, err = gatewayselect.PromptGatewaySelection(cfg)
	}
	if err != nil {
		return err
	}

	if err := userconfig.SetSelectedGateway(gw.Name); err != nil {
		return fmt.Errorf("failed to save selected gateway: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Selected gateway: %s (%s)\n", gw.Name, gw.URL)
	return nil
}
