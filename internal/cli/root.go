package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltway/distctl/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "distctl",
		Short: "distctl - Sign in to the distribution console",
		Long: `distctl drives the distribution console sign-in from a terminal.

It keeps the session between runs, walks through verification codes and
required password changes, and returns you to the page you asked for.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.Gateway, "gateway", "g", "", "Gateway name or URL from distctl.yaml")
	rootCmd.PersistentFlags().BoolVar(&opts.NoInput, "no-input", false, "Never prompt; print the next command instead")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "distctl version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewUseGatewayCmd())
	rootCmd.AddCommand(commands.NewLoginCmd(opts))
	rootCmd.AddCommand(commands.NewMFACmd(opts))
	rootCmd.AddCommand(commands.NewPasswordCmd(opts))
	rootCmd.AddCommand(commands.NewLogoutCmd(opts))
	rootCmd.AddCommand(commands.NewStatusCmd(opts))
	rootCmd.AddCommand(commands.NewVisitCmd(opts))
	rootCmd.AddCommand(commands.NewNextCmd(opts))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
