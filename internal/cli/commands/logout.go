package commands

import (
	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			// Local state is cleared even when the gateway cannot be reached
			a.store.Logout(cmd.Context())
			a.printf("✓ Logged out of %s\n", a.gateway.Name)
			return nil
		},
	}
}
