package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltway/distctl/internal/cli/screens"
)

// NewLoginCmd creates the login command
func NewLoginCmd(opts *GlobalOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the distribution console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, opts, envOr(email, "DISTCTL_EMAIL"), envOr(password, "DISTCTL_PASSWORD"))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set DISTCTL_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set DISTCTL_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *GlobalOptions, email, password string) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	a.printf("Signing in to %s (%s)...\n", a.gateway.Name, a.gateway.URL)

	if a.interactive {
		dest, err := a.flow(email, password).Run(ctx, screens.RouteLogin)
		if err != nil {
			return err
		}
		return a.land(ctx, dest)
	}

	// Non-interactive mode never prompts
	if email == "" {
		return fmt.Errorf("email is required (use --email flag or DISTCTL_EMAIL env var)")
	}
	if password == "" {
		return fmt.Errorf("password is required in non-interactive mode (use --password flag or DISTCTL_PASSWORD env var)")
	}

	screen := screens.NewLoginScreen(a.store, a.tracker)
	if route, ok := screen.Guard(a.store.State()); !ok {
		a.printf("Already signed in\n")
		return a.land(ctx, route)
	}

	screen.Form = screens.LoginForm{Email: email, Password: password}
	route, err := screen.Submit(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %s", screen.LocalError())
	}
	return a.land(ctx, route)
}
