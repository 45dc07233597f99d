package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltway/distctl/internal/cli/screens"
)

// NewMFACmd creates the mfa command group
func NewMFACmd(opts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mfa",
		Short: "Complete a multi-factor verification",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <code>",
		Short: "Submit the 6-digit verification code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMFAVerify(cmd, opts, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resend",
		Short: "Send a new verification code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMFAResend(cmd, opts)
		},
	})

	return cmd
}

func runMFAVerify(cmd *cobra.Command, opts *GlobalOptions, code string) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	screen := screens.NewMFAScreen(a.store, a.tracker)
	if route, ok := screen.Guard(a.store.State()); !ok {
		a.printf("No verification is in progress\n")
		return a.land(ctx, route)
	}

	screen.Form.Code = code
	route, err := screen.Submit(ctx)
	if err != nil {
		if route != "" {
			_ = a.land(ctx, route)
		}
		return fmt.Errorf("verification failed: %s", screen.LocalError())
	}
	return a.land(ctx, route)
}

func runMFAResend(cmd *cobra.Command, opts *GlobalOptions) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	screen := screens.NewMFAScreen(a.store, a.tracker)
	if route, ok := screen.Guard(a.store.State()); !ok {
		a.printf("No verification is in progress\n")
		return a.land(ctx, route)
	}

	if err := screen.Resend(ctx); err != nil {
		return fmt.Errorf("failed to send a new code: %s", screen.LocalError())
	}
	a.printf("✓ A new verification code was sent to %s\n", screen.Email())
	return nil
}
