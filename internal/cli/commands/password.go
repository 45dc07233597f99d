package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltway/distctl/internal/cli/screens"
)

// NewPasswordCmd creates the password command group
func NewPasswordCmd(opts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Reset or change your password",
	}

	cmd.AddCommand(newPasswordForgotCmd(opts))
	cmd.AddCommand(newPasswordResetCmd(opts))
	cmd.AddCommand(newPasswordChangeCmd(opts))

	return cmd
}

func newPasswordForgotCmd(opts *GlobalOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot",
		Short: "Request a password reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasswordForgot(cmd, opts, envOr(email, "DISTCTL_EMAIL"))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set DISTCTL_EMAIL)")
	return cmd
}

func runPasswordForgot(cmd *cobra.Command, opts *GlobalOptions, email string) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	if a.interactive {
		dest, err := a.flow(email, "").Run(ctx, screens.RouteForgotPassword)
		if err != nil {
			return err
		}
		return a.land(ctx, dest)
	}

	screen := screens.NewForgotPasswordScreen(a.store, a.tracker)
	if route, ok := screen.Guard(a.store.State()); !ok {
		a.printf("Already signed in\n")
		return a.land(ctx, route)
	}

	screen.Form.Email = email
	route, err := screen.Submit(ctx)
	if err != nil {
		return fmt.Errorf("reset request failed: %s", errorText(screen, err))
	}
	a.printf("If the account exists, a reset code has been sent to %s\n", email)
	return a.land(ctx, route)
}

type passwordFlags struct {
	email       string
	otp         string
	newPassword string
	confirm     string
}

func (f *passwordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.otp, "otp", "", "6-digit reset code")
	cmd.Flags().StringVar(&f.newPassword, "new-password", "", "New password")
	cmd.Flags().StringVar(&f.confirm, "confirm", "", "New password again (defaults to --new-password)")
}

func (f *passwordFlags) confirmation() string {
	if f.confirm == "" {
		return f.newPassword
	}
	return f.confirm
}

func newPasswordResetCmd(opts *GlobalOptions) *cobra.Command {
	var flags passwordFlags

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with a reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.email = envOr(flags.email, "DISTCTL_EMAIL")
			return runPasswordReset(cmd, opts, &flags)
		},
	}

	cmd.Flags().StringVar(&flags.email, "email", "", "Email address (or set DISTCTL_EMAIL)")
	flags.register(cmd)
	return cmd
}

func runPasswordReset(cmd *cobra.Command, opts *GlobalOptions, flags *passwordFlags) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	if a.interactive && (flags.otp == "" || flags.newPassword == "") {
		dest, err := a.flow(flags.email, "").Run(ctx, screens.RouteResetPassword)
		if err != nil {
			return err
		}
		return a.land(ctx, dest)
	}

	screen := screens.NewResetPasswordScreen(a.store, a.tracker, a.minLength)
	if route, ok := screen.Guard(a.store.State()); !ok {
		a.printf("Already signed in\n")
		return a.land(ctx, route)
	}

	screen.Form = screens.ResetPasswordForm{
		Email:       flags.email,
		OTP:         flags.otp,
		NewPassword: flags.newPassword,
		Confirm:     flags.confirmation(),
	}
	route, err := screen.Submit(ctx)
	if err != nil {
		return fmt.Errorf("password reset failed: %s", errorText(screen, err))
	}

	if route == screens.RouteLogin {
		a.printf("✓ Password reset. Sign in with your new password.\n")
		return nil
	}
	return a.land(ctx, route)
}

func newPasswordChangeCmd(opts *GlobalOptions) *cobra.Command {
	var flags passwordFlags
	var resend bool

	cmd := &cobra.Command{
		Use:   "change",
		Short: "Complete a required password change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasswordChange(cmd, opts, &flags, resend)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&resend, "resend", false, "Send a new reset code instead of changing the password")
	return cmd
}

func runPasswordChange(cmd *cobra.Command, opts *GlobalOptions, flags *passwordFlags, resend bool) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	screen := screens.NewChangePasswordScreen(a.store, a.tracker, a.minLength)
	if route, ok := screen.Guard(a.store.State()); !ok {
		a.printf("No password change is pending\n")
		return a.land(ctx, route)
	}
	email := screen.Email()

	if resend {
		if err := screen.Resend(ctx); err != nil {
			return fmt.Errorf("failed to send a new code: %s", screen.LocalError())
		}
		a.printf("✓ A new reset code was sent to %s\n", email)
		return nil
	}

	if a.interactive && (flags.otp == "" || flags.newPassword == "") {
		dest, err := a.flow(email, "").Run(ctx, screens.RouteChangePassword)
		if err != nil {
			return err
		}
		return a.land(ctx, dest)
	}

	screen.Form = screens.ChangePasswordForm{
		OTP:         flags.otp,
		NewPassword: flags.newPassword,
		Confirm:     flags.confirmation(),
	}
	route, err := screen.Submit(ctx)
	if err != nil {
		if route != "" {
			_ = a.land(ctx, route)
		}
		return fmt.Errorf("password change failed: %s", errorText(screen, err))
	}

	if route != screens.RouteLogin {
		return a.land(ctx, route)
	}

	// No session was granted: sign in again with the new password
	a.printf("✓ Password changed. Signing in...\n")
	login := screens.NewLoginScreen(a.store, a.tracker)
	login.Form = screens.LoginForm{Email: email, Password: flags.newPassword}
	route, err = login.Submit(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %s", login.LocalError())
	}
	return a.land(ctx, route)
}

// errorText prefers the screen's message, which covers field validation
func errorText(screen screens.Screen, err error) string {
	if msg := screen.LocalError(); msg != "" {
		return msg
	}
	return err.Error()
}
