package screens

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxAttempts bounds code entry per screen in an interactive flow
const DefaultMaxAttempts = 3

// ErrFlowAbandoned means the user ran out of attempts or declined to go on
var ErrFlowAbandoned = errors.New("sign-in abandoned")

// Flow drives the screens interactively
type Flow struct {
	Session           Session
	Redirects         Redirector
	Prompter          Prompter
	PasswordMinLength int
	MaxAttempts       int

	// Email prefills the login and reset forms
	Email string
	// Password prefills the login form
	Password string
}

// Run starts at route and walks the screens until the flow reaches a route
// outside the sign-in screens, which it returns.
func (f *Flow) Run(ctx context.Context, route string) (string, error) {
	for steps := 0; IsAuthRoute(route); steps++ {
		if steps > 2*len(f.routes()) {
			return "", fmt.Errorf("sign-in did not settle at %s", route)
		}
		screen := f.screen(route)
		if redirect, ok := screen.Guard(f.Session.State()); !ok {
			route = redirect
			continue
		}

		next, err := f.step(ctx, screen)
		if err != nil {
			return "", err
		}
		route = next
	}
	return route, nil
}

func (f *Flow) routes() []string {
	return []string{RouteLogin, RouteMFA, RouteForgotPassword, RouteResetPassword, RouteChangePassword}
}

func (f *Flow) maxAttempts() int {
	if f.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return f.MaxAttempts
}

func (f *Flow) screen(route string) Screen {
	switch route {
	case RouteMFA:
		return NewMFAScreen(f.Session, f.Redirects)
	case RouteForgotPassword:
		return NewForgotPasswordScreen(f.Session, f.Redirects)
	case RouteResetPassword:
		return NewResetPasswordScreen(f.Session, f.Redirects, f.PasswordMinLength)
	case RouteChangePassword:
		return NewChangePasswordScreen(f.Session, f.Redirects, f.PasswordMinLength)
	default:
		return NewLoginScreen(f.Session, f.Redirects)
	}
}

// step fills and submits one screen, retrying field and gateway errors up
// to the attempt limit.
func (f *Flow) step(ctx context.Context, screen Screen) (string, error) {
	var lastErr error
	for attempt := 0; attempt < f.maxAttempts(); attempt++ {
		if err := f.fill(ctx, screen); err != nil {
			return "", err
		}

		next, err := screen.Submit(ctx)
		if err == nil {
			return f.after(ctx, screen, next)
		}
		if next != "" {
			// The screen sent us elsewhere (e.g. the challenge is gone)
			f.Prompter.Printf("%s\n", screen.LocalError())
			return next, nil
		}
		lastErr = err
		if msg := screen.LocalError(); msg != "" {
			f.Prompter.Printf("✗ %s\n", msg)
		}
	}
	return "", fmt.Errorf("%w: %v", ErrFlowAbandoned, lastErr)
}

// after handles the hand-off between screens. A forced change that did not
// grant a session signs in again with the new password.
func (f *Flow) after(ctx context.Context, screen Screen, next string) (string, error) {
	switch s := screen.(type) {
	case *ForgotPasswordScreen:
		f.Email = s.Form.Email
		f.Prompter.Printf("If the account exists, a reset code has been sent to %s\n", s.Form.Email)
	case *ResetPasswordScreen:
		if next == RouteLogin {
			f.Prompter.Printf("✓ Password reset. Sign in with your new password.\n")
			f.Email, f.Password = s.Form.Email, ""
		}
	case *ChangePasswordScreen:
		if next == RouteLogin {
			f.Prompter.Printf("✓ Password changed. Signing in...\n")
			f.Password = s.Form.NewPassword
		}
	case *LoginScreen:
		f.Email = s.Form.Email
	}
	return next, nil
}

// fill prompts for every empty field of the screen's form
func (f *Flow) fill(ctx context.Context, screen Screen) error {
	p := f.Prompter
	var err error
	switch s := screen.(type) {
	case *LoginScreen:
		if s.Form.Email == "" {
			if f.Email != "" && f.Password != "" {
				s.Form.Email = f.Email
			} else if s.Form.Email, err = p.Text("Email", f.Email); err != nil {
				return err
			}
		}
		if s.Form.Password == "" {
			if f.Password != "" {
				s.Form.Password, f.Password = f.Password, ""
			} else if s.Form.Password, err = p.Secret("Password"); err != nil {
				return err
			}
		}

	case *MFAScreen:
		if s.LocalError() != "" {
			resend, err := p.Confirm("Send a new code")
			if err != nil {
				return err
			}
			if resend {
				if err := s.Resend(ctx); err != nil {
					return err
				}
				p.Printf("A new code has been sent to %s\n", s.Email())
			}
		}
		if s.Form.Code, err = p.Text("Verification code for "+s.Email(), ""); err != nil {
			return err
		}

	case *ForgotPasswordScreen:
		if s.Form.Email == "" {
			if s.Form.Email, err = p.Text("Email", f.Email); err != nil {
				return err
			}
		}

	case *ResetPasswordScreen:
		if s.Form.Email == "" {
			if s.Form.Email, err = p.Text("Email", f.Email); err != nil {
				return err
			}
		}
		return fillPasswordChange(p, &s.Form.OTP, &s.Form.NewPassword, &s.Form.Confirm, s.LocalError() != "")

	case *ChangePasswordScreen:
		f.Email = s.Email()
		if s.LocalError() == "" {
			p.Printf("A password change is required for %s. A reset code has been sent.\n", s.Email())
		}
		return fillPasswordChange(p, &s.Form.OTP, &s.Form.NewPassword, &s.Form.Confirm, s.LocalError() != "")
	}
	return nil
}

func fillPasswordChange(p Prompter, otp, password, confirm *string, retry bool) error {
	var err error
	if *otp == "" {
		if *otp, err = p.Text("Reset code", ""); err != nil {
			return err
		}
	}
	if *password == "" || retry {
		if *password, err = p.Secret("New password"); err != nil {
			return err
		}
		if *confirm, err = p.Secret("Confirm new password"); err != nil {
			return err
		}
	}
	return nil
}
