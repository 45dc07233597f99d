package screens

import (
	"context"
	"errors"

	"github.com/voltway/distctl/internal/gateway"
	"github.com/voltway/distctl/internal/session"
)

// Screen is one step of the sign-in flow
type Screen interface {
	Route() string
	// Guard returns false and a route to go to instead when the session
	// cannot be served by this screen.
	Guard(st session.State) (string, bool)
	// Ready reports whether submit is enabled
	Ready() bool
	Validate() error
	// Submit dispatches the form and returns the next route
	Submit(ctx context.Context) (string, error)
	// LocalError is the message shown on the screen itself, empty when none
	LocalError() string
}

type base struct {
	sess Session
	err  string
}

func (b *base) LocalError() string {
	return b.err
}

func (b *base) busy() bool {
	return b.sess.State().IsLoading
}

// fail records err as the screen's message and returns it
func (b *base) fail(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		b.err = verr.Message
	} else {
		b.err = session.Message(err)
	}
	return err
}

// precheck gates a submit on readiness and field validation
func (b *base) precheck(s Screen) error {
	if !s.Ready() {
		return ErrNotReady
	}
	if err := s.Validate(); err != nil {
		return b.fail(err)
	}
	b.err = ""
	return nil
}

// routeFor maps a settled outcome to the next route. A forced reset never
// arrives as Authenticated: the store reports it as ResetRequired.
func routeFor(out session.Outcome, st session.State, r Redirector) string {
	switch out.(type) {
	case session.Authenticated:
		return r.ComputeRedirect()
	case session.MFARequired:
		return RouteMFA
	case session.ResetRequired:
		return RouteChangePassword
	case session.ResetComplete:
		return RouteLogin
	default:
		return Next(st, r)
	}
}

// guardAuthenticated sends a signed-in session on to where it belongs
func guardAuthenticated(st session.State, r Redirector) (string, bool) {
	if st.Phase() == session.PhaseAuthenticated {
		return Next(st, r), false
	}
	return "", true
}

func minLengthOr(n int) int {
	if n <= 0 {
		return DefaultPasswordMinLength
	}
	return n
}

// LoginForm holds the credential inputs
type LoginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// LoginScreen collects credentials
type LoginScreen struct {
	base
	redirects Redirector
	Form      LoginForm
}

func NewLoginScreen(sess Session, redirects Redirector) *LoginScreen {
	return &LoginScreen{base: base{sess: sess}, redirects: redirects}
}

func (s *LoginScreen) Route() string { return RouteLogin }

// Guard lets anyone without a session in, including users abandoning a
// pending challenge to start over.
func (s *LoginScreen) Guard(st session.State) (string, bool) {
	return guardAuthenticated(st, s.redirects)
}

func (s *LoginScreen) Ready() bool {
	return filled(s.Form.Email, s.Form.Password) && !s.busy()
}

func (s *LoginScreen) Validate() error {
	return validateForm(&s.Form, "", 0)
}

func (s *LoginScreen) Submit(ctx context.Context) (string, error) {
	if err := s.precheck(s); err != nil {
		return "", err
	}

	out, err := s.sess.Login(ctx, session.Credentials{Identifier: s.Form.Email, Secret: s.Form.Password})
	s.Form.Password = ""
	if err != nil {
		return "", s.fail(err)
	}
	return routeFor(out, s.sess.State(), s.redirects), nil
}

// MFAForm holds the verification code input
type MFAForm struct {
	Code string `validate:"required,len=6,number"`
}

// MFAScreen verifies the code sent after a login
type MFAScreen struct {
	base
	redirects Redirector
	Form      MFAForm
}

func NewMFAScreen(sess Session, redirects Redirector) *MFAScreen {
	return &MFAScreen{base: base{sess: sess}, redirects: redirects}
}

func (s *MFAScreen) Route() string { return RouteMFA }

func (s *MFAScreen) Guard(st session.State) (string, bool) {
	if !st.IsMFARequired || st.PendingEmail == "" {
		return RouteLogin, false
	}
	return "", true
}

// Email is the account the code was sent to
func (s *MFAScreen) Email() string {
	return s.sess.State().PendingEmail
}

func (s *MFAScreen) Ready() bool {
	return filled(s.Form.Code) && !s.busy()
}

func (s *MFAScreen) Validate() error {
	return validateForm(&s.Form, "", 0)
}

// Submit verifies the code. A rejected code is cleared so the user can
// enter a fresh one.
func (s *MFAScreen) Submit(ctx context.Context) (string, error) {
	if err := s.precheck(s); err != nil {
		s.Form.Code = ""
		return "", err
	}

	out, err := s.sess.VerifyMFA(ctx, s.Form.Code)
	if err != nil {
		s.Form.Code = ""
		if errors.Is(err, session.ErrNoPendingChallenge) {
			return RouteLogin, s.fail(err)
		}
		return "", s.fail(err)
	}
	return routeFor(out, s.sess.State(), s.redirects), nil
}

// Resend asks for a new code
func (s *MFAScreen) Resend(ctx context.Context) error {
	if s.busy() {
		return ErrNotReady
	}
	if err := s.sess.ResendOTP(ctx, gateway.PurposeMFA); err != nil {
		return s.fail(err)
	}
	s.err = ""
	return nil
}

// ForgotPasswordForm holds the account to reset
type ForgotPasswordForm struct {
	Email string `validate:"required,email"`
}

// ForgotPasswordScreen requests a reset code
type ForgotPasswordScreen struct {
	base
	redirects Redirector
	Form      ForgotPasswordForm
}

func NewForgotPasswordScreen(sess Session, redirects Redirector) *ForgotPasswordScreen {
	return &ForgotPasswordScreen{base: base{sess: sess}, redirects: redirects}
}

func (s *ForgotPasswordScreen) Route() string { return RouteForgotPassword }

func (s *ForgotPasswordScreen) Guard(st session.State) (string, bool) {
	return guardAuthenticated(st, s.redirects)
}

func (s *ForgotPasswordScreen) Ready() bool {
	return filled(s.Form.Email) && !s.busy()
}

func (s *ForgotPasswordScreen) Validate() error {
	return validateForm(&s.Form, "", 0)
}

func (s *ForgotPasswordScreen) Submit(ctx context.Context) (string, error) {
	if err := s.precheck(s); err != nil {
		return "", err
	}
	if err := s.sess.RequestPasswordReset(ctx, s.Form.Email); err != nil {
		return "", s.fail(err)
	}
	return RouteResetPassword, nil
}

// ResetPasswordForm holds a self-service reset
type ResetPasswordForm struct {
	Email       string `validate:"required,email"`
	OTP         string `validate:"required,len=6,number"`
	NewPassword string `validate:"required"`
	Confirm     string `validate:"required,eqfield=NewPassword"`
}

// ResetPasswordScreen completes a reset requested from the forgot screen
type ResetPasswordScreen struct {
	base
	redirects Redirector
	minLength int
	Form      ResetPasswordForm
}

func NewResetPasswordScreen(sess Session, redirects Redirector, minLength int) *ResetPasswordScreen {
	return &ResetPasswordScreen{base: base{sess: sess}, redirects: redirects, minLength: minLengthOr(minLength)}
}

func (s *ResetPasswordScreen) Route() string { return RouteResetPassword }

func (s *ResetPasswordScreen) Guard(st session.State) (string, bool) {
	return guardAuthenticated(st, s.redirects)
}

func (s *ResetPasswordScreen) Ready() bool {
	return filled(s.Form.Email, s.Form.OTP, s.Form.NewPassword, s.Form.Confirm) && !s.busy()
}

func (s *ResetPasswordScreen) Validate() error {
	return validateForm(&s.Form, s.Form.NewPassword, s.minLength)
}

func (s *ResetPasswordScreen) Submit(ctx context.Context) (string, error) {
	if err := s.precheck(s); err != nil {
		return "", err
	}

	out, err := s.sess.ResetPassword(ctx, session.PasswordReset{
		Email:       s.Form.Email,
		OTP:         s.Form.OTP,
		NewPassword: s.Form.NewPassword,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidOTP) {
			s.Form.OTP = ""
		}
		return "", s.fail(err)
	}
	return routeFor(out, s.sess.State(), s.redirects), nil
}

// Resend asks for a new reset code for the entered email
func (s *ResetPasswordScreen) Resend(ctx context.Context) error {
	if s.busy() || !filled(s.Form.Email) {
		return ErrNotReady
	}
	if err := s.sess.RequestPasswordReset(ctx, s.Form.Email); err != nil {
		return s.fail(err)
	}
	s.err = ""
	return nil
}

// ChangePasswordForm holds a forced password change. The account is the
// session's pending email.
type ChangePasswordForm struct {
	OTP         string `validate:"required,len=6,number"`
	NewPassword string `validate:"required"`
	Confirm     string `validate:"required,eqfield=NewPassword"`
}

// ChangePasswordScreen completes the password change a login demanded
type ChangePasswordScreen struct {
	base
	redirects Redirector
	minLength int
	Form      ChangePasswordForm
}

func NewChangePasswordScreen(sess Session, redirects Redirector, minLength int) *ChangePasswordScreen {
	return &ChangePasswordScreen{base: base{sess: sess}, redirects: redirects, minLength: minLengthOr(minLength)}
}

func (s *ChangePasswordScreen) Route() string { return RouteChangePassword }

// Guard admits only a pending forced reset. An MFA challenge still
// outstanding goes back to the MFA screen.
func (s *ChangePasswordScreen) Guard(st session.State) (string, bool) {
	switch st.Phase() {
	case session.PhaseResetPending:
		if st.PendingEmail == "" {
			return RouteLogin, false
		}
		return "", true
	case session.PhaseMFAPending:
		return RouteMFA, false
	default:
		return RouteLogin, false
	}
}

// Email is the account whose password is being changed
func (s *ChangePasswordScreen) Email() string {
	return s.sess.State().PendingEmail
}

func (s *ChangePasswordScreen) Ready() bool {
	return filled(s.Form.OTP, s.Form.NewPassword, s.Form.Confirm) && !s.busy()
}

func (s *ChangePasswordScreen) Validate() error {
	return validateForm(&s.Form, s.Form.NewPassword, s.minLength)
}

func (s *ChangePasswordScreen) Submit(ctx context.Context) (string, error) {
	if err := s.precheck(s); err != nil {
		return "", err
	}

	out, err := s.sess.ResetPassword(ctx, session.PasswordReset{
		OTP:         s.Form.OTP,
		NewPassword: s.Form.NewPassword,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidOTP) {
			s.Form.OTP = ""
		}
		if errors.Is(err, session.ErrMFAFirst) {
			return RouteMFA, s.fail(err)
		}
		return "", s.fail(err)
	}
	return routeFor(out, s.sess.State(), s.redirects), nil
}

// Resend asks for a new reset code
func (s *ChangePasswordScreen) Resend(ctx context.Context) error {
	if s.busy() {
		return ErrNotReady
	}
	if err := s.sess.ResendOTP(ctx, gateway.PurposePasswordReset); err != nil {
		return s.fail(err)
	}
	s.err = ""
	return nil
}
