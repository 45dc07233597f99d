// Package screens is the view layer of the sign-in flow. Each screen holds
// local form state, validates it, and dispatches to the session store; the
// route it returns says where the user goes next.
package screens

import (
	"context"

	"github.com/voltway/distctl/internal/gateway"
	"github.com/voltway/distctl/internal/session"
)

const (
	RouteLogin          = "/auth/login"
	RouteMFA            = "/auth/mfa"
	RouteForgotPassword = "/auth/forgot-password"
	RouteResetPassword  = "/auth/reset-password"
	RouteChangePassword = "/auth/change-password"
)

// Session is the part of the session store the screens drive
type Session interface {
	State() session.State
	Login(ctx context.Context, creds session.Credentials) (session.Outcome, error)
	VerifyMFA(ctx context.Context, code string) (session.Outcome, error)
	ResetPassword(ctx context.Context, r session.PasswordReset) (session.Outcome, error)
	ResendOTP(ctx context.Context, purpose gateway.Purpose) error
	RequestPasswordReset(ctx context.Context, email string) error
	ClearError()
}

// Redirector yields the post-login destination. Reading it consumes it.
type Redirector interface {
	ComputeRedirect() string
}

// Next returns the route a session in st belongs on. Outstanding challenges
// win over the redirect destination, MFA before a forced password change.
func Next(st session.State, r Redirector) string {
	switch st.Phase() {
	case session.PhaseMFAPending:
		return RouteMFA
	case session.PhaseResetPending:
		return RouteChangePassword
	case session.PhaseAuthenticated:
		return r.ComputeRedirect()
	default:
		return RouteLogin
	}
}

// IsAuthRoute reports whether route is one of the sign-in screens
func IsAuthRoute(route string) bool {
	switch route {
	case RouteLogin, RouteMFA, RouteForgotPassword, RouteResetPassword, RouteChangePassword:
		return true
	}
	return false
}
