package session

import (
	"strings"

	"github.com/voltway/distctl/internal/gateway"
)

// Outcome is the settled result of a successful store action. It is one of
// Authenticated, MFARequired, ResetRequired or ResetComplete; failures are
// reported through the accompanying error instead.
type Outcome interface {
	outcome()
}

// Authenticated means a session was granted
type Authenticated struct {
	User *Identity
}

// MFARequired means an MFA code must be verified for Email. When
// ForcePasswordReset is set, a password change follows the verification.
type MFARequired struct {
	Email              string
	ForcePasswordReset bool
}

// ResetRequired means the account must change its password before signing in
type ResetRequired struct {
	Email string
}

// ResetComplete means the password changed but no session was granted
type ResetComplete struct {
	Email string
}

func (Authenticated) outcome() {}
func (MFARequired) outcome()   {}
func (ResetRequired) outcome() {}
func (ResetComplete) outcome() {}

// classifyLogin turns a login response into exactly one outcome. MFA takes
// precedence over a forced reset, which takes precedence over a user record.
func classifyLogin(email string, resp *gateway.LoginResponse) (Outcome, error) {
	if resp == nil {
		return nil, ErrInvalidServerResponse
	}
	switch {
	case resp.MFARequired:
		return MFARequired{Email: email, ForcePasswordReset: resp.ForcePasswordReset}, nil
	case resp.ForcePasswordReset:
		return ResetRequired{Email: email}, nil
	case resp.User.Valid():
		return Authenticated{User: resp.User}, nil
	default:
		return nil, ErrInvalidServerResponse
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
