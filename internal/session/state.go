// Package session owns the client-side authentication state machine: the
// session state, the pure reducer that moves it between phases, the store that
// calls the auth gateway, and the adapter that persists the durable slice.
package session

import (
	"errors"

	"github.com/voltway/distctl/internal/gateway"
)

// Identity is the authenticated-user record
type Identity = gateway.Identity

// Phase is the coarse state a session is in
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseMFAPending
	PhaseResetPending
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseMFAPending:
		return "mfa-pending"
	case PhaseResetPending:
		return "reset-pending"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// State is the in-memory session. An empty PendingEmail or Error means none.
type State struct {
	User               *Identity
	IsAuthenticated    bool
	PendingEmail       string
	IsMFARequired      bool
	ForcePasswordReset bool
	Error              string
	IsLoading          bool
}

// Phase derives the state-machine phase. An outstanding MFA challenge is
// reported before a forced reset, since MFA is always resolved first.
func (s State) Phase() Phase {
	switch {
	case s.IsAuthenticated:
		return PhaseAuthenticated
	case s.IsMFARequired:
		return PhaseMFAPending
	case s.ForcePasswordReset:
		return PhaseResetPending
	default:
		return PhaseUnauthenticated
	}
}

var (
	errAuthWithoutUser      = errors.New("authenticated session without a valid user")
	errAuthWithChallenge    = errors.New("authenticated session with an outstanding challenge")
	errUserWithoutAuth      = errors.New("user present on an unauthenticated session")
	errChallengeWithoutUser = errors.New("challenge flag set without a pending email")
)

// Check reports the first violated session invariant, if any
func (s State) Check() error {
	if s.IsAuthenticated {
		if !s.User.Valid() {
			return errAuthWithoutUser
		}
		if s.IsMFARequired || s.ForcePasswordReset || s.PendingEmail != "" {
			return errAuthWithChallenge
		}
		return nil
	}
	if s.User != nil {
		return errUserWithoutAuth
	}
	if (s.IsMFARequired || s.ForcePasswordReset) && s.PendingEmail == "" {
		return errChallengeWithoutUser
	}
	return nil
}

// clone returns a copy that shares no memory with s
func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Persisted is the slice of State that survives restarts. Loading and error
// are deliberately absent.
type Persisted struct {
	User               *Identity `json:"user"`
	IsAuthenticated    bool      `json:"isAuthenticated"`
	IsMFARequired      bool      `json:"isMfaRequired"`
	PendingEmail       *string   `json:"pendingEmail"`
	ForcePasswordReset bool      `json:"forcePasswordReset"`
}

// Slice extracts the durable part of s
func (s State) Slice() Persisted {
	p := Persisted{
		IsAuthenticated:    s.IsAuthenticated,
		IsMFARequired:      s.IsMFARequired,
		ForcePasswordReset: s.ForcePasswordReset,
	}
	if s.User != nil {
		u := *s.User
		p.User = &u
	}
	if s.PendingEmail != "" {
		email := s.PendingEmail
		p.PendingEmail = &email
	}
	return p
}

// Equal reports whether two slices hold the same values
func (p Persisted) Equal(o Persisted) bool {
	if p.IsAuthenticated != o.IsAuthenticated ||
		p.IsMFARequired != o.IsMFARequired ||
		p.ForcePasswordReset != o.ForcePasswordReset ||
		p.pendingEmail() != o.pendingEmail() {
		return false
	}
	if (p.User == nil) != (o.User == nil) {
		return false
	}
	return p.User == nil || *p.User == *o.User
}

// Consistent reports whether the slice describes a state this client could
// have written. Anything else is treated as corrupted storage.
func (p Persisted) Consistent() bool {
	email := p.pendingEmail()
	if p.IsAuthenticated {
		return p.User.Valid() && email == "" && !p.IsMFARequired && !p.ForcePasswordReset
	}
	if p.User != nil {
		return false
	}
	if p.IsMFARequired || p.ForcePasswordReset {
		return email != ""
	}
	return true
}

func (p Persisted) pendingEmail() string {
	if p.PendingEmail == nil {
		return ""
	}
	return *p.PendingEmail
}
