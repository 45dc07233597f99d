package session

// Action is an input to Reduce
type Action interface {
	action()
}

type (
	// LoginStarted begins a credential submission and drops any prior challenge
	LoginStarted struct{}
	// RequestStarted begins any other gateway call
	RequestStarted struct{}
	// RequestSettled ends a call that does not change the phase
	RequestSettled struct{}
	// LoggedIn grants a session
	LoggedIn struct{ User *Identity }
	// MFAChallenged opens an MFA challenge, optionally with a reset queued behind it
	MFAChallenged struct {
		Email              string
		ForcePasswordReset bool
	}
	// ResetChallenged opens a forced password reset
	ResetChallenged struct{ Email string }
	// LoginFailed drops back to a fully unauthenticated state with a message
	LoginFailed struct{ Message string }
	// ChallengeFailed records a message and keeps the pending challenge for retry
	ChallengeFailed struct{ Message string }
	// ResetCompleted clears a forced reset; the user signs in again
	ResetCompleted struct{}
	// LoggedOut resets everything
	LoggedOut struct{}
	// Rehydrated restores the durable slice read at startup (nil if none)
	Rehydrated struct{ Slice *Persisted }
	// ErrorCleared drops the current message
	ErrorCleared struct{}
)

func (LoginStarted) action()    {}
func (RequestStarted) action()  {}
func (RequestSettled) action()  {}
func (LoggedIn) action()        {}
func (MFAChallenged) action()   {}
func (ResetChallenged) action() {}
func (LoginFailed) action()     {}
func (ChallengeFailed) action() {}
func (ResetCompleted) action()  {}
func (LoggedOut) action()       {}
func (Rehydrated) action()      {}
func (ErrorCleared) action()    {}

// Reduce returns the state that follows s after a. It has no side effects
// and never mutates s.
func Reduce(s State, a Action) State {
	s = s.clone()

	switch a := a.(type) {
	case LoginStarted:
		s.IsLoading = true
		s.Error = ""
		s.IsMFARequired = false
		s.ForcePasswordReset = false
		s.PendingEmail = ""

	case RequestStarted:
		s.IsLoading = true
		s.Error = ""

	case RequestSettled:
		s.IsLoading = false

	case LoggedIn:
		u := *a.User
		return State{User: &u, IsAuthenticated: true}

	case MFAChallenged:
		return State{
			PendingEmail:       a.Email,
			IsMFARequired:      true,
			ForcePasswordReset: a.ForcePasswordReset,
		}

	case ResetChallenged:
		return State{
			PendingEmail:       a.Email,
			ForcePasswordReset: true,
		}

	case LoginFailed:
		return State{Error: a.Message}

	case ChallengeFailed:
		s.IsLoading = false
		s.Error = a.Message

	case ResetCompleted:
		return State{}

	case LoggedOut:
		return State{}

	case Rehydrated:
		return rehydrate(a.Slice)

	case ErrorCleared:
		s.Error = ""
	}

	return s
}

// rehydrate rebuilds state from a stored slice. An authenticated slice comes
// back with every challenge cleared; a pending challenge comes back as is so a
// flow can continue in a later invocation.
func rehydrate(p *Persisted) State {
	if p == nil || !p.Consistent() {
		return State{}
	}
	if p.IsAuthenticated {
		u := *p.User
		return State{User: &u, IsAuthenticated: true}
	}
	if p.IsMFARequired || p.ForcePasswordReset {
		return State{
			PendingEmail:       p.pendingEmail(),
			IsMFARequired:      p.IsMFARequired,
			ForcePasswordReset: p.ForcePasswordReset,
		}
	}
	return State{}
}
