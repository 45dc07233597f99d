package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/voltway/distctl/internal/gateway"
)

// Credentials is a login submission
type Credentials struct {
	Identifier string
	Secret     string
}

// PasswordReset is a reset submission. Email defaults to the pending
// challenge's account when empty.
type PasswordReset struct {
	Email       string
	OTP         string
	NewPassword string
}

// Store is the single owner of session state. It serialises its own
// transitions but does not queue gateway calls: callers are expected not to
// submit while State().IsLoading is set.
type Store struct {
	mu        sync.Mutex
	state     State
	gateway   gateway.Gateway
	persister Persister
	logger    zerolog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store in the unauthenticated state. Call CheckAuth to
// restore a stored session.
func NewStore(gw gateway.Gateway, persister Persister, opts ...Option) *Store {
	s := &Store{
		gateway:   gw,
		persister: persister,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the current state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// apply runs the reducer and, if the durable slice changed, saves it.
// Persistence failures are logged only: the in-memory state stays valid.
func (s *Store) apply(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	s.state = Reduce(s.state, a)

	s.logger.Debug().
		Str("from", prev.Phase().String()).
		Str("to", s.state.Phase().String()).
		Bool("loading", s.state.IsLoading).
		Msgf("session %T", a)

	if next := s.state.Slice(); !prev.Slice().Equal(next) {
		if err := s.persister.Save(next); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to persist session")
		}
	}
	return s.state.clone()
}

// Login submits credentials. On success exactly one of Authenticated,
// MFARequired or ResetRequired is returned; on failure the state is fully
// unauthenticated with Error set, and the error is returned as well.
func (s *Store) Login(ctx context.Context, creds Credentials) (Outcome, error) {
	email := normalizeEmail(creds.Identifier)
	if email == "" || creds.Secret == "" {
		return nil, ErrInvalidInput
	}

	s.apply(LoginStarted{})

	resp, err := s.gateway.Login(ctx, email, creds.Secret)
	if err != nil {
		err = classifyGatewayError(err)
		s.logger.Info().Err(err).Str("email", email).Msg("Login rejected")
		s.apply(LoginFailed{Message: Message(err)})
		return nil, err
	}

	outcome, err := classifyLogin(email, resp)
	if err != nil {
		s.logger.Warn().Str("email", email).Msg("Login response carried no identity")
		s.apply(LoginFailed{Message: Message(err)})
		return nil, err
	}

	switch o := outcome.(type) {
	case Authenticated:
		s.apply(LoggedIn{User: o.User})
		s.logger.Info().Str("user_id", o.User.ID).Msg("User logged in")
	case MFARequired:
		s.apply(MFAChallenged{Email: o.Email, ForcePasswordReset: o.ForcePasswordReset})
		s.logger.Info().Str("email", email).Bool("force_password_reset", o.ForcePasswordReset).Msg("MFA challenge opened")
	case ResetRequired:
		s.apply(ResetChallenged{Email: o.Email})
		s.logger.Info().Str("email", email).Msg("Forced password reset opened")
	}
	return outcome, nil
}

// VerifyMFA submits a code for the pending MFA challenge. A rejected code
// leaves the challenge open for another attempt.
func (s *Store) VerifyMFA(ctx context.Context, code string) (Outcome, error) {
	current := s.State()
	if current.PendingEmail == "" || !current.IsMFARequired {
		return nil, ErrNoPendingChallenge
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidInput
	}

	s.apply(RequestStarted{})

	resp, err := s.gateway.VerifyMFA(ctx, current.PendingEmail, code)
	if err != nil {
		err = classifyGatewayError(err)
		s.apply(ChallengeFailed{Message: Message(err)})
		return nil, err
	}
	if resp == nil || !resp.User.Valid() {
		s.apply(ChallengeFailed{Message: Message(ErrInvalidServerResponse)})
		return nil, ErrInvalidServerResponse
	}

	if current.ForcePasswordReset {
		s.apply(ResetChallenged{Email: current.PendingEmail})
		s.logger.Info().Str("email", current.PendingEmail).Msg("MFA verified, password change required")
		return ResetRequired{Email: current.PendingEmail}, nil
	}

	s.apply(LoggedIn{User: resp.User})
	s.logger.Info().Str("user_id", resp.User.ID).Msg("MFA verified")
	return Authenticated{User: resp.User}, nil
}

// ResetPassword sets a new password with a reset passcode. If the API signs
// the user in, Authenticated is returned; otherwise ResetComplete, and the
// caller signs in again with the new password.
func (s *Store) ResetPassword(ctx context.Context, r PasswordReset) (Outcome, error) {
	current := s.State()

	email := normalizeEmail(r.Email)
	if email == "" {
		email = current.PendingEmail
	}
	if email == "" {
		return nil, ErrNoPendingChallenge
	}
	if strings.TrimSpace(r.OTP) == "" || r.NewPassword == "" {
		return nil, ErrInvalidInput
	}
	ownChallenge := strings.EqualFold(email, current.PendingEmail)
	if ownChallenge && current.IsMFARequired {
		return nil, ErrMFAFirst
	}

	s.apply(RequestStarted{})

	resp, err := s.gateway.ResetPassword(ctx, email, strings.TrimSpace(r.OTP), r.NewPassword)
	if err != nil {
		err = classifyGatewayError(err)
		s.apply(ChallengeFailed{Message: Message(err)})
		return nil, err
	}

	if resp != nil && resp.User.Valid() {
		s.apply(LoggedIn{User: resp.User})
		s.logger.Info().Str("user_id", resp.User.ID).Msg("Password reset, user logged in")
		return Authenticated{User: resp.User}, nil
	}

	if ownChallenge {
		s.apply(ResetCompleted{})
	} else {
		s.apply(RequestSettled{})
	}
	s.logger.Info().Str("email", email).Msg("Password reset")
	return ResetComplete{Email: email}, nil
}

// ResendOTP asks for a new passcode for the pending challenge. Only the
// loading flag changes.
func (s *Store) ResendOTP(ctx context.Context, purpose gateway.Purpose) error {
	current := s.State()
	if current.PendingEmail == "" {
		return ErrNoPendingChallenge
	}
	return s.sendOTP(ctx, current.PendingEmail, purpose)
}

// RequestPasswordReset starts a voluntary reset by having a passcode sent to
// email. The session phase is unchanged.
func (s *Store) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}
	return s.sendOTP(ctx, email, gateway.PurposePasswordReset)
}

func (s *Store) sendOTP(ctx context.Context, email string, purpose gateway.Purpose) error {
	s.apply(RequestStarted{})

	if err := s.gateway.ResendOTP(ctx, email, purpose); err != nil {
		s.apply(ChallengeFailed{Message: Message(err)})
		return err
	}

	s.apply(RequestSettled{})
	s.logger.Info().Str("email", email).Str("purpose", string(purpose)).Msg("Passcode sent")
	return nil
}

// Logout always succeeds locally. The gateway call is best effort.
func (s *Store) Logout(ctx context.Context) {
	current := s.State()

	var token string
	if current.User != nil {
		token = current.User.Token
	}
	if err := s.gateway.Logout(ctx, token); err != nil {
		s.logger.Warn().Err(err).Msg("Gateway logout failed, clearing local session anyway")
	}

	if err := s.persister.Clear(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear stored session")
	}

	s.mu.Lock()
	s.state = Reduce(s.state, LoggedOut{})
	s.mu.Unlock()
}

// CheckAuth restores the session from storage. It never fails: corrupted
// storage is purged and unreadable storage leaves the session signed out.
//
// A stored slice without an identity is not always signed out: an open MFA
// or forced-reset challenge (pending email plus its flag) is restored too,
// because each distctl invocation is a fresh process and the next command
// has to continue the challenge the previous one opened.
func (s *Store) CheckAuth(ctx context.Context) State {
	slice, err := s.persister.Load()
	switch {
	case errors.Is(err, ErrCorruptState):
		s.logger.Warn().Err(err).Msg("Purging corrupted session")
		s.purge()
		slice = nil
	case err != nil:
		s.logger.Warn().Err(err).Msg("Failed to read stored session")
		slice = nil
	case slice != nil && !slice.Consistent():
		s.logger.Warn().Msg("Purging inconsistent session")
		s.purge()
		slice = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, Rehydrated{Slice: slice})
	return s.state.clone()
}

func (s *Store) purge() {
	if err := s.persister.Clear(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to purge stored session")
	}
}

// ClearError drops the current error message
func (s *Store) ClearError() {
	s.apply(ErrorCleared{})
}
