package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltway/distctl/internal/gateway"
)

func newTestStore(gw *fakeGateway) (*Store, *memPersister) {
	p := &memPersister{}
	return NewStore(gw, p, WithLogger(zerolog.Nop())), p
}

func loginAs(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.Login(context.Background(), Credentials{Identifier: "a@b.com", Secret: "x"})
	require.NoError(t, err)
}

func TestStore_LoginAuthenticated(t *testing.T) {
	gw := &fakeGateway{loginResp: &gateway.LoginResponse{User: &Identity{ID: "1", Token: "tok"}}}
	s, p := newTestStore(gw)

	outcome, err := s.Login(context.Background(), Credentials{Identifier: " a@b.com ", Secret: "x"})
	require.NoError(t, err)

	auth, ok := outcome.(Authenticated)
	require.True(t, ok, "got %T", outcome)
	assert.Equal(t, "1", auth.User.ID)

	st := s.State()
	assert.Equal(t, PhaseAuthenticated, st.Phase())
	assert.Empty(t, st.PendingEmail)
	assert.False(t, st.IsLoading)
	require.NoError(t, st.Check())

	require.NotNil(t, p.slice)
	assert.True(t, p.slice.IsAuthenticated)
	assert.Equal(t, "tok", p.slice.User.Token)
	assert.Equal(t, []string{"a@b.com", "x"}, gw.args[0])
}

// Scenario A
func TestStore_LoginMFARequired(t *testing.T) {
	gw := &fakeGateway{loginResp: &gateway.LoginResponse{MFARequired: true}}
	s, p := newTestStore(gw)

	outcome, err := s.Login(context.Background(), Credentials{Identifier: "a@b.com", Secret: "x"})
	require.NoError(t, err)
	assert.Equal(t, MFARequired{Email: "a@b.com"}, outcome)

	st := s.State()
	assert.True(t, st.IsMFARequired)
	assert.Equal(t, "a@b.com", st.PendingEmail)
	assert.False(t, st.IsAuthenticated)

	require.NotNil(t, p.slice)
	require.NotNil(t, p.slice.PendingEmail)
	assert.Equal(t, "a@b.com", *p.slice.PendingEmail)
}

// Scenario B
func TestStore_VerifyMFAAuthenticates(t *testing.T) {
	gw := &fakeGateway{
		loginResp:  &gateway.LoginResponse{MFARequired: true},
		verifyResp: &gateway.VerifyResponse{User: &Identity{ID: "1"}},
	}
	s, _ := newTestStore(gw)
	loginAs(t, s)

	outcome, err := s.VerifyMFA(context.Background(), "123456")
	require.NoError(t, err)
	require.IsType(t, Authenticated{}, outcome)

	st := s.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "1", st.User.ID)
	assert.False(t, st.IsMFARequired)
	assert.Empty(t, st.PendingEmail)
	assert.Equal(t, []string{"a@b.com", "123456"}, gw.args[1])
}

// Scenario C
func TestStore_VerifyMFAWithoutChallenge(t *testing.T) {
	gw := &fakeGateway{}
	s, p := newTestStore(gw)

	before := s.State()
	_, err := s.VerifyMFA(context.Background(), "000000")

	require.ErrorIs(t, err, ErrNoPendingChallenge)
	assert.Equal(t, before, s.State())
	assert.Empty(t, gw.calls)
	assert.Zero(t, p.saves)
}

func TestStore_VerifyMFARejectedKeepsChallenge(t *testing.T) {
	gw := &fakeGateway{
		loginResp: &gateway.LoginResponse{MFARequired: true},
		verifyErr: &gateway.APIError{Kind: gateway.ErrInvalidCode, Status: http.StatusUnauthorized, Message: "Invalid code"},
	}
	s, _ := newTestStore(gw)
	loginAs(t, s)

	_, err := s.VerifyMFA(context.Background(), "999999")
	require.ErrorIs(t, err, gateway.ErrInvalidCode)

	st := s.State()
	assert.Equal(t, PhaseMFAPending, st.Phase())
	assert.Equal(t, "a@b.com", st.PendingEmail)
	assert.Equal(t, "Invalid code", st.Error)
	assert.False(t, st.IsLoading)
}

func TestStore_VerifyMFAMissingIdentity(t *testing.T) {
	gw := &fakeGateway{
		loginResp:  &gateway.LoginResponse{MFARequired: true},
		verifyResp: &gateway.VerifyResponse{},
	}
	s, _ := newTestStore(gw)
	loginAs(t, s)

	_, err := s.VerifyMFA(context.Background(), "123456")
	require.ErrorIs(t, err, ErrInvalidServerResponse)
	assert.Equal(t, PhaseMFAPending, s.State().Phase())
}

// MFA is resolved strictly before a forced reset carried on the same login
func TestStore_MFAThenForcedReset(t *testing.T) {
	gw := &fakeGateway{
		loginResp:  &gateway.LoginResponse{MFARequired: true, ForcePasswordReset: true},
		verifyResp: &gateway.VerifyResponse{User: &Identity{ID: "1"}},
	}
	s, _ := newTestStore(gw)

	outcome, err := s.Login(context.Background(), Credentials{Identifier: "a@b.com", Secret: "x"})
	require.NoError(t, err)
	assert.Equal(t, MFARequired{Email: "a@b.com", ForcePasswordReset: true}, outcome)
	assert.Equal(t, PhaseMFAPending, s.State().Phase())

	// Reset is refused until MFA completes
	_, err = s.ResetPassword(context.Background(), PasswordReset{OTP: "123456", NewPassword: "new-secret"})
	require.ErrorIs(t, err, ErrMFAFirst)

	outcome, err = s.VerifyMFA(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, ResetRequired{Email: "a@b.com"}, outcome)

	st := s.State()
	assert.Equal(t, PhaseResetPending, st.Phase())
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
}

// Scenario E
func TestStore_ForcedResetThenComplete(t *testing.T) {
	gw := &fakeGateway{
		loginResp: &gateway.LoginResponse{ForcePasswordReset: true},
		resetResp: &gateway.ResetResponse{},
	}
	s, _ := newTestStore(gw)

	outcome, err := s.Login(context.Background(), Credentials{Identifier: "a@b.com", Secret: "x"})
	require.NoError(t, err)
	assert.Equal(t, ResetRequired{Email: "a@b.com"}, outcome)

	st := s.State()
	assert.True(t, st.ForcePasswordReset)
	assert.Equal(t, "a@b.com", st.PendingEmail)
	assert.False(t, st.IsAuthenticated)

	outcome, err = s.ResetPassword(context.Background(), PasswordReset{OTP: "123456", NewPassword: "new-secret"})
	require.NoError(t, err)
	assert.Equal(t, ResetComplete{Email: "a@b.com"}, outcome)
	assert.Equal(t, []string{"a@b.com", "123456", "new-secret"}, gw.args[1])

	st = s.State()
	assert.False(t, st.ForcePasswordReset)
	assert.Empty(t, st.PendingEmail)

	// The follow-up login completes the move to Authenticated
	gw.loginResp = &gateway.LoginResponse{User: &Identity{ID: "1"}}
	_, err = s.Login(context.Background(), Credentials{Identifier: "a@b.com", Secret: "new-secret"})
	require.NoError(t, err)
	assert.True(t, s.State().IsAuthenticated)
}

func TestStore_ResetPasswordAutoLogin(t *testing.T) {
	gw := &fakeGateway{
		loginResp: &gateway.LoginResponse{ForcePasswordReset: true},
		resetResp: &gateway.ResetResponse{User: &Identity{ID: "9"}},
	}
	s, _ := newTestStore(gw)
	loginAs(t, s)

	outcome, err := s.ResetPassword(context.Background(), PasswordReset{OTP: "123456", NewPassword: "new-secret"})
	require.NoError(t, err)
	require.IsType(t, Authenticated{}, outcome)
	assert.Equal(t, PhaseAuthenticated, s.State().Phase())
}

func TestStore_ResetPasswordFailureKeepsChallenge(t *testing.T) {
	gw := &fakeGateway{
		loginResp: &gateway.LoginResponse{ForcePasswordReset: true},
		resetErr:  &gateway.APIError{Kind: gateway.ErrInvalidOTP, Status: http.StatusBadRequest, Message: "OTP expired"},
	}
	s, _ := newTestStore(gw)
	loginAs(t, s)

	_, err := s.ResetPassword(context.Background(), PasswordReset{OTP: "123456", NewPassword: "new-secret"})
	require.ErrorIs(t, err, gateway.ErrInvalidOTP)

	st := s.State()
	assert.Equal(t, PhaseResetPending, st.Phase())
	assert.Equal(t, "OTP expired", st.Error)
}

func TestStore_ResetPasswordWithoutEmail(t *testing.T) {
	gw := &fakeGateway{}
	s, _ := newTestStore(gw)

	_, err := s.ResetPassword(context.Background(), PasswordReset{OTP: "123456", NewPassword: "x"})
	require.ErrorIs(t, err, ErrNoPendingChallenge)
	assert.Empty(t, gw.calls)
}

func TestStore_ForgotPasswordFlow(t *testing.T) {
	gw := &fakeGateway{resetResp: &gateway.ResetResponse{}}
	s, _ := newTestStore(gw)

	require.NoError(t, s.RequestPasswordReset(context.Background(), "a@b.com"))
	assert.Equal(t, []string{"a@b.com", "PASSWORD_RESET"}, gw.args[0])
	assert.Equal(t, PhaseUnauthenticated, s.State().Phase())

	outcome, err := s.ResetPassword(context.Background(), PasswordReset{Email: "a@b.com", OTP: "123456", NewPassword: "new-secret"})
	require.NoError(t, err)
	assert.Equal(t, ResetComplete{Email: "a@b.com"}, outcome)
	assert.False(t, s.State().IsLoading)
}

func TestStore_ResendOTP(t *testing.T) {
	gw := &fakeGateway{loginResp: &gateway.LoginResponse{MFARequired: true}}
	s, _ := newTestStore(gw)

	require.ErrorIs(t, s.ResendOTP(context.Background(), gateway.PurposeMFA), ErrNoPendingChallenge)

	loginAs(t, s)
	before := s.State()
	require.NoError(t, s.ResendOTP(context.Background(), gateway.PurposeMFA))
	assert.Equal(t, before, s.State())
	assert.Equal(t, []string{"a@b.com", "MFA"}, gw.args[len(gw.args)-1])

	gw.resendErr = &gateway.APIError{Kind: gateway.ErrNetworkFailure}
	require.Error(t, s.ResendOTP(context.Background(), gateway.PurposeMFA))
	st := s.State()
	assert.Equal(t, PhaseMFAPending, st.Phase())
	assert.Equal(t, "Unable to reach the server. Please try again.", st.Error)
}

func TestStore_LoginFailure(t *testing.T) {
	gw := &fakeGateway{
		loginErr: &gateway.APIError{Kind: gateway.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid email or password"},
	}
	s, _ := newTestStore(gw)

	_, err := s.Login(context.Background(), Credentials{Identifier: "a@b.com", Secret: "bad"})
	require.ErrorIs(t, err, gateway.ErrInvalidCredentials)

	st := s.State()
	assert.Equal(t, PhaseUnauthenticated, st.Phase())
	assert.Equal(t, "Invalid email or password", st.Error)
	assert.False(t, st.IsLoading)
	assert.Nil(t, st.User)
}

func TestStore_LoginInvalidServerResponse(t *testing.T) {
	gw := &fakeGateway{loginResp: &gateway.LoginResponse{User: &Identity{}}}
	s, _ := newTestStore(gw)

	_, err := s.Login(context.Background(), Credentials{Identifier: "a@b.com", Secret: "x"})
	require.ErrorIs(t, err, ErrInvalidServerResponse)
	assert.Equal(t, "Unexpected response from the server. Please try again.", s.State().Error)
}

// malformedGateway answers login with an MFA challenge and every other
// endpoint with body, so each action can be driven to the decode failure.
func malformedGateway(t *testing.T, loginBody, body string) *gateway.HTTPClient {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/auth/login" {
			_, _ = w.Write([]byte(loginBody))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return gateway.NewHTTPClient(ts.URL)
}

func TestStore_MalformedIdentityIsInvalidServerResponse(t *testing.T) {
	const generic = "Unexpected response from the server. Please try again."
	bodies := map[string]string{
		"bool id":        `{"user":{"id":true}}`,
		"string user":    `{"user":"abc"}`,
		"truncated body": `{"user":{"id":1}`,
	}

	for name, body := range bodies {
		t.Run(name+"/login", func(t *testing.T) {
			s := NewStore(malformedGateway(t, body, body), &memPersister{}, WithLogger(zerolog.Nop()))

			_, err := s.Login(context.Background(), Credentials{Identifier: "a@b.com", Secret: "x"})
			require.ErrorIs(t, err, ErrInvalidServerResponse)

			st := s.State()
			assert.Equal(t, generic, st.Error)
			assert.Equal(t, PhaseUnauthenticated, st.Phase())
			assert.False(t, st.IsLoading)
		})

		t.Run(name+"/verify", func(t *testing.T) {
			s := NewStore(malformedGateway(t, `{"mfaRequired":true}`, body), &memPersister{}, WithLogger(zerolog.Nop()))
			loginAs(t, s)

			_, err := s.VerifyMFA(context.Background(), "123456")
			require.ErrorIs(t, err, ErrInvalidServerResponse)

			st := s.State()
			assert.Equal(t, generic, st.Error)
			assert.Equal(t, PhaseMFAPending, st.Phase())
		})

		t.Run(name+"/reset", func(t *testing.T) {
			s := NewStore(malformedGateway(t, `{"forcePasswordReset":true}`, body), &memPersister{}, WithLogger(zerolog.Nop()))
			loginAs(t, s)

			_, err := s.ResetPassword(context.Background(), PasswordReset{OTP: "654321", NewPassword: "long-enough"})
			require.ErrorIs(t, err, ErrInvalidServerResponse)

			st := s.State()
			assert.Equal(t, generic, st.Error)
			assert.Equal(t, PhaseResetPending, st.Phase())
		})
	}
}

func TestStore_LoginRequiresBothFields(t *testing.T) {
	gw := &fakeGateway{}
	s, _ := newTestStore(gw)

	_, err := s.Login(context.Background(), Credentials{Identifier: "  ", Secret: "x"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Login(context.Background(), Credentials{Identifier: "a@b.com"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, gw.calls)
}

// Re-login over a pending challenge drops the old challenge
func TestStore_LoginAfterMFAReplacesChallenge(t *testing.T) {
	gw := &fakeGateway{loginResp: &gateway.LoginResponse{MFARequired: true}}
	s, _ := newTestStore(gw)
	loginAs(t, s)

	gw.loginResp = &gateway.LoginResponse{User: &Identity{ID: "2"}}
	_, err := s.Login(context.Background(), Credentials{Identifier: "c@d.com", Secret: "y"})
	require.NoError(t, err)

	st := s.State()
	assert.True(t, st.IsAuthenticated)
	assert.Empty(t, st.PendingEmail)
}

func TestStore_LogoutAlwaysClears(t *testing.T) {
	gw := &fakeGateway{
		loginResp: &gateway.LoginResponse{User: &Identity{ID: "1", Token: "tok"}},
		logoutErr: &gateway.APIError{Kind: gateway.ErrNetworkFailure},
	}
	s, p := newTestStore(gw)
	loginAs(t, s)

	s.Logout(context.Background())

	assert.Equal(t, State{}, s.State())
	assert.Nil(t, p.slice)
	assert.Equal(t, 1, p.clears)
	assert.Equal(t, []string{"tok"}, gw.args[len(gw.args)-1])
}

func TestStore_PersistFailureIsNotFatal(t *testing.T) {
	gw := &fakeGateway{loginResp: &gateway.LoginResponse{User: &Identity{ID: "1"}}}
	s, p := newTestStore(gw)
	p.saveErr = errBoom

	loginAs(t, s)
	assert.True(t, s.State().IsAuthenticated)
}

func TestStore_ClearError(t *testing.T) {
	gw := &fakeGateway{loginErr: &gateway.APIError{Kind: gateway.ErrInvalidCredentials, Message: "nope"}}
	s, _ := newTestStore(gw)

	_, _ = s.Login(context.Background(), Credentials{Identifier: "a@b.com", Secret: "x"})
	require.Equal(t, "nope", s.State().Error)

	s.ClearError()
	assert.Empty(t, s.State().Error)
}

func TestStore_CheckAuthRestoresAuthenticated(t *testing.T) {
	gw := &fakeGateway{loginResp: &gateway.LoginResponse{User: &Identity{ID: "1", Email: "a@b.com"}}}
	first, p := newTestStore(gw)
	loginAs(t, first)

	// New process: same storage, fresh store
	second := NewStore(gw, p)
	st := second.CheckAuth(context.Background())

	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "1", st.User.ID)
	assert.False(t, st.IsLoading)
	assert.Empty(t, st.Error)

	// Idempotent with unchanged storage
	assert.Equal(t, st, second.CheckAuth(context.Background()))
}

func TestStore_CheckAuthRestoresPendingChallenge(t *testing.T) {
	gw := &fakeGateway{loginResp: &gateway.LoginResponse{MFARequired: true}}
	first, p := newTestStore(gw)
	loginAs(t, first)

	st := NewStore(gw, p).CheckAuth(context.Background())
	assert.Equal(t, PhaseMFAPending, st.Phase())
	assert.Equal(t, "a@b.com", st.PendingEmail)
}

func TestStore_CheckAuthEmpty(t *testing.T) {
	s, _ := newTestStore(&fakeGateway{})
	assert.Equal(t, State{}, s.CheckAuth(context.Background()))
}

func TestStore_CheckAuthPurgesCorruptStorage(t *testing.T) {
	p := &memPersister{loadErr: ErrCorruptState}
	s := NewStore(&fakeGateway{}, p)

	st := s.CheckAuth(context.Background())
	assert.Equal(t, State{}, st)
	assert.Equal(t, 1, p.clears)

	assert.Equal(t, st, s.CheckAuth(context.Background()))
}

func TestStore_CheckAuthPurgesInconsistentSlice(t *testing.T) {
	p := &memPersister{slice: &Persisted{IsAuthenticated: true}}
	s := NewStore(&fakeGateway{}, p)

	assert.Equal(t, State{}, s.CheckAuth(context.Background()))
	assert.Nil(t, p.slice)
}

func TestStore_CheckAuthUnreadableStorage(t *testing.T) {
	p := &memPersister{loadErr: errBoom}
	s := NewStore(&fakeGateway{}, p)

	assert.Equal(t, State{}, s.CheckAuth(context.Background()))
	assert.Zero(t, p.clears)
}

// Whatever sequence of logins runs, a returned identity ends in Authenticated
func TestStore_LoginSequences(t *testing.T) {
	responses := []*gateway.LoginResponse{
		{MFARequired: true},
		{ForcePasswordReset: true},
		{MFARequired: true, ForcePasswordReset: true},
		{User: &Identity{ID: "1"}},
	}
	for _, first := range responses {
		for _, second := range responses {
			gw := &fakeGateway{loginResp: first}
			s, _ := newTestStore(gw)
			loginAs(t, s)
			gw.loginResp = second
			loginAs(t, s)

			st := s.State()
			require.NoError(t, st.Check())
			if second.User != nil {
				assert.Equal(t, PhaseAuthenticated, st.Phase())
				assert.Empty(t, st.PendingEmail)
			}
		}
	}
}
