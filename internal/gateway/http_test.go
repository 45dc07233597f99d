package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltway/distctl/internal/gateway"
	"github.com/voltway/distctl/internal/server"
)

type simulator struct {
	srv   *server.Server
	http  *httptest.Server
	mu    sync.Mutex
	codes map[string]string
}

func (s *simulator) code(email string, purpose gateway.Purpose) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email+"/"+string(purpose)]
}

func newSimulator(t *testing.T) *simulator {
	t.Helper()
	sim := &simulator{codes: map[string]string{}}
	srv, err := server.New(server.Options{
		DatabaseURL: filepath.Join(t.TempDir(), "authsim.sqlite"),
		JWTSecret:   "contract-secret",
		OnCode: func(email, purpose, code string) {
			sim.mu.Lock()
			defer sim.mu.Unlock()
			sim.codes[email+"/"+purpose] = code
		},
	}, zerolog.Nop())
	require.NoError(t, err)

	sim.srv = srv
	sim.http = httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		sim.http.Close()
		_ = srv.Close()
	})
	return sim
}

func (s *simulator) client() *gateway.HTTPClient {
	return gateway.NewHTTPClient(s.http.URL + "/")
}

func TestHTTPClient_PlainLoginAndLogout(t *testing.T) {
	sim := newSimulator(t)
	_, err := sim.srv.CreateUser(server.UserSpec{Email: "ops@example.com", Password: "hunter22", Name: "Ops"})
	require.NoError(t, err)

	c := sim.client()
	assert.Equal(t, sim.http.URL, c.BaseURL())

	resp, err := c.Login(context.Background(), "ops@example.com", "hunter22")
	require.NoError(t, err)
	assert.False(t, resp.MFARequired)
	require.True(t, resp.User.Valid())
	assert.Equal(t, "Ops", resp.User.Name)
	assert.NotEmpty(t, resp.User.Token)
	assert.Equal(t, resp.Token, resp.User.Token)

	require.NoError(t, c.Logout(context.Background(), resp.User.Token))

	// A revoked token is refused on the second logout
	err = c.Logout(context.Background(), resp.User.Token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrUnexpectedStatus))
}

func TestHTTPClient_InvalidCredentials(t *testing.T) {
	sim := newSimulator(t)
	_, err := sim.srv.CreateUser(server.UserSpec{Email: "ops@example.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = sim.client().Login(context.Background(), "ops@example.com", "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrInvalidCredentials))

	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid email or password", apiErr.Error())
}

func TestHTTPClient_MFACycle(t *testing.T) {
	sim := newSimulator(t)
	_, err := sim.srv.CreateUser(server.UserSpec{Email: "mfa@example.com", Password: "hunter22", MFAEnabled: true})
	require.NoError(t, err)
	c := sim.client()
	ctx := context.Background()

	resp, err := c.Login(ctx, "mfa@example.com", "hunter22")
	require.NoError(t, err)
	assert.True(t, resp.MFARequired)
	assert.Nil(t, resp.User)

	code := sim.code("mfa@example.com", gateway.PurposeMFA)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = c.VerifyMFA(ctx, "mfa@example.com", wrong)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrInvalidCode))
	assert.Equal(t, "Invalid verification code", err.Error())

	require.NoError(t, c.ResendOTP(ctx, "mfa@example.com", gateway.PurposeMFA))
	fresh := sim.code("mfa@example.com", gateway.PurposeMFA)

	verified, err := c.VerifyMFA(ctx, "mfa@example.com", fresh)
	require.NoError(t, err)
	require.True(t, verified.User.Valid())
	assert.NotEmpty(t, verified.User.Token)
}

func TestHTTPClient_PasswordReset(t *testing.T) {
	sim := newSimulator(t)
	_, err := sim.srv.CreateUser(server.UserSpec{Email: "ops@example.com", Password: "hunter22"})
	require.NoError(t, err)
	c := sim.client()
	ctx := context.Background()

	require.NoError(t, c.ResendOTP(ctx, "ops@example.com", gateway.PurposePasswordReset))
	otp := sim.code("ops@example.com", gateway.PurposePasswordReset)

	_, err = c.ResetPassword(ctx, "ops@example.com", otp, "short")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrPasswordPolicy))

	_, err = c.ResetPassword(ctx, "ops@example.com", "999999x", "long-enough")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrInvalidOTP))

	resp, err := c.ResetPassword(ctx, "ops@example.com", otp, "long-enough")
	require.NoError(t, err)
	assert.Nil(t, resp.User)

	_, err = c.Login(ctx, "ops@example.com", "long-enough")
	require.NoError(t, err)
}

func TestHTTPClient_NetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := gateway.NewHTTPClient(url).Login(context.Background(), "a@b.com", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrNetworkFailure))
}

func TestHTTPClient_UnexpectedStatusAndPlainTextBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance window", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := gateway.NewHTTPClient(ts.URL).Login(context.Background(), "a@b.com", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrUnexpectedStatus))
	assert.Equal(t, "maintenance window", err.Error())
}

func TestHTTPClient_NumericIdentityID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "a@b.com", req["email"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":42,"email":"a@b.com"},"token":"tok"}`))
	}))
	defer ts.Close()

	resp, err := gateway.NewHTTPClient(ts.URL).Login(context.Background(), "a@b.com", "x")
	require.NoError(t, err)
	assert.Equal(t, "42", resp.User.ID)
	assert.Equal(t, "tok", resp.User.Token)
}

func TestHTTPClient_EmptySuccessBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	resp, err := gateway.NewHTTPClient(ts.URL).ResetPassword(context.Background(), "a@b.com", "123456", "long-enough")
	require.NoError(t, err)
	assert.Nil(t, resp.User)
}

func TestHTTPClient_MalformedSuccessBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":true}}`))
	}))
	defer ts.Close()

	_, err := gateway.NewHTTPClient(ts.URL).Login(context.Background(), "a@b.com", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrMalformedResponse))
}

func TestPurposeValid(t *testing.T) {
	assert.True(t, gateway.PurposeMFA.Valid())
	assert.True(t, gateway.PurposePasswordReset.Valid())
	assert.False(t, gateway.Purpose("SMS").Valid())
}
