package session

import (
	"context"
	"errors"

	"github.com/voltway/distctl/internal/gateway"
)

// fakeGateway returns canned responses and records calls
type fakeGateway struct {
	loginResp  *gateway.LoginResponse
	loginErr   error
	verifyResp *gateway.VerifyResponse
	verifyErr  error
	resetResp  *gateway.ResetResponse
	resetErr   error
	resendErr  error
	logoutErr  error

	calls []string
	args  [][]string
}

func (f *fakeGateway) record(name string, args ...string) {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
}

func (f *fakeGateway) Login(_ context.Context, identifier, secret string) (*gateway.LoginResponse, error) {
	f.record("login", identifier, secret)
	return f.loginResp, f.loginErr
}

func (f *fakeGateway) VerifyMFA(_ context.Context, identifier, code string) (*gateway.VerifyResponse, error) {
	f.record("verifyMfa", identifier, code)
	return f.verifyResp, f.verifyErr
}

func (f *fakeGateway) ResetPassword(_ context.Context, identifier, otp, newSecret string) (*gateway.ResetResponse, error) {
	f.record("resetPassword", identifier, otp, newSecret)
	return f.resetResp, f.resetErr
}

func (f *fakeGateway) ResendOTP(_ context.Context, identifier string, purpose gateway.Purpose) error {
	f.record("resendOtp", identifier, string(purpose))
	return f.resendErr
}

func (f *fakeGateway) Logout(_ context.Context, token string) error {
	f.record("logout", token)
	return f.logoutErr
}

// memPersister keeps the slice in memory and can be told to fail
type memPersister struct {
	slice   *Persisted
	loadErr error
	saveErr error
	saves   int
	clears  int
}

func (m *memPersister) Load() (*Persisted, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.slice == nil {
		return nil, nil
	}
	cp := *m.slice
	return &cp, nil
}

func (m *memPersister) Save(p Persisted) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.slice = &p
	return nil
}

func (m *memPersister) Clear() error {
	m.clears++
	m.slice = nil
	m.loadErr = nil
	return nil
}

var errBoom = errors.New("boom")
