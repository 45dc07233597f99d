package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials means the identifier/secret pair was rejected
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidCode means an MFA code was wrong or expired
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrInvalidOTP means a password-reset passcode was wrong or expired
	ErrInvalidOTP = errors.New("invalid or expired one-time passcode")
	// ErrPasswordPolicy means the new secret was refused by the server policy
	ErrPasswordPolicy = errors.New("password does not meet policy")
	// ErrNetworkFailure means the API could not be reached
	ErrNetworkFailure = errors.New("authentication service unreachable")
	// ErrUnexpectedStatus covers every other non-success response
	ErrUnexpectedStatus = errors.New("unexpected response from authentication service")
	// ErrMalformedResponse means a success response body could not be decoded
	ErrMalformedResponse = errors.New("malformed response from authentication service")
)

// APIError is a failure reported by the API. Kind is one of the sentinel
// errors above; Message is the server's text, shown to the user verbatim.
type APIError struct {
	Kind    error
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	}
	return e.Kind.Error()
}

func (e *APIError) Unwrap() error {
	return e.Kind
}
