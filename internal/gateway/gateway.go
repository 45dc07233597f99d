// Package gateway is the contract between the session store and the remote
// authentication API, plus an HTTP implementation of it.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Gateway is the remote authentication API
type Gateway interface {
	Login(ctx context.Context, identifier, secret string) (*LoginResponse, error)
	VerifyMFA(ctx context.Context, identifier, code string) (*VerifyResponse, error)
	ResetPassword(ctx context.Context, identifier, otp, newSecret string) (*ResetResponse, error)
	ResendOTP(ctx context.Context, identifier string, purpose Purpose) error
	Logout(ctx context.Context, token string) error
}

// Purpose scopes a one-time passcode
type Purpose string

const (
	PurposeMFA           Purpose = "MFA"
	PurposePasswordReset Purpose = "PASSWORD_RESET"
)

// Valid reports whether p is a known purpose
func (p Purpose) Valid() bool {
	return p == PurposeMFA || p == PurposePasswordReset
}

// Identity is the authenticated-user record returned by the API. Only ID is
// interpreted by the client; the rest is carried for display and requests.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	Token string `json:"token,omitempty"`
}

// Valid reports whether the record identifies a user
func (i *Identity) Valid() bool {
	return i != nil && strings.TrimSpace(i.ID) != ""
}

// UnmarshalJSON accepts the id as either a JSON string or a number
func (i *Identity) UnmarshalJSON(data []byte) error {
	type alias Identity
	var raw struct {
		alias
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Identity(raw.alias)

	id := bytes.TrimSpace(raw.ID)
	switch {
	case len(id) == 0 || bytes.Equal(id, []byte("null")):
		i.ID = ""
	case id[0] == '"':
		if err := json.Unmarshal(id, &i.ID); err != nil {
			return fmt.Errorf("identity id: %w", err)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(id, &n); err != nil {
			return fmt.Errorf("identity id must be a string or number: %w", err)
		}
		i.ID = n.String()
	}
	return nil
}

// LoginResponse is the login result. At most one of the challenge flags or a
// user is expected, but a server may set mfaRequired together with
// forcePasswordReset.
type LoginResponse struct {
	MFARequired        bool      `json:"mfaRequired,omitempty"`
	ForcePasswordReset bool      `json:"forcePasswordReset,omitempty"`
	User               *Identity `json:"user,omitempty"`
	Token              string    `json:"token,omitempty"`
}

// VerifyResponse is the MFA verification result
type VerifyResponse struct {
	User  *Identity `json:"user,omitempty"`
	Token string    `json:"token,omitempty"`
}

// ResetResponse is the password reset result. User is set only by servers
// that sign the account in directly after a reset.
type ResetResponse struct {
	User  *Identity `json:"user,omitempty"`
	Token string    `json:"token,omitempty"`
}

// withToken copies a top-level token into the identity if the record lacks one
func withToken(user *Identity, token string) *Identity {
	if user == nil || token == "" || user.Token != "" {
		return user
	}
	u := *user
	u.Token = token
	return &u
}
