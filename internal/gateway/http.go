package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient talks to the authentication API over JSON/HTTP
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = httpClient
	}
}

// WithInsecureTLS accepts self-signed certificates (development gateways only)
func WithInsecureTLS() Option {
	return func(c *HTTPClient) {
		c.httpClient = &http.Client{
			Timeout: c.httpClient.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true,
				},
			},
		}
	}
}

// NewHTTPClient creates a new API client for baseURL
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type resendRequest struct {
	Email   string  `json:"email"`
	Purpose Purpose `json:"purpose"`
}

// Login submits credentials
func (c *HTTPClient) Login(ctx context.Context, identifier, secret string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, "/api/auth/login", "", loginRequest{Email: identifier, Password: secret}, &resp, statusKinds{
		http.StatusBadRequest:   ErrInvalidCredentials,
		http.StatusUnauthorized: ErrInvalidCredentials,
		http.StatusForbidden:    ErrInvalidCredentials,
	})
	if err != nil {
		return nil, err
	}
	resp.User = withToken(resp.User, resp.Token)
	return &resp, nil
}

// VerifyMFA submits an MFA code for identifier
func (c *HTTPClient) VerifyMFA(ctx context.Context, identifier, code string) (*VerifyResponse, error) {
	var resp VerifyResponse
	err := c.do(ctx, "/api/auth/mfa/verify", "", verifyRequest{Email: identifier, Code: code}, &resp, statusKinds{
		http.StatusBadRequest:   ErrInvalidCode,
		http.StatusUnauthorized: ErrInvalidCode,
		http.StatusGone:         ErrInvalidCode,
	})
	if err != nil {
		return nil, err
	}
	resp.User = withToken(resp.User, resp.Token)
	return &resp, nil
}

// ResetPassword sets a new secret using a reset passcode
func (c *HTTPClient) ResetPassword(ctx context.Context, identifier, otp, newSecret string) (*ResetResponse, error) {
	var resp ResetResponse
	err := c.do(ctx, "/api/auth/password/reset", "", resetRequest{Email: identifier, OTP: otp, NewPassword: newSecret}, &resp, statusKinds{
		http.StatusBadRequest:          ErrInvalidOTP,
		http.StatusUnauthorized:        ErrInvalidOTP,
		http.StatusGone:                ErrInvalidOTP,
		http.StatusUnprocessableEntity: ErrPasswordPolicy,
	})
	if err != nil {
		return nil, err
	}
	resp.User = withToken(resp.User, resp.Token)
	return &resp, nil
}

// ResendOTP asks the API to issue a new passcode out of band
func (c *HTTPClient) ResendOTP(ctx context.Context, identifier string, purpose Purpose) error {
	return c.do(ctx, "/api/auth/otp/resend", "", resendRequest{Email: identifier, Purpose: purpose}, nil, nil)
}

// Logout revokes the session token on the server
func (c *HTTPClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, "/api/auth/logout", token, struct{}{}, nil, nil)
}

// statusKinds maps an HTTP status to an error kind for one endpoint
type statusKinds map[int]error

func (c *HTTPClient) do(ctx context.Context, path, token string, body, out any, kinds statusKinds) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: ErrNetworkFailure, Message: fmt.Sprintf("%s: %v", ErrNetworkFailure, unwrapURLError(err))}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		kind, ok := kinds[resp.StatusCode]
		if !ok {
			kind = ErrUnexpectedStatus
		}
		return &APIError{Kind: kind, Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// errorMessage extracts the server's message from an error body
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

func unwrapURLError(err error) error {
	if inner := errors.Unwrap(err); inner != nil {
		return inner
	}
	return err
}
