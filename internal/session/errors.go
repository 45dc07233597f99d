package session

import (
	"errors"
	"fmt"

	"github.com/voltway/distctl/internal/gateway"
)

var (
	// ErrNoPendingChallenge means a challenge action ran with no challenge open
	ErrNoPendingChallenge = errors.New("no pending verification challenge")
	// ErrInvalidServerResponse means the API reported success without a usable
	// identity, or with a body that could not be decoded
	ErrInvalidServerResponse = errors.New("invalid server response")
	// ErrInvalidInput means a required field was empty
	ErrInvalidInput = errors.New("missing required input")
	// ErrMFAFirst means a reset was attempted while MFA is still outstanding
	ErrMFAFirst = errors.New("multi-factor verification must be completed first")
	// ErrCorruptState means the stored session slice could not be decoded
	ErrCorruptState = errors.New("stored session is corrupted")
)

// Message converts err into the text shown to the user
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *gateway.APIError
	switch {
	case errors.Is(err, gateway.ErrNetworkFailure):
		return "Unable to reach the server. Please try again."
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, ErrInvalidServerResponse):
		return "Unexpected response from the server. Please try again."
	case errors.Is(err, ErrNoPendingChallenge):
		return "No verification is in progress. Please sign in again."
	case errors.Is(err, ErrMFAFirst):
		return "Enter your verification code before changing your password."
	default:
		return err.Error()
	}
}

// classifyGatewayError folds an undecodable success body into
// ErrInvalidServerResponse. The decode detail is kept for logs only.
func classifyGatewayError(err error) error {
	if errors.Is(err, gateway.ErrMalformedResponse) {
		return fmt.Errorf("%w: %v", ErrInvalidServerResponse, err)
	}
	return err
}
