package screens

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultPasswordMinLength applies when no policy is configured
const DefaultPasswordMinLength = 8

// ErrNotReady means a required field is empty or a request is in flight
var ErrNotReady = errors.New("form is incomplete")

// ValidationError is a field-level problem shown next to the input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var fieldLabels = map[string]string{
	"Email":       "Email",
	"Password":    "Password",
	"Code":        "Verification code",
	"OTP":         "Reset code",
	"NewPassword": "New password",
	"Confirm":     "Password confirmation",
}

// validateForm runs the struct rules on form and, when minLength > 0, the
// password policy on newPassword.
func validateForm(form any, newPassword string, minLength int) error {
	if err := validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return toValidationError(fieldErrs[0])
		}
		return err
	}
	if minLength > 0 {
		if err := validate.Var(newPassword, fmt.Sprintf("min=%d", minLength)); err != nil {
			return &ValidationError{
				Field:   "NewPassword",
				Message: fmt.Sprintf("Password must be at least %d characters", minLength),
			}
		}
	}
	return nil
}

func toValidationError(fe validator.FieldError) *ValidationError {
	field := fe.Field()
	label := fieldLabels[field]
	if label == "" {
		label = field
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = label + " is required"
	case "email":
		msg = "Enter a valid email address"
	case "len":
		msg = fmt.Sprintf("%s must be %s digits", label, fe.Param())
	case "number":
		msg = label + " must contain digits only"
	case "eqfield":
		msg = "Passwords do not match"
	default:
		msg = fmt.Sprintf("%s is invalid", label)
	}
	return &ValidationError{Field: field, Message: msg}
}

func filled(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}
