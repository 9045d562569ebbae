package callback

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthenticationError represents a failure of the local login flow around the handshake.
type AuthenticationError struct {
	// Type is the machine-readable error type.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code is the HTTP status or process exit code associated with the error.
	Code int `json:"code"`
	// Cause is the underlying error.
	Cause error `json:"-"`
}

func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

var (
	// ErrServerStartFailed is returned when the local callback server cannot start.
	ErrServerStartFailed = &AuthenticationError{
		Type:    "server_start_failed",
		Message: "Failed to start OAuth callback server",
		Code:    http.StatusInternalServerError,
	}

	// ErrPortInUse is returned when the callback port is taken. Code is the process exit code.
	ErrPortInUse = &AuthenticationError{
		Type:    "port_in_use",
		Message: "OAuth callback port is already in use",
		Code:    13,
	}

	// ErrCallbackTimeout is returned when no redirect arrives in time.
	ErrCallbackTimeout = &AuthenticationError{
		Type:    "callback_timeout",
		Message: "Timeout waiting for OAuth callback",
		Code:    http.StatusRequestTimeout,
	}
)

// NewAuthenticationError copies baseErr and attaches cause.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Code:    baseErr.Code,
		Cause:   cause,
	}
}

// IsAuthenticationError reports whether err wraps an AuthenticationError.
func IsAuthenticationError(err error) bool {
	_, ok := errors.AsType[*AuthenticationError](err)
	return ok
}

// GetUserFriendlyMessage returns a message suitable for the terminal.
func GetUserFriendlyMessage(err error) string {
	authErr, ok := errors.AsType[*AuthenticationError](err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}
	switch authErr.Type {
	case ErrPortInUse.Type:
		return "The callback port is already in use. Stop the web host or pass -oauth-callback-port and try again."
	case ErrCallbackTimeout.Type:
		return "Authentication timed out. Please try again."
	case ErrServerStartFailed.Type:
		return "Could not start the local callback server. Please try again."
	default:
		return "Authentication failed. Please try again."
	}
}
