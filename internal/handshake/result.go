// Package handshake implements the callback half of an OAuth2 authorization-code flow:
// it validates the redirect parameters, exchanges them once with the backend token
// endpoint, classifies the outcome and moves the handler into a terminal state.
package handshake

import (
	"fmt"
	"net/http"
)

// Identity is the principal returned by a successful exchange.
// The zero value is an absent identity.
type Identity struct {
	Username string
	Present  bool
}

// NewIdentity returns a present identity for username.
func NewIdentity(username string) Identity {
	return Identity{Username: username, Present: true}
}

func (i Identity) String() string {
	if !i.Present {
		return "<absent>"
	}
	return i.Username
}

// RedirectParameters are the two values the identity provider appends to the redirect.
type RedirectParameters struct {
	Code  string
	State string
}

// ExchangeRequest is the payload posted to the token-exchange endpoint.
type ExchangeRequest struct {
	Code  string
	State string
}

// Response is the raw outcome of a completed exchange request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// BodyErr is set when the body could not be read or decoded.
	BodyErr error
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Result is the classified outcome of one handshake attempt.
// Exactly one of Success, TransportFailure, HTTPFailure, MalformedPayload or
// MissingParameters is produced per attempt.
type Result interface {
	isResult()
}

// Success carries the identity extracted from a 2xx exchange response.
type Success struct {
	Identity Identity
}

// TransportFailure means the exchange request did not complete.
type TransportFailure struct {
	Cause error
}

// HTTPFailure means the endpoint answered with a non-2xx status.
type HTTPFailure struct {
	Status  int
	Message string
}

// MalformedPayload means a 2xx response declared JSON but could not be parsed.
type MalformedPayload struct {
	Detail string
}

// MissingParameters means the redirect lacked code or state.
type MissingParameters struct{}

func (Success) isResult()           {}
func (TransportFailure) isResult()  {}
func (HTTPFailure) isResult()       {}
func (MalformedPayload) isResult()  {}
func (MissingParameters) isResult() {}

const (
	MessageMissingParameters = "Authentication failed: Missing required parameters."
	MessageTransportFailure  = "An error occurred while connecting to the server. Please try again."
	MessageMalformedPayload  = "Received an invalid response from the server."
)

// GenericStatusMessage is used when a failed exchange carries no diagnostic body.
func GenericStatusMessage(status int) string {
	return fmt.Sprintf("Login failed with status: %d.", status)
}

// FailureMessage returns the user-facing message for a non-success result.
// It returns an empty string for Success.
func FailureMessage(result Result) string {
	switch r := result.(type) {
	case MissingParameters:
		return MessageMissingParameters
	case TransportFailure:
		return MessageTransportFailure
	case MalformedPayload:
		return MessageMalformedPayload
	case HTTPFailure:
		if r.Message == "" {
			return GenericStatusMessage(r.Status)
		}
		return r.Message
	default:
		return ""
	}
}

// Kind names the result variant for logs.
func Kind(result Result) string {
	switch result.(type) {
	case Success:
		return "success"
	case TransportFailure:
		return "transport_failure"
	case HTTPFailure:
		return "http_failure"
	case MalformedPayload:
		return "malformed_payload"
	case MissingParameters:
		return "missing_parameters"
	default:
		return "unknown"
	}
}
