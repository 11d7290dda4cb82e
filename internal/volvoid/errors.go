package volvoid

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"
)

var (
	// ErrInvalidGrant means the code or refresh token was rejected as expired, used or
	// mismatched. Retrying with the same grant is pointless.
	ErrInvalidGrant = errors.New("grant expired or already used")
	// ErrNetwork means the token endpoint could not be reached or failed temporarily.
	ErrNetwork = errors.New("token endpoint unreachable")
	// ErrUnexpectedResponse means the token endpoint answered with something unusable.
	ErrUnexpectedResponse = errors.New("unexpected token endpoint response")
)

// Error carries the classification of a token endpoint failure together with the
// vendor's error code and description, if any.
type Error struct {
	Kind        error
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Code != "" {
		msg += " (" + e.Code
		if e.Description != "" {
			msg += ": " + e.Description
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the classification and the underlying error to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// classify maps errors returned by golang.org/x/oauth2 onto the package's error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		e := &Error{
			Kind:        ErrUnexpectedResponse,
			Code:        retrieveErr.ErrorCode,
			Description: retrieveErr.ErrorDescription,
			Err:         statusError(retrieveErr.Response),
		}
		switch {
		case retrieveErr.ErrorCode == "invalid_grant":
			e.Kind = ErrInvalidGrant
		case retrieveErr.ErrorCode == "" && retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError:
			e.Kind = ErrNetwork
		}
		return e
	}

	// *url.Error from http.Client.Do implements net.Error
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: ErrNetwork, Err: err}
	}

	return &Error{Kind: ErrUnexpectedResponse, Err: err}
}

func statusError(resp *http.Response) error {
	if resp == nil {
		return nil
	}
	return fmt.Errorf("status %s", resp.Status)
}

// Redact shortens a secret to a prefix that is safe to log.
func Redact(secret string) string {
	const keep = 6
	if len(secret) <= keep*2 {
		return "***"
	}
	return secret[:keep] + "..."
}
