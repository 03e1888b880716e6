package api

import (
	"errors"
	"fmt"
)

// Sentinel failures a caller can test with errors.Is. The server is
// authoritative: ErrValidationRejected means it disagreed with a request
// the client considered well formed.
var (
	ErrNotFound           = errors.New("reminder not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrValidationRejected = errors.New("rejected by server validation")
	ErrLoginRejected      = errors.New("login rejected")
)

// StatusError carries an unexpected HTTP response, with whatever detail
// the server included in the body.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}
