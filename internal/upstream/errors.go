package upstream

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInsufficientBalance marks a rejected order whose cause is a wallet
// balance too low to cover the quoted amount. It is the only business
// failure with a dedicated recovery path (redirect to wallet funding), so
// it gets a structured kind instead of leaving callers to match message
// text themselves.
var ErrInsufficientBalance = errors.New("insufficient wallet balance")

// APIError is an application-level rejection from the logistics platform.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream: %s (HTTP %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.kind }

// NewAPIError classifies the server message once, at the API boundary.
// The platform reports balance failures as free text, so the substring
// match lives here and nowhere else; everything downstream switches on
// the error kind via errors.Is.
func NewAPIError(status int, message string) *APIError {
	e := &APIError{StatusCode: status, Message: message}
	if strings.Contains(strings.ToLower(message), "insufficient balance") {
		e.kind = ErrInsufficientBalance
	}
	return e
}
