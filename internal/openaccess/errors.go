package openaccess

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the DOI is unknown to the service.
	ErrNotFound = errors.New("DOI not found in Unpaywall")

	// ErrNoEmail indicates no contact email is configured; Unpaywall rejects
	// anonymous requests.
	ErrNoEmail = errors.New("unpaywall email not configured")

	// ErrRateLimited indicates the rate limit has been exceeded.
	ErrRateLimited = errors.New("Unpaywall rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with Unpaywall")
)

// APIError is a non-success response from the service.
type APIError struct {
	StatusCode int
	Message    string
	DOI        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Unpaywall API error (status %d): %s (doi: %s)", e.StatusCode, e.Message, e.DOI)
}

// IsNotFound returns true if the error indicates the DOI was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
