// Package apierror defines the error types shared by the remote API clients.
//
// Two classes of failure cross the client boundary:
//   - AuthenticationError: a required credential or setting is missing. These
//     are raised before any network call is attempted and are never retried.
//   - RemoteError: the remote system answered with a non-2xx status (or the
//     transport failed). Carries the status code and a decoded message where
//     one could be extracted from the response body.
package apierror

import (
	"errors"
	"fmt"
)

// AuthenticationError indicates a missing credential or required setting.
type AuthenticationError struct {
	Setting string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("missing required setting %s", e.Setting)
}

// RemoteError indicates a failed call to a remote system.
type RemoteError struct {
	System     string // "heroku" or "github"
	StatusCode int    // 0 when the transport failed before a response
	Message    string // decoded human-readable detail, may be empty
	Err        error  // underlying error, may be nil
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s request failed", e.System)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s with status %d", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Message == "" && e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsRemote reports whether err is a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
