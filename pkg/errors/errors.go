package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the different classes of failure the API surfaces
type Kind string

const (
	KindLoginRequired          Kind = "login_required"
	KindCookieExpired          Kind = "cookie_expired"
	KindBadCredentials         Kind = "bad_credentials"
	KindCheckpointRequired     Kind = "checkpoint_required"
	KindChallengeRequired      Kind = "challenge_required"
	KindSentryBlock            Kind = "sentry_block"
	KindFeedbackRequired       Kind = "feedback_required"
	KindThrottled              Kind = "throttled"
	KindRequestHeadersTooLarge Kind = "request_headers_too_large"
	KindConnection             Kind = "connection"
	KindServer                 Kind = "server"
	KindGeneric                Kind = "generic"
)

// Error represents an API error with classification information.
// ErrorResponse carries the raw response body for logging; ChallengeURL is
// populated for checkpoint/challenge kinds so callers can resolve the
// step-up flow out of band.
type Error struct {
	Kind          Kind
	Message       string
	Code          int
	ErrorResponse string
	ChallengeURL  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("instagram %s error (code %d): %s", e.Kind, e.Code, e.Message)
}

// New creates an Error of the given kind
func New(kind Kind, message string, code int) *Error {
	return &Error{Kind: kind, Message: message, Code: code}
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// patternTable maps the vendor's error_type strings to kinds. Order matters:
// the first matching entry wins.
var patternTable = []struct {
	patterns []string
	kind     Kind
}{
	{[]string{"bad_password", "invalid_user"}, KindBadCredentials},
	{[]string{"login_required"}, KindLoginRequired},
	{[]string{"checkpoint_required", "checkpoint_challenge_required", "checkpoint_logged_out"}, KindCheckpointRequired},
	{[]string{"challenge_required"}, KindChallengeRequired},
	{[]string{"sentry_block"}, KindSentryBlock},
	{[]string{"feedback_required"}, KindFeedbackRequired},
}

// Classify maps a vendor error_type (falling back to the message field when
// error_type is empty) to a Kind. Unknown strings fall through to KindGeneric.
func Classify(errorType, message string) Kind {
	key := errorType
	if key == "" {
		key = message
	}
	key = strings.TrimSpace(key)
	for _, entry := range patternTable {
		for _, p := range entry.patterns {
			if key == p {
				return entry.kind
			}
		}
	}
	return KindGeneric
}

// IsRetryable checks if an error kind is worth retrying by a caller-side
// retry policy. The transport itself never retries.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindConnection, KindThrottled, KindServer:
		return true
	default:
		return false
	}
}

// ValidationError reports a bad parameter value caught before any network
// call. It is deliberately not an *Error so it can never be confused with
// the network taxonomy.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidation creates a ValidationError for the given field
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
