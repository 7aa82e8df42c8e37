package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call. Validation errors are detected locally and
// never cause a network round trip; domain errors carry the backend's own
// message; transport errors cover connectivity and unstructured failures.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindDomain      Kind = "domain"
	KindTransport   Kind = "transport"
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
)

const (
	genericFailureMsg   = "Something went wrong. Please try again later."
	sessionExpiredMsg   = "Your session has expired. Please log in again."
	rateLimitedMsg      = "Too many requests. Please wait a moment and try again."
	requestTimedOutMsg  = "The request timed out. Please try again."
	actionInProgressMsg = "This action is already in progress."
)

// Error is the single error type surfaced by the client. Message is always
// safe to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// IsKind reports whether err is an api.Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}

func validationErr(err error) *Error {
	return &Error{Kind: KindValidation, Message: err.Error(), cause: err}
}

func validationMsg(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func domainErr(message string, details []string) *Error {
	if message == "" {
		message = genericFailureMsg
	}
	return &Error{Kind: KindDomain, Message: message, Details: details}
}

func transportErr(cause error) *Error {
	return &Error{Kind: KindTransport, Message: genericFailureMsg, cause: cause}
}

func timeoutErr(cause error) *Error {
	return &Error{Kind: KindTransport, Message: requestTimedOutMsg, cause: cause}
}

func authErr(cause error) *Error {
	return &Error{Kind: KindAuth, Message: sessionExpiredMsg, cause: cause}
}

func rateLimitedErr() *Error {
	return &Error{Kind: KindRateLimited, Message: rateLimitedMsg}
}
