// Package sdkerr defines the error taxonomy shared by the card and token packages.
// Every error carries a stable code so callers can branch with errors.Is.
package sdkerr

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	// CodeValidation indicates bad constructor or call arguments.
	CodeValidation = "VALIDATION"

	// CodeMalformedToken indicates a token string that does not parse.
	CodeMalformedToken = "MALFORMED_TOKEN"

	// CodeParse indicates snapshot bytes that are not valid UTF-8 JSON.
	CodeParse = "PARSE"

	// CodePrivateKeyExists indicates a name collision when storing a private key.
	CodePrivateKeyExists = "PRIVATE_KEY_EXISTS"

	// CodeCardVerification indicates a card failed signature or consistency checks.
	CodeCardVerification = "CARD_VERIFICATION"

	// CodeHTTP indicates a non-2xx response from the card service.
	CodeHTTP = "HTTP"
)

// Error is a domain error with a code.
type Error struct {
	// Code is one of the Code* constants.
	Code string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf is New with a format string.
func Newf(code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new Error that wraps an underlying error.
func Wrap(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Sentinels for errors.Is checks.
var (
	ErrValidation       = New(CodeValidation, "invalid argument")
	ErrMalformedToken   = New(CodeMalformedToken, "token is malformed")
	ErrParse            = New(CodeParse, "snapshot cannot be parsed")
	ErrPrivateKeyExists = New(CodePrivateKeyExists, "private key already exists")
	ErrCardVerification = New(CodeCardVerification, "card verification failed")
	ErrHTTP             = New(CodeHTTP, "card service request failed")
)

// AsError checks if err is an *Error and returns it if so.
func AsError(err error) (*Error, bool) {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr, true
	}
	return nil, false
}

// GetErrorCode extracts the code from an *Error, or returns the empty string.
func GetErrorCode(err error) string {
	if sdkErr, ok := AsError(err); ok {
		return sdkErr.Code
	}
	return ""
}
