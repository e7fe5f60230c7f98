package mail

import "fmt"

// These constants mirror domain error codes to avoid circular imports.
// The handler layer maps these to HTTP status codes.
const (
	codeNotFound = "not_found"
	codeNotImpl  = "not_implemented"
	codeInvalid  = "invalid"
)

// MailError represents a provider-specific error with a code and message.
// It implements the domain.Error interface pattern for consistent HTTP
// status mapping.
type MailError struct {
	Code    string
	Message string
}

func (e *MailError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *MailError) ErrorCode() string {
	return e.Code
}

func newMailError(code, message string) *MailError {
	return &MailError{Code: code, Message: message}
}

var (
	// ErrNotImplemented is returned by providers that do not support an
	// operation (e.g. directory lookup over bare SMTP).
	ErrNotImplemented = newMailError(codeNotImpl, "Mail provider operation not implemented")

	// ErrInvalidFromAddress is returned when the sender address is invalid.
	ErrInvalidFromAddress = newMailError(codeInvalid, "Invalid sender email address")

	// ErrInvalidToAddress is returned when the recipient address is invalid.
	ErrInvalidToAddress = newMailError(codeInvalid, "Invalid recipient email address")
)

// ErrUserNotFound creates a directory lookup failure for an operator email.
func ErrUserNotFound(email string) error {
	return &MailError{
		Code:    codeNotFound,
		Message: fmt.Sprintf("User %s not found in directory", email),
	}
}
