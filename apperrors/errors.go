package apperrors

import "errors"

// Error is a business outcome with a stable code.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message for logs
	Metadata map[string]string // Extra context, e.g. the offending id
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a business error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a business error carrying metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a business error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// GetCode extracts the code from any error, CodeUnknown when err is not a
// business error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// KindOf returns the taxonomy bucket of err.
func KindOf(err error) Kind {
	return GetCode(err).Kind()
}

func IsNotFound(err error) bool          { return KindOf(err) == KindNotFound }
func IsVersionConflict(err error) bool   { return KindOf(err) == KindVersionConflict }
func IsConflict(err error) bool          { return KindOf(err) == KindConflict }
func IsCapacityExceeded(err error) bool  { return KindOf(err) == KindCapacityExceeded }
func IsInvalidTransition(err error) bool { return KindOf(err) == KindInvalidTransition }
func IsInvalidArgument(err error) bool   { return KindOf(err) == KindInvalidArgument }

// Sentinels for errors.Is comparisons; Is matches by code only.
var (
	ErrCourseNotFound     = New(CodeCourseNotFound, "course not found")
	ErrEnrollmentNotFound = New(CodeEnrollmentNotFound, "enrollment not found")
	ErrUserNotFound       = New(CodeUserNotFound, "user not found")
	ErrVersionConflict    = New(CodeVersionConflict, "course version conflict")
	ErrAlreadyEnrolled    = New(CodeAlreadyEnrolled, "student already has an active enrollment for this course")
	ErrLockContention     = New(CodeLockContention, "enrollment is being processed, try again")
	ErrCapacityExceeded   = New(CodeCapacityExceeded, "course capacity reached")
	ErrAlreadyProcessed   = New(CodeAlreadyProcessed, "enrollment already processed")
	ErrCannotCancel       = New(CodeCannotCancel, "processed enrollment cannot be cancelled")
	ErrAlreadyCancelled   = New(CodeAlreadyCancelled, "enrollment already cancelled")
	ErrInvalidCredentials = New(CodeUnauthorized, "invalid credentials")
	ErrAccountBlocked     = New(CodeAccountBlocked, "account temporarily blocked")
	ErrForbidden          = New(CodeForbidden, "forbidden")
)
