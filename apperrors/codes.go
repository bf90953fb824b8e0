// Package apperrors provides the typed business outcomes returned by the
// course and enrollment services.
package apperrors

import "github.com/gofiber/fiber/v2"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error outside the business taxonomy.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeNotFound           Code = "NOT_FOUND"
	CodeCourseNotFound     Code = "COURSE.NOT_FOUND"
	CodeEnrollmentNotFound Code = "ENROLLMENT.NOT_FOUND"
	CodeUserNotFound       Code = "USER.NOT_FOUND"

	// Concurrency errors
	CodeVersionConflict Code = "COURSE.VERSION_CONFLICT"
	CodeConflict        Code = "CONFLICT"
	CodeAlreadyEnrolled Code = "ENROLLMENT.ALREADY_ENROLLED"
	CodeLockContention  Code = "ENROLLMENT.LOCK_CONTENTION"

	// Admission errors
	CodeCapacityExceeded Code = "ENROLLMENT.MAX_ENROLLMENTS_REACHED"

	// Enrollment state machine errors
	CodeAlreadyProcessed Code = "ENROLLMENT.ALREADY_PROCESSED"
	CodeCannotCancel     Code = "ENROLLMENT.CANNOT_CANCEL_APPROVED"
	CodeAlreadyCancelled Code = "ENROLLMENT.ALREADY_CANCELLED"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthorized    Code = "CREDENTIALS.INVALID"
	CodeAccountBlocked  Code = "CREDENTIALS.BLOCKED"
	CodeForbidden       Code = "FORBIDDEN"
)

// HTTPStatus maps a code to the status the HTTP layer answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeCourseNotFound, CodeEnrollmentNotFound, CodeUserNotFound:
		return fiber.StatusNotFound
	case CodeVersionConflict, CodeConflict, CodeAlreadyEnrolled, CodeLockContention:
		return fiber.StatusConflict
	case CodeCapacityExceeded, CodeAlreadyProcessed, CodeCannotCancel, CodeAlreadyCancelled:
		return fiber.StatusBadRequest
	case CodeInvalidArgument:
		return fiber.StatusUnprocessableEntity
	case CodeUnauthorized, CodeAccountBlocked:
		return fiber.StatusUnauthorized
	case CodeForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// Kind groups codes into the taxonomy the callers branch on.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindVersionConflict
	KindConflict
	KindCapacityExceeded
	KindInvalidTransition
	KindInvalidArgument
	KindUnauthorized
	KindForbidden
)

// Kind returns the taxonomy bucket of the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeNotFound, CodeCourseNotFound, CodeEnrollmentNotFound, CodeUserNotFound:
		return KindNotFound
	case CodeVersionConflict:
		return KindVersionConflict
	case CodeConflict, CodeAlreadyEnrolled, CodeLockContention:
		return KindConflict
	case CodeCapacityExceeded:
		return KindCapacityExceeded
	case CodeAlreadyProcessed, CodeCannotCancel, CodeAlreadyCancelled:
		return KindInvalidTransition
	case CodeInvalidArgument:
		return KindInvalidArgument
	case CodeUnauthorized, CodeAccountBlocked:
		return KindUnauthorized
	case CodeForbidden:
		return KindForbidden
	default:
		return KindUnknown
	}
}
