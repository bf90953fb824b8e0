package enrollments

import (
	"courseportal/apperrors"
	"courseportal/models/course"
)

// Action is a request to move an enrollment out of PENDING.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
	ActionCancel  Action = "CANCEL"
)

// DecisionAction maps a manager decision onto an Action. Only APPROVED and
// REJECTED are decisions.
func DecisionAction(decision course.EnrollmentStatus) (Action, error) {
	switch decision {
	case course.StatusApproved:
		return ActionApprove, nil
	case course.StatusRejected:
		return ActionReject, nil
	}
	return "", apperrors.WithMetadata(apperrors.CodeInvalidArgument,
		"decision must be APPROVED or REJECTED",
		map[string]string{"field": "status"})
}

// Transition returns the status an enrollment in from moves to under
// action, or the InvalidTransition error that forbids it.
//
//	PENDING   --approve--> APPROVED
//	PENDING   --reject---> REJECTED
//	PENDING   --cancel---> CANCELLED
//
// Every other pair fails and leaves the enrollment as it is.
func Transition(from course.EnrollmentStatus, action Action) (course.EnrollmentStatus, error) {
	switch action {
	case ActionApprove, ActionReject:
		if from != course.StatusPending {
			return from, apperrors.ErrAlreadyProcessed
		}
		if action == ActionApprove {
			return course.StatusApproved, nil
		}
		return course.StatusRejected, nil

	case ActionCancel:
		switch from {
		case course.StatusPending:
			return course.StatusCancelled, nil
		case course.StatusCancelled:
			return from, apperrors.ErrAlreadyCancelled
		default:
			return from, apperrors.ErrCannotCancel
		}
	}
	return from, apperrors.New(apperrors.CodeInvalidArgument, "unknown enrollment action")
}
