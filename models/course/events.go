package course

import "time"

// EnrollmentEvent describes a committed enrollment state change.
type EnrollmentEvent struct {
	EnrollmentID string           `json:"enrollmentId"`
	CourseID     string           `json:"courseId"`
	CourseTitle  string           `json:"courseTitle"`
	StudentID    string           `json:"studentId"`
	StudentEmail string           `json:"studentEmail,omitempty"`
	Status       EnrollmentStatus `json:"status"`
	ActorID      string           `json:"actorId"`
	OccurredAt   time.Time        `json:"occurredAt"`
}
