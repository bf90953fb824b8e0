package course

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnrollmentStatus is the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	StatusPending   EnrollmentStatus = "PENDING"
	StatusApproved  EnrollmentStatus = "APPROVED"
	StatusRejected  EnrollmentStatus = "REJECTED"
	StatusCancelled EnrollmentStatus = "CANCELLED"
)

// ActiveStatuses are the statuses that occupy a (student, course) pair.
var ActiveStatuses = []EnrollmentStatus{StatusPending, StatusApproved}

// Enrollment tracks a student's request to join a course.
// ProcessedAt and ProcessedByID are either both nil or both set.
type Enrollment struct {
	ID            string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	StudentID     string           `gorm:"type:varchar(36);not null;index" json:"studentId"`
	CourseID      string           `gorm:"type:varchar(36);not null;index:idx_enrollments_course_status" json:"courseId"`
	Status        EnrollmentStatus `gorm:"type:varchar(10);not null;default:'PENDING';index:idx_enrollments_course_status" json:"status"`
	RequestedAt   time.Time        `gorm:"not null;index" json:"requestedAt"`
	ProcessedAt   *time.Time       `json:"processedAt"`
	ProcessedByID *string          `gorm:"type:varchar(36)" json:"processedById"`
	// ActiveKey is "<studentId>:<courseId>" while the enrollment is active and
	// NULL afterwards; the unique index admits one active row per pair.
	ActiveKey *string   `gorm:"type:varchar(80);uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ActiveKeyFor builds the value stored in ActiveKey for an active enrollment.
func ActiveKeyFor(studentID, courseID string) string {
	return studentID + ":" + courseID
}
