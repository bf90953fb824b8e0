package course

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CourseVersion is an append-only snapshot of a course before an update.
type CourseVersion struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	CourseID    string         `gorm:"type:varchar(36);not null;index" json:"courseId"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Summary     string         `gorm:"type:text;not null" json:"summary"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	StartDate   datatypes.Date `gorm:"not null" json:"startDate"`
	EndDate     datatypes.Date `gorm:"not null" json:"endDate"`
	Capacity    int            `gorm:"not null" json:"capacity"`
	Visibility  Visibility     `gorm:"type:varchar(10);not null" json:"visibility"`
	Version     int            `gorm:"not null" json:"version"`
	ChangedByID string         `gorm:"type:varchar(36);not null" json:"changedById"`
	ChangedAt   time.Time      `gorm:"not null;index" json:"changedAt"`
}

func (CourseVersion) TableName() string {
	return "course_versions"
}

func (v *CourseVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
