package course

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Visibility controls who can see and enroll in a course.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// InitialVersion is the version a freshly created course starts at.
const InitialVersion = 1

// Course represents a course offered for enrollment. Version is the
// optimistic concurrency token and only moves through the conditional update.
type Course struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Summary     string         `gorm:"type:text;not null" json:"summary"`
	Content     string         `gorm:"type:text;not null" json:"content"` // HTML
	StartDate   datatypes.Date `gorm:"not null" json:"startDate"`
	EndDate     datatypes.Date `gorm:"not null" json:"endDate"`
	Capacity    int            `gorm:"not null" json:"capacity"`
	Visibility  Visibility     `gorm:"type:varchar(10);not null;default:'PUBLIC';index" json:"visibility"`
	Version     int            `gorm:"not null;default:1" json:"version"`
	CreatedByID string         `gorm:"type:varchar(36);not null;index" json:"createdById"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (Course) TableName() string {
	return "courses"
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Snapshot captures the current field values as a history row tagged with
// the version being replaced.
func (c Course) Snapshot(changedByID string, at time.Time) CourseVersion {
	return CourseVersion{
		CourseID:    c.ID,
		Title:       c.Title,
		Summary:     c.Summary,
		Content:     c.Content,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		Capacity:    c.Capacity,
		Visibility:  c.Visibility,
		Version:     c.Version,
		ChangedByID: changedByID,
		ChangedAt:   at,
	}
}
