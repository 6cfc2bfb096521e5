package learning

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment and Progress are owned by the learner-facing app; generation only reads them.

type Enrollment struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"learner_id"`
	CourseID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"course_id"`
	Status             string     `gorm:"column:status;not null;default:'active'" json:"status"`
	EnrolledAt         time.Time  `gorm:"column:enrolled_at;not null" json:"enrolled_at"`
	StartedAt          *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	ProgressPercentage int        `gorm:"column:progress_percentage;not null;default:0" json:"progress_percentage"`
	LastAccessedAt     *time.Time `gorm:"column:last_accessed_at" json:"last_accessed_at,omitempty"`
	CreatedAt          time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null" json:"updated_at"`
}

func (Enrollment) TableName() string { return "enrollment" }

type Progress struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EnrollmentID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"enrollment_id"`
	LessonID         *uuid.UUID `gorm:"type:uuid;index" json:"lesson_id,omitempty"`
	ModuleID         *uuid.UUID `gorm:"type:uuid;index" json:"module_id,omitempty"`
	Status           string     `gorm:"column:status;not null;default:'not_started'" json:"status"`
	Score            *int       `gorm:"column:score" json:"score,omitempty"`
	TimeSpentMinutes *int       `gorm:"column:time_spent_minutes" json:"time_spent_minutes,omitempty"`
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updated_at"`
}

func (Progress) TableName() string { return "progress" }
