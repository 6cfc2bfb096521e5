package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
	LevelExpert       = "expert"
)

const (
	CourseStatusDraft     = "draft"
	CourseStatusPublished = "published"
	CourseStatusArchived  = "archived"
)

type Course struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	KnowledgeSourceID *uuid.UUID `gorm:"type:uuid;index" json:"knowledge_source_id,omitempty"`

	Title                    string                      `gorm:"column:title;not null" json:"title"`
	Description              string                      `gorm:"column:description;type:text" json:"description"`
	Level                    string                      `gorm:"column:level;not null;default:'beginner'" json:"level"`
	Status                   string                      `gorm:"column:status;not null;default:'draft';index" json:"status"`
	EstimatedDurationMinutes int                         `gorm:"column:estimated_duration_minutes" json:"estimated_duration_minutes"`
	LearningObjectives       datatypes.JSONSlice[string] `gorm:"column:learning_objectives;type:jsonb" json:"learning_objectives"`
	Prerequisites            datatypes.JSONSlice[string] `gorm:"column:prerequisites;type:jsonb" json:"prerequisites"`
	Version                  int                         `gorm:"column:version;not null;default:1" json:"version"`
	AIGenerated              bool                        `gorm:"column:ai_generated;not null;default:false;index" json:"ai_generated"`
	LastGeneratedAt          *time.Time                  `gorm:"column:last_generated_at" json:"last_generated_at,omitempty"`

	// Set while a run holds the database-backed generation lock.
	GenerationLockToken string     `gorm:"column:generation_lock_token" json:"-"`
	GenerationLockedAt  *time.Time `gorm:"column:generation_locked_at" json:"-"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }
