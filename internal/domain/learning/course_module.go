package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CourseModule struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index:idx_module_course_order,priority:1" json:"course_id"`
	Course   *Course   `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`

	Title                    string                      `gorm:"column:title;not null" json:"title"`
	Description              string                      `gorm:"column:description;type:text" json:"description"`
	OrderIndex               int                         `gorm:"column:order_index;not null;index:idx_module_course_order,priority:2" json:"order_index"`
	EstimatedDurationMinutes int                         `gorm:"column:estimated_duration_minutes" json:"estimated_duration_minutes"`
	LearningObjectives       datatypes.JSONSlice[string] `gorm:"column:learning_objectives;type:jsonb" json:"learning_objectives"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CourseModule) TableName() string { return "course_module" }
