package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ContentTypeText        = "text"
	ContentTypeVideo       = "video"
	ContentTypeInteractive = "interactive"
	ContentTypeQuiz        = "quiz"
)

type Lesson struct {
	ID       uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ModuleID uuid.UUID     `gorm:"type:uuid;not null;index:idx_lesson_module_order,priority:1" json:"module_id"`
	Module   *CourseModule `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModuleID;references:ID" json:"module,omitempty"`

	Title                    string `gorm:"column:title;not null" json:"title"`
	Content                  string `gorm:"column:content;type:text" json:"content"`
	ContentType              string `gorm:"column:content_type;not null;default:'text'" json:"content_type"`
	OrderIndex               int    `gorm:"column:order_index;not null;index:idx_lesson_module_order,priority:2" json:"order_index"`
	EstimatedDurationMinutes int    `gorm:"column:estimated_duration_minutes" json:"estimated_duration_minutes"`

	// External article ids this lesson was generated from; regeneration re-fetches exactly these.
	SourceArticles  datatypes.JSONSlice[string] `gorm:"column:source_articles;type:jsonb" json:"source_articles"`
	AIGenerated     bool                        `gorm:"column:ai_generated;not null;default:false" json:"ai_generated"`
	LastGeneratedAt *time.Time                  `gorm:"column:last_generated_at" json:"last_generated_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Lesson) TableName() string { return "lesson" }

// WantsAssessment reports whether lessons of this content type get a generated quiz.
func WantsAssessment(contentType string) bool {
	return contentType == ContentTypeText || contentType == ContentTypeQuiz
}
