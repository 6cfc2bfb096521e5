package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AssessmentTypeQuiz       = "quiz"
	AssessmentTypeScenario   = "scenario"
	AssessmentTypeSimulation = "simulation"
	AssessmentTypeCheckpoint = "checkpoint"
)

const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeTrueFalse      = "true_false"
	QuestionTypeShortAnswer    = "short_answer"
	QuestionTypeScenarioBranch = "scenario_branch"
)

type Assessment struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID *uuid.UUID `gorm:"type:uuid;index" json:"lesson_id,omitempty"`
	ModuleID *uuid.UUID `gorm:"type:uuid;index" json:"module_id,omitempty"`
	CourseID *uuid.UUID `gorm:"type:uuid;index" json:"course_id,omitempty"`

	Title            string `gorm:"column:title;not null" json:"title"`
	Description      string `gorm:"column:description;type:text" json:"description"`
	AssessmentType   string `gorm:"column:assessment_type;not null;default:'quiz'" json:"assessment_type"`
	PassingScore     int    `gorm:"column:passing_score;not null;default:70" json:"passing_score"`
	MaxAttempts      *int   `gorm:"column:max_attempts" json:"max_attempts,omitempty"`
	TimeLimitMinutes *int   `gorm:"column:time_limit_minutes" json:"time_limit_minutes,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Assessment) TableName() string { return "assessment" }

type Question struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID uuid.UUID   `gorm:"type:uuid;not null;index" json:"assessment_id"`
	Assessment   *Assessment `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssessmentID;references:ID" json:"assessment,omitempty"`

	QuestionText string         `gorm:"column:question_text;type:text;not null" json:"question_text"`
	QuestionType string         `gorm:"column:question_type;not null" json:"question_type"`
	OrderIndex   int            `gorm:"column:order_index;not null" json:"order_index"`
	Points       int            `gorm:"column:points;not null;default:1" json:"points"`
	Explanation  string         `gorm:"column:explanation;type:text" json:"explanation,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Question) TableName() string { return "question" }

// RequiresSingleCorrect reports whether questions of this type must carry exactly one correct option.
func RequiresSingleCorrect(questionType string) bool {
	return questionType == QuestionTypeMultipleChoice || questionType == QuestionTypeTrueFalse
}

type AnswerOption struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID uuid.UUID `gorm:"type:uuid;not null;index" json:"question_id"`
	Question   *Question `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuestionID;references:ID" json:"question,omitempty"`

	OptionText  string `gorm:"column:option_text;type:text;not null" json:"option_text"`
	IsCorrect   bool   `gorm:"column:is_correct;not null;default:false" json:"is_correct"`
	OrderIndex  int    `gorm:"column:order_index;not null" json:"order_index"`
	Explanation string `gorm:"column:explanation;type:text" json:"explanation,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AnswerOption) TableName() string { return "answer_option" }
