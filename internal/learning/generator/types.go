package generator

import (
	"time"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
)

const (
	DefaultLevel               = types.LevelBeginner
	DefaultMaxModules          = 5
	DefaultMaxLessonsPerModule = 6
	DefaultQuestionCount       = 5
)

type Options struct {
	Title               string `json:"title,omitempty"`
	Level               string `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	MaxModules          int    `json:"maxModules,omitempty" validate:"gte=0,lte=50"`
	MaxLessonsPerModule int    `json:"maxLessonsPerModule,omitempty" validate:"gte=0,lte=50"`
	IncludeAssessments  *bool  `json:"includeAssessments,omitempty"`
}

// WithDefaults fills unset fields: beginner, 5 modules, 6 lessons, assessments on.
func (o Options) WithDefaults() Options {
	if o.Level == "" {
		o.Level = DefaultLevel
	}
	if o.MaxModules <= 0 {
		o.MaxModules = DefaultMaxModules
	}
	if o.MaxLessonsPerModule <= 0 {
		o.MaxLessonsPerModule = DefaultMaxLessonsPerModule
	}
	if o.IncludeAssessments == nil {
		v := true
		o.IncludeAssessments = &v
	}
	return o
}

func (o Options) AssessmentsEnabled() bool {
	return o.IncludeAssessments == nil || *o.IncludeAssessments
}

// SourceArticle is the slice of an article a prompt needs.
type SourceArticle struct {
	ID           string
	Title        string
	Content      string
	URL          string
	LastModified time.Time
}

type CourseOutline struct {
	Title                    string          `json:"title" validate:"required"`
	Description              string          `json:"description"`
	Level                    string          `json:"level" validate:"required,oneof=beginner intermediate advanced expert"`
	EstimatedDurationMinutes int             `json:"estimatedDurationMinutes" validate:"gte=0"`
	LearningObjectives       []string        `json:"learningObjectives"`
	Prerequisites            []string        `json:"prerequisites"`
	Modules                  []ModuleOutline `json:"modules" validate:"required,min=1,dive"`
}

type ModuleOutline struct {
	Title                    string          `json:"title" validate:"required"`
	Description              string          `json:"description"`
	EstimatedDurationMinutes int             `json:"estimatedDurationMinutes" validate:"gte=0"`
	LearningObjectives       []string        `json:"learningObjectives"`
	Lessons                  []LessonOutline `json:"lessons" validate:"required,min=1,dive"`
}

type LessonOutline struct {
	Title                    string   `json:"title" validate:"required"`
	Content                  string   `json:"content"`
	ContentType              string   `json:"contentType" validate:"required,oneof=text video interactive quiz"`
	EstimatedDurationMinutes int      `json:"estimatedDurationMinutes" validate:"gte=0"`
	SourceArticles           []string `json:"sourceArticles"`
}

type LessonContent struct {
	Content                  string `json:"content" validate:"required"`
	EstimatedDurationMinutes int    `json:"estimatedDurationMinutes" validate:"gte=0"`
}

type Assessment struct {
	Title          string     `json:"title" validate:"required"`
	Description    string     `json:"description"`
	AssessmentType string     `json:"assessmentType" validate:"required,oneof=quiz scenario simulation checkpoint"`
	PassingScore   int        `json:"passingScore" validate:"gte=0,lte=100"`
	Questions      []Question `json:"questions" validate:"required,min=1,dive"`
}

type Question struct {
	QuestionText  string         `json:"questionText" validate:"required"`
	QuestionType  string         `json:"questionType" validate:"required,oneof=multiple_choice true_false short_answer scenario_branch"`
	Points        int            `json:"points" validate:"gte=0"`
	Explanation   string         `json:"explanation"`
	AnswerOptions []AnswerOption `json:"answerOptions" validate:"dive"`
}

type AnswerOption struct {
	OptionText  string `json:"optionText" validate:"required"`
	IsCorrect   bool   `json:"isCorrect"`
	Explanation string `json:"explanation"`
}

type ContentUpdate struct {
	UpdatedContent string   `json:"updatedContent" validate:"required"`
	ChangeSummary  string   `json:"changeSummary"`
	ConflictAreas  []string `json:"conflictAreas"`
}
