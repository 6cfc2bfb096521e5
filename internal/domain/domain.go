package domain

import (
	"github.com/ejwhite7/zendesk-academy/internal/domain/content"
	"github.com/ejwhite7/zendesk-academy/internal/domain/jobs"
	"github.com/ejwhite7/zendesk-academy/internal/domain/learning"
)

type KnowledgeSource = content.KnowledgeSource
type SourceConfig = content.SourceConfig
type Article = content.Article

type Course = learning.Course
type CourseModule = learning.CourseModule
type Lesson = learning.Lesson
type Assessment = learning.Assessment
type Question = learning.Question
type AnswerOption = learning.AnswerOption
type Enrollment = learning.Enrollment
type Progress = learning.Progress

type GenerationRun = jobs.GenerationRun

const (
	SourceTypeZendesk    = content.SourceTypeZendesk
	SourceTypeConfluence = content.SourceTypeConfluence
	SourceTypeNotion     = content.SourceTypeNotion
	SourceTypeGithub     = content.SourceTypeGithub

	SourceStatusActive   = content.SourceStatusActive
	SourceStatusInactive = content.SourceStatusInactive
	SourceStatusSyncing  = content.SourceStatusSyncing
	SourceStatusError    = content.SourceStatusError
)

const (
	LevelBeginner     = learning.LevelBeginner
	LevelIntermediate = learning.LevelIntermediate
	LevelAdvanced     = learning.LevelAdvanced
	LevelExpert       = learning.LevelExpert

	CourseStatusDraft     = learning.CourseStatusDraft
	CourseStatusPublished = learning.CourseStatusPublished
	CourseStatusArchived  = learning.CourseStatusArchived

	ContentTypeText        = learning.ContentTypeText
	ContentTypeVideo       = learning.ContentTypeVideo
	ContentTypeInteractive = learning.ContentTypeInteractive
	ContentTypeQuiz        = learning.ContentTypeQuiz

	AssessmentTypeQuiz       = learning.AssessmentTypeQuiz
	AssessmentTypeScenario   = learning.AssessmentTypeScenario
	AssessmentTypeSimulation = learning.AssessmentTypeSimulation
	AssessmentTypeCheckpoint = learning.AssessmentTypeCheckpoint

	QuestionTypeMultipleChoice = learning.QuestionTypeMultipleChoice
	QuestionTypeTrueFalse      = learning.QuestionTypeTrueFalse
	QuestionTypeShortAnswer    = learning.QuestionTypeShortAnswer
	QuestionTypeScenarioBranch = learning.QuestionTypeScenarioBranch
)

const (
	RunKindGenerate   = jobs.RunKindGenerate
	RunKindRegenerate = jobs.RunKindRegenerate
	RunKindSync       = jobs.RunKindSync

	RunTriggerOperator = jobs.RunTriggerOperator
	RunTriggerSync     = jobs.RunTriggerSync
	RunTriggerCLI      = jobs.RunTriggerCLI

	RunStatusPending   = jobs.RunStatusPending
	RunStatusQueued    = jobs.RunStatusQueued
	RunStatusRunning   = jobs.RunStatusRunning
	RunStatusSucceeded = jobs.RunStatusSucceeded
	RunStatusFailed    = jobs.RunStatusFailed
)

var (
	WantsAssessment       = learning.WantsAssessment
	RequiresSingleCorrect = learning.RequiresSingleCorrect
)

// AllModels lists every table the service owns, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&KnowledgeSource{},
		&Article{},
		&Course{},
		&CourseModule{},
		&Lesson{},
		&Assessment{},
		&Question{},
		&AnswerOption{},
		&Enrollment{},
		&Progress{},
		&GenerationRun{},
	}
}
