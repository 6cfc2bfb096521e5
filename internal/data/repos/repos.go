package repos

import (
	"gorm.io/gorm"

	"github.com/ejwhite7/zendesk-academy/internal/data/repos/content"
	"github.com/ejwhite7/zendesk-academy/internal/data/repos/jobs"
	"github.com/ejwhite7/zendesk-academy/internal/data/repos/learning"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type KnowledgeSourceRepo = content.KnowledgeSourceRepo
type ArticleRepo = content.ArticleRepo
type UpsertStats = content.UpsertStats

type CourseRepo = learning.CourseRepo
type CourseModuleRepo = learning.CourseModuleRepo
type LessonRepo = learning.LessonRepo
type AssessmentRepo = learning.AssessmentRepo
type QuestionRepo = learning.QuestionRepo
type AnswerOptionRepo = learning.AnswerOptionRepo

type GenerationRunRepo = jobs.GenerationRunRepo

// Set is every repository the service layer needs, bound to one *gorm.DB.
type Set struct {
	KnowledgeSource KnowledgeSourceRepo
	Article         ArticleRepo
	Course          CourseRepo
	CourseModule    CourseModuleRepo
	Lesson          LessonRepo
	Assessment      AssessmentRepo
	Question        QuestionRepo
	AnswerOption    AnswerOptionRepo
	GenerationRun   GenerationRunRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		KnowledgeSource: content.NewKnowledgeSourceRepo(db, log),
		Article:         content.NewArticleRepo(db, log),
		Course:          learning.NewCourseRepo(db, log),
		CourseModule:    learning.NewCourseModuleRepo(db, log),
		Lesson:          learning.NewLessonRepo(db, log),
		Assessment:      learning.NewAssessmentRepo(db, log),
		Question:        learning.NewQuestionRepo(db, log),
		AnswerOption:    learning.NewAnswerOptionRepo(db, log),
		GenerationRun:   jobs.NewGenerationRunRepo(db, log),
	}
}
