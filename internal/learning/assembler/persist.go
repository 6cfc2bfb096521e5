package assembler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/learning/generator"
	"github.com/ejwhite7/zendesk-academy/internal/observability"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

// persist writes the plan in one transaction. The course row (or, when
// regenerating, the course update and old-tree removal) must succeed; every
// child item runs in its own savepoint and is skipped on failure. order_index
// counts only siblings that committed, so it stays gapless from 0.
func (a *Assembler) persist(ctx context.Context, log *logger.Logger, req Request, p *coursePlan, existing *types.Course) (course *types.Course, stats Stats, err error) {
	ctx, span := observability.StartSpan(ctx, "assembler.persist")
	defer func() { observability.EndSpan(span, err) }()

	now := a.now()
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var cerr error
		course, cerr = a.writeCourse(dbc, req, p, existing, now)
		if cerr != nil {
			return cerr
		}
		stats = Stats{}
		for _, mp := range p.modules {
			ms, ok := a.writeModule(dbc, log.With("course_id", course.ID), course, mp, stats.ModulesCreated, now)
			if !ok {
				continue
			}
			stats.ModulesCreated++
			stats.LessonsCreated += ms.LessonsCreated
			stats.AssessmentsCreated += ms.AssessmentsCreated
		}
		return nil
	})
	if err != nil {
		return nil, Stats{}, err
	}
	return course, stats, nil
}

func (a *Assembler) writeCourse(dbc dbctx.Context, req Request, p *coursePlan, existing *types.Course, now time.Time) (*types.Course, error) {
	o := p.outline
	if existing == nil {
		created, err := a.repos.Course.Create(dbc, []*types.Course{{
			TenantID:                 req.TenantID,
			KnowledgeSourceID:        &req.KnowledgeSourceID,
			Title:                    p.title,
			Description:              o.Description,
			Level:                    p.level,
			Status:                   types.CourseStatusDraft,
			EstimatedDurationMinutes: o.EstimatedDurationMinutes,
			LearningObjectives:       datatypes.JSONSlice[string](nonNil(o.LearningObjectives)),
			Prerequisites:            datatypes.JSONSlice[string](nonNil(o.Prerequisites)),
			Version:                  1,
			AIGenerated:              true,
			LastGeneratedAt:          &now,
		}})
		if err != nil {
			return nil, fmt.Errorf("create course: %w", err)
		}
		return created[0], nil
	}

	if err := a.removeTree(dbc, existing.ID); err != nil {
		return nil, fmt.Errorf("remove previous course tree: %w", err)
	}
	updates := map[string]interface{}{
		"title":                      p.title,
		"description":                o.Description,
		"level":                      p.level,
		"estimated_duration_minutes": o.EstimatedDurationMinutes,
		"learning_objectives":        datatypes.JSONSlice[string](nonNil(o.LearningObjectives)),
		"prerequisites":              datatypes.JSONSlice[string](nonNil(o.Prerequisites)),
		"knowledge_source_id":        req.KnowledgeSourceID,
		"version":                    existing.Version + 1,
		"ai_generated":               true,
		"last_generated_at":          now,
	}
	if err := a.repos.Course.UpdateFields(dbc, existing.ID, updates); err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}
	updated, err := a.repos.Course.GetByID(dbc, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("reload course: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("course %s disappeared during regeneration", existing.ID)
	}
	return updated, nil
}

// removeTree soft-deletes every module, lesson, assessment, question and
// option under the course, leaves first.
func (a *Assembler) removeTree(dbc dbctx.Context, courseID uuid.UUID) error {
	courseIDs := []uuid.UUID{courseID}
	modules, err := a.repos.CourseModule.GetByCourseIDs(dbc, courseIDs)
	if err != nil {
		return err
	}
	assessments, err := a.repos.Assessment.GetByCourseIDs(dbc, courseIDs)
	if err != nil {
		return err
	}
	assessmentIDs := make([]uuid.UUID, 0, len(assessments))
	for _, as := range assessments {
		assessmentIDs = append(assessmentIDs, as.ID)
	}
	questions, err := a.repos.Question.GetByAssessmentIDs(dbc, assessmentIDs)
	if err != nil {
		return err
	}
	questionIDs := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.ID)
	}
	moduleIDs := make([]uuid.UUID, 0, len(modules))
	for _, m := range modules {
		moduleIDs = append(moduleIDs, m.ID)
	}

	if err := a.repos.AnswerOption.SoftDeleteByQuestionIDs(dbc, questionIDs); err != nil {
		return err
	}
	if err := a.repos.Question.SoftDeleteByAssessmentIDs(dbc, assessmentIDs); err != nil {
		return err
	}
	if err := a.repos.Assessment.SoftDeleteByCourseIDs(dbc, courseIDs); err != nil {
		return err
	}
	if err := a.repos.Lesson.SoftDeleteByModuleIDs(dbc, moduleIDs); err != nil {
		return err
	}
	return a.repos.CourseModule.SoftDeleteByCourseIDs(dbc, courseIDs)
}

// savepoint runs fn in a nested transaction on dbc.Tx.
func savepoint(dbc dbctx.Context, fn func(dbctx.Context) error) error {
	return dbc.Tx.Transaction(func(tx *gorm.DB) error {
		return fn(dbc.WithTx(tx))
	})
}

func (a *Assembler) writeModule(dbc dbctx.Context, log *logger.Logger, course *types.Course, mp modulePlan, orderIndex int, now time.Time) (Stats, bool) {
	var ms Stats
	err := savepoint(dbc, func(mdbc dbctx.Context) error {
		ms = Stats{}
		created, err := a.repos.CourseModule.Create(mdbc, []*types.CourseModule{{
			CourseID:                 course.ID,
			Title:                    mp.outline.Title,
			Description:              mp.outline.Description,
			OrderIndex:               orderIndex,
			EstimatedDurationMinutes: mp.outline.EstimatedDurationMinutes,
			LearningObjectives:       datatypes.JSONSlice[string](nonNil(mp.outline.LearningObjectives)),
		}})
		if err != nil {
			return err
		}
		module := created[0]
		for _, lp := range mp.lessons {
			hasAssessment, ok := a.writeLesson(mdbc, log.With("module_index", mp.index), course, module, lp, ms.LessonsCreated, now)
			if !ok {
				continue
			}
			ms.LessonsCreated++
			if hasAssessment {
				ms.AssessmentsCreated++
			}
		}
		return nil
	})
	if err != nil {
		log.Warn("Module insert failed, skipping", "module_index", mp.index, "stage", "module", "error", err)
		return Stats{}, false
	}
	return ms, true
}

func (a *Assembler) writeLesson(dbc dbctx.Context, log *logger.Logger, course *types.Course, module *types.CourseModule, lp lessonPlan, orderIndex int, now time.Time) (hasAssessment bool, ok bool) {
	err := savepoint(dbc, func(ldbc dbctx.Context) error {
		hasAssessment = false
		created, err := a.repos.Lesson.Create(ldbc, []*types.Lesson{{
			ModuleID:                 module.ID,
			Title:                    lp.outline.Title,
			Content:                  lp.content.Content,
			ContentType:              lp.outline.ContentType,
			OrderIndex:               orderIndex,
			EstimatedDurationMinutes: firstPositive(lp.content.EstimatedDurationMinutes, lp.outline.EstimatedDurationMinutes),
			SourceArticles:           datatypes.JSONSlice[string](nonNil(lp.sourceArticles)),
			AIGenerated:              true,
			LastGeneratedAt:          &now,
		}})
		if err != nil {
			return err
		}
		if lp.assessment == nil {
			return nil
		}
		if aerr := a.writeAssessment(ldbc, log.With("lesson_index", lp.index), course, module, created[0], lp.assessment); aerr != nil {
			log.Warn("Assessment insert failed, keeping lesson", "lesson_index", lp.index, "stage", "assessment", "error", aerr)
			return nil
		}
		hasAssessment = true
		return nil
	})
	if err != nil {
		log.Warn("Lesson insert failed, skipping", "lesson_index", lp.index, "stage", "lesson", "error", err)
		return false, false
	}
	return hasAssessment, true
}

// writeAssessment stores the quiz with its questions. An assessment left with
// no questions is rolled back.
func (a *Assembler) writeAssessment(dbc dbctx.Context, log *logger.Logger, course *types.Course, module *types.CourseModule, lesson *types.Lesson, ga *generator.Assessment) error {
	return savepoint(dbc, func(adbc dbctx.Context) error {
		created, err := a.repos.Assessment.Create(adbc, []*types.Assessment{{
			LessonID:       &lesson.ID,
			ModuleID:       &module.ID,
			CourseID:       &course.ID,
			Title:          ga.Title,
			Description:    ga.Description,
			AssessmentType: ga.AssessmentType,
			PassingScore:   ga.PassingScore,
		}})
		if err != nil {
			return err
		}
		assessment := created[0]
		written := 0
		for qi, gq := range ga.Questions {
			if qerr := a.writeQuestion(adbc, assessment.ID, gq, written); qerr != nil {
				log.Warn("Question insert failed, skipping", "question_index", qi, "stage", "question", "error", qerr)
				continue
			}
			written++
		}
		if written == 0 {
			return fmt.Errorf("no questions persisted")
		}
		return nil
	})
}

func (a *Assembler) writeQuestion(dbc dbctx.Context, assessmentID uuid.UUID, gq generator.Question, orderIndex int) error {
	if types.RequiresSingleCorrect(gq.QuestionType) {
		correct := 0
		for _, o := range gq.AnswerOptions {
			if o.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%s question has %d correct options", gq.QuestionType, correct)
		}
	}
	return savepoint(dbc, func(qdbc dbctx.Context) error {
		created, err := a.repos.Question.Create(qdbc, []*types.Question{{
			AssessmentID: assessmentID,
			QuestionText: gq.QuestionText,
			QuestionType: gq.QuestionType,
			OrderIndex:   orderIndex,
			Points:       firstPositive(gq.Points, 1),
			Explanation:  gq.Explanation,
		}})
		if err != nil {
			return err
		}
		if len(gq.AnswerOptions) == 0 {
			return nil
		}
		options := make([]*types.AnswerOption, 0, len(gq.AnswerOptions))
		for oi, o := range gq.AnswerOptions {
			options = append(options, &types.AnswerOption{
				QuestionID:  created[0].ID,
				OptionText:  o.OptionText,
				IsCorrect:   o.IsCorrect,
				OrderIndex:  oi,
				Explanation: o.Explanation,
			})
		}
		_, err = a.repos.AnswerOption.Create(qdbc, options)
		return err
	})
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
