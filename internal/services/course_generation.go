package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ejwhite7/zendesk-academy/internal/data/repos"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/learning/assembler"
	"github.com/ejwhite7/zendesk-academy/internal/learning/generator"
	"github.com/ejwhite7/zendesk-academy/internal/learning/reconciler"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/ctxutil"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

const runListLimit = 50

type CourseGenerationService interface {
	GenerateCourse(ctx context.Context, req assembler.Request) (assembler.Result, error)
	RegenerateCourse(ctx context.Context, courseID uuid.UUID) (assembler.Result, error)
	SyncKnowledgeSource(ctx context.Context, sourceID uuid.UUID) (reconciler.SyncResult, error)
	ApplyWebhook(ctx context.Context, sourceID uuid.UUID, payload []byte) (reconciler.SyncResult, error)
	RefreshLessonContent(ctx context.Context, lessonID uuid.UUID, preserveCustomEdits, apply bool) (*generator.ContentUpdate, error)

	ListRuns(ctx context.Context, courseID uuid.UUID) ([]*types.GenerationRun, error)
	ApproveRun(ctx context.Context, runID uuid.UUID) (*types.GenerationRun, error)
	// ExecuteRun performs a run the worker has already claimed.
	ExecuteRun(ctx context.Context, run *types.GenerationRun) error
}

type courseGenerationService struct {
	log        *logger.Logger
	repos      repos.Set
	assembler  *assembler.Assembler
	reconciler *reconciler.Reconciler
	gen        *generator.Generator
	now        func() time.Time
}

func NewCourseGenerationService(
	baseLog *logger.Logger,
	set repos.Set,
	asm *assembler.Assembler,
	rec *reconciler.Reconciler,
	gen *generator.Generator,
) CourseGenerationService {
	return &courseGenerationService{
		log:        baseLog.With("service", "CourseGenerationService"),
		repos:      set,
		assembler:  asm,
		reconciler: rec,
		gen:        gen,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithTrigger tags runs recorded under ctx with who started them. Defaults to operator.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return ctxutil.WithTrigger(ctx, trigger)
}

func triggerFrom(ctx context.Context) string {
	if td := ctxutil.GetTraceData(ctx); td != nil && td.Trigger != "" {
		return td.Trigger
	}
	return types.RunTriggerOperator
}

func (s *courseGenerationService) GenerateCourse(ctx context.Context, req assembler.Request) (assembler.Result, error) {
	sourceID := req.KnowledgeSourceID
	run := s.openRun(ctx, &types.GenerationRun{
		TenantID:          req.TenantID,
		KnowledgeSourceID: &sourceID,
		Kind:              types.RunKindGenerate,
		Request:           mustJSON(req),
	})
	res, err := s.assembler.Generate(s.tracking(ctx, run), req)
	s.closeRun(ctx, run, res.CourseID, res.Stats, err)
	return res, err
}

func (s *courseGenerationService) RegenerateCourse(ctx context.Context, courseID uuid.UUID) (assembler.Result, error) {
	var run *types.GenerationRun
	course, err := s.repos.Course.GetByID(dbctx.Context{Ctx: ctx}, courseID)
	if err != nil {
		s.log.Warn("Course lookup for run ledger failed", "course_id", courseID, "error", err)
	}
	if course != nil {
		id := course.ID
		run = s.openRun(ctx, &types.GenerationRun{
			TenantID:          course.TenantID,
			CourseID:          &id,
			KnowledgeSourceID: course.KnowledgeSourceID,
			Kind:              types.RunKindRegenerate,
			Request:           mustJSON(map[string]string{"courseId": id.String()}),
		})
	}
	res, err := s.assembler.Regenerate(s.tracking(ctx, run), courseID)
	s.closeRun(ctx, run, res.CourseID, res.Stats, err)
	return res, err
}

func (s *courseGenerationService) SyncKnowledgeSource(ctx context.Context, sourceID uuid.UUID) (reconciler.SyncResult, error) {
	var run *types.GenerationRun
	ks, err := s.repos.KnowledgeSource.GetByID(dbctx.Context{Ctx: ctx}, sourceID)
	if err != nil {
		s.log.Warn("Knowledge source lookup for run ledger failed", "knowledge_source_id", sourceID, "error", err)
	}
	if ks != nil {
		id := ks.ID
		run = s.openRun(ctx, &types.GenerationRun{
			TenantID:          ks.TenantID,
			KnowledgeSourceID: &id,
			Kind:              types.RunKindSync,
			Request:           mustJSON(map[string]string{"knowledgeSourceId": id.String()}),
		})
	}
	res, err := s.reconciler.Sync(ctx, sourceID)
	s.closeRun(ctx, run, "", res, err)
	return res, err
}

func (s *courseGenerationService) ApplyWebhook(ctx context.Context, sourceID uuid.UUID, payload []byte) (reconciler.SyncResult, error) {
	return s.reconciler.ApplyWebhook(ctx, sourceID, payload)
}

// RefreshLessonContent rewrites a lesson against the current snapshot of the
// articles it cites. With apply unset the update is only returned.
func (s *courseGenerationService) RefreshLessonContent(ctx context.Context, lessonID uuid.UUID, preserveCustomEdits, apply bool) (*generator.ContentUpdate, error) {
	dbc := dbctx.Context{Ctx: ctx}
	lesson, err := s.repos.Lesson.GetByID(dbc, lessonID)
	if err != nil {
		return nil, fmt.Errorf("load lesson: %w", err)
	}
	if lesson == nil || lesson.Module == nil {
		return nil, fmt.Errorf("lesson %s: %w", lessonID, apperr.ErrNotFound)
	}
	course, err := s.repos.Course.GetByID(dbc, lesson.Module.CourseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("course of lesson %s: %w", lessonID, apperr.ErrNotFound)
	}
	var ks *types.KnowledgeSource
	if course.KnowledgeSourceID != nil {
		ks, err = s.repos.KnowledgeSource.GetByID(dbc, *course.KnowledgeSourceID)
	} else {
		ks, err = s.repos.KnowledgeSource.GetActiveByTenant(dbc, course.TenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("load knowledge source: %w", err)
	}
	if ks == nil {
		return nil, fmt.Errorf("no knowledge source for course %s: %w", course.ID, apperr.ErrMisconfigured)
	}
	if len(lesson.SourceArticles) == 0 {
		return nil, fmt.Errorf("lesson %s cites no articles: %w", lessonID, apperr.ErrNoArticles)
	}
	rows, err := s.repos.Article.GetByExternalIDs(dbc, ks.ID, lesson.SourceArticles)
	if err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("lesson %s: %w", lessonID, apperr.ErrNoArticles)
	}
	articles := make([]generator.SourceArticle, 0, len(rows))
	for _, a := range rows {
		articles = append(articles, generator.SourceArticle{
			ID:           a.ExternalID,
			Title:        a.Title,
			Content:      a.Content,
			URL:          a.URL,
			LastModified: a.LastModifiedAt,
		})
	}

	update, err := s.gen.GenerateContentUpdate(ctx, lesson.Content, articles, preserveCustomEdits)
	if err != nil {
		return nil, err
	}
	if apply {
		now := s.now()
		if err := s.repos.Lesson.UpdateFields(dbc, lesson.ID, map[string]interface{}{
			"content":           update.UpdatedContent,
			"last_generated_at": now,
		}); err != nil {
			return nil, fmt.Errorf("save lesson: %w", err)
		}
		s.log.Info("Lesson content refreshed", "lesson_id", lesson.ID, "course_id", course.ID, "conflicts", len(update.ConflictAreas))
	}
	return update, nil
}

func (s *courseGenerationService) ListRuns(ctx context.Context, courseID uuid.UUID) ([]*types.GenerationRun, error) {
	return s.repos.GenerationRun.ListByCourse(dbctx.Context{Ctx: ctx}, courseID, runListLimit)
}

// ApproveRun moves a pending run to queued so the worker picks it up.
func (s *courseGenerationService) ApproveRun(ctx context.Context, runID uuid.UUID) (*types.GenerationRun, error) {
	dbc := dbctx.Context{Ctx: ctx}
	ok, err := s.repos.GenerationRun.Transition(dbc, runID, []string{types.RunStatusPending}, map[string]interface{}{
		"status": types.RunStatusQueued,
		"stage":  types.RunStatusQueued,
	})
	if err != nil {
		return nil, fmt.Errorf("approve run: %w", err)
	}
	run, err := s.repos.GenerationRun.GetByID(dbc, runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", runID, apperr.ErrNotFound)
	}
	if !ok {
		return nil, fmt.Errorf("run %s is %s, not pending: %w", runID, run.Status, apperr.ErrInvalidArgument)
	}
	s.log.Info("Generation run approved", "run_id", run.ID, "course_id", run.CourseID)
	return run, nil
}

func (s *courseGenerationService) ExecuteRun(ctx context.Context, run *types.GenerationRun) error {
	if run == nil {
		return fmt.Errorf("nil run: %w", apperr.ErrInvalidArgument)
	}
	ctx = s.tracking(ctx, run)
	switch run.Kind {
	case types.RunKindRegenerate:
		if run.CourseID == nil {
			err := fmt.Errorf("regenerate run %s has no course: %w", run.ID, apperr.ErrInvalidArgument)
			s.closeRun(ctx, run, "", nil, err)
			return err
		}
		res, err := s.assembler.Regenerate(ctx, *run.CourseID)
		s.closeRun(ctx, run, res.CourseID, res.Stats, err)
		return err
	case types.RunKindGenerate:
		var req assembler.Request
		if err := json.Unmarshal(run.Request, &req); err != nil {
			err = fmt.Errorf("decode run request: %v: %w", err, apperr.ErrInvalidArgument)
			s.closeRun(ctx, run, "", nil, err)
			return err
		}
		res, err := s.assembler.Generate(ctx, req)
		s.closeRun(ctx, run, res.CourseID, res.Stats, err)
		return err
	case types.RunKindSync:
		if run.KnowledgeSourceID == nil {
			err := fmt.Errorf("sync run %s has no knowledge source: %w", run.ID, apperr.ErrInvalidArgument)
			s.closeRun(ctx, run, "", nil, err)
			return err
		}
		res, err := s.reconciler.Sync(ctx, *run.KnowledgeSourceID)
		s.closeRun(ctx, run, "", res, err)
		return err
	default:
		err := fmt.Errorf("unknown run kind %q: %w", run.Kind, apperr.ErrInvalidArgument)
		s.closeRun(ctx, run, "", nil, err)
		return err
	}
}

// openRun records a synchronous call in the ledger. The run is inline, so a
// failure is reported to the caller and never retried by the worker. Ledger
// failures are logged only.
func (s *courseGenerationService) openRun(ctx context.Context, run *types.GenerationRun) *types.GenerationRun {
	now := s.now()
	run.Trigger = triggerFrom(ctx)
	run.Status = types.RunStatusRunning
	run.Stage = "started"
	run.Attempts = 1
	run.Inline = true
	run.LockedAt = &now
	if run.Stats == nil {
		run.Stats = datatypes.JSON("{}")
	}
	if _, err := s.repos.GenerationRun.Create(dbctx.Context{Ctx: ctx}, []*types.GenerationRun{run}); err != nil {
		s.log.Warn("Failed to record generation run", append([]interface{}{"kind", run.Kind, "error", err}, ctxutil.LogFields(ctx)...)...)
		return nil
	}
	return run
}

func (s *courseGenerationService) tracking(ctx context.Context, run *types.GenerationRun) context.Context {
	if run == nil {
		return ctx
	}
	runID := run.ID
	return assembler.WithStageReporter(ctx, func(stage string) {
		if err := s.repos.GenerationRun.UpdateFields(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, runID, map[string]interface{}{
			"stage": stage,
		}); err != nil {
			s.log.Warn("Failed to record run stage", "run_id", runID, "stage", stage, "error", err)
		}
	})
}

func (s *courseGenerationService) closeRun(ctx context.Context, run *types.GenerationRun, courseID string, stats any, runErr error) {
	if run == nil {
		return
	}
	now := s.now()
	updates := map[string]interface{}{
		"finished_at": now,
	}
	if stats != nil {
		updates["stats"] = mustJSON(stats)
	}
	if id, err := uuid.Parse(courseID); err == nil && run.CourseID == nil {
		updates["course_id"] = id
	}
	if runErr != nil {
		updates["status"] = types.RunStatusFailed
		updates["stage"] = assembler.StageFailed
		updates["error"] = runErr.Error()
		updates["last_error_at"] = now
	} else {
		updates["status"] = types.RunStatusSucceeded
		updates["stage"] = assembler.StageDone
		updates["error"] = ""
	}
	if err := s.repos.GenerationRun.UpdateFields(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, run.ID, updates); err != nil {
		s.log.Error("Failed to finish generation run", "run_id", run.ID, "error", err)
	}
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}
