// Package assembler drives article fetch, LLM generation and persistence of a
// full course tree. Generation happens entirely in memory first; the tree is
// then written in one transaction with a savepoint per item, so a failed
// item is skipped without leaving a half-written course behind.
package assembler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ejwhite7/zendesk-academy/internal/clients/zendesk"
	"github.com/ejwhite7/zendesk-academy/internal/data/repos"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/learning/generator"
	"github.com/ejwhite7/zendesk-academy/internal/learning/locks"
	"github.com/ejwhite7/zendesk-academy/internal/observability"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

// Request asks for a new course built from one knowledge source. The first
// non-empty selector wins: ArticleIDs, SectionIDs, CategoryIDs, LabelNames.
type Request struct {
	TenantID          uuid.UUID         `json:"tenantId"`
	KnowledgeSourceID uuid.UUID         `json:"knowledgeSourceId"`
	Title             string            `json:"title,omitempty"`
	Level             string            `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	ArticleIDs        []string          `json:"articleIds,omitempty"`
	SectionIDs        []string          `json:"sectionIds,omitempty"`
	CategoryIDs       []string          `json:"categoryIds,omitempty"`
	LabelNames        []string          `json:"labelNames,omitempty"`
	Options           generator.Options `json:"options"`
}

type Stats struct {
	ModulesCreated     int `json:"modulesCreated"`
	LessonsCreated     int `json:"lessonsCreated"`
	AssessmentsCreated int `json:"assessmentsCreated"`
	ArticlesProcessed  int `json:"articlesProcessed"`
}

// Result is what callers of generate and regenerate always receive.
// Success is true once the course row committed, however many children were skipped.
type Result struct {
	CourseID string `json:"courseId"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Stats    Stats  `json:"stats"`
}

type Config struct {
	// LessonConcurrency bounds parallel lesson generation within a module. 1 is sequential.
	LessonConcurrency int
	QuestionCount     int
}

type Assembler struct {
	db      *gorm.DB
	log     *logger.Logger
	repos   repos.Set
	sources zendesk.Factory
	gen     *generator.Generator
	locker  locks.Locker
	cfg     Config
	now     func() time.Time
}

func New(db *gorm.DB, baseLog *logger.Logger, set repos.Set, sources zendesk.Factory, gen *generator.Generator, locker locks.Locker, cfg Config) *Assembler {
	if cfg.LessonConcurrency <= 0 {
		cfg.LessonConcurrency = 1
	}
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = generator.DefaultQuestionCount
	}
	return &Assembler{
		db:      db,
		log:     baseLog.With("component", "CourseAssembler"),
		repos:   set,
		sources: sources,
		gen:     gen,
		locker:  locker,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds and persists a new course. The returned error mirrors
// Result.Error for callers that want errors.Is.
func (a *Assembler) Generate(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := a.run(ctx, req, nil)
	observability.Current().ObserveRun(types.RunKindGenerate, err == nil, time.Since(start))
	return res, err
}

// Regenerate re-runs generation for an existing course from the articles its
// lessons cite. The course keeps its ID; the previous tree is soft-deleted in
// the same transaction that writes the new one.
func (a *Assembler) Regenerate(ctx context.Context, courseID uuid.UUID) (Result, error) {
	start := time.Now()
	res, err := a.regenerate(ctx, courseID)
	observability.Current().ObserveRun(types.RunKindRegenerate, err == nil, time.Since(start))
	return res, err
}

func (a *Assembler) regenerate(ctx context.Context, courseID uuid.UUID) (Result, error) {
	dbc := dbctx.Context{Ctx: ctx}
	fail := func(err error) (Result, error) {
		a.log.Warn("Course regeneration failed", "course_id", courseID, "error", err)
		reportStage(ctx, StageFailed)
		return failure(courseID.String(), err), err
	}

	course, err := a.repos.Course.GetByID(dbc, courseID)
	if err != nil {
		return fail(fmt.Errorf("load course: %w", err))
	}
	if course == nil {
		return fail(fmt.Errorf("course not found: %w", apperr.ErrNotFound))
	}
	ks, err := a.repos.KnowledgeSource.GetActiveByTenant(dbc, course.TenantID)
	if err != nil {
		return fail(fmt.Errorf("load knowledge source: %w", err))
	}
	if ks == nil {
		return fail(fmt.Errorf("no active knowledge source found for tenant: %w", apperr.ErrMisconfigured))
	}
	articleIDs, err := a.sourceArticleIDs(dbc, course.ID)
	if err != nil {
		return fail(fmt.Errorf("collect source articles: %w", err))
	}
	if len(articleIDs) == 0 {
		return fail(fmt.Errorf("course lessons reference no articles: %w", apperr.ErrNoArticles))
	}

	release, err := a.locker.Acquire(ctx, course.ID)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			a.log.Warn("Release generation lock failed", "course_id", course.ID, "error", rerr)
		}
	}()

	return a.run(ctx, Request{
		TenantID:          course.TenantID,
		KnowledgeSourceID: ks.ID,
		Title:             course.Title,
		Level:             course.Level,
		ArticleIDs:        articleIDs,
		Options:           generator.Options{Level: course.Level},
	}, course)
}

// sourceArticleIDs is the union of every live lesson's source articles, in first-seen order.
func (a *Assembler) sourceArticleIDs(dbc dbctx.Context, courseID uuid.UUID) ([]string, error) {
	lessons, err := a.repos.Lesson.GetByCourseIDs(dbc, []uuid.UUID{courseID})
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, l := range lessons {
		for _, id := range l.SourceArticles {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func (a *Assembler) run(ctx context.Context, req Request, existing *types.Course) (res Result, err error) {
	ctx, span := observability.StartSpan(ctx, "assembler.generate")
	defer func() { observability.EndSpan(span, err) }()

	echoID := ""
	if existing != nil {
		echoID = existing.ID.String()
	}
	log := a.log.With("tenant_id", req.TenantID, "knowledge_source_id", req.KnowledgeSourceID)
	if existing != nil {
		log = log.With("course_id", existing.ID)
	}

	p, err := a.plan(ctx, log, req)
	if err != nil {
		log.Warn("Course generation failed", "error", err)
		reportStage(ctx, StageFailed)
		return failure(echoID, err), err
	}

	reportStage(ctx, StagePersisting)
	course, stats, err := a.persist(ctx, log, req, p, existing)
	if err != nil {
		log.Warn("Course persistence failed", "error", err)
		reportStage(ctx, StageFailed)
		return failure(echoID, err), err
	}
	stats.ArticlesProcessed = len(p.articles)
	reportStage(ctx, StageDone)
	log.Info("Course generated",
		"course_id", course.ID,
		"modules", stats.ModulesCreated,
		"lessons", stats.LessonsCreated,
		"assessments", stats.AssessmentsCreated,
		"articles", stats.ArticlesProcessed,
	)
	return Result{CourseID: course.ID.String(), Success: true, Stats: stats}, nil
}

func failure(courseID string, err error) Result {
	return Result{CourseID: courseID, Success: false, Error: err.Error()}
}

// criteria converts the request selectors into connector criteria.
func (r Request) criteria(locale string) (zendesk.Criteria, error) {
	c := zendesk.Criteria{LabelNames: nonEmpty(r.LabelNames), Locale: locale}
	var err error
	if c.ArticleIDs, err = parseIDs("articleIds", r.ArticleIDs); err != nil {
		return c, err
	}
	if c.SectionIDs, err = parseIDs("sectionIds", r.SectionIDs); err != nil {
		return c, err
	}
	if c.CategoryIDs, err = parseIDs("categoryIds", r.CategoryIDs); err != nil {
		return c, err
	}
	return c, nil
}

func parseIDs(field string, raw []string) ([]int64, error) {
	var out []int64
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a numeric id: %w", field, s, apperr.ErrInvalidArgument)
		}
		out = append(out, id)
	}
	return out, nil
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
