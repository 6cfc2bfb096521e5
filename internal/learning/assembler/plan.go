package assembler

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/ejwhite7/zendesk-academy/internal/clients/zendesk"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/learning/generator"
	"github.com/ejwhite7/zendesk-academy/internal/observability"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

// coursePlan is the fully generated tree, before anything is written.
type coursePlan struct {
	articles []generator.SourceArticle
	outline  *generator.CourseOutline
	level    string
	title    string
	modules  []modulePlan
}

type modulePlan struct {
	index   int
	outline generator.ModuleOutline
	lessons []lessonPlan
}

type lessonPlan struct {
	index          int
	outline        generator.LessonOutline
	content        *generator.LessonContent
	assessment     *generator.Assessment
	sourceArticles []string
}

func (a *Assembler) plan(ctx context.Context, log *logger.Logger, req Request) (*coursePlan, error) {
	if err := a.gen.CheckInput(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	dbc := dbctx.Context{Ctx: ctx}
	ks, err := a.repos.KnowledgeSource.GetByID(dbc, req.KnowledgeSourceID)
	if err != nil {
		return nil, fmt.Errorf("load knowledge source: %w", err)
	}
	if ks == nil || (req.TenantID != ks.TenantID) {
		return nil, fmt.Errorf("knowledge source not found: %w", apperr.ErrMisconfigured)
	}
	if !ks.HasCredentials() {
		return nil, fmt.Errorf("knowledge source has no credentials: %w", apperr.ErrMisconfigured)
	}
	criteria, err := req.criteria(ks.Config.Data().Locale)
	if err != nil {
		return nil, err
	}
	if criteria.Empty() {
		return nil, fmt.Errorf("no article selection criteria given: %w", apperr.ErrNoArticles)
	}
	client, err := a.sources.ForSource(ks)
	if err != nil {
		return nil, err
	}

	reportStage(ctx, StageFetchingArticles)
	fetched, err := client.FetchArticles(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("fetch articles: %w", err)
	}
	if len(fetched) == 0 {
		return nil, apperr.ErrNoArticles
	}
	articles := make([]generator.SourceArticle, 0, len(fetched))
	for _, za := range fetched {
		t := zendesk.TransformArticle(za, nil)
		articles = append(articles, generator.SourceArticle{
			ID:           t.ExternalID,
			Title:        t.Title,
			Content:      t.Content,
			URL:          t.URL,
			LastModified: t.LastModifiedAt,
		})
	}

	opts := req.Options
	if opts.Level == "" {
		opts.Level = req.Level
	}
	if opts.Title == "" {
		opts.Title = req.Title
	}
	opts = opts.WithDefaults()

	reportStage(ctx, StageGeneratingStructure)
	sctx, span := observability.StartSpan(ctx, "assembler.structure")
	outline, err := a.gen.GenerateCourseStructure(sctx, articles, opts)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("generate course structure: %w", err)
	}

	p := &coursePlan{
		articles: articles,
		outline:  outline,
		level:    firstNonEmpty(req.Level, outline.Level, opts.Level),
		title:    firstNonEmpty(req.Title, outline.Title),
	}

	reportStage(ctx, StageGeneratingLessons)
	byID := make(map[string]generator.SourceArticle, len(articles))
	for _, art := range articles {
		byID[art.ID] = art
	}
	for mi, mo := range outline.Modules {
		lessons, err := a.planLessons(ctx, log, mi, mo, p, byID, opts.AssessmentsEnabled())
		if err != nil {
			return nil, err
		}
		p.modules = append(p.modules, modulePlan{index: mi, outline: mo, lessons: lessons})
	}
	return p, nil
}

// planLessons generates every lesson of one module, keeping outline order.
// Lessons whose content call fails are dropped; only ctx cancellation is fatal.
func (a *Assembler) planLessons(ctx context.Context, log *logger.Logger, mi int, mo generator.ModuleOutline, p *coursePlan, byID map[string]generator.SourceArticle, withAssessments bool) ([]lessonPlan, error) {
	results := make([]*lessonPlan, len(mo.Lessons))
	moduleContext := mo.Title
	if mo.Description != "" {
		moduleContext = mo.Title + ": " + mo.Description
	}

	var g errgroup.Group
	g.SetLimit(a.cfg.LessonConcurrency)
	for li, lo := range mo.Lessons {
		li, lo := li, lo
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			relevant, cited := lessonArticles(lo.SourceArticles, p.articles, byID)
			content, err := a.gen.GenerateLessonContent(ctx, lo.Title, moduleContext, relevant, p.level)
			if err != nil {
				log.Warn("Lesson generation failed, skipping", "module_index", mi, "lesson_index", li, "stage", "lesson", "error", err)
				return nil
			}
			lp := &lessonPlan{index: li, outline: lo, content: content, sourceArticles: cited}
			if withAssessments && types.WantsAssessment(lo.ContentType) {
				asm, err := a.gen.GenerateAssessment(ctx, content.Content, types.AssessmentTypeQuiz, a.cfg.QuestionCount)
				if err != nil {
					log.Warn("Assessment generation failed, skipping quiz", "module_index", mi, "lesson_index", li, "stage", "assessment", "error", err)
				} else {
					lp.assessment = asm
				}
			}
			results[li] = lp
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]lessonPlan, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// lessonArticles picks the articles a lesson cites. Unknown ids are dropped;
// a lesson citing none of the fetched articles draws on all of them.
func lessonArticles(cited []string, all []generator.SourceArticle, byID map[string]generator.SourceArticle) ([]generator.SourceArticle, []string) {
	var relevant []generator.SourceArticle
	var ids []string
	seen := map[string]bool{}
	for _, id := range cited {
		id = normalizeArticleID(id)
		art, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		relevant = append(relevant, art)
		ids = append(ids, id)
	}
	if len(relevant) > 0 {
		return relevant, ids
	}
	ids = make([]string, 0, len(all))
	for _, art := range all {
		ids = append(ids, art.ID)
	}
	return all, ids
}

// normalizeArticleID accepts ids the model echoed back as "123" or "ID: 123".
func normalizeArticleID(id string) string {
	digits := make([]rune, 0, len(id))
	for _, r := range id {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) == 0 {
		return id
	}
	if n, err := strconv.ParseInt(string(digits), 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return id
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
