package assembler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ejwhite7/zendesk-academy/internal/clients/llm"
	"github.com/ejwhite7/zendesk-academy/internal/clients/llm/llmtest"
	"github.com/ejwhite7/zendesk-academy/internal/clients/zendesk"
	"github.com/ejwhite7/zendesk-academy/internal/clients/zendesk/zendesktest"
	"github.com/ejwhite7/zendesk-academy/internal/data/repos"
	"github.com/ejwhite7/zendesk-academy/internal/data/repos/testutil"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/learning/generator"
	"github.com/ejwhite7/zendesk-academy/internal/learning/locks"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
)

type fixture struct {
	db       *gorm.DB
	set      repos.Set
	llm      *llmtest.Scripted
	zendesk  *zendesktest.Fake
	locker   locks.Locker
	tenantID uuid.UUID
	ks       *types.KnowledgeSource
}

func helpArticles() []zendesk.Article {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []zendesk.Article{
		{ID: 101, Title: "Invoices", Body: "<p>How invoices work.</p>", SectionID: 7, UpdatedAt: at},
		{ID: 102, Title: "Refunds", Body: "<p>How refunds work.</p>", SectionID: 7, UpdatedAt: at},
		{ID: 103, Title: "Taxes", Body: "<p>How taxes work.</p>", SectionID: 8, UpdatedAt: at},
	}
}

func outline(modules, lessons int) string {
	contentTypes := []string{types.ContentTypeText, types.ContentTypeVideo, types.ContentTypeQuiz, types.ContentTypeInteractive}
	o := generator.CourseOutline{
		Title:              "Billing Basics",
		Description:        "Invoices, refunds and taxes",
		Level:              types.LevelBeginner,
		LearningObjectives: []string{"read an invoice"},
	}
	n := 0
	for mi := 0; mi < modules; mi++ {
		m := generator.ModuleOutline{Title: fmt.Sprintf("M%d", mi+1), Description: "module"}
		for li := 0; li < lessons; li++ {
			n++
			m.Lessons = append(m.Lessons, generator.LessonOutline{
				Title:          fmt.Sprintf("L%d", n),
				ContentType:    contentTypes[(n-1)%len(contentTypes)],
				SourceArticles: []string{"101", "999"},
			})
		}
		o.Modules = append(o.Modules, m)
	}
	raw, _ := json.Marshal(o)
	return string(raw)
}

const quizJSON = `{"title":"Check","assessmentType":"quiz","passingScore":75,"questions":[
 {"questionText":"Q1","questionType":"multiple_choice","points":1,"answerOptions":[{"optionText":"a","isCorrect":true},{"optionText":"b"},{"optionText":"c"}]},
 {"questionText":"Q2","questionType":"true_false","answerOptions":[{"optionText":"True"},{"optionText":"False","isCorrect":true}]}]}`

func reply(s string) func(llm.Request) llmtest.Reply {
	return func(llm.Request) llmtest.Reply { return llmtest.Text(s) }
}

func lessonRule() *llmtest.Rule {
	return &llmtest.Rule{Match: "Write the full lesson", Reply: reply(`{"content":"# Lesson\n## Overview\ntext","estimatedDurationMinutes":10}`)}
}

func newFixture(t *testing.T, rules ...*llmtest.Rule) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	tenantID := uuid.New()
	ks := testutil.SeedKnowledgeSource(t, context.Background(), db, tenantID)
	return &fixture{
		db:       db,
		set:      set,
		llm:      llmtest.NewScripted(rules...),
		zendesk:  zendesktest.New(helpArticles()...),
		locker:   locks.NewDBLocker(log, set.Course, time.Minute),
		tenantID: tenantID,
		ks:       ks,
	}
}

func (f *fixture) assembler(t *testing.T, cfg Config) *Assembler {
	log := testutil.Logger(t)
	return New(f.db, log, f.set, f.zendesk.Factory(), generator.New(f.llm, log), f.locker, cfg)
}

func (f *fixture) request(opts generator.Options) Request {
	return Request{
		TenantID:          f.tenantID,
		KnowledgeSourceID: f.ks.ID,
		SectionIDs:        []string{"7", "8"},
		Options:           opts,
	}
}

func liveTree(t *testing.T, db *gorm.DB, courseID uuid.UUID) ([]*types.CourseModule, []*types.Lesson) {
	t.Helper()
	var modules []*types.CourseModule
	require.NoError(t, db.Where("course_id = ?", courseID).Order("order_index ASC").Find(&modules).Error)
	ids := make([]uuid.UUID, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.ID)
	}
	var lessons []*types.Lesson
	if len(ids) > 0 {
		require.NoError(t, db.Where("module_id IN ?", ids).Find(&lessons).Error)
	}
	return modules, lessons
}

func assertGapless(t *testing.T, indexes []int) {
	t.Helper()
	seen := map[int]bool{}
	for _, i := range indexes {
		seen[i] = true
	}
	for i := 0; i < len(indexes); i++ {
		if !seen[i] {
			t.Fatalf("order_index not gapless: %v", indexes)
		}
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	f := newFixture(t,
		&llmtest.Rule{Match: "Design a course", Reply: reply(outline(3, 3))},
		lessonRule(),
		&llmtest.Rule{Match: "assessment for this lesson", Reply: reply(quizJSON)},
	)
	a := f.assembler(t, Config{})
	include := true
	res, err := a.Generate(context.Background(), f.request(generator.Options{MaxModules: 2, MaxLessonsPerModule: 2, IncludeAssessments: &include}))
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	courseID := uuid.MustParse(res.CourseID)

	modules, lessons := liveTree(t, f.db, courseID)
	assert.Len(t, modules, res.Stats.ModulesCreated)
	assert.LessOrEqual(t, len(modules), 2)
	assert.LessOrEqual(t, len(lessons), 4)
	assert.Equal(t, len(lessons), res.Stats.LessonsCreated)
	assert.Equal(t, 3, res.Stats.ArticlesProcessed)

	var moduleIdx []int
	for _, m := range modules {
		moduleIdx = append(moduleIdx, m.OrderIndex)
	}
	assertGapless(t, moduleIdx)

	wantAssessments := 0
	for _, l := range lessons {
		assert.Equal(t, []string{"101"}, []string(l.SourceArticles))
		var assessments []*types.Assessment
		require.NoError(t, f.db.Where("lesson_id = ?", l.ID).Find(&assessments).Error)
		if !types.WantsAssessment(l.ContentType) {
			assert.Empty(t, assessments, "lesson %s", l.Title)
			continue
		}
		wantAssessments++
		require.Len(t, assessments, 1, "lesson %s", l.Title)
		var questions []*types.Question
		require.NoError(t, f.db.Where("assessment_id = ?", assessments[0].ID).Find(&questions).Error)
		require.NotEmpty(t, questions)
		for _, q := range questions {
			var correct int64
			require.NoError(t, f.db.Model(&types.AnswerOption{}).Where("question_id = ? AND is_correct = ?", q.ID, true).Count(&correct).Error)
			assert.EqualValues(t, 1, correct, "question %s", q.QuestionText)
		}
	}
	assert.Equal(t, wantAssessments, res.Stats.AssessmentsCreated)
	assert.Equal(t, 1, f.llm.Count("Design a course"))

	course, err := f.set.Course.GetByID(dbctx.Context{Ctx: context.Background()}, courseID)
	require.NoError(t, err)
	assert.True(t, course.AIGenerated)
	assert.Equal(t, types.CourseStatusDraft, course.Status)
	assert.Equal(t, "Billing Basics", course.Title)
	assert.NotNil(t, course.LastGeneratedAt)
}

func TestGenerateEmptyCriteriaMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, Config{})
	res, err := a.Generate(context.Background(), Request{TenantID: f.tenantID, KnowledgeSourceID: f.ks.ID})
	if !errors.Is(err, apperr.ErrNoArticles) {
		t.Fatalf("expected ErrNoArticles, got %v", err)
	}
	if res.Success || res.Error == "" {
		t.Fatalf("expected failure result, got %+v", res)
	}
	if len(f.llm.Requests()) != 0 || len(f.zendesk.Fetches()) != 0 {
		t.Fatalf("expected no upstream calls")
	}
}

func TestGenerateRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, Config{})
	ctx := context.Background()

	cases := map[string]Request{
		"level":         func() Request { r := f.request(generator.Options{}); r.Level = "guru"; return r }(),
		"options level": f.request(generator.Options{Level: "guru"}),
		"max modules":   f.request(generator.Options{MaxModules: 10000}),
		"max lessons":   f.request(generator.Options{MaxLessonsPerModule: 51}),
	}
	for name, req := range cases {
		res, err := a.Generate(ctx, req)
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Fatalf("%s: expected ErrInvalidArgument, got %v", name, err)
		}
		if res.Success || res.Error == "" {
			t.Fatalf("%s: expected failure result, got %+v", name, res)
		}
	}
	if len(f.llm.Requests()) != 0 || len(f.zendesk.Fetches()) != 0 {
		t.Fatalf("expected no upstream calls")
	}
	var count int64
	require.NoError(t, f.db.Model(&types.Course{}).Where("tenant_id = ?", f.tenantID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGenerateConfigErrors(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, Config{})
	ctx := context.Background()

	_, err := a.Generate(ctx, Request{TenantID: f.tenantID, KnowledgeSourceID: uuid.New(), ArticleIDs: []string{"101"}})
	if !errors.Is(err, apperr.ErrMisconfigured) {
		t.Fatalf("missing source: expected ErrMisconfigured, got %v", err)
	}

	_, err = a.Generate(ctx, Request{TenantID: uuid.New(), KnowledgeSourceID: f.ks.ID, ArticleIDs: []string{"101"}})
	if !errors.Is(err, apperr.ErrMisconfigured) {
		t.Fatalf("foreign tenant: expected ErrMisconfigured, got %v", err)
	}

	bare := testutil.SeedKnowledgeSource(t, ctx, f.db, f.tenantID)
	require.NoError(t, f.set.KnowledgeSource.UpdateFields(dbctx.Context{Ctx: ctx}, bare.ID, map[string]interface{}{
		"config": datatypes.NewJSONType(types.SourceConfig{Subdomain: "acme"}),
	}))
	_, err = a.Generate(ctx, Request{TenantID: f.tenantID, KnowledgeSourceID: bare.ID, ArticleIDs: []string{"101"}})
	if !errors.Is(err, apperr.ErrMisconfigured) {
		t.Fatalf("no credentials: expected ErrMisconfigured, got %v", err)
	}

	_, err = a.Generate(ctx, Request{TenantID: f.tenantID, KnowledgeSourceID: f.ks.ID, ArticleIDs: []string{"abc"}})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("bad id: expected ErrInvalidArgument, got %v", err)
	}
	if len(f.llm.Requests()) != 0 {
		t.Fatalf("expected no LLM calls")
	}
}

func TestGenerateNoMatchingArticles(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, Config{})
	res, err := a.Generate(context.Background(), Request{TenantID: f.tenantID, KnowledgeSourceID: f.ks.ID, ArticleIDs: []string{"5", "6"}})
	if !errors.Is(err, apperr.ErrNoArticles) {
		t.Fatalf("expected ErrNoArticles, got %v", err)
	}
	assert.Equal(t, "no articles found matching criteria", res.Error)
	assert.Empty(t, f.llm.Requests())
}

func TestGenerateStructureFailureLeavesNoCourse(t *testing.T) {
	f := newFixture(t, &llmtest.Rule{Match: "Design a course", Reply: reply("I cannot help with that")})
	a := f.assembler(t, Config{})
	res, err := a.Generate(context.Background(), f.request(generator.Options{}))
	if !errors.Is(err, apperr.ErrBadResponseShape) {
		t.Fatalf("expected ErrBadResponseShape, got %v", err)
	}
	assert.False(t, res.Success)
	assert.Empty(t, res.CourseID)

	var count int64
	require.NoError(t, f.db.Model(&types.Course{}).Where("tenant_id = ?", f.tenantID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGenerateSkipsFailedLessonAndQuiz(t *testing.T) {
	no := false
	f := newFixture(t,
		&llmtest.Rule{Match: "Design a course", Reply: reply(outline(1, 3))},
		&llmtest.Rule{Match: `Write the full lesson "L2"`, Reply: func(llm.Request) llmtest.Reply { return llmtest.Fail(errors.New("overloaded")) }},
		lessonRule(),
	)
	a := f.assembler(t, Config{})
	res, err := a.Generate(context.Background(), f.request(generator.Options{IncludeAssessments: &no}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.ModulesCreated)
	assert.Equal(t, 2, res.Stats.LessonsCreated)
	assert.Equal(t, 0, res.Stats.AssessmentsCreated)

	_, lessons := liveTree(t, f.db, uuid.MustParse(res.CourseID))
	byIndex := map[int]string{}
	var idx []int
	for _, l := range lessons {
		byIndex[l.OrderIndex] = l.Title
		idx = append(idx, l.OrderIndex)
	}
	assertGapless(t, idx)
	assert.Equal(t, "L1", byIndex[0])
	assert.Equal(t, "L3", byIndex[1])
	assert.Zero(t, f.llm.Count("assessment for this lesson"))
}

func TestGenerateAssessmentFailureKeepsLesson(t *testing.T) {
	f := newFixture(t,
		&llmtest.Rule{Match: "Design a course", Reply: reply(outline(1, 1))},
		lessonRule(),
		&llmtest.Rule{Match: "assessment for this lesson", Reply: reply(`{"title":"Q","questions":[{"questionText":"x","questionType":"multiple_choice","answerOptions":[{"optionText":"a"},{"optionText":"b"}]}]}`)},
	)
	a := f.assembler(t, Config{})
	res, err := a.Generate(context.Background(), f.request(generator.Options{}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.LessonsCreated)
	assert.Equal(t, 0, res.Stats.AssessmentsCreated)
	assert.Equal(t, 2, f.llm.Count("assessment for this lesson"), "one corrective re-prompt")
}

type failingModules struct {
	repos.CourseModuleRepo
	title string
}

func (r failingModules) Create(dbc dbctx.Context, modules []*types.CourseModule) ([]*types.CourseModule, error) {
	for _, m := range modules {
		if m.Title == r.title {
			return nil, errors.New("insert failed")
		}
	}
	return r.CourseModuleRepo.Create(dbc, modules)
}

type failingLessons struct {
	repos.LessonRepo
	title string
}

func (r failingLessons) Create(dbc dbctx.Context, lessons []*types.Lesson) ([]*types.Lesson, error) {
	created, err := r.LessonRepo.Create(dbc, lessons)
	if err != nil {
		return nil, err
	}
	for _, l := range lessons {
		if l.Title == r.title {
			return nil, errors.New("constraint violated after insert")
		}
	}
	return created, nil
}

func TestPersistenceFailuresAreSkippedAndRolledBack(t *testing.T) {
	f := newFixture(t,
		&llmtest.Rule{Match: "Design a course", Reply: reply(outline(3, 2))},
		lessonRule(),
		&llmtest.Rule{Match: "assessment for this lesson", Reply: reply(quizJSON)},
	)
	f.set.CourseModule = failingModules{CourseModuleRepo: f.set.CourseModule, title: "M1"}
	f.set.Lesson = failingLessons{LessonRepo: f.set.Lesson, title: "L5"}
	a := f.assembler(t, Config{})

	res, err := a.Generate(context.Background(), f.request(generator.Options{}))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Stats.ModulesCreated)
	assert.Equal(t, 3, res.Stats.LessonsCreated)

	modules, lessons := liveTree(t, f.db, uuid.MustParse(res.CourseID))
	require.Len(t, modules, 2)
	assert.Equal(t, "M2", modules[0].Title)
	assert.Equal(t, 0, modules[0].OrderIndex)
	assert.Equal(t, "M3", modules[1].Title)
	assert.Equal(t, 1, modules[1].OrderIndex)
	require.Len(t, lessons, 3, "the rolled-back lesson must not be visible")
	for _, l := range lessons {
		assert.NotEqual(t, "L5", l.Title)
	}

	var assessments int64
	require.NoError(t, f.db.Model(&types.Assessment{}).Where("course_id = ?", uuid.MustParse(res.CourseID)).Count(&assessments).Error)
	assert.EqualValues(t, res.Stats.AssessmentsCreated, assessments)
}

func TestGenerateConcurrentLessonsKeepOrder(t *testing.T) {
	f := newFixture(t,
		&llmtest.Rule{Match: "Design a course", Reply: reply(outline(1, 6))},
		lessonRule(),
	)
	no := false
	a := f.assembler(t, Config{LessonConcurrency: 4})
	res, err := a.Generate(context.Background(), f.request(generator.Options{MaxLessonsPerModule: 6, IncludeAssessments: &no}))
	require.NoError(t, err)
	_, lessons := liveTree(t, f.db, uuid.MustParse(res.CourseID))
	require.Len(t, lessons, 6)
	for _, l := range lessons {
		assert.Equal(t, fmt.Sprintf("L%d", l.OrderIndex+1), l.Title)
	}
}

func TestRegenerateUsesCitedArticles(t *testing.T) {
	f := newFixture(t,
		&llmtest.Rule{Match: "Design a course", Reply: reply(outline(1, 1))},
		lessonRule(),
		&llmtest.Rule{Match: "assessment for this lesson", Reply: reply(quizJSON)},
	)
	ctx := context.Background()
	old := testutil.SeedCourseTree(t, ctx, f.db, f.tenantID, testutil.PtrUUID(f.ks.ID), 3, 2, []string{"101", "102"})
	a := f.assembler(t, Config{})

	res, err := a.Regenerate(ctx, old.ID)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, old.ID.String(), res.CourseID)
	assert.Equal(t, 2, res.Stats.ArticlesProcessed)

	fetches := f.zendesk.Fetches()
	require.Len(t, fetches, 1)
	assert.Equal(t, []int64{101, 102}, fetches[0].ArticleIDs)

	modules, _ := liveTree(t, f.db, old.ID)
	assert.Len(t, modules, res.Stats.ModulesCreated)

	var all int64
	require.NoError(t, f.db.Unscoped().Model(&types.CourseModule{}).Where("course_id = ?", old.ID).Count(&all).Error)
	assert.EqualValues(t, 3+res.Stats.ModulesCreated, all, "old modules are soft-deleted, not removed")

	course, err := f.set.Course.GetByID(dbctx.Context{Ctx: ctx}, old.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, course.Version)
	assert.Empty(t, course.GenerationLockToken, "lock released")

	reqs := f.llm.Requests()
	assert.Contains(t, reqs[0].User, "Level: beginner")
}

func TestRegenerateWithoutCitedArticles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCourseTree(t, ctx, f.db, f.tenantID, nil, 1, 1, nil)
	a := f.assembler(t, Config{})
	res, err := a.Regenerate(ctx, c.ID)
	if !errors.Is(err, apperr.ErrNoArticles) {
		t.Fatalf("expected ErrNoArticles, got %v", err)
	}
	assert.Equal(t, c.ID.String(), res.CourseID)
	assert.Empty(t, f.llm.Requests())
	assert.Empty(t, f.zendesk.Fetches())
}

func TestRegenerateMissingCourse(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	res, err := f.assembler(t, Config{}).Regenerate(context.Background(), id)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assert.Equal(t, id.String(), res.CourseID)
	assert.False(t, res.Success)
}

func TestRegenerateLockHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCourseTree(t, ctx, f.db, f.tenantID, nil, 1, 1, []string{"101"})
	release, err := f.locker.Acquire(ctx, c.ID)
	require.NoError(t, err)
	defer func() { _ = release(ctx) }()

	_, err = f.assembler(t, Config{}).Regenerate(ctx, c.ID)
	if !errors.Is(err, apperr.ErrGenerationInProgress) {
		t.Fatalf("expected ErrGenerationInProgress, got %v", err)
	}
	assert.Empty(t, f.llm.Requests())
}

func TestStageReporter(t *testing.T) {
	f := newFixture(t,
		&llmtest.Rule{Match: "Design a course", Reply: reply(outline(1, 1))},
		lessonRule(),
	)
	no := false
	var stages []string
	ctx := WithStageReporter(context.Background(), func(s string) { stages = append(stages, s) })
	_, err := f.assembler(t, Config{}).Generate(ctx, f.request(generator.Options{IncludeAssessments: &no}))
	require.NoError(t, err)
	assert.Equal(t, []string{StageFetchingArticles, StageGeneratingStructure, StageGeneratingLessons, StagePersisting, StageDone}, stages)
}

func TestLessonArticles(t *testing.T) {
	all := []generator.SourceArticle{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	byID := map[string]generator.SourceArticle{"1": all[0], "2": all[1], "3": all[2]}

	got, ids := lessonArticles([]string{"ID: 2", "2", "42"}, all, byID)
	assert.Equal(t, []string{"2"}, ids)
	assert.Len(t, got, 1)

	got, ids = lessonArticles(nil, all, byID)
	assert.Equal(t, []string{"1", "2", "3"}, ids)
	assert.Len(t, got, 3)
}
