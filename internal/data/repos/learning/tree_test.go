package learning

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ejwhite7/zendesk-academy/internal/data/repos/testutil"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
)

func TestCourseTreeRepos(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	moduleRepo := NewCourseModuleRepo(db, log)
	lessonRepo := NewLessonRepo(db, log)
	assessmentRepo := NewAssessmentRepo(db, log)
	questionRepo := NewQuestionRepo(db, log)
	optionRepo := NewAnswerOptionRepo(db, log)

	course := testutil.SeedCourseTree(t, ctx, tx, uuid.New(), nil, 2, 3, []string{"101", "102"})

	if n, err := moduleRepo.CountByCourseID(dbc, course.ID); err != nil || n != 2 {
		t.Fatalf("CountByCourseID: n=%d err=%v", n, err)
	}
	modules, err := moduleRepo.GetByCourseIDs(dbc, []uuid.UUID{course.ID})
	if err != nil || len(modules) != 2 {
		t.Fatalf("GetByCourseIDs: err=%v len=%d", err, len(modules))
	}
	for i, m := range modules {
		if m.OrderIndex != i {
			t.Fatalf("module order: idx %d has order_index %d", i, m.OrderIndex)
		}
	}

	lessons, err := lessonRepo.GetByCourseIDs(dbc, []uuid.UUID{course.ID})
	if err != nil || len(lessons) != 6 {
		t.Fatalf("lessons by course: err=%v len=%d", err, len(lessons))
	}
	if lessons[0].ModuleID != modules[0].ID || lessons[5].ModuleID != modules[1].ID {
		t.Fatalf("lessons not ordered by module")
	}
	if len(lessons[0].SourceArticles) != 2 || lessons[0].SourceArticles[0] != "101" {
		t.Fatalf("source_articles round trip: %v", lessons[0].SourceArticles)
	}

	a := &types.Assessment{
		LessonID: testutil.PtrUUID(lessons[0].ID),
		CourseID: testutil.PtrUUID(course.ID),
		Title:    "Check",
	}
	if _, err := assessmentRepo.Create(dbc, []*types.Assessment{a}); err != nil {
		t.Fatalf("assessment Create: %v", err)
	}
	if a.PassingScore != 70 {
		t.Fatalf("passing score default: %d", a.PassingScore)
	}
	q := &types.Question{AssessmentID: a.ID, QuestionText: "?", QuestionType: types.QuestionTypeTrueFalse, Points: 1}
	if _, err := questionRepo.Create(dbc, []*types.Question{q}); err != nil {
		t.Fatalf("question Create: %v", err)
	}
	opts := []*types.AnswerOption{
		{QuestionID: q.ID, OptionText: "True", IsCorrect: true, OrderIndex: 0},
		{QuestionID: q.ID, OptionText: "False", OrderIndex: 1},
	}
	if _, err := optionRepo.Create(dbc, opts); err != nil {
		t.Fatalf("option Create: %v", err)
	}
	if rows, err := optionRepo.GetByQuestionIDs(dbc, []uuid.UUID{q.ID}); err != nil || len(rows) != 2 || !rows[0].IsCorrect {
		t.Fatalf("GetByQuestionIDs: err=%v rows=%v", err, rows)
	}
	if rows, err := assessmentRepo.GetByLessonIDs(dbc, []uuid.UUID{lessons[0].ID}); err != nil || len(rows) != 1 {
		t.Fatalf("GetByLessonIDs: err=%v len=%d", err, len(rows))
	}

	// Soft-deleting modules hides their lessons from the course join.
	moduleIDs := []uuid.UUID{modules[0].ID, modules[1].ID}
	if err := moduleRepo.SoftDeleteByCourseIDs(dbc, []uuid.UUID{course.ID}); err != nil {
		t.Fatalf("SoftDeleteByCourseIDs: %v", err)
	}
	if rows, err := lessonRepo.GetByCourseIDs(dbc, []uuid.UUID{course.ID}); err != nil || len(rows) != 0 {
		t.Fatalf("lessons after module delete: err=%v len=%d", err, len(rows))
	}
	if err := lessonRepo.SoftDeleteByModuleIDs(dbc, moduleIDs); err != nil {
		t.Fatalf("SoftDeleteByModuleIDs: %v", err)
	}
	if rows, err := lessonRepo.GetByModuleIDs(dbc, moduleIDs); err != nil || len(rows) != 0 {
		t.Fatalf("lessons after delete: err=%v len=%d", err, len(rows))
	}
}

func TestLessonRepoCreateDefaultsSourceArticles(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	course := testutil.SeedCourse(t, dbc.Ctx, tx, uuid.New(), nil)
	m := &types.CourseModule{CourseID: course.ID, Title: "m", LearningObjectives: datatypes.JSONSlice[string]{}}
	if _, err := NewCourseModuleRepo(db, testutil.Logger(t)).Create(dbc, []*types.CourseModule{m}); err != nil {
		t.Fatalf("module Create: %v", err)
	}
	l := &types.Lesson{ModuleID: m.ID, Title: "l", ContentType: types.ContentTypeText}
	if _, err := NewLessonRepo(db, testutil.Logger(t)).Create(dbc, []*types.Lesson{l}); err != nil {
		t.Fatalf("lesson Create: %v", err)
	}
	if l.SourceArticles == nil {
		t.Fatalf("expected empty, non-nil source_articles")
	}
}

func TestLessonRepoGetByIDAndUpdate(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	course := testutil.SeedCourseTree(t, dbc.Ctx, db, uuid.New(), nil, 1, 1, []string{"7"})
	lessons, err := NewLessonRepo(db, testutil.Logger(t)).GetByCourseIDs(dbc, []uuid.UUID{course.ID})
	if err != nil || len(lessons) != 1 {
		t.Fatalf("GetByCourseIDs: %v (%d)", err, len(lessons))
	}
	repo := NewLessonRepo(db, testutil.Logger(t))

	got, err := repo.GetByID(dbc, lessons[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Module == nil || got.Module.CourseID != course.ID {
		t.Fatalf("expected lesson with module of course %s, got %+v", course.ID, got)
	}
	if err := repo.UpdateFields(dbc, got.ID, map[string]interface{}{"content": "rewritten"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	again, _ := repo.GetByID(dbc, got.ID)
	if again.Content != "rewritten" {
		t.Fatalf("content = %q", again.Content)
	}
	missing, err := repo.GetByID(dbc, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("missing lesson: %v %v", missing, err)
	}
}
