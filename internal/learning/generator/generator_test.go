package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejwhite7/zendesk-academy/internal/clients/llm"
	"github.com/ejwhite7/zendesk-academy/internal/clients/llm/llmtest"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

func text(s string) func(llm.Request) llmtest.Reply {
	return func(llm.Request) llmtest.Reply { return llmtest.Text(s) }
}

const outlineJSON = `{
  "title": "Billing Basics",
  "description": "Everything about invoices",
  "level": "beginner",
  "estimatedDurationMinutes": 90,
  "learningObjectives": ["read an invoice"],
  "modules": [
    {"title": "M1", "lessons": [{"title": "L1", "contentType": "text", "sourceArticles": ["1"]}, {"title": "L2", "sourceArticles": ["2"]}, {"title": "L3", "contentType": "video"}]},
    {"title": "M2", "lessons": [{"title": "L4", "contentType": "quiz"}]},
    {"title": "M3", "lessons": [{"title": "L5", "contentType": "text"}]}
  ]
}`

func articles() []SourceArticle {
	return []SourceArticle{
		{ID: "1", Title: "Invoices", Content: "How invoices work."},
		{ID: "2", Title: "Refunds", Content: "How refunds work."},
	}
}

func TestGenerateCourseStructureTruncatesToLimits(t *testing.T) {
	fake := llmtest.NewScripted(&llmtest.Rule{Match: "Design a course", Reply: text("```json\n" + outlineJSON + "\n```")})
	g := New(fake, logger.Nop())

	out, err := g.GenerateCourseStructure(context.Background(), articles(), Options{MaxModules: 2, MaxLessonsPerModule: 2})
	require.NoError(t, err)
	require.Len(t, out.Modules, 2)
	for _, m := range out.Modules {
		assert.LessOrEqual(t, len(m.Lessons), 2)
	}
	assert.Equal(t, "text", out.Modules[0].Lessons[1].ContentType, "missing content type defaults to text")

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, structureMaxTokens, reqs[0].MaxTokens)
	assert.Contains(t, reqs[0].User, "(id 1)")
	assert.Contains(t, reqs[0].User, "At most 2 modules")
	assert.Equal(t, SystemPrompt, reqs[0].System)
}

func TestGenerateCourseStructureNonTextBlock(t *testing.T) {
	fake := llmtest.NewScripted(&llmtest.Rule{Match: "", Reply: func(llm.Request) llmtest.Reply {
		return llmtest.Reply{Blocks: []llm.Block{{Type: "tool_use"}}}
	}})
	g := New(fake, logger.Nop())
	_, err := g.GenerateCourseStructure(context.Background(), articles(), Options{})
	if !errors.Is(err, apperr.ErrBadResponseShape) {
		t.Fatalf("expected ErrBadResponseShape, got %v", err)
	}
}

func TestGenerateCourseStructureIgnoresTrailingBlocks(t *testing.T) {
	fake := llmtest.NewScripted(&llmtest.Rule{Match: "", Reply: func(llm.Request) llmtest.Reply {
		return llmtest.Reply{Blocks: []llm.Block{{Type: llm.BlockTypeText, Text: outlineJSON}, {Type: "tool_use"}}}
	}})
	g := New(fake, logger.Nop())
	out, err := g.GenerateCourseStructure(context.Background(), articles(), Options{})
	if err != nil {
		t.Fatalf("GenerateCourseStructure: %v", err)
	}
	if out.Title == "" || len(out.Modules) == 0 {
		t.Fatalf("unexpected outline: %+v", out)
	}
}

func TestMalformedJSONIsNotRetried(t *testing.T) {
	fake := llmtest.NewScripted(&llmtest.Rule{Match: "", Reply: text("sure! here is your course: {not json")})
	g := New(fake, logger.Nop())
	_, err := g.GenerateCourseStructure(context.Background(), articles(), Options{})
	if !errors.Is(err, apperr.ErrBadResponseShape) {
		t.Fatalf("expected ErrBadResponseShape, got %v", err)
	}
	if got := len(fake.Requests()); got != 1 {
		t.Fatalf("expected exactly one call, got %d", got)
	}
}

func TestSchemaInvalidGetsOneCorrectiveRetry(t *testing.T) {
	fake := llmtest.NewScripted(
		&llmtest.Rule{Match: "did not match the required shape", Reply: text(outlineJSON)},
		&llmtest.Rule{Match: "Design a course", Reply: text(`{"title":"x","level":"beginner","modules":[]}`)},
	)
	g := New(fake, logger.Nop())
	out, err := g.GenerateCourseStructure(context.Background(), articles(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Billing Basics", out.Title)

	reqs := fake.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[1].User, "Modules needs at least 1 entries")
}

func TestSchemaInvalidTwiceFails(t *testing.T) {
	fake := llmtest.NewScripted(&llmtest.Rule{Match: "", Reply: text(`{"title":"x","level":"grandmaster","modules":[{"title":"m","lessons":[{"title":"l"}]}]}`)})
	g := New(fake, logger.Nop())
	_, err := g.GenerateCourseStructure(context.Background(), articles(), Options{})
	if !errors.Is(err, apperr.ErrSchemaInvalid) {
		t.Fatalf("expected ErrSchemaInvalid, got %v", err)
	}
	if got := len(fake.Requests()); got != 2 {
		t.Fatalf("expected two calls, got %d", got)
	}
}

func TestGenerateCourseStructureNoArticles(t *testing.T) {
	fake := llmtest.NewScripted()
	g := New(fake, logger.Nop())
	_, err := g.GenerateCourseStructure(context.Background(), nil, Options{})
	if !errors.Is(err, apperr.ErrNoArticles) {
		t.Fatalf("expected ErrNoArticles, got %v", err)
	}
	if len(fake.Requests()) != 0 {
		t.Fatalf("expected no LLM calls")
	}
}

func TestGenerateLessonContent(t *testing.T) {
	long := strings.Repeat("é", lessonArticleBudget+50)
	fake := llmtest.NewScripted(&llmtest.Rule{Match: "Write the full lesson", Reply: text(`{"content":"# L1\n## Overview\nhi","estimatedDurationMinutes":12}`)})
	g := New(fake, logger.Nop())

	out, err := g.GenerateLessonContent(context.Background(), "L1", "M1: basics", []SourceArticle{{ID: "1", Title: "A", Content: long}}, "")
	require.NoError(t, err)
	assert.Equal(t, 12, out.EstimatedDurationMinutes)
	assert.True(t, strings.HasPrefix(out.Content, "# L1"))

	req := fake.Requests()[0]
	assert.Equal(t, lessonMaxTokens, req.MaxTokens)
	assert.Contains(t, req.User, "Audience level: beginner")
	assert.Contains(t, req.User, strings.Repeat("é", lessonArticleBudget)+"...")
	assert.NotContains(t, req.User, strings.Repeat("é", lessonArticleBudget+1))
}

func TestGenerateAssessmentSingleCorrect(t *testing.T) {
	bad := `{"title":"Quiz","assessmentType":"quiz","passingScore":75,"questions":[
	  {"questionText":"Q1","questionType":"multiple_choice","answerOptions":[{"optionText":"a","isCorrect":true},{"optionText":"b","isCorrect":true}]}]}`
	good := `{"title":"Quiz","passingScore":75,"questions":[
	  {"questionText":"Q1","questionType":"multiple_choice","answerOptions":[{"optionText":"a","isCorrect":true},{"optionText":"b"}]},
	  {"questionText":"Q2","questionType":"short_answer"}]}`
	fake := llmtest.NewScripted(
		&llmtest.Rule{Match: "did not match the required shape", Reply: text(good)},
		&llmtest.Rule{Match: "assessment for this lesson", Reply: text(bad)},
	)
	g := New(fake, logger.Nop())

	out, err := g.GenerateAssessment(context.Background(), "lesson body", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "quiz", out.AssessmentType)
	require.Len(t, out.Questions, 2)
	assert.Equal(t, 1, out.Questions[0].Points)

	reqs := fake.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].User, fmt.Sprintf("%d questions", DefaultQuestionCount))
	assert.Contains(t, reqs[1].User, "exactly one correct option, has 2")
	assert.Equal(t, assessmentMaxTokens, reqs[0].MaxTokens)
}

func TestGenerateAssessmentTrueFalseNeedsOptions(t *testing.T) {
	reply := `{"title":"Quiz","questions":[{"questionText":"Q1","questionType":"true_false","answerOptions":[{"optionText":"True","isCorrect":true}]}]}`
	fake := llmtest.NewScripted(&llmtest.Rule{Match: "", Reply: text(reply)})
	g := New(fake, logger.Nop())
	_, err := g.GenerateAssessment(context.Background(), "lesson body", "checkpoint", 3)
	if !errors.Is(err, apperr.ErrSchemaInvalid) {
		t.Fatalf("expected ErrSchemaInvalid, got %v", err)
	}
}

func TestGenerateContentUpdate(t *testing.T) {
	fake := llmtest.NewScripted(&llmtest.Rule{Match: "Update this lesson", Reply: text(`{"updatedContent":"new","changeSummary":"refund window","conflictAreas":["step 2"]}`)})
	g := New(fake, logger.Nop())
	out, err := g.GenerateContentUpdate(context.Background(), "old", articles(), true)
	require.NoError(t, err)
	assert.Equal(t, "new", out.UpdatedContent)
	assert.Equal(t, []string{"step 2"}, out.ConflictAreas)
	assert.Contains(t, fake.Requests()[0].User, "keep custom edits")
}

func TestUpstreamErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	fake := llmtest.NewScripted(&llmtest.Rule{Match: "", Reply: func(llm.Request) llmtest.Reply { return llmtest.Fail(boom) }})
	g := New(fake, logger.Nop())
	_, err := g.GenerateLessonContent(context.Background(), "L", "M", articles(), "advanced")
	if !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"abcdef", 3, "abc..."},
		{"  padded  ", 10, "padded"},
		{"日本語テキスト", 3, "日本語..."},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.n); got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                        `{"a":1}`,
		"```json\n{\"a\":1}\n```":        `{"a":1}`,
		"Here you go:\n{\"a\":1}\nThanks": `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, extractJSON(in))
	}
}
