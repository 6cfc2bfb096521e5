package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ejwhite7/zendesk-academy/internal/clients/llm"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

// Generator turns articles into course outlines, lessons and assessments
// through a single injected LLM client. It holds no per-call state.
type Generator struct {
	client   llm.Client
	log      *logger.Logger
	validate *validator.Validate
}

func New(client llm.Client, baseLog *logger.Logger) *Generator {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateQuestion, Question{})
	return &Generator{
		client:   client,
		log:      baseLog.With("component", "Generator"),
		validate: v,
	}
}

func validateQuestion(sl validator.StructLevel) {
	q := sl.Current().Interface().(Question)
	if !types.RequiresSingleCorrect(q.QuestionType) {
		return
	}
	if len(q.AnswerOptions) < 2 {
		sl.ReportError(q.AnswerOptions, "answerOptions", "AnswerOptions", "min_options", "2")
		return
	}
	correct := 0
	for _, o := range q.AnswerOptions {
		if o.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		sl.ReportError(q.AnswerOptions, "answerOptions", "AnswerOptions", "single_correct", fmt.Sprint(correct))
	}
}

// CheckInput validates caller-supplied input against its validate tags.
func (g *Generator) CheckInput(v any) error {
	if problems := validationProblems(g.validate.Struct(v)); len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperr.ErrInvalidArgument, strings.Join(problems, "; "))
	}
	return nil
}

// GenerateCourseStructure asks for a full course outline. The result never has
// more modules or lessons per module than opts allows.
func (g *Generator) GenerateCourseStructure(ctx context.Context, articles []SourceArticle, opts Options) (*CourseOutline, error) {
	opts = opts.WithDefaults()
	if len(articles) == 0 {
		return nil, apperr.ErrNoArticles
	}
	req := llm.Request{
		System:    SystemPrompt,
		User:      structurePrompt(articles, opts),
		MaxTokens: structureMaxTokens,
	}
	return complete(ctx, g, "structure", req, func(o *CourseOutline) {
		if o.Level == "" {
			o.Level = opts.Level
		}
		if o.Title == "" {
			o.Title = opts.Title
		}
		if len(o.Modules) > opts.MaxModules {
			o.Modules = o.Modules[:opts.MaxModules]
		}
		for i := range o.Modules {
			m := &o.Modules[i]
			if len(m.Lessons) > opts.MaxLessonsPerModule {
				m.Lessons = m.Lessons[:opts.MaxLessonsPerModule]
			}
			for j := range m.Lessons {
				if m.Lessons[j].ContentType == "" {
					m.Lessons[j].ContentType = types.ContentTypeText
				}
			}
		}
	})
}

// GenerateLessonContent writes the markdown body for one lesson stub.
func (g *Generator) GenerateLessonContent(ctx context.Context, lessonTitle, moduleContext string, articles []SourceArticle, audience string) (*LessonContent, error) {
	if audience == "" {
		audience = DefaultLevel
	}
	req := llm.Request{
		System:    SystemPrompt,
		User:      lessonPrompt(lessonTitle, moduleContext, articles, audience),
		MaxTokens: lessonMaxTokens,
	}
	return complete(ctx, g, "lesson", req, func(*LessonContent) {})
}

func (g *Generator) GenerateAssessment(ctx context.Context, lessonContent, assessmentType string, questionCount int) (*Assessment, error) {
	if assessmentType == "" {
		assessmentType = types.AssessmentTypeQuiz
	}
	if questionCount <= 0 {
		questionCount = DefaultQuestionCount
	}
	req := llm.Request{
		System:    SystemPrompt,
		User:      assessmentPrompt(lessonContent, assessmentType, questionCount),
		MaxTokens: assessmentMaxTokens,
	}
	return complete(ctx, g, "assessment", req, func(a *Assessment) {
		if a.AssessmentType == "" {
			a.AssessmentType = assessmentType
		}
		if a.PassingScore == 0 {
			a.PassingScore = 70
		}
		for i := range a.Questions {
			if a.Questions[i].Points <= 0 {
				a.Questions[i].Points = 1
			}
		}
	})
}

// GenerateContentUpdate rewrites existing lesson content against revised articles.
func (g *Generator) GenerateContentUpdate(ctx context.Context, original string, updated []SourceArticle, preserveCustomEdits bool) (*ContentUpdate, error) {
	req := llm.Request{
		System:    SystemPrompt,
		User:      contentUpdatePrompt(original, updated, preserveCustomEdits),
		MaxTokens: updateMaxTokens,
	}
	return complete(ctx, g, "content_update", req, func(*ContentUpdate) {})
}

// complete runs one LLM call and decodes it into T. Output that parses but
// fails validation gets one corrective re-prompt; malformed output does not.
func complete[T any](ctx context.Context, g *Generator, stage string, req llm.Request, normalize func(*T)) (*T, error) {
	out, problems, err := attempt(ctx, g, req, normalize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stage, err)
	}
	if len(problems) == 0 {
		return out, nil
	}
	g.log.Warn("LLM output failed validation, re-prompting", "stage", stage, "problems", problems)

	retry := req
	retry.User = correctivePrompt(req.User, problems)
	out, problems, err = attempt(ctx, g, retry, normalize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stage, err)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%s: %w: %s", stage, apperr.ErrSchemaInvalid, strings.Join(problems, "; "))
	}
	return out, nil
}

func attempt[T any](ctx context.Context, g *Generator, req llm.Request, normalize func(*T)) (*T, []string, error) {
	if g.client == nil {
		return nil, nil, apperr.ErrMisconfigured
	}
	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	text, ok := resp.Text()
	if !ok {
		return nil, nil, fmt.Errorf("%w: expected a single text block, got %d blocks", apperr.ErrBadResponseShape, len(resp.Blocks))
	}
	var out T
	if err := json.Unmarshal([]byte(extractJSON(text)), &out); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperr.ErrBadResponseShape, err)
	}
	if normalize != nil {
		normalize(&out)
	}
	return &out, validationProblems(g.validate.Struct(&out)), nil
}

// extractJSON pulls the JSON document out of a reply that may wrap it in a
// markdown fence or surrounding prose.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	start := strings.IndexAny(s, "{[")
	end := strings.LastIndexAny(s, "}]")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func validationProblems(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", path, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", path, fe.Param(), fmt.Sprint(fe.Value()))
	case "min_options":
		return path + " needs at least 2 options"
	case "single_correct":
		return fmt.Sprintf("%s must have exactly one correct option, has %s", path, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s %s", path, fe.Tag(), fe.Param())
	}
}
