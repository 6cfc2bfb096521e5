package generator

import (
	"fmt"
	"strings"
	"time"
)

const (
	structureArticleBudget = 2000
	lessonArticleBudget    = 1500
	assessmentLessonBudget = 2000
	updateOriginalBudget   = 2000
	updateArticleBudget    = 1500

	structureMaxTokens  = 8000
	lessonMaxTokens     = 4000
	assessmentMaxTokens = 3000
	updateMaxTokens     = 4000
)

const SystemPrompt = `You are an expert instructional designer. You turn knowledge base articles into progressive, practical courses.

Principles:
1. Build a clear path from fundamentals to advanced use.
2. Split complex topics into small modules and lessons.
3. Ground every lesson in the source articles and keep their facts accurate.
4. Prefer worked examples and real support scenarios.
5. Write assessments that check understanding and application.
6. Keep language plain and inclusive.

Reply with a single JSON document and nothing else.`

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func structurePrompt(articles []SourceArticle, opts Options) string {
	var b strings.Builder
	b.WriteString("Design a course from the knowledge base articles below.\n\nArticles:\n")
	for i, a := range articles {
		fmt.Fprintf(&b, "\nArticle %d (id %s)\nTitle: %s\nContent: %s\n", i+1, a.ID, a.Title, truncate(a.Content, structureArticleBudget))
		if a.URL != "" {
			fmt.Fprintf(&b, "URL: %s\n", a.URL)
		}
	}
	fmt.Fprintf(&b, `
Course requirements:
- Level: %s
- At most %d modules
- At most %d lessons per module
- Assessments: %t
`, opts.Level, opts.MaxModules, opts.MaxLessonsPerModule, opts.AssessmentsEnabled())
	if opts.Title != "" {
		fmt.Fprintf(&b, "- Working title: %s\n", opts.Title)
	}
	b.WriteString(`
Include a title and description, learning objectives, modules ordered from basic to advanced,
lesson stubs with a content type, time estimates in minutes, and for each lesson the ids of the
articles it draws on.

JSON shape:
{
  "title": string,
  "description": string,
  "level": "beginner" | "intermediate" | "advanced" | "expert",
  "estimatedDurationMinutes": number,
  "learningObjectives": [string],
  "prerequisites": [string],
  "modules": [{
    "title": string,
    "description": string,
    "estimatedDurationMinutes": number,
    "learningObjectives": [string],
    "lessons": [{
      "title": string,
      "content": string,
      "contentType": "text" | "video" | "interactive" | "quiz",
      "estimatedDurationMinutes": number,
      "sourceArticles": [article id as string]
    }]
  }]
}`)
	return b.String()
}

func lessonPrompt(lessonTitle, moduleContext string, articles []SourceArticle, audience string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the full lesson %q.\n\nModule context: %s\n\nSource articles:\n", lessonTitle, moduleContext)
	for i, a := range articles {
		fmt.Fprintf(&b, "\nArticle %d\nTitle: %s\nContent: %s\n", i+1, a.Title, truncate(a.Content, lessonArticleBudget))
	}
	fmt.Fprintf(&b, `
Audience level: %s

Write markdown with these sections:
# <lesson title>
## Overview
## Key Concepts
## Detailed Content
## Summary
## Next Steps

Use concrete examples and call out important warnings. Estimate how long the lesson takes.

JSON shape: {"content": "markdown", "estimatedDurationMinutes": number}`, audience)
	return b.String()
}

var assessmentStyle = map[string]string{
	"quiz":       "a standard knowledge check",
	"scenario":   "branching decision points drawn from realistic support cases",
	"simulation": "hands-on problem solving in a simulated workflow",
	"checkpoint": "short comprehension checks",
}

func assessmentPrompt(lessonContent, assessmentType string, questionCount int) string {
	return fmt.Sprintf(`Write a %s assessment for this lesson.

Lesson content:
%s

Requirements:
- %d questions, mixing multiple_choice, true_false and scenario questions
- Test understanding and application rather than recall
- Explain why the correct answer is correct
- multiple_choice and true_false questions have exactly one option with "isCorrect": true
- Passing score between 70 and 80
- Style: %s

JSON shape:
{
  "title": string,
  "description": string,
  "assessmentType": "quiz" | "scenario" | "simulation" | "checkpoint",
  "passingScore": number,
  "questions": [{
    "questionText": string,
    "questionType": "multiple_choice" | "true_false" | "short_answer" | "scenario_branch",
    "points": number,
    "explanation": string,
    "answerOptions": [{"optionText": string, "isCorrect": boolean, "explanation": string}]
  }]
}`, assessmentType, truncate(lessonContent, assessmentLessonBudget), questionCount, assessmentStyle[assessmentType])
}

func contentUpdatePrompt(original string, updated []SourceArticle, preserveCustomEdits bool) string {
	mode := "replace outdated passages with the new information"
	if preserveCustomEdits {
		mode = "keep custom edits and improvements intact"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Update this lesson to match its revised source articles.\n\nOriginal content:\n%s\n\nUpdated source articles:\n", truncate(original, updateOriginalBudget))
	for i, a := range updated {
		fmt.Fprintf(&b, "\nArticle %d\nTitle: %s\nLast modified: %s\nContent: %s\n", i+1, a.Title, a.LastModified.UTC().Format(time.RFC3339), truncate(a.Content, updateArticleBudget))
	}
	fmt.Fprintf(&b, `
Identify what changed in the sources, rewrite the content and %s. Summarize the changes and
list any places where the original content contradicts the new sources.

JSON shape: {"updatedContent": string, "changeSummary": string, "conflictAreas": [string]}`, mode)
	return b.String()
}

func correctivePrompt(original string, problems []string) string {
	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\nYour previous reply was valid JSON but did not match the required shape:\n")
	for _, p := range problems {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString("Reply again with the complete corrected JSON document only.")
	return b.String()
}
