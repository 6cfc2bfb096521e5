package assembler

import "context"

const (
	StageFetchingArticles    = "fetching_articles"
	StageGeneratingStructure = "generating_structure"
	StageGeneratingLessons   = "generating_lessons"
	StagePersisting          = "persisting"
	StageDone                = "done"
	StageFailed              = "failed"
)

type stageKey struct{}

// WithStageReporter attaches fn to ctx; the assembler calls it on every stage change.
func WithStageReporter(ctx context.Context, fn func(stage string)) context.Context {
	return context.WithValue(ctx, stageKey{}, fn)
}

func reportStage(ctx context.Context, stage string) {
	if fn, ok := ctx.Value(stageKey{}).(func(string)); ok && fn != nil {
		fn(stage)
	}
}
