package ctxutil

import "context"

type traceDataKey struct{}

// TraceData is the request- or run-scoped correlation info carried through
// generation calls. Trigger names who started the work (operator, sync, cli).
type TraceData struct {
	TraceID   string
	RequestID string
	Trigger   string
	RunID     string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// WithTrigger returns a ctx whose trace data carries trigger. Existing trace
// data is copied, never mutated.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	td := TraceData{}
	if cur := GetTraceData(ctx); cur != nil {
		td = *cur
	}
	td.Trigger = trigger
	return WithTraceData(ctx, &td)
}

// WithRunID is WithTrigger for the run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	td := TraceData{}
	if cur := GetTraceData(ctx); cur != nil {
		td = *cur
	}
	td.RunID = runID
	return WithTraceData(ctx, &td)
}

// LogFields flattens the non-empty values into logger key/value pairs.
func LogFields(ctx context.Context) []interface{} {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	var out []interface{}
	for _, kv := range [][2]string{
		{"trace_id", td.TraceID},
		{"request_id", td.RequestID},
		{"trigger", td.Trigger},
		{"run_id", td.RunID},
	} {
		if kv[1] != "" {
			out = append(out, kv[0], kv[1])
		}
	}
	return out
}
