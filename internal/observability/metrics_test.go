package observability

import (
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/api/courses/generate", "200", 3*time.Second)
	m.ObserveRun("generate", true, 90*time.Second)
	m.ObserveSync(false, 0, 0)

	var b strings.Builder
	if err := m.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		`academy_api_requests_total{method="POST",route="/api/courses/generate",status="200"} 1.000000`,
		`academy_generation_runs_total{kind="generate",outcome="success"} 1.000000`,
		`academy_syncs_total{outcome="failure"} 1.000000`,
		`academy_generation_run_duration_seconds_bucket{kind="generate",le="120"} 1`,
		`academy_generation_run_duration_seconds_bucket{kind="generate",le="60"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.ObserveUpstream("zendesk", "list_articles", "200", time.Millisecond)
	if err := m.WritePrometheus(&strings.Builder{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}
