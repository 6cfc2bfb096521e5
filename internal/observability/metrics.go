package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

// Metrics is a small Prometheus text-exposition registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	apiRequests      *CounterVec
	apiLatency       *HistogramVec
	upstreamRequests *CounterVec
	upstreamLatency  *HistogramVec
	runs             *CounterVec
	runDuration      *HistogramVec
	syncs            *CounterVec
	articlesSynced   *CounterVec
	queueDepth       *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry when enabled is true.
func Init(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
	})
	return instance
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("academy_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"academy_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 120},
		),
		upstreamRequests: NewCounterVec("academy_upstream_requests_total", "Upstream calls by service/operation/status.", []string{"service", "operation", "status"}),
		upstreamLatency: NewHistogramVec(
			"academy_upstream_request_duration_seconds",
			"Upstream call latency in seconds by service/operation.",
			[]string{"service", "operation"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		runs: NewCounterVec("academy_generation_runs_total", "Generation runs by kind/outcome.", []string{"kind", "outcome"}),
		runDuration: NewHistogramVec(
			"academy_generation_run_duration_seconds",
			"Generation run wall time by kind.",
			[]string{"kind"},
			[]float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		),
		syncs:          NewCounterVec("academy_syncs_total", "Knowledge source syncs by outcome.", []string{"outcome"}),
		articlesSynced: NewCounterVec("academy_articles_synced_total", "Articles written by sync, by change kind.", []string{"change"}),
		queueDepth:     NewGaugeVec("academy_generation_run_queue_depth", "Generation runs by status.", []string{"status"}),
	}
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ObserveUpstream(service, operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.Inc(service, operation, status)
	m.upstreamLatency.Observe(dur.Seconds(), service, operation)
}

func (m *Metrics) ObserveRun(kind string, success bool, dur time.Duration) {
	if m == nil {
		return
	}
	m.runs.Inc(kind, outcome(success))
	m.runDuration.Observe(dur.Seconds(), kind)
}

func (m *Metrics) ObserveSync(success bool, created, updated int) {
	if m == nil {
		return
	}
	m.syncs.Inc(outcome(success))
	m.articlesSynced.Add(float64(created), "created")
	m.articlesSynced.Add(float64(updated), "updated")
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// StartQueueSampler refreshes the run queue gauge until ctx is done.
func (m *Metrics) StartQueueSampler(ctx context.Context, db *gorm.DB, log *logger.Logger, every time.Duration) {
	if m == nil || db == nil {
		return
	}
	if every <= 0 {
		every = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			m.sampleQueue(ctx, db, log)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (m *Metrics) sampleQueue(ctx context.Context, db *gorm.DB, log *logger.Logger) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := db.WithContext(ctx).
		Model(&types.GenerationRun{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		if log != nil && ctx.Err() == nil {
			log.Debug("queue depth sample failed", "error", err)
		}
		return
	}
	for _, row := range rows {
		status := strings.TrimSpace(row.Status)
		if status == "" {
			status = "unknown"
		}
		m.queueDepth.Set(float64(row.Count), status)
	}
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests,
		m.apiLatency,
		m.upstreamRequests,
		m.upstreamLatency,
		m.runs,
		m.runDuration,
		m.syncs,
		m.articlesSynced,
		m.queueDepth,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

// ---- lightweight metric primitives (Prometheus exposition) ----

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) {
	c.Add(1, values...)
}

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}

func (c *CounterVec) Value(values ...string) float64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[labelString(c.labelNames, values)]
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return writeSeries(w, c.name, c.help, "counter", c.values)
}

type GaugeVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	lbl := labelString(g.labelNames, values)
	g.mu.Lock()
	g.values[lbl] = v
	g.mu.Unlock()
}

func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return writeSeries(w, g.name, g.help, "gauge", g.values)
}

func writeSeries(w io.Writer, name, help, kind string, values map[string]float64) error {
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind); err != nil {
		return err
	}
	for _, k := range sortedKeys(values) {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", name, k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogram
}

type histogram struct {
	counts []uint64
	sum    float64
	total  uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	}
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.values[lbl]
	if !ok {
		hist = &histogram{counts: make([]uint64, len(h.buckets))}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range h.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.values))
	for k := range h.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := h.values[k]
		for i, b := range h.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n%s_sum%s %f\n%s_count%s %d\n",
			h.name, withLe(k, "+Inf"), v.total,
			h.name, k, v.sum,
			h.name, k, v.total,
		); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func labelString(names []string, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("{")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		val := "unknown"
		if i < len(values) && values[i] != "" {
			val = values[i]
		}
		b.WriteString(name)
		b.WriteString("=\"")
		b.WriteString(escapeLabel(val))
		b.WriteString("\"")
	}
	b.WriteString("}")
	return b.String()
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	return strings.ReplaceAll(v, "\n", "\\n")
}

func withLe(labels string, le string) string {
	le = escapeLabel(le)
	if labels == "" || labels == "{}" {
		return "{le=\"" + le + "\"}"
	}
	return strings.TrimSuffix(labels, "}") + ",le=\"" + le + "\"}"
}
