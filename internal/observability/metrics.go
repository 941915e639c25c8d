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

	"github.com/yungbote/dealgraph-backend/internal/platform/envutil"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// Metrics holds the in-process pipeline counters. Every method is safe on a
// nil receiver so callers never need to check whether metrics are enabled.
type Metrics struct {
	rowsIngested    *CounterVec
	chunksCommitted *CounterVec
	stageRuns       *CounterVec
	stageLatency    *HistogramVec
	quarantined     *CounterVec
	dataQuality     *CounterVec
	cacheLookups    *CounterVec
	searches        *CounterVec
	vectorOps       *CounterVec
	vectorLatency   *HistogramVec
	edgesBuilt      *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", true)
}

func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Debug("metrics initialized")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		rowsIngested:    NewCounterVec("dg_rows_ingested_total", "Raw rows committed by dataset.", []string{"dataset"}),
		chunksCommitted: NewCounterVec("dg_ingest_chunks_total", "Ingestion chunks by outcome.", []string{"status"}),
		stageRuns:       NewCounterVec("dg_stage_runs_total", "Pipeline stage executions by stage/status.", []string{"stage", "status"}),
		stageLatency: NewHistogramVec(
			"dg_stage_duration_seconds",
			"Pipeline stage duration in seconds by stage/status.",
			[]string{"stage", "status"},
			[]float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		),
		quarantined:  NewCounterVec("dg_quarantined_total", "Quarantine rows inserted by source table.", []string{"source_table"}),
		dataQuality:  NewCounterVec("dg_data_quality_issues_total", "Data quality anomalies by stage/issue/key.", []string{"stage", "issue", "key"}),
		cacheLookups: NewCounterVec("dg_cache_lookups_total", "Result cache lookups by namespace/result.", []string{"namespace", "result"}),
		searches:     NewCounterVec("dg_search_requests_total", "Search requests by search type.", []string{"search_type"}),
		vectorOps:    NewCounterVec("dg_vector_store_operations_total", "Vector store calls by provider/operation/status.", []string{"provider", "operation", "status"}),
		vectorLatency: NewHistogramVec(
			"dg_vector_store_operation_seconds",
			"Vector store call duration in seconds by provider/operation.",
			[]string{"provider", "operation"},
			[]float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		),
		edgesBuilt: NewGauge("dg_co_investment_edges", "Edges written by the last rebuild."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
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
		m.rowsIngested,
		m.chunksCommitted,
		m.stageRuns,
		m.stageLatency,
		m.quarantined,
		m.dataQuality,
		m.cacheLookups,
		m.searches,
		m.vectorOps,
		m.vectorLatency,
		m.edgesBuilt,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot flattens every counter series into "name{labels}" -> value, for
// logging at the end of a job.
func (m *Metrics) Snapshot() map[string]float64 {
	out := map[string]float64{}
	if m == nil {
		return out
	}
	for _, c := range []*CounterVec{m.rowsIngested, m.chunksCommitted, m.stageRuns, m.quarantined, m.dataQuality, m.cacheLookups, m.searches, m.vectorOps} {
		for k, v := range c.snapshot() {
			out[c.name+k] = v
		}
	}
	out[m.edgesBuilt.name] = m.edgesBuilt.Value()
	return out
}

// SnapshotKeys returns the snapshot keys sorted, for stable log output.
func SnapshotKeys(s map[string]float64) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Metrics) AddRowsIngested(dataset string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsIngested.Add(float64(n), orUnknown(dataset))
}

func (m *Metrics) IncChunk(status string) {
	if m == nil {
		return
	}
	m.chunksCommitted.Inc(orUnknown(status))
}

func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	stage = orUnknown(stage)
	status = orUnknown(status)
	m.stageRuns.Inc(stage, status)
	m.stageLatency.Observe(dur.Seconds(), stage, status)
}

func (m *Metrics) AddQuarantined(sourceTable string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.quarantined.Add(float64(n), orUnknown(sourceTable))
}

func (m *Metrics) IncDataQuality(stage, issue, key string, n int) {
	if m == nil || n <= 0 {
		return
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "none"
	}
	m.dataQuality.Add(float64(n), orUnknown(stage), orUnknown(issue), key)
}

func (m *Metrics) IncCacheLookup(namespace string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Inc(orUnknown(namespace), result)
}

func (m *Metrics) IncSearch(searchType string) {
	if m == nil {
		return
	}
	m.searches.Inc(orUnknown(searchType))
}

func (m *Metrics) ObserveVectorOperation(provider, operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	provider = orUnknown(provider)
	operation = orUnknown(operation)
	m.vectorOps.Inc(provider, operation, orUnknown(status))
	m.vectorLatency.Observe(dur.Seconds(), provider, operation)
}

func (m *Metrics) SetEdgesBuilt(n int) {
	if m == nil {
		return
	}
	m.edgesBuilt.Set(float64(n))
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}

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
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl]++
	c.mu.Unlock()
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

func (c *CounterVec) snapshot() map[string]float64 {
	out := map[string]float64{}
	if c == nil {
		return out
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type Gauge struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Set(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

func (g *Gauge) Value() float64 {
	if g == nil {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.val
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", g.name, g.val)
	return err
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
	buckets []float64
	counts  []uint64
	sum     float64
	total   uint64
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
		hist = &histogram{
			buckets: h.buckets,
			counts:  make([]uint64, len(h.buckets)+1),
		}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range hist.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	hist.counts[len(hist.counts)-1]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s histogram\n", h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, v := range h.values {
		for i, b := range v.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), v.counts[len(v.counts)-1]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %f\n", h.name, k, v.sum); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_count%s %d\n", h.name, k, v.total); err != nil {
			return err
		}
	}
	return nil
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
		if i < len(values) {
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
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}

func withLe(labels string, le string) string {
	le = escapeLabel(le)
	if labels == "" || labels == "{}" {
		return "{le=\"" + le + "\"}"
	}
	if strings.HasSuffix(labels, "}") {
		return strings.TrimSuffix(labels, "}") + ",le=\"" + le + "\"}"
	}
	return "{le=\"" + le + "\"}"
}
