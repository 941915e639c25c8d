package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/dealgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/dealgraph-backend/internal/platform/envutil"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// Data quality issue kinds reported by the pipeline.
const (
	IssueDuplicateSourceID = "duplicate_source_id"
	IssueHighDegreeDeal    = "high_degree_deal"
	IssueOversizedBlock    = "oversized_block"
	IssueUnparsableRow     = "unparsable_row"
	IssueMissingName       = "missing_name"
	IssueSweepFailed       = "sweep_failed"
)

type dqAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var dqAlerts dqAlertState

// DataQualityIssue is one anomaly class observed by a stage. Samples holds a
// few offending keys (source ids, deal ids) for the log line.
type DataQualityIssue struct {
	Issue   string
	Key     string
	Count   int
	Samples []string
}

// ReportDataQuality counts, logs and optionally alerts on anomalies that
// were excluded from a stage's output.
func ReportDataQuality(ctx context.Context, log *logger.Logger, stage string, issues []DataQualityIssue, meta map[string]any) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	issueCounts := map[string]int{}
	samples := make([]string, 0, 5)
	for _, is := range issues {
		if is.Count <= 0 {
			continue
		}
		Current().IncDataQuality(stage, is.Issue, is.Key, is.Count)
		issueCounts[is.Issue] += is.Count
		for _, s := range is.Samples {
			if len(samples) >= 5 {
				break
			}
			samples = append(samples, s)
		}
	}
	if len(issueCounts) == 0 {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			meta["trace_id"] = td.TraceID
		}
		if td.RunID != "" {
			meta["run_id"] = td.RunID
		}
	}
	if log != nil {
		log.Warn("data quality issue detected",
			"stage", stage,
			"issues", issueCounts,
			"samples", samples,
			"meta", meta,
		)
	}
	sendDataQualityAlert(stage, issueCounts, samples, meta, log)
}

func dataQualityAlertWebhook() string {
	if !envutil.Bool("DATA_QUALITY_ALERTS_ENABLED", false) {
		return ""
	}
	return envutil.String("DATA_QUALITY_ALERT_WEBHOOK_URL", "")
}

func sendDataQualityAlert(stage string, issueCounts map[string]int, samples []string, meta map[string]any, log *logger.Logger) {
	webhook := dataQualityAlertWebhook()
	if webhook == "" || len(issueCounts) == 0 {
		return
	}
	dqAlerts.mu.Lock()
	if dqAlerts.last == nil {
		dqAlerts.last = map[string]time.Time{}
	}
	last := dqAlerts.last[stage]
	minInterval := envutil.Duration("DATA_QUALITY_ALERT_MIN_INTERVAL_SECONDS", 5*time.Minute)
	if !last.IsZero() && time.Since(last) < minInterval {
		dqAlerts.mu.Unlock()
		return
	}
	dqAlerts.last[stage] = time.Now()
	dqAlerts.mu.Unlock()

	payload := map[string]any{
		"title":     "Data quality issue",
		"stage":     stage,
		"issues":    issueCounts,
		"samples":   samples,
		"meta":      meta,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("data quality alert request build failed", "error", err, "stage", stage)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("data quality alert post failed", "error", err, "stage", stage)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("data quality alert sent", "stage", stage, "status", resp.StatusCode)
	}
}
