// Package metrics exposes Prometheus collectors for crawl runs.
package metrics

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Visit status label values.
const (
	StatusSuccess = "success"
	StatusSkip    = "skip"
	StatusFail    = "fail"
)

var (
	crawlerVisitsTotal            *prometheus.CounterVec
	crawlerVisitDurationSeconds   prometheus.Histogram
	crawlerScreenshotBackupsTotal prometheus.Counter
	crawlerPacingDelaySeconds     prometheus.Histogram
	crawlerLastRunTimestamp       *prometheus.GaugeVec

	once sync.Once
)

// Init registers the collectors with the default registry. Every Observe
// function calls it, so explicit calls are only needed to export zero values.
func Init() {
	once.Do(func() {
		crawlerVisitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesnap_visits_total",
				Help: "Total number of URLs processed, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerVisitDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitesnap_visit_duration_seconds",
				Help:    "Histogram of page visit durations, including both screenshots.",
				Buckets: []float64{1, 2.5, 5, 10, 20, 45, 90, 180},
			},
		)

		crawlerScreenshotBackupsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sitesnap_screenshot_backups_total",
				Help: "Total number of screenshots moved aside before a retry overwrote them.",
			},
		)

		crawlerPacingDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitesnap_pacing_delay_seconds",
				Help:    "Histogram of waits introduced between visits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		crawlerLastRunTimestamp = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sitesnap_last_run_timestamp_seconds",
				Help: "Unix time the last run finished, labeled by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveVisit records one processed URL. Skips carry no duration.
func ObserveVisit(rawURL string, status string, duration time.Duration) {
	Init()
	crawlerVisitsTotal.WithLabelValues(SanitizeSite(rawURL), status).Inc()
	if status != StatusSkip {
		crawlerVisitDurationSeconds.Observe(duration.Seconds())
	}
}

// ObserveBackup counts a screenshot backup.
func ObserveBackup() {
	Init()
	crawlerScreenshotBackupsTotal.Inc()
}

// ObservePacingDelay records the duration of a pacing wait.
func ObservePacingDelay(duration time.Duration) {
	Init()
	crawlerPacingDelaySeconds.Observe(duration.Seconds())
}

// ObserveRunFinished stamps the completion time of a run.
func ObserveRunFinished(mode, outcome string, at time.Time) {
	Init()
	crawlerLastRunTimestamp.WithLabelValues(mode, outcome).Set(float64(at.Unix()))
}

// WriteTextfile dumps the default registry in the node_exporter textfile
// format. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
