package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdftoolbox",
			Name:      "operations_total",
			Help:      "Total operations by name and result (success, failure)",
		},
		[]string{"op", "result"},
	)

	operationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdftoolbox",
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations by name",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	pagesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdftoolbox",
			Name:      "pages_written_total",
			Help:      "Pages copied into output documents by operation",
		},
		[]string{"op"},
	)

	imagesCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdftoolbox",
			Name:      "images_collected_total",
			Help:      "Embedded images discovered while walking documents",
		},
	)

	itemsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdftoolbox",
			Name:      "items_skipped_total",
			Help:      "Pages, documents or images skipped by operation and reason",
		},
		[]string{"op", "reason"},
	)

	archiveEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdftoolbox",
			Name:      "archive_entries_total",
			Help:      "Entries written into archives by operation",
		},
		[]string{"op"},
	)

	inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pdftoolbox",
			Name:      "inflight_operations",
			Help:      "Operations currently holding a processing slot",
		},
	)

	initOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(operations, operationLatency, pagesWritten, imagesCollected, itemsSkipped, archiveEntries, inflight)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// ObserveOperation records one finished operation.
func ObserveOperation(op string, err error, dur time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	operations.WithLabelValues(op, result).Inc()
	operationLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func AddPages(op string, n int)          { pagesWritten.WithLabelValues(op).Add(float64(n)) }
func AddImages(n int)                    { imagesCollected.Add(float64(n)) }
func IncSkipped(op, reason string)       { itemsSkipped.WithLabelValues(op, reason).Inc() }
func AddArchiveEntries(op string, n int) { archiveEntries.WithLabelValues(op).Add(float64(n)) }
func SetInflight(n int)                  { inflight.Set(float64(n)) }
