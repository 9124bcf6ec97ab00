package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	EventsPosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_events_posted_total",
			Help: "Trace events written to the appevents queue by type",
		},
		[]string{"type"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_events_published_total",
			Help: "Trace events forwarded to the coordinator task history by type",
		},
		[]string{"type"},
	)

	ContainersConfigured = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_containers_configured_total",
			Help: "Containers created and started from cached manifests",
		},
	)

	ConfigureFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_configure_failures_total",
			Help: "Configure attempts abandoned on container runtime errors",
		},
	)

	ExitsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_exits_classified_total",
			Help: "Container exits classified by terminal bucket",
		},
		[]string{"bucket"},
	)

	CleanupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_cleanups_total",
			Help: "Instances fully cleaned up",
		},
	)

	CleanupRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_cleanup_retries_total",
			Help: "Cleanup entries that failed and were left for the next tick",
		},
	)

	PlacementSyncsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_placement_syncs_total",
			Help: "Placement synchronisation passes completed",
		},
	)

	PlacementSyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_placement_sync_duration_seconds",
			Help:    "Placement synchronisation pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainerStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_container_start_duration_seconds",
			Help:    "Time from reading a cached manifest to a started container",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Work directory depth, sampled periodically
	DirectoryEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_directory_entries",
			Help: "Entries currently present per work directory",
		},
		[]string{"dir"},
	)

	ChildRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_child_running",
			Help: "Whether a supervised component is running (1) or not (0)",
		},
		[]string{"child"},
	)

	NodeAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_node_available",
			Help: "Whether the node currently accepts workloads",
		},
	)
)

func init() {
	prometheus.MustRegister(EventsPosted)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(ContainersConfigured)
	prometheus.MustRegister(ConfigureFailures)
	prometheus.MustRegister(ExitsClassified)
	prometheus.MustRegister(CleanupsTotal)
	prometheus.MustRegister(CleanupRetries)
	prometheus.MustRegister(PlacementSyncsTotal)
	prometheus.MustRegister(PlacementSyncDuration)
	prometheus.MustRegister(ContainerStartDuration)
	prometheus.MustRegister(DirectoryEntries)
	prometheus.MustRegister(ChildRunning)
	prometheus.MustRegister(NodeAvailable)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
