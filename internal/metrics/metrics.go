// Package metrics exposes Prometheus counters/gauges for the driver plus a
// locally-mirrored atomic snapshot for the periodic metrics-log line,
// covering link framing, session, and classifier events.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kstaniek/neuroguard/internal/logging"
)

var (
	PacketsFramed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packets_framed_total",
		Help: "Total packets successfully framed and validated by the Listener.",
	})
	ChecksumFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checksum_failures_total",
		Help: "Total checksum validation failures reported by the device.",
	})
	FramingResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framing_resyncs_total",
		Help: "Total framing timeouts: PacketFactory instances abandoned after reaching their header-reset limit.",
	})
	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconnect_attempts_total",
		Help: "Total Supervisor reconnect attempts.",
	})
	CommandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commands_sent_total",
		Help: "Total Transaction commands written, by opcode.",
	}, []string{"opcode"})
	KeepaliveMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keepalive_misses_total",
		Help: "Total keepalive cycles with no response since the prior cycle.",
	})
	ClassifierPredictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classifier_predictions_total",
		Help: "Total classifier predict() invocations.",
	})
	SeizuresDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seizures_detected_total",
		Help: "Total positive seizure classifications.",
	})
	TherapyStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "therapy_starts_total",
		Help: "Total StartStim commands enqueued by the closed-loop controller.",
	})
	TherapyStops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "therapy_stops_total",
		Help: "Total StopStim commands enqueued by the closed-loop controller.",
	})
	CSVRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csv_rotations_total",
		Help: "Total rolling CSV file rotations.",
	})
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Current depth of an internal pipeline queue.",
	}, []string{"queue"})
	QueueDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_drops_total",
		Help: "Total items dropped because a queue was full.",
	}, []string{"queue"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrSerialRead  = "serial_read"
	ErrSerialWrite = "serial_write"
	ErrHandshake   = "handshake"
	ErrFraming     = "framing"
)

// StartHTTP serves Prometheus metrics and a readiness probe.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// SetReadinessFunc installs the function consulted by /ready.
func SetReadinessFunc(fn func() bool) {
	readinessMu.Lock()
	readinessFn = fn
	readinessMu.Unlock()
}

// IsReady reports the current readiness state; true if no function has
// been installed yet, so the endpoint doesn't flap during startup.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// InitBuildInfo sets the build_info gauge exactly once.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
}

// Local mirrored counters for cheap periodic logging without scraping
// Prometheus in-process.
var (
	localPacketsFramed    uint64
	localChecksumFailures uint64
	localResyncs          uint64
	localReconnects       uint64
	localKeepaliveMisses  uint64
	localPredictions      uint64
	localSeizures         uint64
	localTherapyStarts    uint64
	localTherapyStops     uint64
	localCSVRotations     uint64
	localErrors           uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	PacketsFramed    uint64
	ChecksumFailures uint64
	Resyncs          uint64
	Reconnects       uint64
	KeepaliveMisses  uint64
	Predictions      uint64
	Seizures         uint64
	TherapyStarts    uint64
	TherapyStops     uint64
	CSVRotations     uint64
	Errors           uint64
}

func Snap() Snapshot {
	return Snapshot{
		PacketsFramed:    atomic.LoadUint64(&localPacketsFramed),
		ChecksumFailures: atomic.LoadUint64(&localChecksumFailures),
		Resyncs:          atomic.LoadUint64(&localResyncs),
		Reconnects:       atomic.LoadUint64(&localReconnects),
		KeepaliveMisses:  atomic.LoadUint64(&localKeepaliveMisses),
		Predictions:      atomic.LoadUint64(&localPredictions),
		Seizures:         atomic.LoadUint64(&localSeizures),
		TherapyStarts:    atomic.LoadUint64(&localTherapyStarts),
		TherapyStops:     atomic.LoadUint64(&localTherapyStops),
		CSVRotations:     atomic.LoadUint64(&localCSVRotations),
		Errors:           atomic.LoadUint64(&localErrors),
	}
}

func IncPacketsFramed() {
	PacketsFramed.Inc()
	atomic.AddUint64(&localPacketsFramed, 1)
}

func IncChecksumFailure() {
	ChecksumFailures.Inc()
	atomic.AddUint64(&localChecksumFailures, 1)
}

func IncFramingResync() {
	FramingResyncs.Inc()
	atomic.AddUint64(&localResyncs, 1)
}

func IncReconnectAttempt() {
	ReconnectAttempts.Inc()
	atomic.AddUint64(&localReconnects, 1)
}

func IncCommandSent(opcode string) {
	CommandsSent.WithLabelValues(opcode).Inc()
}

func IncKeepaliveMiss() {
	KeepaliveMisses.Inc()
	atomic.AddUint64(&localKeepaliveMisses, 1)
}

func IncClassifierPrediction() {
	ClassifierPredictions.Inc()
	atomic.AddUint64(&localPredictions, 1)
}

func IncSeizureDetected() {
	SeizuresDetected.Inc()
	atomic.AddUint64(&localSeizures, 1)
}

func IncTherapyStart() {
	TherapyStarts.Inc()
	atomic.AddUint64(&localTherapyStarts, 1)
}

func IncTherapyStop() {
	TherapyStops.Inc()
	atomic.AddUint64(&localTherapyStops, 1)
}

func IncCSVRotation() {
	CSVRotations.Inc()
	atomic.AddUint64(&localCSVRotations, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func SetQueueDepth(queue string, depth int) {
	QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

func IncQueueDrop(queue string) {
	QueueDrops.WithLabelValues(queue).Inc()
}
