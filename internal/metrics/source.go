// Package metrics provides Prometheus metrics for camera source elements.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	buffersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camsrc",
		Subsystem: "source",
		Name:      "buffers_total",
		Help:      "Buffers delivered by the pull loop",
	}, []string{"element"})

	bytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camsrc",
		Subsystem: "source",
		Name:      "bytes_total",
		Help:      "Payload bytes delivered by the pull loop",
	}, []string{"element"})

	shutdownsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camsrc",
		Subsystem: "source",
		Name:      "shutdown_pulls_total",
		Help:      "Pulls that returned because the element was shutting down",
	}, []string{"element"})

	negotiationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camsrc",
		Subsystem: "source",
		Name:      "negotiation_failures_total",
		Help:      "Failed format negotiations by reason",
	}, []string{"element", "reason"})

	frameDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camsrc",
		Subsystem: "source",
		Name:      "frame_duration_seconds",
		Help:      "Duration of one frame for the selected format",
	}, []string{"element"})

	pending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camsrc",
		Subsystem: "source",
		Name:      "queue_pending",
		Help:      "1 when the sample queue was non-empty after the last pull",
	}, []string{"element"})

	pullWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "camsrc",
		Subsystem: "source",
		Name:      "pull_wait_seconds",
		Help:      "Time a pull spent blocked waiting for a sample",
		Buckets:   []float64{.001, .005, .01, .02, .04, .08, .16, .5, 1},
	}, []string{"element"})

	snapshotMu sync.RWMutex
	snapshots  = make(map[string]*Snapshot)
)

// Snapshot is the last recorded value set for one element.
type Snapshot struct {
	Buffers       uint64
	Bytes         uint64
	Shutdowns     uint64
	FrameDuration time.Duration
	Pending       bool
}

// Handler serves the source collectors, with the Go runtime and process
// collectors, in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordBuffer counts one delivered buffer.
func RecordBuffer(element string, size int, waited time.Duration, stillPending bool) {
	buffersTotal.WithLabelValues(element).Inc()
	bytesTotal.WithLabelValues(element).Add(float64(size))
	pullWait.WithLabelValues(element).Observe(waited.Seconds())
	pendingValue := 0.0
	if stillPending {
		pendingValue = 1
	}
	pending.WithLabelValues(element).Set(pendingValue)

	update(element, func(s *Snapshot) {
		s.Buffers++
		s.Bytes += uint64(size)
		s.Pending = stillPending
	})
}

// RecordShutdown counts a pull that ended in shutdown.
func RecordShutdown(element string) {
	shutdownsTotal.WithLabelValues(element).Inc()
	update(element, func(s *Snapshot) { s.Shutdowns++ })
}

// RecordNegotiationFailure counts a failed negotiation.
func RecordNegotiationFailure(element, reason string) {
	negotiationFailures.WithLabelValues(element, reason).Inc()
}

// SetFrameDuration records the frame duration of the selected format.
func SetFrameDuration(element string, d time.Duration) {
	frameDuration.WithLabelValues(element).Set(d.Seconds())
	update(element, func(s *Snapshot) { s.FrameDuration = d })
}

// Get returns a copy of the element's snapshot, or nil if nothing was recorded.
func Get(element string) *Snapshot {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	if s, ok := snapshots[element]; ok {
		dup := *s
		return &dup
	}
	return nil
}

// Delete removes all metrics for an element.
func Delete(element string) {
	buffersTotal.DeleteLabelValues(element)
	bytesTotal.DeleteLabelValues(element)
	shutdownsTotal.DeleteLabelValues(element)
	negotiationFailures.DeletePartialMatch(prometheus.Labels{"element": element})
	frameDuration.DeleteLabelValues(element)
	pending.DeleteLabelValues(element)
	pullWait.DeleteLabelValues(element)

	snapshotMu.Lock()
	delete(snapshots, element)
	snapshotMu.Unlock()
}

func update(element string, fn func(*Snapshot)) {
	snapshotMu.Lock()
	defer snapshotMu.Unlock()
	s, ok := snapshots[element]
	if !ok {
		s = &Snapshot{}
		snapshots[element] = s
	}
	fn(s)
}
