package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	waitingDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_waiting_total",
			Help: "Current number of waiting entries per establishment",
		},
		[]string{"establishment_id"},
	)

	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total queue operations",
		},
		[]string{"operation", "establishment_id", "status"},
	)

	serviceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_service_duration_seconds",
			Help:    "Time between an entry being called and being served",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"establishment_id"},
	)
)

// Monitor is the engine's hook into Prometheus. The engine reports after
// each operation, so no background collection loop is needed.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// TrackQueueOperation counts one engine operation and its outcome.
func (m *Monitor) TrackQueueOperation(operation, establishmentID, status string) {
	queueOperations.WithLabelValues(operation, establishmentID, status).Inc()
}

// SetWaitingDepth records the current waiting-queue length.
func (m *Monitor) SetWaitingDepth(establishmentID string, depth int) {
	waitingDepth.WithLabelValues(establishmentID).Set(float64(depth))
}

// TrackServiceDuration records how long a client sat in called before being
// served.
func (m *Monitor) TrackServiceDuration(establishmentID string, duration time.Duration) {
	serviceDuration.WithLabelValues(establishmentID).Observe(duration.Seconds())
}
