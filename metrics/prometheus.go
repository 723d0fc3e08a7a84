package metrics

import (
	"errors"
	"time"

	"cloudbox/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics counts and times façade operations. A nil *EngineMetrics is
// valid and records nothing.
type EngineMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	uploadedBytes     prometheus.Counter
}

// NewEngineMetrics registers the collectors on reg.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	return &EngineMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cloudbox_operations_total",
				Help: "Total number of engine operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cloudbox_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		uploadedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cloudbox_uploaded_bytes_total",
				Help: "Total bytes accepted through uploads",
			},
		),
	}
}

// Observe records one finished operation.
func (m *EngineMetrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, Outcome(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *EngineMetrics) AddUploadedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.uploadedBytes.Add(float64(n))
}

// Outcome maps an error onto a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, models.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, models.ErrUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}
