package checkpoint

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/statecodec/pkg/codec"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds the Prometheus metrics of the checkpoint store
type Metrics struct {
	savesTotal        *prometheus.CounterVec
	restoresTotal     *prometheus.CounterVec
	recordsTotal      prometheus.Counter
	operationDuration *prometheus.HistogramVec
}

// NewMetrics creates the checkpoint metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		savesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statecodec_checkpoint_saves_total",
				Help: "Total number of checkpoint saves",
			},
			[]string{"status"},
		),

		restoresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statecodec_restores_total",
				Help: "Total number of checkpoint restores by compatibility verdict",
			},
			[]string{"verdict"},
		),

		recordsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "statecodec_checkpoint_records_total",
				Help: "Total number of records written to checkpoints",
			},
		),

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statecodec_operation_duration_seconds",
				Help:    "Checkpoint store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSave records a checkpoint save
func (m *Metrics) RecordSave(success bool, records int, duration time.Duration) {
	if m == nil {
		return
	}
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.savesTotal.WithLabelValues(status).Inc()
	if success {
		m.recordsTotal.Add(float64(records))
	}
	m.operationDuration.WithLabelValues("save").Observe(duration.Seconds())
}

// RecordRestore records a restore and the verdict it reached
func (m *Metrics) RecordRestore(verdict codec.Verdict, duration time.Duration) {
	if m == nil {
		return
	}
	m.restoresTotal.WithLabelValues(verdict.String()).Inc()
	m.operationDuration.WithLabelValues("restore").Observe(duration.Seconds())
}

// RecordRestoreError records a restore that failed before reaching a verdict
func (m *Metrics) RecordRestoreError(duration time.Duration) {
	if m == nil {
		return
	}
	m.restoresTotal.WithLabelValues(statusError).Inc()
	m.operationDuration.WithLabelValues("restore").Observe(duration.Seconds())
}

// RecordOperation records the duration of any other store operation
func (m *Metrics) RecordOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
