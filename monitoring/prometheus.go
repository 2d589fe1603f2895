package monitoring

import (
	"github.com/osmike/cadence/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Prometheus implements domain.Monitoring and exposes executions as Prometheus metrics.
//
// Series are labelled by manager and kind rather than by timer ID, so that
// short-lived work items do not grow the number of series without bound.
type Prometheus struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lastRun    *prometheus.GaugeVec
}

// NewPrometheus creates the collectors and registers them with reg.
//
// Parameters:
//   - reg: Registerer to use. prometheus.DefaultRegisterer is used when nil.
//
// Returns:
//   - The monitoring, or every registration error combined.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cadence",
				Name:      "executions_total",
				Help:      "Total number of finished executions by outcome",
			},
			[]string{"manager", "kind", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cadence",
				Name:      "execution_duration_seconds",
				Help:      "Execution duration of listeners and work",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"manager", "kind"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "cadence",
				Name:      "last_execution_timestamp_seconds",
				Help:      "Unix time of the last finished execution",
			},
			[]string{"manager", "kind"},
		),
	}

	var err error
	for _, c := range []prometheus.Collector{p.executions, p.duration, p.lastRun} {
		err = multierr.Append(err, reg.Register(c))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SaveMetrics records dto. Rejected work has no duration and is only counted.
func (p *Prometheus) SaveMetrics(dto domain.StateDTO) {
	p.executions.WithLabelValues(dto.Manager, dto.Kind, string(dto.Status)).Inc()
	if dto.StartAt.IsZero() {
		return
	}
	p.duration.WithLabelValues(dto.Manager, dto.Kind).Observe(float64(dto.ExecutionTime) / 1e9)
	p.lastRun.WithLabelValues(dto.Manager, dto.Kind).Set(float64(dto.EndAt.UnixNano()) / 1e9)
}
