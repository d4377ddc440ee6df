package pipeline

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports per-stage throughput. Nothing reads them back into the
// computation.
type Metrics struct {
	Samples  *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Errors   *prometheus.CounterVec
}

// NewMetrics creates the pipeline metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spatialvote",
			Name:      "stage_samples_total",
			Help:      "Samples processed per pipeline stage",
		}, []string{"stage"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spatialvote",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of one batch per pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"stage"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spatialvote",
			Name:      "sample_errors_total",
			Help:      "Samples rejected per pipeline stage",
		}, []string{"stage"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Samples, m.Duration, m.Errors} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register pipeline metrics")
		}
	}
	return m, nil
}

func (m *Metrics) observe(s Stats) {
	if m == nil {
		return
	}
	m.Samples.WithLabelValues(string(s.Stage)).Add(float64(s.Samples))
	m.Duration.WithLabelValues(string(s.Stage)).Observe(s.Elapsed.Seconds())
}

func (m *Metrics) reject(stage Stage) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(string(stage)).Inc()
}

// Stage names one step of the pipeline.
type Stage string

const (
	StageEncode   Stage = "encode"
	StageExpand   Stage = "expand"
	StageClassify Stage = "classify"
	StageRun      Stage = "run"
)

// Stats is the timing of one stage over one batch.
type Stats struct {
	Stage   Stage
	Samples int
	Elapsed time.Duration
}

// Throughput returns samples per second, 0 when nothing was timed.
func (s Stats) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Samples) / s.Elapsed.Seconds()
}
