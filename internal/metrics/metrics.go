package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var stageBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Pipeline counts deployment pipeline outcomes and stage latencies.
type Pipeline struct {
	outcomes      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewPipeline registers pipeline collectors with the given registerer.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "launchdeck",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Count of pipeline runs by terminal outcome",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "launchdeck",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Latency distribution of pipeline stages",
			Buckets:   stageBuckets,
		}, []string{"stage"}),
	}
	reg.MustRegister(p.outcomes, p.stageDuration)
	return p
}

// RecordOutcome increments the terminal outcome counter. Nil-safe.
func (p *Pipeline) RecordOutcome(outcome string) {
	if p == nil {
		return
	}
	p.outcomes.WithLabelValues(outcome).Inc()
}

// RecordStage observes one stage's duration. Nil-safe.
func (p *Pipeline) RecordStage(stage string, duration time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}
