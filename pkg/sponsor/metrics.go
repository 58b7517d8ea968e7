package sponsor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var submissionsCounterVec = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sponsor_submissions_total",
		Help: "Sponsored submissions by outcome",
	},
	[]string{"outcome"},
)

var stepTimeHistogramVec = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "sponsor_step_duration_seconds",
		Help:    "Time spent in every step of a sponsored submission",
		Buckets: []float64{0.005, 0.05, 0.2, 0.5, 1, 2, 5, 15, 60, 400},
	},
	[]string{"step"},
)

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "unknown"
}
