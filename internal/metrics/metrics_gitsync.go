package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	gitCloneFailed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driversync_git_clone_failed_total",
			Help: "Total number of failed driver repository clones",
		},
		[]string{"repo"},
	)

	gitCloneCount = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "driversync_git_clone_count_total",
			Help: "Total number of driver repository clones",
		},
	)

	gitCloneDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driversync_git_clone_duration_seconds",
			Help:    "Driver repository clone duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.5, 1, 1.5, 2, 5, 10, 30, 60},
		},
		[]string{"repo"},
	)

	lastGitCloneEnd = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "driversync_last_git_clone_end_timestamp",
			Help: "Unix timestamp of when the last clone ended",
		},
		[]string{"repo"},
	)
)

func GitCloneFailed(repo string) {
	gitCloneCount.Inc()
	gitCloneFailed.WithLabelValues(repo).Inc()
}

func GitCloneSucceeded(repo string, start time.Time) {
	now := time.Now()
	gitCloneCount.Inc()
	gitCloneDuration.WithLabelValues(repo).Observe(now.Sub(start).Seconds())
	lastGitCloneEnd.WithLabelValues(repo).Set(float64(now.Unix()))
}
