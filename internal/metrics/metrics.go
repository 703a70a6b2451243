// Package metrics holds the counters of a run. They are registered on a
// dedicated registry so that a run can export them in the node-exporter
// textfile format without the Go runtime collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Registry = prometheus.NewRegistry()
	factory  = promauto.With(Registry)
)

// WriteTextfile writes all metrics to path in the textfile collector format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
