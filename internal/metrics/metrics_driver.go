package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	driverInstalled = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driversync_driver_installed_total",
			Help: "Number of drivers installed, by layout and action",
		},
		[]string{"layout", "action"},
	)

	driverFilesCopied = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "driversync_driver_files_copied_total",
			Help: "Number of files copied into the project",
		},
	)

	driverNotFound = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "driversync_driver_not_found_total",
			Help: "Number of requested drivers missing from the repository",
		},
	)

	cleanupFailed = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "driversync_cleanup_failed_total",
			Help: "Number of times the cloned repository could not be removed",
		},
	)
)

func DriverInstalled(layout, action string, files int) {
	driverInstalled.WithLabelValues(layout, action).Inc()
	driverFilesCopied.Add(float64(files))
}

func DriverNotFound() {
	driverNotFound.Inc()
}

func CleanupFailed() {
	cleanupFailed.Inc()
}
