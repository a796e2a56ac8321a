package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sweep subsystem metrics
var (
	// SweepDuration tracks how long a full sweep over all targets takes
	SweepDuration prometheus.Histogram

	// FilesDeletedTotal tracks total files removed across all sweeps
	FilesDeletedTotal prometheus.Counter

	// TargetFilesDeletedTotal tracks files removed per configured target
	TargetFilesDeletedTotal *prometheus.CounterVec

	// TargetsTotal counts processed targets by outcome (ok, error, skipped)
	TargetsTotal *prometheus.CounterVec

	// SweepLastRunTimestamp records Unix timestamp of the last sweep
	SweepLastRunTimestamp prometheus.Gauge

	// ErrorsTotal tracks total errors encountered by the daemon
	ErrorsTotal prometheus.Counter
)

func initSweepMetrics() {
	SweepDuration = NewDurationHistogram(
		"dirsweep_sweep_duration_seconds",
		"Duration of sweep cycles in seconds.",
	)

	FilesDeletedTotal = NewCounter(
		"dirsweep_files_deleted_total",
		"Total number of files deleted by dirsweep.",
	)

	TargetFilesDeletedTotal = NewCounterVec(
		"dirsweep_target_files_deleted_total",
		"Total number of files deleted per target.",
		[]string{"target"},
	)

	TargetsTotal = NewCounterVec(
		"dirsweep_targets_total",
		"Targets processed by outcome.",
		[]string{"outcome"},
	)

	SweepLastRunTimestamp = NewGauge(
		"dirsweep_sweep_last_run_timestamp",
		"Timestamp of the last sweep (Unix epoch seconds).",
	)

	ErrorsTotal = NewCounter(
		"dirsweep_daemon_errors_total",
		"Total number of errors encountered by dirsweep.",
	)
}

func registerSweepMetrics() {
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(TargetFilesDeletedTotal)
	prometheus.MustRegister(TargetsTotal)
	prometheus.MustRegister(SweepLastRunTimestamp)
	prometheus.MustRegister(ErrorsTotal)
}

// RecordSweepRun updates the last run timestamp to current time
func RecordSweepRun() {
	SweepLastRunTimestamp.Set(float64(time.Now().Unix()))
}

// RecordTarget records the outcome of one target and the files it removed
func RecordTarget(target, outcome string, files int) {
	TargetsTotal.WithLabelValues(outcome).Inc()
	if files > 0 {
		FilesDeletedTotal.Add(float64(files))
		TargetFilesDeletedTotal.WithLabelValues(target).Add(float64(files))
	}
}
