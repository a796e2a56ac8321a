package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dirsweep/internal/fsops"
)

// Filesystem primitive metrics
var (
	// FSOpsTotal counts primitive calls by operation
	FSOpsTotal *prometheus.CounterVec

	// FSOpErrorsTotal counts failed primitive calls by operation and error kind
	FSOpErrorsTotal *prometheus.CounterVec

	// FSOpDuration tracks latency of primitive calls
	FSOpDuration *prometheus.HistogramVec

	// FSInFlight tracks primitive calls currently running
	FSInFlight prometheus.Gauge

	// DirsRemovedTotal counts directories removed
	DirsRemovedTotal prometheus.Counter
)

func initFSMetrics() {
	FSOpsTotal = NewCounterVec(
		"dirsweep_fs_ops_total",
		"Filesystem primitive calls by operation.",
		[]string{"op"},
	)

	FSOpErrorsTotal = NewCounterVec(
		"dirsweep_fs_op_errors_total",
		"Failed filesystem primitive calls by operation and error kind.",
		[]string{"op", "kind"},
	)

	FSOpDuration = NewOpHistogramVec(
		"dirsweep_fs_op_duration_seconds",
		"Latency of filesystem primitive calls in seconds.",
		[]string{"op"},
	)

	FSInFlight = NewGauge(
		"dirsweep_fs_in_flight",
		"Filesystem primitive calls currently in flight.",
	)

	DirsRemovedTotal = NewCounter(
		"dirsweep_dirs_removed_total",
		"Total number of directories removed by dirsweep.",
	)
}

func registerFSMetrics() {
	prometheus.MustRegister(FSOpsTotal)
	prometheus.MustRegister(FSOpErrorsTotal)
	prometheus.MustRegister(FSOpDuration)
	prometheus.MustRegister(FSInFlight)
	prometheus.MustRegister(DirsRemovedTotal)
}

// instrumentedFS records metrics around every primitive call
type instrumentedFS struct {
	inner fsops.FS
}

// InstrumentFS wraps fsys so every primitive call is counted and timed.
// Init must have been called.
func InstrumentFS(fsys fsops.FS) fsops.FS {
	return &instrumentedFS{inner: fsys}
}

func observe(op string) func(error) {
	start := time.Now()
	FSInFlight.Inc()
	return func(err error) {
		FSInFlight.Dec()
		FSOpsTotal.WithLabelValues(op).Inc()
		FSOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			FSOpErrorsTotal.WithLabelValues(op, fsops.KindOf(err).String()).Inc()
		}
	}
}

func (m *instrumentedFS) Stat(ctx context.Context, name string) (fsops.Status, error) {
	done := observe("stat")
	st, err := m.inner.Stat(ctx, name)
	done(err)
	return st, err
}

func (m *instrumentedFS) Lstat(ctx context.Context, name string) (fsops.Status, error) {
	done := observe("lstat")
	st, err := m.inner.Lstat(ctx, name)
	done(err)
	return st, err
}

func (m *instrumentedFS) ReadDir(ctx context.Context, name string) ([]string, error) {
	done := observe("readdir")
	names, err := m.inner.ReadDir(ctx, name)
	done(err)
	return names, err
}

func (m *instrumentedFS) Unlink(ctx context.Context, name string) error {
	done := observe("unlink")
	err := m.inner.Unlink(ctx, name)
	done(err)
	return err
}

func (m *instrumentedFS) Rmdir(ctx context.Context, name string) error {
	done := observe("rmdir")
	err := m.inner.Rmdir(ctx, name)
	done(err)
	if err == nil {
		DirsRemovedTotal.Inc()
	}
	return err
}
