// Package metrics publishes the outcome of a run for the node_exporter
// textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rebootctl/api/schemas"
)

const namespace = "rebootctl"

var failureKinds = []schemas.ErrorKind{
	schemas.ErrKindConfiguration,
	schemas.ErrKindNavigation,
	schemas.ErrKindElementNotFound,
	schemas.ErrKindAuthentication,
	schemas.ErrKindConfirmationTimeout,
}

// Recorder holds the last-run gauges. Each run gets a fresh registry, so the
// written file only ever describes one run.
type Recorder struct {
	registry *prometheus.Registry
	path     string
	logger   *zap.Logger

	success   prometheus.Gauge
	timestamp prometheus.Gauge
	duration  prometheus.Gauge
	failure   *prometheus.GaugeVec
	artifacts prometheus.Gauge
}

// NewRecorder creates a Recorder writing to path. An empty path disables
// writing; the gauges are still updated.
func NewRecorder(path string, logger *zap.Logger) (*Recorder, error) {
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("failed to expand metrics path %q: %w", path, err)
		}
		path = expanded
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		path:     path,
		logger:   logger.Named("metrics"),
		success: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last reboot run succeeded, 0 otherwise.",
		}),
		timestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last reboot run started.",
		}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last reboot run.",
		}),
		failure: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_failure",
			Help:      "1 for the failure kind of the last run, 0 for the others.",
		}, []string{"kind"}),
		artifacts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_artifacts_written",
			Help:      "Number of diagnostic artifacts written by the last run.",
		}),
	}, nil
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe sets the gauges from result.
func (r *Recorder) Observe(result *schemas.RunResult) {
	if result.Succeeded() {
		r.success.Set(1)
	} else {
		r.success.Set(0)
	}
	r.timestamp.Set(float64(result.StartedAt.Unix()))
	r.duration.Set(result.Duration.Seconds())

	for _, kind := range failureKinds {
		v := 0.0
		if !result.Succeeded() && result.FailureKind == kind {
			v = 1
		}
		r.failure.WithLabelValues(string(kind)).Set(v)
	}

	written := 0
	if a := result.Artifacts; a != nil {
		if a.ScreenshotPath != "" {
			written++
		}
		if a.PageSourcePath != "" {
			written++
		}
	}
	r.artifacts.Set(float64(written))
}

// Flush writes the gauges to the textfile, atomically. It is a no-op without a path.
func (r *Recorder) Flush() error {
	if r.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	r.logger.Debug("Metrics written.", zap.String("path", r.path))
	return nil
}

// Record is Observe followed by Flush.
func (r *Recorder) Record(result *schemas.RunResult) error {
	r.Observe(result)
	return r.Flush()
}
