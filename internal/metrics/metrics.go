// Package metrics records one run's conversion statistics in a Prometheus
// registry. A run-once tool has no scrape endpoint, so the registry is
// written out in the node_exporter textfile format instead.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"jpegfit/internal/batch"
	"jpegfit/internal/convert"
)

const namespace = "jpegfit"

type Recorder struct {
	registry *prometheus.Registry

	files      *prometheus.CounterVec
	quality    prometheus.Histogram
	bytesIn    prometheus.Counter
	bytesOut   prometheus.Counter
	overBudget prometheus.Counter
	duration   prometheus.Gauge
	lastRun    prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Input files handled, by terminal action (copied, encoded, failed).",
		}, []string{"action"}),
		quality: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "jpeg_quality",
			Help:      "JPEG quality chosen for re-encoded files.",
			Buckets:   []float64{1, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_bytes_total",
			Help:      "Bytes read from input files.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Bytes written to the session folder.",
		}),
		overBudget: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "over_budget_total",
			Help:      "Files written at minimum quality that still exceed the size budget.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	r.registry.MustRegister(r.files, r.quality, r.bytesIn, r.bytesOut, r.overBudget, r.duration, r.lastRun)
	return r
}

// Observe adds the results of a finished batch.
func (r *Recorder) Observe(results []batch.Result, elapsed time.Duration, finished time.Time) {
	for _, res := range results {
		r.bytesIn.Add(float64(res.Outcome.InputSize))
		if res.Err != nil {
			r.files.WithLabelValues("failed").Inc()
			continue
		}
		r.files.WithLabelValues(res.Outcome.Action.String()).Inc()
		r.bytesOut.Add(float64(res.Outcome.OutputSize))
		if res.Outcome.Action == convert.ActionEncoded {
			r.quality.Observe(float64(res.Outcome.Plan.Quality))
			if !res.Outcome.Plan.BudgetMet {
				r.overBudget.Inc()
			}
		}
	}
	r.duration.Set(elapsed.Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
