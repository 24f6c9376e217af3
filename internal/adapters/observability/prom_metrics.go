package observability

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
	"github.com/bvkay/LEMI-423-Reader/internal/ports"
)

// Metric names used by the orchestrator.
const (
	FilesSucceeded    = "lemi_files_succeeded_total"
	FilesFailed       = "lemi_files_failed_total"
	FilesSkipped      = "lemi_files_skipped_total"
	SamplesCalibrated = "lemi_samples_calibrated_total"
	JobsInFlight      = "lemi_jobs_in_flight"
	FileProcessTime   = "lemi_file_process_seconds"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	failures *prometheus.CounterVec
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the batch metrics on reg (the default registerer when
// nil) and logs through logger (discarded when nil).
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	succeeded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: FilesSucceeded,
		Help: "B423 files decoded and calibrated successfully.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: FilesFailed,
		Help: "B423 files that ended in a per-file failure.",
	})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: FilesSkipped,
		Help: "B423 files skipped because a previous run already processed them.",
	})
	samples := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SamplesCalibrated,
		Help: "Calibrated samples handed to sinks.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lemi_file_failures_total",
		Help: "Per-file failures by error kind.",
	}, []string{"kind"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: JobsInFlight,
		Help: "Jobs dispatched to workers and not yet collected.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    FileProcessTime,
		Help:    "Wall time to decode and calibrate one file.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	reg.MustRegister(succeeded, failed, skipped, samples, failures, inFlight, latency)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			FilesSucceeded:    succeeded,
			FilesFailed:       failed,
			FilesSkipped:      skipped,
			SamplesCalibrated: samples,
		},
		failures: failures,
		gauges: map[string]prometheus.Gauge{
			JobsInFlight: inFlight,
		},
		histos: map[string]prometheus.Observer{
			FileProcessTime: latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	args := attrs(fields)
	if err != nil {
		args = append(args, "error", err)
	}
	p.logger.Error(msg, args...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordFailure(o domain.Outcome) {
	p.failures.WithLabelValues(string(o.Kind)).Inc()
	p.logger.Warn("file failed",
		"row", o.Row,
		"path", o.Path,
		"kind", o.Kind,
		"error", o.Message,
	)
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
