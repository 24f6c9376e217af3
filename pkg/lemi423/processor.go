package lemi423

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bvkay/LEMI-423-Reader/internal/adapters/journal"
	"github.com/bvkay/LEMI-423-Reader/internal/adapters/metadata"
	"github.com/bvkay/LEMI-423-Reader/internal/adapters/notify"
	"github.com/bvkay/LEMI-423-Reader/internal/adapters/observability"
	"github.com/bvkay/LEMI-423-Reader/internal/adapters/sink"
	"github.com/bvkay/LEMI-423-Reader/internal/app/pipeline"
	"github.com/bvkay/LEMI-423-Reader/internal/ports"
)

// Option customizes the dependencies used by Processor.
type Option func(*overrides)

type overrides struct {
	sinks         []Sink
	observability Observability
	journal       Journal
	notifier      Notifier
	logger        *slog.Logger
}

// WithSink adds a sink next to the ones enabled in Config.
func WithSink(s Sink) Option {
	return func(o *overrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithObservability replaces the Prometheus backend.
func WithObservability(obs Observability) Option {
	return func(o *overrides) {
		o.observability = obs
	}
}

// WithJournal replaces the file journal configured by journal.dir.
func WithJournal(j Journal) Option {
	return func(o *overrides) {
		o.journal = j
	}
}

// WithNotifier replaces the NATS notifier configured by nats.url.
func WithNotifier(n Notifier) Option {
	return func(o *overrides) {
		o.notifier = n
	}
}

// WithLogger sets the logger used by the default observability backend and
// the metrics server. slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *overrides) {
		o.logger = l
	}
}

// Processor wires metadata → worker pool → sinks and owns the resources
// (database, NATS connection, journal, metrics server) behind them.
type Processor struct {
	cfg          *Config
	logger       *slog.Logger
	orchestrator *pipeline.Orchestrator
	db           *sql.DB
	nc           *nats.Conn
	journal      Journal
	ownJournal   bool
	metricsSrv   *http.Server
}

// Open loads the YAML config at path and builds a Processor.
func Open(path string, opts ...Option) (*Processor, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewProcessor(cfg, opts...)
}

// NewProcessor bootstraps the adapters enabled in cfg (CSV, TimescaleDB,
// journal, NATS, Prometheus). Options add sinks or swap any backend.
func NewProcessor(cfg *Config, opts ...Option) (_ *Processor, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	var ov overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}

	p := &Processor{cfg: cfg, logger: ov.logger}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	defer func() {
		if err != nil {
			_ = p.Close(context.Background())
		}
	}()

	obs := ov.observability
	if obs == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		obs = observability.NewPromObs(reg, p.logger)
		if cfg.Metrics.Addr != "" {
			p.startMetrics(reg)
		}
	}

	var sinks []ports.Sink
	if cfg.Output.CSVDir != "" {
		csvSink, err := sink.NewCSVSink(cfg.Output.CSVDir)
		if err != nil {
			return nil, fmt.Errorf("csv sink: %w", err)
		}
		sinks = append(sinks, csvSink)
	}
	if cfg.Timescale.ConnString != "" {
		p.db, err = sql.Open("postgres", cfg.Timescale.ConnString)
		if err != nil {
			return nil, fmt.Errorf("timescale: %w", err)
		}
		sinks = append(sinks, sink.NewTimescaleSink(p.db, cfg.Timescale.Table).WithBatchRows(cfg.Timescale.BatchRows))
	}
	sinks = append(sinks, ov.sinks...)

	p.journal = ov.journal
	if p.journal == nil && cfg.Journal.Dir != "" {
		if p.journal, err = journal.NewFileJournal(cfg.Journal.Dir); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		p.ownJournal = true
	}

	notifier := ov.notifier
	if notifier == nil && cfg.NATS.URL != "" {
		if p.nc, err = notify.Connect(cfg.NATS.URL); err != nil {
			return nil, err
		}
		notifier = notify.NewNATSNotifier(p.nc, cfg.NATS.Subject)
	}

	p.orchestrator = &pipeline.Orchestrator{
		Policy:    cfg.Policy(),
		Sinks:     sinks,
		Obs:       obs,
		Journal:   p.journal,
		Notifier:  notifier,
		Responses: pipeline.NewResponseCache(),
	}
	return p, nil
}

// Config returns the finalized configuration.
func (p *Processor) Config() *Config { return p.cfg }

// Jobs expands the configured metadata table.
func (p *Processor) Jobs() ([]ProcessingJob, error) {
	return metadata.Load(p.cfg.Batch.Metadata, p.cfg.Batch.BaseDir)
}

// Run loads the metadata table and processes every file it names. The
// report is returned even when ctx is cancelled part way.
func (p *Processor) Run(ctx context.Context) (*Report, error) {
	jobs, err := p.Jobs()
	if err != nil {
		return nil, err
	}
	return p.RunJobs(ctx, jobs)
}

// RunJobs processes caller-built jobs with the configured adapters.
func (p *Processor) RunJobs(ctx context.Context, jobs []ProcessingJob) (*Report, error) {
	return p.orchestrator.Run(ctx, jobs)
}

// Close stops the metrics server and releases the database, NATS connection
// and journal.
func (p *Processor) Close(ctx context.Context) error {
	var errs []error

	if p.metricsSrv != nil {
		if err := p.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.ownJournal && p.journal != nil {
		if err := p.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) startMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	p.metricsSrv = &http.Server{
		Addr:              p.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := p.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("metrics server exited", "error", err)
		}
	}()
}
