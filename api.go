package lemi423

import (
	"context"
	"io"
	"log/slog"

	base "github.com/bvkay/LEMI-423-Reader/pkg/lemi423"
)

// Re-exported errors for convenience.
var ErrChannelSinkClosed = base.ErrChannelSinkClosed

// Type aliases so consumers can import github.com/bvkay/LEMI-423-Reader directly.
type (
	Config           = base.Config
	Policy           = base.Policy
	BatchConfig      = base.BatchConfig
	OutputConfig     = base.OutputConfig
	TimescaleConfig  = base.TimescaleConfig
	NATSConfig       = base.NATSConfig
	MetricsConfig    = base.MetricsConfig
	JournalConfig    = base.JournalConfig
	Processor        = base.Processor
	Option           = base.Option
	FileHeader       = base.FileHeader
	Coefficients     = base.Coefficients
	SampleRecord     = base.SampleRecord
	CalibratedSample = base.CalibratedSample
	CoilResponse     = base.CoilResponse
	Dipole           = base.Dipole
	ProcessingJob    = base.ProcessingJob
	FileResult       = base.FileResult
	Outcome          = base.Outcome
	Report           = base.Report
	SiteSummary      = base.SiteSummary
	ErrorKind        = base.ErrorKind
	ResultHandler    = base.ResultHandler
	Sink             = base.Sink
	Observability    = base.Observability
	Journal          = base.Journal
	Notifier         = base.Notifier
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Processor and options.
func Open(path string, opts ...Option) (*Processor, error) {
	return base.Open(path, opts...)
}

func NewProcessor(cfg *Config, opts ...Option) (*Processor, error) {
	return base.NewProcessor(cfg, opts...)
}

func WithSink(s Sink) Option {
	return base.WithSink(s)
}

func WithObservability(obs Observability) Option {
	return base.WithObservability(obs)
}

func WithJournal(j Journal) Option {
	return base.WithJournal(j)
}

func WithNotifier(n Notifier) Option {
	return base.WithNotifier(n)
}

func WithLogger(l *slog.Logger) Option {
	return base.WithLogger(l)
}

// Sink adapters.
func NewCallbackSink(name string, fn ResultHandler) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan *FileResult, func()) {
	return base.NewChannelSink(name, buffer)
}

// Decoding and calibration.
func ReadFile(path string) (FileHeader, []SampleRecord, error) {
	return base.ReadFile(path)
}

func Calibrate(recs []SampleRecord, c Coefficients, d Dipole) ([]CalibratedSample, error) {
	return base.Calibrate(recs, c, d)
}

func ParseCoilResponse(r io.Reader, source string) (*CoilResponse, error) {
	return base.ParseCoilResponse(r, source)
}

func LoadMetadata(path, baseDir string) ([]ProcessingJob, error) {
	return base.LoadMetadata(path, baseDir)
}

// Run is a shortcut for Open + Run + Close.
func Run(ctx context.Context, configPath string, opts ...Option) (*Report, error) {
	p, err := base.Open(configPath, opts...)
	if err != nil {
		return nil, err
	}
	defer p.Close(context.Background())
	return p.Run(ctx)
}
