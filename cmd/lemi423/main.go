package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/bvkay/LEMI-423-Reader/internal/b423"
	"github.com/bvkay/LEMI-423-Reader/internal/domain"
	"github.com/bvkay/LEMI-423-Reader/pkg/lemi423"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "inspect":
		err = inspectCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "lemi423 %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

// batchFlags are shared by run and validate. Flags set on the command line
// override the config file.
type batchFlags struct {
	fs         *flag.FlagSet
	config     string
	metadata   string
	baseDir    string
	workers    int
	csvDir     string
	resume     bool
	journalDir string
	metrics    string
	logFormat  string
	logLevel   string
}

func newBatchFlags(name string) *batchFlags {
	b := &batchFlags{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	b.fs.StringVar(&b.config, "config", "", "Path to YAML configuration file")
	b.fs.StringVar(&b.metadata, "metadata", "", "Metadata table (CSV)")
	b.fs.StringVar(&b.baseDir, "base-dir", "", "Directory holding the site folders (default: the table's directory)")
	b.fs.IntVar(&b.workers, "workers", lemi423.DefaultWorkers(), "Number of files processed in parallel")
	b.fs.StringVar(&b.csvDir, "csv-dir", "", "Write one CSV per file into this directory")
	b.fs.BoolVar(&b.resume, "resume", false, "Skip files a previous run already processed")
	b.fs.StringVar(&b.journalDir, "journal-dir", "", "Directory for the run journal")
	b.fs.StringVar(&b.metrics, "metrics-addr", "", "Serve /metrics and /healthz on this address")
	b.fs.StringVar(&b.logFormat, "log-format", "text", "Log format: text or json")
	b.fs.StringVar(&b.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	return b
}

// load builds the finalized config from the file (if any) and the flags.
func (b *batchFlags) load() (*lemi423.Config, error) {
	cfg := &lemi423.Config{}
	if b.config != "" {
		loaded, err := lemi423.LoadConfig(b.config)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	b.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "metadata":
			cfg.Batch.Metadata = b.metadata
		case "base-dir":
			cfg.Batch.BaseDir = b.baseDir
		case "workers":
			w := b.workers
			cfg.Batch.Workers = &w
		case "csv-dir":
			cfg.Output.CSVDir = b.csvDir
		case "resume":
			cfg.Batch.Resume = b.resume
		case "journal-dir":
			cfg.Journal.Dir = b.journalDir
		case "metrics-addr":
			cfg.Metrics.Addr = b.metrics
		}
	})

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCommand(args []string) error {
	b := newBatchFlags("run")
	if err := b.fs.Parse(args); err != nil {
		return err
	}
	logger, err := newLogger(b.logFormat, b.logLevel)
	if err != nil {
		return err
	}
	cfg, err := b.load()
	if err != nil {
		return err
	}

	p, err := lemi423.NewProcessor(cfg, lemi423.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Close(ctx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := p.Run(ctx)
	if report == nil {
		return err
	}
	printReport(report)
	if err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("%d of %d files did not complete", report.Failed+report.Cancelled, len(report.Outcomes))
	}
	return nil
}

func validateCommand(args []string) error {
	b := newBatchFlags("validate")
	if err := b.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := b.load()
	if err != nil {
		return err
	}

	jobs, err := lemi423.LoadMetadata(cfg.Batch.Metadata, cfg.Batch.BaseDir)
	if err != nil {
		return err
	}

	var bad []error
	for _, j := range jobs {
		if j.Invalid != nil {
			bad = append(bad, fmt.Errorf("row %d %s: %w", j.Row, j.Path, j.Invalid))
		}
	}
	fmt.Printf("metadata %s: %d files, %d workers\n", cfg.Batch.Metadata, len(jobs), cfg.Policy().Workers)
	if len(bad) > 0 {
		return errors.Join(bad...)
	}
	fmt.Println("config looks good")
	return nil
}

func inspectCommand(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print the summary as JSON")
	headerOnly := fs.Bool("header", false, "Print only the header, without decoding records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one %s file", b423.Extension)
	}
	path := fs.Arg(0)

	if *headerOnly {
		h, err := b423.ReadHeader(path)
		if err != nil {
			return err
		}
		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(h)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		printHeader(w, path, h)
		return w.Flush()
	}

	h, recs, err := b423.ReadFile(path)
	if err != nil {
		return err
	}
	rate := b423.SampleRate(recs)
	summary := struct {
		Path            string                 `json:"path"`
		Header          domain.FileHeader      `json:"header"`
		Records         int                    `json:"records"`
		SampleRate      int                    `json:"sample_rate"`
		First           time.Time              `json:"first,omitempty"`
		Last            time.Time              `json:"last,omitempty"`
		Discontinuities []domain.Discontinuity `json:"discontinuities,omitempty"`
	}{
		Path:            path,
		Header:          h,
		Records:         len(recs),
		SampleRate:      rate,
		Discontinuities: b423.CheckContinuity(recs, rate),
	}
	if n := len(recs); n > 0 {
		summary.First = b423.SampleTime(recs[0].Second, recs[0].Index, rate)
		summary.Last = b423.SampleTime(recs[n-1].Second, recs[n-1].Index, rate)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	printHeader(w, path, h)
	fmt.Fprintf(w, "records\t%d\n", len(recs))
	fmt.Fprintf(w, "sample rate\t%d Hz\n", rate)
	if len(recs) > 0 {
		fmt.Fprintf(w, "span\t%s .. %s\n", summary.First.Format(time.RFC3339Nano), summary.Last.Format(time.RFC3339Nano))
	}
	fmt.Fprintf(w, "discontinuities\t%d\n", len(summary.Discontinuities))
	for _, d := range summary.Discontinuities {
		fmt.Fprintf(w, "  %s\tat record %d (second %d index %d, missing %d)\n", d.Kind, d.Position, d.Second, d.Index, d.Missing)
	}
	return w.Flush()
}

func printHeader(w io.Writer, path string, h domain.FileHeader) {
	fmt.Fprintf(w, "file\t%s\n", path)
	fmt.Fprintf(w, "serial\t%s\n", h.Serial)
	fmt.Fprintf(w, "firmware\t%s\n", h.Firmware)
	fmt.Fprintf(w, "start\t%s\n", h.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "position\t%.6f, %.6f, %.1f m\n", h.Latitude, h.Longitude, h.Altitude)
	for ch, c := range h.Coefficients {
		fmt.Fprintf(w, "%s\tk=%g a=%g\n", domain.Channel(ch), c.K, c.A)
	}
}

func printReport(r *lemi423.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tSTATUS\tSAMPLES\tFILE\tDETAIL")
	for _, o := range r.Outcomes {
		detail := o.Message
		if o.Kind != "" {
			detail = string(o.Kind) + ": " + detail
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", o.Row, o.Status, o.SampleCount, o.Path, detail)
	}
	_ = w.Flush()

	if sites := r.Sites(); len(sites) > 0 {
		fmt.Println()
		printSites(os.Stdout, sites)
	}
	fmt.Printf("run %s: %d succeeded, %d failed, %d skipped, %d cancelled\n",
		r.RunID, r.Succeeded, r.Failed, r.Skipped, r.Cancelled)
}

func printSites(out io.Writer, sites []lemi423.SiteSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SITE\tSERIAL\tLAT\tLON\tALT\tSTART\tFINISH\tRATE\tEX DIPOLE\tEX AZ\tEY DIPOLE\tEY AZ\tFILES")
	for _, s := range sites {
		fmt.Fprintf(w, "%s\t%s\t%.6f\t%.6f\t%.1f\t%s\t%s\t%d\t%g\t%g\t%g\t%g\t%d\n",
			s.Site, s.Serial, s.Latitude, s.Longitude, s.Altitude,
			s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339), s.SampleRate,
			s.Dipole.Ex, s.Azimuth.Ex, s.Dipole.Ey, s.Azimuth.Ey, s.Files)
	}
	_ = w.Flush()
}

func newLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func printUsage() {
	fmt.Printf(`LEMI-423 batch reader

Usage:
  lemi423 <command> [flags]

Commands:
  run        Decode and calibrate every file named by the metadata table
  validate   Load the config and metadata table without processing anything
  inspect    Print the header, sample rate and continuity of one B423 file

Examples:
  lemi423 run -metadata ./sites.csv -csv-dir ./out -workers 4
  lemi423 run -config ./data/config.yaml -resume
  lemi423 validate -config ./data/config.yaml
  lemi423 inspect -json ./KAP03/1710498030.B423
`)
}
