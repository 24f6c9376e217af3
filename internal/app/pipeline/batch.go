package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
	"github.com/bvkay/LEMI-423-Reader/internal/ports"
)

const (
	metricSucceeded = "lemi_files_succeeded_total"
	metricFailed    = "lemi_files_failed_total"
	metricSkipped   = "lemi_files_skipped_total"
	metricSamples   = "lemi_samples_calibrated_total"
	metricInFlight  = "lemi_jobs_in_flight"
	metricLatency   = "lemi_file_process_seconds"
)

// DefaultWorkers is min(4, NumCPU).
func DefaultWorkers() int {
	return min(4, runtime.NumCPU())
}

// Orchestrator runs a batch of jobs on a fixed worker pool. Workers only
// decode and calibrate; everything with side effects (sinks, journal,
// notifications, logs, metrics) happens on the collecting goroutine.
type Orchestrator struct {
	Policy   ports.Policy
	Sinks    []ports.Sink
	Obs      ports.Observability
	Journal  ports.Journal  // optional
	Notifier ports.Notifier // optional

	// Responses is shared across runs when set.
	Responses *ResponseCache

	// process decodes and calibrates one job; nil means ProcessFile.
	process func(domain.ProcessingJob, *ResponseCache) (*domain.FileResult, error)
}

type task struct {
	pos int
	job domain.ProcessingJob
}

type taskResult struct {
	pos      int
	res      *domain.FileResult
	err      error
	fp       ports.Fingerprint
	params   ports.JobParams
	duration time.Duration
}

// Run processes jobs and returns one outcome per job in input order. A
// failing file never stops the others. When ctx is cancelled, jobs not yet
// handed to a worker are reported as cancelled, running ones finish, and the
// report is returned together with ctx's error. The only other error is a
// ConfigurationError for an unusable worker count, returned before any work.
func (o *Orchestrator) Run(ctx context.Context, jobs []domain.ProcessingJob) (*domain.Report, error) {
	workers := o.Policy.Workers
	if workers <= 0 {
		return nil, &domain.ConfigurationError{Field: "workers", Reason: fmt.Sprintf("%d must be > 0", workers)}
	}
	obs := o.Obs
	if obs == nil {
		obs = nopObs{}
	}
	responses := o.Responses
	if responses == nil {
		responses = NewResponseCache()
	}
	process := o.process
	if process == nil {
		process = ProcessFile
	}

	report := &domain.Report{RunID: uuid.NewString()}
	jobs = slices.Clone(jobs)
	outcomes := make([]*domain.Outcome, len(jobs))
	for i := range jobs {
		if jobs[i].ID == "" {
			jobs[i].ID = uuid.NewString()
		}
	}

	var done map[string]journaled
	if o.Policy.Resume && o.Journal != nil {
		var err error
		if done, err = o.succeededFiles(); err != nil {
			obs.LogError("journal_read_failed", err)
		}
	}

	pending := make([]task, 0, len(jobs))
	for i, job := range jobs {
		if prev, ok := done[job.Path]; ok && unchanged(prev.fp) && sameParams(prev.params, job) {
			skipped := prev.outcome
			skipped.JobID, skipped.Row, skipped.Site = job.ID, job.Row, job.Site
			skipped.Azimuth = job.Azimuth
			skipped.Status, skipped.Duration = domain.StatusSkipped, 0
			outcomes[i] = &skipped
			obs.IncCounter(metricSkipped, 1)
			obs.LogInfo("file_skipped", ports.Field{Key: "path", Value: job.Path})
			continue
		}
		pending = append(pending, task{pos: i, job: job})
	}

	obs.LogInfo("batch_started",
		ports.Field{Key: "run_id", Value: report.RunID},
		ports.Field{Key: "jobs", Value: len(jobs)},
		ports.Field{Key: "pending", Value: len(pending)},
		ports.Field{Key: "workers", Value: workers},
	)

	tasks := make(chan task)
	results := make(chan taskResult, len(pending))
	var dispatched atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				results <- runTask(t, process, responses)
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, t := range pending {
			if ctx.Err() != nil {
				return
			}
			dispatched.Add(1)
			select {
			case tasks <- t:
			case <-ctx.Done():
				dispatched.Add(-1)
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var collected int64
	for r := range results {
		collected++
		obs.SetGauge(metricInFlight, float64(dispatched.Load()-collected))
		out := o.collect(report.RunID, jobs[r.pos], r, obs)
		outcomes[r.pos] = &out
	}
	obs.SetGauge(metricInFlight, 0)

	for i, job := range jobs {
		if outcomes[i] == nil {
			outcomes[i] = &domain.Outcome{
				JobID:   job.ID,
				Row:     job.Row,
				Site:    job.Site,
				Path:    job.Path,
				Status:  domain.StatusCancelled,
				Kind:    domain.KindCancelled,
				Message: domain.ErrCancelled.Error(),
			}
		}
		report.Add(*outcomes[i])
	}

	if o.Journal != nil {
		if err := o.Journal.Sync(); err != nil {
			obs.LogError("journal_sync_failed", err)
		}
	}

	obs.LogInfo("batch_finished",
		ports.Field{Key: "run_id", Value: report.RunID},
		ports.Field{Key: "succeeded", Value: report.Succeeded},
		ports.Field{Key: "failed", Value: report.Failed},
		ports.Field{Key: "skipped", Value: report.Skipped},
		ports.Field{Key: "cancelled", Value: report.Cancelled},
	)

	if report.Cancelled > 0 {
		return report, ctx.Err()
	}
	return report, nil
}

func runTask(t task, process func(domain.ProcessingJob, *ResponseCache) (*domain.FileResult, error), responses *ResponseCache) taskResult {
	start := time.Now()
	fp, _ := fingerprint(t.job.Path)
	params := jobParams(t.job)
	res, err := process(t.job, responses)
	return taskResult{pos: t.pos, res: res, err: err, fp: fp, params: params, duration: time.Since(start)}
}

// collect turns one worker result into an outcome and performs every side
// effect for it. Only the Run goroutine calls it.
func (o *Orchestrator) collect(runID string, job domain.ProcessingJob, r taskResult, obs ports.Observability) domain.Outcome {
	out := domain.Outcome{
		JobID:    job.ID,
		Row:      job.Row,
		Site:     job.Site,
		Path:     job.Path,
		Dipole:   job.Dipole,
		Azimuth:  job.Azimuth,
		Duration: r.duration,
	}
	obs.ObserveLatency(metricLatency, r.duration.Seconds())

	err := r.err
	if err == nil {
		err = o.writeSinks(r.res)
	}

	if err != nil {
		out.Status = domain.StatusFailed
		out.Kind = domain.KindOf(err)
		out.Message = err.Error()
		obs.IncCounter(metricFailed, 1)
		obs.RecordFailure(out)
	} else {
		res := r.res
		out.Status = domain.StatusSucceeded
		out.Serial = res.Header.Serial
		out.Latitude, out.Longitude, out.Altitude = res.Header.Latitude, res.Header.Longitude, res.Header.Altitude
		out.SampleCount = len(res.Samples)
		out.SampleRate = res.SampleRate
		out.Discontinuities = len(res.Discontinuities)
		out.Start, out.End = res.Start, res.End
		obs.IncCounter(metricSucceeded, 1)
		obs.IncCounter(metricSamples, float64(out.SampleCount))
		obs.LogInfo("file_processed",
			ports.Field{Key: "path", Value: out.Path},
			ports.Field{Key: "serial", Value: out.Serial},
			ports.Field{Key: "samples", Value: out.SampleCount},
			ports.Field{Key: "sample_rate", Value: out.SampleRate},
			ports.Field{Key: "discontinuities", Value: out.Discontinuities},
		)
	}

	if o.Journal != nil {
		if _, err := o.Journal.Append(ports.JournalEntry{RunID: runID, Fingerprint: r.fp, Params: r.params, Outcome: out}); err != nil {
			obs.LogError("journal_append_failed", err, ports.Field{Key: "path", Value: out.Path})
		}
	}
	if o.Notifier != nil {
		if err := o.Notifier.Notify(runID, out); err != nil {
			obs.LogError("notify_failed", err, ports.Field{Key: "path", Value: out.Path})
		}
	}
	return out
}

// writeSinks hands res to every sink. Any sink failure fails the file.
func (o *Orchestrator) writeSinks(res *domain.FileResult) error {
	var errs []error
	for _, s := range o.Sinks {
		if err := s.WriteResult(res); err != nil {
			errs = append(errs, &domain.IOError{Op: "write " + s.Name(), Path: res.Job.Path, Err: err})
		}
	}
	return errors.Join(errs...)
}

type journaled struct {
	fp      ports.Fingerprint
	params  ports.JobParams
	outcome domain.Outcome
}

// succeededFiles returns, per path, the latest journal entry when that entry
// is a success. A later failure for the same path forgets the success.
func (o *Orchestrator) succeededFiles() (map[string]journaled, error) {
	done := make(map[string]journaled)
	err := o.Journal.Iterate(0, func(_ ports.JournalEntryID, e ports.JournalEntry) error {
		path := e.Outcome.Path
		if e.Outcome.Status == domain.StatusSucceeded {
			done[path] = journaled{fp: e.Fingerprint, params: e.Params, outcome: e.Outcome}
		} else if e.Outcome.Status == domain.StatusFailed {
			delete(done, path)
		}
		return nil
	})
	return done, err
}

func fingerprint(path string) (ports.Fingerprint, error) {
	st, err := os.Stat(path)
	if err != nil {
		return ports.Fingerprint{Path: path}, err
	}
	return ports.Fingerprint{Path: path, Size: st.Size(), ModTime: st.ModTime().UTC()}, nil
}

// unchanged reports whether the file at fp.Path still has the recorded
// size and modification time.
func unchanged(fp ports.Fingerprint) bool {
	cur, err := fingerprint(fp.Path)
	return err == nil && cur.Size == fp.Size && cur.ModTime.Equal(fp.ModTime)
}

// jobParams records the inputs besides the B423 file that shape its output.
func jobParams(job domain.ProcessingJob) ports.JobParams {
	p := ports.JobParams{Dipole: job.Dipole}
	if job.ResponsePath != "" {
		fp, _ := fingerprint(job.ResponsePath)
		p.Response = &fp
	}
	return p
}

// sameParams reports whether job would be processed with the same dipoles
// and the same, unmodified response file as the journaled run.
func sameParams(prev ports.JobParams, job domain.ProcessingJob) bool {
	if prev.Dipole != job.Dipole {
		return false
	}
	if job.ResponsePath == "" {
		return prev.Response == nil
	}
	return prev.Response != nil && prev.Response.Path == job.ResponsePath && unchanged(*prev.Response)
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)         {}
func (nopObs) LogError(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)             {}
func (nopObs) ObserveLatency(string, float64)         {}
func (nopObs) SetGauge(string, float64)               {}
func (nopObs) RecordFailure(domain.Outcome)           {}
