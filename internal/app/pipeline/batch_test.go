package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bvkay/LEMI-423-Reader/internal/adapters/journal"
	"github.com/bvkay/LEMI-423-Reader/internal/domain"
	"github.com/bvkay/LEMI-423-Reader/internal/ports"
)

func fixtureJobs(t *testing.T, dir string, n int) []domain.ProcessingJob {
	t.Helper()
	jobs := make([]domain.ProcessingJob, n)
	for i := range jobs {
		jobs[i] = job(writeB423(t, dir, 1710498030+int64(i)*3600, 8), i+1)
	}
	return jobs
}

func TestRunPartialFailure(t *testing.T) {
	dir := t.TempDir()
	jobs := fixtureJobs(t, dir, 5)
	truncate(t, jobs[2].Path)

	sink := &memSink{}
	obs := newMockObs()
	notifier := &mockNotifier{}
	o := &Orchestrator{
		Policy:   ports.Policy{Workers: 3},
		Sinks:    []ports.Sink{sink},
		Obs:      obs,
		Notifier: notifier,
	}

	report, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 5)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.OK())

	for i, out := range report.Outcomes {
		assert.Equal(t, jobs[i].Path, out.Path, "outcomes must follow table order")
		assert.Equal(t, i+1, out.Row)
		assert.NotEmpty(t, out.JobID)
	}
	failed := report.Outcomes[2]
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Equal(t, domain.KindTruncatedRecord, failed.Kind)
	assert.Contains(t, failed.Message, "truncated record")

	ok := report.Outcomes[0]
	assert.Equal(t, 8, ok.SampleCount)
	assert.Equal(t, 4, ok.SampleRate)
	assert.Equal(t, "110", ok.Serial)

	assert.Len(t, sink.results, 4)
	assert.Len(t, notifier.statuses, 5)
	assert.Equal(t, 4.0, obs.counters[metricSucceeded])
	assert.Equal(t, 1.0, obs.counters[metricFailed])
	assert.Equal(t, 32.0, obs.counters[metricSamples])
	require.Len(t, obs.failures, 1)
	assert.Equal(t, jobs[2].Path, obs.failures[0].Path)
}

func TestRunRejectsNonPositiveWorkers(t *testing.T) {
	for _, w := range []int{0, -2} {
		report, err := (&Orchestrator{Policy: ports.Policy{Workers: w}}).Run(context.Background(), nil)
		assert.Nil(t, report)
		assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
	}
}

func TestRunEmptyBatch(t *testing.T) {
	report, err := (&Orchestrator{Policy: ports.Policy{Workers: 2}}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.True(t, report.OK())
}

func TestRunSinkFailureFailsFile(t *testing.T) {
	dir := t.TempDir()
	jobs := fixtureJobs(t, dir, 2)

	o := &Orchestrator{
		Policy: ports.Policy{Workers: 2},
		Sinks:  []ports.Sink{&memSink{fail: errSinkDown}},
	}
	report, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	for _, out := range report.Outcomes {
		assert.Equal(t, domain.KindIO, out.Kind)
		assert.Contains(t, out.Message, "sink down")
	}
}

func TestRunNotifierErrorDoesNotFailFile(t *testing.T) {
	dir := t.TempDir()
	jobs := fixtureJobs(t, dir, 1)
	obs := newMockObs()

	o := &Orchestrator{
		Policy:   ports.Policy{Workers: 1},
		Obs:      obs,
		Notifier: &mockNotifier{fail: errors.New("nats down")},
	}
	report, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Len(t, obs.errors, 1)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	jobs := fixtureJobs(t, dir, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := (&Orchestrator{Policy: ports.Policy{Workers: 2}}).Run(ctx, jobs)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 3, report.Cancelled)
	for i, out := range report.Outcomes {
		assert.Equal(t, domain.StatusCancelled, out.Status)
		assert.Equal(t, domain.KindCancelled, out.Kind)
		assert.Equal(t, jobs[i].Path, out.Path)
	}
}

func TestRunCancelMidwayFinishesInFlight(t *testing.T) {
	dir := t.TempDir()
	jobs := fixtureJobs(t, dir, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Row 2 holds the only worker until the test has cancelled.
	started := make(chan struct{})
	release := make(chan struct{})
	process := func(j domain.ProcessingJob, rc *ResponseCache) (*domain.FileResult, error) {
		if j.Row == 2 {
			close(started)
			<-release
		}
		return ProcessFile(j, rc)
	}

	sink := &memSink{}
	o := &Orchestrator{
		Policy:  ports.Policy{Workers: 1},
		Sinks:   []ports.Sink{sink},
		process: process,
	}

	type ran struct {
		report *domain.Report
		err    error
	}
	done := make(chan ran, 1)
	go func() {
		report, err := o.Run(ctx, jobs)
		done <- ran{report, err}
	}()

	<-started
	cancel()
	close(release)
	got := <-done

	assert.ErrorIs(t, got.err, context.Canceled)
	report := got.report
	require.Len(t, report.Outcomes, 10)

	assert.Equal(t, domain.StatusSucceeded, report.Outcomes[0].Status)
	assert.Equal(t, domain.StatusSucceeded, report.Outcomes[1].Status, "in-flight job runs to completion")
	// Row 3 may already sit in the unbuffered hand-off when the cancel lands.
	assert.Contains(t, []domain.Status{domain.StatusSucceeded, domain.StatusCancelled}, report.Outcomes[2].Status)
	for _, out := range report.Outcomes[3:] {
		assert.Equal(t, domain.StatusCancelled, out.Status, "row %d", out.Row)
		assert.Equal(t, domain.KindCancelled, out.Kind)
	}
	assert.Zero(t, report.Failed)
	assert.Equal(t, 10, report.Succeeded+report.Cancelled)
	assert.Len(t, sink.results, report.Succeeded)
}

func TestRunResumeSkipsJournaledFiles(t *testing.T) {
	dir := t.TempDir()
	jobs := fixtureJobs(t, dir, 3)
	truncate(t, jobs[1].Path)

	j, err := journal.NewFileJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	o := &Orchestrator{Policy: ports.Policy{Workers: 2, Resume: true}, Journal: j}

	first, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Succeeded)
	assert.Equal(t, 1, first.Failed)
	assert.EqualValues(t, 3, j.Stats().LatestAppended)

	// Repair the failed file and grow the last one; only the untouched
	// first file may be skipped.
	writeB423(t, dir, 1710498030+3600, 8)
	writeB423(t, dir, 1710498030+7200, 12)

	sink := &memSink{}
	o.Sinks = []ports.Sink{sink}
	second, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, second.Outcomes[0].Status)
	assert.Equal(t, 8, second.Outcomes[0].SampleCount)
	assert.Equal(t, domain.StatusSucceeded, second.Outcomes[1].Status)
	assert.Equal(t, domain.StatusSucceeded, second.Outcomes[2].Status)
	assert.Equal(t, 12, second.Outcomes[2].SampleCount)
	assert.Len(t, sink.results, 2)
	assert.True(t, second.OK())

	o.Policy.Resume = false
	third, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Succeeded)
}

func TestRunResumeReprocessesChangedDipole(t *testing.T) {
	dir := t.TempDir()
	jobs := fixtureJobs(t, dir, 1)

	j, err := journal.NewFileJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	sink := &memSink{}
	o := &Orchestrator{Policy: ports.Policy{Workers: 1, Resume: true}, Sinks: []ports.Sink{sink}, Journal: j}

	first, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Equal(t, 1, first.Succeeded)
	require.Len(t, sink.results, 1)
	assert.Equal(t, 0.05, sink.results[0].Samples[0].Ex)

	// The metadata table now says the Ex line is 50 m long.
	jobs[0].Dipole.Ex = 50
	second, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, second.Outcomes[0].Status)
	assert.Equal(t, domain.Dipole{Ex: 50, Ey: 1000}, second.Outcomes[0].Dipole)
	require.Len(t, sink.results, 2)
	assert.Equal(t, 1.0, sink.results[1].Samples[0].Ex)

	third, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, third.Outcomes[0].Status)
	assert.Len(t, sink.results, 2)
}

func TestRunResumeReprocessesChangedResponse(t *testing.T) {
	dir := t.TempDir()
	jobs := fixtureJobs(t, dir, 1)
	rsp := filepath.Join(dir, "coil.rsp")
	require.NoError(t, os.WriteFile(rsp, []byte("0.1 1.0 90\n1 2.0 -90\n"), 0o644))
	jobs[0].ResponsePath = rsp

	j, err := journal.NewFileJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	o := &Orchestrator{Policy: ports.Policy{Workers: 1, Resume: true}, Journal: j}

	first, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Equal(t, 1, first.Succeeded)

	again, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, again.Outcomes[0].Status)

	require.NoError(t, os.WriteFile(rsp, []byte("0.1 1.0 90\n1 2.0 -90\n10 4.0 -180\n"), 0o644))
	changed, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, changed.Outcomes[0].Status)

	jobs[0].ResponsePath = ""
	dropped, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, dropped.Outcomes[0].Status)
}

func TestRunOutcomeCarriesSiteFields(t *testing.T) {
	dir := t.TempDir()
	jobs := fixtureJobs(t, dir, 2)
	for i := range jobs {
		jobs[i].Azimuth = domain.Azimuth{Ex: 0, Ey: 90}
	}

	report, err := (&Orchestrator{Policy: ports.Policy{Workers: 2}}).Run(context.Background(), jobs)
	require.NoError(t, err)

	sites := report.Sites()
	require.Len(t, sites, 1)
	s := sites[0]
	assert.Equal(t, "KAP03", s.Site)
	assert.Equal(t, "110", s.Serial)
	assert.Equal(t, -34.5, s.Latitude)
	assert.Equal(t, 138.5, s.Longitude)
	assert.Equal(t, 120.0, s.Altitude)
	assert.Equal(t, 4, s.SampleRate)
	assert.Equal(t, domain.Dipole{Ex: 1000, Ey: 1000}, s.Dipole)
	assert.Equal(t, domain.Azimuth{Ex: 0, Ey: 90}, s.Azimuth)
	assert.Equal(t, 2, s.Files)
	assert.Equal(t, report.Outcomes[0].Start, s.Start)
	assert.Equal(t, report.Outcomes[1].End, s.End)
}
