package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bvkay/LEMI-423-Reader/internal/b423"
	"github.com/bvkay/LEMI-423-Reader/internal/domain"
	"github.com/bvkay/LEMI-423-Reader/internal/ports"
)

func unitHeader() domain.FileHeader {
	var c domain.Coefficients
	for i := range c {
		c[i] = domain.Pair{K: 1, A: 0}
	}
	return domain.FileHeader{
		Serial:       "110",
		Firmware:     "2.21",
		Start:        time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC),
		Latitude:     -34.5,
		Longitude:    138.5,
		Altitude:     120,
		Coefficients: c,
	}
}

// writeB423 writes n records of one-second 4 Hz data starting at second.
func writeB423(t *testing.T, dir string, second int64, n int) string {
	t.Helper()
	recs := make([]domain.SampleRecord, n)
	for i := range recs {
		recs[i] = domain.SampleRecord{
			Second: second + int64(i/4),
			Index:  i % 4,
			Bx:     int32(100 + i), By: int32(200 + i), Bz: int32(300 + i),
			Ex: int32(50 + i), Ey: int32(60 + i),
		}
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.B423", second))
	if err := b423.WriteFile(path, unitHeader(), recs); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func truncate(t *testing.T, path string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(make([]byte, 7)); err != nil {
		t.Fatalf("append partial record: %v", err)
	}
}

func job(path string, row int) domain.ProcessingJob {
	return domain.ProcessingJob{Row: row, Site: "KAP03", Path: path, Dipole: domain.Dipole{Ex: 1000, Ey: 1000}}
}

type memSink struct {
	mu      sync.Mutex
	results []*domain.FileResult
	fail    error
	onWrite func()
}

func (m *memSink) Name() string { return "mem" }

func (m *memSink) WriteResult(r *domain.FileResult) error {
	if m.onWrite != nil {
		m.onWrite()
	}
	if m.fail != nil {
		return m.fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

type mockObs struct {
	mu       sync.Mutex
	counters map[string]float64
	failures []domain.Outcome
	errors   []error
}

func newMockObs() *mockObs { return &mockObs{counters: map[string]float64{}} }

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(string, float64)       {}
func (m *mockObs) RecordFailure(o domain.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, o)
}

type mockNotifier struct {
	statuses []domain.Status
	fail     error
}

func (m *mockNotifier) Notify(_ string, o domain.Outcome) error {
	m.statuses = append(m.statuses, o.Status)
	return m.fail
}

var errSinkDown = errors.New("sink down")
