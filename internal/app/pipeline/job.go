package pipeline

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/bvkay/LEMI-423-Reader/internal/b423"
	"github.com/bvkay/LEMI-423-Reader/internal/calibration"
	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

// ResponseCache loads each coil response file at most once per run. Loaded
// tables are shared read-only between workers.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*responseEntry
}

type responseEntry struct {
	once sync.Once
	resp *domain.CoilResponse
	err  error
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{entries: make(map[string]*responseEntry)}
}

func (c *ResponseCache) Get(path string) (*domain.CoilResponse, error) {
	c.mu.Lock()
	e, ok := c.entries[path]
	if !ok {
		e = &responseEntry{}
		c.entries[path] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.resp, e.err = calibration.LoadCoilResponse(path)
	})
	return e.resp, e.err
}

// ProcessFile decodes and calibrates one file. It never logs and never
// touches shared state beyond the read-only response cache; a panic becomes
// an internal error for this file only.
func ProcessFile(job domain.ProcessingJob, responses *ResponseCache) (res *domain.FileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("panic processing %s: %v\n%s", job.Path, r, debug.Stack())
		}
	}()

	if job.Invalid != nil {
		return nil, job.Invalid
	}
	if err := calibration.ValidateDipole(job.Dipole); err != nil {
		return nil, err
	}

	h, recs, err := b423.ReadFile(job.Path)
	if err != nil {
		return nil, err
	}

	rate := b423.SampleRate(recs)
	samples, err := calibration.Calibrate(recs, h.Coefficients, job.Dipole, rate)
	if err != nil {
		return nil, err
	}

	res = &domain.FileResult{
		Job:             job,
		Header:          h,
		Samples:         samples,
		SampleRate:      rate,
		Start:           h.Start,
		End:             h.Start,
		Discontinuities: b423.CheckContinuity(recs, rate),
	}
	if n := len(samples); n > 0 {
		res.Start = samples[0].Time
		res.End = samples[n-1].Time
	}

	if job.ResponsePath != "" {
		if responses == nil {
			responses = NewResponseCache()
		}
		if res.Response, err = responses.Get(job.ResponsePath); err != nil {
			return nil, err
		}
	}
	return res, nil
}
