package domain

import "time"

// Dipole holds electrode separations in meters.
type Dipole struct {
	Ex float64 `json:"ex_m"`
	Ey float64 `json:"ey_m"`
}

// Azimuth holds electrode line bearings in degrees. Carried as metadata only.
type Azimuth struct {
	Ex float64 `json:"ex_deg"`
	Ey float64 `json:"ey_deg"`
}

// ProcessingJob is one file's unit of work. Jobs never share mutable state.
type ProcessingJob struct {
	ID           string  `json:"id"`
	Row          int     `json:"row"`
	Site         string  `json:"site,omitempty"`
	Path         string  `json:"path"`
	Dipole       Dipole  `json:"dipole"`
	Azimuth      Azimuth `json:"azimuth"`
	ResponsePath string  `json:"response_path,omitempty"`

	// Invalid carries a row-level problem found while loading the table;
	// the job fails with it at its own boundary instead of aborting the batch.
	Invalid error `json:"-"`
}

// FileResult is the success bundle handed to sinks.
type FileResult struct {
	Job             ProcessingJob      `json:"job"`
	Header          FileHeader         `json:"header"`
	Samples         []CalibratedSample `json:"samples"`
	SampleRate      int                `json:"sample_rate"`
	Start           time.Time          `json:"start"`
	End             time.Time          `json:"end"`
	Discontinuities []Discontinuity    `json:"discontinuities,omitempty"`
	Response        *CoilResponse      `json:"response,omitempty"`
}

// Status is the terminal state of a job within a batch.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// Outcome is the per-file record of a batch run. It never holds samples.
type Outcome struct {
	JobID           string        `json:"job_id"`
	Row             int           `json:"row"`
	Site            string        `json:"site,omitempty"`
	Path            string        `json:"path"`
	Status          Status        `json:"status"`
	Kind            ErrorKind     `json:"kind,omitempty"`
	Message         string        `json:"message,omitempty"`
	Serial          string        `json:"serial,omitempty"`
	Latitude        float64       `json:"latitude,omitempty"`
	Longitude       float64       `json:"longitude,omitempty"`
	Altitude        float64       `json:"altitude,omitempty"`
	Dipole          Dipole        `json:"dipole"`
	Azimuth         Azimuth       `json:"azimuth"`
	SampleCount     int           `json:"sample_count"`
	SampleRate      int           `json:"sample_rate,omitempty"`
	Discontinuities int           `json:"discontinuities,omitempty"`
	Start           time.Time     `json:"start,omitempty"`
	End             time.Time     `json:"end,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Report aggregates every outcome of one batch run in table order.
type Report struct {
	RunID     string    `json:"run_id"`
	Outcomes  []Outcome `json:"outcomes"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Cancelled int       `json:"cancelled"`
}

// Add appends an outcome and updates the counters.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusSucceeded:
		r.Succeeded++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	case StatusCancelled:
		r.Cancelled++
	}
}

// Failures returns the failed and cancelled outcomes.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed || o.Status == StatusCancelled {
			out = append(out, o)
		}
	}
	return out
}

// OK reports whether every file either succeeded or was skipped.
func (r *Report) OK() bool {
	return r.Failed == 0 && r.Cancelled == 0
}
