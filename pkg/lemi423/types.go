package lemi423

import (
	"github.com/bvkay/LEMI-423-Reader/internal/domain"
	"github.com/bvkay/LEMI-423-Reader/internal/ports"
)

type (
	FileHeader       = domain.FileHeader
	Coefficients     = domain.Coefficients
	Pair             = domain.Pair
	Channel          = domain.Channel
	SampleRecord     = domain.SampleRecord
	CalibratedSample = domain.CalibratedSample
	Discontinuity    = domain.Discontinuity
	CoilResponse     = domain.CoilResponse
	Dipole           = domain.Dipole
	Azimuth          = domain.Azimuth
	ProcessingJob    = domain.ProcessingJob
	FileResult       = domain.FileResult
	Outcome          = domain.Outcome
	Status           = domain.Status
	Report           = domain.Report
	SiteSummary      = domain.SiteSummary
	ErrorKind        = domain.ErrorKind
)

type (
	MalformedHeaderError       = domain.MalformedHeaderError
	TruncatedRecordError       = domain.TruncatedRecordError
	MalformedResponseFileError = domain.MalformedResponseFileError
	ConfigurationError         = domain.ConfigurationError
	IOError                    = domain.IOError
)

// Sink receives every successfully calibrated file. A returned error fails
// that file.
type Sink = ports.Sink

// Observability emits logs and metrics from the collecting goroutine.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// Journal records outcomes so interrupted batches can resume.
type Journal = ports.Journal

// Notifier is told about every file outcome.
type Notifier = ports.Notifier

// KindOf classifies an error returned by this package.
func KindOf(err error) ErrorKind { return domain.KindOf(err) }

const (
	KindMalformedHeader       = domain.KindMalformedHeader
	KindTruncatedRecord       = domain.KindTruncatedRecord
	KindMalformedResponseFile = domain.KindMalformedResponseFile
	KindConfiguration         = domain.KindConfiguration
	KindIO                    = domain.KindIO
	KindCancelled             = domain.KindCancelled
	KindInternal              = domain.KindInternal

	StatusSucceeded = domain.StatusSucceeded
	StatusFailed    = domain.StatusFailed
	StatusSkipped   = domain.StatusSkipped
	StatusCancelled = domain.StatusCancelled
)
