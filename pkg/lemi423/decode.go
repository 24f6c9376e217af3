package lemi423

import (
	"io"

	"github.com/bvkay/LEMI-423-Reader/internal/adapters/metadata"
	"github.com/bvkay/LEMI-423-Reader/internal/app/pipeline"
	"github.com/bvkay/LEMI-423-Reader/internal/b423"
	"github.com/bvkay/LEMI-423-Reader/internal/calibration"
)

// ReadFile decodes the header and every record of a B423 file.
func ReadFile(path string) (FileHeader, []SampleRecord, error) {
	return b423.ReadFile(path)
}

// ParseHeader decodes a 1024-byte header block.
func ParseHeader(buf []byte) (FileHeader, error) {
	return b423.ParseHeader(buf)
}

// DecodeRecords decodes a whole payload of 30-byte records.
func DecodeRecords(payload []byte) ([]SampleRecord, error) {
	return b423.DecodeRecords(payload)
}

// Calibrate converts raw counts to mV (Bx, By, Bz) and mV/km (Ex, Ey).
func Calibrate(recs []SampleRecord, c Coefficients, d Dipole) ([]CalibratedSample, error) {
	return calibration.Calibrate(recs, c, d, b423.SampleRate(recs))
}

// ParseCoilResponse reads a frequency, magnitude, phase-in-degrees table.
func ParseCoilResponse(r io.Reader, source string) (*CoilResponse, error) {
	return calibration.ParseCoilResponse(r, source)
}

// LoadCoilResponse reads a coil response file from disk.
func LoadCoilResponse(path string) (*CoilResponse, error) {
	return calibration.LoadCoilResponse(path)
}

// LoadMetadata expands a metadata table into processing jobs.
func LoadMetadata(path, baseDir string) ([]ProcessingJob, error) {
	return metadata.Load(path, baseDir)
}

// ProcessFile runs one job without any sinks.
func ProcessFile(job ProcessingJob) (*FileResult, error) {
	return pipeline.ProcessFile(job, nil)
}

// DefaultWorkers is the worker count used when none is configured.
func DefaultWorkers() int { return pipeline.DefaultWorkers() }
