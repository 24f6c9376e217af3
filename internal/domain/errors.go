package domain

import (
	"errors"
	"fmt"
)

// ErrorKind names a failure class in reports and notifications.
type ErrorKind string

const (
	KindMalformedHeader       ErrorKind = "malformed_header"
	KindTruncatedRecord       ErrorKind = "truncated_record"
	KindMalformedResponseFile ErrorKind = "malformed_response_file"
	KindConfiguration         ErrorKind = "configuration"
	KindIO                    ErrorKind = "io"
	KindCancelled             ErrorKind = "cancelled"
	KindInternal              ErrorKind = "internal"
)

// MalformedHeaderError reports a header that cannot be decoded.
type MalformedHeaderError struct {
	Line   int // 0-based header line, -1 when not line specific
	Reason string
	Err    error
}

func (e *MalformedHeaderError) Error() string {
	msg := "malformed header"
	if e.Line >= 0 {
		msg = fmt.Sprintf("malformed header line %d", e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", msg, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", msg, e.Reason)
}

func (e *MalformedHeaderError) Unwrap() error { return e.Err }

// TruncatedRecordError reports a payload that is not a whole number of records.
type TruncatedRecordError struct {
	Length     int64
	RecordSize int
}

func (e *TruncatedRecordError) Error() string {
	return fmt.Sprintf("truncated record: %d payload bytes is not a multiple of %d (%d trailing)",
		e.Length, e.RecordSize, e.Length%int64(e.RecordSize))
}

// MalformedResponseFileError reports a bad RSP coil-response row.
type MalformedResponseFileError struct {
	Source string
	Line   int
	Reason string
}

func (e *MalformedResponseFileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed response file %s line %d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed response file %s: %s", e.Source, e.Reason)
}

// ConfigurationError reports an unusable parameter such as a dipole distance
// or a worker count.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// IOError wraps a failure to open, read or write a file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrCancelled marks jobs that were never dispatched because the run stopped.
var ErrCancelled = errors.New("batch cancelled before the job started")

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	var (
		mh  *MalformedHeaderError
		tr  *TruncatedRecordError
		mr  *MalformedResponseFileError
		cfg *ConfigurationError
		ioe *IOError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &mh):
		return KindMalformedHeader
	case errors.As(err, &tr):
		return KindTruncatedRecord
	case errors.As(err, &mr):
		return KindMalformedResponseFile
	case errors.As(err, &cfg):
		return KindConfiguration
	case errors.As(err, &ioe):
		return KindIO
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	default:
		return KindInternal
	}
}
