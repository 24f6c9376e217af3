package b423

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

// Extension is the file suffix written by the logger.
const Extension = ".B423"

// ReadHeader reads only the header of the file at path.
func ReadHeader(path string) (domain.FileHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.FileHeader{}, &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	return readHeader(f, path)
}

// ReadFile decodes the header and every record of the file at path through a
// RecordReader. The payload length is checked against RecordSize before
// anything is decoded.
func ReadFile(path string) (domain.FileHeader, []domain.SampleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.FileHeader{}, nil, &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return domain.FileHeader{}, nil, &domain.IOError{Op: "stat", Path: path, Err: err}
	}

	h, err := readHeader(f, path)
	if err != nil {
		return h, nil, err
	}

	payload := st.Size() - HeaderSize
	if payload%RecordSize != 0 {
		return h, nil, &domain.TruncatedRecordError{Length: payload, RecordSize: RecordSize}
	}

	recs := make([]domain.SampleRecord, 0, payload/RecordSize)
	err = NewRecordReader(f).Each(func(r domain.SampleRecord) error {
		recs = append(recs, r)
		return nil
	})
	var torn *domain.TruncatedRecordError
	switch {
	case errors.As(err, &torn):
		return h, nil, err
	case err != nil:
		return h, nil, &domain.IOError{Op: "read", Path: path, Err: err}
	}
	return h, recs, nil
}

func readHeader(r io.Reader, path string) (domain.FileHeader, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.FileHeader{}, &domain.MalformedHeaderError{Line: -1, Reason: fmt.Sprintf("file holds %d bytes, header needs %d", n, HeaderSize)}
	}
	if err != nil {
		return domain.FileHeader{}, &domain.IOError{Op: "read", Path: path, Err: err}
	}
	return ParseHeader(buf)
}

// WriteFile writes a header followed by records. Used to build fixtures and
// to re-emit decoded data.
func WriteFile(path string, h domain.FileHeader, recs []domain.SampleRecord) error {
	hdr, err := FormatHeader(h)
	if err != nil {
		return err
	}
	data := AppendRecords(hdr, recs)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}
