package b423

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

// Record layout. Every multi-byte field uses ByteOrder.
//
//	0  second   uint32
//	4  index    uint16
//	6  Bx       int32
//	10 By       int32
//	14 Bz       int32
//	18 Ex       int32
//	22 Ey       int32
//	26 PPS      int16
//	28 PLL      int16
const (
	RecordSize = 30

	offSecond = 0
	offIndex  = 4
	offBx     = 6
	offBy     = 10
	offBz     = 14
	offEx     = 18
	offEy     = 22
	offPPS    = 26
	offPLL    = 28
)

// ByteOrder is the instrument's on-disk byte order. LEMI-423 loggers write
// little-endian words; pinned by TestByteOrderPinned.
var ByteOrder = binary.LittleEndian

// DecodeRecord decodes one record from the first RecordSize bytes of b.
func DecodeRecord(b []byte) domain.SampleRecord {
	_ = b[RecordSize-1]
	return domain.SampleRecord{
		Second: int64(ByteOrder.Uint32(b[offSecond:])),
		Index:  int(ByteOrder.Uint16(b[offIndex:])),
		Bx:     int32(ByteOrder.Uint32(b[offBx:])),
		By:     int32(ByteOrder.Uint32(b[offBy:])),
		Bz:     int32(ByteOrder.Uint32(b[offBz:])),
		Ex:     int32(ByteOrder.Uint32(b[offEx:])),
		Ey:     int32(ByteOrder.Uint32(b[offEy:])),
		PPS:    int16(ByteOrder.Uint16(b[offPPS:])),
		PLL:    int16(ByteOrder.Uint16(b[offPLL:])),
	}
}

// DecodeRecords decodes a payload of back-to-back records. A payload that is
// not a whole number of records yields no records at all.
func DecodeRecords(b []byte) ([]domain.SampleRecord, error) {
	if len(b)%RecordSize != 0 {
		return nil, &domain.TruncatedRecordError{Length: int64(len(b)), RecordSize: RecordSize}
	}
	out := make([]domain.SampleRecord, 0, len(b)/RecordSize)
	for off := 0; off < len(b); off += RecordSize {
		out = append(out, DecodeRecord(b[off:off+RecordSize]))
	}
	return out, nil
}

// AppendRecord appends the on-disk encoding of r to dst.
func AppendRecord(dst []byte, r domain.SampleRecord) []byte {
	var b [RecordSize]byte
	ByteOrder.PutUint32(b[offSecond:], uint32(r.Second))
	ByteOrder.PutUint16(b[offIndex:], uint16(r.Index))
	ByteOrder.PutUint32(b[offBx:], uint32(r.Bx))
	ByteOrder.PutUint32(b[offBy:], uint32(r.By))
	ByteOrder.PutUint32(b[offBz:], uint32(r.Bz))
	ByteOrder.PutUint32(b[offEx:], uint32(r.Ex))
	ByteOrder.PutUint32(b[offEy:], uint32(r.Ey))
	ByteOrder.PutUint16(b[offPPS:], uint16(r.PPS))
	ByteOrder.PutUint16(b[offPLL:], uint16(r.PLL))
	return append(dst, b[:]...)
}

// AppendRecords appends every record in order.
func AppendRecords(dst []byte, rs []domain.SampleRecord) []byte {
	for _, r := range rs {
		dst = AppendRecord(dst, r)
	}
	return dst
}

// RecordReader decodes records lazily from a stream positioned just after
// the header. Re-reading the same region yields the same records.
type RecordReader struct {
	r    *bufio.Reader
	buf  [RecordSize]byte
	read int64
}

func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{r: bufio.NewReaderSize(r, 64*RecordSize)}
}

// Next returns the next record, io.EOF after the last whole record, or a
// TruncatedRecordError when the stream ends inside a record.
func (rr *RecordReader) Next() (domain.SampleRecord, error) {
	n, err := io.ReadFull(rr.r, rr.buf[:])
	rr.read += int64(n)
	switch {
	case err == nil:
		return DecodeRecord(rr.buf[:]), nil
	case errors.Is(err, io.EOF):
		return domain.SampleRecord{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return domain.SampleRecord{}, &domain.TruncatedRecordError{Length: rr.read, RecordSize: RecordSize}
	default:
		return domain.SampleRecord{}, err
	}
}

// Each calls fn for every record until the stream ends or fn fails.
func (rr *RecordReader) Each(fn func(domain.SampleRecord) error) error {
	for {
		rec, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
