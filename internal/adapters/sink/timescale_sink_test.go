package sink

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

func result(n int) *domain.FileResult {
	res := &domain.FileResult{
		Job:    domain.ProcessingJob{Site: "KAP03"},
		Header: domain.FileHeader{Serial: "110"},
	}
	for i := 0; i < n; i++ {
		res.Samples = append(res.Samples, domain.CalibratedSample{
			Second: 1710498030,
			Index:  i,
			Time:   time.Unix(1710498030, 0).UTC().Add(time.Duration(i) * 2 * time.Millisecond),
			Bx:     float64(i), By: 1, Bz: 2, Ex: 0.05, Ey: 0.06,
		})
	}
	return res
}

func TestTimescaleSinkWriteResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "lemi_samples")
	res := result(1)
	s := res.Samples[0]

	expectedQuery := regexp.QuoteMeta("INSERT INTO lemi_samples (site, serial, ts, second, idx, bx, by, bz, ex, ey) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) ON CONFLICT (serial, ts) DO NOTHING")
	mock.ExpectBegin()
	mock.ExpectExec(expectedQuery).
		WithArgs("KAP03", "110", s.Time, int64(1710498030), 0, 0.0, 1.0, 2.0, 0.05, 0.06).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := sink.WriteResult(res); err != nil {
		t.Fatalf("write result: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkSplitsBatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "lemi_samples").WithBatchRows(2)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO lemi_samples").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO lemi_samples").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO lemi_samples").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := sink.WriteResult(result(5)); err != nil {
		t.Fatalf("write result: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "lemi_samples")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO lemi_samples").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if err := sink.WriteResult(result(3)); err == nil {
		t.Fatalf("expected insert error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkNoSamples(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "lemi_samples")
	if err := sink.WriteResult(&domain.FileResult{}); err != nil {
		t.Fatalf("expected nil error for empty result, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
	if sink.Name() != "timescaledb" {
		t.Fatalf("expected sink name timescaledb, got %s", sink.Name())
	}
}
