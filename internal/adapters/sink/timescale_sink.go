package sink

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
	"github.com/bvkay/LEMI-423-Reader/internal/ports"
)

const (
	timescaleColumns = 10
	// DefaultBatchRows keeps one statement well under Postgres' 65535 parameter limit.
	DefaultBatchRows = 1000
)

// TimescaleSink inserts calibrated samples into a hypertable. One file is
// written inside a single transaction.
type TimescaleSink struct {
	db        *sql.DB
	tableName string
	batchRows int
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table, batchRows: DefaultBatchRows}
}

// WithBatchRows overrides the number of rows per INSERT statement.
func (t *TimescaleSink) WithBatchRows(n int) *TimescaleSink {
	if n > 0 {
		t.batchRows = n
	}
	return t
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteResult(res *domain.FileResult) error {
	if res == nil || len(res.Samples) == 0 {
		return nil
	}

	tx, err := t.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for start := 0; start < len(res.Samples); start += t.batchRows {
		end := min(start+t.batchRows, len(res.Samples))
		query, args := t.insert(res, res.Samples[start:end])
		if _, err := tx.Exec(query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
	}
	return tx.Commit()
}

// insert builds INSERT ... ON CONFLICT DO NOTHING so a re-run of the same
// file is idempotent on (serial, ts).
func (t *TimescaleSink) insert(res *domain.FileResult, samples []domain.CalibratedSample) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (site, serial, ts, second, idx, bx, by, bz, ex, ey) VALUES ")

	args := make([]any, 0, len(samples)*timescaleColumns)
	for i, s := range samples {
		if i > 0 {
			b.WriteString(",")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10)
		args = append(args,
			res.Job.Site,
			res.Header.Serial,
			s.Time,
			s.Second,
			s.Index,
			s.Bx, s.By, s.Bz,
			s.Ex, s.Ey,
		)
	}
	b.WriteString(" ON CONFLICT (serial, ts) DO NOTHING")
	return b.String(), args
}

var _ ports.Sink = (*TimescaleSink)(nil)
