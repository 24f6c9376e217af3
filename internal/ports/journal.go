package ports

import (
	"time"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

type JournalEntryID uint64

// Fingerprint identifies one version of an input file.
type Fingerprint struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// JobParams are the per-job inputs, other than the B423 file itself, that
// change a file's calibrated output.
type JobParams struct {
	Dipole   domain.Dipole `json:"dipole"`
	Response *Fingerprint  `json:"response,omitempty"`
}

// JournalEntry is one collected outcome. A resumed run skips a file only when
// both the Fingerprint and the Params still match.
type JournalEntry struct {
	RunID       string         `json:"run_id"`
	Fingerprint Fingerprint    `json:"fingerprint"`
	Params      JobParams      `json:"params"`
	Outcome     domain.Outcome `json:"outcome"`
}

// Journal is an append-only record of per-file outcomes used to resume
// interrupted batches.
type Journal interface {
	Append(e JournalEntry) (JournalEntryID, error)
	Iterate(from JournalEntryID, fn func(id JournalEntryID, e JournalEntry) error) error
	Sync() error
	Stats() JournalStats
	Close() error
}

type JournalStats struct {
	LatestAppended JournalEntryID
	SizeBytes      int64
}
