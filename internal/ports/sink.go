package ports

import "github.com/bvkay/LEMI-423-Reader/internal/domain"

// Sink receives each successfully calibrated file. Sinks are only ever called
// from the orchestrator's collector goroutine, one result at a time.
type Sink interface {
	WriteResult(res *domain.FileResult) error
	Name() string
}
