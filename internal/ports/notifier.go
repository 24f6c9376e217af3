package ports

import "github.com/bvkay/LEMI-423-Reader/internal/domain"

// Notifier announces each finished file to downstream consumers.
type Notifier interface {
	Notify(runID string, o domain.Outcome) error
}
