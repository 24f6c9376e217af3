package ports

import "github.com/bvkay/LEMI-423-Reader/internal/domain"

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	RecordFailure(o domain.Outcome)
}

type Field struct {
	Key   string
	Value any
}
