package retrieval

import (
	"time"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

// Monitor receives retrieval lifecycle events. Implementations must be safe
// for concurrent use.
type Monitor interface {
	IndexBuilt(algorithm string, chunks int, duration time.Duration)
	AlgorithmDegraded(algorithm, stage string, err error)
	RetrievalFinished(outcomes []domain.AlgorithmOutcome, merged int, duration time.Duration)
}

type noopMonitor struct{}

func (noopMonitor) IndexBuilt(string, int, time.Duration)                           {}
func (noopMonitor) AlgorithmDegraded(string, string, error)                         {}
func (noopMonitor) RetrievalFinished([]domain.AlgorithmOutcome, int, time.Duration) {}

// NoopMonitor discards every event.
func NoopMonitor() Monitor { return noopMonitor{} }
