package optimization

import (
	"context"
	"time"
)

// StatisticsProvider supplies the return statistics a run operates on.
// Implementations report missing or unusable data through the error
// value; they never panic across this boundary. The frontier service
// checks the error and aborts before any solve.
type StatisticsProvider interface {
	GetReturnStatistics(ctx context.Context, symbols []string, start, end time.Time) (*ReturnStatistics, error)
}
