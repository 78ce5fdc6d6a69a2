package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

type QuotaTracker struct {
	loads ports.AcceptedLoadRepository
	clock ports.Clock
}

func NewQuotaTracker(loads ports.AcceptedLoadRepository, clock ports.Clock) *QuotaTracker {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &QuotaTracker{loads: loads, clock: clock}
}

// Remaining is the number of acceptances still allowed today (UTC). It can
// be zero or negative when the threshold was lowered after acceptances.
func (q *QuotaTracker) Remaining(ctx context.Context, settings domain.WatcherSettings) (int, error) {
	count, err := q.loads.CountAcceptedSince(ctx, StartOfDayUTC(q.clock.Now()))
	if err != nil {
		return 0, fmt.Errorf("count accepted loads: %w", err)
	}

	return settings.DailyThreshold - count, nil
}

func StartOfDayUTC(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
