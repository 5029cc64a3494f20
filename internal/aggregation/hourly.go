package aggregation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// HourlyTaskID identifies the recurring roll-up in the timer manager
	HourlyTaskID = "hourly-aggregation"

	runTimeout = 2 * time.Minute
)

// HourStore rolls raw vitals up into health_hourly
type HourStore interface {
	AggregateHealthHour(ctx context.Context, hourStart time.Time) (int64, error)
}

// Scheduler is satisfied by timer.TimerManager
type Scheduler interface {
	Schedule(id string, expiryAt time.Time, callback func()) error
}

// HourlyAggregator averages each crew member's vitals per hour
type HourlyAggregator struct {
	store  HourStore
	logger *zap.Logger
	now    func() time.Time
}

func NewHourlyAggregator(store HourStore, logger *zap.Logger) *HourlyAggregator {
	return &HourlyAggregator{store: store, logger: logger, now: time.Now}
}

// Aggregate rolls up the hour containing targetHour
func (h *HourlyAggregator) Aggregate(ctx context.Context, targetHour time.Time) (int64, error) {
	start := targetHour.UTC().Truncate(time.Hour)
	h.logger.Info("Running hourly aggregation", zap.Time("hour", start))

	users, err := h.store.AggregateHealthHour(ctx, start)
	if err != nil {
		return 0, err
	}

	h.logger.Info("Hourly aggregation completed",
		zap.Time("hour", start),
		zap.Int64("users", users))
	return users, nil
}

// AggregatePreviousHour rolls up the last complete hour
func (h *HourlyAggregator) AggregatePreviousHour(ctx context.Context) (int64, error) {
	return h.Aggregate(ctx, h.now().UTC().Add(-time.Hour))
}

// CalculateNextRunTime returns the next top of the hour plus delay, so late
// readings for the finished hour have time to land
func (h *HourlyAggregator) CalculateNextRunTime(delay time.Duration) time.Time {
	now := h.now()
	nextRun := now.Truncate(time.Hour).Add(time.Hour).Add(delay)
	if now.After(nextRun) {
		nextRun = nextRun.Add(time.Hour)
	}
	return nextRun
}

// ScheduleHourly arms the roll-up on s. Every run re-arms the next one.
func (h *HourlyAggregator) ScheduleHourly(s Scheduler, delay time.Duration) error {
	nextRun := h.CalculateNextRunTime(delay)

	err := s.Schedule(HourlyTaskID, nextRun, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		if _, err := h.AggregatePreviousHour(ctx); err != nil {
			h.logger.Error("Hourly aggregation failed", zap.Error(err))
		}
		cancel()

		if err := h.ScheduleHourly(s, delay); err != nil {
			h.logger.Error("Failed to reschedule hourly aggregation", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	h.logger.Info("Next hourly aggregation scheduled", zap.Time("at", nextRun))
	return nil
}
