package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/internal/scheduler"
	"github.com/wonny/stockcast/pkg/logger"
)

// Pruner deletes forecast runs made before cutoff
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob prunes lstm_predictions older than the retention window
type RetentionJob struct {
	store         Pruner
	retentionDays int
	logger        *logger.Logger
	loc           *time.Location
	now           func() time.Time
}

// NewRetentionJob creates a new retention job; loc is the zone whose day made_on uses
func NewRetentionJob(store Pruner, retentionDays int, loc *time.Location, log *logger.Logger) *RetentionJob {
	if loc == nil {
		loc = time.Local
	}
	return &RetentionJob{
		store:         store,
		retentionDays: retentionDays,
		logger:        log,
		loc:           loc,
		now:           time.Now,
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "forecast_retention"
}

// Schedule returns the cron schedule (daily 00:30, after the quiet window)
func (j *RetentionJob) Schedule() string {
	return "0 30 0 * * *"
}

// Cutoff returns the first prediction_made_date that is kept
func (j *RetentionJob) Cutoff() time.Time {
	return contracts.DateOf(j.now().In(j.loc)).AddDate(0, 0, -j.retentionDays)
}

// Run executes the pruning
func (j *RetentionJob) Run(ctx context.Context) (scheduler.Counts, error) {
	cutoff := j.Cutoff()

	removed, err := j.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("prune forecasts before %s: %w", cutoff.Format("2006-01-02"), err)
	}

	j.logger.WithFields(map[string]interface{}{
		"cutoff":  cutoff.Format("2006-01-02"),
		"removed": removed,
	}).Info("Forecast retention completed")

	return scheduler.Counts{"removed": removed}, nil
}
