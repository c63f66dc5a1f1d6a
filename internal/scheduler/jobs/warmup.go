package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/internal/scheduler"
	"github.com/wonny/stockcast/pkg/logger"
)

// TickerLister lists tickers that have a trained model
type TickerLister interface {
	List(ctx context.Context) ([]string, error)
}

// CacheWarmupJob pre-fetches recent history for every trained ticker so the
// daemon's forecasts hit the price cache
// ⭐ SSOT: window는 forecaster와 동일 ([now-lookback, now], 같은 zone) → 같은 cache key
type CacheWarmupJob struct {
	artifacts    TickerLister
	history      contracts.PriceHistory
	lookbackDays int
	logger       *logger.Logger
	loc          *time.Location
	now          func() time.Time
}

// NewCacheWarmupJob creates a new cache warm-up job.
// lookbackDays and loc must match the forecaster's (forecast.LookbackDays, daemon timezone).
func NewCacheWarmupJob(artifacts TickerLister, history contracts.PriceHistory, lookbackDays int, loc *time.Location, log *logger.Logger) *CacheWarmupJob {
	if loc == nil {
		loc = time.Local
	}
	return &CacheWarmupJob{
		artifacts:    artifacts,
		history:      history,
		lookbackDays: lookbackDays,
		logger:       log,
		loc:          loc,
		now:          time.Now,
	}
}

// Name returns the job name
func (j *CacheWarmupJob) Name() string {
	return "price_cache_warmup"
}

// Schedule returns the cron schedule (daily 00:01, so the cached series carries the daemon's new day)
func (j *CacheWarmupJob) Schedule() string {
	return "0 1 0 * * *"
}

// Window returns the [start, end] range the forecaster fetches at the same instant
func (j *CacheWarmupJob) Window() (time.Time, time.Time) {
	end := j.now().In(j.loc)
	return end.AddDate(0, 0, -j.lookbackDays), end
}

// Run executes the warm-up; individual ticker failures are logged, not fatal
func (j *CacheWarmupJob) Run(ctx context.Context) (scheduler.Counts, error) {
	tickers, err := j.artifacts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	start, end := j.Window()

	var warmed, failed int64
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if _, err := j.history.History(ctx, ticker, start, end); err != nil {
			failed++
			if !errors.Is(err, contracts.ErrNoData) {
				j.logger.WithTicker(ticker).WithError(err).Warn("Warm-up fetch failed")
			}
			continue
		}
		warmed++
	}

	j.logger.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"warmed":  warmed,
		"failed":  failed,
	}).Info("Price cache warm-up completed")

	// 전부 실패하면 소스 장애로 보고 재시도
	if len(tickers) > 0 && warmed == 0 {
		return nil, fmt.Errorf("warm-up failed for all %d tickers: %w", len(tickers), contracts.ErrUpstreamData)
	}
	return scheduler.Counts{
		"tickers": int64(len(tickers)),
		"warmed":  warmed,
		"failed":  failed,
	}, nil
}
