package commands

import (
	"fmt"
	"time"

	"github.com/wonny/stockcast/internal/analysis"
	"github.com/wonny/stockcast/internal/daemon"
	"github.com/wonny/stockcast/internal/evaluation"
	"github.com/wonny/stockcast/internal/external/yahoo"
	"github.com/wonny/stockcast/internal/forecast"
	"github.com/wonny/stockcast/internal/modelconfig"
	"github.com/wonny/stockcast/internal/pricehistory"
	"github.com/wonny/stockcast/internal/selection"
	"github.com/wonny/stockcast/internal/training"
	"github.com/wonny/stockcast/pkg/config"
	"github.com/wonny/stockcast/pkg/database"
	"github.com/wonny/stockcast/pkg/httputil"
	"github.com/wonny/stockcast/pkg/logger"
	"github.com/wonny/stockcast/pkg/redis"
)

// app holds the wired dependency graph shared by all commands
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client

	history    *pricehistory.Accessor
	artifacts  *training.FileStore
	trainer    *training.Trainer
	training   *training.Service
	forecaster *forecast.Forecaster
	forecasts  *forecast.Repository
	candidates *selection.Repository
	selector   *selection.Selector
	evaluator  *evaluation.Evaluator
}

// newApp loads config and connects to PostgreSQL and (optionally) Redis
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Redis (price / mention cache); unreachable Redis degrades to no cache
	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		cfg.Redis.Enabled = false
		rc, _ = redis.New(cfg)
	}

	a := &app{cfg: cfg, log: log, db: db, redis: rc}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg := a.cfg

	// Price source
	httpClient := httputil.New(cfg, a.log).
		WithRateLimiter(redis.NewRateLimiter(a.redis, "ratelimit"), redis.YahooRateLimit)
	source := yahoo.NewClient(httpClient, a.log, cfg.PriceSource.BaseURL, cfg.PriceSource.RequestsPerSec)
	a.history = pricehistory.NewAccessor(source, redis.NewCache(a.redis, "stockcast"), cfg.PriceSource.CacheTTL, a.log.Component("pricehistory"))

	// Training
	modelCfg, err := modelconfig.LoadOrDefault(cfg.Forecast.ModelConfigPath)
	if err != nil {
		return fmt.Errorf("load model config: %w", err)
	}
	for _, w := range modelconfig.Warn(modelCfg) {
		a.log.WithFields(map[string]interface{}{
			"code":    w.Code,
			"message": w.Message,
		}).Warn("Model config warning")
	}

	a.artifacts = training.NewFileStore(cfg.Forecast.ModelDir)
	a.trainer, err = training.NewTrainer(modelCfg, cfg.Forecast.SequenceLength, cfg.Forecast.MaxGapDays, a.artifacts, a.log.Component("trainer"))
	if err != nil {
		return fmt.Errorf("create trainer: %w", err)
	}
	a.training = training.NewService(a.trainer, a.history, cfg.Forecast.HistoryStart, a.log.Zerolog())
	a.evaluator = evaluation.NewEvaluator(a.trainer, a.history, cfg.Forecast.HistoryStart, a.log.Zerolog())

	// Forecasting
	a.forecasts = forecast.NewRepository(a.db.Pool)
	// made_on은 daemon과 같은 zone 기준
	loc, err := cfg.Daemon.Location()
	if err != nil {
		return fmt.Errorf("daemon timezone: %w", err)
	}
	a.forecaster = forecast.NewForecaster(a.artifacts, a.history, a.forecasts, a.log.Zerolog()).WithLocation(loc)

	// Selection
	a.candidates = selection.NewRepository(a.db.Pool)
	mentions := analysis.NewRepository(a.db.Pool, redis.NewCache(a.redis, "stockcast"))
	a.selector = selection.NewSelector(a.candidates, mentions, nil, selection.Config{
		MentionWindowDays: cfg.Daemon.MentionWindowDays,
		MentionWeight:     cfg.Daemon.MentionWeight,
		MaxDailyFailures:  cfg.Daemon.MaxDailyFailures,
	}, a.log)

	return nil
}

// daemonConfig translates env config into the control loop config
func (a *app) daemonConfig() (daemon.Config, error) {
	loc, err := a.cfg.Daemon.Location()
	if err != nil {
		return daemon.Config{}, err
	}
	quiet, err := daemon.ParseQuietWindow(a.cfg.Daemon.QuietStart, a.cfg.Daemon.QuietEnd)
	if err != nil {
		return daemon.Config{}, err
	}
	return daemon.Config{
		BatchSize:   a.cfg.Daemon.BatchSize,
		Horizon:     a.cfg.Forecast.Horizon,
		UnitTimeout: a.cfg.Daemon.UnitTimeout,
		ShortSleep:  a.cfg.Daemon.ShortSleep,
		LongSleep:   a.cfg.Daemon.LongSleep,
		Quiet:       quiet,
		Location:    loc,
	}, nil
}

// today returns the calendar date in the daemon timezone
func (a *app) today() time.Time {
	loc, err := a.cfg.Daemon.Location()
	if err != nil {
		loc = time.Local
	}
	return time.Now().In(loc)
}

// Close releases connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
