package daemon

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/internal/training"
)

// State 데몬 제어 루프 상태
type State string

const (
	StateIdle        State = "IDLE"
	StateSelecting   State = "SELECTING"
	StateTraining    State = "TRAINING"
	StateForecasting State = "FORECASTING"
	StatePaused      State = "PAUSED"
)

// Selector picks the tickers for a cycle
type Selector interface {
	Select(ctx context.Context, today time.Time, n int) ([]contracts.CandidateState, error)
}

// Trainer trains and persists one ticker's model
type Trainer interface {
	TrainTicker(ctx context.Context, ticker string) (*training.Artifact, error)
}

// Forecaster produces and persists one ticker's forecast made on the batch day
type Forecaster interface {
	ForecastOn(ctx context.Context, ticker string, horizon int, madeOn time.Time) (*contracts.ForecastRun, error)
}

// Recorder receives loop telemetry (prometheus in production)
type Recorder interface {
	StateChanged(state State)
	UnitFinished(stage contracts.Stage, err error, elapsed time.Duration)
	BatchFinished(summary BatchSummary)
}

type nopRecorder struct{}

func (nopRecorder) StateChanged(State) {}

func (nopRecorder) UnitFinished(contracts.Stage, error, time.Duration) {}

func (nopRecorder) BatchFinished(BatchSummary) {}

// Config 제어 루프 설정
type Config struct {
	BatchSize   int
	Horizon     int
	UnitTimeout time.Duration
	ShortSleep  time.Duration
	LongSleep   time.Duration
	Quiet       QuietWindow
	Location    *time.Location
}

// BatchSummary 한 사이클 결과
type BatchSummary struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Day        time.Time         `json:"day"`
	Selected   []string          `json:"selected"`
	Processed  []string          `json:"processed"`
	Failed     map[string]string `json:"failed,omitempty"` // ticker → error
	Full       bool              `json:"full"`
	Paused     bool              `json:"paused"` // quiet hours cut the batch short
}

// Snapshot is a point-in-time view for the ops server
type Snapshot struct {
	State     State         `json:"state"`
	Ticker    string        `json:"ticker,omitempty"`
	BatchID   string        `json:"batch_id,omitempty"`
	Cycles    int           `json:"cycles"`
	LastBatch *BatchSummary `json:"last_batch,omitempty"`
	NextWake  time.Time     `json:"next_wake,omitempty"`
	Quiet     string        `json:"quiet_hours"`
}

// Cycle is the outcome of RunOnce
type Cycle struct {
	Summary *BatchSummary
	Paused  bool
	Sleep   time.Duration
}

// Daemon is the scheduling control loop
// ⭐ SSOT: IDLE → SELECTING → TRAINING → FORECASTING → (SELECTING | PAUSED) → IDLE
type Daemon struct {
	cfg        Config
	selector   Selector
	candidates contracts.CandidateStore
	trainer    Trainer
	forecaster Forecaster
	clock      Clock
	recorder   Recorder
	log        zerolog.Logger

	mu   sync.RWMutex
	snap Snapshot
}

// Option customizes a Daemon
type Option func(*Daemon)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(d *Daemon) { d.clock = c }
}

// WithRecorder attaches a telemetry recorder
func WithRecorder(r Recorder) Option {
	return func(d *Daemon) { d.recorder = r }
}

// New creates a daemon
func New(cfg Config, selector Selector, candidates contracts.CandidateStore, trainer Trainer, forecaster Forecaster, log zerolog.Logger, opts ...Option) *Daemon {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	if cfg.Horizon < 1 {
		cfg.Horizon = contracts.MaxHorizon
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = 20 * time.Minute
	}
	d := &Daemon{
		cfg:        cfg,
		selector:   selector,
		candidates: candidates,
		trainer:    trainer,
		forecaster: forecaster,
		clock:      SystemClock{},
		recorder:   nopRecorder{},
		log:        log.With().Str("component", "daemon").Logger(),
		snap:       Snapshot{State: StateIdle, Quiet: cfg.Quiet.String()},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Snapshot returns the current state
func (d *Daemon) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := d.snap
	if s.LastBatch != nil {
		b := *s.LastBatch
		s.LastBatch = &b
	}
	return s
}

func (d *Daemon) setState(state State, ticker string) {
	d.mu.Lock()
	d.snap.State = state
	d.snap.Ticker = ticker
	d.mu.Unlock()
	d.recorder.StateChanged(state)
}

// Run loops until ctx is cancelled
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info().
		Int("batch_size", d.cfg.BatchSize).
		Str("quiet_hours", d.cfg.Quiet.String()).
		Str("timezone", d.cfg.Location.String()).
		Msg("daemon started")

	for {
		cycle, err := d.RunOnce(ctx)
		if ctx.Err() != nil {
			d.setState(StateIdle, "")
			d.log.Info().Msg("daemon stopped")
			return nil
		}
		if err != nil {
			d.log.Error().Err(err).Msg("cycle failed")
		}

		state := StateIdle
		if cycle.Paused {
			state = StatePaused
		}
		d.setState(state, "")
		d.mu.Lock()
		d.snap.NextWake = d.clock.Now().Add(cycle.Sleep)
		d.mu.Unlock()

		if err := d.clock.Sleep(ctx, cycle.Sleep); err != nil {
			d.setState(StateIdle, "")
			d.log.Info().Msg("daemon stopped")
			return nil
		}
	}
}

// RunOnce executes a single cycle. Per-ticker failures never surface here;
// only a selection failure is returned (with a short sleep in the Cycle).
func (d *Daemon) RunOnce(ctx context.Context) (Cycle, error) {
	now := d.clock.Now().In(d.cfg.Location)
	if d.cfg.Quiet.Contains(now) {
		remaining := d.cfg.Quiet.Remaining(now)
		d.setState(StatePaused, "")
		d.log.Info().Dur("sleep", remaining).Msg("quiet hours, pausing")
		return Cycle{Paused: true, Sleep: remaining}, nil
	}

	batchID := uuid.NewString()
	today := contracts.DateOf(now)
	log := d.log.With().Str("batch_id", batchID).Logger()

	d.mu.Lock()
	d.snap.BatchID = batchID
	d.snap.Cycles++
	d.mu.Unlock()

	d.setState(StateSelecting, "")
	selected, err := d.selector.Select(ctx, today, d.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Str("state", string(StateSelecting)).Msg("candidate selection failed")
		return Cycle{Sleep: d.cfg.ShortSleep}, fmt.Errorf("select: %w", err)
	}

	summary := &BatchSummary{
		ID:        batchID,
		StartedAt: now,
		Day:       today,
		Selected:  make([]string, 0, len(selected)),
		Processed: make([]string, 0, len(selected)),
		Failed:    make(map[string]string),
		Full:      len(selected) >= d.cfg.BatchSize,
	}
	for _, c := range selected {
		summary.Selected = append(summary.Selected, c.Ticker)
	}
	log.Info().Strs("tickers", summary.Selected).Msg("batch selected")

	for _, c := range selected {
		if ctx.Err() != nil {
			break
		}
		// 배치 도중에도 quiet hours 진입 시 중단
		if at := d.clock.Now().In(d.cfg.Location); d.cfg.Quiet.Contains(at) {
			summary.Paused = true
			log.Info().Str("ticker", c.Ticker).Msg("quiet hours reached, deferring rest of batch")
			break
		}

		if err := d.processTicker(ctx, log, c.Ticker, today); err != nil {
			summary.Failed[c.Ticker] = err.Error()
			continue
		}
		summary.Processed = append(summary.Processed, c.Ticker)
	}

	summary.FinishedAt = d.clock.Now().In(d.cfg.Location)
	d.mu.Lock()
	d.snap.LastBatch = summary
	d.mu.Unlock()
	d.recorder.BatchFinished(*summary)

	log.Info().
		Int("selected", len(summary.Selected)).
		Int("processed", len(summary.Processed)).
		Int("failed", len(summary.Failed)).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("batch finished")

	cycle := Cycle{Summary: summary, Sleep: d.cfg.ShortSleep}
	switch {
	case summary.Paused:
		at := d.clock.Now().In(d.cfg.Location)
		cycle.Paused = true
		cycle.Sleep = d.cfg.Quiet.Remaining(at)
	case summary.Full:
		cycle.Sleep = d.cfg.LongSleep
	}
	return cycle, nil
}

// processTicker runs TRAINING then FORECASTING; any failure is recorded and returned
func (d *Daemon) processTicker(ctx context.Context, log zerolog.Logger, ticker string, today time.Time) error {
	d.setState(StateTraining, ticker)
	err := d.runUnit(ctx, contracts.StageTraining, ticker, func(uctx context.Context) error {
		_, err := d.trainer.TrainTicker(uctx, ticker)
		return err
	})

	if err == nil {
		d.setState(StateForecasting, ticker)
		// 예측 실패 시에도 새로 학습된 artifact는 유지
		// ⭐ SSOT: made_on = processed_date (daemon zone 기준 날짜)
		err = d.runUnit(ctx, contracts.StageForecasting, ticker, func(uctx context.Context) error {
			_, err := d.forecaster.ForecastOn(uctx, ticker, d.cfg.Horizon, today)
			return err
		})
	}

	if err != nil {
		stage := contracts.StageTraining
		var unitErr *contracts.UnitError
		if errors.As(err, &unitErr) {
			stage = unitErr.Stage
		}
		log.Error().Err(err).Str("ticker", ticker).Str("state", string(stage)).Msg("ticker failed")

		// 종료 중이어도 실패 기록은 남김
		markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if markErr := d.candidates.MarkFailed(markCtx, ticker, today, err.Error()); markErr != nil {
			log.Error().Err(markErr).Str("ticker", ticker).Msg("failed to record failure")
		}
		return err
	}

	if err := d.candidates.MarkProcessed(ctx, ticker, today); err != nil {
		log.Error().Err(err).Str("ticker", ticker).Str("state", string(StateForecasting)).Msg("failed to mark processed")
		return err
	}
	log.Info().Str("ticker", ticker).Msg("ticker processed")
	return nil
}

// runUnit runs fn in its own goroutine bounded by UnitTimeout; panics become errors
func (d *Daemon) runUnit(ctx context.Context, stage contracts.Stage, ticker string, fn func(context.Context) error) error {
	start := time.Now()
	uctx, cancel := context.WithTimeout(ctx, d.cfg.UnitTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error().Str("ticker", ticker).Str("stack", string(debug.Stack())).Msg("unit panicked")
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(uctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-uctx.Done():
		err = uctx.Err()
	}
	// 부모 ctx가 살아있는데 unit ctx만 만료되면 타임아웃
	if err != nil && ctx.Err() == nil && errors.Is(uctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("after %s: %w", d.cfg.UnitTimeout, contracts.ErrUnitTimeout)
	}

	d.recorder.UnitFinished(stage, err, time.Since(start))
	if err != nil {
		return &contracts.UnitError{Ticker: ticker, Stage: stage, Err: err}
	}
	return nil
}
