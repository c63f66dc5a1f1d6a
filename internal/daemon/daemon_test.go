package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/internal/selection"
	"github.com/wonny/stockcast/internal/training"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	// cancel is invoked once len(sleeps) reaches stopAfter
	stopAfter int
	cancel    context.CancelFunc
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	stop := c.stopAfter > 0 && len(c.sleeps) >= c.stopAfter
	c.mu.Unlock()
	if stop && c.cancel != nil {
		c.cancel()
	}
	return ctx.Err()
}

type fakeSelector struct {
	tickers []string
	err     error
	calls   int
}

func (f *fakeSelector) Select(ctx context.Context, today time.Time, n int) ([]contracts.CandidateState, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]contracts.CandidateState, 0, n)
	for _, t := range f.tickers {
		if len(out) == n {
			break
		}
		out = append(out, contracts.CandidateState{Ticker: t})
	}
	return out, nil
}

type fakeTrainer struct {
	mu      sync.Mutex
	fail    map[string]error
	panicOn string
	block   string
	trained []string
}

func (f *fakeTrainer) TrainTicker(ctx context.Context, ticker string) (*training.Artifact, error) {
	f.mu.Lock()
	f.trained = append(f.trained, ticker)
	f.mu.Unlock()

	if ticker == f.panicOn {
		panic("boom")
	}
	if ticker == f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.fail[ticker]; err != nil {
		return nil, err
	}
	return &training.Artifact{Ticker: ticker}, nil
}

type fakeForecaster struct {
	mu       sync.Mutex
	fail     map[string]error
	horizons []int
	tickers  []string
	madeOn   []time.Time
}

func (f *fakeForecaster) ForecastOn(ctx context.Context, ticker string, horizon int, madeOn time.Time) (*contracts.ForecastRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickers = append(f.tickers, ticker)
	f.horizons = append(f.horizons, horizon)
	f.madeOn = append(f.madeOn, madeOn)
	if err := f.fail[ticker]; err != nil {
		return nil, err
	}
	return &contracts.ForecastRun{Ticker: ticker}, nil
}

type recordingRecorder struct {
	mu      sync.Mutex
	states  []State
	units   int
	batches []BatchSummary
}

func (r *recordingRecorder) StateChanged(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingRecorder) UnitFinished(contracts.Stage, error, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units++
}

func (r *recordingRecorder) BatchFinished(b BatchSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

func testConfig(t *testing.T) Config {
	t.Helper()
	quiet, err := ParseQuietWindow("23:00", "00:05")
	require.NoError(t, err)
	return Config{
		BatchSize:   5,
		Horizon:     12,
		UnitTimeout: time.Second,
		ShortSleep:  time.Minute,
		LongSleep:   30 * time.Minute,
		Quiet:       quiet,
		Location:    time.UTC,
	}
}

func newTestDaemon(cfg Config, sel Selector, trainer Trainer, fc Forecaster, clock Clock, opts ...Option) (*Daemon, *selection.MemoryStore) {
	store := selection.NewMemoryStore()
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(cfg, sel, store, trainer, fc, zerolog.Nop(), opts...), store
}

func TestRunOnce_FailingTickerDoesNotStopBatch(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}
	sel := &fakeSelector{tickers: []string{"AAA", "BBB", "CCC", "DDD", "EEE"}}
	trainer := &fakeTrainer{fail: map[string]error{"CCC": contracts.ErrInsufficientData}}
	fc := &fakeForecaster{}
	rec := &recordingRecorder{}

	d, store := newTestDaemon(testConfig(t), sel, trainer, fc, clock, WithRecorder(rec))

	cycle, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cycle.Summary)

	assert.Equal(t, []string{"AAA", "BBB", "DDD", "EEE"}, cycle.Summary.Processed)
	assert.Contains(t, cycle.Summary.Failed, "CCC")
	assert.Equal(t, []string{"AAA", "BBB", "DDD", "EEE"}, fc.tickers, "CCC never reaches forecasting")
	assert.True(t, cycle.Summary.Full)
	assert.Equal(t, 30*time.Minute, cycle.Sleep, "full batch sleeps long")

	today := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	for _, ticker := range []string{"AAA", "BBB", "DDD", "EEE"} {
		s, ok := store.Get(ticker)
		require.True(t, ok, ticker)
		assert.True(t, s.ProcessedOn(today), ticker)
	}

	ccc, ok := store.Get("CCC")
	require.True(t, ok)
	assert.False(t, ccc.ProcessedOn(today))
	assert.Equal(t, 1, ccc.FailuresOn(today))
	assert.Contains(t, ccc.LastError, "TRAINING")

	for _, h := range fc.horizons {
		assert.Equal(t, 12, h)
	}
	require.Len(t, rec.batches, 1)
	assert.Equal(t, cycle.Summary.ID, rec.batches[0].ID)
	assert.Equal(t, 9, rec.units, "5 trainings + 4 forecasts")
}

func TestRunOnce_ForecastFailureMarksFailed(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}
	sel := &fakeSelector{tickers: []string{"AAA"}}
	fc := &fakeForecaster{fail: map[string]error{"AAA": contracts.ErrNonFiniteForecast}}

	d, store := newTestDaemon(testConfig(t), sel, &fakeTrainer{}, fc, clock)

	cycle, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cycle.Summary.Processed)
	assert.False(t, cycle.Summary.Full)
	assert.Equal(t, time.Minute, cycle.Sleep, "partial batch sleeps short")

	s, ok := store.Get("AAA")
	require.True(t, ok)
	assert.Nil(t, s.ProcessedDate)
	assert.Contains(t, s.LastError, "FORECASTING")
}

func TestRunOnce_MadeOnFollowsDaemonZone(t *testing.T) {
	// 2026-02-17 20:00 UTC = 2026-02-18 05:00 KST
	clock := &fakeClock{now: time.Date(2026, 2, 17, 20, 0, 0, 0, time.UTC)}
	sel := &fakeSelector{tickers: []string{"AAA", "BBB"}}
	fc := &fakeForecaster{}

	cfg := testConfig(t)
	cfg.Location = time.FixedZone("KST", 9*60*60)
	d, store := newTestDaemon(cfg, sel, &fakeTrainer{}, fc, clock)

	cycle, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, cycle.Summary.Processed, 2)

	kstDay := time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC)
	assert.True(t, cycle.Summary.Day.Equal(kstDay))
	require.Len(t, fc.madeOn, 2)
	for i, madeOn := range fc.madeOn {
		assert.True(t, madeOn.Equal(kstDay), "made_on %s for %s", madeOn, fc.tickers[i])
		s, ok := store.Get(fc.tickers[i])
		require.True(t, ok)
		assert.True(t, s.ProcessedOn(madeOn), "processed_date and made_on share one day")
	}
}

func TestRunOnce_QuietHours(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wantPause bool
		wantSleep time.Duration
	}{
		{"before midnight", time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC), true, 35 * time.Minute},
		{"after midnight", time.Date(2026, 10, 17, 0, 2, 0, 0, time.UTC), true, 3 * time.Minute},
		{"window end is outside", time.Date(2026, 10, 17, 0, 5, 0, 0, time.UTC), false, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: tt.now}
			sel := &fakeSelector{}
			trainer := &fakeTrainer{}

			d, _ := newTestDaemon(testConfig(t), sel, trainer, &fakeForecaster{}, clock)

			cycle, err := d.RunOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantPause, cycle.Paused)
			assert.Equal(t, tt.wantSleep, cycle.Sleep)
			if tt.wantPause {
				assert.Zero(t, sel.calls, "no selection during quiet hours")
				assert.Equal(t, StatePaused, d.Snapshot().State)
			} else {
				assert.Equal(t, 1, sel.calls)
			}
		})
	}
}

func TestRun_StartsPausedThenResumes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{
		now:       time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC),
		stopAfter: 2,
		cancel:    cancel,
	}
	sel := &fakeSelector{tickers: []string{"AAA", "BBB"}}
	trainer := &fakeTrainer{}

	d, store := newTestDaemon(testConfig(t), sel, trainer, &fakeForecaster{}, clock)

	require.NoError(t, d.Run(ctx))

	require.Len(t, clock.sleeps, 2)
	assert.Equal(t, 35*time.Minute, clock.sleeps[0], "sleeps until the window ends")
	assert.Equal(t, time.Minute, clock.sleeps[1])
	assert.Equal(t, 1, sel.calls, "selection only after the window")
	assert.Equal(t, []string{"AAA", "BBB"}, trainer.trained)

	// 00:05 on the 17th
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	s, ok := store.Get("AAA")
	require.True(t, ok)
	assert.True(t, s.ProcessedOn(day))

	snap := d.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 1, snap.Cycles)
	require.NotNil(t, snap.LastBatch)
	assert.Len(t, snap.LastBatch.Processed, 2)
}

func TestRunOnce_UnitTimeout(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}
	sel := &fakeSelector{tickers: []string{"SLOW", "FAST"}}
	trainer := &fakeTrainer{block: "SLOW"}
	cfg := testConfig(t)
	cfg.UnitTimeout = 20 * time.Millisecond

	d, store := newTestDaemon(cfg, sel, trainer, &fakeForecaster{}, clock)

	cycle, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"FAST"}, cycle.Summary.Processed)

	s, ok := store.Get("SLOW")
	require.True(t, ok)
	assert.Equal(t, 1, s.Failures)
	assert.Contains(t, s.LastError, contracts.ErrUnitTimeout.Error())
}

func TestRunOnce_PanicIsContained(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}
	sel := &fakeSelector{tickers: []string{"BAD", "GOOD"}}
	trainer := &fakeTrainer{panicOn: "BAD"}

	d, store := newTestDaemon(testConfig(t), sel, trainer, &fakeForecaster{}, clock)

	cycle, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GOOD"}, cycle.Summary.Processed)

	s, ok := store.Get("BAD")
	require.True(t, ok)
	assert.Contains(t, s.LastError, "panic: boom")
}

func TestRunOnce_SelectionFailure(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}
	sel := &fakeSelector{err: errors.New("db down")}
	trainer := &fakeTrainer{}

	d, _ := newTestDaemon(testConfig(t), sel, trainer, &fakeForecaster{}, clock)

	cycle, err := d.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, time.Minute, cycle.Sleep)
	assert.Empty(t, trainer.trained)
}

func TestRunOnce_EmptySelection(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}

	d, _ := newTestDaemon(testConfig(t), &fakeSelector{}, &fakeTrainer{}, &fakeForecaster{}, clock)

	cycle, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cycle.Summary.Selected)
	assert.Equal(t, time.Minute, cycle.Sleep)
}

func TestUnitError_Stage(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}
	d, _ := newTestDaemon(testConfig(t), &fakeSelector{}, &fakeTrainer{}, &fakeForecaster{}, clock)

	err := d.runUnit(context.Background(), contracts.StageForecasting, "AAA", func(context.Context) error {
		return contracts.ErrNonFiniteForecast
	})

	var unitErr *contracts.UnitError
	require.ErrorAs(t, err, &unitErr)
	assert.Equal(t, contracts.StageForecasting, unitErr.Stage)
	assert.ErrorIs(t, err, contracts.ErrNonFiniteForecast)
}
