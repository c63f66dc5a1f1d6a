package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/internal/series"
	"github.com/wonny/stockcast/internal/training"
)

// ArtifactLoader loads a trained artifact by ticker
type ArtifactLoader interface {
	Load(ctx context.Context, ticker string) (*training.Artifact, error)
}

// Forecaster runs the autoregressive rollout and persists the result
// ⭐ SSOT: 예측 생성은 여기서만 (artifact scaler 재사용, 절대 refit 하지 않음)
type Forecaster struct {
	artifacts ArtifactLoader
	history   contracts.PriceHistory
	store     contracts.ForecastStore
	log       zerolog.Logger
	now       func() time.Time
	loc       *time.Location
}

// NewForecaster creates a new forecaster
func NewForecaster(artifacts ArtifactLoader, history contracts.PriceHistory, store contracts.ForecastStore, log zerolog.Logger) *Forecaster {
	return &Forecaster{
		artifacts: artifacts,
		history:   history,
		store:     store,
		log:       log.With().Str("component", "forecast.forecaster").Logger(),
		now:       time.Now,
		loc:       time.Local,
	}
}

// WithLocation sets the zone whose calendar day becomes made_on
func (f *Forecaster) WithLocation(loc *time.Location) *Forecaster {
	if loc != nil {
		f.loc = loc
	}
	return f
}

// today is the current instant in the forecaster's zone
func (f *Forecaster) today() time.Time {
	return f.now().In(f.loc)
}

// LookbackDays is the calendar span fetched to seed a window of sequenceLength closes
func LookbackDays(sequenceLength int) int {
	return sequenceLength*2 + 30
}

// Forecast produces and persists a horizon-day forecast for ticker made on today's date.
func (f *Forecaster) Forecast(ctx context.Context, ticker string, horizon int) (*contracts.ForecastRun, error) {
	return f.ForecastOn(ctx, ticker, horizon, f.today())
}

// ForecastOn is Forecast with an explicit made_on day (calendar date of madeOn in its own zone).
// Nothing is persisted unless all horizon values are finite.
func (f *Forecaster) ForecastOn(ctx context.Context, ticker string, horizon int, madeOn time.Time) (*contracts.ForecastRun, error) {
	run, err := f.RolloutOn(ctx, ticker, horizon, madeOn)
	if err != nil {
		return nil, err
	}

	if err := f.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save forecast %s: %w", run.Ticker, err)
	}

	f.log.Info().
		Str("ticker", run.Ticker).
		Int("horizon", run.Horizon()).
		Float64("reference_price", run.ReferencePrice).
		Float64("last_prediction", run.Forecasts[len(run.Forecasts)-1].PredictedPrice).
		Msg("forecast saved")

	return run, nil
}

// Rollout computes a forecast run made on today's date without persisting it
func (f *Forecaster) Rollout(ctx context.Context, ticker string, horizon int) (*contracts.ForecastRun, error) {
	return f.RolloutOn(ctx, ticker, horizon, f.today())
}

// RolloutOn computes a forecast run made on madeOn's calendar date without persisting it
func (f *Forecaster) RolloutOn(ctx context.Context, ticker string, horizon int, madeOn time.Time) (*contracts.ForecastRun, error) {
	if horizon < 1 || horizon > contracts.MaxHorizon {
		return nil, fmt.Errorf("horizon must be in [1, %d], got %d", contracts.MaxHorizon, horizon)
	}
	ticker = strings.ToUpper(ticker)

	artifact, err := f.artifacts.Load(ctx, ticker)
	if err != nil {
		return nil, err
	}

	// history window는 warm-up job과 같은 zone 기준 (같은 cache key)
	now := f.today()
	seqLen := artifact.SequenceLength
	recent, err := f.history.History(ctx, ticker, now.AddDate(0, 0, -LookbackDays(seqLen)), now)
	if err != nil {
		if errors.Is(err, contracts.ErrUpstreamData) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w: %w", ticker, contracts.ErrUpstreamData, err)
	}
	if recent.Len() < seqLen {
		return nil, fmt.Errorf("%s: %d closes, need %d: %w", ticker, recent.Len(), seqLen, contracts.ErrInsufficientHistory)
	}

	window := recent.Tail(seqLen)
	return Rollout(artifact, window, horizon, contracts.DateOf(madeOn))
}

// Rollout seeds a ring with window (normalized by the artifact's scaler) and
// predicts horizon steps, feeding each normalized prediction back into the ring.
func Rollout(artifact *training.Artifact, window *contracts.PriceSeries, horizon int, madeOn time.Time) (*contracts.ForecastRun, error) {
	seqLen := artifact.SequenceLength
	if window.Len() != seqLen {
		return nil, fmt.Errorf("window has %d closes, model expects %d: %w", window.Len(), seqLen, contracts.ErrInsufficientHistory)
	}

	ring := NewRing(seqLen)
	closes := window.Closes()
	for _, c := range closes {
		ring.Push(artifact.Scaler.Scale(c))
	}

	ref, _ := window.Last()
	refPrice := ref.Close
	run := &contracts.ForecastRun{
		Ticker:          window.Ticker,
		MadeOn:          madeOn,
		ReferenceDate:   ref.Date,
		ReferencePrice:  refPrice,
		ReferenceWindow: closes,
		ModelTrainedAt:  artifact.TrainedAt,
		Forecasts:       make([]contracts.Forecast, 0, horizon),
	}

	target := ref.Date
	for step := 1; step <= horizon; step++ {
		next := artifact.Model.Predict(ring)
		price := artifact.Scaler.Unscale(next)
		if math.IsNaN(price) || math.IsInf(price, 0) {
			return nil, fmt.Errorf("%s day %d: %w", window.Ticker, step, contracts.ErrNonFiniteForecast)
		}

		target = series.NextBusinessDay(target)
		run.Forecasts = append(run.Forecasts, contracts.Forecast{
			Ticker:         window.Ticker,
			MadeOn:         madeOn,
			HorizonDay:     step,
			TargetDate:     target,
			PredictedPrice: price,
			ReferencePrice: &refPrice,
		})
		ring.Push(next)
	}

	return run, nil
}
