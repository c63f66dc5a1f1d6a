package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/internal/forecast"
	"github.com/wonny/stockcast/internal/training"
)

// Fitter trains an artifact in memory without persisting it
type Fitter interface {
	Fit(ctx context.Context, ticker string, s *contracts.PriceSeries) (*training.Artifact, error)
	SequenceLength() int
}

// DayError compares one forecast day with the realized close
type DayError struct {
	HorizonDay int       `json:"horizon_day"`
	Date       time.Time `json:"date"`
	Actual     float64   `json:"actual"`
	Predicted  float64   `json:"predicted"`
	APE        float64   `json:"ape"` // absolute percentage error, %
}

// Report is a holdout backtest of one ticker
type Report struct {
	Ticker         string     `json:"ticker"`
	Horizon        int        `json:"horizon"`
	TrainPoints    int        `json:"train_points"`
	ReferenceDate  time.Time  `json:"reference_date"`
	ReferencePrice float64    `json:"reference_price"`
	Days           []DayError `json:"days"`
	MAPE           float64    `json:"mape"`
	FinalLoss      float64    `json:"final_loss"`
	EpochsRun      int        `json:"epochs_run"`
}

// Evaluator holds out the last horizon closes, trains on the rest and
// scores the rollout against the held-out closes
type Evaluator struct {
	fitter       Fitter
	history      contracts.PriceHistory
	historyStart time.Time
	log          zerolog.Logger
	now          func() time.Time
}

// NewEvaluator creates an evaluator
func NewEvaluator(fitter Fitter, history contracts.PriceHistory, historyStart time.Time, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		fitter:       fitter,
		history:      history,
		historyStart: historyStart,
		log:          log.With().Str("component", "evaluation").Logger(),
		now:          time.Now,
	}
}

// Evaluate runs a holdout backtest; nothing is persisted
func (e *Evaluator) Evaluate(ctx context.Context, ticker string, horizon int) (*Report, error) {
	if horizon < 1 || horizon > contracts.MaxHorizon {
		return nil, fmt.Errorf("horizon must be in [1, %d], got %d", contracts.MaxHorizon, horizon)
	}
	ticker = strings.ToUpper(ticker)

	full, err := e.history.History(ctx, ticker, e.historyStart, e.now())
	if err != nil {
		if errors.Is(err, contracts.ErrUpstreamData) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("fetch %s history: %w: %w", ticker, contracts.ErrUpstreamData, err)
	}

	report, err := Holdout(ctx, e.fitter, full, horizon)
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("ticker", ticker).
		Int("horizon", horizon).
		Float64("mape", report.MAPE).
		Msg("evaluation finished")
	return report, nil
}

// Holdout splits s into train / last-horizon, fits, rolls out and scores
func Holdout(ctx context.Context, fitter Fitter, s *contracts.PriceSeries, horizon int) (*Report, error) {
	seqLen := fitter.SequenceLength()
	// 학습 윈도우 최소 1개 + 홀드아웃
	if s.Len() < seqLen+1+horizon {
		return nil, fmt.Errorf("%s: %d closes, need %d for a %d-day holdout: %w",
			s.Ticker, s.Len(), seqLen+1+horizon, horizon, contracts.ErrInsufficientData)
	}

	cut := s.Len() - horizon
	train := &contracts.PriceSeries{Ticker: s.Ticker, Points: s.Points[:cut]}
	actual := s.Points[cut:]

	artifact, err := fitter.Fit(ctx, s.Ticker, train)
	if err != nil {
		return nil, err
	}

	ref, _ := train.Last()
	run, err := forecast.Rollout(artifact, train.Tail(seqLen), horizon, ref.Date)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Ticker:         s.Ticker,
		Horizon:        horizon,
		TrainPoints:    train.Len(),
		ReferenceDate:  run.ReferenceDate,
		ReferencePrice: run.ReferencePrice,
		Days:           make([]DayError, 0, horizon),
		FinalLoss:      artifact.FinalLoss,
		EpochsRun:      artifact.EpochsRun,
	}

	// 예측일은 영업일 기준, 실제값은 holdout 순서 기준으로 매칭
	total := 0.0
	for i, f := range run.Forecasts {
		a := actual[i]
		ape := APE(a.Close, f.PredictedPrice)
		report.Days = append(report.Days, DayError{
			HorizonDay: f.HorizonDay,
			Date:       a.Date,
			Actual:     a.Close,
			Predicted:  f.PredictedPrice,
			APE:        ape,
		})
		total += ape
	}
	report.MAPE = total / float64(len(report.Days))

	return report, nil
}

// APE returns |actual - predicted| / |actual| * 100
func APE(actual, predicted float64) float64 {
	if actual == 0 {
		return math.Inf(1)
	}
	return math.Abs(actual-predicted) / math.Abs(actual) * 100
}
