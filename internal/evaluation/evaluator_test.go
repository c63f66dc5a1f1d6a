package evaluation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/internal/modelconfig"
	"github.com/wonny/stockcast/internal/series"
	"github.com/wonny/stockcast/internal/training"
)

var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func closes(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)*0.25 + math.Sin(float64(i)/4)
	}
	return out
}

func newTrainer(t *testing.T) *training.Trainer {
	t.Helper()
	cfg := modelconfig.Default()
	cfg.Model.HiddenSize = 8
	cfg.Training.Epochs = 5
	cfg.Training.BatchSize = 8

	trainer, err := training.NewTrainer(cfg, 10, 5, training.NewFileStore(t.TempDir()), zerolog.Nop())
	require.NoError(t, err)
	return trainer
}

type fakeHistory struct {
	series *contracts.PriceSeries
	err    error
}

func (f *fakeHistory) History(ctx context.Context, ticker string, start, end time.Time) (*contracts.PriceSeries, error) {
	return f.series, f.err
}

func TestAPE(t *testing.T) {
	tests := []struct {
		name              string
		actual, predicted float64
		want              float64
	}{
		{"exact", 100, 100, 0},
		{"over", 100, 110, 10},
		{"under", 200, 150, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, APE(tt.actual, tt.predicted), 1e-9)
		})
	}

	assert.True(t, math.IsInf(APE(0, 1), 1))
}

func TestHoldout(t *testing.T) {
	s := series.TradingDays("AAPL", monday, closes(60))

	report, err := Holdout(context.Background(), newTrainer(t), s, 12)
	require.NoError(t, err)

	assert.Equal(t, 48, report.TrainPoints)
	require.Len(t, report.Days, 12)
	assert.Equal(t, s.Points[47].Date, report.ReferenceDate)
	assert.Equal(t, s.Points[47].Close, report.ReferencePrice)

	sum := 0.0
	for i, d := range report.Days {
		assert.Equal(t, i+1, d.HorizonDay)
		assert.Equal(t, s.Points[48+i].Close, d.Actual)
		assert.False(t, math.IsNaN(d.Predicted))
		assert.GreaterOrEqual(t, d.APE, 0.0)
		sum += d.APE
	}
	assert.InDelta(t, sum/12, report.MAPE, 1e-9)
}

func TestHoldout_TooShort(t *testing.T) {
	s := series.TradingDays("AAPL", monday, closes(20))

	_, err := Holdout(context.Background(), newTrainer(t), s, 12)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
}

func TestEvaluate(t *testing.T) {
	t.Run("bad horizon", func(t *testing.T) {
		e := NewEvaluator(newTrainer(t), &fakeHistory{}, monday, zerolog.Nop())
		_, err := e.Evaluate(context.Background(), "AAPL", 13)
		assert.Error(t, err)
	})

	t.Run("upstream failure", func(t *testing.T) {
		e := NewEvaluator(newTrainer(t), &fakeHistory{err: errors.New("timeout")}, monday, zerolog.Nop())
		_, err := e.Evaluate(context.Background(), "AAPL", 5)
		assert.ErrorIs(t, err, contracts.ErrUpstreamData)
	})

	t.Run("report", func(t *testing.T) {
		history := &fakeHistory{series: series.TradingDays("MSFT", monday, closes(40))}
		e := NewEvaluator(newTrainer(t), history, monday, zerolog.Nop())

		report, err := e.Evaluate(context.Background(), "msft", 5)
		require.NoError(t, err)
		assert.Equal(t, "MSFT", report.Ticker)
		assert.Len(t, report.Days, 5)
	})
}
