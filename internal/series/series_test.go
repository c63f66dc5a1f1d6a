package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockcast/internal/contracts"
)

var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func ramp(n int, from float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)
	}
	return out
}

func TestScaler_RoundTrip(t *testing.T) {
	s := Fit([]float64{101.25, 99.5, 130.75, 87.0})
	assert.Equal(t, 87.0, s.Min)
	assert.Equal(t, 130.75, s.Max)

	for _, x := range []float64{87.0, 99.5, 101.25, 115.3, 130.75} {
		assert.InDelta(t, x, s.Unscale(s.Scale(x)), 1e-6)
	}

	assert.InDelta(t, 0.0, s.Scale(87.0), 1e-12)
	assert.InDelta(t, 1.0, s.Scale(130.75), 1e-12)
}

func TestScaler_ExtrapolatesOutsideRange(t *testing.T) {
	s := Scaler{Min: 10, Max: 20}

	assert.InDelta(t, 1.5, s.Scale(25), 1e-12)
	assert.InDelta(t, -0.5, s.Scale(5), 1e-12)
	assert.InDelta(t, 30.0, s.Unscale(2), 1e-12)
}

func TestScaler_Monotonic(t *testing.T) {
	s := Fit([]float64{3, 9, 4})
	prev := math.Inf(-1)
	for x := 0.0; x < 12; x += 0.5 {
		y := s.Scale(x)
		assert.Greater(t, y, prev)
		prev = y
	}
}

func TestScaler_FlatSeries(t *testing.T) {
	s := Fit([]float64{42, 42, 42})
	assert.Equal(t, 0.0, s.Scale(42))
	assert.InDelta(t, 43.5, s.Unscale(s.Scale(43.5)), 1e-9)
	assert.False(t, math.IsNaN(s.Scale(41)))
}

func TestFitAndWindow_Count(t *testing.T) {
	tests := []struct {
		name   string
		points int
		seqLen int
		want   int
	}{
		{name: "one window", points: 11, seqLen: 10, want: 1},
		{name: "thirty points", points: 30, seqLen: 10, want: 20},
		{name: "long series", points: 300, seqLen: 60, want: 240},
		{name: "seq len one", points: 5, seqLen: 1, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := TradingDays("AAPL", monday, ramp(tt.points, 100))
			ds, err := FitAndWindow(s, tt.seqLen)
			require.NoError(t, err)

			assert.Equal(t, tt.want, ds.Len())
			assert.Len(t, ds.Targets, tt.want)
			for _, w := range ds.Windows {
				assert.Len(t, w, tt.seqLen)
			}
		})
	}
}

func TestFitAndWindow_TargetIsNextValue(t *testing.T) {
	s := TradingDays("MSFT", monday, ramp(15, 10))
	ds, err := FitAndWindow(s, 5)
	require.NoError(t, err)

	for i, w := range ds.Windows {
		assert.InDelta(t, ds.Scaler.Unscale(w[0]), 10+float64(i), 1e-9)
		assert.InDelta(t, ds.Scaler.Unscale(ds.Targets[i]), 10+float64(i+5), 1e-9)
	}
}

func TestFitAndWindow_InsufficientData(t *testing.T) {
	tests := []struct {
		name   string
		points int
		seqLen int
	}{
		{name: "fewer than sequence", points: 5, seqLen: 10},
		{name: "exactly sequence", points: 10, seqLen: 10},
		{name: "empty", points: 0, seqLen: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := TradingDays("X", monday, ramp(tt.points, 1))
			_, err := FitAndWindow(s, tt.seqLen)
			assert.True(t, errors.Is(err, contracts.ErrInsufficientData))
		})
	}
}

func TestFitAndWindow_ExcludesWindowsAcrossGap(t *testing.T) {
	first := TradingDays("GAP", monday, ramp(8, 1))
	second := TradingDays("GAP", monday.AddDate(0, 2, 0), ramp(8, 50))
	s := &contracts.PriceSeries{Ticker: "GAP", Points: append(first.Points, second.Points...)}

	ds, err := FitAndWindow(s, 5)
	require.NoError(t, err)

	// 8-5 windows per segment
	assert.Equal(t, 6, ds.Len())
	for i, w := range ds.Windows {
		lo := ds.Scaler.Unscale(w[0])
		target := ds.Scaler.Unscale(ds.Targets[i])
		sameSegment := (lo < 50 && target < 50) || (lo >= 50 && target >= 50)
		assert.True(t, sameSegment, "window %d spans the gap", i)
	}
}

func TestFitAndWindow_NoSegmentLongEnough(t *testing.T) {
	var points []contracts.PricePoint
	for i := 0; i < 12; i++ {
		// 두 달 간격 → 모든 점이 각자 세그먼트
		points = append(points, contracts.PricePoint{Date: monday.AddDate(0, 2*i, 0), Close: float64(i + 1)})
	}

	_, err := FitAndWindow(&contracts.PriceSeries{Ticker: "SPARSE", Points: points}, 3)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
}

func TestSegments(t *testing.T) {
	s := TradingDays("A", monday, ramp(10, 1))
	segs := Segments(s.Points, DefaultMaxGapDays)
	require.Len(t, segs, 1)
	assert.Equal(t, 10, segs[0].Len())

	points := append(s.Points, contracts.PricePoint{Date: s.Points[9].Date.AddDate(0, 0, 6), Close: 5})
	segs = Segments(points, DefaultMaxGapDays)
	require.Len(t, segs, 2)
	assert.Equal(t, Segment{Start: 10, End: 11}, segs[1])

	assert.Nil(t, Segments(nil, 5))
}

func TestDataset_Recent(t *testing.T) {
	ds, err := FitAndWindow(TradingDays("A", monday, ramp(30, 1)), 10)
	require.NoError(t, err)

	recent := ds.Recent(5)
	assert.Equal(t, 5, recent.Len())
	assert.Equal(t, ds.Targets[19], recent.Targets[4])
	assert.Same(t, ds, ds.Recent(0))
}

func TestNextBusinessDay(t *testing.T) {
	friday := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Monday, NextBusinessDay(friday).Weekday())
	assert.Equal(t, 12, NextBusinessDay(friday).Day())
	assert.Equal(t, 6, NextBusinessDay(monday).Day())
}
