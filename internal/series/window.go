package series

import (
	"fmt"
	"time"

	"github.com/wonny/stockcast/internal/contracts"
)

// DefaultMaxGapDays 주말과 연휴는 허용하는 최대 달력일 간격
const DefaultMaxGapDays = 5

// Dataset 학습용 입력 윈도우와 타깃 (모두 정규화된 값)
type Dataset struct {
	Windows [][]float64
	Targets []float64
	Scaler  Scaler
}

// Len returns the number of windows
func (d *Dataset) Len() int {
	return len(d.Windows)
}

// Recent keeps only the last n windows
func (d *Dataset) Recent(n int) *Dataset {
	if n <= 0 || n >= d.Len() {
		return d
	}
	start := d.Len() - n
	return &Dataset{Windows: d.Windows[start:], Targets: d.Targets[start:], Scaler: d.Scaler}
}

// Windower slices a price series into fixed-length training windows
// ⭐ SSOT: 윈도우 생성/정규화는 여기서만
type Windower struct {
	SequenceLength int
	MaxGapDays     int
}

// NewWindower creates a windower; maxGapDays <= 0 uses DefaultMaxGapDays
func NewWindower(sequenceLength, maxGapDays int) *Windower {
	if maxGapDays <= 0 {
		maxGapDays = DefaultMaxGapDays
	}
	return &Windower{SequenceLength: sequenceLength, MaxGapDays: maxGapDays}
}

// FitAndWindow is a shortcut for NewWindower(sequenceLength, DefaultMaxGapDays).FitAndWindow
func FitAndWindow(s *contracts.PriceSeries, sequenceLength int) (*Dataset, error) {
	return NewWindower(sequenceLength, DefaultMaxGapDays).FitAndWindow(s)
}

// FitAndWindow fits the scaler on the whole series and builds windows with step 1.
// Windows whose span (inputs + target) crosses a data gap are excluded.
func (w *Windower) FitAndWindow(s *contracts.PriceSeries) (*Dataset, error) {
	if w.SequenceLength < 1 {
		return nil, fmt.Errorf("sequence length must be positive, got %d", w.SequenceLength)
	}
	if s.Len() <= w.SequenceLength {
		return nil, fmt.Errorf("%d points for sequence length %d: %w", s.Len(), w.SequenceLength, contracts.ErrInsufficientData)
	}

	closes := s.Closes()
	scaler := Fit(closes)
	scaled := scaler.ScaleAll(closes)

	ds := &Dataset{Scaler: scaler}
	for _, seg := range Segments(s.Points, w.MaxGapDays) {
		// 세그먼트 길이 n → n-S 개 윈도우
		for start := seg.Start; start+w.SequenceLength < seg.End; start++ {
			window := make([]float64, w.SequenceLength)
			copy(window, scaled[start:start+w.SequenceLength])
			ds.Windows = append(ds.Windows, window)
			ds.Targets = append(ds.Targets, scaled[start+w.SequenceLength])
		}
	}

	if ds.Len() == 0 {
		return nil, fmt.Errorf("no contiguous segment longer than %d points: %w", w.SequenceLength, contracts.ErrInsufficientData)
	}
	return ds, nil
}

// Segment is a half-open index range [Start, End) of contiguous points
type Segment struct {
	Start int
	End   int
}

// Len returns the number of points in the segment
func (s Segment) Len() int {
	return s.End - s.Start
}

// Segments splits points at every gap wider than maxGapDays calendar days
func Segments(points []contracts.PricePoint, maxGapDays int) []Segment {
	if len(points) == 0 {
		return nil
	}

	maxGap := time.Duration(maxGapDays) * 24 * time.Hour
	segments := make([]Segment, 0, 1)
	start := 0
	for i := 1; i < len(points); i++ {
		if points[i].Date.Sub(points[i-1].Date) > maxGap {
			segments = append(segments, Segment{Start: start, End: i})
			start = i
		}
	}
	return append(segments, Segment{Start: start, End: len(points)})
}

// TradingDays builds a series of consecutive weekdays starting at start
func TradingDays(ticker string, start time.Time, closes []float64) *contracts.PriceSeries {
	s := &contracts.PriceSeries{Ticker: ticker, Points: make([]contracts.PricePoint, 0, len(closes))}
	d := start
	for _, c := range closes {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		s.Points = append(s.Points, contracts.PricePoint{Date: d, Close: c})
		d = d.AddDate(0, 0, 1)
	}
	return s
}

// NextBusinessDay returns the first weekday strictly after d
func NextBusinessDay(d time.Time) time.Time {
	next := d.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
