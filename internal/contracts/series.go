package contracts

import "time"

// PricePoint 일봉 종가 한 개
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is a ticker's daily close history
// ⭐ SSOT: 날짜 오름차순, 중복 날짜 없음, 휴장일은 0으로 채우지 않고 생략
type PriceSeries struct {
	Ticker string       `json:"ticker"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of points
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Closes returns the close prices in order
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, s.Len())
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// Last returns the most recent point
func (s *PriceSeries) Last() (PricePoint, bool) {
	if s.Len() == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Tail returns a series holding at most the last n points
func (s *PriceSeries) Tail(n int) *PriceSeries {
	if n >= s.Len() {
		return s
	}
	return &PriceSeries{Ticker: s.Ticker, Points: s.Points[s.Len()-n:]}
}
