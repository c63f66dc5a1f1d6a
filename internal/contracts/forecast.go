package contracts

import "time"

// MaxHorizon 최대 예측 일수
const MaxHorizon = 12

// Forecast 예측 한 행 (lstm_predictions)
type Forecast struct {
	Ticker         string    `json:"ticker"`
	MadeOn         time.Time `json:"made_on"`     // 롤아웃 기준일
	HorizonDay     int       `json:"horizon_day"` // 1..12
	TargetDate     time.Time `json:"target_date"` // 기준일 이후 horizon_day번째 영업일
	PredictedPrice float64   `json:"predicted_price"`
	ReferencePrice *float64  `json:"reference_price,omitempty"`
}

// ForecastRun 티커/일자별 예측 묶음
// ⭐ SSOT: 예측 행은 항상 ForecastRun 단위로 전부 저장되거나 전부 버려짐
type ForecastRun struct {
	Ticker          string     `json:"ticker"`
	MadeOn          time.Time  `json:"made_on"`
	ReferenceDate   time.Time  `json:"reference_date"`
	ReferencePrice  float64    `json:"reference_price"`
	ReferenceWindow []float64  `json:"reference_window"`
	ModelTrainedAt  time.Time  `json:"model_trained_at"`
	Forecasts       []Forecast `json:"forecasts"`
}

// Horizon returns the number of forecast rows
func (r *ForecastRun) Horizon() int {
	return len(r.Forecasts)
}
