package series

import "math"

// Scaler min-max 정규화 (전체 학습 시계열에 한 번만 fit)
// 범위를 벗어난 값은 선형 외삽, 절대 clamp 하지 않음
type Scaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Fit computes the min and max of values
func Fit(values []float64) Scaler {
	if len(values) == 0 {
		return Scaler{Min: 0, Max: 1}
	}

	s := Scaler{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	return s
}

// span falls back to 1 for a flat series so the transform stays invertible
func (s Scaler) span() float64 {
	if d := s.Max - s.Min; d > 0 {
		return d
	}
	return 1
}

// Scale maps x into the fitted [0, 1] range
func (s Scaler) Scale(x float64) float64 {
	return (x - s.Min) / s.span()
}

// Unscale is the inverse of Scale
func (s Scaler) Unscale(y float64) float64 {
	return y*s.span() + s.Min
}

// ScaleAll returns a scaled copy of values
func (s Scaler) ScaleAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Scale(v)
	}
	return out
}
