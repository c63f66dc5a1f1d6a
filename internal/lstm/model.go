package lstm

import (
	"fmt"
	"math"
	"math/rand"
)

// Sequence is a read-only ordered view of normalized inputs
type Sequence interface {
	Len() int
	At(i int) float64
}

// Slice adapts a []float64 to Sequence
type Slice []float64

func (s Slice) Len() int         { return len(s) }
func (s Slice) At(i int) float64 { return s[i] }

// Model 단일 레이어 LSTM + dense head (입력 차원 1)
// ⭐ SSOT: 파라미터는 Params 한 벡터에 평탄화 (W | b | Wy | by)
//
//	W  : [4H][1+H]  게이트 순서 i, f, g, o / 0열은 입력, 나머지는 h(t-1)
//	b  : [4H]
//	Wy : [H]
//	by : scalar
type Model struct {
	Hidden int       `json:"hidden"`
	Params []float64 `json:"params"`
}

// NumParams returns the flat parameter count for a hidden size
func NumParams(hidden int) int {
	return 4*hidden*(1+hidden) + 4*hidden + hidden + 1
}

// New creates a model with Xavier-uniform weights and forget-gate bias 1
func New(hidden int, seed int64) *Model {
	m := &Model{Hidden: hidden, Params: make([]float64, NumParams(hidden))}
	rng := rand.New(rand.NewSource(seed))

	w, b, wy, _ := m.views()
	limit := math.Sqrt(6.0 / float64(1+hidden+hidden))
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
	for j := hidden; j < 2*hidden; j++ {
		b[j] = 1
	}
	headLimit := math.Sqrt(6.0 / float64(hidden+1))
	for i := range wy {
		wy[i] = (rng.Float64()*2 - 1) * headLimit
	}
	return m
}

// Validate checks the parameter vector matches the hidden size
func (m *Model) Validate() error {
	if m.Hidden < 1 {
		return fmt.Errorf("hidden size must be positive, got %d", m.Hidden)
	}
	if want := NumParams(m.Hidden); len(m.Params) != want {
		return fmt.Errorf("expected %d params for hidden=%d, got %d", want, m.Hidden, len(m.Params))
	}
	return nil
}

// Clone returns a deep copy
func (m *Model) Clone() *Model {
	params := make([]float64, len(m.Params))
	copy(params, m.Params)
	return &Model{Hidden: m.Hidden, Params: params}
}

// views slices Params into W, b, Wy and by without copying
func (m *Model) views() (w, b, wy, by []float64) {
	return splitParams(m.Params, m.Hidden)
}

func splitParams(p []float64, hidden int) (w, b, wy, by []float64) {
	nw := 4 * hidden * (1 + hidden)
	nb := 4 * hidden
	w = p[:nw]
	b = p[nw : nw+nb]
	wy = p[nw+nb : nw+nb+hidden]
	by = p[nw+nb+hidden:]
	return
}

// Predict runs the sequence through the cell and returns the next normalized value
func (m *Model) Predict(seq Sequence) float64 {
	nh := m.Hidden
	w, b, wy, by := m.views()

	h := make([]float64, nh)
	c := make([]float64, nh)
	z := make([]float64, 4*nh)
	for t := 0; t < seq.Len(); t++ {
		gates(w, b, nh, seq.At(t), h, z)
		for j := 0; j < nh; j++ {
			ig := sigmoid(z[j])
			fg := sigmoid(z[nh+j])
			gg := math.Tanh(z[2*nh+j])
			og := sigmoid(z[3*nh+j])
			c[j] = fg*c[j] + ig*gg
			h[j] = og * math.Tanh(c[j])
		}
	}
	return dot(wy, h) + by[0]
}

// gates computes z = W·[x, h] + b
func gates(w, b []float64, nh int, x float64, h, z []float64) {
	cols := 1 + nh
	for r := 0; r < 4*nh; r++ {
		row := w[r*cols : (r+1)*cols]
		s := b[r] + row[0]*x
		for k := 0; k < nh; k++ {
			s += row[1+k] * h[k]
		}
		z[r] = s
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
