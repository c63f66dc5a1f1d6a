package lstm

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockcast/internal/contracts"
)

func sineDataset(n, steps int) ([][]float64, []float64) {
	series := make([]float64, n+steps)
	for i := range series {
		series[i] = 0.5 + 0.4*math.Sin(float64(i)/4)
	}
	windows := make([][]float64, n)
	targets := make([]float64, n)
	for i := 0; i < n; i++ {
		windows[i] = series[i : i+steps]
		targets[i] = series[i+steps]
	}
	return windows, targets
}

type ring struct {
	buf   []float64
	start int
}

func (r ring) Len() int         { return len(r.buf) }
func (r ring) At(i int) float64 { return r.buf[(r.start+i)%len(r.buf)] }

func TestNew(t *testing.T) {
	m := New(4, 7)
	require.NoError(t, m.Validate())
	assert.Len(t, m.Params, NumParams(4))
	assert.Equal(t, 4*4*5+16+4+1, NumParams(4))

	// forget gate bias
	_, b, _, _ := m.views()
	assert.Equal(t, []float64{0, 0, 0, 0, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0}, b)

	assert.Equal(t, m.Params, New(4, 7).Params)
	assert.NotEqual(t, m.Params, New(4, 8).Params)
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Model{Hidden: 0}).Validate())
	assert.Error(t, (&Model{Hidden: 2, Params: make([]float64, 3)}).Validate())
	assert.NoError(t, (&Model{Hidden: 2, Params: make([]float64, NumParams(2))}).Validate())
}

func TestPredict_SequenceViews(t *testing.T) {
	m := New(5, 1)
	values := []float64{0.1, 0.4, 0.35, 0.8, 0.6}

	want := m.Predict(Slice(values))
	assert.False(t, math.IsNaN(want))

	// 회전된 버퍼도 같은 순서로 읽히면 결과 동일
	rotated := ring{buf: []float64{0.8, 0.6, 0.1, 0.4, 0.35}, start: 2}
	assert.Equal(t, want, m.Predict(rotated))
}

func TestModel_JSONRoundTrip(t *testing.T) {
	m := New(3, 11)
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var loaded Model
	require.NoError(t, json.Unmarshal(data, &loaded))
	require.NoError(t, loaded.Validate())

	seq := Slice{0.2, 0.3, 0.25}
	assert.Equal(t, m.Predict(seq), loaded.Predict(seq))
}

func TestBackprop_MatchesNumericalGradient(t *testing.T) {
	m := New(3, 42)
	windows, targets := sineDataset(3, 4)
	batch := []int{0, 1, 2}

	grad := make([]float64, len(m.Params))
	m.lossAndGrad(&workspace{}, windows, targets, batch, grad)

	const eps = 1e-6
	for i := range m.Params {
		orig := m.Params[i]
		m.Params[i] = orig + eps
		up := m.Loss(windows, targets)
		m.Params[i] = orig - eps
		down := m.Loss(windows, targets)
		m.Params[i] = orig

		numeric := (up - down) / (2 * eps)
		assert.InDelta(t, numeric, grad[i], 1e-6, "param %d", i)
	}
}

func TestFit_ReducesLoss(t *testing.T) {
	windows, targets := sineDataset(100, 8)
	m := New(8, 3)
	before := m.Loss(windows, targets)

	epochs := 0
	hist, err := Fit(context.Background(), m, windows, targets, TrainConfig{
		Epochs:       30,
		BatchSize:    16,
		LearningRate: 0.01,
		Patience:     10,
		ClipNorm:     1,
		Seed:         1,
	}, func(epoch int, loss float64) { epochs = epoch })
	require.NoError(t, err)

	assert.Less(t, m.Loss(windows, targets), before)
	assert.Equal(t, hist.EpochsRun, epochs)
	assert.Len(t, hist.Losses, hist.EpochsRun)

	minLoss := math.Inf(1)
	for _, l := range hist.Losses {
		minLoss = math.Min(minLoss, l)
	}
	assert.Equal(t, minLoss, hist.BestLoss)
	assert.Equal(t, minLoss, hist.Losses[hist.BestEpoch-1])
}

func TestFit_Deterministic(t *testing.T) {
	windows, targets := sineDataset(40, 6)
	cfg := TrainConfig{Epochs: 3, BatchSize: 8, LearningRate: 0.005, ClipNorm: 1, Seed: 9}

	a := New(4, 5)
	b := New(4, 5)
	_, err := Fit(context.Background(), a, windows, targets, cfg, nil)
	require.NoError(t, err)
	_, err = Fit(context.Background(), b, windows, targets, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Params, b.Params)
}

func TestFit_EarlyStoppingRestoresBest(t *testing.T) {
	windows, targets := sineDataset(30, 5)
	cfg := TrainConfig{Epochs: 10, BatchSize: 10, LearningRate: 0.01, Patience: 2, MinDelta: 1e9, Seed: 4}

	m := New(4, 2)
	hist, err := Fit(context.Background(), m, windows, targets, cfg, nil)
	require.NoError(t, err)

	// 첫 epoch 이후 어떤 감소도 MinDelta를 넘지 못함
	assert.True(t, hist.StoppedEarly)
	assert.Equal(t, 3, hist.EpochsRun)
	assert.Equal(t, 1, hist.BestEpoch)

	oneEpoch := New(4, 2)
	cfg.Epochs = 1
	_, err = Fit(context.Background(), oneEpoch, windows, targets, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, oneEpoch.Params, m.Params)
}

func TestFit_NonFiniteLossDiverges(t *testing.T) {
	windows, targets := sineDataset(10, 4)
	targets[3] = math.NaN()

	_, err := Fit(context.Background(), New(3, 1), windows, targets, TrainConfig{Epochs: 2, BatchSize: 4, LearningRate: 0.01}, nil)
	assert.True(t, errors.Is(err, contracts.ErrTrainingDiverged))
}

func TestFit_ContextCancelled(t *testing.T) {
	windows, targets := sineDataset(10, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hist, err := Fit(ctx, New(3, 1), windows, targets, TrainConfig{Epochs: 5, BatchSize: 4, LearningRate: 0.01}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, hist.EpochsRun)
}

func TestFit_InvalidInput(t *testing.T) {
	ctx := context.Background()
	_, err := Fit(ctx, New(2, 1), nil, nil, TrainConfig{Epochs: 1}, nil)
	assert.Error(t, err)

	windows, targets := sineDataset(4, 3)
	_, err = Fit(ctx, New(2, 1), windows, targets[:2], TrainConfig{Epochs: 1}, nil)
	assert.Error(t, err)

	_, err = Fit(ctx, New(2, 1), windows, targets, TrainConfig{Epochs: 0}, nil)
	assert.Error(t, err)
}
