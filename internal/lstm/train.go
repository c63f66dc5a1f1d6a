package lstm

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/wonny/stockcast/internal/contracts"
)

// TrainConfig 학습 루프 설정
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Patience     int     // loss가 개선되지 않은 epoch 수가 이 값에 도달하면 중단 (0 = 비활성)
	MinDelta     float64 // 개선으로 인정할 최소 감소량
	ClipNorm     float64 // 0 = clipping 비활성
	Seed         int64   // 셔플 순서
}

// History 학습 결과 요약
type History struct {
	Losses       []float64 `json:"losses"`
	BestEpoch    int       `json:"best_epoch"` // 1-based
	BestLoss     float64   `json:"best_loss"`
	EpochsRun    int       `json:"epochs_run"`
	StoppedEarly bool      `json:"stopped_early"`
}

// EpochFunc is called after every completed epoch
type EpochFunc func(epoch int, loss float64)

// Fit trains m in place with mini-batch Adam on MSE loss.
// The parameters of the best epoch are restored before returning.
func Fit(ctx context.Context, m *Model, windows [][]float64, targets []float64, cfg TrainConfig, onEpoch EpochFunc) (*History, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(windows) == 0 || len(windows) != len(targets) {
		return nil, fmt.Errorf("need matching non-empty windows and targets, got %d/%d", len(windows), len(targets))
	}
	if cfg.Epochs < 1 {
		return nil, fmt.Errorf("epochs must be positive, got %d", cfg.Epochs)
	}
	batchSize := cfg.BatchSize
	if batchSize < 1 || batchSize > len(windows) {
		batchSize = len(windows)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	opt := newAdam(len(m.Params), cfg.LearningRate)
	ws := &workspace{}
	grad := make([]float64, len(m.Params))
	order := make([]int, len(windows))
	for i := range order {
		order[i] = i
	}

	hist := &History{BestLoss: math.Inf(1)}
	best := m.Clone()
	wait := 0

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		total := 0.0
		for start := 0; start < len(order); start += batchSize {
			if err := ctx.Err(); err != nil {
				return hist, err
			}
			end := min(start+batchSize, len(order))
			batch := order[start:end]

			clear(grad)
			loss := m.lossAndGrad(ws, windows, targets, batch, grad)
			total += loss * float64(len(batch))

			norm := l2(grad)
			if math.IsNaN(norm) || math.IsInf(norm, 0) {
				return hist, fmt.Errorf("epoch %d: gradient norm %v: %w", epoch, norm, contracts.ErrTrainingDiverged)
			}
			if cfg.ClipNorm > 0 && norm > cfg.ClipNorm {
				scale := cfg.ClipNorm / norm
				for i := range grad {
					grad[i] *= scale
				}
			}
			opt.step(m.Params, grad)
		}

		epochLoss := total / float64(len(order))
		hist.Losses = append(hist.Losses, epochLoss)
		hist.EpochsRun = epoch
		if math.IsNaN(epochLoss) || math.IsInf(epochLoss, 0) {
			return hist, fmt.Errorf("epoch %d: loss %v: %w", epoch, epochLoss, contracts.ErrTrainingDiverged)
		}
		if onEpoch != nil {
			onEpoch(epoch, epochLoss)
		}

		if epochLoss < hist.BestLoss-cfg.MinDelta {
			hist.BestLoss = epochLoss
			hist.BestEpoch = epoch
			copy(best.Params, m.Params)
			wait = 0
		} else {
			wait++
			if cfg.Patience > 0 && wait >= cfg.Patience {
				hist.StoppedEarly = true
				break
			}
		}
	}

	// restore best weights
	copy(m.Params, best.Params)
	return hist, nil
}

// Loss returns the mean squared error of m over the given samples
func (m *Model) Loss(windows [][]float64, targets []float64) float64 {
	if len(windows) == 0 {
		return 0
	}
	total := 0.0
	for i, w := range windows {
		d := m.Predict(Slice(w)) - targets[i]
		total += d * d
	}
	return total / float64(len(windows))
}

// workspace holds per-step activations reused across samples
type workspace struct {
	steps  int
	nh     int
	hs, cs [][]float64 // steps+1, index 0 = zero state
	ig, fg [][]float64
	gg, og [][]float64
	z, dz  []float64
	dh, dc []float64
	dhPrev []float64
}

func (ws *workspace) ensure(steps, nh int) {
	if ws.steps == steps && ws.nh == nh {
		return
	}
	alloc := func(n int) [][]float64 {
		out := make([][]float64, n)
		for i := range out {
			out[i] = make([]float64, nh)
		}
		return out
	}
	ws.steps, ws.nh = steps, nh
	ws.hs, ws.cs = alloc(steps+1), alloc(steps+1)
	ws.ig, ws.fg, ws.gg, ws.og = alloc(steps), alloc(steps), alloc(steps), alloc(steps)
	ws.z, ws.dz = make([]float64, 4*nh), make([]float64, 4*nh)
	ws.dh, ws.dc, ws.dhPrev = make([]float64, nh), make([]float64, nh), make([]float64, nh)
}

// lossAndGrad accumulates the batch-mean gradient into grad and returns the batch-mean loss
func (m *Model) lossAndGrad(ws *workspace, windows [][]float64, targets []float64, batch []int, grad []float64) float64 {
	scale := 1 / float64(len(batch))
	total := 0.0
	for _, idx := range batch {
		total += m.backprop(ws, windows[idx], targets[idx], grad, scale)
	}
	return total * scale
}

// backprop runs forward + BPTT for one sample, adding scale*dLoss/dParams into grad
func (m *Model) backprop(ws *workspace, x []float64, target float64, grad []float64, scale float64) float64 {
	nh := m.Hidden
	steps := len(x)
	cols := 1 + nh
	ws.ensure(steps, nh)

	w, b, wy, by := m.views()
	gw, gb, gwy, gby := splitParams(grad, nh)

	clear(ws.hs[0])
	clear(ws.cs[0])
	for t := 0; t < steps; t++ {
		gates(w, b, nh, x[t], ws.hs[t], ws.z)
		for j := 0; j < nh; j++ {
			ig := sigmoid(ws.z[j])
			fg := sigmoid(ws.z[nh+j])
			gg := math.Tanh(ws.z[2*nh+j])
			og := sigmoid(ws.z[3*nh+j])
			c := fg*ws.cs[t][j] + ig*gg
			ws.ig[t][j], ws.fg[t][j], ws.gg[t][j], ws.og[t][j] = ig, fg, gg, og
			ws.cs[t+1][j] = c
			ws.hs[t+1][j] = og * math.Tanh(c)
		}
	}

	hT := ws.hs[steps]
	diff := dot(wy, hT) + by[0] - target
	dy := 2 * diff * scale

	for j := 0; j < nh; j++ {
		gwy[j] += dy * hT[j]
		ws.dh[j] = dy * wy[j]
		ws.dc[j] = 0
	}
	gby[0] += dy

	for t := steps - 1; t >= 0; t-- {
		hPrev, cPrev, cT := ws.hs[t], ws.cs[t], ws.cs[t+1]
		for j := 0; j < nh; j++ {
			ig, fg, gg, og := ws.ig[t][j], ws.fg[t][j], ws.gg[t][j], ws.og[t][j]
			tc := math.Tanh(cT[j])
			dc := ws.dc[j] + ws.dh[j]*og*(1-tc*tc)

			ws.dz[j] = dc * gg * ig * (1 - ig)
			ws.dz[nh+j] = dc * cPrev[j] * fg * (1 - fg)
			ws.dz[2*nh+j] = dc * ig * (1 - gg*gg)
			ws.dz[3*nh+j] = ws.dh[j] * tc * og * (1 - og)
			ws.dc[j] = dc * fg
		}

		clear(ws.dhPrev)
		for r := 0; r < 4*nh; r++ {
			d := ws.dz[r]
			if d == 0 {
				continue
			}
			grow := gw[r*cols : (r+1)*cols]
			wrow := w[r*cols : (r+1)*cols]
			gb[r] += d
			grow[0] += d * x[t]
			for k := 0; k < nh; k++ {
				grow[1+k] += d * hPrev[k]
				ws.dhPrev[k] += wrow[1+k] * d
			}
		}
		ws.dh, ws.dhPrev = ws.dhPrev, ws.dh
	}

	return diff * diff
}

// adam optimizer state (Keras defaults)
type adam struct {
	lr, beta1, beta2, eps float64
	m, v                  []float64
	t                     int
}

func newAdam(n int, lr float64) *adam {
	if lr <= 0 {
		lr = 0.001
	}
	return &adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-7,
		m:     make([]float64, n),
		v:     make([]float64, n),
	}
}

func (a *adam) step(params, grad []float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, g := range grad {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		mHat := a.m[i] / c1
		vHat := a.v[i] / c2
		params[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
}

func l2(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}
