package training

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/internal/lstm"
	"github.com/wonny/stockcast/internal/modelconfig"
	"github.com/wonny/stockcast/internal/series"
)

// Trainer fits a per-ticker LSTM and persists it
// ⭐ SSOT: 모델 학습/저장은 여기서만
type Trainer struct {
	cfg        *modelconfig.Config
	configHash string
	windower   *series.Windower
	store      ArtifactStore
	log        zerolog.Logger
	now        func() time.Time
}

// NewTrainer creates a trainer for the given sequence length
func NewTrainer(cfg *modelconfig.Config, sequenceLength, maxGapDays int, store ArtifactStore, log zerolog.Logger) (*Trainer, error) {
	if err := modelconfig.Validate(cfg); err != nil {
		return nil, fmt.Errorf("model config: %w", err)
	}
	hash, err := modelconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash model config: %w", err)
	}

	return &Trainer{
		cfg:        cfg,
		configHash: hash,
		windower:   series.NewWindower(sequenceLength, maxGapDays),
		store:      store,
		log:        log.With().Str("component", "training.trainer").Logger(),
		now:        time.Now,
	}, nil
}

// SequenceLength returns the window length the trainer uses
func (t *Trainer) SequenceLength() int {
	return t.windower.SequenceLength
}

// Train windows the series, fits the model and replaces the ticker's artifact.
// The store is untouched on any error.
func (t *Trainer) Train(ctx context.Context, ticker string, s *contracts.PriceSeries) (*Artifact, error) {
	artifact, err := t.Fit(ctx, ticker, s)
	if err != nil {
		return nil, err
	}

	if err := t.store.Save(ctx, artifact); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}

	t.log.Info().
		Str("ticker", ticker).
		Int("windows", artifact.Windows).
		Int("epochs", artifact.EpochsRun).
		Int("best_epoch", artifact.BestEpoch).
		Float64("loss", artifact.FinalLoss).
		Msg("model trained")

	return artifact, nil
}

// Fit trains without persisting (used by Train and the evaluator)
func (t *Trainer) Fit(ctx context.Context, ticker string, s *contracts.PriceSeries) (*Artifact, error) {
	ds, err := t.windower.FitAndWindow(s)
	if err != nil {
		return nil, fmt.Errorf("window %s: %w", ticker, err)
	}
	ds = ds.Recent(t.cfg.Training.MaxWindows)

	seed := t.cfg.Model.Seed
	if seed == 0 {
		seed = TickerSeed(ticker)
	}
	model := lstm.New(t.cfg.Model.HiddenSize, seed)

	start := time.Now()
	hist, err := lstm.Fit(ctx, model, ds.Windows, ds.Targets, lstm.TrainConfig{
		Epochs:       t.cfg.Training.Epochs,
		BatchSize:    t.cfg.Training.BatchSize,
		LearningRate: t.cfg.Training.LearningRate,
		Patience:     t.cfg.Training.Patience,
		MinDelta:     t.cfg.Training.MinDelta,
		ClipNorm:     t.cfg.Training.ClipNorm,
		Seed:         seed,
	}, func(epoch int, loss float64) {
		t.log.Debug().Str("ticker", ticker).Int("epoch", epoch).Float64("loss", loss).Msg("epoch done")
	})
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", ticker, err)
	}

	last, _ := s.Last()
	t.log.Debug().
		Str("ticker", ticker).
		Dur("elapsed", time.Since(start)).
		Bool("stopped_early", hist.StoppedEarly).
		Msg("fit finished")

	return &Artifact{
		Ticker:         strings.ToUpper(ticker),
		TrainedAt:      t.now().UTC(),
		ConfigHash:     t.configHash,
		SequenceLength: t.windower.SequenceLength,
		EpochsRun:      hist.EpochsRun,
		BestEpoch:      hist.BestEpoch,
		FinalLoss:      hist.BestLoss,
		Windows:        ds.Len(),
		DataEnd:        last.Date,
		Model:          model,
		Scaler:         ds.Scaler,
	}, nil
}

// TickerSeed derives a stable RNG seed from the ticker symbol
func TickerSeed(ticker string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToUpper(ticker)))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
