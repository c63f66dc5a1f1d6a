package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/stockcast/internal/contracts"
)

// Service is the daemon's training unit: fetch history, then train
type Service struct {
	trainer      *Trainer
	history      contracts.PriceHistory
	historyStart time.Time
	log          zerolog.Logger
	now          func() time.Time
}

// NewService creates a training service reading history from historyStart
func NewService(trainer *Trainer, history contracts.PriceHistory, historyStart time.Time, log zerolog.Logger) *Service {
	return &Service{
		trainer:      trainer,
		history:      history,
		historyStart: historyStart,
		log:          log.With().Str("component", "training.service").Logger(),
		now:          time.Now,
	}
}

// TrainTicker fetches the full history and trains a fresh artifact
func (s *Service) TrainTicker(ctx context.Context, ticker string) (*Artifact, error) {
	series, err := s.history.History(ctx, ticker, s.historyStart, s.now())
	if err != nil {
		if errors.Is(err, contracts.ErrUpstreamData) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("fetch %s history: %w: %w", ticker, contracts.ErrUpstreamData, err)
	}

	s.log.Debug().Str("ticker", ticker).Int("points", series.Len()).Msg("history fetched")
	return s.trainer.Train(ctx, ticker, series)
}
