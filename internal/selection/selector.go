package selection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/pkg/logger"
)

// Selector chooses the tickers to train/forecast in a cycle
// ⭐ SSOT: 후보 선정 로직은 여기서만
type Selector struct {
	store       contracts.CandidateStore
	mentions    contracts.MentionSource
	policy      ScorePolicy
	windowDays  int
	maxFailures int
	logger      *logger.Logger
	now         func() time.Time
}

// Config defines selection parameters
type Config struct {
	MentionWindowDays int     // 언급 집계 기간 (기본: 30)
	MentionWeight     float64 // WeightedScore 가중치 (기본: 1.0)
	MaxDailyFailures  int     // 당일 실패 허용 횟수 (기본: 3)
}

// Ranked is a considered ticker with its score and eligibility
type Ranked struct {
	State    contracts.CandidateState `json:"state"`
	Score    float64                  `json:"score"`
	Eligible bool                     `json:"eligible"`
	Reason   string                   `json:"reason,omitempty"` // 제외 사유
}

// NewSelector creates a selector; a nil policy uses WeightedScore{cfg.MentionWeight}
func NewSelector(store contracts.CandidateStore, mentions contracts.MentionSource, policy ScorePolicy, cfg Config, log *logger.Logger) *Selector {
	if policy == nil {
		policy = WeightedScore{Weight: cfg.MentionWeight}
	}
	if cfg.MentionWindowDays <= 0 {
		cfg.MentionWindowDays = 30
	}
	if cfg.MaxDailyFailures <= 0 {
		cfg.MaxDailyFailures = 3
	}
	return &Selector{
		store:       store,
		mentions:    mentions,
		policy:      policy,
		windowDays:  cfg.MentionWindowDays,
		maxFailures: cfg.MaxDailyFailures,
		logger:      log,
		now:         time.Now,
	}
}

// Rank scores every ticker mentioned in the window without persisting anything.
// Eligible tickers come first, ordered by score desc then ticker asc.
func (s *Selector) Rank(ctx context.Context, today time.Time) ([]Ranked, error) {
	counts, err := s.mentions.RecentMentionCounts(ctx, s.windowDays, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to count mentions: %w", err)
	}
	states, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	ranked := make([]Ranked, 0, len(counts))
	for ticker, count := range counts {
		if count <= 0 {
			continue
		}
		state := contracts.CandidateState{Ticker: ticker}
		if existing, ok := states[ticker]; ok && existing != nil {
			state = *existing
		}
		state.MentionFrequency = count

		r := Ranked{
			State:    state,
			Score:    s.policy.Score(state.MentionFrequency, state.Priority),
			Eligible: true,
		}
		switch {
		case state.ProcessedOn(today):
			r.Eligible = false
			r.Reason = "processed today"
		case state.FailuresOn(today) >= s.maxFailures:
			r.Eligible = false
			r.Reason = fmt.Sprintf("failed %d times today", state.FailuresOn(today))
		}
		ranked = append(ranked, r)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Eligible != ranked[j].Eligible {
			return ranked[i].Eligible
		}
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].State.Ticker < ranked[j].State.Ticker
	})

	return ranked, nil
}

// Select returns up to n eligible tickers for today.
// Every eligible ticker not selected gets priority+1; all considered states
// (with refreshed mention frequency) are saved in one transaction.
func (s *Selector) Select(ctx context.Context, today time.Time, n int) ([]contracts.CandidateState, error) {
	if n < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", n)
	}

	ranked, err := s.Rank(ctx, today)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	selected := make([]contracts.CandidateState, 0, n)
	updates := make([]*contracts.CandidateState, 0, len(ranked))
	for i := range ranked {
		state := ranked[i].State
		if ranked[i].Eligible {
			if len(selected) < n {
				selected = append(selected, state)
			} else {
				state.Priority++
			}
		}
		state.UpdatedAt = now
		updates = append(updates, &state)
	}

	if err := s.store.SaveAll(ctx, updates); err != nil {
		return nil, fmt.Errorf("failed to save candidates: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"considered": len(ranked),
		"selected":   len(selected),
		"batch_size": n,
	}).Info("Candidates selected")

	return selected, nil
}
