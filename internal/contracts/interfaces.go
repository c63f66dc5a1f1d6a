package contracts

import (
	"context"
	"time"
)

// PriceHistory fetches daily closes for a ticker
// ⭐ SSOT: 가격 시계열 조회 인터페이스
type PriceHistory interface {
	// History returns closes in [start, end], sorted and de-duplicated
	History(ctx context.Context, ticker string, start, end time.Time) (*PriceSeries, error)
}

// MentionSource counts recent news analyses per ticker
// ⭐ SSOT: 뉴스 분석 테이블 읽기 인터페이스
type MentionSource interface {
	RecentMentionCounts(ctx context.Context, windowDays int, asOf time.Time) (map[string]int, error)
}

// CandidateStore persists candidate selection state
// ⭐ SSOT: lstm_candidates 접근 인터페이스
type CandidateStore interface {
	LoadAll(ctx context.Context) (map[string]*CandidateState, error)
	// SaveAll upserts every state in a single transaction
	SaveAll(ctx context.Context, states []*CandidateState) error
	MarkProcessed(ctx context.Context, ticker string, day time.Time) error
	MarkFailed(ctx context.Context, ticker string, day time.Time, reason string) error
}

// ForecastStore persists forecast runs
// ⭐ SSOT: lstm_predictions / lstm_forecast_runs 접근 인터페이스
type ForecastStore interface {
	// SaveRun replaces any run for (ticker, made_on) atomically
	SaveRun(ctx context.Context, run *ForecastRun) error
	GetLatestRun(ctx context.Context, ticker string) (*ForecastRun, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
