package selection

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/pkg/database"
)

// Repository handles candidate state persistence (lstm_candidates)
// ⭐ SSOT: 후보 상태 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new selection repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadAll returns every candidate keyed by ticker
func (r *Repository) LoadAll(ctx context.Context) (map[string]*contracts.CandidateState, error) {
	query := `
		SELECT ticker, mention_frequency, priority, processed_date, failed_date,
			   failures, last_error, updated_at
		FROM lstm_candidates
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	states := make(map[string]*contracts.CandidateState)
	for rows.Next() {
		var s contracts.CandidateState
		if err := rows.Scan(
			&s.Ticker, &s.MentionFrequency, &s.Priority, &s.ProcessedDate, &s.FailedDate,
			&s.Failures, &s.LastError, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		states[s.Ticker] = &s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}

	return states, nil
}

// SaveAll upserts all states in a single transaction
func (r *Repository) SaveAll(ctx context.Context, states []*contracts.CandidateState) error {
	if len(states) == 0 {
		return nil
	}

	query := `
		INSERT INTO lstm_candidates (
			ticker, mention_frequency, priority, processed_date, failed_date,
			failures, last_error, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ticker) DO UPDATE SET
			mention_frequency = EXCLUDED.mention_frequency,
			priority = EXCLUDED.priority,
			processed_date = EXCLUDED.processed_date,
			failed_date = EXCLUDED.failed_date,
			failures = EXCLUDED.failures,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`

	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range states {
			batch.Queue(query,
				s.Ticker, s.MentionFrequency, s.Priority, s.ProcessedDate, s.FailedDate,
				s.Failures, s.LastError, s.UpdatedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range states {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to upsert candidate: %w", err)
			}
		}
		return br.Close()
	})
}

// MarkProcessed sets processed_date and resets priority and today's failures
func (r *Repository) MarkProcessed(ctx context.Context, ticker string, day time.Time) error {
	query := `
		INSERT INTO lstm_candidates (ticker, processed_date, priority, failures, updated_at)
		VALUES ($1, $2, 0, 0, NOW())
		ON CONFLICT (ticker) DO UPDATE SET
			processed_date = EXCLUDED.processed_date,
			priority = 0,
			failures = 0,
			last_error = '',
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, ticker, contracts.DateOf(day)); err != nil {
		return fmt.Errorf("failed to mark %s processed: %w", ticker, err)
	}
	return nil
}

// MarkFailed records a failed unit; failures resets when the day changes
func (r *Repository) MarkFailed(ctx context.Context, ticker string, day time.Time, reason string) error {
	query := `
		INSERT INTO lstm_candidates (ticker, failed_date, failures, last_error, updated_at)
		VALUES ($1, $2, 1, $3, NOW())
		ON CONFLICT (ticker) DO UPDATE SET
			failures = CASE
				WHEN lstm_candidates.failed_date = EXCLUDED.failed_date THEN lstm_candidates.failures + 1
				ELSE 1
			END,
			failed_date = EXCLUDED.failed_date,
			last_error = EXCLUDED.last_error,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, ticker, contracts.DateOf(day), truncateReason(reason)); err != nil {
		return fmt.Errorf("failed to mark %s failed: %w", ticker, err)
	}
	return nil
}

// maxReasonBytes caps last_error
const maxReasonBytes = 500

// truncateReason cuts s to at most maxReasonBytes on a rune boundary.
// Invalid UTF-8 is replaced first; PostgreSQL rejects it in TEXT columns.
func truncateReason(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= maxReasonBytes {
		return s
	}
	cut := maxReasonBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
