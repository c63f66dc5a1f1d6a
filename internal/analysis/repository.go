package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockcast/pkg/redis"
)

// Repository is a read-only view of the LLM pipeline's analysis table
// ⭐ SSOT: analysis 테이블 읽기는 여기서만 (쓰기 없음)
type Repository struct {
	pool  *pgxpool.Pool
	cache *redis.Cache
}

// NewRepository creates a new analysis repository; cache may be nil
func NewRepository(pool *pgxpool.Pool, cache *redis.Cache) *Repository {
	return &Repository{pool: pool, cache: cache}
}

// RecentMentionCounts counts analyses per ticker published in the last windowDays
func (r *Repository) RecentMentionCounts(ctx context.Context, windowDays int, asOf time.Time) (map[string]int, error) {
	if windowDays < 1 {
		return nil, fmt.Errorf("window must be at least 1 day, got %d", windowDays)
	}
	if r.cache == nil {
		return r.query(ctx, windowDays, asOf)
	}

	// 시간 단위 캐시: 셀렉터가 한 시간에 여러 번 돌아도 집계 쿼리는 한 번
	var counts map[string]int
	err := r.cache.GetOrSet(ctx, redis.MentionsKey(windowDays, asOf), &counts, redis.TTLMedium, func() (interface{}, error) {
		return r.query(ctx, windowDays, asOf)
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *Repository) query(ctx context.Context, windowDays int, asOf time.Time) (map[string]int, error) {
	query := `
		SELECT UPPER(TRIM(ticker)) AS ticker, COUNT(*)
		FROM analysis
		WHERE published > $1 AND published <= $2
		  AND TRIM(ticker) <> ''
		GROUP BY UPPER(TRIM(ticker))
	`

	rows, err := r.pool.Query(ctx, query, asOf.AddDate(0, 0, -windowDays), asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to count mentions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var ticker string
		var n int
		if err := rows.Scan(&ticker, &n); err != nil {
			return nil, fmt.Errorf("failed to scan mention count: %w", err)
		}
		counts[ticker] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mention counts: %w", err)
	}

	return counts, nil
}
