package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/pkg/database"
)

// ErrRunNotFound 저장된 예측이 없음
var ErrRunNotFound = errors.New("forecast run not found")

// Repository forecast 데이터 저장소 (lstm_forecast_runs + lstm_predictions)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun 헤더 + 예측 행을 한 트랜잭션으로 저장 (같은 날 기존 예측은 교체)
func (r *Repository) SaveRun(ctx context.Context, run *contracts.ForecastRun) error {
	if len(run.Forecasts) == 0 {
		return fmt.Errorf("forecast run %s has no rows", run.Ticker)
	}

	window, err := json.Marshal(run.ReferenceWindow)
	if err != nil {
		return fmt.Errorf("failed to marshal reference window: %w", err)
	}

	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM lstm_predictions WHERE ticker = $1 AND prediction_made_date = $2`,
			run.Ticker, run.MadeOn); err != nil {
			return fmt.Errorf("failed to delete old predictions: %w", err)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO lstm_forecast_runs
				(ticker, prediction_made_date, reference_date, reference_price, reference_window, model_trained_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (ticker, prediction_made_date) DO UPDATE SET
				reference_date = EXCLUDED.reference_date,
				reference_price = EXCLUDED.reference_price,
				reference_window = EXCLUDED.reference_window,
				model_trained_at = EXCLUDED.model_trained_at,
				created_at = NOW()`,
			run.Ticker, run.MadeOn, run.ReferenceDate, run.ReferencePrice, window, run.ModelTrainedAt)
		if err != nil {
			return fmt.Errorf("failed to save forecast run: %w", err)
		}

		batch := &pgx.Batch{}
		query := `
			INSERT INTO lstm_predictions
				(ticker, prediction_made_date, horizon_day, prediction_target_date, predicted_price, reference_price)
			VALUES ($1, $2, $3, $4, $5, $6)`
		for _, f := range run.Forecasts {
			batch.Queue(query, f.Ticker, f.MadeOn, f.HorizonDay, f.TargetDate, f.PredictedPrice, f.ReferencePrice)
		}

		br := tx.SendBatch(ctx, batch)
		for range run.Forecasts {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert prediction: %w", err)
			}
		}
		return br.Close()
	})
}

// GetLatestRun 티커의 가장 최근 예측 조회
func (r *Repository) GetLatestRun(ctx context.Context, ticker string) (*contracts.ForecastRun, error) {
	ticker = strings.ToUpper(ticker)

	var run contracts.ForecastRun
	var window []byte
	err := r.pool.QueryRow(ctx, `
		SELECT ticker, prediction_made_date, reference_date, COALESCE(reference_price, 0),
			   reference_window, model_trained_at
		FROM lstm_forecast_runs
		WHERE ticker = $1
		ORDER BY prediction_made_date DESC
		LIMIT 1`, ticker).Scan(
		&run.Ticker, &run.MadeOn, &run.ReferenceDate, &run.ReferencePrice, &window, &run.ModelTrainedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", ticker, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get forecast run: %w", err)
	}
	if err := json.Unmarshal(window, &run.ReferenceWindow); err != nil {
		return nil, fmt.Errorf("failed to decode reference window: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ticker, prediction_made_date, horizon_day, prediction_target_date, predicted_price, reference_price
		FROM lstm_predictions
		WHERE ticker = $1 AND prediction_made_date = $2
		ORDER BY horizon_day`, run.Ticker, run.MadeOn)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f contracts.Forecast
		if err := rows.Scan(&f.Ticker, &f.MadeOn, &f.HorizonDay, &f.TargetDate, &f.PredictedPrice, &f.ReferencePrice); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		run.Forecasts = append(run.Forecasts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &run, nil
}

// PruneBefore 보관 기간이 지난 예측 삭제
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM lstm_predictions WHERE prediction_made_date < $1`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune predictions: %w", err)
		}
		deleted = tag.RowsAffected()

		if _, err := tx.Exec(ctx, `DELETE FROM lstm_forecast_runs WHERE prediction_made_date < $1`, cutoff); err != nil {
			return fmt.Errorf("failed to prune forecast runs: %w", err)
		}
		return nil
	})
	return deleted, err
}
