package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/contracts"
)

// predictionBatchSize rows queued per pgx.Batch round trip
const predictionBatchSize = 5000

// PGStore PostgreSQL 체크포인트 (forecast 스키마)
type PGStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPGStore creates a store on an open pool
func NewPGStore(pool *pgxpool.Pool, log zerolog.Logger) *PGStore {
	return &PGStore{
		pool: pool,
		log:  log.With().Str("component", "checkpoint_pg").Logger(),
	}
}

// SaveRun upserts the run record
func (s *PGStore) SaveRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO forecast.runs
			(run_id, mode, pipeline_id, config_hash, config_yaml, status, rmse, predictions, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			rmse = EXCLUDED.rmse,
			predictions = EXCLUDED.predictions,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.Mode, run.PipelineID, run.ConfigHash, run.ConfigYAML,
		run.Status, run.RMSE, run.Predictions, run.Error, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveAggregates replaces the run's monthly aggregates
func (s *PGStore) SaveAggregates(ctx context.Context, runID string, rows []contracts.MonthlyAggregate) error {
	n, err := s.replace(ctx,
		`DELETE FROM forecast.monthly_sales WHERE run_id = $1`, []any{runID},
		pgx.Identifier{"forecast", "monthly_sales"},
		[]string{"run_id", "date_block_num", "shop_id", "item_id", "avg_sales_price", "total_sales", "total_record_count"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			a := rows[i]
			return []any{runID, a.MonthIndex, a.ShopID, a.ItemID, a.AvgSalesPrice, a.TotalSales, a.TotalRecordCount}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("save aggregates: %w", err)
	}

	s.log.Debug().Str("run_id", runID).Int64("rows", n).Msg("Saved monthly aggregates")
	return nil
}

// SaveHeat replaces one heat table of the run
func (s *PGStore) SaveHeat(ctx context.Context, runID string, table *contracts.HeatTable) error {
	n, err := s.replace(ctx,
		`DELETE FROM forecast.heat_labels WHERE run_id = $1 AND table_name = $2`, []any{runID, table.Name},
		pgx.Identifier{"forecast", "heat_labels"},
		[]string{"run_id", "table_name", "packed_key", "total_sum", "total_mean", "heat"},
		pgx.CopyFromSlice(len(table.Rows), func(i int) ([]any, error) {
			r := table.Rows[i]
			return []any{runID, table.Name, int64(r.Key.Pack()), r.Sum, r.Mean, int16(r.Heat)}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("save heat %s: %w", table.Name, err)
	}

	s.log.Debug().Str("run_id", runID).Str("table", table.Name).Int64("rows", n).Msg("Saved heat table")
	return nil
}

// replace deletes then bulk-copies inside one transaction
func (s *PGStore) replace(ctx context.Context, del string, args []any, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, del, args...); err != nil {
		return 0, err
	}
	n, err := tx.CopyFrom(ctx, table, cols, src)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit(ctx)
}

// SavePredictions upserts the run's predictions
func (s *PGStore) SavePredictions(ctx context.Context, runID string, preds []contracts.Prediction) error {
	if len(preds) == 0 {
		return nil
	}

	query := `
		INSERT INTO forecast.predictions (run_id, id, shop_id, item_id, item_cnt_month)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, id) DO UPDATE SET
			shop_id = EXCLUDED.shop_id,
			item_id = EXCLUDED.item_id,
			item_cnt_month = EXCLUDED.item_cnt_month`

	for start := 0; start < len(preds); start += predictionBatchSize {
		end := min(start+predictionBatchSize, len(preds))

		batch := &pgx.Batch{}
		for _, p := range preds[start:end] {
			batch.Queue(query, runID, p.ID, p.ShopID, p.ItemID, p.ItemCntMonth)
		}

		br := s.pool.SendBatch(ctx, batch)
		for range preds[start:end] {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("save predictions: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("save predictions: %w", err)
		}
	}
	return nil
}

// LatestRun returns the newest run
func (s *PGStore) LatestRun(ctx context.Context, withPredictions bool) (*Run, error) {
	query := `
		SELECT run_id, mode, pipeline_id, config_hash, status, COALESCE(rmse, 0), predictions,
		       COALESCE(error, ''), started_at, finished_at
		FROM forecast.runs
		WHERE NOT $1 OR (status = 'succeeded' AND predictions > 0)
		ORDER BY started_at DESC
		LIMIT 1`

	var r Run
	err := s.pool.QueryRow(ctx, query, withPredictions).Scan(
		&r.ID, &r.Mode, &r.PipelineID, &r.ConfigHash, &r.Status, &r.RMSE, &r.Predictions,
		&r.Error, &r.StartedAt, &r.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return &r, nil
}

// Prediction looks up one prediction by request ID
func (s *PGStore) Prediction(ctx context.Context, runID string, id int) (*contracts.Prediction, error) {
	query := `
		SELECT id, shop_id, item_id, item_cnt_month
		FROM forecast.predictions
		WHERE run_id = $1 AND id = $2`

	var p contracts.Prediction
	err := s.pool.QueryRow(ctx, query, runID, id).Scan(&p.ID, &p.ShopID, &p.ItemID, &p.ItemCntMonth)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("prediction %d: %w", id, err)
	}
	return &p, nil
}

// FindPredictions filters the predictions of a run by shop and/or item
func (s *PGStore) FindPredictions(ctx context.Context, runID string, f PredictionFilter) ([]contracts.Prediction, error) {
	query := `
		SELECT id, shop_id, item_id, item_cnt_month
		FROM forecast.predictions
		WHERE run_id = $1
		  AND ($2 < 0 OR shop_id = $2)
		  AND ($3 < 0 OR item_id = $3)
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query, runID, f.ShopID, f.ItemID)
	if err != nil {
		return nil, fmt.Errorf("find predictions: %w", err)
	}
	defer rows.Close()

	var out []contracts.Prediction
	for rows.Next() {
		var p contracts.Prediction
		if err := rows.Scan(&p.ID, &p.ShopID, &p.ItemID, &p.ItemCntMonth); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
