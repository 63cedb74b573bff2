package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"ktp-verify/internal/entity"
)

// PgProcessingLogRepository stores the per-request audit rows.
type PgProcessingLogRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewProcessingLogRepository(pool *pgxpool.Pool, logger *slog.Logger) *PgProcessingLogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PgProcessingLogRepository{pool: pool, log: logger}
}

func (r *PgProcessingLogRepository) Insert(ctx context.Context, entry *entity.ProcessingLog) error {
	const q = `
		INSERT INTO processing_logs (
			original_filename, file_size, processing_status,
			error_message, confidence_score, processing_time_ms
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, q,
		entry.OriginalFilename, entry.FileSize, entry.Status,
		entry.ErrorMessage, entry.ConfidenceScore, entry.ProcessingTimeMS)
	if err != nil {
		return fmt.Errorf("insert processing log: %w", err)
	}
	return nil
}

func (r *PgProcessingLogRepository) Stats(ctx context.Context) (*entity.ProcessingStats, error) {
	stats := &entity.ProcessingStats{
		StatusBreakdown: make(map[string]int64),
	}

	rows, err := r.pool.Query(ctx,
		`SELECT processing_status, count(*) FROM processing_logs GROUP BY processing_status`)
	if err != nil {
		return nil, fmt.Errorf("query status breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status breakdown: %w", err)
		}
		stats.StatusBreakdown[status] = count
		stats.TotalProcessed += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status breakdown: %w", err)
	}

	if stats.TotalProcessed > 0 {
		stats.SuccessRate = float64(stats.StatusBreakdown["SUCCESS"]) / float64(stats.TotalProcessed)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT coalesce(avg(confidence_score), 0), coalesce(avg(processing_time_ms), 0)
		 FROM processing_logs`,
	).Scan(&stats.AvgConfidence, &stats.AvgProcessingMS)
	if err != nil {
		return nil, fmt.Errorf("query averages: %w", err)
	}
	return stats, nil
}
