package postgres

import (
	"context"
	"fmt"

	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

// CreateDetection сохраняет нормализованный OOO-сигнал (intake.DetectionStore).
func (r *Repo) CreateDetection(ctx context.Context, det *domain.OOODetection) error {
	query := `
		INSERT INTO detections (id, agent_id, source, start_date, end_date, detected_at, processed, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		det.ID, det.AgentID, det.Source, det.StartDate, det.EndDate,
		det.DetectedAt, det.Processed, det.RawPayload,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to create detection: %w", err)
	}
	return nil
}

// MarkDetectionProcessed помечает сигнал обработанным после создания покрытия.
// WHERE processed = FALSE исключает двойную обработку одного сигнала.
func (r *Repo) MarkDetectionProcessed(ctx context.Context, id string) error {
	query := `UPDATE detections SET processed = TRUE WHERE id = $1 AND processed = FALSE`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to mark detection processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: detection %s not found or already processed", id)
	}
	return nil
}

// ListPendingDetections — необработанные сигналы для операторской очереди.
func (r *Repo) ListPendingDetections(ctx context.Context) ([]*domain.OOODetection, error) {
	query := `
		SELECT id, agent_id, source, start_date, end_date, detected_at, processed, raw_payload
		FROM detections
		WHERE processed = FALSE
		ORDER BY detected_at DESC LIMIT 100`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query detections: %w", err)
	}
	defer rows.Close()

	results := make([]*domain.OOODetection, 0)
	for rows.Next() {
		var d domain.OOODetection
		err := rows.Scan(
			&d.ID, &d.AgentID, &d.Source, &d.StartDate, &d.EndDate,
			&d.DetectedAt, &d.Processed, &d.RawPayload,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan detection: %w", err)
		}
		results = append(results, &d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}
