package postgres

/*
Файл coverage_repo.go содержит реализацию хранилища агрегатов покрытия (engine.CoverageStore).
Составные части агрегата (снапшоты аккаунтов, бриф, редиректы, handback) лежат в JSONB:
они читаются и пишутся только целиком, реляционная декомпозиция им ничего не дает.
*/

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

const coverageColumns = `id, outgoing_agent_id, outgoing_agent_name, covering_agent_id, covering_agent_name,
	start_date, end_date, status, reason, strategy, non_optimal,
	accounts, brief, notification, routing_updates, handback,
	created_by, created_at, updated_at`

// Нетерминальное покрытие считается активным с даты начала и до явного
// завершения, даже если окно дат уже прошло
const activePredicate = `status NOT IN ('completed', 'cancelled') AND start_date <= $1`

// CreateCoverage сохраняет новый агрегат целиком.
func (r *Repo) CreateCoverage(ctx context.Context, c *domain.OOOCoverage) error {
	accounts, brief, notification, routing, handback, err := marshalCoverageParts(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO coverages (` + coverageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err = r.pool.Exec(ctx, query,
		c.ID, c.OutgoingAgentID, c.OutgoingAgentName, c.CoveringAgentID, c.CoveringAgentName,
		c.StartDate, c.EndDate, c.Status, c.Reason, c.Strategy, c.NonOptimal,
		accounts, brief, notification, routing, handback,
		c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to create coverage: %w", err)
	}
	return nil
}

// GetCoverage возвращает агрегат по ID или (nil, nil), если его нет.
func (r *Repo) GetCoverage(ctx context.Context, id string) (*domain.OOOCoverage, error) {
	query := `SELECT ` + coverageColumns + ` FROM coverages WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	cov, err := scanCoverage(row.Scan)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get coverage: %w", err)
	}
	return cov, nil
}

// UpdateCoverage перезаписывает изменяемые поля агрегата.
func (r *Repo) UpdateCoverage(ctx context.Context, c *domain.OOOCoverage) error {
	accounts, brief, notification, routing, handback, err := marshalCoverageParts(c)
	if err != nil {
		return err
	}

	query := `
		UPDATE coverages
		SET status = $1,
		    accounts = $2,
		    brief = $3,
		    notification = $4,
		    routing_updates = $5,
		    handback = $6,
		    updated_at = $7
		WHERE id = $8`

	tag, err := r.pool.Exec(ctx, query,
		c.Status, accounts, brief, notification, routing, handback, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("postgres: failed to update coverage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: coverage %s not found", c.ID)
	}
	return nil
}

// FindOverlapping — нетерминальные покрытия агента, пересекающие интервал [start, end].
func (r *Repo) FindOverlapping(ctx context.Context, outgoingAgentID string, start, end time.Time) ([]*domain.OOOCoverage, error) {
	query := `
		SELECT ` + coverageColumns + ` FROM coverages
		WHERE outgoing_agent_id = $1
		  AND status NOT IN ('completed', 'cancelled')
		  AND start_date <= $3 AND end_date >= $2`

	rows, err := r.pool.Query(ctx, query, outgoingAgentID, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: find overlapping: %w", err)
	}
	defer rows.Close()

	return collectCoverages(rows)
}

// FindActiveByOutgoing — действующее покрытие отсутствующего агента.
// По инварианту оно не более одного; (nil, nil) если агент не отсутствует.
func (r *Repo) FindActiveByOutgoing(ctx context.Context, agentID string, now time.Time) (*domain.OOOCoverage, error) {
	query := `
		SELECT ` + coverageColumns + ` FROM coverages
		WHERE ` + activePredicate + ` AND outgoing_agent_id = $2
		LIMIT 1`

	row := r.pool.QueryRow(ctx, query, now, agentID)
	cov, err := scanCoverage(row.Scan)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: find active by outgoing: %w", err)
	}
	return cov, nil
}

// FindActiveByCovering — действующие покрытия, где агент выступает покрывающим.
func (r *Repo) FindActiveByCovering(ctx context.Context, agentID string, now time.Time) ([]*domain.OOOCoverage, error) {
	query := `
		SELECT ` + coverageColumns + ` FROM coverages
		WHERE ` + activePredicate + ` AND covering_agent_id = $2
		ORDER BY start_date`

	rows, err := r.pool.Query(ctx, query, now, agentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: find active by covering: %w", err)
	}
	defer rows.Close()

	return collectCoverages(rows)
}

// ListActive — все действующие покрытия (для дашборда).
func (r *Repo) ListActive(ctx context.Context, now time.Time) ([]*domain.OOOCoverage, error) {
	query := `
		SELECT ` + coverageColumns + ` FROM coverages
		WHERE ` + activePredicate + `
		ORDER BY start_date`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active: %w", err)
	}
	defer rows.Close()

	return collectCoverages(rows)
}

// ListUpcoming — запланированные покрытия с датой начала в будущем.
func (r *Repo) ListUpcoming(ctx context.Context, now time.Time) ([]*domain.OOOCoverage, error) {
	query := `
		SELECT ` + coverageColumns + ` FROM coverages
		WHERE status NOT IN ('completed', 'cancelled') AND start_date > $1
		ORDER BY start_date`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list upcoming: %w", err)
	}
	defer rows.Close()

	return collectCoverages(rows)
}

// ListCompletedSince — завершенные покрытия за хвостовой период.
func (r *Repo) ListCompletedSince(ctx context.Context, since time.Time) ([]*domain.OOOCoverage, error) {
	query := `
		SELECT ` + coverageColumns + ` FROM coverages
		WHERE status = 'completed' AND updated_at >= $1
		ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list completed: %w", err)
	}
	defer rows.Close()

	return collectCoverages(rows)
}

func marshalCoverageParts(c *domain.OOOCoverage) (accounts, brief, notification, routing, handback []byte, err error) {
	if accounts, err = json.Marshal(c.Accounts); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("postgres: marshal accounts: %w", err)
	}
	if c.Brief != nil {
		if brief, err = json.Marshal(c.Brief); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("postgres: marshal brief: %w", err)
		}
	}
	if notification, err = json.Marshal(c.Notification); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("postgres: marshal notification: %w", err)
	}
	if routing, err = json.Marshal(c.RoutingUpdates); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("postgres: marshal routing updates: %w", err)
	}
	if c.Handback != nil {
		if handback, err = json.Marshal(c.Handback); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("postgres: marshal handback: %w", err)
		}
	}
	return accounts, brief, notification, routing, handback, nil
}

func collectCoverages(rows pgx.Rows) ([]*domain.OOOCoverage, error) {
	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.OOOCoverage, 0)
	for rows.Next() {
		cov, err := scanCoverage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan coverage: %w", err)
		}
		results = append(results, cov)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

func scanCoverage(scan func(dest ...any) error) (*domain.OOOCoverage, error) {
	var c domain.OOOCoverage
	var reason, createdBy sql.NullString
	var accounts, brief, notification, routing, handback []byte

	err := scan(
		&c.ID, &c.OutgoingAgentID, &c.OutgoingAgentName, &c.CoveringAgentID, &c.CoveringAgentName,
		&c.StartDate, &c.EndDate, &c.Status, &reason, &c.Strategy, &c.NonOptimal,
		&accounts, &brief, &notification, &routing, &handback,
		&createdBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reason.Valid {
		c.Reason = reason.String
	}
	if createdBy.Valid {
		c.CreatedBy = createdBy.String
	}

	if err := json.Unmarshal(accounts, &c.Accounts); err != nil {
		return nil, fmt.Errorf("unmarshal accounts: %w", err)
	}
	if len(brief) > 0 {
		c.Brief = &domain.HandoffBrief{}
		if err := json.Unmarshal(brief, c.Brief); err != nil {
			return nil, fmt.Errorf("unmarshal brief: %w", err)
		}
	}
	if err := json.Unmarshal(notification, &c.Notification); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	if err := json.Unmarshal(routing, &c.RoutingUpdates); err != nil {
		return nil, fmt.Errorf("unmarshal routing updates: %w", err)
	}
	if len(handback) > 0 {
		c.Handback = &domain.ReturnHandback{}
		if err := json.Unmarshal(handback, c.Handback); err != nil {
			return nil, fmt.Errorf("unmarshal handback: %w", err)
		}
	}

	return &c, nil
}
