package postgres

/*
Файл agent_repo.go содержит реализацию стора справочника агентов (directory.Store).
*/

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

const agentColumns = `id, name, email, role, team_id, backup_agent_id, segment, skills,
	current_workload, max_workload, available, created_at, updated_at`

// GetAgent возвращает агента по ID или (nil, nil), если его нет.
func (r *Repo) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	agent, err := scanAgent(row.Scan)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get agent: %w", err)
	}
	return agent, nil
}

// ListAvailableAgents выбирает агентов, доступных к назначению.
// Исключаем самого отсутствующего: он не может покрывать себя.
func (r *Repo) ListAvailableAgents(ctx context.Context, excludingID string) ([]*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE available = TRUE AND id <> $1 ORDER BY name`

	rows, err := r.pool.Query(ctx, query, excludingID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list available agents: %w", err)
	}
	defer rows.Close()

	return collectAgents(rows)
}

// ListTeamAgents — все агенты команды, включая недоступных.
func (r *Repo) ListTeamAgents(ctx context.Context, teamID string) ([]*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE team_id = $1 ORDER BY name`

	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list team agents: %w", err)
	}
	defer rows.Close()

	return collectAgents(rows)
}

// AdjustWorkload атомарно меняет счетчик нагрузки.
// GREATEST не дает счетчику уйти в минус при повторных декрементах.
func (r *Repo) AdjustWorkload(ctx context.Context, agentID string, delta int) error {
	query := `
		UPDATE agents
		SET current_workload = GREATEST(current_workload + $1, 0),
		    updated_at = NOW()
		WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, delta, agentID)
	if err != nil {
		return fmt.Errorf("postgres: adjust workload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: agent %s not found", agentID)
	}
	return nil
}

// ListUnavailableAgentIDs возвращает ID агентов с активным покрытием.
// Используется для инициализации L1 (RAM) кэша недоступности при старте.
func (r *Repo) ListUnavailableAgentIDs(ctx context.Context) ([]string, error) {
	// Выбираем только ID, чтобы минимизировать трафик между БД и приложением
	query := `
		SELECT outgoing_agent_id FROM coverages
		WHERE status NOT IN ('completed', 'cancelled') AND start_date <= NOW()`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch unavailable agents: %w", err)
	}
	defer rows.Close()

	// Инициализируем слайс, чтобы избежать возврата nil
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan agent id error: %w", err)
		}
		ids = append(ids, id)
	}

	// Проверка на ошибки итерации (стандарт качества pgx)
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}

	return ids, nil
}

func collectAgents(rows pgx.Rows) ([]*domain.Agent, error) {
	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	agents := make([]*domain.Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan agent: %w", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return agents, nil
}

func scanAgent(scan func(dest ...any) error) (*domain.Agent, error) {
	var a domain.Agent
	var backupID, segment sql.NullString // Используем для обработки NULL из БД

	err := scan(
		&a.ID, &a.Name, &a.Email, &a.Role, &a.TeamID,
		&backupID, &segment, &a.Skills,
		&a.CurrentWorkload, &a.MaxWorkload, &a.Available,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if backupID.Valid {
		a.BackupAgentID = backupID.String
	}
	if segment.Valid {
		a.Segment = segment.String
	}
	return &a, nil
}
