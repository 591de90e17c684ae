package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/cs-coverage-engine/internal/activity"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

// WriteBatch сохраняет пачку событий активити-лога за один INSERT.
func (r *Repo) WriteBatch(ctx context.Context, events []activity.Event) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице activity_events
	numFields := 8
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8)

		vals = append(vals,
			e.ID, e.CoverageID, e.AgentID, e.AccountID,
			e.Kind, e.Summary, e.Outcome, e.Timestamp,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO activity_events (id, coverage_id, agent_id, account_id, kind, summary, outcome, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.pool.Exec(ctx, query, vals...)
	return err
}

// FetchInteractions — взаимодействия агента с аккаунтами за период
// (engine.ActivityLog). Читаем только account_touch: служебные события
// жизненного цикла взаимодействиями не являются.
func (r *Repo) FetchInteractions(ctx context.Context, agentID string, from, to time.Time) ([]domain.Interaction, error) {
	query := `
		SELECT id, account_id, agent_id, kind, summary, outcome, timestamp
		FROM activity_events
		WHERE agent_id = $1 AND kind = $2 AND timestamp BETWEEN $3 AND $4
		ORDER BY timestamp`

	rows, err := r.pool.Query(ctx, query, agentID, activity.KindAccountTouch, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch interactions: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Interaction, 0)
	for rows.Next() {
		var it domain.Interaction
		err := rows.Scan(&it.ID, &it.AccountID, &it.AgentID, &it.Kind, &it.Summary, &it.Outcome, &it.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan interaction: %w", err)
		}
		results = append(results, it)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}
