package postgres

/*
Файл account_repo.go — read-реплика внешнего account store. Движок аккаунты
не создает и не правит: внешняя синхронизация наполняет таблицу, мы читаем.
Вложенные коллекции (проблемы, встречи, задачи, контакты) лежат в JSONB.
*/

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

const accountColumns = `id, name, owner_id, status, health_score, revenue,
	open_issues, upcoming_events, pending_tasks, key_contacts, notes`

// GetAccount возвращает аккаунт по ID или (nil, nil), если его нет.
func (r *Repo) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	acc, err := scanAccount(row.Scan)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get account: %w", err)
	}
	return acc, nil
}

// ListAccountsByOwner — портфель агента (portfolio.AccountStore).
func (r *Repo) ListAccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY revenue DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list accounts by owner: %w", err)
	}
	defer rows.Close()

	results := make([]*domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan account: %w", err)
		}
		results = append(results, acc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

func scanAccount(scan func(dest ...any) error) (*domain.Account, error) {
	var a domain.Account
	var notes sql.NullString
	var issues, events, tasks, contacts []byte

	err := scan(
		&a.ID, &a.Name, &a.OwnerID, &a.Status, &a.HealthScore, &a.Revenue,
		&issues, &events, &tasks, &contacts, &notes,
	)
	if err != nil {
		return nil, err
	}

	if notes.Valid {
		a.Notes = notes.String
	}
	if err := json.Unmarshal(issues, &a.OpenIssues); err != nil {
		return nil, fmt.Errorf("unmarshal open issues: %w", err)
	}
	if err := json.Unmarshal(events, &a.UpcomingEvents); err != nil {
		return nil, fmt.Errorf("unmarshal upcoming events: %w", err)
	}
	if err := json.Unmarshal(tasks, &a.PendingTasks); err != nil {
		return nil, fmt.Errorf("unmarshal pending tasks: %w", err)
	}
	if err := json.Unmarshal(contacts, &a.KeyContacts); err != nil {
		return nil, fmt.Errorf("unmarshal key contacts: %w", err)
	}
	return &a, nil
}
