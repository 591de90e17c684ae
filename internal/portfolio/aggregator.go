package portfolio

import (
	"context"
	"fmt"

	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"go.uber.org/zap"
)

// AccountStore описывает read-доступ к внешнему account store
type AccountStore interface {
	ListAccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error)
}

// Thresholds — пороги приоритизации из конфига движка.
type Thresholds struct {
	HighValueRevenue float64
	MidValueRevenue  float64
}

// Aggregator собирает портфель исходящего агента и снимает
// неизменяемые снапшоты аккаунтов на момент настройки покрытия.
type Aggregator struct {
	accounts   AccountStore
	thresholds Thresholds
	logger     *zap.Logger
}

func New(accounts AccountStore, thresholds Thresholds, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		accounts:   accounts,
		thresholds: thresholds,
		logger:     logger.Named("portfolio"),
	}
}

// Snapshot снимает срез портфеля ownerID. overrides перекрывают вычисленный
// приоритет для конкретных аккаунтов. Последующие изменения аккаунта снапшот
// не трогают — следующее покрытие снимает новый.
func (a *Aggregator) Snapshot(ctx context.Context, ownerID string, overrides map[string]domain.AccountPriority) ([]domain.CoveredAccount, error) {
	accounts, err := a.accounts.ListAccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: account store: %v", domain.ErrExternalDependency, err)
	}

	snapshots := make([]domain.CoveredAccount, 0, len(accounts))
	for _, acc := range accounts {
		priority := a.Classify(acc)
		if override, ok := overrides[acc.ID]; ok {
			priority = override
		}

		snapshots = append(snapshots, domain.CoveredAccount{
			AccountID:      acc.ID,
			AccountName:    acc.Name,
			Priority:       priority,
			HealthScore:    acc.HealthScore,
			Revenue:        acc.Revenue,
			Status:         acc.Status,
			OpenIssues:     copyOpenIssues(acc.OpenIssues),
			UpcomingEvents: append([]domain.ScheduledEvent(nil), acc.UpcomingEvents...),
			PendingTasks:   append([]domain.TaskItem(nil), acc.PendingTasks...),
			KeyContacts:    append([]domain.Contact(nil), acc.KeyContacts...),
			Notes:          acc.Notes,
		})
	}

	a.logger.Info("portfolio snapshot taken",
		zap.String("owner_id", ownerID),
		zap.Int("accounts", len(snapshots)),
		zap.Int("overrides", len(overrides)))

	return snapshots, nil
}

// Classify — дефолтный приоритет из двух сигналов: health score и revenue.
// Правила ИЛИ: плохой health ИЛИ крупный контракт поднимают приоритет.
func (a *Aggregator) Classify(acc *domain.Account) domain.AccountPriority {
	switch {
	case acc.HealthScore < 50 || acc.Revenue > a.thresholds.HighValueRevenue:
		return domain.PriorityHigh
	case acc.HealthScore < 70 || acc.Revenue > a.thresholds.MidValueRevenue:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// В снапшот попадают только незакрытые проблемы
func copyOpenIssues(issues []domain.Issue) []domain.Issue {
	open := make([]domain.Issue, 0, len(issues))
	for _, iss := range issues {
		if !iss.Resolved {
			open = append(open, iss)
		}
	}
	return open
}
