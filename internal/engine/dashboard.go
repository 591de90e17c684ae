package engine

import (
	"context"
	"fmt"

	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"go.uber.org/zap"
)

// GetCoverage возвращает агрегат по идентификатору.
func (e *Engine) GetCoverage(ctx context.Context, coverageID string) (*domain.OOOCoverage, error) {
	cov, err := e.store.GetCoverage(ctx, coverageID)
	if err != nil {
		return nil, fmt.Errorf("get coverage: %w", err)
	}
	if cov == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCoverageNotFound, coverageID)
	}
	return cov, nil
}

// GetCurrentCoverage — покрытия, в которых агент участвует прямо сейчас:
// собственное отсутствие плюс чужие портфели на его попечении.
func (e *Engine) GetCurrentCoverage(ctx context.Context, agentID string) (*domain.CurrentCoverage, error) {
	now := e.now()

	outAs, err := e.store.FindActiveByOutgoing(ctx, agentID, now)
	if err != nil {
		return nil, fmt.Errorf("current coverage: by outgoing: %w", err)
	}
	covering, err := e.store.FindActiveByCovering(ctx, agentID, now)
	if err != nil {
		return nil, fmt.Errorf("current coverage: by covering: %w", err)
	}
	if covering == nil {
		covering = []*domain.OOOCoverage{}
	}

	return &domain.CurrentCoverage{OutAs: outAs, Covering: covering}, nil
}

// GetDashboard собирает сводный экран: активные и предстоящие покрытия
// плюс завершенные за последние 30 дней.
func (e *Engine) GetDashboard(ctx context.Context) (*domain.CoverageDashboard, error) {
	now := e.now()

	active, err := e.store.ListActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("dashboard: active: %w", err)
	}
	upcoming, err := e.store.ListUpcoming(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("dashboard: upcoming: %w", err)
	}
	completed, err := e.store.ListCompletedSince(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, fmt.Errorf("dashboard: completed: %w", err)
	}

	nonOptimal := 0
	for _, c := range active {
		if c.NonOptimal {
			nonOptimal++
		}
	}

	return &domain.CoverageDashboard{
		Active:            active,
		Upcoming:          upcoming,
		RecentlyCompleted: completed,
		Stats: domain.DashboardStats{
			ActiveCount:      len(active),
			ScheduledCount:   len(upcoming),
			CompletedLast30d: len(completed),
			NonOptimalActive: nonOptimal,
		},
	}, nil
}

// GetHandoffBrief отдает бриф покрывающему агенту. Первый просмотр
// фиксируется в агрегате (кто и когда), повторные ничего не меняют.
func (e *Engine) GetHandoffBrief(ctx context.Context, coverageID, viewerID string) (*domain.HandoffBrief, error) {
	cov, err := e.store.GetCoverage(ctx, coverageID)
	if err != nil {
		return nil, fmt.Errorf("get brief: %w", err)
	}
	if cov == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCoverageNotFound, coverageID)
	}
	if cov.Brief == nil {
		return nil, fmt.Errorf("%w: engagement %s has no brief", domain.ErrCoverageNotFound, coverageID)
	}

	if cov.Brief.MarkViewed(viewerID, e.now()) {
		cov.UpdatedAt = e.now()
		if err := e.store.UpdateCoverage(ctx, cov); err != nil {
			// Просмотр не критичен для консистентности: бриф отдаем, факт не теряем в логе
			e.logger.Warn("brief view mark not persisted",
				zap.String("coverage_id", coverageID),
				zap.String("viewer", viewerID),
				zap.Error(err))
		}
	}

	return cov.Brief, nil
}
