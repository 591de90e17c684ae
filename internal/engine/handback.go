package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/cs-coverage-engine/internal/activity"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"go.uber.org/zap"
)

// ProcessReturn — обработка возвращения исходящего агента: сводка
// активности за отсутствие, sentiment-дельты, незакрытые проблемы,
// follow-up рекомендации; затем completed + откат редиректов.
// At-least-once: на уже завершенном покрытии возвращается сохраненный
// handback без генерации нового документа.
func (e *Engine) ProcessReturn(ctx context.Context, coverageID, coveringNotes string) (*domain.ReturnHandback, error) {
	start := e.now()
	defer func() {
		e.metrics.OperationDuration.WithLabelValues("return").Observe(time.Since(start).Seconds())
	}()

	cov, release, err := e.lockAndLoad(ctx, coverageID)
	if err != nil {
		return nil, err
	}
	defer release()

	switch cov.Status {
	case domain.StatusCancelled:
		return nil, fmt.Errorf("%w: cannot process return of a cancelled engagement", domain.ErrInvalidTransition)
	case domain.StatusCompleted:
		if cov.Handback != nil {
			// Повторный вызов: рефлекторно добиваем откат редиректов (идемпотентен)
			// и отдаем существующий документ
			e.routing.RevertAll(cov.RoutingUpdates, e.now())
			return cov.Handback, nil
		}
	}

	handback, err := e.buildHandback(ctx, cov, coveringNotes)
	if err != nil {
		return nil, err
	}

	// Терминальный переход + откат редиректов, затем единый персист
	now := e.now()
	cov.Status = domain.StatusCompleted
	cov.Handback = handback
	cov.UpdatedAt = now
	e.routing.RevertAll(cov.RoutingUpdates, now)

	if err := e.store.UpdateCoverage(ctx, cov); err != nil {
		return nil, fmt.Errorf("return: persist handback: %w", err)
	}

	// Пост-коммит best-effort
	if err := e.directory.AdjustWorkload(ctx, cov.CoveringAgentID, -1); err != nil {
		e.logger.Warn("workload decrement failed", zap.String("agent_id", cov.CoveringAgentID), zap.Error(err))
	}
	if e.availability != nil {
		e.availability.MarkReturned(ctx, cov.OutgoingAgentID)
	}

	e.record(activity.Event{
		ID:         uuid.New().String(),
		CoverageID: cov.ID,
		AgentID:    cov.OutgoingAgentID,
		Kind:       activity.KindReturnProcessed,
		Summary: fmt.Sprintf("Return processed: %d activity summaries, %d outstanding issues, %d follow-ups",
			len(handback.Activity), len(handback.IssuesOutstanding), len(handback.FollowUps)),
		Timestamp: now,
	})
	e.publish(ctx, cov.ID, "completed")
	e.metrics.ReturnsTotal.Inc()
	e.metrics.ActiveEngagements.Dec()

	e.logger.Info("return processed",
		zap.String("coverage_id", cov.ID),
		zap.String("outgoing_agent", cov.OutgoingAgentID))

	return handback, nil
}

// buildHandback компилирует документ возвращения из внешних фидов.
// Читающие вызовы fail-fast: без данных коллабораторов документ неполон.
func (e *Engine) buildHandback(ctx context.Context, cov *domain.OOOCoverage, notes string) (*domain.ReturnHandback, error) {
	// 1. Взаимодействия покрывающего агента за окно покрытия
	interactions, err := e.activity.FetchInteractions(ctx, cov.CoveringAgentID, cov.StartDate, cov.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: activity log: %v", domain.ErrExternalDependency, err)
	}

	byAccount := make(map[string][]domain.Interaction)
	for _, it := range interactions {
		byAccount[it.AccountID] = append(byAccount[it.AccountID], it)
	}

	handback := &domain.ReturnHandback{
		ID:                uuid.New().String(),
		GeneratedAt:       e.now(),
		Activity:          []domain.ActivitySummary{},
		IssuesResolved:    []domain.Issue{},
		IssuesOutstanding: []domain.Issue{},
		SentimentChanges:  []domain.SentimentChange{},
		FollowUps:         []domain.FollowUpRecommendation{},
		CoveringNotes:     notes,
	}

	for _, acc := range cov.Accounts {
		// 2. Сводка активности по аккаунту
		if accInteractions := byAccount[acc.AccountID]; len(accInteractions) > 0 {
			sort.Slice(accInteractions, func(i, j int) bool {
				return accInteractions[i].OccurredAt.Before(accInteractions[j].OccurredAt)
			})
			last := accInteractions[len(accInteractions)-1]
			handback.Activity = append(handback.Activity, domain.ActivitySummary{
				AccountID:    acc.AccountID,
				AccountName:  acc.AccountName,
				Interactions: len(accInteractions),
				Summary: fmt.Sprintf("%d interaction(s) during coverage; last: %s",
					len(accInteractions), last.Summary),
				LastTouch: last.OccurredAt,
			})
		}

		// 3. Sentiment-дельта: health снапшота против текущего
		current, err := e.accounts.GetAccount(ctx, acc.AccountID)
		if err != nil {
			return nil, fmt.Errorf("%w: account store: %v", domain.ErrExternalDependency, err)
		}
		if current != nil {
			handback.SentimentChanges = append(handback.SentimentChanges, domain.SentimentChange{
				AccountID:     acc.AccountID,
				AccountName:   acc.AccountName,
				PreviousScore: acc.HealthScore,
				CurrentScore:  current.HealthScore,
				Trend:         classifyTrend(acc.HealthScore, current.HealthScore),
			})
		}

		// 4. Судьба открытых на момент снапшота проблем. Проблема считается
		// решенной только по свидетельству из стора: если аккаунт оттуда
		// пропал, все проблемы снапшота остаются незакрытыми.
		if current == nil {
			handback.IssuesOutstanding = append(handback.IssuesOutstanding, acc.OpenIssues...)
		} else {
			currentlyOpen := make(map[string]struct{})
			for _, iss := range current.OpenIssues {
				if !iss.Resolved {
					currentlyOpen[iss.ID] = struct{}{}
				}
			}
			for _, iss := range acc.OpenIssues {
				if _, stillOpen := currentlyOpen[iss.ID]; stillOpen {
					handback.IssuesOutstanding = append(handback.IssuesOutstanding, iss)
				} else {
					handback.IssuesResolved = append(handback.IssuesResolved, iss)
				}
			}
		}

		// 5. Follow-up для high-priority аккаунтов и аккаунтов с проблемами
		if acc.Priority == domain.PriorityHigh || len(acc.OpenIssues) > 0 {
			handback.FollowUps = append(handback.FollowUps, domain.FollowUpRecommendation{
				AccountID:   acc.AccountID,
				AccountName: acc.AccountName,
				Action:      "Schedule follow-up call to ensure smooth transition",
				Reason:      followUpReason(acc),
				SuggestedAt: e.now().Add(e.cfg.FollowUpDelay),
			})
		}
	}

	return handback, nil
}

// Дельта в пределах ±5 пунктов считается шумом
func classifyTrend(previous, current int) domain.SentimentTrend {
	switch delta := current - previous; {
	case delta > 5:
		return domain.TrendImproved
	case delta < -5:
		return domain.TrendDeclined
	default:
		return domain.TrendStable
	}
}

func followUpReason(acc domain.CoveredAccount) string {
	if acc.Priority == domain.PriorityHigh {
		return "high-priority account"
	}
	return fmt.Sprintf("%d open issue(s) at handoff", len(acc.OpenIssues))
}

// Cancel отменяет покрытие из scheduled или active. Примененные
// редиректы откатываются; handback не генерируется — отмена это
// альтернативный выход из жизненного цикла, а не возвращение.
func (e *Engine) Cancel(ctx context.Context, coverageID, cancelledBy string) error {
	cov, release, err := e.lockAndLoad(ctx, coverageID)
	if err != nil {
		return err
	}
	defer release()

	if cov.IsTerminal() {
		return fmt.Errorf("%w: engagement is already %s", domain.ErrInvalidTransition, cov.Status)
	}

	now := e.now()
	e.routing.RevertAll(cov.RoutingUpdates, now)
	cov.Status = domain.StatusCancelled
	cov.UpdatedAt = now

	if err := e.store.UpdateCoverage(ctx, cov); err != nil {
		return fmt.Errorf("cancel: persist: %w", err)
	}

	if err := e.directory.AdjustWorkload(ctx, cov.CoveringAgentID, -1); err != nil {
		e.logger.Warn("workload decrement failed", zap.String("agent_id", cov.CoveringAgentID), zap.Error(err))
	}
	if e.availability != nil {
		e.availability.MarkReturned(ctx, cov.OutgoingAgentID)
	}

	e.record(activity.Event{
		ID:         uuid.New().String(),
		CoverageID: cov.ID,
		AgentID:    cancelledBy,
		Kind:       activity.KindCoverageCancelled,
		Summary:    fmt.Sprintf("Coverage for %s cancelled", cov.OutgoingAgentName),
		Timestamp:  now,
	})
	e.publish(ctx, cov.ID, "cancelled")
	e.metrics.CancellationsTotal.Inc()
	e.metrics.ActiveEngagements.Dec()

	e.logger.Info("coverage engagement cancelled",
		zap.String("coverage_id", cov.ID),
		zap.String("cancelled_by", cancelledBy))

	return nil
}
