package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/cs-coverage-engine/internal/activity"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"go.uber.org/zap"
)

// SetupRequest — запрос на настройку покрытия.
type SetupRequest struct {
	AgentID   string    `json:"agent_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason,omitempty"`

	// PreferredAgentID — кандидат от вызывающего (стратегия preferred)
	PreferredAgentID string `json:"preferred_agent_id,omitempty"`

	// PriorityOverrides перекрывают вычисленный приоритет конкретных аккаунтов
	PriorityOverrides map[string]domain.AccountPriority `json:"priority_overrides,omitempty"`

	NotifyCustomers bool   `json:"notify_customers"`
	RequestedBy     string `json:"requested_by,omitempty"`

	// DetectionID — OOO-сигнал, из которого вырос запрос; после успешного
	// setup-а сигнал гасится в очереди
	DetectionID string `json:"detection_id,omitempty"`
}

// SetupCoverage — настройка покрытия: аллокация → снапшот портфеля →
// бриф → редиректы → персист агрегата. All-or-nothing: единственная запись
// в стор происходит в самом конце, любой сбой до нее не оставляет следов
// (ни осиротевших редиректов, ни полусобранных покрытий).
func (e *Engine) SetupCoverage(ctx context.Context, req SetupRequest) (*domain.OOOCoverage, error) {
	start := e.now()
	defer func() {
		e.metrics.OperationDuration.WithLabelValues("setup").Observe(time.Since(start).Seconds())
	}()

	if req.AgentID == "" {
		return nil, fmt.Errorf("%w: empty agent id", domain.ErrAgentNotFound)
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("setup: end date must be after start date")
	}

	// Single-writer по исходящему агенту: два конкурентных setup-а не должны
	// оба пройти проверку пересечения
	release, err := e.locks.acquire(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	defer release()

	// 1. Исходящий агент
	outgoing, err := e.directory.Get(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}

	// 2. Инвариант: не более одного непогашенного покрытия в пересекающихся датах
	overlapping, err := e.store.FindOverlapping(ctx, req.AgentID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("setup: overlap check: %w", err)
	}
	if len(overlapping) > 0 {
		return nil, fmt.Errorf("%w: engagement %s already covers %s",
			domain.ErrOverlappingCoverage, overlapping[0].ID, req.AgentID)
	}

	// 3. Аллокация покрывающего агента
	assignment, err := e.allocator.Assign(ctx, req.AgentID, req.PreferredAgentID)
	if err != nil {
		e.metrics.SetupTotal.WithLabelValues("none", "failed").Inc()
		return nil, err
	}
	covering := assignment.Agent

	// 4. Снапшот портфеля с учетом переопределений приоритета
	accounts, err := e.portfolio.Snapshot(ctx, req.AgentID, req.PriorityOverrides)
	if err != nil {
		return nil, err
	}

	// 5. Handoff-бриф
	handoff := e.briefs.Build(accounts, e.now())

	// 6. Редиректы каналов: создаем и сразу применяем — покрытие владеет
	// примененными редиректами весь свой срок
	updates := e.routing.Setup(outgoing, covering)
	if err := e.routing.ApplyAll(updates, e.now()); err != nil {
		return nil, err
	}

	// 7. Сборка и персист агрегата
	cov := &domain.OOOCoverage{
		ID:                uuid.New().String(),
		OutgoingAgentID:   outgoing.ID,
		OutgoingAgentName: outgoing.Name,
		CoveringAgentID:   covering.ID,
		CoveringAgentName: covering.Name,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		Status:            domain.StatusScheduled, // Производный статус уточняется при чтении
		Reason:            req.Reason,
		Strategy:          assignment.Strategy,
		NonOptimal:        assignment.NonOptimal,
		Accounts:          accounts,
		Brief:             handoff,
		Notification: domain.NotificationRecord{
			Enabled: req.NotifyCustomers,
			Method:  "email",
		},
		RoutingUpdates: updates,
		CreatedBy:      req.RequestedBy,
		CreatedAt:      e.now(),
		UpdatedAt:      e.now(),
	}

	if err := e.store.CreateCoverage(ctx, cov); err != nil {
		return nil, fmt.Errorf("setup: persist coverage: %w", err)
	}

	// Пост-коммитные действия best-effort: агрегат уже надежно сохранен
	if err := e.directory.AdjustWorkload(ctx, covering.ID, +1); err != nil {
		e.logger.Warn("workload increment failed", zap.String("agent_id", covering.ID), zap.Error(err))
	}
	if e.availability != nil {
		e.availability.MarkOut(ctx, outgoing.ID)
	}
	if req.DetectionID != "" && e.detections != nil {
		if err := e.detections.MarkDetectionProcessed(ctx, req.DetectionID); err != nil {
			e.logger.Warn("detection not marked processed",
				zap.String("detection_id", req.DetectionID), zap.Error(err))
		}
	}

	e.record(activity.Event{
		ID:         uuid.New().String(),
		CoverageID: cov.ID,
		AgentID:    covering.ID,
		Kind:       activity.KindCoverageSetup,
		Summary: fmt.Sprintf("Coverage for %s assigned to %s via %s (%d accounts)",
			outgoing.Name, covering.Name, assignment.Strategy, len(accounts)),
		Timestamp: e.now(),
	})
	e.publish(ctx, cov.ID, "created")
	e.metrics.SetupTotal.WithLabelValues(assignment.Strategy, "ok").Inc()
	e.metrics.ActiveEngagements.Inc()

	e.logger.Info("coverage engagement set up",
		zap.String("coverage_id", cov.ID),
		zap.String("outgoing_agent", outgoing.ID),
		zap.String("covering_agent", covering.ID),
		zap.String("strategy", assignment.Strategy),
		zap.Bool("non_optimal", assignment.NonOptimal),
		zap.Int("accounts", len(accounts)))

	return cov, nil
}
