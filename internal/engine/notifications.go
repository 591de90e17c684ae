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

// NotificationReport — итог best-effort рассылки по ключевым контактам.
type NotificationReport struct {
	Success bool     `json:"success"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// SendCustomerNotifications — fan-out уведомлений по ключевым контактам всех
// покрываемых аккаунтов. Сбой доставки одному контакту не прерывает
// остальных: ошибки копятся в отчете, операция завершается всегда.
func (e *Engine) SendCustomerNotifications(ctx context.Context, coverageID string) (*NotificationReport, error) {
	start := e.now()
	defer func() {
		e.metrics.OperationDuration.WithLabelValues("notify").Observe(time.Since(start).Seconds())
	}()

	cov, release, err := e.lockAndLoad(ctx, coverageID)
	if err != nil {
		return nil, err
	}
	defer release()

	if cov.Status == domain.StatusCancelled {
		return nil, fmt.Errorf("%w: cannot notify customers of a cancelled engagement", domain.ErrInvalidTransition)
	}

	message := fmt.Sprintf(
		"While %s is out of office (%s — %s), %s (%s) will be your point of contact.",
		cov.OutgoingAgentName,
		cov.StartDate.Format("Jan 2, 2006"),
		cov.EndDate.Format("Jan 2, 2006"),
		cov.CoveringAgentName,
		cov.CoveringAgentID,
	)

	report := &NotificationReport{Errors: []string{}}
	notified := make([]string, 0)

	for _, acc := range cov.Accounts {
		for _, contact := range acc.KeyContacts {
			if err := e.dispatcher.Send(ctx, contact, message); err != nil {
				report.Failed++
				report.Errors = append(report.Errors,
					fmt.Sprintf("contact %s (account %s): %v", contact.Email, acc.AccountName, err))
				e.metrics.NotificationsTotal.WithLabelValues("failed").Inc()
				continue
			}
			report.Sent++
			notified = append(notified, contact.Email)
			e.metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		}
	}
	report.Success = report.Failed == 0

	// Фиксируем результат рассылки на агрегате
	now := e.now()
	cov.Notification.Sent = report.Sent > 0
	if cov.Notification.Sent && cov.Notification.SentAt == nil {
		cov.Notification.SentAt = &now
	}
	cov.Notification.NotifiedContacts = notified
	cov.UpdatedAt = now

	if err := e.store.UpdateCoverage(ctx, cov); err != nil {
		return nil, fmt.Errorf("notifications: persist record: %w", err)
	}

	e.record(activity.Event{
		ID:         uuid.New().String(),
		CoverageID: cov.ID,
		AgentID:    cov.CoveringAgentID,
		Kind:       activity.KindNotificationSent,
		Summary:    fmt.Sprintf("Customer notifications: %d sent, %d failed", report.Sent, report.Failed),
		Timestamp:  now,
	})
	e.publish(ctx, cov.ID, "notified")

	e.logger.Info("customer notifications dispatched",
		zap.String("coverage_id", cov.ID),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed))

	return report, nil
}
