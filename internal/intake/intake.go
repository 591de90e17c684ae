package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"go.uber.org/zap"
)

// CalendarSource — внешний календарный коллаборатор.
type CalendarSource interface {
	ListUpcomingEvents(ctx context.Context, agentID string, horizonDays int) ([]domain.CalendarEvent, error)
}

// DetectionStore — куда сохраняются нормализованные OOO-сигналы.
type DetectionStore interface {
	CreateDetection(ctx context.Context, det *domain.OOODetection) error
}

// Словарь OOO-паттернов: case-insensitive вхождение в заголовок или описание.
// Срабатывает только на all-day событиях.
var oooVocabulary = []string{
	"out of office",
	"ooo",
	"vacation",
	"pto",
	"time off",
	"away",
	"leave",
}

// Intake нормализует OOO-сигналы из календаря и ручных флагов.
// Никогда не запускает аллокацию сам — setup покрытия всегда отдельный
// явный вызов менеджера жизненного цикла.
type Intake struct {
	calendar CalendarSource
	store    DetectionStore
	logger   *zap.Logger
	now      func() time.Time
}

func New(calendar CalendarSource, store DetectionStore, logger *zap.Logger) *Intake {
	return &Intake{
		calendar: calendar,
		store:    store,
		logger:   logger.Named("intake"),
		now:      time.Now,
	}
}

// DetectFromCalendar сканирует ближайшие события агента и создает по одному
// OOODetection на каждое all-day событие, совпавшее со словарем.
func (i *Intake) DetectFromCalendar(ctx context.Context, agentID string, horizonDays int) ([]*domain.OOODetection, error) {
	events, err := i.calendar.ListUpcomingEvents(ctx, agentID, horizonDays)
	if err != nil {
		return nil, fmt.Errorf("%w: calendar source: %v", domain.ErrExternalDependency, err)
	}

	detections := make([]*domain.OOODetection, 0)
	for _, ev := range events {
		if !matchesVocabulary(ev) {
			continue
		}

		det := &domain.OOODetection{
			ID:         uuid.New().String(),
			AgentID:    agentID,
			Source:     domain.SourceCalendar,
			StartDate:  ev.Start,
			EndDate:    ev.End,
			DetectedAt: i.now(),
			RawPayload: fmt.Sprintf("%s | %s", ev.Title, ev.Description),
		}
		if err := i.store.CreateDetection(ctx, det); err != nil {
			return nil, fmt.Errorf("intake: persist detection: %w", err)
		}
		detections = append(detections, det)
	}

	i.logger.Info("calendar scan finished",
		zap.String("agent_id", agentID),
		zap.Int("events", len(events)),
		zap.Int("detections", len(detections)))

	return detections, nil
}

// SetManual создает единичный OOO-сигнал вручную, минуя словарь.
func (i *Intake) SetManual(ctx context.Context, agentID string, start, end time.Time) (*domain.OOODetection, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("intake: end date %s is before start date %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	det := &domain.OOODetection{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		Source:     domain.SourceManual,
		StartDate:  start,
		EndDate:    end,
		DetectedAt: i.now(),
	}
	if err := i.store.CreateDetection(ctx, det); err != nil {
		return nil, fmt.Errorf("intake: persist manual detection: %w", err)
	}

	i.logger.Info("manual OOO flag set",
		zap.String("agent_id", agentID),
		zap.Time("start", start),
		zap.Time("end", end))

	return det, nil
}

// matchesVocabulary проверяет all-day событие на совпадение со словарем.
func matchesVocabulary(ev domain.CalendarEvent) bool {
	if !ev.IsAllDay {
		return false
	}
	haystack := strings.ToLower(ev.Title + " " + ev.Description)
	for _, pattern := range oooVocabulary {
		if strings.Contains(haystack, pattern) {
			return true
		}
	}
	return false
}
