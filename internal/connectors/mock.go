package connectors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

// MockCalendarSource — in-process календарь для локальных запусков и тестов.
// События складываются заранее через AddEvent.
type MockCalendarSource struct {
	mu     sync.RWMutex
	events map[string][]domain.CalendarEvent
}

func NewMockCalendarSource() *MockCalendarSource {
	return &MockCalendarSource{events: make(map[string][]domain.CalendarEvent)}
}

func (c *MockCalendarSource) AddEvent(agentID string, ev domain.CalendarEvent) {
	c.mu.Lock()
	c.events[agentID] = append(c.events[agentID], ev)
	c.mu.Unlock()
}

func (c *MockCalendarSource) ListUpcomingEvents(ctx context.Context, agentID string, horizonDays int) ([]domain.CalendarEvent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	horizon := time.Now().AddDate(0, 0, horizonDays)
	result := make([]domain.CalendarEvent, 0)
	for _, ev := range c.events[agentID] {
		if ev.Start.Before(horizon) {
			result = append(result, ev)
		}
	}
	return result, nil
}

// MockDispatcher — имитация доставки уведомлений.
// FailFor позволяет тестам заваливать отправку конкретным адресатам;
// ThrottleEvery имитирует Retry-After от провайдера.
type MockDispatcher struct {
	mu      sync.Mutex
	Sent    []string // Адресаты успешных отправок, в порядке вызова
	FailFor map[string]error

	ThrottleEvery int // Каждый N-й вызов возвращает ThrottleError (0 — выключено)
	calls         int
}

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{FailFor: make(map[string]error)}
}

func (d *MockDispatcher) Send(ctx context.Context, contact domain.Contact, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.ThrottleEvery > 0 && d.calls%d.ThrottleEvery == 0 {
		return &ThrottleError{
			RetryAfter: 10 * time.Millisecond,
			Cause:      fmt.Errorf("provider rate limit"),
		}
	}

	if err, ok := d.FailFor[contact.Email]; ok {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	d.Sent = append(d.Sent, contact.Email)
	return nil
}
