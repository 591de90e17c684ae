package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/cs-coverage-engine/internal/connectors"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"github.com/xela07ax/cs-coverage-engine/internal/infra"
	"golang.org/x/time/rate"
)

// ReliableDispatcher оборачивает реальный диспетчер в контур надежности:
// Rate Limiter → Circuit Breaker → Retry с учетом Retry-After от провайдера.
// Одна медленная или лежащая интеграция не должна завалить fan-out по контактам.
type ReliableDispatcher struct {
	next     Dispatcher
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts int
	timeout  time.Duration
}

func NewReliableDispatcher(next Dispatcher, cfg infra.EngineConfig) *ReliableDispatcher {
	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notification-dispatcher",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > cfg.CBMaxConsecErrors
		},
	})

	limiter := rate.NewLimiter(rate.Limit(cfg.NotifyRatePerSec), cfg.NotifyBurst)

	attempts := cfg.NotifyAttempts
	if attempts <= 0 {
		attempts = 3
	}
	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ReliableDispatcher{
		next:     next,
		cb:       cb,
		limiter:  limiter,
		attempts: attempts,
		timeout:  timeout,
	}
}

func (d *ReliableDispatcher) Send(ctx context.Context, contact domain.Contact, message string) error {
	// 1. Rate Limiter
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	_, err := d.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(uint(d.attempts)),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если провайдер вернул ThrottleError (считал Retry-After) — уважаем его
				var tErr *connectors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// Иначе (сетевой лаг, 500-ка) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			return d.next.Send(tCtx, contact, message)
		})
		return nil, retryErr
	})

	if err != nil {
		return fmt.Errorf("%w: notification to %s: %v", domain.ErrExternalDependency, contact.Email, err)
	}
	return nil
}
