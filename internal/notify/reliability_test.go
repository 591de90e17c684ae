package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/cs-coverage-engine/internal/connectors"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"github.com/xela07ax/cs-coverage-engine/internal/infra"
)

func testEngineConfig() infra.EngineConfig {
	return infra.EngineConfig{
		NotifyTimeout:     time.Second,
		NotifyAttempts:    3,
		NotifyRatePerSec:  1000, // В тестах лимитер не должен тормозить
		NotifyBurst:       100,
		CBMaxRequests:     1,
		CBInterval:        time.Minute,
		CBTimeout:         time.Minute,
		CBMaxConsecErrors: 5,
	}
}

func TestReliableDispatcher_RetriesOnThrottle(t *testing.T) {
	mock := connectors.NewMockDispatcher()
	mock.ThrottleEvery = 1 // Каждый вызов отдает ThrottleError — все попытки исчерпаются

	d := NewReliableDispatcher(mock, testEngineConfig())
	err := d.Send(context.Background(), domain.Contact{Name: "Carol", Email: "carol@acme.test"}, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalDependency)
	assert.Empty(t, mock.Sent)
}

func TestReliableDispatcher_ThrottleThenSuccess(t *testing.T) {
	mock := connectors.NewMockDispatcher()
	mock.ThrottleEvery = 2 // Четные вызовы throttled: 1-й ок

	d := NewReliableDispatcher(mock, testEngineConfig())

	// 1-й вызов проходит сразу
	err := d.Send(context.Background(), domain.Contact{Email: "carol@acme.test"}, "hi")
	require.NoError(t, err)

	// 2-й вызов словит throttle (calls=2), ретрай (calls=3) пройдет,
	// выждав Retry-After провайдера
	err = d.Send(context.Background(), domain.Contact{Email: "dan@acme.test"}, "hi")
	require.NoError(t, err)

	assert.Equal(t, []string{"carol@acme.test", "dan@acme.test"}, mock.Sent)
}

func TestReliableDispatcher_PermanentFailureWrapped(t *testing.T) {
	mock := connectors.NewMockDispatcher()
	mock.FailFor["dead@globex.test"] = errors.New("mailbox does not exist")

	d := NewReliableDispatcher(mock, testEngineConfig())
	err := d.Send(context.Background(), domain.Contact{Email: "dead@globex.test"}, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalDependency)
	assert.Contains(t, err.Error(), "dead@globex.test")
}

func TestReliableDispatcher_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	mock := connectors.NewMockDispatcher()
	mock.FailFor["dead@globex.test"] = errors.New("mailbox does not exist")

	cfg := testEngineConfig()
	cfg.CBMaxConsecErrors = 1
	d := NewReliableDispatcher(mock, cfg)

	contact := domain.Contact{Email: "dead@globex.test"}
	// Два проваленных круга взводят предохранитель
	require.Error(t, d.Send(context.Background(), contact, "hi"))
	require.Error(t, d.Send(context.Background(), contact, "hi"))

	err := d.Send(context.Background(), contact, "hi")
	require.Error(t, err)
	// Открытый CB отсекает запрос, не доходя до провайдера
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.ErrorIs(t, err, domain.ErrExternalDependency)
}
