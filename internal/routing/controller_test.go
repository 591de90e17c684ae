package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"go.uber.org/zap"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func testAgents() (*domain.Agent, *domain.Agent) {
	out := &domain.Agent{ID: "out-1", Name: "Alice", Email: "alice@example.com"}
	cov := &domain.Agent{ID: "cov-1", Name: "Bob", Email: "bob@example.com"}
	return out, cov
}

func TestSetup_OneUpdatePerChannel(t *testing.T) {
	c := NewController(zap.NewNop())
	out, cov := testAgents()

	updates := c.Setup(out, cov)
	require.Len(t, updates, 3)

	byChannel := make(map[domain.RoutingChannel]*domain.RoutingUpdate)
	for _, u := range updates {
		assert.Equal(t, domain.RoutingPending, u.Status)
		assert.NotEmpty(t, u.ID)
		byChannel[u.Channel] = u
	}

	// Почта редиректится по адресам, задачи и алерты — по ID агентов
	require.Contains(t, byChannel, domain.ChannelEmail)
	assert.Equal(t, "alice@example.com", byChannel[domain.ChannelEmail].OriginalTarget)
	assert.Equal(t, "bob@example.com", byChannel[domain.ChannelEmail].TemporaryTarget)

	require.Contains(t, byChannel, domain.ChannelTasks)
	assert.Equal(t, "out-1", byChannel[domain.ChannelTasks].OriginalTarget)
	assert.Equal(t, "cov-1", byChannel[domain.ChannelTasks].TemporaryTarget)

	require.Contains(t, byChannel, domain.ChannelAlerts)
	assert.Equal(t, "cov-1", byChannel[domain.ChannelAlerts].TemporaryTarget)
}

func TestApplyAllThenRevertAll(t *testing.T) {
	c := NewController(zap.NewNop())
	out, cov := testAgents()
	updates := c.Setup(out, cov)

	require.NoError(t, c.ApplyAll(updates, now))
	for _, u := range updates {
		assert.Equal(t, domain.RoutingApplied, u.Status)
	}

	c.RevertAll(updates, now.Add(time.Hour))
	for _, u := range updates {
		assert.Equal(t, domain.RoutingReverted, u.Status)
	}

	// Повторный откат ничего не меняет
	stamps := make([]time.Time, len(updates))
	for i, u := range updates {
		stamps[i] = *u.RevertedAt
	}
	c.RevertAll(updates, now.Add(2*time.Hour))
	for i, u := range updates {
		assert.Equal(t, stamps[i], *u.RevertedAt)
	}
}
