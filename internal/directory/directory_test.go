package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"github.com/xela07ax/cs-coverage-engine/internal/repository/memory"
)

func TestAvailabilityCache_LocalMarking(t *testing.T) {
	cache := NewAvailabilityCache(nil, zap.NewNop())

	require.NoError(t, cache.Init(context.Background(), []string{"agent-1"}))
	assert.True(t, cache.IsOut("agent-1"))
	assert.False(t, cache.IsOut("agent-2"))

	// Без Redis сигналы работают чисто локально
	cache.MarkOut(context.Background(), "agent-2")
	assert.True(t, cache.IsOut("agent-2"))

	cache.MarkReturned(context.Background(), "agent-1")
	assert.False(t, cache.IsOut("agent-1"))

	// Повторный возврат — no-op
	cache.MarkReturned(context.Background(), "agent-1")
	assert.False(t, cache.IsOut("agent-1"))
}

func TestAvailabilityCache_InitReplacesState(t *testing.T) {
	cache := NewAvailabilityCache(nil, zap.NewNop())
	cache.MarkOut(context.Background(), "stale")

	require.NoError(t, cache.Init(context.Background(), []string{"fresh"}))
	assert.False(t, cache.IsOut("stale"), "Init заменяет состояние выгрузкой из БД")
	assert.True(t, cache.IsOut("fresh"))
}

func TestDirectory_Get(t *testing.T) {
	store := memory.NewStore()
	store.PutAgent(&domain.Agent{ID: "agent-1", Name: "Alice", Available: true})

	dir := New(store, nil, zap.NewNop())

	agent, err := dir.Get(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", agent.Name)

	_, err = dir.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}

func TestDirectory_ListAvailableHonorsOOOCache(t *testing.T) {
	store := memory.NewStore()
	store.PutAgent(&domain.Agent{ID: "agent-1", Name: "Alice", Available: true})
	store.PutAgent(&domain.Agent{ID: "agent-2", Name: "Bob", Available: true})
	store.PutAgent(&domain.Agent{ID: "agent-3", Name: "Carol", Available: true})

	cache := NewAvailabilityCache(nil, zap.NewNop())
	cache.MarkOut(context.Background(), "agent-2")

	dir := New(store, cache, zap.NewNop())

	agents, err := dir.ListAvailable(context.Background(), "agent-3")
	require.NoError(t, err)
	require.Len(t, agents, 1, "agent-2 выпал по OOO-кэшу, agent-3 исключен явно")
	assert.Equal(t, "agent-1", agents[0].ID)
}

func TestDirectory_AdjustWorkloadFloorsAtZero(t *testing.T) {
	store := memory.NewStore()
	store.PutAgent(&domain.Agent{ID: "agent-1", Name: "Alice", CurrentWorkload: 1})

	dir := New(store, nil, zap.NewNop())

	require.NoError(t, dir.AdjustWorkload(context.Background(), "agent-1", -5))
	agent, err := dir.Get(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 0, agent.CurrentWorkload)
}
