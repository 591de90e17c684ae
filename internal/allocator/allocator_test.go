package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/cs-coverage-engine/internal/directory"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"github.com/xela07ax/cs-coverage-engine/internal/repository/memory"
	"go.uber.org/zap"
)

func newTestAllocator(t *testing.T, agents ...*domain.Agent) *Allocator {
	t.Helper()
	store := memory.NewStore()
	for _, a := range agents {
		store.PutAgent(a)
	}
	dir := directory.New(store, nil, zap.NewNop())
	return New(dir, zap.NewNop())
}

func agent(id, teamID string, workload, max int, opts ...func(*domain.Agent)) *domain.Agent {
	a := &domain.Agent{
		ID:              id,
		Name:            id,
		TeamID:          teamID,
		CurrentWorkload: workload,
		MaxWorkload:     max,
		Available:       true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func withBackup(backupID string) func(*domain.Agent) {
	return func(a *domain.Agent) { a.BackupAgentID = backupID }
}

func withSkills(skills ...string) func(*domain.Agent) {
	return func(a *domain.Agent) { a.Skills = skills }
}

func TestAssign_PreferredAgentWins(t *testing.T) {
	alloc := newTestAllocator(t,
		agent("out", "team-1", 0, 10),
		agent("preferred", "team-2", 9, 10),
		agent("teammate", "team-1", 0, 10),
	)

	res, err := alloc.Assign(context.Background(), "out", "preferred")
	require.NoError(t, err)
	assert.Equal(t, "preferred", res.Agent.ID)
	assert.Equal(t, StrategyPreferred, res.Strategy)
	assert.False(t, res.NonOptimal)
}

func TestAssign_PreferredAtCapacityFallsThrough(t *testing.T) {
	alloc := newTestAllocator(t,
		agent("out", "team-1", 0, 10, withBackup("backup")),
		agent("preferred", "team-2", 10, 10), // Заполнен, пропускается
		agent("backup", "team-2", 5, 10),
	)

	res, err := alloc.Assign(context.Background(), "out", "preferred")
	require.NoError(t, err)
	assert.Equal(t, "backup", res.Agent.ID)
	assert.Equal(t, StrategyPrimaryBackup, res.Strategy)
}

func TestAssign_PrimaryBackup(t *testing.T) {
	alloc := newTestAllocator(t,
		agent("out", "team-1", 0, 10, withBackup("backup")),
		agent("backup", "team-2", 3, 10),
		agent("teammate", "team-1", 0, 10),
	)

	res, err := alloc.Assign(context.Background(), "out", "")
	require.NoError(t, err)
	assert.Equal(t, "backup", res.Agent.ID)
	assert.Equal(t, StrategyPrimaryBackup, res.Strategy)
}

func TestAssign_WorkloadBalancedPicksLowestRatio(t *testing.T) {
	// C: 8/10 = 0.8, D: 3/5 = 0.6 — побеждает D несмотря на меньший потолок
	alloc := newTestAllocator(t,
		agent("out", "team-1", 0, 10),
		agent("c", "team-1", 8, 10),
		agent("d", "team-1", 3, 5),
	)

	res, err := alloc.Assign(context.Background(), "out", "")
	require.NoError(t, err)
	assert.Equal(t, "d", res.Agent.ID)
	assert.Equal(t, StrategyWorkloadBalanced, res.Strategy)
}

func TestAssign_WorkloadBalancedTieBreaksByDirectoryOrder(t *testing.T) {
	// Одинаковая доля занятости (2/10): стабильная сортировка сохраняет
	// порядок директории (по имени), побеждает первый из равных
	alloc := newTestAllocator(t,
		agent("out", "team-1", 0, 10),
		agent("zoe", "team-1", 2, 10),
		agent("anna", "team-1", 2, 10),
	)

	res, err := alloc.Assign(context.Background(), "out", "")
	require.NoError(t, err)
	assert.Equal(t, "anna", res.Agent.ID)
	assert.Equal(t, StrategyWorkloadBalanced, res.Strategy)
}

func TestAssign_SkillMatchCrossTeam(t *testing.T) {
	alloc := newTestAllocator(t,
		agent("out", "team-1", 0, 10, withSkills("renewals", "onboarding")),
		agent("other-team", "team-2", 2, 10, withSkills("renewals")),
		agent("no-skills", "team-3", 0, 10),
	)

	res, err := alloc.Assign(context.Background(), "out", "")
	require.NoError(t, err)
	assert.Equal(t, "other-team", res.Agent.ID)
	assert.Equal(t, StrategySkillMatch, res.Strategy)
}

func TestAssign_RoundRobinIgnoresCapacity(t *testing.T) {
	// Все заполнены: стратегии 1-4 пусты, round-robin берет минимальную
	// абсолютную нагрузку и взводит NonOptimal
	alloc := newTestAllocator(t,
		agent("out", "team-1", 0, 10),
		agent("busy", "team-2", 12, 10),
		agent("less-busy", "team-3", 10, 10),
	)

	res, err := alloc.Assign(context.Background(), "out", "")
	require.NoError(t, err)
	assert.Equal(t, "less-busy", res.Agent.ID)
	assert.Equal(t, StrategyRoundRobin, res.Strategy)
	assert.True(t, res.NonOptimal)
}

func TestAssign_EmptyPoolFails(t *testing.T) {
	alloc := newTestAllocator(t, agent("out", "team-1", 0, 10))

	_, err := alloc.Assign(context.Background(), "out", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoCoveringAgent)
}

func TestAssign_OutgoingAgentExcludedFromPool(t *testing.T) {
	// Исходящий агент — единственный в директории: покрывать себя нельзя
	alloc := newTestAllocator(t, agent("out", "team-1", 0, 10, withSkills("renewals")))

	_, err := alloc.Assign(context.Background(), "out", "out")
	assert.ErrorIs(t, err, domain.ErrNoCoveringAgent)
}

func TestAssign_UnavailableAgentsSkipped(t *testing.T) {
	off := agent("off", "team-1", 0, 10)
	off.Available = false

	alloc := newTestAllocator(t,
		agent("out", "team-1", 0, 10),
		off,
		agent("on", "team-1", 1, 10),
	)

	res, err := alloc.Assign(context.Background(), "out", "")
	require.NoError(t, err)
	assert.Equal(t, "on", res.Agent.ID)
}
