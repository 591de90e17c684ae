package directory

import (
	"context"
	"fmt"

	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"go.uber.org/zap"
)

// Store описывает требования к хранилищу записей об агентах
type Store interface {
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	ListAvailableAgents(ctx context.Context, excludingID string) ([]*domain.Agent, error)
	ListTeamAgents(ctx context.Context, teamID string) ([]*domain.Agent, error)
	AdjustWorkload(ctx context.Context, agentID string, delta int) error
	ListUnavailableAgentIDs(ctx context.Context) ([]string, error)
}

// Directory — read API над состоянием агентов. Поверх стора держит
// L1-кэш недоступности: агент, ушедший в OOO, выпадает из выдачи ListAvailable
// мгновенно, не дожидаясь записи в БД внешней синхронизацией.
type Directory struct {
	store  Store
	cache  *AvailabilityCache
	logger *zap.Logger
}

func New(store Store, cache *AvailabilityCache, logger *zap.Logger) *Directory {
	return &Directory{
		store:  store,
		cache:  cache,
		logger: logger.Named("directory"),
	}
}

// Get возвращает агента по ID. Отсутствие — доменная ошибка ErrAgentNotFound.
func (d *Directory) Get(ctx context.Context, id string) (*domain.Agent, error) {
	agent, err := d.store.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrAgentNotFound, id)
	}
	return agent, nil
}

// ListAvailable — доступные к назначению агенты, кроме excludingID.
// Поверх флага availability из стора накладывается L1-кэш OOO-недоступности.
func (d *Directory) ListAvailable(ctx context.Context, excludingID string) ([]*domain.Agent, error) {
	agents, err := d.store.ListAvailableAgents(ctx, excludingID)
	if err != nil {
		return nil, fmt.Errorf("directory: list available: %w", err)
	}

	result := make([]*domain.Agent, 0, len(agents))
	for _, a := range agents {
		if d.cache != nil && d.cache.IsOut(a.ID) {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

// ListByTeam — все агенты команды (без фильтра доступности).
func (d *Directory) ListByTeam(ctx context.Context, teamID string) ([]*domain.Agent, error) {
	agents, err := d.store.ListTeamAgents(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("directory: list team %s: %w", teamID, err)
	}
	return agents, nil
}

// AdjustWorkload — хук изменения нагрузки. Сам аллокатор нагрузку только
// читает; инкремент/декремент на назначении и возврате — решение вызывающего.
func (d *Directory) AdjustWorkload(ctx context.Context, agentID string, delta int) error {
	if err := d.store.AdjustWorkload(ctx, agentID, delta); err != nil {
		return fmt.Errorf("directory: adjust workload for %s: %w", agentID, err)
	}
	d.logger.Debug("workload adjusted",
		zap.String("agent_id", agentID),
		zap.Int("delta", delta))
	return nil
}
