package allocator

import (
	"context"
	"fmt"

	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"go.uber.org/zap"
)

// Имена стратегий попадают в результат назначения и в метрики,
// чтобы операторы видели, каким путем был выбран агент.
const (
	StrategyPreferred        = "preferred"
	StrategyPrimaryBackup    = "primary_backup"
	StrategyWorkloadBalanced = "workload_balanced"
	StrategySkillMatch       = "skill_match"
	StrategyRoundRobin       = "round_robin"
)

// AgentProvider Описываем, что нам нужно от директории агентов
type AgentProvider interface {
	Get(ctx context.Context, id string) (*domain.Agent, error)
	ListAvailable(ctx context.Context, excludingID string) ([]*domain.Agent, error)
}

// Result — исход аллокации. NonOptimal взводится на round-robin fallback:
// назначение состоялось, но качество деградировано (кандидат сверх потолка нагрузки).
type Result struct {
	Agent      *domain.Agent `json:"agent"`
	Strategy   string        `json:"strategy"`
	NonOptimal bool          `json:"non_optimal"`
}

// strategy — один шаг waterfall-а. pick возвращает nil, если шаг не дал
// кандидата; тогда переходим к следующему (ошибки здесь не всплывают —
// провал стратегии гасится локально).
type strategy struct {
	name       string
	nonOptimal bool
	pick       func(req pickRequest) *domain.Agent
}

type pickRequest struct {
	outgoing    *domain.Agent
	preferredID string
	pool        []*domain.Agent // Доступные агенты, исходящий исключен
}

// Порядок фиксирован спецификацией подбора: от точечных предпочтений
// к всё более широким пулам, с round-robin как last resort.
var strategies = []strategy{
	{name: StrategyPreferred, pick: pickPreferred},
	{name: StrategyPrimaryBackup, pick: pickPrimaryBackup},
	{name: StrategyWorkloadBalanced, pick: pickWorkloadBalanced},
	{name: StrategySkillMatch, pick: pickSkillMatch},
	{name: StrategyRoundRobin, pick: pickRoundRobin, nonOptimal: true},
}

type Allocator struct {
	dir    AgentProvider
	logger *zap.Logger
}

func New(dir AgentProvider, logger *zap.Logger) *Allocator {
	return &Allocator{
		dir:    dir,
		logger: logger.Named("allocator"),
	}
}

// Assign подбирает покрывающего агента для outgoingID.
// preferredID — необязательный кандидат от вызывающего (стратегия №1).
// Ошибка только если нет вообще ни одного доступного агента: повторная
// попытка — ответственность вызывающего после изменения директории.
func (a *Allocator) Assign(ctx context.Context, outgoingID, preferredID string) (*Result, error) {
	outgoing, err := a.dir.Get(ctx, outgoingID)
	if err != nil {
		return nil, err
	}

	pool, err := a.dir.ListAvailable(ctx, outgoingID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalDependency, err)
	}

	req := pickRequest{outgoing: outgoing, preferredID: preferredID, pool: pool}

	for _, s := range strategies {
		candidate := s.pick(req)
		if candidate == nil {
			continue
		}

		if s.nonOptimal {
			a.logger.Warn("non-optimal assignment: round-robin fallback used",
				zap.String("outgoing_agent", outgoingID),
				zap.String("covering_agent", candidate.ID),
				zap.Int("workload", candidate.CurrentWorkload),
				zap.Int("max_workload", candidate.MaxWorkload))
		} else {
			a.logger.Info("covering agent assigned",
				zap.String("outgoing_agent", outgoingID),
				zap.String("covering_agent", candidate.ID),
				zap.String("strategy", s.name))
		}

		return &Result{Agent: candidate, Strategy: s.name, NonOptimal: s.nonOptimal}, nil
	}

	return nil, fmt.Errorf("%w: outgoing agent %s", domain.ErrNoCoveringAgent, outgoingID)
}
