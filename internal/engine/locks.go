package engine

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"github.com/xela07ax/cs-coverage-engine/internal/infra"
	"go.uber.org/zap"
)

const distributedLockTTL = 30 * time.Second

// agentLocks сериализует мутации по исходящему агенту (single-writer).
// Внутри процесса — пер-ключевой мьютекс; между инстансами — SetNX в Redis
// с TTL. Конфликт на распределенном локе не ждет, а возвращает ErrAgentBusy:
// клиент повторяет операцию (optimistic retry).
//
// Записи в local живут только пока лок кем-то удерживается или ожидается:
// refs считает заинтересованные горутины, при нуле запись удаляется из мапы.
type agentLocks struct {
	mu     sync.Mutex
	local  map[string]*lockEntry
	rdb    *redis.Client
	logger *zap.Logger
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newAgentLocks(rdb *redis.Client, logger *zap.Logger) *agentLocks {
	return &agentLocks{
		local:  make(map[string]*lockEntry),
		rdb:    rdb,
		logger: logger.Named("agent-locks"),
	}
}

// acquire берет лок по агенту и возвращает release-функцию.
func (l *agentLocks) acquire(ctx context.Context, agentID string) (func(), error) {
	entry := l.retain(agentID)
	entry.mu.Lock()

	unlock := func() {
		entry.mu.Unlock()
		l.drop(agentID)
	}

	if l.rdb == nil {
		return unlock, nil
	}

	key := infra.CoverageLockKey(agentID)
	ok, err := l.rdb.SetNX(ctx, key, "processing", distributedLockTTL).Result()
	if err != nil {
		// Redis недоступен: работаем на локальном мьютексе (Fail-Open),
		// иначе одна сетевая проблема парализует все операции
		l.logger.Warn("distributed lock unavailable, falling back to local lock",
			zap.String("agent_id", agentID), zap.Error(err))
		return unlock, nil
	}
	if !ok {
		unlock()
		return nil, domain.ErrAgentBusy
	}

	release := func() {
		if err := l.rdb.Del(context.Background(), key).Err(); err != nil {
			// TTL догонит: лок истечет сам
			l.logger.Warn("failed to release distributed lock", zap.String("agent_id", agentID), zap.Error(err))
		}
		unlock()
	}
	return release, nil
}

func (l *agentLocks) retain(agentID string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.local[agentID]
	if !ok {
		entry = &lockEntry{}
		l.local[agentID] = entry
	}
	entry.refs++
	return entry
}

func (l *agentLocks) drop(agentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.local[agentID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.local, agentID)
	}
}
