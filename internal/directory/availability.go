package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/cs-coverage-engine/internal/infra"
	"go.uber.org/zap"
)

// AvailabilityCache — L1 (RAM) множество агентов, временно выпавших из ротации
// (ушли в OOO). Синхронизируется между инстансами через Redis Pub/Sub;
// при старте греется из стора и Redis-множества.
type AvailabilityCache struct {
	mu        sync.RWMutex
	outAgents map[string]struct{}
	rdb       *redis.Client
	logger    *zap.Logger
}

func NewAvailabilityCache(rdb *redis.Client, logger *zap.Logger) *AvailabilityCache {
	return &AvailabilityCache{
		outAgents: make(map[string]struct{}),
		rdb:       rdb,
		logger:    logger.Named("availability-cache"),
	}
}

// Init загружает текущее состояние недоступности при старте сервиса.
// ids — выгрузка из БД; Redis-множество доливается под распределенной
// блокировкой, чтобы прогревал только один инстанс.
func (c *AvailabilityCache) Init(ctx context.Context, ids []string) error {
	c.replace(ids)

	if c.rdb == nil {
		return nil
	}

	// Распределенная блокировка (SetNX), чтобы только один инстанс обновлял Redis
	ok, err := c.rdb.SetNX(ctx, infra.RedisKeyLockUnavailable, "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return nil // Либо ошибка сети, либо другой инстанс уже греет кэш
	}

	count, err := c.rdb.SCard(ctx, infra.RedisKeyUnavailableAgents).Result()
	if err != nil {
		count = 0
		c.logger.Warn("could not check Redis set size, proceeding with warm-up", zap.Error(err))
	}

	if count == 0 && len(ids) > 0 {
		c.logger.Info("Redis availability cache is empty, performing warm-up from DB",
			zap.Int("count", len(ids)))
		pipe := c.rdb.Pipeline()
		for _, id := range ids {
			pipe.SAdd(ctx, infra.RedisKeyUnavailableAgents, id)
		}
		_, err = pipe.Exec(ctx)
		return err
	}
	return nil
}

// StartListener — "живучая" подписка на сигналы смены доступности.
// Формат сообщения: "agent_id:on|off" (on — агент снова в ротации).
// При каждом переподключении вызывается resync для полной синхронизации L1.
func (c *AvailabilityCache) StartListener(ctx context.Context, resync func() ([]string, error)) {
	if c.rdb == nil {
		return
	}

	for {
		pubsub := c.rdb.Subscribe(ctx, infra.RedisChanAvailability)

		if _, err := pubsub.Receive(ctx); err != nil {
			c.logger.Error("failed to subscribe to availability channel", zap.Error(err))
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		// Синхронизация при каждом успешном коннекте
		if resync != nil {
			if ids, err := resync(); err != nil {
				c.logger.Error("availability resync failed on reconnect", zap.Error(err))
			} else {
				c.replace(ids)
			}
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				parts := strings.Split(msg.Payload, ":")
				if len(parts) != 2 {
					c.logger.Error("invalid availability signal format", zap.String("payload", msg.Payload))
					continue
				}

				agentID := parts[0]
				back := parts[1] == "on" || parts[1] == "true"
				if back {
					c.MarkBack(agentID)
				} else {
					c.markOutLocal(agentID)
				}
			}
		}

		pubsub.Close()
		time.Sleep(1 * time.Second)
	}
}

// IsOut — выпал ли агент из ротации (Hot Path аллокатора, только RAM).
func (c *AvailabilityCache) IsOut(agentID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, out := c.outAgents[agentID]
	return out
}

// MarkOut помечает агента недоступным локально и транслирует сигнал другим инстансам.
func (c *AvailabilityCache) MarkOut(ctx context.Context, agentID string) {
	c.markOutLocal(agentID)

	if c.rdb == nil {
		return
	}
	pipe := c.rdb.Pipeline()
	pipe.SAdd(ctx, infra.RedisKeyUnavailableAgents, agentID)
	pipe.Publish(ctx, infra.RedisChanAvailability, agentID+":off")
	if _, err := pipe.Exec(ctx); err != nil {
		// Сигнал best-effort: локальное состояние уже корректно
		c.logger.Warn("availability signal delivery failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}

// MarkReturned возвращает агента в ротацию и транслирует сигнал.
func (c *AvailabilityCache) MarkReturned(ctx context.Context, agentID string) {
	c.MarkBack(agentID)

	if c.rdb == nil {
		return
	}
	pipe := c.rdb.Pipeline()
	pipe.SRem(ctx, infra.RedisKeyUnavailableAgents, agentID)
	pipe.Publish(ctx, infra.RedisChanAvailability, agentID+":on")
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("availability signal delivery failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}

// MarkBack — только локальная часть возврата (используется слушателем).
func (c *AvailabilityCache) MarkBack(agentID string) {
	c.mu.Lock()
	delete(c.outAgents, agentID)
	c.mu.Unlock()
}

func (c *AvailabilityCache) markOutLocal(agentID string) {
	c.mu.Lock()
	c.outAgents[agentID] = struct{}{}
	c.mu.Unlock()
}

func (c *AvailabilityCache) replace(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	c.mu.Lock()
	c.outAgents = next
	c.mu.Unlock()
}
