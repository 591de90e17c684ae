package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "csops"
)

// Ключи для Sets и блокировок (состояние)
const (
	// RedisKeyUnavailableAgents — множество агентов, временно недоступных к назначению
	// (агент вышел в OOO). Используется для прогрева L1-кэша директории.
	RedisKeyUnavailableAgents = RedisNamespace + ":agents:unavailable_set"
	RedisKeyLockUnavailable   = RedisNamespace + ":lock:warmup:unavailable"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanCoverageEvents — канал жизненного цикла покрытий:
	// транслирует "coverage_id:event" (created/completed/cancelled/notified).
	RedisChanCoverageEvents = RedisNamespace + ":coverage:lifecycle-signal"

	// RedisChanAvailability — сигнал смены доступности агента "agent_id:on|off".
	RedisChanAvailability = RedisNamespace + ":agents:availability-signal"
)

// CoverageLockKey Ключ распределенной блокировки мутаций по исходящему агенту.
// Гарантия single-writer-per-engagement между инстансами.
func CoverageLockKey(agentID string) string {
	return fmt.Sprintf("%s:lock:coverage:%s", RedisNamespace, agentID)
}
