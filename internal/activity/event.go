package activity

import "time"

// Виды событий жизненного цикла покрытия
const (
	KindCoverageSetup     = "coverage_setup"
	KindNotificationSent  = "notification_sent"
	KindAccountTouch      = "account_touch"
	KindReturnProcessed   = "return_processed"
	KindCoverageCancelled = "coverage_cancelled"
)

// Event — запись активити-лога движка. Для account_touch событий это
// одновременно и лог взаимодействий, который читает генератор handback-а.
type Event struct {
	ID         string    `json:"id"`          // UUID события
	CoverageID string    `json:"coverage_id"` // К какому покрытию относится
	AgentID    string    `json:"agent_id"`    // Кто выполнил
	AccountID  string    `json:"account_id"`  // По какому аккаунту (может быть пустым)
	Kind       string    `json:"kind"`
	Summary    string    `json:"summary"`
	Outcome    string    `json:"outcome,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
