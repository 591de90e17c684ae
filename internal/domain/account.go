package domain

import "time"

// Статусы аккаунта во внешнем сторе
const (
	AccountStatusActive = "active"
	AccountStatusAtRisk = "at_risk"
)

// Account — представление аккаунта из внешнего account store (только чтение).
type Account struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	OwnerID     string  `json:"owner_id"`
	Status      string  `json:"status"`
	HealthScore int     `json:"health_score"` // 0..100
	Revenue     float64 `json:"revenue"`      // ARR в валюте платформы

	OpenIssues     []Issue          `json:"open_issues"`
	UpcomingEvents []ScheduledEvent `json:"upcoming_events"`
	PendingTasks   []TaskItem       `json:"pending_tasks"`
	KeyContacts    []Contact        `json:"key_contacts"`
	Notes          string           `json:"notes,omitempty"`
}

// Issue — открытая проблема по аккаунту.
type Issue struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Title     string    `json:"title"`
	Severity  string    `json:"severity"` // "critical", "major", "minor"
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}

// ScheduledEvent — ближайшая встреча/событие по аккаунту.
type ScheduledEvent struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	At                 time.Time `json:"at"`
	RequiresAttendance bool      `json:"requires_attendance"`
}

// TaskItem — незакрытая задача по аккаунту.
type TaskItem struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	DueAt time.Time `json:"due_at"`
}

// Contact — ключевой контакт на стороне клиента.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Interaction — запись из лога взаимодействий (внешний коллаборатор).
type Interaction struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	AgentID    string    `json:"agent_id"` // Кто выполнил
	Kind       string    `json:"kind"`     // "call", "email", "meeting", ...
	Summary    string    `json:"summary"`
	Outcome    string    `json:"outcome,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
