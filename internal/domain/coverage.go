package domain

import "time"

// Статусы State Machine покрытия
type CoverageStatus string

const (
	StatusScheduled CoverageStatus = "scheduled"
	StatusActive    CoverageStatus = "active"
	StatusCompleted CoverageStatus = "completed"
	StatusCancelled CoverageStatus = "cancelled"
)

// AccountPriority — вычисленный приоритет аккаунта на время покрытия
type AccountPriority string

const (
	PriorityHigh   AccountPriority = "high"
	PriorityMedium AccountPriority = "medium"
	PriorityLow    AccountPriority = "low"
)

// CoveredAccount — снапшот аккаунта, снятый в момент настройки покрытия.
// После создания не обновляется: следующее покрытие снимает новый снапшот.
type CoveredAccount struct {
	AccountID   string          `json:"account_id"`
	AccountName string          `json:"account_name"`
	Priority    AccountPriority `json:"priority"`
	HealthScore int             `json:"health_score"`
	Revenue     float64         `json:"revenue"`
	Status      string          `json:"status"`

	OpenIssues     []Issue          `json:"open_issues"`
	UpcomingEvents []ScheduledEvent `json:"upcoming_events"`
	PendingTasks   []TaskItem       `json:"pending_tasks"`
	KeyContacts    []Contact        `json:"key_contacts"`
	Notes          string           `json:"notes,omitempty"`
}

// PortfolioSummary — агрегаты по всему передаваемому портфелю.
type PortfolioSummary struct {
	TotalAccounts   int     `json:"total_accounts"`
	TotalRevenue    float64 `json:"total_revenue"`
	HighPriority    int     `json:"high_priority"`
	AtRisk          int     `json:"at_risk"`
	UpcomingEvents  int     `json:"upcoming_events"`
	PendingTasks    int     `json:"pending_tasks"`
	OpenIssues      int     `json:"open_issues"`
	KeyHighlights   []string `json:"key_highlights"`
	CriticalActions []string `json:"critical_actions"`
}

// AccountBrief — перс-аккаунтная часть handoff-брифа.
type AccountBrief struct {
	AccountID          string          `json:"account_id"`
	AccountName        string          `json:"account_name"`
	Priority           AccountPriority `json:"priority"`
	RecommendedActions []string        `json:"recommended_actions"`
	PendingDeadlines   []string        `json:"pending_deadlines"`
}

// HandoffBrief — документ передачи портфеля покрывающему агенту.
// Создается один раз при настройке; единственная поздняя мутация — отметка первого просмотра.
type HandoffBrief struct {
	ID          string           `json:"id"`
	GeneratedAt time.Time        `json:"generated_at"`
	ViewedAt    *time.Time       `json:"viewed_at,omitempty"`
	ViewedBy    string           `json:"viewed_by,omitempty"`
	Summary     PortfolioSummary `json:"summary"`
	Accounts    []AccountBrief   `json:"accounts"`
}

// MarkViewed фиксирует первый просмотр брифа. Идемпотентно: повторные
// просмотры не перетирают исходные метаданные. Возвращает true, если отметка новая.
func (b *HandoffBrief) MarkViewed(by string, now time.Time) bool {
	if b.ViewedAt != nil {
		return false
	}
	b.ViewedAt = &now
	b.ViewedBy = by
	return true
}

// RoutingChannel — канал временного перенаправления
type RoutingChannel string

const (
	ChannelEmail  RoutingChannel = "email"
	ChannelTasks  RoutingChannel = "tasks"
	ChannelAlerts RoutingChannel = "alerts"
)

// Статусы RoutingUpdate. Переходы только вперед: pending → applied → reverted.
type RoutingStatus string

const (
	RoutingPending  RoutingStatus = "pending"
	RoutingApplied  RoutingStatus = "applied"
	RoutingReverted RoutingStatus = "reverted"
)

// RoutingUpdate — временный редирект одного канала на время покрытия.
type RoutingUpdate struct {
	ID              string         `json:"id"`
	Channel         RoutingChannel `json:"channel"`
	Description     string         `json:"description"`
	OriginalTarget  string         `json:"original_target"`
	TemporaryTarget string         `json:"temporary_target"`
	Status          RoutingStatus  `json:"status"`
	AppliedAt       *time.Time     `json:"applied_at,omitempty"`
	RevertedAt      *time.Time     `json:"reverted_at,omitempty"`
}

// Apply переводит pending → applied. Повторное применение уже применённого —
// no-op; применить откаченный редирект нельзя (движение только вперед).
func (u *RoutingUpdate) Apply(now time.Time) error {
	switch u.Status {
	case RoutingApplied:
		return nil
	case RoutingReverted:
		return ErrInvalidTransition
	}
	u.Status = RoutingApplied
	u.AppliedAt = &now
	return nil
}

// Revert переводит редирект в reverted. Идемпотентно: повторный откат не
// меняет ни статус, ни RevertedAt. Откат никогда не применявшегося (pending)
// редиректа допустим — путь отмены запланированного покрытия.
func (u *RoutingUpdate) Revert(now time.Time) {
	if u.Status == RoutingReverted {
		return
	}
	u.Status = RoutingReverted
	u.RevertedAt = &now
}

// NotificationRecord — состояние клиентских уведомлений по покрытию.
type NotificationRecord struct {
	Enabled          bool       `json:"enabled"`
	Sent             bool       `json:"sent"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	Method           string     `json:"method"` // "email"
	NotifiedContacts []string   `json:"notified_contacts,omitempty"`
}

// SentimentTrend — классификация дельты health score за время отсутствия
type SentimentTrend string

const (
	TrendImproved SentimentTrend = "improved"
	TrendStable   SentimentTrend = "stable"
	TrendDeclined SentimentTrend = "declined"
)

// ActivitySummary — что происходило по аккаунту во время отсутствия.
type ActivitySummary struct {
	AccountID    string    `json:"account_id"`
	AccountName  string    `json:"account_name"`
	Interactions int       `json:"interactions"`
	Summary      string    `json:"summary"`
	LastTouch    time.Time `json:"last_touch,omitempty"`
}

// SentimentChange — сравнение health score на момент снапшота и на момент возвращения.
type SentimentChange struct {
	AccountID     string         `json:"account_id"`
	AccountName   string         `json:"account_name"`
	PreviousScore int            `json:"previous_score"`
	CurrentScore  int            `json:"current_score"`
	Trend         SentimentTrend `json:"trend"`
}

// FollowUpRecommendation — рекомендация для вернувшегося агента.
type FollowUpRecommendation struct {
	AccountID   string    `json:"account_id"`
	AccountName string    `json:"account_name"`
	Action      string    `json:"action"`
	Reason      string    `json:"reason"`
	SuggestedAt time.Time `json:"suggested_at"`
}

// ReturnHandback — итоговый документ, отдаваемый вернувшемуся агенту.
// Создается ровно один раз при обработке возвращения.
type ReturnHandback struct {
	ID                string                   `json:"id"`
	GeneratedAt       time.Time                `json:"generated_at"`
	Activity          []ActivitySummary        `json:"activity"`
	IssuesResolved    []Issue                  `json:"issues_resolved"`
	IssuesOutstanding []Issue                  `json:"issues_outstanding"`
	SentimentChanges  []SentimentChange        `json:"sentiment_changes"`
	FollowUps         []FollowUpRecommendation `json:"follow_ups"`
	CoveringNotes     string                   `json:"covering_notes,omitempty"`
}

// OOOCoverage — агрегат покрытия (coverage engagement).
// Инвариант: не более одного непогашенного (scheduled/active) покрытия
// на исходящего агента в пересекающихся датах.
type OOOCoverage struct {
	ID string `json:"id"`

	OutgoingAgentID   string `json:"outgoing_agent_id"`
	OutgoingAgentName string `json:"outgoing_agent_name"`
	CoveringAgentID   string `json:"covering_agent_id"`
	CoveringAgentName string `json:"covering_agent_name"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	// Статус хранит только терминальные значения (completed/cancelled);
	// scheduled/active выводятся из текущего времени при чтении.
	Status CoverageStatus `json:"status"`
	Reason string         `json:"reason,omitempty"`

	// Результат аллокации: какая стратегия сработала и была ли она деградированной
	Strategy   string `json:"strategy"`
	NonOptimal bool   `json:"non_optimal"`

	Accounts       []CoveredAccount   `json:"accounts"`
	Brief          *HandoffBrief      `json:"brief,omitempty"`
	Notification   NotificationRecord `json:"notification"`
	RoutingUpdates []*RoutingUpdate   `json:"routing_updates"`
	Handback       *ReturnHandback    `json:"handback,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveStatus — производный статус на момент now.
// Терминальные статусы зафиксированы явно, остальное считается от дат.
func (c *OOOCoverage) EffectiveStatus(now time.Time) CoverageStatus {
	if c.Status == StatusCompleted || c.Status == StatusCancelled {
		return c.Status
	}
	if now.Before(c.StartDate) {
		return StatusScheduled
	}
	if !now.After(c.EndDate) {
		return StatusActive
	}
	// Окно прошло, но возвращение еще не обработано — покрытие числится активным,
	// пока ProcessReturn явно не переведет его в completed (агент может вернуться позже).
	return StatusActive
}

// IsTerminal — достигнут ли конец жизненного цикла.
func (c *OOOCoverage) IsTerminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusCancelled
}

// Overlaps — пересекается ли окно покрытия с интервалом [start, end].
func (c *OOOCoverage) Overlaps(start, end time.Time) bool {
	return !c.StartDate.After(end) && !c.EndDate.Before(start)
}
