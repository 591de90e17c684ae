package brief

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

// Builder собирает handoff-бриф из снапшота портфеля.
// Вход уже в памяти, поэтому никаких внешних зависимостей: чистая агрегация.
type Builder struct {
	atRiskHealth int // Порог "аккаунт под риском" для сводки
}

func NewBuilder(atRiskHealth int) *Builder {
	if atRiskHealth <= 0 {
		atRiskHealth = 60
	}
	return &Builder{atRiskHealth: atRiskHealth}
}

// Build формирует бриф: сводку портфеля с highlights/critical actions
// и перс-аккаунтные рекомендации. После создания документ read-only,
// кроме идемпотентной отметки первого просмотра (domain.HandoffBrief.MarkViewed).
func (b *Builder) Build(accounts []domain.CoveredAccount, now time.Time) *domain.HandoffBrief {
	summary := b.summarize(accounts)

	briefs := make([]domain.AccountBrief, 0, len(accounts))
	for _, acc := range accounts {
		briefs = append(briefs, domain.AccountBrief{
			AccountID:          acc.AccountID,
			AccountName:        acc.AccountName,
			Priority:           acc.Priority,
			RecommendedActions: recommendedActions(acc),
			PendingDeadlines:   pendingDeadlines(acc),
		})
	}

	return &domain.HandoffBrief{
		ID:          uuid.New().String(),
		GeneratedAt: now,
		Summary:     summary,
		Accounts:    briefs,
	}
}

func (b *Builder) summarize(accounts []domain.CoveredAccount) domain.PortfolioSummary {
	s := domain.PortfolioSummary{
		TotalAccounts:   len(accounts),
		KeyHighlights:   []string{},
		CriticalActions: []string{},
	}

	for _, acc := range accounts {
		s.TotalRevenue += acc.Revenue
		if acc.Priority == domain.PriorityHigh {
			s.HighPriority++
		}
		if acc.HealthScore < b.atRiskHealth || acc.Status == domain.AccountStatusAtRisk {
			s.AtRisk++
		}
		s.UpcomingEvents += len(acc.UpcomingEvents)
		s.PendingTasks += len(acc.PendingTasks)
		s.OpenIssues += len(acc.OpenIssues)
	}

	// Key highlights: по одной фразе на существенный ненулевой агрегат
	if s.HighPriority > 0 {
		s.KeyHighlights = append(s.KeyHighlights,
			fmt.Sprintf("%d high-priority account(s) require close attention", s.HighPriority))
	}
	if s.AtRisk > 0 {
		s.KeyHighlights = append(s.KeyHighlights,
			fmt.Sprintf("%d account(s) are at risk (health below %d)", s.AtRisk, b.atRiskHealth))
	}
	if s.OpenIssues > 0 {
		s.KeyHighlights = append(s.KeyHighlights,
			fmt.Sprintf("%d open issue(s) across the portfolio", s.OpenIssues))
	}
	if s.UpcomingEvents > 0 {
		s.KeyHighlights = append(s.KeyHighlights,
			fmt.Sprintf("%d upcoming event(s) during the coverage window", s.UpcomingEvents))
	}
	if s.PendingTasks > 0 {
		s.KeyHighlights = append(s.KeyHighlights,
			fmt.Sprintf("%d pending task(s) with deadlines", s.PendingTasks))
	}

	// Critical actions: только для high-priority аккаунтов
	for _, acc := range accounts {
		if acc.Priority != domain.PriorityHigh {
			continue
		}
		for _, iss := range acc.OpenIssues {
			if iss.Severity == "critical" {
				s.CriticalActions = append(s.CriticalActions,
					fmt.Sprintf("Resolve critical issue on %s: %s", acc.AccountName, iss.Title))
			}
		}
		for _, ev := range acc.UpcomingEvents {
			if ev.RequiresAttendance {
				s.CriticalActions = append(s.CriticalActions,
					fmt.Sprintf("Attend or delegate %q for %s on %s", ev.Title, acc.AccountName, ev.At.Format("2006-01-02")))
			}
		}
	}

	return s
}

// recommendedActions — простые правила по состоянию снапшота.
func recommendedActions(acc domain.CoveredAccount) []string {
	actions := []string{}
	if len(acc.OpenIssues) > 0 {
		actions = append(actions, "Follow up on active issues")
	}
	if len(acc.PendingTasks) > 0 {
		actions = append(actions, "Complete pending tasks before deadlines")
	}
	if acc.HealthScore < 70 {
		actions = append(actions, "Schedule health check call")
	}
	if len(acc.UpcomingEvents) > 0 {
		actions = append(actions, "Prepare for scheduled meetings")
	}
	return actions
}

func pendingDeadlines(acc domain.CoveredAccount) []string {
	deadlines := []string{}
	for _, t := range acc.PendingTasks {
		deadlines = append(deadlines,
			fmt.Sprintf("%s — due %s", t.Title, t.DueAt.Format("2006-01-02")))
	}
	return deadlines
}
