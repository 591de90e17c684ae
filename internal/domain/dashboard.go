package domain

// CurrentCoverage — партиция покрытий с точки зрения одного агента:
// "я отсутствую" и "я покрываю коллег".
type CurrentCoverage struct {
	OutAs    *OOOCoverage   `json:"out_as,omitempty"`
	Covering []*OOOCoverage `json:"covering"`
}

// CoverageDashboard — сводный экран для операторов.
type CoverageDashboard struct {
	Active            []*OOOCoverage `json:"active"`
	Upcoming          []*OOOCoverage `json:"upcoming"`
	RecentlyCompleted []*OOOCoverage `json:"recently_completed"`
	Stats             DashboardStats `json:"stats"`
}

type DashboardStats struct {
	ActiveCount      int `json:"active_count"`
	ScheduledCount   int `json:"scheduled_count"`
	CompletedLast30d int `json:"completed_last_30d"`
	NonOptimalActive int `json:"non_optimal_active"` // Деградированные назначения (round-robin)
}
