package domain

import "time"

// Agent — сотрудник Customer Success, владеющий портфелем аккаунтов.
type Agent struct {
	ID            string   `json:"id"`   // UUID
	Name          string   `json:"name"` // Человекочитаемое имя
	Email         string   `json:"email"`
	Role          string   `json:"role"`
	TeamID        string   `json:"team_id"`
	BackupAgentID string   `json:"backup_agent_id,omitempty"` // Назначенный primary backup
	Segment       string   `json:"segment,omitempty"`         // Специализация по сегменту (SMB/Enterprise)
	Skills        []string `json:"skills"`                    // Скилл-теги ("renewals", "onboarding", ...)

	// Нагрузка: счетчик назначенных обязанностей против потолка
	CurrentWorkload int `json:"current_workload"`
	MaxWorkload     int `json:"max_workload"`

	Available bool `json:"available"` // Флаг доступности к назначению

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkloadRatio — доля занятости. При нулевом потолке считаем агента заполненным.
func (a *Agent) WorkloadRatio() float64 {
	if a.MaxWorkload <= 0 {
		return 1.0
	}
	return float64(a.CurrentWorkload) / float64(a.MaxWorkload)
}

// HasCapacity — есть ли запас под новое назначение.
func (a *Agent) HasCapacity() bool {
	return a.CurrentWorkload < a.MaxWorkload
}

// SharesSkillWith — пересекаются ли скилл-теги (для cross-team подбора).
func (a *Agent) SharesSkillWith(other *Agent) bool {
	for _, s := range a.Skills {
		for _, o := range other.Skills {
			if s == o {
				return true
			}
		}
	}
	return false
}
