package allocator

import (
	"sort"

	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

// eligible — общее требование стратегий 1-4: кандидат доступен (уже
// гарантировано пулом) и имеет запас нагрузки. Round-robin потолок игнорирует.
func eligible(a *domain.Agent) bool {
	return a.HasCapacity()
}

// pickPreferred — кандидат, указанный вызывающим, если он в пуле и не заполнен.
func pickPreferred(req pickRequest) *domain.Agent {
	if req.preferredID == "" {
		return nil
	}
	for _, a := range req.pool {
		if a.ID == req.preferredID && eligible(a) {
			return a
		}
	}
	return nil
}

// pickPrimaryBackup — назначенный бэкап исходящего агента.
func pickPrimaryBackup(req pickRequest) *domain.Agent {
	if req.outgoing.BackupAgentID == "" {
		return nil
	}
	for _, a := range req.pool {
		if a.ID == req.outgoing.BackupAgentID && eligible(a) {
			return a
		}
	}
	return nil
}

// pickWorkloadBalanced — одноклубник с минимальной долей занятости.
// Сортировка стабильная: при равных ratio побеждает порядок входа.
func pickWorkloadBalanced(req pickRequest) *domain.Agent {
	var teammates []*domain.Agent
	for _, a := range req.pool {
		if a.TeamID == req.outgoing.TeamID && eligible(a) {
			teammates = append(teammates, a)
		}
	}
	return lowestRatio(teammates)
}

// pickSkillMatch — cross-team кандидаты с пересечением скилл-тегов,
// тоже по минимальной доле занятости.
func pickSkillMatch(req pickRequest) *domain.Agent {
	var matched []*domain.Agent
	for _, a := range req.pool {
		if eligible(a) && a.SharesSkillWith(req.outgoing) {
			matched = append(matched, a)
		}
	}
	return lowestRatio(matched)
}

// pickRoundRobin — last resort: среди всех доступных, потолок нагрузки
// игнорируется, берем минимальную абсолютную нагрузку.
func pickRoundRobin(req pickRequest) *domain.Agent {
	if len(req.pool) == 0 {
		return nil
	}
	candidates := make([]*domain.Agent, len(req.pool))
	copy(candidates, req.pool)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CurrentWorkload < candidates[j].CurrentWorkload
	})
	return candidates[0]
}

func lowestRatio(candidates []*domain.Agent) *domain.Agent {
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].WorkloadRatio() < candidates[j].WorkloadRatio()
	})
	return candidates[0]
}
