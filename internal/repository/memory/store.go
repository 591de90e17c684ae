package memory

/*
Пакет memory — хранилище в памяти для тестов и локальной разработки.
Реализует те же контракты, что и repository/postgres: directory.Store,
intake.DetectionStore, portfolio.AccountStore, engine.CoverageStore,
engine.ActivityLog, engine.AccountReader, activity.StorageInterface.
*/

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xela07ax/cs-coverage-engine/internal/activity"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

type Store struct {
	mu sync.RWMutex

	agents     map[string]*domain.Agent
	accounts   map[string]*domain.Account
	coverages  map[string]domain.OOOCoverage // Храним копии: Get не должен отдавать живой указатель
	detections map[string]*domain.OOODetection
	events     []activity.Event
	users      map[string]*domain.User
}

func NewStore() *Store {
	return &Store{
		agents:     make(map[string]*domain.Agent),
		accounts:   make(map[string]*domain.Account),
		coverages:  make(map[string]domain.OOOCoverage),
		detections: make(map[string]*domain.OOODetection),
		users:      make(map[string]*domain.User),
	}
}

// --- Наполнение (для тестов и дев-режима) ---

func (s *Store) PutAgent(a *domain.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
}

func (s *Store) PutAccount(a *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

func (s *Store) RemoveAccount(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
}

func (s *Store) PutUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
}

// AddInteraction кладет account_touch событие напрямую в активити-лог.
func (s *Store) AddInteraction(it domain.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, activity.Event{
		ID:        it.ID,
		AgentID:   it.AgentID,
		AccountID: it.AccountID,
		Kind:      activity.KindAccountTouch,
		Summary:   it.Summary,
		Outcome:   it.Outcome,
		Timestamp: it.OccurredAt,
	})
}

// --- directory.Store ---

func (s *Store) GetAgent(_ context.Context, id string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agents[id], nil
}

func (s *Store) ListAvailableAgents(_ context.Context, excludingID string) ([]*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.Agent, 0)
	for _, a := range s.agents {
		if a.Available && a.ID != excludingID {
			result = append(result, a)
		}
	}
	sortAgents(result)
	return result, nil
}

func (s *Store) ListTeamAgents(_ context.Context, teamID string) ([]*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.Agent, 0)
	for _, a := range s.agents {
		if a.TeamID == teamID {
			result = append(result, a)
		}
	}
	sortAgents(result)
	return result, nil
}

func (s *Store) AdjustWorkload(_ context.Context, agentID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return domain.ErrAgentNotFound
	}
	a.CurrentWorkload += delta
	if a.CurrentWorkload < 0 {
		a.CurrentWorkload = 0
	}
	return nil
}

func (s *Store) ListUnavailableAgentIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	ids := make([]string, 0)
	for _, c := range s.coverages {
		if !c.IsTerminal() && !c.StartDate.After(now) {
			ids = append(ids, c.OutgoingAgentID)
		}
	}
	return ids, nil
}

// --- portfolio.AccountStore / engine.AccountReader ---

func (s *Store) ListAccountsByOwner(_ context.Context, ownerID string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.Account, 0)
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Revenue > result[j].Revenue })
	return result, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[id], nil
}

// --- intake.DetectionStore ---

func (s *Store) CreateDetection(_ context.Context, det *domain.OOODetection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detections[det.ID] = det
	return nil
}

func (s *Store) MarkDetectionProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.detections[id]; ok {
		d.Processed = true
	}
	return nil
}

func (s *Store) ListPendingDetections(_ context.Context) ([]*domain.OOODetection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.OOODetection, 0)
	for _, d := range s.detections {
		if !d.Processed {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DetectedAt.After(result[j].DetectedAt) })
	return result, nil
}

// --- engine.CoverageStore ---

func (s *Store) CreateCoverage(_ context.Context, c *domain.OOOCoverage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coverages[c.ID] = *c
	return nil
}

func (s *Store) GetCoverage(_ context.Context, id string) (*domain.OOOCoverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coverages[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) UpdateCoverage(_ context.Context, c *domain.OOOCoverage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coverages[c.ID]; !ok {
		return domain.ErrCoverageNotFound
	}
	s.coverages[c.ID] = *c
	return nil
}

func (s *Store) FindOverlapping(_ context.Context, outgoingAgentID string, start, end time.Time) ([]*domain.OOOCoverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.OOOCoverage, 0)
	for _, c := range s.coverages {
		if c.OutgoingAgentID == outgoingAgentID && !c.IsTerminal() && c.Overlaps(start, end) {
			cc := c
			result = append(result, &cc)
		}
	}
	return result, nil
}

func (s *Store) FindActiveByOutgoing(_ context.Context, agentID string, now time.Time) (*domain.OOOCoverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.coverages {
		if c.OutgoingAgentID == agentID && !c.IsTerminal() && !c.StartDate.After(now) {
			cc := c
			return &cc, nil
		}
	}
	return nil, nil
}

func (s *Store) FindActiveByCovering(_ context.Context, agentID string, now time.Time) ([]*domain.OOOCoverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.OOOCoverage, 0)
	for _, c := range s.coverages {
		if c.CoveringAgentID == agentID && !c.IsTerminal() && !c.StartDate.After(now) {
			cc := c
			result = append(result, &cc)
		}
	}
	sortCoverages(result)
	return result, nil
}

func (s *Store) ListActive(_ context.Context, now time.Time) ([]*domain.OOOCoverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.OOOCoverage, 0)
	for _, c := range s.coverages {
		if !c.IsTerminal() && !c.StartDate.After(now) {
			cc := c
			result = append(result, &cc)
		}
	}
	sortCoverages(result)
	return result, nil
}

func (s *Store) ListUpcoming(_ context.Context, now time.Time) ([]*domain.OOOCoverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.OOOCoverage, 0)
	for _, c := range s.coverages {
		if !c.IsTerminal() && c.StartDate.After(now) {
			cc := c
			result = append(result, &cc)
		}
	}
	sortCoverages(result)
	return result, nil
}

func (s *Store) ListCompletedSince(_ context.Context, since time.Time) ([]*domain.OOOCoverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.OOOCoverage, 0)
	for _, c := range s.coverages {
		if c.Status == domain.StatusCompleted && !c.UpdatedAt.Before(since) {
			cc := c
			result = append(result, &cc)
		}
	}
	return result, nil
}

// --- activity.StorageInterface / engine.ActivityLog ---

func (s *Store) WriteBatch(_ context.Context, events []activity.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *Store) FetchInteractions(_ context.Context, agentID string, from, to time.Time) ([]domain.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Interaction, 0)
	for _, e := range s.events {
		if e.Kind != activity.KindAccountTouch || e.AgentID != agentID {
			continue
		}
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		result = append(result, domain.Interaction{
			ID:         e.ID,
			AccountID:  e.AccountID,
			AgentID:    e.AgentID,
			Kind:       e.Kind,
			Summary:    e.Summary,
			Outcome:    e.Outcome,
			OccurredAt: e.Timestamp,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OccurredAt.Before(result[j].OccurredAt) })
	return result, nil
}

// Events — снимок активити-лога (для проверок в тестах).
func (s *Store) Events() []activity.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]activity.Event, len(s.events))
	copy(out, s.events)
	return out
}

// --- auth ---

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[username], nil
}

func sortAgents(agents []*domain.Agent) {
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
}

func sortCoverages(cs []*domain.OOOCoverage) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].StartDate.Before(cs[j].StartDate) })
}
