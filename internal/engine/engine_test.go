package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/cs-coverage-engine/internal/allocator"
	"github.com/xela07ax/cs-coverage-engine/internal/brief"
	"github.com/xela07ax/cs-coverage-engine/internal/connectors"
	"github.com/xela07ax/cs-coverage-engine/internal/directory"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"github.com/xela07ax/cs-coverage-engine/internal/infra"
	"github.com/xela07ax/cs-coverage-engine/internal/portfolio"
	"github.com/xela07ax/cs-coverage-engine/internal/repository/memory"
	"github.com/xela07ax/cs-coverage-engine/internal/routing"
	"go.uber.org/zap"
)

var (
	testNow   = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	testStart = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	testEnd   = time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)
)

type testEnv struct {
	engine     *Engine
	store      *memory.Store
	dispatcher *connectors.MockDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	dir := directory.New(store, nil, logger)
	dispatcher := connectors.NewMockDispatcher()

	eng := New(Deps{
		Store:     store,
		Directory: dir,
		Allocator: allocator.New(dir, logger),
		Portfolio: portfolio.New(store, portfolio.Thresholds{
			HighValueRevenue: 100000, MidValueRevenue: 50000,
		}, logger),
		Briefs:     brief.NewBuilder(60),
		Routing:    routing.NewController(logger),
		Dispatcher: dispatcher,
		Activity:   store,
		Accounts:   store,
		Detections: store,
		Logger:     logger,
		Config: infra.EngineConfig{
			FollowUpDelay: 72 * time.Hour,
		},
	})
	eng.now = func() time.Time { return testNow }

	// Базовые фикстуры: отсутствующая Alice и ее бэкап Bob
	store.PutAgent(&domain.Agent{
		ID: "alice", Name: "Alice", Email: "alice@example.com", TeamID: "team-1",
		BackupAgentID: "bob", MaxWorkload: 10, Available: true,
	})
	store.PutAgent(&domain.Agent{
		ID: "bob", Name: "Bob", Email: "bob@example.com", TeamID: "team-1",
		CurrentWorkload: 2, MaxWorkload: 10, Available: true,
	})
	store.PutAccount(&domain.Account{
		ID: "acme", Name: "Acme", OwnerID: "alice", Status: domain.AccountStatusActive,
		HealthScore: 45, Revenue: 120000,
		OpenIssues: []domain.Issue{
			{ID: "i-1", AccountID: "acme", Title: "API outage", Severity: "critical"},
		},
		KeyContacts: []domain.Contact{
			{Name: "Carol", Email: "carol@acme.com"},
			{Name: "Dan", Email: "dan@acme.com"},
		},
	})
	store.PutAccount(&domain.Account{
		ID: "globex", Name: "Globex", OwnerID: "alice", Status: domain.AccountStatusActive,
		HealthScore: 85, Revenue: 20000,
		KeyContacts: []domain.Contact{{Name: "Eve", Email: "eve@globex.com"}},
	})

	return &testEnv{engine: eng, store: store, dispatcher: dispatcher}
}

func (env *testEnv) setup(t *testing.T) *domain.OOOCoverage {
	t.Helper()
	cov, err := env.engine.SetupCoverage(context.Background(), SetupRequest{
		AgentID:   "alice",
		StartDate: testStart,
		EndDate:   testEnd,
		Reason:    "vacation",
	})
	require.NoError(t, err)
	return cov
}

func TestSetupCoverage_MarksSourceDetectionProcessed(t *testing.T) {
	env := newTestEnv(t)
	det := &domain.OOODetection{
		ID:         "det-1",
		AgentID:    "alice",
		Source:     domain.SourceCalendar,
		StartDate:  testStart,
		EndDate:    testEnd,
		DetectedAt: testNow,
	}
	require.NoError(t, env.store.CreateDetection(context.Background(), det))

	_, err := env.engine.SetupCoverage(context.Background(), SetupRequest{
		AgentID:     "alice",
		StartDate:   testStart,
		EndDate:     testEnd,
		DetectionID: "det-1",
	})
	require.NoError(t, err)

	pending, err := env.store.ListPendingDetections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending, "сигнал погашен после успешного setup-а")
}

func TestSetupCoverage_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	cov := env.setup(t)

	assert.Equal(t, "alice", cov.OutgoingAgentID)
	assert.Equal(t, "bob", cov.CoveringAgentID)
	assert.Equal(t, allocator.StrategyPrimaryBackup, cov.Strategy)
	assert.False(t, cov.NonOptimal)

	// Снапшоты портфеля с приоритетами
	require.Len(t, cov.Accounts, 2)
	byID := map[string]domain.CoveredAccount{}
	for _, a := range cov.Accounts {
		byID[a.AccountID] = a
	}
	assert.Equal(t, domain.PriorityHigh, byID["acme"].Priority)
	assert.Equal(t, domain.PriorityLow, byID["globex"].Priority)

	// Бриф и примененные редиректы
	require.NotNil(t, cov.Brief)
	assert.Equal(t, 2, cov.Brief.Summary.TotalAccounts)
	require.Len(t, cov.RoutingUpdates, 3)
	for _, u := range cov.RoutingUpdates {
		assert.Equal(t, domain.RoutingApplied, u.Status)
	}

	// Производный статус: до начала — scheduled, внутри окна — active
	assert.Equal(t, domain.StatusScheduled, cov.EffectiveStatus(testNow))
	assert.Equal(t, domain.StatusActive, cov.EffectiveStatus(testStart.AddDate(0, 0, 2)))

	// Нагрузка покрывающего выросла
	bob, _ := env.store.GetAgent(context.Background(), "bob")
	assert.Equal(t, 3, bob.CurrentWorkload)

	// Агрегат сохранен
	stored, err := env.store.GetCoverage(context.Background(), cov.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestSetupCoverage_OverlapRejected(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)

	_, err := env.engine.SetupCoverage(context.Background(), SetupRequest{
		AgentID:   "alice",
		StartDate: testStart.AddDate(0, 0, 3), // Внутри первого окна
		EndDate:   testEnd.AddDate(0, 0, 3),
	})
	assert.ErrorIs(t, err, domain.ErrOverlappingCoverage)

	// Непересекающееся окно проходит
	_, err = env.engine.SetupCoverage(context.Background(), SetupRequest{
		AgentID:   "alice",
		StartDate: testEnd.AddDate(0, 0, 10),
		EndDate:   testEnd.AddDate(0, 0, 17),
	})
	assert.NoError(t, err)
}

func TestSetupCoverage_UnknownAgent(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.SetupCoverage(context.Background(), SetupRequest{
		AgentID:   "ghost",
		StartDate: testStart,
		EndDate:   testEnd,
	})
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}

func TestSetupCoverage_NoCandidatesLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	// Убираем единственного кандидата
	bob, _ := env.store.GetAgent(context.Background(), "bob")
	bob.Available = false

	_, err := env.engine.SetupCoverage(context.Background(), SetupRequest{
		AgentID:   "alice",
		StartDate: testStart,
		EndDate:   testEnd,
	})
	assert.ErrorIs(t, err, domain.ErrNoCoveringAgent)

	// All-or-nothing: никаких следов в сторе
	dash, err := env.store.ListUpcoming(context.Background(), testNow)
	require.NoError(t, err)
	assert.Empty(t, dash)
}

func TestSendCustomerNotifications_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	cov := env.setup(t)

	env.dispatcher.FailFor["dan@acme.com"] = errors.New("mailbox full")

	report, err := env.engine.SendCustomerNotifications(context.Background(), cov.ID)
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "dan@acme.com")

	// Запись на агрегате: отправлено, неудачник не в списке
	stored, _ := env.store.GetCoverage(context.Background(), cov.ID)
	assert.True(t, stored.Notification.Sent)
	require.NotNil(t, stored.Notification.SentAt)
	assert.ElementsMatch(t, []string{"carol@acme.com", "eve@globex.com"}, stored.Notification.NotifiedContacts)
}

func TestSendCustomerNotifications_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.SendCustomerNotifications(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrCoverageNotFound)
}

func TestProcessReturn_BuildsHandback(t *testing.T) {
	env := newTestEnv(t)
	cov := env.setup(t)

	// Активность покрывающего за окно
	env.store.AddInteraction(domain.Interaction{
		ID: "t-1", AccountID: "acme", AgentID: "bob",
		Summary: "Resolved API outage with engineering", OccurredAt: testStart.AddDate(0, 0, 1),
	})
	env.store.AddInteraction(domain.Interaction{
		ID: "t-2", AccountID: "acme", AgentID: "bob",
		Summary: "Follow-up call with Carol", OccurredAt: testStart.AddDate(0, 0, 3),
	})

	// За время отсутствия проблему закрыли, health вырос
	acme, _ := env.store.GetAccount(context.Background(), "acme")
	acme.OpenIssues[0].Resolved = true
	acme.HealthScore = 55

	handback, err := env.engine.ProcessReturn(context.Background(), cov.ID, "smooth week")
	require.NoError(t, err)

	// Сводка активности: две записи по acme, последняя — верхняя
	require.Len(t, handback.Activity, 1)
	assert.Equal(t, "acme", handback.Activity[0].AccountID)
	assert.Equal(t, 2, handback.Activity[0].Interactions)
	assert.Contains(t, handback.Activity[0].Summary, "Follow-up call with Carol")

	// Судьба проблем: закрытая ушла в resolved
	require.Len(t, handback.IssuesResolved, 1)
	assert.Equal(t, "i-1", handback.IssuesResolved[0].ID)
	assert.Empty(t, handback.IssuesOutstanding)

	// Sentiment: 45 → 55 это improved
	require.Len(t, handback.SentimentChanges, 2)
	trends := map[string]domain.SentimentTrend{}
	for _, sc := range handback.SentimentChanges {
		trends[sc.AccountID] = sc.Trend
	}
	assert.Equal(t, domain.TrendImproved, trends["acme"])
	assert.Equal(t, domain.TrendStable, trends["globex"])

	// Follow-up по high-priority аккаунту через 72 часа
	require.Len(t, handback.FollowUps, 1)
	assert.Equal(t, "acme", handback.FollowUps[0].AccountID)
	assert.Equal(t, testNow.Add(72*time.Hour), handback.FollowUps[0].SuggestedAt)

	assert.Equal(t, "smooth week", handback.CoveringNotes)

	// Терминальный переход: completed, редиректы откачены, нагрузка вернулась
	stored, _ := env.store.GetCoverage(context.Background(), cov.ID)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	for _, u := range stored.RoutingUpdates {
		assert.Equal(t, domain.RoutingReverted, u.Status)
	}
	bob, _ := env.store.GetAgent(context.Background(), "bob")
	assert.Equal(t, 2, bob.CurrentWorkload)
}

func TestProcessReturn_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	cov := env.setup(t)

	first, err := env.engine.ProcessReturn(context.Background(), cov.ID, "")
	require.NoError(t, err)

	// Повторная обработка возвращает сохраненный документ, а не новый
	second, err := env.engine.ProcessReturn(context.Background(), cov.ID, "ignored")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.GeneratedAt, second.GeneratedAt)
}

// slowCoverageStore растягивает чтение агрегата, чтобы два конкурентных
// вызова гарантированно прочитали одно и то же состояние до взятия лока.
type slowCoverageStore struct {
	*memory.Store
}

func (s *slowCoverageStore) GetCoverage(ctx context.Context, id string) (*domain.OOOCoverage, error) {
	time.Sleep(20 * time.Millisecond)
	return s.Store.GetCoverage(ctx, id)
}

func TestProcessReturn_ConcurrentCallsShareOneHandback(t *testing.T) {
	env := newTestEnv(t)

	// Движок поверх того же стора, но с медленным чтением: решения
	// должны приниматься по состоянию, перечитанному уже под локом.
	logger := zap.NewNop()
	dir := directory.New(env.store, nil, logger)
	eng := New(Deps{
		Store:     &slowCoverageStore{Store: env.store},
		Directory: dir,
		Allocator: allocator.New(dir, logger),
		Portfolio: portfolio.New(env.store, portfolio.Thresholds{
			HighValueRevenue: 100000, MidValueRevenue: 50000,
		}, logger),
		Briefs:     brief.NewBuilder(60),
		Routing:    routing.NewController(logger),
		Dispatcher: env.dispatcher,
		Activity:   env.store,
		Accounts:   env.store,
		Logger:     logger,
		Config:     infra.EngineConfig{FollowUpDelay: 72 * time.Hour},
	})
	eng.now = func() time.Time { return testNow }

	cov, err := eng.SetupCoverage(context.Background(), SetupRequest{
		AgentID:   "alice",
		StartDate: testStart,
		EndDate:   testEnd,
	})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		handbacks [2]*domain.ReturnHandback
		errs      [2]error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handbacks[i], errs[i] = eng.ProcessReturn(context.Background(), cov.ID, "")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotNil(t, handbacks[0])
	require.NotNil(t, handbacks[1])

	// Оба вызова видят один и тот же документ
	assert.Equal(t, handbacks[0].ID, handbacks[1].ID)

	// Нагрузка покрывающего снята ровно один раз: 2 → 3 (setup) → 2
	bob, _ := env.store.GetAgent(context.Background(), "bob")
	assert.Equal(t, 2, bob.CurrentWorkload)
}

func TestProcessReturn_MissingAccountIssuesStayOutstanding(t *testing.T) {
	env := newTestEnv(t)
	cov := env.setup(t)

	// Аккаунт пропал из стора за время покрытия: без свидетельства
	// о закрытии все проблемы снапшота остаются открытыми
	env.store.RemoveAccount("acme")

	handback, err := env.engine.ProcessReturn(context.Background(), cov.ID, "")
	require.NoError(t, err)

	require.Len(t, handback.IssuesOutstanding, 1)
	assert.Equal(t, "i-1", handback.IssuesOutstanding[0].ID)
	assert.Empty(t, handback.IssuesResolved)

	// Sentiment без текущего health не считается
	for _, sc := range handback.SentimentChanges {
		assert.NotEqual(t, "acme", sc.AccountID)
	}
}

func TestProcessReturn_CancelledRejected(t *testing.T) {
	env := newTestEnv(t)
	cov := env.setup(t)

	require.NoError(t, env.engine.Cancel(context.Background(), cov.ID, "operator-1"))

	_, err := env.engine.ProcessReturn(context.Background(), cov.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	cov := env.setup(t)

	require.NoError(t, env.engine.Cancel(context.Background(), cov.ID, "operator-1"))

	stored, _ := env.store.GetCoverage(context.Background(), cov.ID)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	for _, u := range stored.RoutingUpdates {
		assert.Equal(t, domain.RoutingReverted, u.Status)
	}
	bob, _ := env.store.GetAgent(context.Background(), "bob")
	assert.Equal(t, 2, bob.CurrentWorkload)

	// Повторная отмена — недопустимый переход
	err := env.engine.Cancel(context.Background(), cov.ID, "operator-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestGetHandoffBrief_MarksFirstView(t *testing.T) {
	env := newTestEnv(t)
	cov := env.setup(t)

	briefDoc, err := env.engine.GetHandoffBrief(context.Background(), cov.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", briefDoc.ViewedBy)
	require.NotNil(t, briefDoc.ViewedAt)

	// Повторный просмотр другим оператором не перетирает отметку
	again, err := env.engine.GetHandoffBrief(context.Background(), cov.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, "bob", again.ViewedBy)

	stored, _ := env.store.GetCoverage(context.Background(), cov.ID)
	assert.Equal(t, "bob", stored.Brief.ViewedBy)
}

func TestGetCurrentCoverage_Partition(t *testing.T) {
	env := newTestEnv(t)
	cov := env.setup(t)

	// Сдвигаем часы внутрь окна покрытия
	env.engine.now = func() time.Time { return testStart.AddDate(0, 0, 1) }

	aliceView, err := env.engine.GetCurrentCoverage(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, aliceView.OutAs)
	assert.Equal(t, cov.ID, aliceView.OutAs.ID)
	assert.Empty(t, aliceView.Covering)

	bobView, err := env.engine.GetCurrentCoverage(context.Background(), "bob")
	require.NoError(t, err)
	assert.Nil(t, bobView.OutAs)
	require.Len(t, bobView.Covering, 1)
	assert.Equal(t, cov.ID, bobView.Covering[0].ID)
}

func TestGetDashboard(t *testing.T) {
	env := newTestEnv(t)
	cov := env.setup(t)

	// До начала окна покрытие upcoming
	dash, err := env.engine.GetDashboard(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dash.Active)
	require.Len(t, dash.Upcoming, 1)
	assert.Equal(t, 1, dash.Stats.ScheduledCount)

	// Внутри окна — active
	env.engine.now = func() time.Time { return testStart.AddDate(0, 0, 2) }
	dash, err = env.engine.GetDashboard(context.Background())
	require.NoError(t, err)
	require.Len(t, dash.Active, 1)
	assert.Equal(t, cov.ID, dash.Active[0].ID)
	assert.Equal(t, 0, dash.Stats.NonOptimalActive)

	// После возвращения — recently completed
	_, err = env.engine.ProcessReturn(context.Background(), cov.ID, "")
	require.NoError(t, err)
	env.engine.now = func() time.Time { return testEnd.AddDate(0, 0, 1) }
	dash, err = env.engine.GetDashboard(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dash.Active)
	require.Len(t, dash.RecentlyCompleted, 1)
	assert.Equal(t, 1, dash.Stats.CompletedLast30d)
}
