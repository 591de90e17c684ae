package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/cs-coverage-engine/internal/activity"
	"github.com/xela07ax/cs-coverage-engine/internal/allocator"
	"github.com/xela07ax/cs-coverage-engine/internal/brief"
	"github.com/xela07ax/cs-coverage-engine/internal/directory"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"github.com/xela07ax/cs-coverage-engine/internal/infra"
	"github.com/xela07ax/cs-coverage-engine/internal/notify"
	"github.com/xela07ax/cs-coverage-engine/internal/portfolio"
	"github.com/xela07ax/cs-coverage-engine/internal/routing"
	"go.uber.org/zap"
)

// CoverageStore описывает требования к хранилищу агрегатов покрытия.
// Реализации: repository/postgres (прод) и repository/memory (тесты).
type CoverageStore interface {
	CreateCoverage(ctx context.Context, c *domain.OOOCoverage) error
	GetCoverage(ctx context.Context, id string) (*domain.OOOCoverage, error)
	UpdateCoverage(ctx context.Context, c *domain.OOOCoverage) error

	// FindOverlapping — нетерминальные покрытия агента, пересекающие [start, end].
	// Опора инварианта "одно непогашенное покрытие на агента".
	FindOverlapping(ctx context.Context, outgoingAgentID string, start, end time.Time) ([]*domain.OOOCoverage, error)

	FindActiveByOutgoing(ctx context.Context, agentID string, now time.Time) (*domain.OOOCoverage, error)
	FindActiveByCovering(ctx context.Context, agentID string, now time.Time) ([]*domain.OOOCoverage, error)

	ListActive(ctx context.Context, now time.Time) ([]*domain.OOOCoverage, error)
	ListUpcoming(ctx context.Context, now time.Time) ([]*domain.OOOCoverage, error)
	ListCompletedSince(ctx context.Context, since time.Time) ([]*domain.OOOCoverage, error)
}

// ActivityLog — read-доступ к логу взаимодействий за период.
type ActivityLog interface {
	FetchInteractions(ctx context.Context, agentID string, from, to time.Time) ([]domain.Interaction, error)
}

// AccountReader — точечное чтение текущего состояния аккаунта (sentiment-дельты).
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
}

// DetectionMarker гасит OOO-сигнал, из которого выросло покрытие.
type DetectionMarker interface {
	MarkDetectionProcessed(ctx context.Context, id string) error
}

// Deps — зависимости движка, собираются в main (Dependency Injection через
// конструктор, без глобального состояния).
type Deps struct {
	Store        CoverageStore
	Directory    *directory.Directory
	Allocator    *allocator.Allocator
	Portfolio    *portfolio.Aggregator
	Briefs       *brief.Builder
	Routing      *routing.Controller
	Dispatcher   notify.Dispatcher
	Activity     ActivityLog
	Accounts     AccountReader
	Detections   DetectionMarker // Опционально
	Recorder     activity.Sink
	Availability *directory.AvailabilityCache // Опционально
	RDB          *redis.Client                // Опционально: локи и сигналы между инстансами
	Metrics      *Metrics
	Logger       *zap.Logger
	Config       infra.EngineConfig
}

// Engine — менеджер жизненного цикла покрытий и генератор handback-ов.
type Engine struct {
	store        CoverageStore
	directory    *directory.Directory
	allocator    *allocator.Allocator
	portfolio    *portfolio.Aggregator
	briefs       *brief.Builder
	routing      *routing.Controller
	dispatcher   notify.Dispatcher
	activity     ActivityLog
	accounts     AccountReader
	detections   DetectionMarker
	recorder     activity.Sink
	availability *directory.AvailabilityCache
	rdb          *redis.Client
	metrics      *Metrics
	logger       *zap.Logger
	cfg          infra.EngineConfig

	locks *agentLocks
	now   func() time.Time // Подменяется в тестах
}

func New(d Deps) *Engine {
	if d.Metrics == nil {
		d.Metrics = NewMetrics(nil)
	}
	return &Engine{
		store:        d.Store,
		directory:    d.Directory,
		allocator:    d.Allocator,
		portfolio:    d.Portfolio,
		briefs:       d.Briefs,
		routing:      d.Routing,
		dispatcher:   d.Dispatcher,
		activity:     d.Activity,
		accounts:     d.Accounts,
		detections:   d.Detections,
		recorder:     d.Recorder,
		availability: d.Availability,
		rdb:          d.RDB,
		metrics:      d.Metrics,
		logger:       d.Logger.Named("coverage-engine"),
		cfg:          d.Config,
		locks:        newAgentLocks(d.RDB, d.Logger),
		now:          time.Now,
	}
}

// lockAndLoad берет single-writer лок по исходящему агенту покрытия и
// перечитывает агрегат уже под локом. Первое чтение нужно только чтобы узнать
// ключ блокировки: состояние до взятия лока могла поменять конкурентная
// операция, решения принимаются по свежей копии.
func (e *Engine) lockAndLoad(ctx context.Context, coverageID string) (*domain.OOOCoverage, func(), error) {
	cov, err := e.store.GetCoverage(ctx, coverageID)
	if err != nil {
		return nil, nil, fmt.Errorf("load coverage: %w", err)
	}
	if cov == nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrCoverageNotFound, coverageID)
	}

	release, err := e.locks.acquire(ctx, cov.OutgoingAgentID)
	if err != nil {
		return nil, nil, err
	}

	cov, err = e.store.GetCoverage(ctx, coverageID)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("reload coverage: %w", err)
	}
	if cov == nil {
		release()
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrCoverageNotFound, coverageID)
	}
	return cov, release, nil
}

// publish транслирует событие жизненного цикла в Redis (best-effort):
// дашборды и соседние инстансы узнают о смене состояния без поллинга.
func (e *Engine) publish(ctx context.Context, coverageID, event string) {
	if e.rdb == nil {
		return
	}
	payload := coverageID + ":" + event
	if err := e.rdb.Publish(ctx, infra.RedisChanCoverageEvents, payload).Err(); err != nil {
		e.logger.Warn("lifecycle signal delivery failed",
			zap.String("coverage_id", coverageID),
			zap.String("event", event),
			zap.Error(err))
	}
}

// record — неблокирующая запись в активити-лог (рекордер опционален).
func (e *Engine) record(event activity.Event) {
	if e.recorder != nil {
		e.recorder.Log(event)
	}
}
