package activity

/*
Файл recorder.go реализует сбор и персистентность активити-лога покрытий.

Ключевые особенности архитектуры:
- Non-blocking Logging: неблокирующий канал на пути записи — задержки БД
  не влияют на время ответа движка.
- Batching: накопление событий в памяти и пакетная запись (Bulk Insert)
  в PostgreSQL по таймеру или при достижении лимита.
- Drain Pattern & Graceful Shutdown: при остановке канал закрывается, воркер
  вычитывает остатки и делает Final Flush — без потерь данных на перезапуске.
*/

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const flushBatchSize = 100

// StorageInterface определяет, куда физически сохраняются события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
}

// Sink — минимальный контракт для потребителей (движка): только Log.
type Sink interface {
	Log(event Event)
}

type Recorder struct {
	ch       chan Event
	repo     StorageInterface
	logger   *zap.Logger
	interval time.Duration
	wg       sync.WaitGroup

	// mu упорядочивает отправки в канал относительно его закрытия:
	// Log держит RLock на время send, Stop под Lock выставляет closed
	// и только потом закрывает канал.
	mu     sync.RWMutex
	closed bool
}

func NewRecorder(repo StorageInterface, bufferSize int, interval time.Duration, logger *zap.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Recorder{
		ch:       make(chan Event, bufferSize),
		repo:     repo,
		logger:   logger.With(zap.String("mod", "activity-recorder")),
		interval: interval,
	}
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
// Повторный вызов безопасен.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	// Drain Pattern: завершение воркера только через закрытие входного канала.
	// Все Log, стартовавшие до выставления closed, уже отпустили RLock —
	// закрывать канал здесь безопасно.
	r.logger.Info("stopping recorder: closing channel and flushing buffer...")
	close(r.ch)
	r.wg.Wait()
	r.logger.Info("recorder stopped gracefully")
}

func (r *Recorder) Log(event Event) {
	// Таймстемп всегда проставлен
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("activity event dropped: recorder is stopping", zap.String("id", event.ID))
		return
	}

	// Load Shedding: при переполнении буфера событие уходит в обычный лог
	select {
	case r.ch <- event:
	default:
		r.logger.Error("activity_buffer_overflow",
			zap.String("coverage_id", event.CoverageID),
			zap.String("kind", event.Kind),
		)
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]Event, 0, flushBatchSize)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст к этому моменту может быть закрыт
			if err := r.repo.WriteBatch(context.Background(), batch); err != nil {
				r.logger.Error("activity flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-r.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали всё — финальный сброс и выход
				flush()
				r.logger.Info("activity worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= flushBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
