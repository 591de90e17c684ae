package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/cs-coverage-engine/internal/console/handler"
	"github.com/xela07ax/cs-coverage-engine/internal/infra"
	"github.com/xela07ax/cs-coverage-engine/internal/infra/auth"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Интерфейс для проверки токенов (RS256)
	// Реализуется через embedding BaseValidator в AuthService
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	authHandler      *handler.AuthHandler      // /auth/token
	coverageHandler  *handler.CoverageHandler  // /v1/coverage
	detectionHandler *handler.DetectionHandler // /v1/detections
	dashHandler      *handler.DashboardHandler // /api/v1/dashboard
}

// NewConsoleServer инициализирует сервер консоли со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	coverageH *handler.CoverageHandler,
	detectionH *handler.DetectionHandler,
	dashH *handler.DashboardHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:           chi.NewRouter(),
		logger:           logger.Named("console-api"),
		cfg:              cfg,
		authValidator:    validator,
		authHandler:      authH,
		coverageHandler:  coverageH,
		detectionHandler: detectionH,
		dashHandler:      dashH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		// Подключаем универсальный Middleware только для этой группы
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Dashboard & Stats
		r.Get("/api/v1/dashboard/stats", s.dashHandler.GetStats)

		// Жизненный цикл покрытий
		r.Route("/v1/coverage", func(r chi.Router) {
			r.Get("/", s.dashHandler.List)          // Сводный экран покрытий
			r.Post("/", s.coverageHandler.Setup)    // Настройка покрытия
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.coverageHandler.Get)            // Детали покрытия
				r.Get("/brief", s.coverageHandler.GetBrief)  // Handoff brief (фиксирует просмотр)
				r.Post("/notify", s.coverageHandler.Notify)  // Уведомление контактов клиентов
				r.Post("/return", s.coverageHandler.Return)  // Возвращение агента + handback
				r.Post("/cancel", s.coverageHandler.Cancel)  // Отмена покрытия
			})
		})

		// Текущее участие агента в покрытиях
		r.Get("/v1/agents/{id}/coverage", s.coverageHandler.GetAgentCoverage)

		// OOO-сигналы
		r.Route("/v1/detections", func(r chi.Router) {
			r.Get("/", s.detectionHandler.ListPending)          // Очередь необработанных сигналов
			r.Post("/manual", s.detectionHandler.SetManual)     // Ручной OOO-флаг
			r.Post("/scan/{agentID}", s.detectionHandler.Scan)  // Скан календаря агента
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
