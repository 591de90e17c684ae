package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/cs-coverage-engine/internal/activity"
	"github.com/xela07ax/cs-coverage-engine/internal/allocator"
	"github.com/xela07ax/cs-coverage-engine/internal/brief"
	"github.com/xela07ax/cs-coverage-engine/internal/connectors"
	"github.com/xela07ax/cs-coverage-engine/internal/console/handler"
	"github.com/xela07ax/cs-coverage-engine/internal/console/server"
	"github.com/xela07ax/cs-coverage-engine/internal/console/service"
	"github.com/xela07ax/cs-coverage-engine/internal/directory"
	"github.com/xela07ax/cs-coverage-engine/internal/engine"
	"github.com/xela07ax/cs-coverage-engine/internal/infra"
	"github.com/xela07ax/cs-coverage-engine/internal/infra/auth"
	"github.com/xela07ax/cs-coverage-engine/internal/intake"
	"github.com/xela07ax/cs-coverage-engine/internal/notify"
	"github.com/xela07ax/cs-coverage-engine/internal/portfolio"
	"github.com/xela07ax/cs-coverage-engine/internal/repository/postgres"
	"github.com/xela07ax/cs-coverage-engine/internal/routing"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	// При завершении main() или срабатывании SIGTERM, cancel() остановит слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	initCtx, initCancel := context.WithTimeout(appCtx, 5*time.Second)
	repo, err := postgres.NewRepo(initCtx, cfg.Database.URL)
	initCancel()
	if err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	defer repo.Close()

	// 3. Ключи аутентификации (RS256)
	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to parse private key", zap.Error(err))
	}
	publicKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse public key", zap.Error(err))
	}

	// 4. L1-кэш недоступности агентов + синхронизация через Redis Pub/Sub
	availability := directory.NewAvailabilityCache(rdb, logger)
	if ids, err := repo.ListUnavailableAgentIDs(appCtx); err != nil {
		logger.Warn("availability warmup skipped", zap.Error(err))
	} else if err := availability.Init(appCtx, ids); err != nil {
		logger.Warn("availability cache init failed", zap.Error(err))
	}
	go availability.StartListener(appCtx, func() ([]string, error) {
		return repo.ListUnavailableAgentIDs(appCtx)
	})

	// 5. Активити-рекордер (batch-запись событий в Postgres)
	recorder := activity.NewRecorder(repo, cfg.Engine.ActivityBufferSize, cfg.Engine.ActivityFlushInterval, logger)
	recorder.Start()

	// 6. Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// Экспортируем метрики для Prometheus
	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		log.Fatal(http.ListenAndServe(":9090", nil))
	}()

	// 7. Сборка движка покрытия (Dependency Injection)
	dir := directory.New(repo, availability, logger)
	alloc := allocator.New(dir, logger)
	aggregator := portfolio.New(repo, portfolio.Thresholds{
		HighValueRevenue: cfg.Engine.HighValueRevenue,
		MidValueRevenue:  cfg.Engine.MidValueRevenue,
	}, logger)
	builder := brief.NewBuilder(cfg.Engine.AtRiskHealth)
	router := routing.NewController(logger)

	// Диспетчер уведомлений: в проде сюда встает адаптер почтового шлюза.
	// Обертка Reliability (Retry + Circuit Breaker + Rate Limit) одна и та же.
	dispatcher := notify.NewReliableDispatcher(connectors.NewMockDispatcher(), cfg.Engine)

	eng := engine.New(engine.Deps{
		Store:        repo,
		Directory:    dir,
		Allocator:    alloc,
		Portfolio:    aggregator,
		Briefs:       builder,
		Routing:      router,
		Dispatcher:   dispatcher,
		Activity:     repo,
		Accounts:     repo,
		Detections:   repo,
		Recorder:     recorder,
		Availability: availability,
		RDB:          rdb,
		Metrics:      metrics,
		Logger:       logger,
		Config:       cfg.Engine,
	})

	// Intake OOO-сигналов: календарь + ручные флаги
	calendar := connectors.NewMockCalendarSource()
	intakeSvc := intake.New(calendar, repo, logger)

	// 8. Console API
	authService := service.NewAuthService(repo, privateKey, publicKey)
	consoleSrv := server.NewConsoleServer(
		cfg,
		logger,
		authService,
		handler.NewAuthHandler(authService),
		handler.NewCoverageHandler(eng),
		handler.NewDetectionHandler(intakeSvc, repo, cfg.Engine.CalendarHorizonDays),
		handler.NewDashboardHandler(eng),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("coverage console started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("coverage console stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Останавливаем фоновые горутины и сбрасываем буфер рекордера
	cancel()
	recorder.Stop()
	logger.Info("coverage console exited properly")
}
