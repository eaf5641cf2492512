package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/catalog-oms/internal/health"
	"github.com/vladislavdragonenkov/catalog-oms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/catalog"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/idempotency"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/order"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/outbox"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/reconcile"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/reservation"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/validation"
	"github.com/vladislavdragonenkov/catalog-oms/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/catalog-oms/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run собирает зависимости, запускает фоновые воркеры и HTTP-серверы
// и блокируется до отмены контекста либо ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Kafka опционален: без брокеров события остаются в outbox.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	validator := validation.NewValidator(deps.Products, logger.WithField("component", "validator"))
	coordinator := reservation.NewCoordinator(deps.Products, deps.Ledger, logger.WithField("component", "reservation"))

	var orderSvc *order.Service
	if kafkaProducer != nil {
		orderSvc = order.NewServiceWithKafka(deps.Orders, validator, coordinator, deps.Outbox, kafkaProducer, logger.WithField("component", "order-service"))
	} else {
		orderSvc = order.NewService(deps.Orders, validator, coordinator, deps.Outbox, logger.WithField("component", "order-service"))
	}
	catalogSvc := catalog.NewService(deps.Products, logger.WithField("component", "catalog-service"))

	var wg sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, cfg.OutboxTopic)
		dlq := kafka.NewOutboxPublisher(kafkaProducer, dlqTopic(cfg))
		worker := outbox.NewWorker(deps.Outbox, publisher,
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(dlq),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(workerCtx)
		}()
	}

	cleanup := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanup.Run(workerCtx)
	}()

	checker := reconcile.NewChecker(deps.Products, deps.Orders, deps.Ledger,
		reconcile.WithLogger(logger.WithField("component", "reconcile")),
		reconcile.WithInterval(cfg.ReconcileInterval),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		checker.Run(workerCtx)
	}()

	healthHandler := newHealthHandler(deps)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	handler := httpapi.NewHandler(orderSvc, catalogSvc, deps.Idempotency, logger.WithField("component", "http"))
	apiSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(handler),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		stopWorkers()
		wg.Wait()
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		stopWorkers()
		wg.Wait()
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func dlqTopic(cfg Config) string {
	if cfg.DLQTopic != "" {
		return cfg.DLQTopic
	}
	return kafka.TopicDeadLetterQueue
}

// newHealthHandler регистрирует проверки доступности внешних систем.
func newHealthHandler(deps *Dependencies) *healthcheck.Handler {
	h := healthcheck.NewHandler(version.String())

	if deps.Store != nil {
		store := deps.Store
		h.RegisterFunc("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(ctx)
		})
	}
	if deps.RedisClient != nil {
		client := deps.RedisClient
		h.RegisterFunc("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(ctx).Err()
		})
	}

	return h
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus
// вместе с health-эндпоинтами.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
