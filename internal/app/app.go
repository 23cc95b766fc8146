// Package app собирает storefront: хранилище, сервисы, REST API, gRPC health и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cleanup"
	"github.com/vladislavdragonenkov/storefront/internal/service/customers"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/service/products"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	httpShutdownTimeout = 5 * time.Second
	grpcHealthInterval  = 5 * time.Second
	readHeaderTimeout   = 5 * time.Second
)

var errCircuitOpen = errors.New("kafka circuit breaker is open")

// Run запускает сервис и блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	productCache, redisClient := initProductCache(ctx, cfg, logger.WithField("layer", "cache"))
	defer closeRedis(redisClient, logger)

	// Kafka опциональна: без неё outbox пишет события в лог.
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger.WithField("layer", "kafka"))
	defer closeKafka(producer, logger)
	publishers := buildOutboxPublishers(producer, logger.WithField("layer", "outbox"))

	productService := products.NewService(deps.store,
		products.WithCache(productCache),
		products.WithCacheMetrics(metrics.NewCacheMetricsWithRegisterer(prometheus.DefaultRegisterer)),
		products.WithLogger(logger.WithField("service", "products")),
	)
	customerService := customers.NewService(deps.store, logger.WithField("service", "customers"))
	orderService := orders.NewService(deps.store,
		orders.WithMetrics(metrics.NewOrderMetrics()),
		orders.WithLogger(logger.WithField("service", "orders")),
	)

	router := httpapi.NewRouter(httpapi.Services{
		Products:  productService,
		Customers: customerService,
		Orders:    orderService,
	},
		httpapi.WithLogger(logger.WithField("layer", "http")),
		httpapi.WithMetrics(metrics.NewHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer)),
		httpapi.WithIdempotency(deps.idempotencyRepo, cfg.IdempotencyTTL),
		httpapi.WithRequestTimeout(cfg.RequestTimeout),
	)

	healthHandler := newHealthHandler(deps, redisClient, publishers.breaker)

	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http api: %w", err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = apiLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	var workers sync.WaitGroup
	startWorkers(workerCtx, &workers, cfg, deps, publishers, logger)
	consumer := startCacheInvalidator(workerCtx, cfg, productCache, producer, logger.WithField("layer", "kafka"))

	grpcServer, healthServer := newGRPCServer(logger)
	go syncGRPCHealth(workerCtx, healthServer, healthHandler, grpcHealthInterval)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	apiSrv := &http.Server{Handler: router, ReadHeaderTimeout: readHeaderTimeout}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("REST API слушает %s", apiLis.Addr())
		if err := apiSrv.Serve(apiLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http api server: %w", err)
		}
	}()
	go func() {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		runErr = ctx.Err()
	case runErr = <-errCh:
		logger.WithError(runErr).Error("сервер завершился с ошибкой")
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownHTTP(apiSrv, logger)
	stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
	shutdownWorkers(stopWorkers, &workers, logger)
	stopConsumer(consumer, logger)
	shutdownHTTP(metricsSrv, logger)

	return runErr
}

// newHealthHandler регистрирует проверки. Хранилище обязательно, Redis и Kafka только понижают статус до degraded.
func newHealthHandler(deps runtimeDependencies, redisClient *redis.Client, breaker *kafka.BreakerPublisher) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	handler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", deps.store.Ping))
	if redisClient != nil {
		handler.RegisterChecker("redis", healthcheck.NewOptionalChecker("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}
	if breaker != nil {
		handler.RegisterChecker("kafka", healthcheck.NewOptionalChecker("kafka", func(context.Context) error {
			if breaker.State() == "open" {
				return errCircuitOpen
			}
			return nil
		}))
	}
	return handler
}

// startWorkers запускает outbox relay и очистку устаревших записей.
func startWorkers(ctx context.Context, wg *sync.WaitGroup, cfg Config, deps runtimeDependencies, publishers outboxPublishers, logger *log.Entry) {
	outboxWorker := outbox.NewWorker(deps.store.Outbox(), publishers.main,
		outbox.WithLogger(logger.WithField("worker", "outbox")),
		outbox.WithDLQPublisher(publishers.dlq),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	cleanupWorker := cleanup.NewWorker([]cleanup.Target{
		cleanup.IdempotencyTarget(deps.idempotencyRepo),
		cleanup.OutboxTarget(deps.store.Outbox(), cfg.OutboxRetention),
	},
		cleanup.WithLogger(logger.WithField("worker", "cleanup")),
		cleanup.WithInterval(cfg.CleanupInterval),
		cleanup.WithBatchSize(cfg.CleanupBatchSize),
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		outboxWorker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanupWorker.Run(ctx)
	}()
}

// shutdownWorkers отменяет контекст воркеров и ждёт их завершения.
func shutdownWorkers(cancel context.CancelFunc, wg *sync.WaitGroup, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if wg == nil {
		return
	}
	wg.Wait()
	logger.Info("фоновые воркеры остановлены")
}

// newGRPCServer создаёт gRPC сервер с health, reflection и prometheus-интерцептором.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return grpcServer, healthServer
}

// syncGRPCHealth переносит результат HTTP-проверок в статус gRPC health.
func syncGRPCHealth(ctx context.Context, server *health.Server, checks *healthcheck.Handler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status := healthpb.HealthCheckResponse_SERVING
		if checks.Evaluate(ctx).Status == healthcheck.StatusUnhealthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if ctx.Err() != nil {
			return
		}
		server.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// stopGRPC пытается остановить сервер мягко и обрывает соединения по таймауту.
func stopGRPC(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	if timeout <= 0 {
		timeout = httpShutdownTimeout
	}
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// startMetricsServer запускает служебный HTTP-сервер: /metrics, /healthz, /readyz и /livez.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
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
	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
