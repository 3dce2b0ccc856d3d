// Package api wires the bounded contexts into the HTTP process: event store,
// message dispatcher, saga orchestrator, and the thin admin surfaces.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"gorm.io/gorm"

	"github.com/Apurer/go-order-fulfillment/internal/clients/http/processor"
	sagamemory "github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/adapters/memory"
	sagamessaging "github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/adapters/messaging"
	sagapostgres "github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/adapters/persistence/postgres"
	sagaworkflows "github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/adapters/workflows"
	sagaapp "github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/application"
	sagaports "github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/ports"
	invhttp "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/http"
	invmemory "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/memory"
	invmessaging "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/messaging"
	invobs "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/observability"
	invpostgres "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/persistence/postgres"
	invapp "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/application"
	invports "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/ports"
	orderhttp "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/http"
	ordermemory "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/memory"
	ordermessaging "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/messaging"
	orderobs "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/observability"
	orderpostgres "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/persistence/postgres"
	orderapp "github.com/Apurer/go-order-fulfillment/internal/domains/orders/application"
	orderports "github.com/Apurer/go-order-fulfillment/internal/domains/orders/ports"
	paygateway "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/gateway"
	payhttp "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/http"
	paymemory "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/memory"
	paymessaging "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/messaging"
	payobs "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/observability"
	paypostgres "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/persistence/postgres"
	payapp "github.com/Apurer/go-order-fulfillment/internal/domains/payments/application"
	payports "github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
	buskafka "github.com/Apurer/go-order-fulfillment/internal/platform/bus/kafka"
	busmemory "github.com/Apurer/go-order-fulfillment/internal/platform/bus/memory"
	buspostgres "github.com/Apurer/go-order-fulfillment/internal/platform/bus/postgres"
	busredis "github.com/Apurer/go-order-fulfillment/internal/platform/bus/redis"
	"github.com/Apurer/go-order-fulfillment/internal/platform/eventstore"
	eventmemory "github.com/Apurer/go-order-fulfillment/internal/platform/eventstore/memory"
	eventpostgres "github.com/Apurer/go-order-fulfillment/internal/platform/eventstore/postgres"
	"github.com/Apurer/go-order-fulfillment/internal/platform/migrations"
	platformobservability "github.com/Apurer/go-order-fulfillment/internal/platform/observability"
	platformpostgres "github.com/Apurer/go-order-fulfillment/internal/platform/postgres"
)

// Run boots the fulfillment HTTP API with observability, storage, messaging,
// and the saga orchestrator wired.
func Run(ctx context.Context) error {
	const serviceName = "order-fulfillment-api"
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	db, cleanupDB := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanupDB()
	if db != nil {
		if err := migrations.Run(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	dispatcher := buildDispatcher(cfg, db, logger)

	orderService, orderProjection := buildOrderService(db, logger, instruments)
	inventoryService := buildInventoryService(db, logger, instruments)
	paymentService, err := buildPaymentService(cfg, db, logger, instruments)
	if err != nil {
		return err
	}

	sagaStore := buildSagaStore(db, logger)
	orchestrator := sagaapp.NewOrchestrator(sagaStore,
		sagaapp.WithLogger(logger),
		sagaapp.WithJoinDeadline(cfg.JoinDeadline),
		sagaapp.WithReservationTTL(cfg.ReservationTTL),
	)

	ordermessaging.Register(dispatcher, orderService)
	invmessaging.Register(dispatcher, inventoryService)
	paymessaging.Register(dispatcher, paymentService)
	sagamessaging.Register(dispatcher, orchestrator)

	if msgs, err := orchestrator.Resume(ctx); err != nil {
		logger.Warn("saga resume failed", slog.String("error", err.Error()))
	} else if len(msgs) > 0 {
		logger.Info("resuming in-flight sagas", slog.Int("commands", len(msgs)))
		if err := dispatcher.Publish(ctx, msgs...); err != nil {
			logger.Warn("saga resume dispatch failed", slog.String("error", err.Error()))
		}
	}

	var starter orderports.FulfillmentStarter = sagaworkflows.NewInline(orderService, dispatcher)
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal workflows unavailable, running the saga in-process", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		starter = sagaworkflows.NewTemporal(temporalClient, orderService,
			sagaworkflows.WithJoinDeadline(cfg.JoinDeadline),
			sagaworkflows.WithReservationTTL(cfg.ReservationTTL),
		)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	go runSweepLoop(ctx, cfg.SweepInterval, inventoryService, orchestrator, dispatcher, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	orderhttp.NewHandler(orderService, starter, orderProjection, dispatcher).Register(router)
	admin := router.Group("/admin")
	invhttp.NewHandler(inventoryService).Register(admin)
	payhttp.NewHandler(paymentService).Register(admin)
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	addr := ":" + cfg.Port
	logger.Info("order fulfillment API listening", slog.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("order fulfillment API server exited", slog.String("addr", addr), slog.String("error", err.Error()))
		return err
	}
	return nil
}

func buildDispatcher(cfg Config, db *gorm.DB, logger *slog.Logger) *bus.Dispatcher {
	opts := []bus.DispatcherOption{
		bus.WithLogger(logger),
		bus.WithDeadLetter(func(msg bus.Message, handler string, err error) {
			logger.Error("message dead-lettered",
				slog.String("message", msg.Name),
				slog.String("messageId", msg.ID),
				slog.String("handler", handler),
				slog.String("error", err.Error()))
		}),
	}
	if len(cfg.KafkaBrokers) > 0 {
		opts = append(opts, bus.WithMirror(buskafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)))
		logger.Info("kafka mirror enabled", slog.String("topic", cfg.KafkaTopic))
	}
	return bus.NewDispatcher(buildInbox(cfg, db, logger), opts...)
}

func buildInbox(cfg Config, db *gorm.DB, logger *slog.Logger) bus.Inbox {
	if cfg.RedisAddr != "" {
		logger.Info("message inbox configured with redis", slog.String("addr", cfg.RedisAddr))
		return busredis.NewInbox(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}
	if db != nil {
		logger.Info("message inbox configured with postgres")
		return buspostgres.NewInbox(db)
	}
	logger.Warn("no REDIS_ADDR or postgres available, using in-memory inbox")
	return busmemory.NewInbox()
}

func buildOrderService(db *gorm.DB, logger *slog.Logger, instruments *platformobservability.Instruments) (orderports.Service, orderports.Projection) {
	var store eventstore.Store = eventmemory.NewStore()
	var projection orderports.Projection = ordermemory.NewProjection()
	if db != nil {
		store = eventpostgres.NewStore(db)
		projection = orderpostgres.NewProjection(db)
		logger.Info("order event store configured with postgres")
	}
	service := orderobs.New(
		orderapp.NewService(store, orderapp.WithProjection(projection), orderapp.WithLogger(logger)),
		orderobs.WithLogger(logger),
		orderobs.WithTracer(instruments.Tracer("internal.orders.application")),
		orderobs.WithMeter(instruments.Meter("internal.orders.application")),
	)
	return service, projection
}

func buildInventoryService(db *gorm.DB, logger *slog.Logger, instruments *platformobservability.Instruments) invports.Service {
	var repo invports.Repository = invmemory.NewRepository()
	if db != nil {
		repo = invpostgres.NewRepository(db)
		logger.Info("inventory repository configured with postgres")
	}
	return invobs.New(
		invapp.NewService(repo, invapp.WithLogger(logger)),
		invobs.WithLogger(logger),
		invobs.WithTracer(instruments.Tracer("internal.inventory.application")),
		invobs.WithMeter(instruments.Meter("internal.inventory.application")),
	)
}

func buildPaymentService(cfg Config, db *gorm.DB, logger *slog.Logger, instruments *platformobservability.Instruments) (payports.Service, error) {
	var repo payports.Repository = paymemory.NewRepository()
	if db != nil {
		repo = paypostgres.NewRepository(db)
		logger.Info("payment repository configured with postgres")
	}
	var gateway payports.Gateway
	if cfg.ProcessorBaseURL != "" {
		processorClient, err := processor.NewClient(cfg.ProcessorBaseURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build processor client: %w", err)
		}
		gateway = paygateway.NewRemote(processorClient)
		logger.Info("payment gateway configured with remote processor")
	} else {
		var staticOpts []paygateway.StaticOption
		if cfg.DeclineOverCents > 0 {
			staticOpts = append(staticOpts, paygateway.WithDeclineOver(cfg.DeclineOverCents))
		}
		gateway = paygateway.NewStatic(staticOpts...)
		logger.Warn("PROCESSOR_BASE_URL not set, using the static payment gateway")
	}
	return payobs.New(
		payapp.NewService(repo, gateway, payapp.WithLogger(logger)),
		payobs.WithLogger(logger),
		payobs.WithTracer(instruments.Tracer("internal.payments.application")),
		payobs.WithMeter(instruments.Meter("internal.payments.application")),
	), nil
}

func buildSagaStore(db *gorm.DB, logger *slog.Logger) sagaports.InstanceStore {
	if db != nil {
		logger.Info("saga store configured with postgres")
		return sagapostgres.NewStore(db)
	}
	return sagamemory.NewStore()
}

// runSweepLoop expires lapsed holds and fails overdue sagas on a fixed cadence.
func runSweepLoop(ctx context.Context, interval time.Duration, inventory invports.Service, orchestrator *sagaapp.Orchestrator, publisher bus.Publisher, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := inventory.SweepExpired(ctx)
			if err != nil {
				logger.Warn("reservation sweep failed", slog.String("error", err.Error()))
			} else if len(expired) > 0 {
				msgs, err := invmessaging.ExpiryMessages(expired)
				if err == nil {
					err = publisher.Publish(ctx, msgs...)
				}
				if err != nil {
					logger.Warn("reservation expiry dispatch failed", slog.String("error", err.Error()))
				}
			}
			msgs, err := orchestrator.CheckDeadlines(ctx)
			if err != nil {
				logger.Warn("saga deadline check failed", slog.String("error", err.Error()))
				continue
			}
			if len(msgs) > 0 {
				if err := publisher.Publish(ctx, msgs...); err != nil {
					logger.Warn("saga deadline dispatch failed", slog.String("error", err.Error()))
				}
			}
		}
	}
}

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracerOptions := temporalotel.TracerOptions{}
	if instruments != nil {
		tracerOptions.Tracer = instruments.Tracer("temporal-client")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(instruments.Logger),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}
