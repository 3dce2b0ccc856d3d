package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"gorm.io/gorm"

	"github.com/Apurer/go-order-fulfillment/internal/clients/http/processor"
	invmemory "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/memory"
	invobs "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/observability"
	invpostgres "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/persistence/postgres"
	invapp "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/application"
	invports "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/ports"
	ordermemory "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/memory"
	orderobs "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/observability"
	orderpostgres "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/persistence/postgres"
	orderapp "github.com/Apurer/go-order-fulfillment/internal/domains/orders/application"
	orderports "github.com/Apurer/go-order-fulfillment/internal/domains/orders/ports"
	paygateway "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/gateway"
	paymemory "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/memory"
	payobs "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/observability"
	paypostgres "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/persistence/postgres"
	payapp "github.com/Apurer/go-order-fulfillment/internal/domains/payments/application"
	payports "github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
	"github.com/Apurer/go-order-fulfillment/internal/platform/eventstore"
	eventmemory "github.com/Apurer/go-order-fulfillment/internal/platform/eventstore/memory"
	eventpostgres "github.com/Apurer/go-order-fulfillment/internal/platform/eventstore/postgres"
	"github.com/Apurer/go-order-fulfillment/internal/platform/migrations"
	platformobservability "github.com/Apurer/go-order-fulfillment/internal/platform/observability"
	platformpostgres "github.com/Apurer/go-order-fulfillment/internal/platform/postgres"
	sagaactivities "github.com/Apurer/go-order-fulfillment/internal/platform/temporal/activities/fulfillment"
	sagaworkflows "github.com/Apurer/go-order-fulfillment/internal/platform/temporal/workflows/fulfillment"
)

func main() {
	ctx := context.Background()
	const serviceName = "order-fulfillment-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
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
			logger.Error("failed to run migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	activities := sagaactivities.NewActivities(
		buildOrderService(db, logger, instruments),
		buildInventoryService(db, logger, instruments),
		buildPaymentService(db, logger, instruments),
	)

	tracerOptions := temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  envOrDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		Namespace: envOrDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, sagaworkflows.OrderFulfillmentTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(sagaworkflows.OrderFulfillmentWorkflow, workflow.RegisterOptions{Name: sagaworkflows.OrderFulfillmentWorkflowName})
	w.RegisterActivityWithOptions(activities.PlaceOrder, activity.RegisterOptions{Name: sagaactivities.PlaceOrderActivityName})
	w.RegisterActivityWithOptions(activities.MarkPaymentRequested, activity.RegisterOptions{Name: sagaactivities.MarkPaymentRequestedActivityName})
	w.RegisterActivityWithOptions(activities.ReserveStock, activity.RegisterOptions{Name: sagaactivities.ReserveStockActivityName})
	w.RegisterActivityWithOptions(activities.AuthorizePayment, activity.RegisterOptions{Name: sagaactivities.AuthorizePaymentActivityName})
	w.RegisterActivityWithOptions(activities.MarkReserved, activity.RegisterOptions{Name: sagaactivities.MarkReservedActivityName})
	w.RegisterActivityWithOptions(activities.MarkPaymentAuthorized, activity.RegisterOptions{Name: sagaactivities.MarkPaymentAuthorizedActivityName})
	w.RegisterActivityWithOptions(activities.CommitReservation, activity.RegisterOptions{Name: sagaactivities.CommitReservationActivityName})
	w.RegisterActivityWithOptions(activities.CapturePayment, activity.RegisterOptions{Name: sagaactivities.CapturePaymentActivityName})
	w.RegisterActivityWithOptions(activities.ConfirmFulfillment, activity.RegisterOptions{Name: sagaactivities.ConfirmFulfillmentActivityName})
	w.RegisterActivityWithOptions(activities.ReleaseReservation, activity.RegisterOptions{Name: sagaactivities.ReleaseReservationActivityName})
	w.RegisterActivityWithOptions(activities.FreePayment, activity.RegisterOptions{Name: sagaactivities.FreePaymentActivityName})
	w.RegisterActivityWithOptions(activities.RecordFailure, activity.RegisterOptions{Name: sagaactivities.RecordFailureActivityName})
	w.RegisterActivityWithOptions(activities.CancelOrder, activity.RegisterOptions{Name: sagaactivities.CancelOrderActivityName})

	logger.Info("worker listening", slog.String("taskQueue", sagaworkflows.OrderFulfillmentTaskQueue), slog.String("namespace", clientOptions.Namespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}

func buildOrderService(db *gorm.DB, logger *slog.Logger, instruments *platformobservability.Instruments) orderports.Service {
	var store eventstore.Store = eventmemory.NewStore()
	var projection orderports.Projection = ordermemory.NewProjection()
	if db != nil {
		store = eventpostgres.NewStore(db)
		projection = orderpostgres.NewProjection(db)
		logger.Info("worker order event store configured with postgres")
	} else {
		logger.Warn("POSTGRES_DSN not set, worker using in-memory order event store")
	}
	return orderobs.New(
		orderapp.NewService(store, orderapp.WithProjection(projection), orderapp.WithLogger(logger)),
		orderobs.WithLogger(logger),
		orderobs.WithTracer(instruments.Tracer("internal.orders.application")),
		orderobs.WithMeter(instruments.Meter("internal.orders.application")),
	)
}

func buildInventoryService(db *gorm.DB, logger *slog.Logger, instruments *platformobservability.Instruments) invports.Service {
	var repo invports.Repository = invmemory.NewRepository()
	if db != nil {
		repo = invpostgres.NewRepository(db)
		logger.Info("worker inventory repository configured with postgres")
	}
	return invobs.New(
		invapp.NewService(repo, invapp.WithLogger(logger)),
		invobs.WithLogger(logger),
		invobs.WithTracer(instruments.Tracer("internal.inventory.application")),
		invobs.WithMeter(instruments.Meter("internal.inventory.application")),
	)
}

func buildPaymentService(db *gorm.DB, logger *slog.Logger, instruments *platformobservability.Instruments) payports.Service {
	var repo payports.Repository = paymemory.NewRepository()
	if db != nil {
		repo = paypostgres.NewRepository(db)
		logger.Info("worker payment repository configured with postgres")
	}
	var gateway payports.Gateway
	if baseURL := strings.TrimSpace(os.Getenv("PROCESSOR_BASE_URL")); baseURL != "" {
		processorClient, err := processor.NewClient(baseURL, nil)
		if err != nil {
			logger.Error("failed to build processor client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		gateway = paygateway.NewRemote(processorClient)
	} else {
		var staticOpts []paygateway.StaticOption
		if raw := strings.TrimSpace(os.Getenv("PAYMENT_DECLINE_OVER_CENTS")); raw != "" {
			if cents, err := strconv.ParseInt(raw, 10, 64); err == nil && cents > 0 {
				staticOpts = append(staticOpts, paygateway.WithDeclineOver(cents))
			}
		}
		gateway = paygateway.NewStatic(staticOpts...)
		logger.Warn("PROCESSOR_BASE_URL not set, worker using the static payment gateway")
	}
	return payobs.New(
		payapp.NewService(repo, gateway, payapp.WithLogger(logger)),
		payobs.WithLogger(logger),
		payobs.WithTracer(instruments.Tracer("internal.payments.application")),
		payobs.WithMeter(instruments.Meter("internal.payments.application")),
	)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
