// One-shot expiry sweep for stock reservations, intended to run as a cron
// job beside the API. It marks lapsed holds expired and reports how many
// were swept; the in-process loop in the API emits the saga events.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	invpostgres "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/persistence/postgres"
	invapp "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/application"
	platformpostgres "github.com/Apurer/go-order-fulfillment/internal/platform/postgres"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	db, cleanup := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanup()
	if db == nil {
		log.Fatal("POSTGRES_DSN not set or connection failed; cannot sweep reservations")
	}

	service := invapp.NewService(invpostgres.NewRepository(db), invapp.WithLogger(logger))
	expired, err := service.SweepExpired(ctx)
	if err != nil {
		log.Fatalf("failed to sweep reservations: %v", err)
	}
	log.Printf("reservation sweep completed, expired %d holds", len(expired))
}
