package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/client"
)

// Defaults for the saga timing knobs.
const (
	DefaultJoinDeadline   = 30 * time.Second
	DefaultReservationTTL = 15 * time.Minute
	DefaultSweepInterval  = 30 * time.Second
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port              string
	PostgresDSN       string
	RedisAddr         string
	KafkaBrokers      []string
	KafkaTopic        string
	ProcessorBaseURL  string
	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool
	JoinDeadline      time.Duration
	ReservationTTL    time.Duration
	SweepInterval     time.Duration
	DeclineOverCents  int64
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:              envDefault("PORT", "8080"),
		PostgresDSN:       strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		RedisAddr:         strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		KafkaTopic:        envDefault("KAFKA_TOPIC", "order-fulfillment"),
		ProcessorBaseURL:  strings.TrimSpace(os.Getenv("PROCESSOR_BASE_URL")),
		TemporalAddress:   envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace: envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:  isTruthy(os.Getenv("TEMPORAL_DISABLED")),
		JoinDeadline:      DefaultJoinDeadline,
		ReservationTTL:    DefaultReservationTTL,
		SweepInterval:     DefaultSweepInterval,
	}
	if raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); raw != "" {
		for _, broker := range strings.Split(raw, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	var err error
	if cfg.JoinDeadline, err = durationFromEnv("JOIN_DEADLINE_SECONDS", cfg.JoinDeadline, time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ReservationTTL, err = durationFromEnv("RESERVATION_TTL_SECONDS", cfg.ReservationTTL, time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationFromEnv("SWEEP_INTERVAL_SECONDS", cfg.SweepInterval, time.Second); err != nil {
		return Config{}, err
	}
	if raw := strings.TrimSpace(os.Getenv("PAYMENT_DECLINE_OVER_CENTS")); raw != "" {
		cents, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || cents <= 0 {
			return Config{}, fmt.Errorf("PAYMENT_DECLINE_OVER_CENTS must be a positive integer")
		}
		cfg.DeclineOverCents = cents
	}
	return cfg, nil
}

func durationFromEnv(key string, fallback time.Duration, unit time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return time.Duration(value) * unit, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
