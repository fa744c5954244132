package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	DBMaxOpenConns    int64
	DBMaxIdleConns    int64
	DBConnMaxLifetime time.Duration

	VaultConfigPath string
	PriceFeedURL    string

	ObjectionWindow   time.Duration
	ChallengeWindow   time.Duration
	VetoCooldown      time.Duration
	UnclaimedDeadline time.Duration

	VetoThresholdBps int64
	QuorumBps        int64
	ExecutionFeeBps  int64
	MinBond          string
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "remnant"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		DBMaxOpenConns:    envInt64("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    envInt64("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		VaultConfigPath: os.Getenv("VAULT_CONFIG_PATH"),
		PriceFeedURL:    os.Getenv("PRICE_FEED_URL"),

		ObjectionWindow:   envDuration("OBJECTION_WINDOW", 48*time.Hour),
		ChallengeWindow:   envDuration("CHALLENGE_WINDOW", 72*time.Hour),
		VetoCooldown:      envDuration("VETO_COOLDOWN", 24*time.Hour),
		UnclaimedDeadline: envDuration("UNCLAIMED_DEADLINE", 365*24*time.Hour),

		VetoThresholdBps: envInt64("VETO_THRESHOLD_BPS", 1000),
		QuorumBps:        envInt64("QUORUM_BPS", 500),
		ExecutionFeeBps:  envInt64("EXECUTION_FEE_BPS", 50),
		MinBond:          envString("MIN_BOND", "1000"),
	}, nil
}

func envString(name, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envInt64(name string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
