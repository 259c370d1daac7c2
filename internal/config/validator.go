package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"leadcolor/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errs = append(errs, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errs = append(errs, err)
	}

	if err := validateColoring(cfg.Coloring); err != nil {
		errs = append(errs, err)
	}

	if err := validateAmoCRM(cfg.AmoCRM); err != nil {
		errs = append(errs, err)
	}

	if err := validateTokens(cfg.Tokens, cfg.Database.Redis); err != nil {
		errs = append(errs, err)
	}

	if cfg.History.Enabled && cfg.Database.MongoDB.URI == "" {
		errs = append(errs, &ValidationError{
			Field:   "history.enabled",
			Message: "history requires database.mongodb.uri",
		})
	}

	return errors.Join(errs...)
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	}

	if cfg.Type != "kafka" {
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
	return validateKafka(cfg.Kafka)
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.InitialInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validateColoring(cfg ColoringConfig) error {
	if cfg.Workers < 1 {
		return &ValidationError{
			Field:   "coloring.workers",
			Message: fmt.Sprintf("workers must be positive, got %d", cfg.Workers),
		}
	}

	if cfg.RuleCacheTTLSeconds < 0 {
		return &ValidationError{
			Field:   "coloring.rule_cache_ttl_seconds",
			Message: "rule cache TTL must be non-negative",
		}
	}

	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return &ValidationError{
			Field:   "coloring.default_timezone",
			Message: fmt.Sprintf("unknown timezone %q", cfg.DefaultTimezone),
		}
	}

	return nil
}

func validateAmoCRM(cfg AmoCRMConfig) error {
	if cfg.BaseDomain == "" {
		return &ValidationError{
			Field:   "amocrm.base_domain",
			Message: "CRM base domain is required",
		}
	}

	if cfg.Scheme != "http" && cfg.Scheme != "https" {
		return &ValidationError{
			Field:   "amocrm.scheme",
			Message: fmt.Sprintf("invalid scheme: %s (valid: http, https)", cfg.Scheme),
		}
	}

	if cfg.MaxLeadsPerRequest < 1 || cfg.MaxLeadsPerRequest > constants.MaxLeadsPerRequest {
		return &ValidationError{
			Field:   "amocrm.max_leads_per_request",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", constants.MaxLeadsPerRequest, cfg.MaxLeadsPerRequest),
		}
	}

	if cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst < 1 {
		return &ValidationError{
			Field:   "amocrm.rate_limit",
			Message: "rps and burst must be positive",
		}
	}

	if cfg.Retry.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "amocrm.retry.max_attempts",
			Message: "max_attempts must be at least 1",
		}
	}

	return nil
}

func validateTokens(cfg TokensConfig, redis RedisConfig) error {
	if cfg.ClientID == "" {
		return &ValidationError{
			Field:   "tokens.client_id",
			Message: "CRM integration client_id is required",
		}
	}

	switch strings.ToLower(cfg.Store) {
	case "memory":
	case "redis":
		if redis.Host == "" {
			return &ValidationError{
				Field:   "tokens.store",
				Message: "redis token store requires database.redis.host",
			}
		}
	default:
		return &ValidationError{
			Field:   "tokens.store",
			Message: fmt.Sprintf("invalid token store: %s (valid: redis, memory)", cfg.Store),
		}
	}

	if cfg.TTLMinutes < 1 {
		return &ValidationError{
			Field:   "tokens.ttl_minutes",
			Message: "token TTL must be positive",
		}
	}

	if cfg.RequestQueue == "" {
		return &ValidationError{
			Field:   "tokens.request_queue",
			Message: "token request queue is required",
		}
	}

	return nil
}
