package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"leadcolor/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", 15)
	viper.SetDefault("server.write_timeout_seconds", 30)

	viper.SetDefault("broker.type", "kafka")
	viper.SetDefault("broker.kafka.rule_events_topic", constants.DefaultRuleEventsTopic)
	viper.SetDefault("broker.kafka.reply_topic", constants.DefaultReplyTopic)
	viper.SetDefault("broker.kafka.retry.max_attempts", 3)
	viper.SetDefault("broker.kafka.retry.initial_interval", "5s")
	viper.SetDefault("broker.kafka.retry.max_interval", "5s")
	viper.SetDefault("broker.kafka.retry.multiplier", 1.0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("coloring.workers", constants.DefaultWorkers)
	viper.SetDefault("coloring.rule_cache_ttl_seconds", int(constants.DefaultRuleTTL.Seconds()))
	viper.SetDefault("coloring.janitor_interval_seconds", 60)
	viper.SetDefault("coloring.default_timezone", constants.DefaultTimezone)

	viper.SetDefault("amocrm.base_domain", constants.DefaultCRMBaseDomain)
	viper.SetDefault("amocrm.scheme", "https")
	viper.SetDefault("amocrm.timeout", constants.DefaultHTTPTimeout)
	viper.SetDefault("amocrm.max_leads_per_request", constants.MaxLeadsPerRequest)
	viper.SetDefault("amocrm.rate_limit.rps", constants.DefaultCRMRateRPS)
	viper.SetDefault("amocrm.rate_limit.burst", constants.DefaultCRMRateBurst)
	viper.SetDefault("amocrm.retry.max_attempts", 5)
	viper.SetDefault("amocrm.retry.initial_interval", "1s")
	viper.SetDefault("amocrm.retry.max_interval", "60s")
	viper.SetDefault("amocrm.retry.multiplier", 2.0)

	viper.SetDefault("tokens.store", "redis")
	viper.SetDefault("tokens.ttl_minutes", int(constants.DefaultTokenTTL.Minutes()))
	viper.SetDefault("tokens.request_queue", constants.QueueTokensGetUser)
	viper.SetDefault("tokens.rpc_timeout", "10s")
	viper.SetDefault("tokens.retry.max_attempts", 3)
	viper.SetDefault("tokens.retry.initial_interval", "500ms")
	viper.SetDefault("tokens.retry.max_interval", "2s")
	viper.SetDefault("tokens.retry.multiplier", 2.0)

	viper.SetDefault("history.collection", constants.DefaultHistoryCollection)
	viper.SetDefault("history.retention_days", 30)
	viper.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)

	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 5)
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.rule_events_topic", "BROKER_KAFKA_RULE_EVENTS_TOPIC")
	viper.BindEnv("broker.kafka.reply_topic", "BROKER_KAFKA_REPLY_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("amocrm.base_domain", "AMOCRM_BASE_DOMAIN")
	viper.BindEnv("tokens.client_id", "TOKENS_CLIENT_ID")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
