package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Coloring       ColoringConfig
	AmoCRM         AmoCRMConfig `mapstructure:"amocrm"`
	Tokens         TokensConfig
	History        HistoryConfig
	Management     ManagementConfig
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers         []string    `mapstructure:"brokers"`
	GroupID         string      `mapstructure:"group_id"`
	RuleEventsTopic string      `mapstructure:"rule_events_topic"`
	ReplyTopic      string      `mapstructure:"reply_topic"`
	Retry           RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ColoringConfig struct {
	Workers                int    `mapstructure:"workers"`
	RuleCacheTTLSeconds    int    `mapstructure:"rule_cache_ttl_seconds"`
	JanitorIntervalSeconds int    `mapstructure:"janitor_interval_seconds"`
	DefaultTimezone        string `mapstructure:"default_timezone"`
}

func (c ColoringConfig) RuleCacheTTL() time.Duration {
	return time.Duration(c.RuleCacheTTLSeconds) * time.Second
}

func (c ColoringConfig) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSeconds) * time.Second
}

type AmoCRMConfig struct {
	BaseDomain         string        `mapstructure:"base_domain"`
	Scheme             string        `mapstructure:"scheme"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxLeadsPerRequest int           `mapstructure:"max_leads_per_request"`
	RateLimit          CRMRateConfig `mapstructure:"rate_limit"`
	Retry              RetryConfig   `mapstructure:"retry"`
}

type CRMRateConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type TokensConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	Store        string        `mapstructure:"store"` // "redis" or "memory"
	TTLMinutes   int           `mapstructure:"ttl_minutes"`
	RequestQueue string        `mapstructure:"request_queue"`
	RPCTimeout   time.Duration `mapstructure:"rpc_timeout"`
	Retry        RetryConfig   `mapstructure:"retry"`
}

func (c TokensConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Collection    string `mapstructure:"collection"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type ManagementConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
