package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ColoringRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coloring_requests_total",
			Help: "Total number of leads styles requests (count)",
		},
		[]string{"status"},
	)

	ColoringResolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coloring_resolution_duration_ms",
			Help:    "Duration of a leads styles request in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	LeadsEvaluatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coloring_leads_evaluated_total",
			Help: "Total number of leads run through the rule resolver (count)",
		},
	)

	LeadsMatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coloring_leads_matched_total",
			Help: "Total number of leads that received a style (count)",
		},
	)

	RuleEvaluationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coloring_rule_evaluation_errors_total",
			Help: "Total number of rule evaluations skipped because of malformed data (count)",
		},
		[]string{"reason"},
	)

	RuleCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coloring_rule_cache_requests_total",
			Help: "Rule cache lookups by result (count)",
		},
		[]string{"result"},
	)

	RuleCacheSubdomains = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coloring_rule_cache_subdomains",
			Help: "Number of subdomains with a cached rule snapshot (count)",
		},
	)

	TokenCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_cache_requests_total",
			Help: "Token cache lookups by result (count)",
		},
		[]string{"result"},
	)

	CRMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_requests_total",
			Help: "Total number of CRM API requests (count)",
		},
		[]string{"endpoint", "status"},
	)

	CRMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_request_duration_ms",
			Help:    "Duration of CRM API requests in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"endpoint"},
	)

	CRMRateLimitWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_rate_limit_wait_ms",
			Help:    "Time spent waiting for the CRM rate limiter in milliseconds",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000, 5000},
		},
	)

	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_requests_total",
			Help: "Total number of broker RPC requests handled (count)",
		},
		[]string{"queue", "status"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpc_request_duration_ms",
			Help:    "Duration of broker RPC handlers in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"queue"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "target"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of API requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	RuleMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coloring_rule_mutations_total",
			Help: "Total number of rule create/update/delete operations (count)",
		},
		[]string{"action", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"operation", "status"},
	)
)

var (
	coloringOnce       sync.Once
	brokerOnce         sync.Once
	circuitBreakerOnce sync.Once
	managementOnce     sync.Once
	crmOnce            sync.Once
)

func RegisterColoringMetrics() {
	coloringOnce.Do(func() {
		prometheus.MustRegister(
			ColoringRequestsTotal,
			ColoringResolutionDuration,
			LeadsEvaluatedTotal,
			LeadsMatchedTotal,
			RuleEvaluationErrorsTotal,
			RuleCacheRequestsTotal,
			RuleCacheSubdomains,
			TokenCacheRequestsTotal,
			DatabaseQueryDuration,
		)
	})
}

func RegisterCRMMetrics() {
	crmOnce.Do(func() {
		prometheus.MustRegister(CRMRequestsTotal, CRMRequestDuration, CRMRateLimitWait)
	})
}

func RegisterBrokerMetrics() {
	brokerOnce.Do(func() {
		prometheus.MustRegister(
			RPCRequestsTotal,
			RPCRequestDuration,
			RetryAttemptsTotal,
			KafkaMessagesReadTotal,
			KafkaMessagesWrittenTotal,
			KafkaWriteDuration,
		)
	})
}

func RegisterCircuitBreakerMetrics() {
	circuitBreakerOnce.Do(func() {
		prometheus.MustRegister(CircuitBreakerState, CircuitBreakerRequests, CircuitBreakerFailures)
	})
}

func RegisterManagementMetrics() {
	managementOnce.Do(func() {
		prometheus.MustRegister(RateLimitRequestsTotal, RuleMutationsTotal)
	})
}

func ObserveColoringDuration(duration time.Duration, status string) {
	ColoringResolutionDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
	ColoringRequestsTotal.WithLabelValues(status).Inc()
}

func AddLeadsEvaluated(evaluated, matched int) {
	LeadsEvaluatedTotal.Add(float64(evaluated))
	LeadsMatchedTotal.Add(float64(matched))
}

func IncRuleEvaluationError(reason string) {
	RuleEvaluationErrorsTotal.WithLabelValues(reason).Inc()
}

func IncRuleCache(result string) {
	RuleCacheRequestsTotal.WithLabelValues(result).Inc()
}

func SetRuleCacheSubdomains(count int) {
	RuleCacheSubdomains.Set(float64(count))
}

func IncTokenCache(result string) {
	TokenCacheRequestsTotal.WithLabelValues(result).Inc()
}

func ObserveCRMRequest(endpoint, status string, duration time.Duration) {
	CRMRequestsTotal.WithLabelValues(endpoint, status).Inc()
	CRMRequestDuration.WithLabelValues(endpoint).Observe(float64(duration.Milliseconds()))
}

func ObserveCRMRateLimitWait(duration time.Duration) {
	CRMRateLimitWait.Observe(float64(duration.Milliseconds()))
}

func ObserveRPCRequest(queue, status string, duration time.Duration) {
	RPCRequestsTotal.WithLabelValues(queue, status).Inc()
	RPCRequestDuration.WithLabelValues(queue).Observe(float64(duration.Milliseconds()))
}

func IncRetryAttempt(service, target string) {
	RetryAttemptsTotal.WithLabelValues(service, target).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncRuleMutation(action, status string) {
	RuleMutationsTotal.WithLabelValues(action, status).Inc()
}

func ObserveDatabaseQuery(operation, status string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}
