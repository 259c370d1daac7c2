package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaReadMaxWait  = 500 * time.Millisecond
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

// Broker queues served by the coloring service.
const (
	QueueRulesCreate      = "leads_coloring_rules_create"
	QueueRulesUpdate      = "leads_coloring_rules_update"
	QueueRulesList        = "leads_coloring_rules_list"
	QueueRulesDelete      = "leads_coloring_rules_delete"
	QueueRulesTest        = "leads_coloring_rules_test"
	QueuePrioritiesUpdate = "leads_coloring_priorities_update"
	QueueLeadsStyles      = "leads_coloring_leads_styles"
	QueueFieldsGet        = "leads_coloring_fields_get"
	QueueHealth           = "leads_coloring_health"

	QueueTokensGetUser = "tokens_get_user"
)

const (
	DefaultRuleEventsTopic = "leads_coloring_rule_events"
	DefaultReplyTopic      = "leads_coloring_replies"
)

const (
	DefaultMongoDBName       = "leadcolor"
	DefaultHistoryCollection = "resolution_history"
)

const (
	CacheKeyPrefixToken = "leadcolor:token:"
)

const (
	DefaultTimezone    = "Europe/Moscow"
	DefaultWorkers     = 8
	DefaultRuleTTL     = 5 * time.Minute
	DefaultTokenTTL    = 50 * time.Minute
	MaxLeadsPerRequest = 250
)

const (
	DefaultCRMBaseDomain = "amocrm.ru"
	DefaultCRMRateRPS    = 6
	DefaultCRMRateBurst  = 6
)

const (
	MaxRuleNameLength = 255
	MaxColorLength    = 32
)
