package management

import (
	"context"
	"fmt"
	"time"

	"leadcolor/internal/broker"
	"leadcolor/pkg/logging"
	"leadcolor/pkg/models"
)

// EventPublisher announces rule changes so workers drop cached rules.
type EventPublisher interface {
	PublishRulesChanged(ctx context.Context, subdomain, action string, ruleID int64) error
}

type RuleEventProducer struct {
	producer broker.Producer
	topic    string
	source   string
	now      func() time.Time
}

func NewRuleEventProducer(producer broker.Producer, topic, source string) *RuleEventProducer {
	return &RuleEventProducer{
		producer: producer,
		topic:    topic,
		source:   source,
		now:      time.Now,
	}
}

func (p *RuleEventProducer) PublishRulesChanged(ctx context.Context, subdomain, action string, ruleID int64) error {
	if p.producer == nil || p.topic == "" {
		return nil
	}

	event := models.RulesChangedEvent{
		EventType: models.EventTypeColoringRulesChanged,
		Subdomain: subdomain,
		RuleID:    ruleID,
		Action:    action,
		Timestamp: p.now().UTC(),
		ChangedBy: changedBy(ctx),
	}

	envelope, err := models.NewMessageEnvelopeBuilder().
		WithSource(p.source).
		WithPayload(event).
		WithSubdomain(subdomain).
		WithRequestID(logging.GetRequestID(ctx)).
		WithTraceID(logging.GetTraceID(ctx)).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build rules event: %w", err)
	}

	return p.producer.Publish(ctx, p.topic, *envelope)
}
