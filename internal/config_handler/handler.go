package config_handler

import (
	"context"
	"strings"

	"leadcolor/internal/logger"
	"leadcolor/pkg/models"
)

// RuleInvalidator drops whatever is cached for a subdomain's rules.
type RuleInvalidator interface {
	Invalidate(ctx context.Context, subdomain string)
	InvalidateAll(ctx context.Context)
}

type Handler struct {
	expectedEventType string
	invalidator       RuleInvalidator
	logger            logger.Logger
}

func NewHandler(expectedEventType string, log logger.Logger) *Handler {
	return &Handler{
		expectedEventType: expectedEventType,
		logger:            log,
	}
}

func NewHandlerWithInvalidator(expectedEventType string, invalidator RuleInvalidator, log logger.Logger) *Handler {
	return NewHandler(expectedEventType, log).WithInvalidator(invalidator)
}

func (h *Handler) WithInvalidator(invalidator RuleInvalidator) *Handler {
	h.invalidator = invalidator
	return h
}

// HandleRulesChangedEvent invalidates cached rules named by the event. A
// reload event without a subdomain clears every subdomain. Malformed events
// are logged and dropped so they are not redelivered.
func (h *Handler) HandleRulesChangedEvent(ctx context.Context, envelope models.MessageEnvelope) error {
	var event models.RulesChangedEvent
	if err := envelope.DecodePayload(&event); err != nil {
		h.logger.WarnwCtx(ctx, "Dropping undecodable rules event", "id", envelope.ID, "error", err)
		return nil
	}

	if event.EventType != h.expectedEventType {
		return nil
	}

	subdomain := strings.TrimSpace(event.Subdomain)
	if subdomain == "" {
		subdomain = envelope.Metadata.Subdomain
	}

	h.logger.InfowCtx(ctx, "Received rules changed event",
		"event_type", event.EventType,
		"action", event.Action,
		"rule_id", event.RuleID,
		"subdomain", subdomain,
	)

	if h.invalidator == nil {
		return nil
	}

	switch {
	case subdomain != "":
		h.invalidator.Invalidate(ctx, subdomain)
	case event.Action == models.ActionReload:
		h.invalidator.InvalidateAll(ctx)
	default:
		h.logger.WarnwCtx(ctx, "Rules event has no subdomain", "id", envelope.ID, "action", event.Action)
	}
	return nil
}
