package models

import "time"

// RulesChangedEvent is published after a rule mutation so workers drop the
// cached rules of that subdomain.
type RulesChangedEvent struct {
	EventType string    `json:"event_type"`
	Subdomain string    `json:"subdomain"`
	RuleID    int64     `json:"rule_id,omitempty"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

const EventTypeColoringRulesChanged = "coloring_rules_changed"

const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionPriorities = "priorities"
	ActionReload     = "reload"
)
