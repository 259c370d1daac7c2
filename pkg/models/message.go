package models

import (
	"encoding/json"
	"time"
)

// MessageEnvelope wraps every message on the broker: RPC requests, RPC
// replies and rule events.
type MessageEnvelope struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  Metadata        `json:"metadata"`
}

type Metadata struct {
	TraceID       string `json:"trace_id,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	Subdomain     string `json:"subdomain,omitempty"`
	ReplyTo       string `json:"reply_to,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	// Attempt counts redeliveries of an RPC request, starting at 1.
	Attempt int `json:"attempt,omitempty"`
}

// IsRequest reports whether the sender waits for a reply.
func (m Metadata) IsRequest() bool {
	return m.ReplyTo != "" && m.CorrelationID != ""
}
