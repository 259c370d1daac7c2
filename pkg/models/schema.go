package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateMessageEnvelope(msg *MessageEnvelope) error {
	if msg == nil {
		return &ValidationError{Field: "envelope", Message: "message envelope cannot be nil"}
	}
	if msg.ID == "" {
		return &ValidationError{Field: "id", Message: "message ID is required"}
	}
	if len(bytes.TrimSpace(msg.Payload)) == 0 {
		return &ValidationError{Field: "payload", Message: "message payload cannot be empty"}
	}
	if msg.Metadata.ReplyTo != "" && msg.Metadata.CorrelationID == "" {
		return &ValidationError{Field: "metadata", Message: "reply_to requires correlation_id"}
	}
	return nil
}

// DecodePayload unmarshals the payload into v, rejecting unknown fields.
func (msg *MessageEnvelope) DecodePayload(v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(msg.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &ValidationError{Field: "payload", Message: err.Error()}
	}
	return nil
}
