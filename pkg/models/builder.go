package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageEnvelopeBuilder struct {
	envelope *MessageEnvelope
	err      error
}

func NewMessageEnvelopeBuilder() *MessageEnvelopeBuilder {
	return &MessageEnvelopeBuilder{
		envelope: &MessageEnvelope{},
	}
}

func (b *MessageEnvelopeBuilder) WithSource(source string) *MessageEnvelopeBuilder {
	b.envelope.Source = source
	return b
}

// WithPayload JSON-encodes v as the payload. Encoding errors surface from Build.
func (b *MessageEnvelopeBuilder) WithPayload(v interface{}) *MessageEnvelopeBuilder {
	if raw, ok := v.(json.RawMessage); ok {
		b.envelope.Payload = raw
		return b
	}
	data, err := json.Marshal(v)
	if err != nil {
		b.err = fmt.Errorf("failed to encode payload: %w", err)
		return b
	}
	b.envelope.Payload = data
	return b
}

func (b *MessageEnvelopeBuilder) WithMetadata(metadata Metadata) *MessageEnvelopeBuilder {
	b.envelope.Metadata = metadata
	return b
}

func (b *MessageEnvelopeBuilder) WithTraceID(traceID string) *MessageEnvelopeBuilder {
	b.envelope.Metadata.TraceID = traceID
	return b
}

func (b *MessageEnvelopeBuilder) WithRequestID(requestID string) *MessageEnvelopeBuilder {
	b.envelope.Metadata.RequestID = requestID
	return b
}

func (b *MessageEnvelopeBuilder) WithSubdomain(subdomain string) *MessageEnvelopeBuilder {
	b.envelope.Metadata.Subdomain = subdomain
	return b
}

// ExpectReply marks the envelope as an RPC request answered on replyTo.
func (b *MessageEnvelopeBuilder) ExpectReply(replyTo, correlationID string) *MessageEnvelopeBuilder {
	b.envelope.Metadata.ReplyTo = replyTo
	b.envelope.Metadata.CorrelationID = correlationID
	return b
}

func (b *MessageEnvelopeBuilder) Build() (*MessageEnvelope, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.envelope.ID = uuid.NewString()
	b.envelope.Timestamp = time.Now().UTC()
	if b.envelope.Payload == nil {
		b.envelope.Payload = json.RawMessage("{}")
	}
	return b.envelope, nil
}
