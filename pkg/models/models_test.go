package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "leadcolor/pkg/errors"
)

func TestBuilder_Build(t *testing.T) {
	env, err := NewMessageEnvelopeBuilder().
		WithSource("coloring-service").
		WithSubdomain("acme").
		WithPayload(map[string]interface{}{"subdomain": "acme"}).
		ExpectReply("replies", "corr-1").
		Build()

	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.False(t, env.Timestamp.IsZero())
	assert.JSONEq(t, `{"subdomain":"acme"}`, string(env.Payload))
	assert.True(t, env.Metadata.IsRequest())
	assert.NoError(t, ValidateMessageEnvelope(env))
}

func TestBuilder_PayloadError(t *testing.T) {
	_, err := NewMessageEnvelopeBuilder().WithPayload(make(chan int)).Build()
	assert.Error(t, err)
}

func TestValidateMessageEnvelope(t *testing.T) {
	tests := []struct {
		name  string
		env   *MessageEnvelope
		field string
	}{
		{"nil", nil, "envelope"},
		{"no id", &MessageEnvelope{Payload: json.RawMessage(`{}`)}, "id"},
		{"no payload", &MessageEnvelope{ID: "1"}, "payload"},
		{"half reply", &MessageEnvelope{ID: "1", Payload: json.RawMessage(`{}`), Metadata: Metadata{ReplyTo: "r"}}, "metadata"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageEnvelope(tt.env)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestDecodePayload_RejectsUnknownFields(t *testing.T) {
	env := &MessageEnvelope{ID: "1", Payload: json.RawMessage(`{"subdomain":"acme","extra":1}`)}

	var dst struct {
		Subdomain string `json:"subdomain"`
	}
	err := env.DecodePayload(&dst)
	assert.Error(t, err)
}

func TestNormalizeSubdomain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		valid bool
	}{
		{"plain", "acme", "acme", true},
		{"trimmed and lowered", "  Acme-Sales ", "acme-sales", true},
		{"digits", "42shop", "42shop", true},
		{"longest label", strings.Repeat("a", 63), strings.Repeat("a", 63), true},
		{"empty", "   ", "", false},
		{"query suffix", "evil.example?", "", false},
		{"fragment suffix", "evil.example#", "", false},
		{"userinfo and path", "user@evil.example/x", "", false},
		{"dotted", "acme.evil", "", false},
		{"port", "acme:8080", "", false},
		{"leading hyphen", "-acme", "", false},
		{"too long", strings.Repeat("a", 64), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSubdomain(tt.input)
			if !tt.valid {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
