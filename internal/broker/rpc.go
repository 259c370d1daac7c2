package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadcolor/internal/logger"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/metrics"
	"leadcolor/pkg/models"
	"leadcolor/pkg/retry"
)

// Reply is the common head of every RPC reply; handler results are merged
// into the same JSON object.
type Reply struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// RPCHandler serves one request queue. The result must encode to a JSON
// object, or is placed under "data" otherwise.
type RPCHandler func(ctx context.Context, msg models.MessageEnvelope) (interface{}, error)

type RPCServer struct {
	producer Producer
	source   string
	policy   retry.Policy
	logger   logger.Logger
}

func NewRPCServer(producer Producer, source string, policy retry.Policy, log logger.Logger) *RPCServer {
	return &RPCServer{
		producer: producer,
		source:   source,
		policy:   policy,
		logger:   log,
	}
}

// Handle adapts h to a consumer handler. Transient failures are retried with
// the server policy; the caller always gets exactly one reply.
func (s *RPCServer) Handle(queue string, h RPCHandler) HandlerFunc {
	return func(ctx context.Context, msg models.MessageEnvelope) error {
		start := time.Now()

		var result interface{}
		err := models.ValidateMessageEnvelope(&msg)
		if err != nil {
			err = pkgerrors.ErrValidation.WithCause(err)
		} else {
			err = retry.RetryWithCallback(ctx, s.policy, func() error {
				var callErr error
				result, callErr = h(ctx, msg)
				return callErr
			}, func(attempt int, err error, next time.Duration) {
				metrics.IncRetryAttempt(s.source, queue)
				s.logger.WarnwCtx(ctx, "Retrying RPC handler",
					"queue", queue,
					"attempt", attempt,
					"next_delay", next,
					"error", err,
				)
			})
		}

		status := "ok"
		if err != nil {
			status = "error"
			s.logger.ErrorwCtx(ctx, "RPC handler failed",
				"queue", queue,
				"message_id", msg.ID,
				"error", err,
			)
		}
		metrics.ObserveRPCRequest(queue, status, time.Since(start))

		if !msg.Metadata.IsRequest() {
			return nil
		}

		body, encErr := encodeReply(result, err)
		if encErr != nil {
			s.logger.ErrorwCtx(ctx, "Failed to encode RPC reply", "queue", queue, "error", encErr)
			body, _ = encodeReply(nil, pkgerrors.ErrInternal.WithCause(encErr))
		}

		reply, buildErr := models.NewMessageEnvelopeBuilder().
			WithSource(s.source).
			WithPayload(json.RawMessage(body)).
			WithMetadata(models.Metadata{
				TraceID:       msg.Metadata.TraceID,
				RequestID:     msg.Metadata.RequestID,
				Subdomain:     msg.Metadata.Subdomain,
				CorrelationID: msg.Metadata.CorrelationID,
			}).
			Build()
		if buildErr != nil {
			return retry.Fatal(buildErr)
		}

		if pubErr := s.producer.Publish(ctx, msg.Metadata.ReplyTo, *reply); pubErr != nil {
			// Not retried: the handler may have mutated state already.
			s.logger.ErrorwCtx(ctx, "Failed to publish RPC reply",
				"queue", queue,
				"reply_to", msg.Metadata.ReplyTo,
				"error", pubErr,
			)
		}
		return nil
	}
}

func encodeReply(result interface{}, err error) ([]byte, error) {
	if err != nil {
		code := pkgerrors.ErrInternal.Code
		var appErr *pkgerrors.Error
		if errors.As(err, &appErr) {
			code = appErr.Code
		}
		return json.Marshal(Reply{Success: false, Error: pkgerrors.PublicMessage(err), ErrorCode: code})
	}

	fields := map[string]json.RawMessage{}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
			if err := json.Unmarshal(trimmed, &fields); err != nil {
				return nil, fmt.Errorf("failed to merge result: %w", err)
			}
		} else {
			fields["data"] = data
		}
	}
	fields["success"] = json.RawMessage("true")
	return json.Marshal(fields)
}

// RPCClient sends requests and waits for the reply with the same correlation
// id. Replies arrive through HandleReply, which must consume the reply topic.
type RPCClient struct {
	producer   Producer
	replyTopic string
	source     string
	timeout    time.Duration
	logger     logger.Logger

	mu      sync.Mutex
	pending map[string]chan models.MessageEnvelope
}

func NewRPCClient(producer Producer, replyTopic, source string, timeout time.Duration, log logger.Logger) *RPCClient {
	return &RPCClient{
		producer:   producer,
		replyTopic: replyTopic,
		source:     source,
		timeout:    timeout,
		logger:     log,
		pending:    make(map[string]chan models.MessageEnvelope),
	}
}

// Call publishes payload to queue and decodes the reply into out. A reply
// with success=false becomes an ErrUpstream carrying the remote message.
func (c *RPCClient) Call(ctx context.Context, queue, subdomain string, payload interface{}, out interface{}) error {
	correlationID := uuid.NewString()
	replies := make(chan models.MessageEnvelope, 1)

	c.mu.Lock()
	c.pending[correlationID] = replies
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()
	}()

	env, err := models.NewMessageEnvelopeBuilder().
		WithSource(c.source).
		WithSubdomain(subdomain).
		WithPayload(payload).
		ExpectReply(c.replyTopic, correlationID).
		Build()
	if err != nil {
		return pkgerrors.ErrInternal.WithCause(err)
	}

	start := time.Now()
	if err := c.producer.Publish(ctx, queue, *env); err != nil {
		metrics.ObserveRPCRequest(queue, "publish_error", time.Since(start))
		return pkgerrors.ErrServiceUnavailable.WithMessage("failed to send request").WithCause(err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		metrics.ObserveRPCRequest(queue, "timeout", time.Since(start))
		return pkgerrors.ErrTimeout.WithMessage("no reply from " + queue).WithCause(ctx.Err())
	case reply := <-replies:
		metrics.ObserveRPCRequest(queue, "ok", time.Since(start))
		return decodeReply(reply, out)
	}
}

func decodeReply(reply models.MessageEnvelope, out interface{}) error {
	var head Reply
	if err := json.Unmarshal(reply.Payload, &head); err != nil {
		return pkgerrors.ErrUpstream.WithMessage("malformed reply").WithCause(err)
	}
	if !head.Success {
		msg := head.Error
		if msg == "" {
			msg = "remote call failed"
		}
		upstream := pkgerrors.ErrUpstream.WithMessage(msg).WithDetail("error_code", head.ErrorCode)
		switch head.ErrorCode {
		case pkgerrors.ErrValidation.Code, pkgerrors.ErrNotFound.Code, pkgerrors.ErrUnauthorized.Code:
			return upstream.AsFatal()
		}
		return upstream
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(reply.Payload, out); err != nil {
		return pkgerrors.ErrUpstream.WithMessage("malformed reply").WithCause(err)
	}
	return nil
}

// HandleReply routes a reply to its waiting caller. Replies nobody waits for
// belong to another instance or a timed out call and are ignored.
func (c *RPCClient) HandleReply(ctx context.Context, msg models.MessageEnvelope) error {
	c.mu.Lock()
	replies, ok := c.pending[msg.Metadata.CorrelationID]
	c.mu.Unlock()

	if !ok {
		c.logger.DebugwCtx(ctx, "Ignoring reply without waiting caller",
			"correlation_id", msg.Metadata.CorrelationID,
		)
		return nil
	}

	select {
	case replies <- msg:
	default:
	}
	return nil
}
