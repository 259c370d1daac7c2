package tokens

import (
	"context"
	"time"

	"leadcolor/internal/config"
	"leadcolor/internal/constants"
	"leadcolor/internal/logger"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/metrics"
	"leadcolor/pkg/retry"
)

// Caller sends one broker request and decodes its reply.
type Caller interface {
	Call(ctx context.Context, queue, subdomain string, payload interface{}, out interface{}) error
}

type tokenRequest struct {
	Subdomain string `json:"subdomain"`
	ClientID  string `json:"client_id"`
}

// RPCFetcher asks the token service for the current token over the broker.
type RPCFetcher struct {
	rpc    Caller
	queue  string
	policy retry.Policy
	logger logger.Logger
}

// DefaultFetchPolicy makes three calls, waiting 0.5s then 1s between them.
func DefaultFetchPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

func NewRPCFetcher(rpc Caller, cfg config.TokensConfig, log logger.Logger) *RPCFetcher {
	queue := cfg.RequestQueue
	if queue == "" {
		queue = constants.QueueTokensGetUser
	}
	return &RPCFetcher{
		rpc:    rpc,
		queue:  queue,
		policy: retry.Overlay(DefaultFetchPolicy(), cfg.Retry),
		logger: log,
	}
}

func (f *RPCFetcher) Fetch(ctx context.Context, subdomain, clientID string) (Token, error) {
	var token Token
	req := tokenRequest{Subdomain: subdomain, ClientID: clientID}

	err := retry.RetryWithCallback(ctx, f.policy, func() error {
		token = Token{}
		if err := f.rpc.Call(ctx, f.queue, subdomain, req, &token); err != nil {
			return err
		}
		if token.AccessToken == "" {
			return pkgerrors.ErrUnauthorized.WithMessage("token service returned no access token").
				WithDetail("subdomain", subdomain)
		}
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.IncRetryAttempt("tokens", f.queue)
		f.logger.WarnwCtx(ctx, "Retrying token request",
			"attempt", attempt,
			"next_delay", nextDelay,
			"subdomain", subdomain,
			"error", err,
		)
	})
	if err != nil {
		return Token{}, err
	}
	return token, nil
}
