package amocrm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"leadcolor/internal/conditions"
	"leadcolor/internal/config"
	"leadcolor/internal/constants"
	"leadcolor/internal/logger"
	"leadcolor/pkg/circuitbreaker"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/metrics"
	"leadcolor/pkg/models"
	"leadcolor/pkg/retry"
)

const (
	endpointLeads        = "leads"
	endpointCustomFields = "custom_fields"

	maxCustomFieldPages = 50
)

type Config struct {
	BaseDomain string
	Scheme     string
	// BaseURL, when set, replaces https://{subdomain}.{BaseDomain} for every
	// subdomain.
	BaseURL            string
	Timeout            time.Duration
	MaxLeadsPerRequest int
	RPS                float64
	Burst              int
	Retry              retry.Policy
	Breaker            circuitbreaker.Config
}

// ConfigFrom maps the service configuration onto the client settings.
func ConfigFrom(cfg config.AmoCRMConfig, cb config.CircuitBreakerConfig) Config {
	return Config{
		BaseDomain:         cfg.BaseDomain,
		Scheme:             cfg.Scheme,
		Timeout:            cfg.Timeout,
		MaxLeadsPerRequest: cfg.MaxLeadsPerRequest,
		RPS:                cfg.RateLimit.RPS,
		Burst:              cfg.RateLimit.Burst,
		Retry: retry.Policy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			Multiplier:      cfg.Retry.Multiplier,
			MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
		},
		Breaker: circuitbreaker.FromConfig("amocrm", cb),
	}
}

// DefaultRetryPolicy retries 429 and 5xx answers five times, doubling the
// delay from one second up to a minute.
func DefaultRetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2,
	}
}

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.http = c
	}
}

func NewClient(cfg Config, log logger.Logger, opts ...Option) *Client {
	if cfg.BaseDomain == "" {
		cfg.BaseDomain = constants.DefaultCRMBaseDomain
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHTTPTimeout
	}
	if cfg.MaxLeadsPerRequest <= 0 || cfg.MaxLeadsPerRequest > constants.MaxLeadsPerRequest {
		cfg.MaxLeadsPerRequest = constants.MaxLeadsPerRequest
	}
	if cfg.RPS <= 0 {
		cfg.RPS = constants.DefaultCRMRateRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = constants.DefaultCRMRateBurst
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = circuitbreaker.DefaultConfig("amocrm")
	}

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker:  circuitbreaker.NewWrapper(cfg.Breaker),
		logger:   log,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type CustomField struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
	Type string `json:"type"`
}

// GetLeads fetches the given leads in chunks of at most MaxLeadsPerRequest.
// Ids the CRM does not return are simply absent from the result.
func (c *Client) GetLeads(ctx context.Context, subdomain, token string, ids []int64) (map[int64]conditions.Lead, error) {
	unique := uniqueIDs(ids)
	leads := make(map[int64]conditions.Lead, len(unique))

	for start := 0; start < len(unique); start += c.cfg.MaxLeadsPerRequest {
		end := min(start+c.cfg.MaxLeadsPerRequest, len(unique))
		chunk := unique[start:end]

		query := url.Values{}
		for i, id := range chunk {
			query.Set(fmt.Sprintf("filter[id][%d]", i), strconv.FormatInt(id, 10))
		}
		query.Set("limit", strconv.Itoa(len(chunk)))

		var page struct {
			Embedded struct {
				Leads []conditions.Lead `json:"leads"`
			} `json:"_embedded"`
		}
		found, err := c.get(ctx, subdomain, token, endpointLeads, "/api/v4/leads", query, &page)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}

		for _, lead := range page.Embedded.Leads {
			id, ok := leadID(lead["id"])
			if !ok {
				c.logger.WarnwCtx(ctx, "CRM returned lead without id", "subdomain", subdomain)
				continue
			}
			leads[id] = lead
		}
	}

	c.logger.DebugwCtx(ctx, "Fetched leads from CRM",
		"subdomain", subdomain,
		"requested", len(unique),
		"found", len(leads),
	)
	return leads, nil
}

// GetLeadCustomFields lists the custom fields defined for leads, following
// pagination links.
func (c *Client) GetLeadCustomFields(ctx context.Context, subdomain, token string) ([]CustomField, error) {
	fields := make([]CustomField, 0)

	for page := 1; page <= maxCustomFieldPages; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(constants.MaxLeadsPerRequest))

		var body struct {
			Embedded struct {
				CustomFields []CustomField `json:"custom_fields"`
			} `json:"_embedded"`
			Links struct {
				Next *struct {
					Href string `json:"href"`
				} `json:"next"`
			} `json:"_links"`
		}
		found, err := c.get(ctx, subdomain, token, endpointCustomFields, "/api/v4/leads/custom_fields", query, &body)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}

		fields = append(fields, body.Embedded.CustomFields...)
		if body.Links.Next == nil || len(body.Embedded.CustomFields) == 0 {
			break
		}
	}
	return fields, nil
}

// get performs a rate limited, retried GET. It reports false when the CRM
// answers 204 No Content.
func (c *Client) get(ctx context.Context, subdomain, token, endpoint, path string, query url.Values, out any) (bool, error) {
	base, err := c.baseURL(subdomain)
	if err != nil {
		return false, err
	}
	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body []byte
	err = retry.RetryWithCallback(ctx, c.cfg.Retry, func() error {
		var err error
		body, err = c.do(ctx, subdomain, token, endpoint, target)
		return err
	}, func(attempt int, err error, next time.Duration) {
		metrics.IncRetryAttempt("amocrm", endpoint)
		c.logger.WarnwCtx(ctx, "Retrying CRM request",
			"subdomain", subdomain,
			"endpoint", endpoint,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
	if err != nil {
		return false, err
	}
	if body == nil {
		return false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return false, pkgerrors.ErrUpstream.WithMessage("malformed CRM response").WithCause(err).AsFatal()
	}
	return true, nil
}

type response struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, subdomain, token, endpoint, target string) ([]byte, error) {
	waitStart := time.Now()
	if err := c.limiter(subdomain).Wait(ctx); err != nil {
		return nil, retry.Fatal(err)
	}
	metrics.ObserveCRMRateLimitWait(time.Since(waitStart))

	start := time.Now()
	resp, err := circuitbreaker.Execute(ctx, c.breaker, func() (response, error) {
		return c.send(ctx, token, target)
	})
	elapsed := time.Since(start)

	if errors.Is(err, circuitbreaker.ErrOpen) {
		metrics.ObserveCRMRequest(endpoint, "circuit_open", elapsed)
		return nil, pkgerrors.ErrServiceUnavailable.WithMessage("CRM circuit breaker is open").WithCause(err).AsFatal()
	}
	if err != nil && resp.status == 0 {
		// transport failure
		metrics.ObserveCRMRequest(endpoint, "network_error", elapsed)
		if ctx.Err() != nil {
			return nil, retry.Fatal(err)
		}
		return nil, pkgerrors.ErrServiceUnavailable.WithMessage("CRM request failed").WithCause(err)
	}

	metrics.ObserveCRMRequest(endpoint, strconv.Itoa(resp.status), elapsed)
	return classify(resp)
}

// send returns an error only for outcomes that should count against the
// breaker: transport failures and 5xx answers.
func (c *Client) send(ctx context.Context, token, target string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}

	r := response{status: resp.StatusCode, body: body}
	if resp.StatusCode >= http.StatusInternalServerError {
		return r, fmt.Errorf("CRM answered %d", resp.StatusCode)
	}
	return r, nil
}

func classify(resp response) ([]byte, error) {
	switch {
	case resp.status == http.StatusNoContent:
		return nil, nil
	case resp.status >= 200 && resp.status < 300:
		return resp.body, nil
	case resp.status == http.StatusUnauthorized:
		return nil, pkgerrors.ErrUnauthorized.WithMessage("CRM rejected the access token").AsFatal()
	case resp.status == http.StatusTooManyRequests:
		return nil, pkgerrors.ErrRateLimited.WithDetail("status", resp.status)
	case resp.status >= 500:
		return nil, pkgerrors.ErrServiceUnavailable.WithMessage("CRM unavailable").WithDetail("status", resp.status)
	default:
		return nil, pkgerrors.ErrServiceUnavailable.WithMessage("CRM request rejected").
			WithDetail("status", resp.status).
			AsFatal()
	}
}

func (c *Client) limiter(subdomain string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[subdomain]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.cfg.RPS), c.cfg.Burst)
		c.limiters[subdomain] = l
	}
	return l
}

// baseURL refuses anything but a single DNS label so the bearer token never
// leaves the CRM domain.
func (c *Client) baseURL(subdomain string) (string, error) {
	label, err := models.NormalizeSubdomain(subdomain)
	if err != nil {
		return "", err
	}
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL, nil
	}
	return fmt.Sprintf("%s://%s.%s", c.cfg.Scheme, label, c.cfg.BaseDomain), nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func leadID(raw any) (int64, bool) {
	switch v := raw.(type) {
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	case float64:
		return int64(v), v == float64(int64(v))
	default:
		return 0, false
	}
}
