package amocrm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcolor/internal/logger"
	"leadcolor/pkg/circuitbreaker"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	breaker := circuitbreaker.DefaultConfig("amocrm-" + t.Name())
	breaker.MinRequests = 100

	return NewClient(Config{
		BaseURL:            srv.URL,
		MaxLeadsPerRequest: 2,
		RPS:                1000,
		Burst:              1000,
		Retry:              retry.ConstantPolicy(3, time.Millisecond),
		Breaker:            breaker,
	}, logger.NopLogger(), WithHTTPClient(srv.Client()))
}

func leadsHandler(t *testing.T, requests *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/api/v4/leads", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		leads := make([]map[string]any, 0)
		for i := 0; ; i++ {
			raw := r.URL.Query().Get(fmt.Sprintf("filter[id][%d]", i))
			if raw == "" {
				break
			}
			id, _ := strconv.ParseInt(raw, 10, 64)
			if id == 404 {
				continue
			}
			leads = append(leads, map[string]any{"id": id, "status_id": 142, "price": 1500})
		}
		w.Header().Set("Content-Type", "application/hal+json")
		_ = json.NewEncoder(w).Encode(map[string]any{"_embedded": map[string]any{"leads": leads}})
	}
}

func TestGetLeads_ChunksAndDecodes(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, leadsHandler(t, &requests))

	leads, err := client.GetLeads(context.Background(), "acme", "secret", []int64{1, 2, 3, 404, 1})

	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
	assert.Len(t, leads, 3)
	assert.Equal(t, json.Number("142"), leads[2]["status_id"])
	assert.NotContains(t, leads, int64(404))
}

func TestGetLeads_NoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	leads, err := client.GetLeads(context.Background(), "acme", "secret", []int64{1})

	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestGetLeads_RetriesTransientStatuses(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"_embedded":{"leads":[{"id":7}]}}`))
		}
	})

	leads, err := client.GetLeads(context.Background(), "acme", "secret", []int64{7})

	require.NoError(t, err)
	assert.Contains(t, leads, int64(7))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetLeads_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      *pkgerrors.Error
		wantCalls int32
	}{
		{"unauthorized is fatal", http.StatusUnauthorized, pkgerrors.ErrUnauthorized, 1},
		{"bad request is fatal", http.StatusBadRequest, pkgerrors.ErrServiceUnavailable, 1},
		{"rate limit exhausts retries", http.StatusTooManyRequests, pkgerrors.ErrRateLimited, 3},
		{"server error exhausts retries", http.StatusInternalServerError, pkgerrors.ErrServiceUnavailable, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			})

			_, err := client.GetLeads(context.Background(), "acme", "secret", []int64{1})

			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, tt.code), "got %v", err)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestGetLeads_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"_embedded":`))
	})

	_, err := client.GetLeads(context.Background(), "acme", "secret", []int64{1})

	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrUpstream))
}

func TestGetLeadCustomFields_FollowsPages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/leads/custom_fields", r.URL.Path)
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`{"_embedded":{"custom_fields":[{"id":1,"name":"Budget","code":"BUDGET","type":"numeric"}]},"_links":{"next":{"href":"page2"}}}`))
		case "2":
			_, _ = w.Write([]byte(`{"_embedded":{"custom_fields":[{"id":2,"name":"Source","type":"select"}]},"_links":{}}`))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	})

	fields, err := client.GetLeadCustomFields(context.Background(), "acme", "secret")

	require.NoError(t, err)
	assert.Equal(t, []CustomField{
		{ID: 1, Name: "Budget", Code: "BUDGET", Type: "numeric"},
		{ID: 2, Name: "Source", Type: "select"},
	}, fields)
}

func TestBaseURL(t *testing.T) {
	client := NewClient(Config{}, logger.NopLogger())

	base, err := client.baseURL("acme")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.amocrm.ru", base)

	for _, sd := range []string{"evil.example?", "evil.example#", "user@evil.example/x", "acme.evil"} {
		_, err := client.baseURL(sd)
		assert.True(t, pkgerrors.IsValidation(err), "subdomain %q", sd)
	}
}

func TestGetLeads_RejectsForeignHost(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, leadsHandler(t, &requests))

	_, err := client.GetLeads(context.Background(), "evil.example?", "secret", []int64{1})
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Zero(t, requests.Load(), "token never sent")
}

func TestLimiterPerSubdomain(t *testing.T) {
	client := NewClient(Config{}, logger.NopLogger())

	assert.Same(t, client.limiter("acme"), client.limiter("acme"))
	assert.NotSame(t, client.limiter("acme"), client.limiter("beta"))
}

func TestDefaultRetryPolicy(t *testing.T) {
	client := NewClient(Config{}, logger.NopLogger())

	assert.Equal(t, 5, client.cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, retry.Delay(client.cfg.Retry, 0))
	assert.Equal(t, 2*time.Second, retry.Delay(client.cfg.Retry, 1))
	assert.Equal(t, time.Minute, retry.Delay(client.cfg.Retry, 10))
}
