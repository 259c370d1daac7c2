package coloring

import (
	"context"
	"sync"
	"time"

	"leadcolor/internal/conditions"
)

var testNow = time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC)

func statusRule(id int64, priority int, status string, color string) Rule {
	return Rule{
		ID:       id,
		Name:     "status " + status,
		IsActive: true,
		Priority: priority,
		Conditions: conditions.Tree{
			Type: conditions.And,
			Rules: []conditions.Leaf{
				{Field: "status_id", Operator: conditions.OpEquals, Value: conditions.String(status)},
			},
		},
		Style: Style{TextColor: "#000000", BackgroundColor: color},
	}
}

type fakeRepo struct {
	mu       sync.Mutex
	rules    map[string][]Rule
	timezone string
	err      error
	calls    int
	// block, when set, holds ListActive until it is closed.
	block chan struct{}
}

func (r *fakeRepo) ListActive(_ context.Context, subdomain string) ([]Rule, error) {
	r.mu.Lock()
	r.calls++
	block := r.block
	r.mu.Unlock()

	if block != nil {
		<-block
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]Rule(nil), r.rules[subdomain]...), nil
}

func (r *fakeRepo) Timezone(context.Context, string) (string, error) {
	return r.timezone, nil
}

func (r *fakeRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeTokens struct {
	tokens      []string
	err         error
	calls       int
	invalidated int
}

func (f *fakeTokens) AccessToken(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	token := f.tokens[0]
	if f.calls < len(f.tokens) {
		token = f.tokens[f.calls]
	}
	f.calls++
	return token, nil
}

func (f *fakeTokens) Invalidate(context.Context, string) error {
	f.invalidated++
	return nil
}

type fakeLeads struct {
	leads map[int64]conditions.Lead
	// errFor maps a token to the error returned when it is used.
	errFor map[string]error
	calls  int
	tokens []string
}

func (f *fakeLeads) GetLeads(_ context.Context, _ string, token string, ids []int64) (map[int64]conditions.Lead, error) {
	f.calls++
	f.tokens = append(f.tokens, token)
	if err := f.errFor[token]; err != nil {
		return nil, err
	}
	out := make(map[int64]conditions.Lead)
	for _, id := range ids {
		if lead, ok := f.leads[id]; ok {
			out[id] = lead
		}
	}
	return out, nil
}

type fakeRecorder struct {
	passes []PassSummary
	err    error
}

func (f *fakeRecorder) RecordPass(_ context.Context, pass PassSummary) error {
	f.passes = append(f.passes, pass)
	return f.err
}
