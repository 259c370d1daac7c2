package management

import (
	"context"
	"sort"
	"sync"
	"time"

	"leadcolor/internal/coloring"
	"leadcolor/internal/conditions"
	pkgerrors "leadcolor/pkg/errors"
)

func statusTree(status string) *conditions.Tree {
	return &conditions.Tree{
		Type: conditions.And,
		Rules: []conditions.Leaf{
			{Field: "status_id", Operator: conditions.OpEquals, Value: conditions.String(status)},
		},
	}
}

func validCreate(name string) CreateRuleRequest {
	return CreateRuleRequest{
		Name:       name,
		Priority:   5,
		Conditions: statusTree("142"),
		Style:      coloring.Style{TextColor: "#000000", BackgroundColor: "#ff0000"},
	}
}

func ptr[T any](v T) *T { return &v }

// memoryRepo keeps rules in memory and enforces unique names per subdomain.
type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	rules  map[int64]coloring.Rule
	err    error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rules: make(map[int64]coloring.Rule)}
}

func (r *memoryRepo) Create(_ context.Context, rule *coloring.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.rules {
		if existing.Subdomain == rule.Subdomain && existing.Name == rule.Name {
			return conflict(rule.Name, nil)
		}
	}
	r.nextID++
	rule.ID = r.nextID
	rule.CreatedAt = time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC)
	rule.UpdatedAt = rule.CreatedAt
	r.rules[rule.ID] = *rule
	return nil
}

func (r *memoryRepo) Get(_ context.Context, subdomain string, id int64) (*coloring.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	rule, ok := r.rules[id]
	if !ok || rule.Subdomain != subdomain {
		return nil, notFound(id)
	}
	return &rule, nil
}

func (r *memoryRepo) List(_ context.Context, subdomain string) ([]coloring.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []coloring.Rule
	for _, rule := range r.rules {
		if rule.Subdomain == subdomain {
			out = append(out, rule)
		}
	}
	return coloring.SortRules(out), nil
}

func (r *memoryRepo) Update(_ context.Context, rule *coloring.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	existing, ok := r.rules[rule.ID]
	if !ok || existing.Subdomain != rule.Subdomain {
		return notFound(rule.ID)
	}
	rule.UpdatedAt = existing.UpdatedAt.Add(time.Minute)
	r.rules[rule.ID] = *rule
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, subdomain string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok || rule.Subdomain != subdomain {
		return notFound(id)
	}
	delete(r.rules, id)
	return nil
}

func (r *memoryRepo) UpdatePriorities(_ context.Context, subdomain string, updates []coloring.PriorityUpdate) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	n := 0
	for _, u := range updates {
		rule, ok := r.rules[u.ID]
		if !ok || rule.Subdomain != subdomain {
			continue
		}
		rule.Priority = u.Priority
		r.rules[u.ID] = rule
		n++
	}
	return n, nil
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (a *memoryAudit) Record(_ context.Context, entry AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	entry.ID = int64(len(a.entries) + 1)
	a.entries = append(a.entries, entry)
	return nil
}

func (a *memoryAudit) List(_ context.Context, subdomain string, ruleID int64, limit int) ([]AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []AuditEntry
	for _, e := range a.entries {
		if e.Subdomain == subdomain && (ruleID == 0 || e.RuleID == ruleID) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type publishedEvent struct {
	Subdomain string
	Action    string
	RuleID    int64
}

type recordingEvents struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (e *recordingEvents) PublishRulesChanged(_ context.Context, subdomain, action string, ruleID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, publishedEvent{Subdomain: subdomain, Action: action, RuleID: ruleID})
	return e.err
}

type stubColorer struct {
	styles   map[string]coloring.LeadStyle
	result   coloring.TestRuleResult
	err      error
	gotIDs   []int64
	gotTests []coloring.TestRuleRequest
}

func (s *stubColorer) LeadsStyles(_ context.Context, _ string, ids []int64) (map[string]coloring.LeadStyle, error) {
	s.gotIDs = ids
	return s.styles, s.err
}

func (s *stubColorer) TestRule(_ context.Context, _ string, req coloring.TestRuleRequest) (coloring.TestRuleResult, error) {
	s.gotTests = append(s.gotTests, req)
	if s.err != nil {
		return coloring.TestRuleResult{}, s.err
	}
	return s.result, nil
}

var errStoreDown = pkgerrors.ErrServiceUnavailable.WithMessage("store down")
