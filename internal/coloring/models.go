package coloring

import (
	"sort"
	"time"

	"leadcolor/internal/conditions"
)

// Style is the wire shape stored with a rule.
type Style struct {
	TextColor       string `json:"text_color" validate:"required,max=32"`
	BackgroundColor string `json:"background_color" validate:"required,max=32"`
}

// LeadStyle is a Style annotated with the rule that produced it.
type LeadStyle struct {
	TextColor       string `json:"text_color"`
	BackgroundColor string `json:"background_color"`
	MatchedRuleID   int64  `json:"matched_rule_id"`
	MatchedRuleName string `json:"matched_rule_name"`
}

type Rule struct {
	ID         int64           `json:"id"`
	Subdomain  string          `json:"subdomain"`
	Name       string          `json:"name"`
	IsActive   bool            `json:"is_active"`
	Priority   int             `json:"priority"`
	Conditions conditions.Tree `json:"conditions"`
	Style      Style           `json:"style"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (r Rule) styleFor() LeadStyle {
	return LeadStyle{
		TextColor:       r.Style.TextColor,
		BackgroundColor: r.Style.BackgroundColor,
		MatchedRuleID:   r.ID,
		MatchedRuleName: r.Name,
	}
}

type PriorityUpdate struct {
	ID       int64 `json:"id" validate:"required,gt=0"`
	Priority int   `json:"priority"`
}

// SortRules returns a copy ordered by priority descending, then id ascending.
func SortRules(rules []Rule) []Rule {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
