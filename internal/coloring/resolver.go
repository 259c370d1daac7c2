package coloring

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"leadcolor/internal/conditions"
	"leadcolor/internal/constants"
	"leadcolor/internal/logger"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/metrics"
)

// Resolver picks the first matching rule for each lead.
type Resolver struct {
	evaluator *conditions.Evaluator
	workers   int
	logger    logger.Logger
}

func NewResolver(evaluator *conditions.Evaluator, workers int, log logger.Logger) *Resolver {
	if workers <= 0 {
		workers = constants.DefaultWorkers
	}
	return &Resolver{
		evaluator: evaluator,
		workers:   workers,
		logger:    log,
	}
}

// WithEvaluator returns a resolver sharing the pool size but using e.
func (r *Resolver) WithEvaluator(e *conditions.Evaluator) *Resolver {
	c := *r
	c.evaluator = e
	return &c
}

func (r *Resolver) EvaluateRule(tree conditions.Tree, lead conditions.Lead) bool {
	return r.evaluator.Evaluate(tree, lead)
}

// ResolveLeadStyles returns a style for every lead in ids that was found in
// leads and matched a rule, keyed by the decimal lead id. Rules are re-sorted
// by priority before use. On cancellation the styles resolved so far are
// returned along with ctx.Err().
func (r *Resolver) ResolveLeadStyles(ctx context.Context, rules []Rule, leads map[int64]conditions.Lead, ids []int64) (map[string]LeadStyle, error) {
	ordered := r.usableRules(ctx, SortRules(rules))
	styles := make(map[string]LeadStyle)
	if len(ordered) == 0 || len(ids) == 0 {
		return styles, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	seen := make(map[int64]struct{}, len(ids))
	evaluated := 0
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		lead, ok := leads[id]
		if !ok || lead == nil {
			r.logger.DebugwCtx(ctx, "Lead not found upstream, skipping", "lead_id", id)
			continue
		}
		if gctx.Err() != nil {
			break
		}
		evaluated++

		g.Go(func() error {
			style, matched, err := r.resolveLead(gctx, ordered, id, lead)
			if err != nil {
				return err
			}
			if matched {
				mu.Lock()
				styles[strconv.FormatInt(id, 10)] = style
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	metrics.AddLeadsEvaluated(evaluated, len(styles))
	return styles, err
}

func (r *Resolver) resolveLead(ctx context.Context, rules []Rule, id int64, lead conditions.Lead) (LeadStyle, bool, error) {
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return LeadStyle{}, false, err
		}

		matched, err := r.evaluateSafely(rule, lead)
		if err != nil {
			metrics.IncRuleEvaluationError("panic")
			r.logger.ErrorwCtx(ctx, "Rule evaluation failed, skipping rule",
				"rule_id", rule.ID,
				"lead_id", id,
				"error", err,
			)
			continue
		}
		if matched {
			r.logger.DebugwCtx(ctx, "Lead matched rule", "lead_id", id, "rule_id", rule.ID)
			return rule.styleFor(), true, nil
		}
	}
	return LeadStyle{}, false, nil
}

func (r *Resolver) evaluateSafely(rule Rule, lead conditions.Lead) (matched bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("rule %d: %w", rule.ID, pkgerrors.RecoverPanic(rec))
		}
	}()
	return r.evaluator.Evaluate(rule.Conditions, lead), nil
}

// usableRules drops rules whose tree cannot be evaluated at all.
func (r *Resolver) usableRules(ctx context.Context, rules []Rule) []Rule {
	usable := rules[:0]
	for _, rule := range rules {
		if !rule.Conditions.Type.Valid() {
			metrics.IncRuleEvaluationError("malformed_tree")
			r.logger.WarnwCtx(ctx, "Rule has malformed condition tree, skipping",
				"rule_id", rule.ID,
				"rule_name", rule.Name,
				"type", string(rule.Conditions.Type),
			)
			continue
		}
		usable = append(usable, rule)
	}
	return usable
}
