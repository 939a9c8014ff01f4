package pricing

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/saha-club/bookingservice/internal/booking/domain"
	"github.com/saha-club/bookingservice/internal/log"
)

// Engine evaluates pricing rules against a context snapshot and produces
// a full price quote. Rule evaluation never fails a quote: a rule that
// cannot be evaluated or would break a limit is skipped.
type Engine struct {
	rules Repository
	usage *UsageTracker
	now   func() time.Time
}

// Repository is the rule source the engine reads from. Kept read-only
// here; rule administration goes through the store directly.
type Repository interface {
	List() []Rule
}

func NewEngine(rules Repository) *Engine {
	return &Engine{
		rules: rules,
		usage: NewUsageTracker(),
		now:   time.Now,
	}
}

// WithClock overrides the engine's wall clock, used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Usage exposes per-rule application statistics.
func (e *Engine) Usage(ruleID string) RuleStats {
	return e.usage.Stats(ruleID)
}

// Quote computes the price for the given context. The hourly rate starts
// from the tier base price, folds matched rules in priority order, and
// the total adds the per-player surcharge scaled by duration.
func (e *Engine) Quote(ctx context.Context, pctx Context) domain.PriceQuote {
	base := BasePrice(pctx.ResourceType, pctx.Tier)
	rate := base

	// Usage limits count applications at quote time; pctx.Time is the
	// booking slot and only drives conditions and rule expiry.
	now := e.now()

	candidates := e.sortedActive(pctx)
	var applied []domain.AppliedRule

	for _, rule := range candidates {
		if !rule.AllowCombination && len(applied) > 0 {
			continue
		}
		if !Matches(rule.Conditions, pctx) {
			continue
		}
		userID := ""
		if pctx.User != nil {
			userID = pctx.User.ID
		}
		if !e.usage.Allowed(rule, userID, now) {
			log.Debug(ctx, "pricing rule skipped by limits", zap.String("rule_id", rule.ID))
			continue
		}

		next, err := applyAction(rule.Action, rate, base, pctx)
		if err != nil {
			log.Warn(ctx, "pricing rule action failed, rule skipped",
				zap.String("rule_id", rule.ID), zap.Error(err))
			continue
		}

		adjustment := next - rate
		rate = next
		applied = append(applied, domain.AppliedRule{
			RuleID:     rule.ID,
			Name:       rule.Name,
			Adjustment: adjustment,
		})
		e.usage.Record(rule.ID, userID, adjustment, now)

		// An exclusive rule claims the quote for itself once applied.
		if !rule.AllowCombination {
			break
		}
	}

	if rate < 0 {
		rate = 0
	}

	surcharge := PlayerSurcharge(pctx.PlayerCount)
	total := rate*float64(pctx.DurationMinutes)/60 + surcharge

	return domain.PriceQuote{
		BasePrice:           base,
		Tier:                pctx.Tier,
		HourlyRate:          rate,
		DurationMinutes:     pctx.DurationMinutes,
		PlayerCount:         pctx.PlayerCount,
		AdditionalPlayerFee: surcharge,
		Total:               total,
		AppliedRules:        applied,
		Weather:             pctx.Weather,
		OccupancyPercent:    pctx.OccupancyPercent,
		Currency:            "USD",
	}
}

// sortedActive returns the active, unexpired rules ordered by priority
// descending, rule ID ascending on ties so evaluation is deterministic.
func (e *Engine) sortedActive(pctx Context) []Rule {
	all := e.rules.List()
	out := make([]Rule, 0, len(all))
	for _, r := range all {
		if r.Active && !r.Expired(pctx.Time) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// applyAction transforms the current rate by the rule's action, clamps it
// to the action's price bounds, and rounds it to the configured step.
func applyAction(a Action, current, base float64, pctx Context) (float64, error) {
	var next float64
	switch a.Type {
	case ActionPercentage:
		next = current * (1 + a.Value/100)
	case ActionFixedDelta:
		next = current + a.Value
	case ActionFixedPrice:
		next = a.Value
	case ActionFormula:
		v, err := EvalFormula(a.Formula, FormulaVars{
			BasePrice:        base,
			OccupancyPercent: float64(pctx.OccupancyPercent),
		})
		if err != nil {
			return 0, err
		}
		next = v
	default:
		next = current
	}

	if a.MinPrice != nil && next < *a.MinPrice {
		next = *a.MinPrice
	}
	if a.MaxPrice != nil && next > *a.MaxPrice {
		next = *a.MaxPrice
	}
	return roundToStep(next, a.Rounding, a.RoundingStep), nil
}

func roundToStep(v float64, mode Rounding, step float64) float64 {
	if step <= 0 || mode == "" || mode == RoundNone {
		return v
	}
	switch mode {
	case RoundUp:
		return math.Ceil(v/step) * step
	case RoundDown:
		return math.Floor(v/step) * step
	case RoundNearest:
		return math.Round(v/step) * step
	default:
		return v
	}
}
