package pricing

import (
	"sync"
	"time"
)

// RuleStats aggregates how a rule has performed since startup. Exposed to
// operators so they can judge whether a promotion earns its keep.
type RuleStats struct {
	RuleID          string             `json:"rule_id"`
	TimesApplied    int                `json:"times_applied"`
	TotalAdjustment float64            `json:"total_adjustment"`
	AvgAdjustment   float64            `json:"avg_adjustment"`
	LastAppliedAt   time.Time          `json:"last_applied_at"`
	MonthlyApplied  map[string]int     `json:"monthly_applied"` // "2006-01" buckets
	MonthlyAdjusted map[string]float64 `json:"monthly_adjusted"`
}

type userDayKey struct {
	userID string
	day    string
}

type ruleUsage struct {
	total       int
	adjustment  float64
	lastApplied time.Time
	daily       map[string]int     // "2006-01-02"
	monthly     map[string]int     // "2006-01"
	monthlyAdj  map[string]float64 // "2006-01"
	perUserDay  map[userDayKey]int
}

// UsageTracker counts rule applications so application limits can be
// enforced. Counts are process-local; limits are soft guidance for
// promotions, not billing invariants, so losing them on restart is
// acceptable.
type UsageTracker struct {
	mu    sync.Mutex
	rules map[string]*ruleUsage
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{rules: make(map[string]*ruleUsage)}
}

func (t *UsageTracker) usage(ruleID string) *ruleUsage {
	u, ok := t.rules[ruleID]
	if !ok {
		u = &ruleUsage{
			daily:      make(map[string]int),
			monthly:    make(map[string]int),
			monthlyAdj: make(map[string]float64),
			perUserDay: make(map[userDayKey]int),
		}
		t.rules[ruleID] = u
	}
	return u
}

// Allowed reports whether applying the rule would stay inside its
// configured limits. now is the wall clock at evaluation time, not the
// booking slot. Zero-valued limits are unlimited.
func (t *UsageTracker) Allowed(rule Rule, userID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.rules[rule.ID]
	if !ok {
		return true
	}
	lim := rule.Limits
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	if lim.MaxDailyApplications > 0 && u.daily[day] >= lim.MaxDailyApplications {
		return false
	}
	if lim.MaxMonthlyApplications > 0 && u.monthly[month] >= lim.MaxMonthlyApplications {
		return false
	}
	if lim.MaxUserDailyApplications > 0 && userID != "" &&
		u.perUserDay[userDayKey{userID, day}] >= lim.MaxUserDailyApplications {
		return false
	}
	if lim.Cooldown > 0 && !u.lastApplied.IsZero() && now.Sub(u.lastApplied) < lim.Cooldown {
		return false
	}
	return true
}

// Record registers one application of the rule with its price adjustment.
func (t *UsageTracker) Record(ruleID, userID string, adjustment float64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.usage(ruleID)
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	u.total++
	u.adjustment += adjustment
	u.lastApplied = now
	u.daily[day]++
	u.monthly[month]++
	u.monthlyAdj[month] += adjustment
	if userID != "" {
		u.perUserDay[userDayKey{userID, day}]++
	}
}

// Stats returns a snapshot of the rule's aggregate usage.
func (t *UsageTracker) Stats(ruleID string) RuleStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := RuleStats{
		RuleID:          ruleID,
		MonthlyApplied:  make(map[string]int),
		MonthlyAdjusted: make(map[string]float64),
	}
	u, ok := t.rules[ruleID]
	if !ok {
		return s
	}
	s.TimesApplied = u.total
	s.TotalAdjustment = u.adjustment
	if u.total > 0 {
		s.AvgAdjustment = u.adjustment / float64(u.total)
	}
	s.LastAppliedAt = u.lastApplied
	for k, v := range u.monthly {
		s.MonthlyApplied[k] = v
	}
	for k, v := range u.monthlyAdj {
		s.MonthlyAdjusted[k] = v
	}
	return s
}
