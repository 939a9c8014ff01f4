package pricing

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// Wednesday 19:00, inside the weekday peak window.
var peakWeekday = time.Date(2025, time.June, 4, 19, 0, 0, 0, time.UTC)

func peakContext() Context {
	return Context{
		Time:             peakWeekday,
		ResourceID:       "court-1",
		ResourceType:     domain.ResourceIndoor,
		Tier:             TierFor(peakWeekday),
		OccupancyPercent: 85,
		Weather:          domain.WeatherSnapshot{Temperature: 22, Humidity: 55, Condition: "sunny"},
		DurationMinutes:  90,
		PlayerCount:      2,
	}
}

func newEngine(t *testing.T, rules ...Rule) *Engine {
	t.Helper()
	store := NewMemoryRuleStore()
	for _, r := range rules {
		if err := store.Upsert(r); err != nil {
			t.Fatalf("seeding rule %s: %v", r.ID, err)
		}
	}
	return NewEngine(store)
}

func TestQuote_HighOccupancySurge(t *testing.T) {
	surge := Rule{
		ID:               "high-occupancy-surge",
		Name:             "High occupancy surge",
		Active:           true,
		Priority:         20,
		AllowCombination: true,
		Conditions:       Conditions{MinOccupancy: intPtr(80)},
		Action:           Action{Type: ActionPercentage, Value: 30, MaxPrice: floatPtr(150)},
	}

	e := newEngine(t, surge)
	q := e.Quote(context.Background(), peakContext())

	if q.Tier != domain.TierPeak {
		t.Fatalf("tier = %s, want peak", q.Tier)
	}
	if q.BasePrice != 100 {
		t.Fatalf("base price = %v, want 100", q.BasePrice)
	}
	if q.HourlyRate != 130 {
		t.Errorf("hourly rate = %v, want 130", q.HourlyRate)
	}
	if q.Total != 195 {
		t.Errorf("total for 90 minutes = %v, want 195", q.Total)
	}
	if len(q.AppliedRules) != 1 || q.AppliedRules[0].RuleID != "high-occupancy-surge" {
		t.Errorf("applied rules = %+v, want the surge rule", q.AppliedRules)
	}
	if q.AppliedRules[0].Adjustment != 30 {
		t.Errorf("adjustment = %v, want 30", q.AppliedRules[0].Adjustment)
	}
}

func TestQuote_MaxPriceCapsAdjustment(t *testing.T) {
	surge := Rule{
		ID:               "surge",
		Name:             "Surge",
		Active:           true,
		Priority:         20,
		AllowCombination: true,
		Action:           Action{Type: ActionPercentage, Value: 80, MaxPrice: floatPtr(150)},
	}

	e := newEngine(t, surge)
	q := e.Quote(context.Background(), peakContext())

	// 100 * 1.8 = 180, clamped to 150.
	if q.HourlyRate != 150 {
		t.Errorf("hourly rate = %v, want 150", q.HourlyRate)
	}
}

func TestQuote_NoRules(t *testing.T) {
	e := newEngine(t)
	q := e.Quote(context.Background(), peakContext())

	if q.HourlyRate != 100 {
		t.Errorf("hourly rate = %v, want base 100", q.HourlyRate)
	}
	if q.Total != 150 {
		t.Errorf("total = %v, want 150", q.Total)
	}
	if len(q.AppliedRules) != 0 {
		t.Errorf("applied rules = %+v, want none", q.AppliedRules)
	}
}

func TestQuote_PlayerSurcharge(t *testing.T) {
	e := newEngine(t)
	pctx := peakContext()
	pctx.PlayerCount = 4
	pctx.DurationMinutes = 60

	q := e.Quote(context.Background(), pctx)

	if q.AdditionalPlayerFee != 20 {
		t.Errorf("additional player fee = %v, want 20", q.AdditionalPlayerFee)
	}
	if q.Total != 120 {
		t.Errorf("total = %v, want 120", q.Total)
	}
}

func TestQuote_PriorityOrderAndStacking(t *testing.T) {
	discount := Rule{
		ID:               "member-discount",
		Name:             "Member discount",
		Active:           true,
		Priority:         10,
		AllowCombination: true,
		Action:           Action{Type: ActionFixedDelta, Value: -10},
	}
	surge := Rule{
		ID:               "surge",
		Name:             "Surge",
		Active:           true,
		Priority:         20,
		AllowCombination: true,
		Action:           Action{Type: ActionPercentage, Value: 30},
	}

	e := newEngine(t, discount, surge)
	q := e.Quote(context.Background(), peakContext())

	// Surge first (priority 20): 100 -> 130, then the discount: -> 120.
	if q.HourlyRate != 120 {
		t.Errorf("hourly rate = %v, want 120", q.HourlyRate)
	}
	if len(q.AppliedRules) != 2 {
		t.Fatalf("applied %d rules, want 2", len(q.AppliedRules))
	}
	if q.AppliedRules[0].RuleID != "surge" || q.AppliedRules[1].RuleID != "member-discount" {
		t.Errorf("application order = %s, %s; want surge then member-discount",
			q.AppliedRules[0].RuleID, q.AppliedRules[1].RuleID)
	}
}

func TestQuote_ExclusiveRuleStopsFolding(t *testing.T) {
	exclusive := Rule{
		ID:               "flat-promo",
		Name:             "Flat promo",
		Active:           true,
		Priority:         30,
		AllowCombination: false,
		Action:           Action{Type: ActionFixedPrice, Value: 70},
	}
	discount := Rule{
		ID:               "member-discount",
		Name:             "Member discount",
		Active:           true,
		Priority:         10,
		AllowCombination: true,
		Action:           Action{Type: ActionFixedDelta, Value: -10},
	}

	e := newEngine(t, exclusive, discount)
	q := e.Quote(context.Background(), peakContext())

	if q.HourlyRate != 70 {
		t.Errorf("hourly rate = %v, want the exclusive flat 70", q.HourlyRate)
	}
	if len(q.AppliedRules) != 1 {
		t.Errorf("applied %d rules, want only the exclusive one", len(q.AppliedRules))
	}
}

func TestQuote_ExclusiveRuleSkippedAfterOthersApplied(t *testing.T) {
	surge := Rule{
		ID:               "surge",
		Name:             "Surge",
		Active:           true,
		Priority:         30,
		AllowCombination: true,
		Action:           Action{Type: ActionPercentage, Value: 30},
	}
	exclusive := Rule{
		ID:               "flat-promo",
		Name:             "Flat promo",
		Active:           true,
		Priority:         10,
		AllowCombination: false,
		Action:           Action{Type: ActionFixedPrice, Value: 70},
	}

	e := newEngine(t, surge, exclusive)
	q := e.Quote(context.Background(), peakContext())

	if q.HourlyRate != 130 {
		t.Errorf("hourly rate = %v, want 130 with the exclusive rule skipped", q.HourlyRate)
	}
}

func TestQuote_InactiveAndExpiredSkipped(t *testing.T) {
	past := peakWeekday.Add(-time.Hour)
	inactive := Rule{
		ID:       "off",
		Active:   false,
		Priority: 50,
		Action:   Action{Type: ActionPercentage, Value: 99},
	}
	expired := Rule{
		ID:       "stale",
		Active:   true,
		Priority: 50,
		Action:   Action{Type: ActionPercentage, Value: 99},
		Limits:   Limits{ExpiresAt: &past},
	}

	e := newEngine(t, inactive, expired)
	q := e.Quote(context.Background(), peakContext())

	if q.HourlyRate != 100 {
		t.Errorf("hourly rate = %v, want unadjusted 100", q.HourlyRate)
	}
}

func TestQuote_ConditionsMismatchSkips(t *testing.T) {
	rainOnly := Rule{
		ID:               "rainy-day",
		Name:             "Rainy day discount",
		Active:           true,
		Priority:         10,
		AllowCombination: true,
		Conditions:       Conditions{WeatherConditions: []string{"rainy"}},
		Action:           Action{Type: ActionPercentage, Value: -20},
	}

	e := newEngine(t, rainOnly)
	pctx := peakContext()
	pctx.Weather.Condition = "sunny"

	q := e.Quote(context.Background(), pctx)
	if q.HourlyRate != 100 {
		t.Errorf("hourly rate = %v, want 100 with the rainy rule unmatched", q.HourlyRate)
	}

	pctx.Weather.Condition = "rainy"
	q = e.Quote(context.Background(), pctx)
	if q.HourlyRate != 80 {
		t.Errorf("hourly rate = %v, want 80 on a rainy day", q.HourlyRate)
	}
}

func TestQuote_MalformedFormulaSkipsRule(t *testing.T) {
	broken := Rule{
		ID:               "broken",
		Name:             "Broken formula",
		Active:           true,
		Priority:         40,
		AllowCombination: true,
		Action:           Action{Type: ActionFormula, Formula: "basePrice + eval(userBalance)"},
	}
	surge := Rule{
		ID:               "surge",
		Name:             "Surge",
		Active:           true,
		Priority:         20,
		AllowCombination: true,
		Action:           Action{Type: ActionPercentage, Value: 30},
	}

	e := newEngine(t, broken, surge)
	q := e.Quote(context.Background(), peakContext())

	if q.HourlyRate != 130 {
		t.Errorf("hourly rate = %v, want 130 with the broken rule skipped", q.HourlyRate)
	}
	if len(q.AppliedRules) != 1 || q.AppliedRules[0].RuleID != "surge" {
		t.Errorf("applied rules = %+v, want only surge", q.AppliedRules)
	}
}

func TestQuote_FormulaRule(t *testing.T) {
	formula := Rule{
		ID:               "occupancy-formula",
		Name:             "Occupancy formula",
		Active:           true,
		Priority:         10,
		AllowCombination: true,
		Action:           Action{Type: ActionFormula, Formula: "basePrice * (1 + occupancyPercent / 100)"},
	}

	e := newEngine(t, formula)
	q := e.Quote(context.Background(), peakContext())

	if math.Abs(q.HourlyRate-185) > 1e-9 {
		t.Errorf("hourly rate = %v, want 185", q.HourlyRate)
	}
}

func TestQuote_RoundingStep(t *testing.T) {
	rounded := Rule{
		ID:               "rounded",
		Name:             "Rounded surge",
		Active:           true,
		Priority:         10,
		AllowCombination: true,
		Action: Action{
			Type:         ActionPercentage,
			Value:        17,
			Rounding:     RoundUp,
			RoundingStep: 5,
		},
	}

	e := newEngine(t, rounded)
	q := e.Quote(context.Background(), peakContext())

	// 100 * 1.17 = 117, rounded up to the next step of 5.
	if q.HourlyRate != 120 {
		t.Errorf("hourly rate = %v, want 120", q.HourlyRate)
	}
}

func TestQuote_NeverNegative(t *testing.T) {
	crash := Rule{
		ID:               "crash",
		Name:             "Over-discount",
		Active:           true,
		Priority:         10,
		AllowCombination: true,
		Action:           Action{Type: ActionFixedDelta, Value: -500},
	}

	e := newEngine(t, crash)
	q := e.Quote(context.Background(), peakContext())

	if q.HourlyRate != 0 {
		t.Errorf("hourly rate = %v, want floor at 0", q.HourlyRate)
	}
}

func TestQuote_DailyLimitSkipsSilently(t *testing.T) {
	limited := Rule{
		ID:               "one-shot",
		Name:             "One per day",
		Active:           true,
		Priority:         10,
		AllowCombination: true,
		Action:           Action{Type: ActionPercentage, Value: 30},
		Limits:           Limits{MaxDailyApplications: 1},
	}

	e := newEngine(t, limited)

	q := e.Quote(context.Background(), peakContext())
	if q.HourlyRate != 130 {
		t.Fatalf("first quote rate = %v, want 130", q.HourlyRate)
	}

	q = e.Quote(context.Background(), peakContext())
	if q.HourlyRate != 100 {
		t.Errorf("second quote rate = %v, want 100 after the daily cap", q.HourlyRate)
	}
	if len(q.AppliedRules) != 0 {
		t.Errorf("applied rules = %+v, want none", q.AppliedRules)
	}
}

func TestQuote_CooldownCountsFromApplicationTime(t *testing.T) {
	promo := Rule{
		ID:               "promo",
		Name:             "Promo",
		Active:           true,
		Priority:         10,
		AllowCombination: true,
		Action:           Action{Type: ActionPercentage, Value: -10},
		Limits:           Limits{Cooldown: time.Hour},
	}

	e := newEngine(t, promo)
	clock := peakWeekday
	e.WithClock(func() time.Time { return clock })

	// First quote prices a slot three days out.
	far := peakContext()
	far.Time = peakWeekday.Add(72 * time.Hour)
	far.Tier = TierFor(far.Time)
	if q := e.Quote(context.Background(), far); q.HourlyRate != 90 {
		t.Fatalf("far slot rate = %v, want 90", q.HourlyRate)
	}

	// Two hours of wall time later a near-term slot quotes. The cooldown
	// counts from the first application, not from the far slot's start,
	// so the promo applies again.
	clock = clock.Add(2 * time.Hour)
	q := e.Quote(context.Background(), peakContext())
	if q.HourlyRate != 90 {
		t.Errorf("near slot rate = %v, want 90 with the cooldown elapsed", q.HourlyRate)
	}
}

func TestEngine_UsageStats(t *testing.T) {
	surge := Rule{
		ID:               "surge",
		Name:             "Surge",
		Active:           true,
		Priority:         10,
		AllowCombination: true,
		Action:           Action{Type: ActionPercentage, Value: 30},
	}

	e := newEngine(t, surge)
	e.WithClock(func() time.Time { return peakWeekday })
	e.Quote(context.Background(), peakContext())
	e.Quote(context.Background(), peakContext())

	stats := e.Usage("surge")
	if stats.TimesApplied != 2 {
		t.Errorf("times applied = %d, want 2", stats.TimesApplied)
	}
	if stats.TotalAdjustment != 60 {
		t.Errorf("total adjustment = %v, want 60", stats.TotalAdjustment)
	}
	if stats.AvgAdjustment != 30 {
		t.Errorf("avg adjustment = %v, want 30", stats.AvgAdjustment)
	}
	month := peakWeekday.Format("2006-01")
	if stats.MonthlyApplied[month] != 2 {
		t.Errorf("monthly applied[%s] = %d, want 2", month, stats.MonthlyApplied[month])
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want domain.PriceTier
	}{
		{"weekday evening peak", time.Date(2025, 6, 4, 19, 0, 0, 0, time.UTC), domain.TierPeak},
		{"weekday peak lower bound", time.Date(2025, 6, 4, 18, 0, 0, 0, time.UTC), domain.TierPeak},
		{"weekday peak upper bound", time.Date(2025, 6, 4, 22, 0, 0, 0, time.UTC), domain.TierPeak},
		{"weekday late afternoon mid", time.Date(2025, 6, 4, 16, 30, 0, 0, time.UTC), domain.TierMid},
		{"weekday morning off", time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC), domain.TierOff},
		{"weekend midday peak", time.Date(2025, 6, 7, 14, 0, 0, 0, time.UTC), domain.TierPeak},
		{"weekend early morning mid", time.Date(2025, 6, 7, 9, 0, 0, 0, time.UTC), domain.TierMid},
		{"weekend late night off", time.Date(2025, 6, 7, 23, 0, 0, 0, time.UTC), domain.TierOff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TierFor(tt.t); got != tt.want {
				t.Errorf("TierFor(%s) = %s, want %s", tt.t.Format(time.RFC3339), got, tt.want)
			}
		})
	}
}

func TestBasePrice(t *testing.T) {
	if p := BasePrice(domain.ResourceIndoor, domain.TierPeak); p != 100 {
		t.Errorf("indoor peak = %v, want 100", p)
	}
	if p := BasePrice(domain.ResourceOutdoor, domain.TierOff); p != 40 {
		t.Errorf("outdoor off = %v, want 40", p)
	}
	if p := BasePrice(domain.ResourceOutdoor, domain.TierSocial); p != 40 {
		t.Errorf("outdoor social = %v, want off-peak 40", p)
	}
	if p := BasePrice(domain.ResourceType("unknown"), domain.TierPeak); p != 100 {
		t.Errorf("unknown type peak = %v, want indoor fallback 100", p)
	}
}
