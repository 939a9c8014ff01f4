package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

func seedPass(t *testing.T, store *MemoryInstrumentStore, totalHours, usedHours float64) *CreditInstrument {
	t.Helper()
	pass := NewPass("user-1", totalHours, 0,
		time.Now().Add(-24*time.Hour), time.Now().Add(30*24*time.Hour))
	pass.UsedHours = usedHours
	require.NoError(t, store.Save(context.Background(), pass))
	return pass
}

func TestCheckCoverage_InsufficientBalance(t *testing.T) {
	store := NewMemoryInstrumentStore()
	pass := seedPass(t, store, 10, 8.5) // 1.5 hours remaining
	l := New(store)

	start := time.Now().Add(72 * time.Hour)
	_, err := l.CheckCoverage(context.Background(), pass.ID, domain.TierMid, start, 120, 2)

	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeInsufficientBalance))
	assert.Contains(t, err.Error(), "required=2.0, available=1.5")
}

func TestCheckCoverage_TierMismatch(t *testing.T) {
	store := NewMemoryInstrumentStore()
	pass := seedPass(t, store, 10, 0)
	l := New(store)

	_, err := l.CheckCoverage(context.Background(), pass.ID, domain.TierPeak, time.Now().Add(time.Hour), 60, 2)

	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeTierMismatch))
}

func TestCheckCoverage_ExtraPlayerHours(t *testing.T) {
	store := NewMemoryInstrumentStore()
	pass := seedPass(t, store, 10, 0)
	l := New(store)

	// 60 minutes with 4 players: 1 hour plus 2 extra-player hours.
	cov, err := l.CheckCoverage(context.Background(), pass.ID, domain.TierOff, time.Now().Add(time.Hour), 60, 4)

	require.NoError(t, err)
	assert.Equal(t, 3.0, cov.HoursRequired)
}

func TestCheckCoverage_Expired(t *testing.T) {
	store := NewMemoryInstrumentStore()
	pass := NewPass("user-1", 10, 0,
		time.Now().Add(-60*24*time.Hour), time.Now().Add(-24*time.Hour))
	require.NoError(t, store.Save(context.Background(), pass))
	l := New(store)

	_, err := l.CheckCoverage(context.Background(), pass.ID, domain.TierOff, time.Now().Add(time.Hour), 60, 2)

	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeInstrumentExpired))
}

func TestQuoteCoverage_SkipsIneligibleInstrument(t *testing.T) {
	store := NewMemoryInstrumentStore()
	// The subscription expires first so it is tried first, but it only
	// covers peak bookings.
	sub := NewSubscription("user-1", time.Now().Add(-time.Hour))
	require.NoError(t, store.Save(context.Background(), sub))
	pass := NewPass("user-1", 10, 0,
		time.Now().Add(-time.Hour), time.Now().Add(2*365*24*time.Hour))
	require.NoError(t, store.Save(context.Background(), pass))
	l := New(store)

	cov, err := l.QuoteCoverage(context.Background(), "user-1", domain.TierOff, time.Now().Add(72*time.Hour), 90, 2)

	require.NoError(t, err)
	require.NotNil(t, cov)
	assert.Equal(t, pass.ID, cov.InstrumentID)
	assert.Equal(t, 1.5, cov.HoursRequired)
}

func TestQuoteCoverage_NoneCovers(t *testing.T) {
	store := NewMemoryInstrumentStore()
	sub := NewSubscription("user-1", time.Now().Add(-time.Hour))
	require.NoError(t, store.Save(context.Background(), sub))
	l := New(store)

	cov, err := l.QuoteCoverage(context.Background(), "user-1", domain.TierOff, time.Now().Add(72*time.Hour), 60, 2)

	require.NoError(t, err)
	assert.Nil(t, cov)
}

func TestQuoteCoverage_PrefersSoonestExpiry(t *testing.T) {
	store := NewMemoryInstrumentStore()
	late := NewPass("user-1", 10, 0,
		time.Now().Add(-time.Hour), time.Now().Add(60*24*time.Hour))
	soon := NewPass("user-1", 10, 0,
		time.Now().Add(-time.Hour), time.Now().Add(10*24*time.Hour))
	require.NoError(t, store.Save(context.Background(), late))
	require.NoError(t, store.Save(context.Background(), soon))
	l := New(store)

	cov, err := l.QuoteCoverage(context.Background(), "user-1", domain.TierMid, time.Now().Add(72*time.Hour), 60, 2)

	require.NoError(t, err)
	require.NotNil(t, cov)
	assert.Equal(t, soon.ID, cov.InstrumentID)
}

func TestDebit_ConsumesHours(t *testing.T) {
	store := NewMemoryInstrumentStore()
	pass := seedPass(t, store, 10, 0)
	l := New(store)

	resID := uuid.New()
	start := time.Now().Add(72 * time.Hour)
	cov, err := l.Debit(context.Background(), pass.ID, resID, domain.TierMid, start, 90, 2)

	require.NoError(t, err)
	assert.Equal(t, 1.5, cov.HoursRequired)
	assert.Equal(t, 8.5, cov.HoursRemaining)

	stored, err := store.Get(context.Background(), pass.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.5, stored.UsedHours)
	assert.Contains(t, stored.Usage, resID)
}

func TestDebit_Idempotent(t *testing.T) {
	store := NewMemoryInstrumentStore()
	pass := seedPass(t, store, 10, 0)
	l := New(store)

	resID := uuid.New()
	start := time.Now().Add(72 * time.Hour)
	_, err := l.Debit(context.Background(), pass.ID, resID, domain.TierMid, start, 90, 2)
	require.NoError(t, err)

	cov, err := l.Debit(context.Background(), pass.ID, resID, domain.TierMid, start, 90, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cov.HoursRequired)
	assert.Equal(t, 8.5, cov.HoursRemaining, "second debit of the same reservation must not consume again")
}

func TestRefund_RestoresExactBalance(t *testing.T) {
	store := NewMemoryInstrumentStore()
	pass := seedPass(t, store, 10, 2) // 8 hours remaining before the booking
	l := New(store)

	resID := uuid.New()
	start := time.Now().Add(72 * time.Hour)
	_, err := l.Debit(context.Background(), pass.ID, resID, domain.TierMid, start, 120, 3)
	require.NoError(t, err)

	mid, err := store.Get(context.Background(), pass.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, mid.RemainingHours()) // 8 - (2 + 1 extra player)

	hours, err := l.Refund(context.Background(), pass.ID, resID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, hours)

	after, err := store.Get(context.Background(), pass.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.0, after.RemainingHours(), "refund must restore the pre-booking balance exactly")
}

func TestRefund_SecondRefundIsNoop(t *testing.T) {
	store := NewMemoryInstrumentStore()
	pass := seedPass(t, store, 10, 0)
	l := New(store)

	resID := uuid.New()
	start := time.Now().Add(72 * time.Hour)
	_, err := l.Debit(context.Background(), pass.ID, resID, domain.TierMid, start, 60, 2)
	require.NoError(t, err)

	first, err := l.Refund(context.Background(), pass.ID, resID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, first)

	second, err := l.Refund(context.Background(), pass.ID, resID)
	require.NoError(t, err)
	assert.Zero(t, second)

	after, err := store.Get(context.Background(), pass.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, after.RemainingHours(), "double refund must not inflate the balance")
}

func TestRefund_UnknownReservationIsNoop(t *testing.T) {
	store := NewMemoryInstrumentStore()
	pass := seedPass(t, store, 10, 0)
	l := New(store)

	hours, err := l.Refund(context.Background(), pass.ID, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, hours)
}

func TestDebit_DailyCap(t *testing.T) {
	store := NewMemoryInstrumentStore()
	pass := seedPass(t, store, 10, 0) // pass daily cap is 3 hours
	l := New(store)

	day := time.Now().Add(72 * time.Hour).Truncate(24 * time.Hour).Add(10 * time.Hour)

	_, err := l.Debit(context.Background(), pass.ID, uuid.New(), domain.TierOff, day, 120, 2)
	require.NoError(t, err)

	_, err = l.Debit(context.Background(), pass.ID, uuid.New(), domain.TierOff, day.Add(3*time.Hour), 120, 2)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeDailyCapExceeded))

	// The same booking on the next day is fine.
	_, err = l.Debit(context.Background(), pass.ID, uuid.New(), domain.TierOff, day.Add(24*time.Hour), 120, 2)
	require.NoError(t, err)
}

func TestSubscription_PeakOnly(t *testing.T) {
	store := NewMemoryInstrumentStore()
	sub := NewSubscription("user-2", time.Now().Add(-time.Hour))
	require.NoError(t, store.Save(context.Background(), sub))
	l := New(store)

	start := time.Now().Add(72 * time.Hour)

	cov, err := l.CheckCoverage(context.Background(), sub.ID, domain.TierPeak, start, 60, 2)
	require.NoError(t, err)
	assert.Equal(t, float64(SubscriptionPeakHoursPerYear), cov.HoursRemaining)

	_, err = l.CheckCoverage(context.Background(), sub.ID, domain.TierOff, start, 60, 2)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeTierMismatch))
}

func TestInstrument_DerivedStatus(t *testing.T) {
	now := time.Now()

	active := NewPass("u", 5, 0, now.Add(-time.Hour), now.Add(time.Hour))
	assert.Equal(t, StatusActive, active.Status(now))

	expired := NewPass("u", 5, 0, now.Add(-2*time.Hour), now.Add(-time.Hour))
	assert.Equal(t, StatusExpired, expired.Status(now))

	exhausted := NewPass("u", 5, 0, now.Add(-time.Hour), now.Add(time.Hour))
	exhausted.UsedHours = 5
	assert.Equal(t, StatusExhausted, exhausted.Status(now))

	suspended := NewPass("u", 5, 0, now.Add(-time.Hour), now.Add(time.Hour))
	suspended.Suspended = true
	assert.Equal(t, StatusSuspended, suspended.Status(now))
}

func TestInstrument_BonusHoursCountTowardBalance(t *testing.T) {
	pass := NewPass("u", 5, 2, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	pass.UsedHours = 6
	assert.Equal(t, 1.0, pass.RemainingHours())
}
