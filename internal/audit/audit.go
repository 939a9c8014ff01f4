package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saha-club/bookingservice/internal/booking/domain"
	"github.com/saha-club/bookingservice/internal/log"
)

// Recorder writes an append-only audit trail of state-changing operations.
// Entries go through the structured logger under a fixed "audit" marker so
// they can be filtered downstream.
type Recorder struct {
	logger *zap.Logger
}

// New creates a Recorder writing through the given logger. A nil logger
// falls back to the context logger at record time.
func New(logger *zap.Logger) *Recorder {
	return &Recorder{logger: logger}
}

func (r *Recorder) write(ctx context.Context, action string, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("audit", action),
		zap.Time("audit_time", time.Now().UTC()),
	}
	fields = append(base, fields...)
	if r.logger != nil {
		r.logger.Info("audit event", fields...)
		return
	}
	log.Info(ctx, "audit event", fields...)
}

// ReservationCreated records a new reservation with its initial status.
func (r *Recorder) ReservationCreated(ctx context.Context, res *domain.Reservation) {
	fields := []zap.Field{
		zap.String("reservation_id", res.ID.String()),
		zap.String("reservation_number", res.Number),
		zap.String("resource_id", res.ResourceID),
		zap.String("user_id", res.UserID),
		zap.String("status", string(res.Status)),
		zap.Time("start_time", res.StartTime),
		zap.Int("duration_minutes", res.DurationMinutes),
	}
	if res.Quote != nil {
		fields = append(fields, zap.Float64("quoted_total", res.Quote.Total))
	}
	r.write(ctx, "reservation.created", fields...)
}

// StatusChanged records a reservation state transition.
func (r *Recorder) StatusChanged(ctx context.Context, reservationID uuid.UUID, from, to domain.ReservationStatus) {
	r.write(ctx, "reservation.status_changed",
		zap.String("reservation_id", reservationID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
}

// Cancelled records a cancellation with its refund outcome.
func (r *Recorder) Cancelled(ctx context.Context, reservationID uuid.UUID, cancelledBy string, outcome *domain.RefundOutcome) {
	fields := []zap.Field{
		zap.String("reservation_id", reservationID.String()),
		zap.String("cancelled_by", cancelledBy),
	}
	if outcome != nil {
		fields = append(fields,
			zap.Float64("refund_amount", outcome.RefundAmount),
			zap.Float64("refund_percent", outcome.RefundPercent),
			zap.Float64("hours_refunded", outcome.HoursRefunded))
	}
	r.write(ctx, "reservation.cancelled", fields...)
}

// CreditDebited records hours drawn from a credit instrument.
func (r *Recorder) CreditDebited(ctx context.Context, instrumentID, reservationID uuid.UUID, hours float64) {
	r.write(ctx, "ledger.debited",
		zap.String("instrument_id", instrumentID.String()),
		zap.String("reservation_id", reservationID.String()),
		zap.Float64("hours", hours))
}

// CreditRefunded records hours returned to a credit instrument.
func (r *Recorder) CreditRefunded(ctx context.Context, instrumentID, reservationID uuid.UUID, hours float64) {
	r.write(ctx, "ledger.refunded",
		zap.String("instrument_id", instrumentID.String()),
		zap.String("reservation_id", reservationID.String()),
		zap.Float64("hours", hours))
}
