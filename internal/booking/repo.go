package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

// ReservationStore persists reservations. Implementations must make
// Create atomic with respect to the conflict check they back; the
// in-memory store does it under the resource lock, the Postgres store
// with a serializable transaction plus an overlap exclusion constraint.
type ReservationStore interface {
	Create(ctx context.Context, r *domain.Reservation) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	Update(ctx context.Context, r *domain.Reservation) error

	// ListLiveOverlapping returns live reservations on the resource whose
	// window intersects [start, end).
	ListLiveOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*domain.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Reservation, error)

	// ListPendingCreatedBefore returns pending-payment reservations created
	// before the cutoff, for the payment-timeout sweep.
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Reservation, error)
	// ListConfirmedStartedBefore returns confirmed reservations whose start
	// passed before the cutoff, for the no-show sweep.
	ListConfirmedStartedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Reservation, error)

	// CountBookedResources returns how many distinct resources hold a live
	// reservation overlapping [start, end).
	CountBookedResources(ctx context.Context, start, end time.Time) (int, error)
}

// ResourceStore provides the bookable resource catalog.
type ResourceStore interface {
	Get(ctx context.Context, id string) (*domain.Resource, error)
	List(ctx context.Context) ([]*domain.Resource, error)
	CountActiveResources(ctx context.Context) (int, error)
}
