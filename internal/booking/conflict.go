package booking

import (
	"context"
	"sort"
	"time"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

// ConflictDetector answers whether a requested window collides with a
// live reservation. Only live states block a slot; cancelled, completed
// and no-show bookings free it immediately.
type ConflictDetector struct {
	reservations ReservationStore
}

func NewConflictDetector(store ReservationStore) *ConflictDetector {
	return &ConflictDetector{reservations: store}
}

// FindConflict returns the earliest live reservation overlapping
// [start, end) on the resource, or nil when the slot is free.
func (d *ConflictDetector) FindConflict(ctx context.Context, resourceID string, start, end time.Time) (*domain.Reservation, error) {
	overlapping, err := d.reservations.ListLiveOverlapping(ctx, resourceID, start, end)
	if err != nil {
		return nil, err
	}
	if len(overlapping) == 0 {
		return nil, nil
	}
	sort.Slice(overlapping, func(i, j int) bool {
		return overlapping[i].StartTime.Before(overlapping[j].StartTime)
	})
	return overlapping[0], nil
}

// Availability is a free/busy breakdown of one resource over a window.
type Availability struct {
	ResourceID string               `json:"resource_id"`
	BusySlots  []domain.Reservation `json:"busy_slots"`
}

// Availability lists the live reservations of a resource inside the
// window so clients can render a day grid.
func (d *ConflictDetector) Availability(ctx context.Context, resourceID string, from, to time.Time) (*Availability, error) {
	overlapping, err := d.reservations.ListLiveOverlapping(ctx, resourceID, from, to)
	if err != nil {
		return nil, err
	}
	sort.Slice(overlapping, func(i, j int) bool {
		return overlapping[i].StartTime.Before(overlapping[j].StartTime)
	})
	out := &Availability{ResourceID: resourceID}
	for _, r := range overlapping {
		out.BusySlots = append(out.BusySlots, *r)
	}
	return out, nil
}
