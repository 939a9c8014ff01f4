package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

// MemoryReservationStore is an in-memory ReservationStore for tests and
// single-instance deployments.
type MemoryReservationStore struct {
	mu           sync.RWMutex
	reservations map[uuid.UUID]domain.Reservation
}

func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{reservations: make(map[uuid.UUID]domain.Reservation)}
}

func (s *MemoryReservationStore) Create(ctx context.Context, r *domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = *r
	return nil
}

func (s *MemoryReservationStore) Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, domain.NewNotFoundError("reservation", id.String())
	}
	out := r
	return &out, nil
}

func (s *MemoryReservationStore) Update(ctx context.Context, r *domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[r.ID]; !ok {
		return domain.NewNotFoundError("reservation", r.ID.String())
	}
	s.reservations[r.ID] = *r
	return nil
}

func (s *MemoryReservationStore) ListLiveOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Reservation
	for _, r := range s.reservations {
		if r.ResourceID != resourceID || !r.Status.IsLive() {
			continue
		}
		if r.Overlaps(start, end) {
			copied := r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *MemoryReservationStore) ListByUser(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Reservation
	for _, r := range s.reservations {
		if r.UserID == userID {
			copied := r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *MemoryReservationStore) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Reservation
	for _, r := range s.reservations {
		if r.Status == domain.StatusPendingPayment && r.CreatedAt.Before(cutoff) {
			copied := r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *MemoryReservationStore) ListConfirmedStartedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Reservation
	for _, r := range s.reservations {
		if r.Status == domain.StatusConfirmed && r.StartTime.Before(cutoff) {
			copied := r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *MemoryReservationStore) CountBookedResources(ctx context.Context, start, end time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	booked := make(map[string]bool)
	for _, r := range s.reservations {
		if r.Status.IsLive() && r.Overlaps(start, end) {
			booked[r.ResourceID] = true
		}
	}
	return len(booked), nil
}

// MemoryResourceStore is an in-memory ResourceStore.
type MemoryResourceStore struct {
	mu        sync.RWMutex
	resources map[string]domain.Resource
}

func NewMemoryResourceStore(resources ...domain.Resource) *MemoryResourceStore {
	s := &MemoryResourceStore{resources: make(map[string]domain.Resource)}
	for _, r := range resources {
		s.resources[r.ID] = r
	}
	return s
}

func (s *MemoryResourceStore) Put(r domain.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r.ID] = r
}

func (s *MemoryResourceStore) Get(ctx context.Context, id string) (*domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[id]
	if !ok {
		return nil, domain.NewNotFoundError("resource", id)
	}
	out := r
	return &out, nil
}

func (s *MemoryResourceStore) List(ctx context.Context) ([]*domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Resource
	for _, r := range s.resources {
		copied := r
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryResourceStore) CountActiveResources(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.resources {
		if r.Status == domain.ResourceActive {
			n++
		}
	}
	return n, nil
}
