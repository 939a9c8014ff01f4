package ledger

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

// MemoryInstrumentStore is an in-memory InstrumentStore. Instruments are
// deep-copied on the way in and out so callers never share mutable state
// with the store.
type MemoryInstrumentStore struct {
	mu          sync.RWMutex
	instruments map[uuid.UUID]*CreditInstrument
}

func NewMemoryInstrumentStore() *MemoryInstrumentStore {
	return &MemoryInstrumentStore{instruments: make(map[uuid.UUID]*CreditInstrument)}
}

func clone(ci *CreditInstrument) (*CreditInstrument, error) {
	raw, err := json.Marshal(ci)
	if err != nil {
		return nil, err
	}
	var out CreditInstrument
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out.Usage == nil {
		out.Usage = make(map[uuid.UUID]UsageRecord)
	}
	return &out, nil
}

func (s *MemoryInstrumentStore) Get(ctx context.Context, id uuid.UUID) (*CreditInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ci, ok := s.instruments[id]
	if !ok {
		return nil, domain.NewNotFoundError("instrument", id.String())
	}
	return clone(ci)
}

func (s *MemoryInstrumentStore) Save(ctx context.Context, instrument *CreditInstrument) error {
	copied, err := clone(instrument)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments[instrument.ID] = copied
	return nil
}

func (s *MemoryInstrumentStore) ListByUser(ctx context.Context, userID string) ([]*CreditInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CreditInstrument
	for _, ci := range s.instruments {
		if ci.UserID == userID {
			copied, err := clone(ci)
			if err != nil {
				return nil, err
			}
			out = append(out, copied)
		}
	}
	return out, nil
}
