package depot

import (
	"context"
	"fmt"
	"sync"

	"github.com/alovak/atm-playground/atm/models"
)

type MemoryStore struct {
	mu    sync.Mutex
	stock map[models.Banknote]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stock: make(map[models.Banknote]int64)}
}

func (s *MemoryStore) Take(_ context.Context, want map[models.Banknote]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for note, count := range want {
		have := s.stock[note]
		if have != Unbounded && have < count {
			return fmt.Errorf("%s: have %d, want %d: %w", note, have, count, models.ErrOutOfBanknotes)
		}
	}

	for note, count := range want {
		if s.stock[note] != Unbounded {
			s.stock[note] -= count
		}
	}

	return nil
}

func (s *MemoryStore) Load(_ context.Context, note models.Banknote, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case count == Unbounded:
		s.stock[note] = Unbounded
	case s.stock[note] != Unbounded:
		s.stock[note] += count
	}

	return nil
}

func (s *MemoryStore) Stock(_ context.Context) ([]Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := make([]Slot, 0, len(s.stock))
	for note, count := range s.stock {
		slots = append(slots, Slot{Banknote: note, Count: count})
	}
	sortSlots(slots)

	return slots, nil
}
