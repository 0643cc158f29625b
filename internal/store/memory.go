package store

import (
	"context"
	"sync"

	"github.com/kantinpay/kantin/ledger/models"
)

// MemoryStore keeps the last saved set in process memory. It backs tests and
// the "mem" backend.
type MemoryStore struct {
	mu      sync.Mutex
	cards   []models.Card
	saves   int
	saveErr error
}

func NewMemoryStore(seed ...models.Card) *MemoryStore {
	return &MemoryStore{cards: cloneCards(seed)}
}

func (s *MemoryStore) Load(_ context.Context) ([]models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCards(s.cards), nil
}

func (s *MemoryStore) Save(_ context.Context, cards []models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.cards = cloneCards(cards)
	s.saves++
	return nil
}

// Saves reports how many successful writes the store received.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// FailSaves makes every later Save return err and leave the set unchanged. Nil restores normal writes.
func (s *MemoryStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func cloneCards(in []models.Card) []models.Card {
	out := make([]models.Card, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
