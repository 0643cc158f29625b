package ledger

import (
	"sync"

	"github.com/kantinpay/kantin/ledger/models"
)

// Slot holds the single pending transaction. A new value always replaces the
// old one; taps are never queued. It lives in memory only.
type Slot struct {
	mu   sync.RWMutex
	cur  models.Pending
	subs map[chan models.Pending]struct{}
}

func NewSlot() *Slot {
	return &Slot{subs: make(map[chan models.Pending]struct{})}
}

func (s *Slot) Get() models.Pending {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *Slot) Set(p models.Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = p
	s.publishLocked(p)
}

func (s *Slot) Clear() {
	s.Set(models.Pending{})
}

// Subscribe returns a channel that receives every later slot value. A slow
// reader only ever sees the latest one. cancel closes the channel.
func (s *Slot) Subscribe() (<-chan models.Pending, func()) {
	ch := make(chan models.Pending, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Slot) publishLocked(p models.Pending) {
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}
