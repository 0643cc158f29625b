package ledger

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kantinpay/kantin/internal/store"
	"golang.org/x/exp/slog"
)

var wib = time.FixedZone("WIB", 7*60*60)

// testClock is a settable clock for day-boundary tests.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	clock    *testClock
	store    *store.MemoryStore
	registry *Registry
	slot     *Slot
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock: &testClock{t: time.Date(2026, time.October, 18, 9, 0, 0, 0, wib)},
		store: store.NewMemoryStore(),
		slot:  NewSlot(),
	}
	f.registry = NewRegistry(f.store, Clock{Now: f.clock.Now, Location: wib}, discardLogger(), NewMetrics(nil))
	f.service = NewService(f.registry, f.slot, discardLogger(), NewMetrics(nil))
	return f
}

func (f *fixture) today() string {
	return Clock{Now: f.clock.Now, Location: wib}.Today()
}
