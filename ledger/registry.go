package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kantinpay/kantin/internal/calendar"
	"github.com/kantinpay/kantin/internal/store"
	"github.com/kantinpay/kantin/ledger/models"
	"golang.org/x/exp/slog"
)

// Registry owns every card record.
//
// writeMu serialises mutations together with their synchronous store write.
// mu guards the map itself and is only held while it is changed or copied, so
// Lookup and List never wait for the store.
type Registry struct {
	writeMu sync.Mutex

	mu    sync.RWMutex
	cards map[string]*models.Card
	order []string

	store   store.Store
	clock   Clock
	logger  *slog.Logger
	metrics *Metrics
}

func NewRegistry(st store.Store, clock Clock, logger *slog.Logger, metrics *Metrics) *Registry {
	return &Registry{
		cards:   make(map[string]*models.Card),
		store:   st,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Load replaces the in-memory set with what the store holds.
func (r *Registry) Load(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cards, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading cards: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards = make(map[string]*models.Card, len(cards))
	r.order = r.order[:0]
	for _, c := range cards {
		if _, ok := r.cards[c.UID]; ok || c.UID == "" {
			r.logger.Warn("skipping stored card", slog.String("uid", c.UID), slog.String("reason", "empty or duplicate uid"))
			continue
		}
		if err := calendar.ValidateDayKey(c.LastResetDate); err != nil {
			// the next tap resets it
			r.logger.Warn("stored card has a bad reset date", slog.String("uid", c.UID), slog.Any("err", err))
		}
		if c.Balance < 0 {
			r.logger.Warn("clamping negative stored balance", slog.String("uid", c.UID), slog.Int64("balance", c.Balance))
			c.Balance = 0
		}
		card := c.Clone()
		r.cards[c.UID] = &card
		r.order = append(r.order, c.UID)
	}
	r.logger.Info("cards loaded", slog.Int("count", len(r.order)))
	return nil
}

// Flush writes the current set to the store.
func (r *Registry) Flush(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	snap := r.snapshotLocked()
	r.mu.RUnlock()

	if err := r.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("flushing cards: %w", err)
	}
	return nil
}

func (r *Registry) Register(ctx context.Context, uid, name string, allotment int64) (models.Card, error) {
	uid = strings.TrimSpace(uid)
	name = strings.TrimSpace(name)
	if uid == "" || name == "" {
		return models.Card{}, fmt.Errorf("%w: uid and name are required", models.ErrValidation)
	}
	if allotment < 0 {
		return models.Card{}, fmt.Errorf("%w: daily allotment must be >= 0", models.ErrValidation)
	}

	var created models.Card
	err := r.mutate(ctx, "register", func() (bool, error) {
		if _, ok := r.cards[uid]; ok {
			return false, fmt.Errorf("card %s: %w", uid, models.ErrDuplicate)
		}
		now := r.clock.now()
		card := &models.Card{
			UID:            uid,
			Name:           name,
			DailyAllotment: allotment,
			Balance:        allotment,
			LastResetDate:  r.clock.Day(now),
			RegisteredAt:   now,
		}
		r.cards[uid] = card
		r.order = append(r.order, uid)
		created = card.Clone()
		return true, nil
	})
	if err != nil && !models.IsWarning(err) {
		return models.Card{}, err
	}
	r.logger.Info("card registered", slog.String("uid", uid), slog.String("name", name), slog.Int64("allotment", allotment))
	return created, err
}

// Lookup returns the stored record as is. Resets are the caller's business.
func (r *Registry) Lookup(uid string) (models.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cards[uid]
	if !ok {
		return models.Card{}, fmt.Errorf("card %s: %w", uid, models.ErrNotFound)
	}
	return c.Clone(), nil
}

// Credit tops a card up after applying any due reset. The allotment is unchanged.
func (r *Registry) Credit(ctx context.Context, uid string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be > 0", models.ErrValidation)
	}
	var balance int64
	err := r.updateCard(ctx, "topup", uid, func(c *models.Card) (bool, error) {
		if r.resetCard(c, r.clock.Today()) {
			r.logger.Info("daily reset applied", slog.String("uid", c.UID), slog.String("op", "topup"))
		}
		if c.Balance > math.MaxInt64-amount {
			return false, fmt.Errorf("%w: balance would overflow", models.ErrValidation)
		}
		c.Balance += amount
		balance = c.Balance
		return true, nil
	})
	if err != nil && !models.IsWarning(err) {
		return 0, err
	}
	r.logger.Info("card topped up", slog.String("uid", uid), slog.Int64("amount", amount), slog.Int64("balance", balance))
	return balance, err
}

func (r *Registry) Delete(ctx context.Context, uid string) (models.Card, error) {
	var deleted models.Card
	err := r.mutate(ctx, "delete", func() (bool, error) {
		c, ok := r.cards[uid]
		if !ok {
			return false, fmt.Errorf("card %s: %w", uid, models.ErrNotFound)
		}
		deleted = c.Clone()
		delete(r.cards, uid)
		for i, id := range r.order {
			if id == uid {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		return true, nil
	})
	if err != nil && !models.IsWarning(err) {
		return models.Card{}, err
	}
	r.logger.Info("card deleted", slog.String("uid", uid), slog.String("name", deleted.Name))
	return deleted, err
}

// List returns every card in registration order with today's reset projected.
func (r *Registry) List() []models.CardView {
	today := r.clock.Today()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.CardView, 0, len(r.order))
	for _, uid := range r.order {
		out = append(out, project(*r.cards[uid], today))
	}
	return out
}

// Wipe drops every card. There is no undo.
func (r *Registry) Wipe(ctx context.Context) error {
	var n int
	err := r.mutate(ctx, "wipe", func() (bool, error) {
		n = len(r.order)
		r.cards = make(map[string]*models.Card)
		r.order = nil
		return true, nil
	})
	r.logger.Warn("all cards wiped", slog.Int("count", n))
	return err
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) resetCard(c *models.Card, today string) bool {
	last := c.LastResetDate
	if !ApplyDailyReset(c, today) {
		return false
	}
	r.metrics.resetApplied()
	if idle, err := calendar.DaysBetween(last, today); err == nil {
		r.logger.Debug("daily reset", slog.String("uid", c.UID), slog.Int("days_idle", idle), slog.Int64("balance", c.Balance))
	}
	return true
}

// mutate runs fn with both locks held. When fn reports a change the full set
// is saved before the writer lock is released. A failed save keeps the change
// and comes back as a *models.PersistError.
func (r *Registry) mutate(ctx context.Context, op string, fn func() (bool, error)) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	changed, err := fn()
	var snap []models.Card
	if err == nil && changed {
		snap = r.snapshotLocked()
	}
	r.mu.Unlock()

	if err != nil || !changed {
		return err
	}
	return r.persist(ctx, op, snap)
}

// updateCard hands fn a working copy of one card. The copy replaces the stored
// record only when fn reports a change, so a rejected operation leaves no trace.
func (r *Registry) updateCard(ctx context.Context, op, uid string, fn func(c *models.Card) (bool, error)) error {
	return r.mutate(ctx, op, func() (bool, error) {
		cur, ok := r.cards[uid]
		if !ok {
			return false, fmt.Errorf("card %s: %w", uid, models.ErrNotFound)
		}
		work := cur.Clone()
		changed, err := fn(&work)
		if err != nil || !changed {
			return false, err
		}
		*cur = work
		return true, nil
	})
}

func (r *Registry) persist(ctx context.Context, op string, snap []models.Card) error {
	if err := r.store.Save(ctx, snap); err != nil {
		r.logger.Warn("saving cards failed; in-memory state kept", slog.String("op", op), slog.Any("err", err))
		r.metrics.persistFailed(op)
		return &models.PersistError{Op: op, Err: err}
	}
	return nil
}

func (r *Registry) snapshotLocked() []models.Card {
	out := make([]models.Card, 0, len(r.order))
	for _, uid := range r.order {
		out = append(out, r.cards[uid].Clone())
	}
	return out
}
