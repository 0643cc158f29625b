package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kantinpay/kantin/ledger/models"
	"golang.org/x/exp/slog"
)

// Service is the entry point for the reader and the kiosk: it routes taps into
// the pending slot and settles payments against the registry.
type Service struct {
	registry *Registry
	slot     *Slot
	logger   *slog.Logger
	metrics  *Metrics
}

func NewService(registry *Registry, slot *Slot, logger *slog.Logger, metrics *Metrics) *Service {
	return &Service{
		registry: registry,
		slot:     slot,
		logger:   logger,
		metrics:  metrics,
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// Tap records what the reader just saw. A known card gets its daily reset
// before its balance is shown; the reset is saved when it changed the card.
// The registry read, the reset and the slot update happen as one step.
func (s *Service) Tap(ctx context.Context, uid string) (models.TapResult, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return models.TapResult{}, fmt.Errorf("%w: UID required", models.ErrValidation)
	}
	s.logger.Info("card tap", slog.String("uid", uid))

	var res models.TapResult
	r := s.registry
	err := r.mutate(ctx, "tap", func() (bool, error) {
		now := r.clock.now()
		c, ok := r.cards[uid]
		if !ok {
			res = models.TapResult{Pending: models.Unregistered(uid, now)}
			s.slot.Set(res.Pending)
			return false, nil
		}
		reset := r.resetCard(c, r.clock.Day(now))
		res = models.TapResult{Known: true, Card: c.Clone(), Pending: models.AwaitingAmount(*c, now)}
		s.slot.Set(res.Pending)
		return reset, nil
	})
	if err != nil && !models.IsWarning(err) {
		return models.TapResult{}, err
	}
	s.metrics.tap(res.Known)

	if res.Known {
		s.logger.Info("card detected", slog.String("uid", uid), slog.String("name", res.Card.Name), slog.Int64("balance", res.Card.Balance))
	} else {
		s.logger.Info("card not registered", slog.String("uid", uid))
	}
	return res, err
}

func (s *Service) Pending() models.Pending {
	return s.slot.Get()
}

func (s *Service) ClearPending() {
	s.slot.Clear()
}

// SubscribePending streams slot changes; see Slot.Subscribe.
func (s *Service) SubscribePending() (<-chan models.Pending, func()) {
	return s.slot.Subscribe()
}

// Settle debits amount from the card. An amount above the balance is declined
// without touching the card or the store. The pending slot is left for the
// caller to clear.
func (s *Service) Settle(ctx context.Context, uid string, amount int64) (models.Settlement, error) {
	if amount <= 0 {
		return models.Settlement{}, fmt.Errorf("%w: amount must be > 0", models.ErrValidation)
	}
	start := time.Now()

	var out models.Settlement
	r := s.registry
	err := r.updateCard(ctx, "settle", uid, func(c *models.Card) (bool, error) {
		now := r.clock.now()
		// a reset on this working copy only sticks if the debit does
		ApplyDailyReset(c, r.clock.Day(now))
		if amount > c.Balance {
			out = models.Settlement{Outcome: models.SettlementDeclined, Balance: c.Balance}
			return false, nil
		}
		c.Balance -= amount
		c.LastTransaction = &models.LastTransaction{
			ID:        uuid.New().String(),
			Amount:    amount,
			Timestamp: now,
		}
		out = models.Settlement{Outcome: models.SettlementSettled, Balance: c.Balance, Paid: amount}
		return true, nil
	})
	s.metrics.settled(outcomeLabel(out, err), time.Since(start).Seconds())

	switch {
	case errors.Is(err, models.ErrNotFound):
		s.logger.Info("payment for unknown card", slog.String("uid", uid))
		return models.Settlement{}, err
	case err != nil && !models.IsWarning(err):
		return models.Settlement{}, err
	case out.Settled():
		s.logger.Info("payment settled", slog.String("uid", uid), slog.Int64("paid", out.Paid), slog.Int64("balance", out.Balance))
	default:
		s.logger.Info("payment declined", slog.String("uid", uid), slog.Int64("amount", amount), slog.Int64("balance", out.Balance))
	}
	return out, err
}

func (s *Service) Register(ctx context.Context, uid, name string, allotment int64) (models.Card, error) {
	return s.registry.Register(ctx, uid, name, allotment)
}

func (s *Service) TopUp(ctx context.Context, uid string, amount int64) (int64, error) {
	return s.registry.Credit(ctx, uid, amount)
}

func (s *Service) Delete(ctx context.Context, uid string) (models.Card, error) {
	return s.registry.Delete(ctx, uid)
}

func (s *Service) Lookup(uid string) (models.Card, error) {
	return s.registry.Lookup(uid)
}

func (s *Service) List() []models.CardView {
	return s.registry.List()
}

func (s *Service) Wipe(ctx context.Context) error {
	return s.registry.Wipe(ctx)
}
