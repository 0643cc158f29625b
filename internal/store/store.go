// Package store holds the durable backends for the card ledger. A backend
// persists and loads the full card set as one unit and knows nothing about
// balances or resets.
package store

import (
	"context"
	"fmt"

	"github.com/kantinpay/kantin/ledger/models"
)

var ErrCorrupt = fmt.Errorf("stored cards are corrupt")

type Store interface {
	// Load returns every stored card in registration order, or an empty slice when nothing was saved yet.
	Load(ctx context.Context) ([]models.Card, error)
	// Save replaces the stored set with cards.
	Save(ctx context.Context, cards []models.Card) error
	Ping(ctx context.Context) error
	Close() error
}
