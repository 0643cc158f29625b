package models

import "time"

// Card is a prepaid card record keyed by the reader UID.
// DailyAllotment keeps the "initialBalance" name on the wire and on disk.
type Card struct {
	UID             string           `json:"uid"`
	Name            string           `json:"name"`
	DailyAllotment  int64            `json:"initialBalance"`
	Balance         int64            `json:"balance"`
	LastResetDate   string           `json:"lastResetDate"`
	RegisteredAt    time.Time        `json:"registeredAt"`
	LastTransaction *LastTransaction `json:"lastTransaction,omitempty"`
}

type LastTransaction struct {
	ID        string    `json:"id,omitempty"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Clone returns a copy that shares no pointers with c.
func (c Card) Clone() Card {
	if c.LastTransaction != nil {
		tx := *c.LastTransaction
		c.LastTransaction = &tx
	}
	return c
}

// CardView is a card as presented by list reads: the balance already reflects
// a reset that is due but not yet applied.
type CardView struct {
	UID             string           `json:"uid"`
	Name            string           `json:"name"`
	Balance         int64            `json:"balance"`
	DailyAllotment  int64            `json:"initialBalance"`
	LastResetDate   string           `json:"lastResetDate"`
	NeedsReset      bool             `json:"needsReset"`
	LastTransaction *LastTransaction `json:"lastTransaction,omitempty"`
}
