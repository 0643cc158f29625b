package models

import (
	"encoding/json"
	"time"
)

// PendingKind tags the state of the pending transaction slot.
// Values match the "status" field the kiosk page reads.
type PendingKind string

const (
	PendingEmpty          PendingKind = ""
	PendingUnregistered   PendingKind = "not_registered"
	PendingAwaitingAmount PendingKind = "waiting_amount"
)

// Pending is the last tap reported by the reader. The zero value is the empty slot.
// Balance is a snapshot for display only; settlement re-reads the registry.
type Pending struct {
	Kind      PendingKind
	UID       string
	Name      string
	Balance   int64
	Timestamp time.Time
}

func Unregistered(uid string, at time.Time) Pending {
	return Pending{Kind: PendingUnregistered, UID: uid, Timestamp: at}
}

func AwaitingAmount(card Card, at time.Time) Pending {
	return Pending{
		Kind:      PendingAwaitingAmount,
		UID:       card.UID,
		Name:      card.Name,
		Balance:   card.Balance,
		Timestamp: at,
	}
}

func (p Pending) IsEmpty() bool {
	return p.Kind == PendingEmpty
}

type pendingJSON struct {
	UID       string      `json:"uid"`
	Name      string      `json:"name,omitempty"`
	Balance   *int64      `json:"balance,omitempty"`
	Status    PendingKind `json:"status"`
	Timestamp int64       `json:"timestamp"`
}

// MarshalJSON writes null for the empty slot and unix milliseconds for the timestamp.
func (p Pending) MarshalJSON() ([]byte, error) {
	if p.IsEmpty() {
		return []byte("null"), nil
	}
	out := pendingJSON{
		UID:       p.UID,
		Status:    p.Kind,
		Timestamp: p.Timestamp.UnixMilli(),
	}
	if p.Kind == PendingAwaitingAmount {
		out.Name = p.Name
		bal := p.Balance
		out.Balance = &bal
	}
	return json.Marshal(out)
}

func (p *Pending) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Pending{}
		return nil
	}
	var in pendingJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = Pending{
		Kind:      in.Status,
		UID:       in.UID,
		Name:      in.Name,
		Timestamp: time.UnixMilli(in.Timestamp),
	}
	if in.Balance != nil {
		p.Balance = *in.Balance
	}
	return nil
}
