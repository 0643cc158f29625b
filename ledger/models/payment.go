package models

type SettlementOutcome string

const (
	SettlementSettled  SettlementOutcome = "settled"
	SettlementDeclined SettlementOutcome = "declined"
)

// Settlement is the result of a payment against a card.
// On a decline Balance is the current balance and Paid is zero.
type Settlement struct {
	Outcome SettlementOutcome
	Balance int64
	Paid    int64
}

func (s Settlement) Settled() bool {
	return s.Outcome == SettlementSettled
}

// TapResult describes the card behind a tap, when it is registered.
type TapResult struct {
	Known   bool
	Card    Card
	Pending Pending
}
