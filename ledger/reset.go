package ledger

import (
	"time"

	"github.com/kantinpay/kantin/internal/calendar"
	"github.com/kantinpay/kantin/ledger/models"
)

// Clock yields the current instant and the ledger day. A nil Now means time.Now
// and a nil Location means calendar.DefaultLocation.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Day returns the ledger day of t.
func (c Clock) Day(t time.Time) string {
	return calendar.DayKey(t, c.Location)
}

func (c Clock) Today() string {
	return c.Day(c.now())
}

// ResetDue reports whether the card's balance belongs to an earlier day.
func ResetDue(c models.Card, today string) bool {
	return c.LastResetDate != today
}

// ApplyDailyReset restores the daily allotment once per day. Missed days are
// not replayed: a card idle for a week resets once, to the current allotment.
func ApplyDailyReset(c *models.Card, today string) bool {
	if !ResetDue(*c, today) {
		return false
	}
	c.Balance = c.DailyAllotment
	c.LastResetDate = today
	return true
}

// project presents c as a reader should see it today without changing it.
func project(c models.Card, today string) models.CardView {
	v := models.CardView{
		UID:             c.UID,
		Name:            c.Name,
		Balance:         c.Balance,
		DailyAllotment:  c.DailyAllotment,
		LastResetDate:   c.LastResetDate,
		NeedsReset:      ResetDue(c, today),
		LastTransaction: c.Clone().LastTransaction,
	}
	if v.NeedsReset {
		v.Balance = c.DailyAllotment
	}
	return v
}
