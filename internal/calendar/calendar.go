package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the on-disk format of a ledger day: YYYYMMDD.
const DayLayout = "20060102"

var defaultLoc = time.Local

// SetDefaultLocation sets the location used when callers pass a nil location (fallback server local time).
func SetDefaultLocation(loc *time.Location) {
	if loc != nil {
		defaultLoc = loc
	}
}

// DefaultLocation returns the location used for nil arguments.
func DefaultLocation() *time.Location {
	return defaultLoc
}

// LoadLocation resolves an IANA name. Empty and "Local" mean server local time.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// DayKey returns the calendar day of t in loc as YYYYMMDD.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = defaultLoc
	}
	return t.In(loc).Format(DayLayout)
}

// ValidateDayKey checks that key is YYYYMMDD and names a real date.
func ValidateDayKey(key string) error {
	if len(key) != len(DayLayout) {
		return fmt.Errorf("day must be YYYYMMDD (8 digits)")
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return fmt.Errorf("day must be digits: YYYYMMDD")
		}
	}
	if _, err := time.Parse(DayLayout, key); err != nil {
		return fmt.Errorf("day %q is not a calendar date", key)
	}
	return nil
}

// StartOfDay parses key into midnight of that day in loc.
func StartOfDay(key string, loc *time.Location) (time.Time, error) {
	if err := ValidateDayKey(key); err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = defaultLoc
	}
	return time.ParseInLocation(DayLayout, key, loc)
}

// DaysBetween returns the number of calendar days from one key to another.
// Negative when to is before from.
func DaysBetween(from, to string) (int, error) {
	a, err := StartOfDay(from, time.UTC)
	if err != nil {
		return 0, err
	}
	b, err := StartOfDay(to, time.UTC)
	if err != nil {
		return 0, err
	}
	return int(b.Sub(a).Hours() / 24), nil
}
