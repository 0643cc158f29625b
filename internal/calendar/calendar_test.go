package calendar

import (
	"testing"
	"time"
)

func TestDayKey_UsesLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	// 20:30 UTC on the 17th is already the 18th in UTC+7
	at := time.Date(2026, time.October, 17, 20, 30, 0, 0, time.UTC)
	if got := DayKey(at, time.UTC); got != "20261017" {
		t.Fatalf("DayKey utc got %s want %s", got, "20261017")
	}
	if got := DayKey(at, jakarta); got != "20261018" {
		t.Fatalf("DayKey wib got %s want %s", got, "20261018")
	}
}

func TestDayKey_NilLocationFallsBack(t *testing.T) {
	prev := DefaultLocation()
	defer SetDefaultLocation(prev)

	SetDefaultLocation(time.UTC)
	at := time.Date(2029, time.December, 31, 23, 59, 59, 0, time.UTC)
	if got := DayKey(at, nil); got != "20291231" {
		t.Fatalf("DayKey got %s want %s", got, "20291231")
	}
	SetDefaultLocation(nil)
	if DefaultLocation() != time.UTC {
		t.Fatalf("nil location must not replace the default")
	}
}

func TestValidateDayKey(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"20261018", true}, {"20280229", true}, {"20000101", true},
		{"2026101", false}, {"2026-10-1", false}, {"20261318", false}, {"20270229", false}, {"", false},
	}
	for _, c := range cases {
		err := ValidateDayKey(c.in)
		if (err == nil) != c.ok {
			t.Fatalf("ValidateDayKey(%q) ok=%v got err=%v", c.in, c.ok, err)
		}
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("WIB", 7*60*60)
	ts, err := StartOfDay("20261018", loc)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := time.Date(2026, time.October, 18, 0, 0, 0, 0, loc)
	if !ts.Equal(want) {
		t.Fatalf("got %v want %v", ts, want)
	}
}

func TestDaysBetween(t *testing.T) {
	cases := []struct {
		from, to string
		want     int
	}{
		{"20261015", "20261018", 3},
		{"20261018", "20261018", 0},
		{"20280228", "20280301", 2},
		{"20261018", "20261017", -1},
	}
	for _, c := range cases {
		got, err := DaysBetween(c.from, c.to)
		if err != nil {
			t.Fatalf("DaysBetween(%s,%s) err=%v", c.from, c.to, err)
		}
		if got != c.want {
			t.Fatalf("DaysBetween(%s,%s) got %d want %d", c.from, c.to, got, c.want)
		}
	}
	if _, err := DaysBetween("bad", "20261018"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil || loc != time.Local {
		t.Fatalf("empty name got %v err=%v", loc, err)
	}
	loc, err = LoadLocation("UTC")
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("UTC got %v err=%v", loc, err)
	}
	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}
