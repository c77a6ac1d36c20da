package locale

import (
	"testing"
	"time"
)

func rome(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestMonthName(t *testing.T) {
	if got := MonthName(time.October); got != "ottobre" {
		t.Errorf("MonthName(October) = %q, want ottobre", got)
	}
	if got := MonthName(time.Month(13)); got != "" {
		t.Errorf("MonthName(13) = %q, want empty", got)
	}
}

func TestDateTimeInZone(t *testing.T) {
	loc := rome(t)
	// 22:30 UTC on 31 Oct is 23:30 in Rome after the DST switch.
	ts := time.Date(2026, 10, 31, 22, 30, 5, 0, time.UTC)
	if got := DateTime(ts, loc); got != "31/10/2026, 23:30:05" {
		t.Errorf("DateTime = %q", got)
	}
	if got := ShortDateTime(ts, loc); got != "31/10/2026, 23:30" {
		t.Errorf("ShortDateTime = %q", got)
	}
	// 23:30 UTC in July is already the next day in Rome.
	summer := time.Date(2026, 7, 14, 23, 30, 0, 0, time.UTC)
	if got := Date(summer, loc); got != "15/07/2026" {
		t.Errorf("Date = %q, want 15/07/2026", got)
	}
	if got := MonthYear(summer.In(loc)); got != "luglio 2026" {
		t.Errorf("MonthYear = %q", got)
	}
}

func TestOrNA(t *testing.T) {
	loc := rome(t)
	if got := DateTimeOrNA(nil, loc); got != NotAvailable {
		t.Errorf("DateTimeOrNA(nil) = %q", got)
	}
	if got := ShortDateTimeOrNA(nil, loc); got != NotAvailable {
		t.Errorf("ShortDateTimeOrNA(nil) = %q", got)
	}
}
