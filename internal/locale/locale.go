// Package locale formats dates the way it-IT browsers render them.
package locale

import (
	"fmt"
	"time"
)

// NotAvailable is shown in place of a missing value.
const NotAvailable = "N/A"

var months = [...]string{
	"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno",
	"luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre",
}

// MonthName returns the lower-case Italian name of m.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return months[m-1]
}

// MonthYear renders "ottobre 2026".
func MonthYear(t time.Time) string {
	return fmt.Sprintf("%s %d", MonthName(t.Month()), t.Year())
}

// DateTime renders "19/10/2026, 14:05:09" in loc.
func DateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02/01/2006, 15:04:05")
}

// ShortDateTime renders "19/10/2026, 14:05" in loc.
func ShortDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02/01/2006, 15:04")
}

// Date renders "19/10/2026" in loc.
func Date(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02/01/2006")
}

// DateTimeOrNA is DateTime for an optional timestamp.
func DateTimeOrNA(t *time.Time, loc *time.Location) string {
	if t == nil {
		return NotAvailable
	}
	return DateTime(*t, loc)
}

// ShortDateTimeOrNA is ShortDateTime for an optional timestamp.
func ShortDateTimeOrNA(t *time.Time, loc *time.Location) string {
	if t == nil {
		return NotAvailable
	}
	return ShortDateTime(*t, loc)
}
