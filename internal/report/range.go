package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/manutenzioni/internal/locale"
)

var ErrInvalidRange = errors.New("invalid report range")

// Range is an inclusive completion window. Month is set when the range
// was chosen as a calendar month.
type Range struct {
	From  time.Time
	To    time.Time
	Month bool
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// MonthRange parses "YYYY-MM" and covers the whole month in loc.
func MonthRange(month string, loc *time.Location) (Range, error) {
	start, err := time.ParseInLocation("2006-01", strings.TrimSpace(month), loc)
	if err != nil {
		return Range{}, fmt.Errorf("%w: month %q", ErrInvalidRange, month)
	}
	last := start.AddDate(0, 1, -1)
	return Range{From: start, To: endOfDay(last), Month: true}, nil
}

// DatesRange parses two "YYYY-MM-DD" dates; to is inclusive.
func DatesRange(from, to string, loc *time.Location) (Range, error) {
	start, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(from), loc)
	if err != nil {
		return Range{}, fmt.Errorf("%w: from %q", ErrInvalidRange, from)
	}
	end, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(to), loc)
	if err != nil {
		return Range{}, fmt.Errorf("%w: to %q", ErrInvalidRange, to)
	}
	if end.Before(start) {
		return Range{}, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, to, from)
	}
	return Range{From: start, To: endOfDay(end)}, nil
}

// Filename derives the download name, e.g.
// "report-task-completate_ottobre-2026.csv" or
// "report-task-completate_01-10-2026_15-10-2026.csv".
func (r Range) Filename(ext string) string {
	if r.Month {
		return fmt.Sprintf("report-task-completate_%s-%d.%s", locale.MonthName(r.From.Month()), r.From.Year(), ext)
	}
	return fmt.Sprintf("report-task-completate_%s_%s.%s",
		r.From.Format("02-01-2006"), r.To.Format("02-01-2006"), ext)
}

type MonthOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// MonthOptions lists the n months ending with the one containing now,
// most recent first.
func MonthOptions(now time.Time, loc *time.Location, n int) []MonthOption {
	now = now.In(loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	opts := make([]MonthOption, n)
	for i := range opts {
		m := first.AddDate(0, -i, 0)
		opts[i] = MonthOption{Value: m.Format("2006-01"), Label: locale.MonthYear(m)}
	}
	return opts
}
