package timeutil

import (
	"fmt"
	"regexp"
	"time"

	"github.com/teambition/rrule-go"
)

// DateLayout is the lexical form used for term dates.
const DateLayout = "2006-01-02"

// clockLayout matches the 12-hour wall-clock strings produced by extraction.
const clockLayout = "3:04 PM"

// ClockPattern validates 12-hour H:MM AM/PM clock strings.
var ClockPattern = regexp.MustCompile(`^(1[0-2]|0?[1-9]):[0-5][0-9] (AM|PM)$`)

var weekdays = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

var rruleWeekdays = map[string]rrule.Weekday{
	"Sunday":    rrule.SU,
	"Monday":    rrule.MO,
	"Tuesday":   rrule.TU,
	"Wednesday": rrule.WE,
	"Thursday":  rrule.TH,
	"Friday":    rrule.FR,
	"Saturday":  rrule.SA,
}

// ParseClock converts an "H:MM AM/PM" string into minutes since midnight.
func ParseClock(raw string) (int, error) {
	if !ClockPattern.MatchString(raw) {
		return 0, fmt.Errorf("invalid clock string %q", raw)
	}
	t, err := time.Parse(clockLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("parse clock string %q: %w", raw, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// MinutesToClock renders minutes since midnight back into "H:MM AM/PM".
func MinutesToClock(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	t := time.Date(0, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC)
	return t.Format(clockLayout)
}

// Weekday resolves a weekday name like "Monday".
func Weekday(name string) (time.Weekday, bool) {
	d, ok := weekdays[name]
	return d, ok
}

// RecurrenceWeekday resolves a weekday name to its recurrence-rule token.
func RecurrenceWeekday(name string) (rrule.Weekday, bool) {
	d, ok := rruleWeekdays[name]
	return d, ok
}

// ValidWeekday reports whether the name is a recognised weekday.
func ValidWeekday(name string) bool {
	_, ok := weekdays[name]
	return ok
}
