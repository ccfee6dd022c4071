package calendar

import (
	"strings"
	"time"
)

// Weekday is a locale-neutral weekday key as used in office-hours data.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists the canonical keys, Monday first.
var Weekdays = [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var displayNames = map[Weekday]string{
	Monday:    "Понедельник",
	Tuesday:   "Вторник",
	Wednesday: "Среда",
	Thursday:  "Четверг",
	Friday:    "Пятница",
	Saturday:  "Суббота",
	Sunday:    "Воскресенье",
}

var abbreviations = map[string]Weekday{
	"mon":   Monday,
	"tue":   Tuesday,
	"tues":  Tuesday,
	"wed":   Wednesday,
	"thu":   Thursday,
	"thur":  Thursday,
	"thurs": Thursday,
	"fri":   Friday,
	"sat":   Saturday,
	"sun":   Sunday,
}

// WeekdayOf returns the weekday of t's calendar date.
func WeekdayOf(t time.Time) Weekday {
	// time.Weekday counts from Sunday; shift so Monday is 0.
	return Weekdays[(int(t.Weekday())+6)%7]
}

// Index returns 0 for Monday through 6 for Sunday, or -1 for a non-canonical key.
func (w Weekday) Index() int {
	for i, d := range Weekdays {
		if d == w {
			return i
		}
	}
	return -1
}

// IsCanonical reports whether w is one of the seven canonical keys.
func (w Weekday) IsCanonical() bool {
	return w.Index() >= 0
}

// DisplayName returns the Russian name of w. Non-canonical keys are returned as is.
func DisplayName(w Weekday) string {
	if name, ok := displayNames[w]; ok {
		return name
	}
	return string(w)
}

// FromDisplayName maps a display name back to its key. Unknown names pass
// through unchanged.
func FromDisplayName(name string) Weekday {
	for w, n := range displayNames {
		if n == name {
			return w
		}
	}
	return Weekday(name)
}

// Canonicalize maps an office-hours key to its canonical weekday. Matching is
// case-insensitive and accepts canonical keys, English abbreviations and
// display names; anything else passes through unchanged.
func Canonicalize(key string) Weekday {
	k := strings.ToLower(strings.TrimSpace(key))
	if w := Weekday(k); w.IsCanonical() {
		return w
	}
	if w, ok := abbreviations[k]; ok {
		return w
	}
	for w, n := range displayNames {
		if strings.EqualFold(n, strings.TrimSpace(key)) {
			return w
		}
	}
	return Weekday(key)
}
