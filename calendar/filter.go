package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/iabalyuk/advisorbot/model"
)

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"
)

var (
	// ErrNoCalendar means the advisor has no calendar at all.
	ErrNoCalendar = errors.New("advisor has no calendar")
	// ErrNoMonthData means the calendar has no record for the requested month.
	ErrNoMonthData = errors.New("no calendar data for month")
)

// BusyDay is one date with booked slots.
type BusyDay struct {
	Date  time.Time
	Slots []string
}

// Availability is a month record restricted to the advisor's consultation weekdays.
type Availability struct {
	Month time.Time // first day of the month, UTC
	Days  []int     // ascending
	Busy  []BusyDay // ascending by date
}

// MonthKey formats t as a calendar month key ("2006-01").
func MonthKey(t time.Time) string {
	return t.Format(monthLayout)
}

// ConsultationDays returns the set of canonical weekdays present in officeHours.
func ConsultationDays(officeHours map[string]string) map[Weekday]bool {
	days := make(map[Weekday]bool, len(officeHours))
	for key := range officeHours {
		days[Canonicalize(key)] = true
	}
	return days
}

// ForMonth filters the advisor calendar entry for the month containing t.
func ForMonth(cal map[string]model.MonthRecord, officeHours map[string]string, t time.Time) (Availability, error) {
	if len(cal) == 0 {
		return Availability{}, ErrNoCalendar
	}
	key := MonthKey(t)
	rec, ok := cal[key]
	if !ok {
		return Availability{}, ErrNoMonthData
	}
	return Filter(key, &rec, officeHours)
}

// Filter keeps the available days and busy dates of rec that fall on one of the
// weekdays listed in officeHours.
func Filter(monthKey string, rec *model.MonthRecord, officeHours map[string]string) (Availability, error) {
	month, err := time.Parse(monthLayout, monthKey)
	if err != nil {
		return Availability{}, &model.DataError{Key: monthKey, Reason: "invalid month key", Err: err}
	}
	if rec == nil {
		return Availability{}, ErrNoMonthData
	}

	consultation := ConsultationDays(officeHours)
	result := Availability{Month: month}

	for _, day := range rec.AvailableDays {
		date := time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC)
		if date.Month() != month.Month() || date.Day() != day {
			return Availability{}, &model.DataError{
				Key:    fmt.Sprintf("%s-%02d", monthKey, day),
				Reason: "day is outside the month",
			}
		}
		if consultation[WeekdayOf(date)] {
			result.Days = append(result.Days, day)
		}
	}
	sort.Ints(result.Days)

	for key, slots := range rec.BusySlots {
		date, err := time.Parse(dateLayout, key)
		if err != nil {
			return Availability{}, &model.DataError{Key: key, Reason: "invalid busy slot date", Err: err}
		}
		if consultation[WeekdayOf(date)] {
			result.Busy = append(result.Busy, BusyDay{Date: date, Slots: slots})
		}
	}
	sort.Slice(result.Busy, func(i, j int) bool {
		return result.Busy[i].Date.Before(result.Busy[j].Date)
	})

	return result, nil
}
