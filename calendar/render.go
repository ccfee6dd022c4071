package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var monthNames = [12]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// Genitive forms, used in dates ("1 апреля 2025").
var monthNamesGenitive = [12]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

const none = "нет"

// FormatDate renders t as a long-form Russian date, e.g. "1 апреля 2025".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), monthNamesGenitive[t.Month()-1], t.Year())
}

// FormatMonth renders t's month and year, e.g. "Апрель 2025".
func FormatMonth(t time.Time) string {
	return fmt.Sprintf("%s %d", monthNames[t.Month()-1], t.Year())
}

// Render formats a filtered month as a plain-text report.
func Render(a Availability) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 Расписание на %s:\n\n", FormatMonth(a.Month))

	sb.WriteString("Доступные дни: ")
	if len(a.Days) == 0 {
		sb.WriteString(none)
	}
	for i, day := range a.Days {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(day))
	}
	sb.WriteString("\n\n")

	sb.WriteString("Занятые слоты:\n")
	if len(a.Busy) == 0 {
		sb.WriteString(none + "\n")
	}
	for _, busy := range a.Busy {
		fmt.Fprintf(&sb, "%s: %s\n", FormatDate(busy.Date), strings.Join(busy.Slots, ", "))
	}
	return sb.String()
}

// Notice returns the text shown instead of a report when err is one of the
// "nothing to show" signals returned by ForMonth or Filter.
func Notice(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrNoCalendar):
		return "Календарь не доступен", true
	case errors.Is(err, ErrNoMonthData):
		return "Нет данных о расписании на текущий месяц", true
	}
	return "", false
}
