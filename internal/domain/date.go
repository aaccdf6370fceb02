package domain

import (
	"strings"
	"time"
)

// CivilDate отбрасывает время суток: результат полночь UTC того же
// календарного дня, что и t в своей локации.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TodayIn календарная дата момента now в локации loc.
func TodayIn(now time.Time, loc *time.Location) time.Time {
	return CivilDate(now.In(loc))
}

// AddDays сдвигает календарную дату на n дней.
func AddDays(date time.Time, n int) time.Time {
	return CivilDate(date).AddDate(0, 0, n)
}

// DaysBetween число дней от from до to (обе календарные даты).
func DaysBetween(from, to time.Time) int {
	return int(CivilDate(to).Sub(CivilDate(from)).Hours() / 24)
}

// Slugify: нижний регистр, пробелы в дефисы, апострофы удаляются.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	return strings.ReplaceAll(s, "'", "")
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
