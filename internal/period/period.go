// Package period turns instants into the calendar-month keys and labels used
// for dues periods.
package period

import (
	"fmt"
	"strings"
	"time"
)

const keyLayout = "2006-01"

var russianMonths = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// Key returns the YYYY-MM month key of t in its own location.
func Key(t time.Time) string {
	return t.Format(keyLayout)
}

// Label returns a human-readable month label such as "October 2026".
// Locale "ru" yields Russian month names; anything else yields English.
func Label(t time.Time, locale string) string {
	if strings.EqualFold(locale, "ru") {
		return fmt.Sprintf("%s %d", russianMonths[t.Month()-1], t.Year())
	}
	return fmt.Sprintf("%s %d", t.Month(), t.Year())
}

// Parse parses a YYYY-MM key into the first instant of that month in loc.
func Parse(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(keyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month key %q: %w", key, err)
	}
	return t, nil
}

// Previous returns the key of the month before the one containing t.
func Previous(t time.Time) string {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Key(first.AddDate(0, -1, 0))
}

// Contains reports whether t falls inside the month identified by key,
// evaluated in t's location.
func Contains(key string, t time.Time) bool {
	return Key(t) == key
}
