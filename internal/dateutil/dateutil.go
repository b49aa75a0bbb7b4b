// Package dateutil parses invoice dates and formats them for the
// Indonesian locale.
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDate indicates a date that is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date")

// ISOLayout is the wire format of invoice dates.
const ISOLayout = "2006-01-02"

// MaxDateLength limits date input length to prevent abuse.
const MaxDateLength = 30

// monthsID are the Indonesian month names, January first.
var monthsID = [12]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// ParseISO parses a YYYY-MM-DD date in UTC.
func ParseISO(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if len(value) > MaxDateLength {
		return time.Time{}, fmt.Errorf("%w: exceeds %d characters", ErrInvalidDate, MaxDateLength)
	}
	t, err := time.Parse(ISOLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (want YYYY-MM-DD)", ErrInvalidDate, value)
	}
	return t, nil
}

// FormatISO formats t as YYYY-MM-DD.
func FormatISO(t time.Time) string {
	return t.Format(ISOLayout)
}

// FormatShort formats t as the numeric Indonesian date, e.g. "5/1/2026".
func FormatShort(t time.Time) string {
	return t.Format("2/1/2006")
}

// FormatLong formats t with the Indonesian month name, e.g. "19 Oktober 2026".
func FormatLong(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), monthsID[t.Month()-1], t.Year())
}

// DueDate returns the date days after from, as YYYY-MM-DD.
func DueDate(from time.Time, days int) string {
	return FormatISO(from.AddDate(0, 0, days))
}

// ReformatISO converts a YYYY-MM-DD value with format. Values that do not
// parse are returned unchanged, as a browser would display the raw string.
func ReformatISO(value string, format func(time.Time) string) string {
	t, err := ParseISO(value)
	if err != nil {
		return value
	}
	return format(t)
}
