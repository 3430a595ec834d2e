package appointment

import (
	"errors"
	"fmt"
	"time"
)

// DefaultDuration is applied when a request carries no duration.
const DefaultDuration = 60 * time.Minute

var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidFormat = errors.New("invalid date or hour format")
)

// Interval is a half-open time range [Start, End): the start instant belongs
// to the interval, the end instant does not. Back-to-back slots therefore
// never overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps applies the symmetric half-open overlap test.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

var hourLayouts = []string{
	"15:04",
	"15:04:05",
}

// ParseDate accepts a date-only string or a full ISO datetime and returns the
// date portion at midnight UTC.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: date", ErrMissingField)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return dateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q (want YYYY-MM-DD or ISO datetime)", ErrInvalidFormat, value)
}

// ParseHour accepts HH:MM (or HH:MM:SS) and returns the normalized HH:MM form.
func ParseHour(value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%w: hour", ErrMissingField)
	}
	for _, layout := range hourLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("%w: hour %q (want HH:MM)", ErrInvalidFormat, value)
}

// NormalizeSlot converts a date string, an hour string and an optional
// duration into a canonical UTC interval. A nil duration gets the default;
// an explicit duration must be positive.
func NormalizeSlot(date, hour string, durationMinutes *int) (Interval, error) {
	day, err := ParseDate(date)
	if err != nil {
		return Interval{}, err
	}

	hh, err := ParseHour(hour)
	if err != nil {
		return Interval{}, err
	}

	duration := DefaultDuration
	if durationMinutes != nil {
		if *durationMinutes <= 0 {
			return Interval{}, fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidFormat, *durationMinutes)
		}
		duration = time.Duration(*durationMinutes) * time.Minute
	}

	clock, _ := time.Parse("15:04", hh)
	start := day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)

	return Interval{Start: start, End: start.Add(duration)}, nil
}

// slotOf builds the canonical interval occupied by an existing appointment.
// Appointments without an hour occupy nothing.
func slotOf(a *Appointment) (Interval, bool) {
	if a.Hour == "" || a.AppointmentDate.IsZero() {
		return Interval{}, false
	}

	clock, err := time.Parse("15:04", a.Hour)
	if err != nil {
		return Interval{}, false
	}

	start := a.AppointmentDate.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
	return Interval{Start: start, End: start.Add(a.Duration())}, true
}

// FormatInstant renders an instant the way the external scheduling service
// expects it: ISO-8601 in UTC with a Z suffix.
func FormatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z07:00")
}
