package bookings

import (
	"strings"
	"time"
)

// DisplayLayout renders a booking as "04.03 о 14:30".
const DisplayLayout = "02.01 о 15:04"

// naiveLayouts are tried in order once the offset marker has been cut off.
// They cover the extended and basic ISO 8601 forms down to hour precision.
// Layouts ending in an offset keep a negative offset as wall clock time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15",
	"2006-01-02 15",
	"2006-01-02",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02T15:04-07:00",
	"2006-01-02T15:04-07",
	"20060102T150405.999999999",
	"20060102T1504",
	"20060102T15",
	"20060102T150405.999999999-0700",
	"20060102",
}

// BookingTime is the outcome of parsing a stored booking timestamp: either a
// wall clock time or the raw value when it could not be parsed.
type BookingTime struct {
	Raw    string
	Time   time.Time
	Parsed bool
}

// ParseBookingTime reads the stored timestamp without applying its offset:
// everything from the first '+' is dropped, otherwise every 'Z' is removed,
// and the rest is parsed as local wall clock time. Failures keep the raw
// string.
func ParseBookingTime(raw string) BookingTime {
	value := raw
	switch {
	case strings.Contains(value, "+"):
		value = value[:strings.Index(value, "+")]
	case strings.Contains(value, "Z"):
		value = strings.ReplaceAll(value, "Z", "")
	}

	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return BookingTime{Raw: raw, Time: t, Parsed: true}
		}
	}

	return BookingTime{Raw: raw}
}

// Display formats the parsed time or returns the raw value unchanged.
func (b BookingTime) Display() string {
	if !b.Parsed {
		return b.Raw
	}
	return b.Time.Format(DisplayLayout)
}
