package timeutil

import (
	"strconv"
	"strings"
	"time"
)

// BusinessTimeZone is the dealership's timezone. All day-boundary math runs
// in this zone regardless of where the caller or server is located.
const BusinessTimeZone = "America/New_York"

var businessLoc = loadBusinessLocation()

func loadBusinessLocation() *time.Location {
	loc, err := time.LoadLocation(BusinessTimeZone)
	if err != nil {
		// No tzdata available. -5h matches the zone's standard offset.
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// layouts accepted by ParseInstant, tried in order. Layouts without a zone
// are interpreted in the business timezone.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var nakedLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInstant parses a stored timestamp into an instant. It returns nil for
// empty, malformed, or otherwise unparseable input and never returns an
// error: a bad timestamp on one record must not take down a whole list view.
// Downstream logic treats nil as "unknown, not overdue, not due-soon".
func ParseInstant(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}

	for _, layout := range nakedLayouts {
		if t, err := time.ParseInLocation(layout, raw, businessLoc); err == nil {
			return &t
		}
	}

	// Epoch seconds or milliseconds, the way some booking flows store dates.
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
		var t time.Time
		if n >= 1e12 {
			t = time.UnixMilli(n)
		} else {
			t = time.Unix(n, 0)
		}
		return &t
	}

	return nil
}

// BusinessDay maps an instant to an integer day index: calendar days since
// the Unix epoch, counted on the wall-clock date in the business timezone.
// Two instants that fall on the same calendar day in that zone always yield
// the same index, no matter what zone they were expressed in and regardless
// of daylight-saving shifts.
func BusinessDay(t time.Time) int {
	y, m, d := t.In(businessLoc).Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// DaysBetween returns the number of business-timezone calendar days from a
// to b. Positive when b is on a later day than a.
func DaysBetween(a, b time.Time) int {
	return BusinessDay(b) - BusinessDay(a)
}

// SameBusinessDay reports whether two instants share a calendar day in the
// business timezone.
func SameBusinessDay(a, b time.Time) bool {
	return BusinessDay(a) == BusinessDay(b)
}
