package timegrid

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ParseDate reads the calendar day from "YYYY-MM-DD" or any string starting
// with it (a stored timestamp such as "2026-01-05T00:00:00Z"). The components
// are split out by hand so no UTC-assuming parser can shift the day.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return civil.Date{}, fmt.Errorf("malformed date %q", s)
	}
	y, errY := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	d, errD := strconv.Atoi(parts[2])
	if errY != nil || errM != nil || errD != nil {
		return civil.Date{}, fmt.Errorf("malformed date %q", s)
	}
	out := civil.Date{Year: y, Month: time.Month(m), Day: d}
	if !out.IsValid() {
		return civil.Date{}, fmt.Errorf("invalid date %q", s)
	}
	return out, nil
}

// SameDay compares by year, month and day only.
func SameDay(a, b civil.Date) bool {
	return a.Year == b.Year && a.Month == b.Month && a.Day == b.Day
}

// OnDay reports whether a stored date string falls on day. Unparseable dates never match.
func OnDay(stored string, day civil.Date) bool {
	d, err := ParseDate(stored)
	if err != nil {
		return false
	}
	return SameDay(d, day)
}
