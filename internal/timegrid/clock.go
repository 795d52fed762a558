package timegrid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Clock is a parsed "HH:MM[:SS]" value. Seconds are kept so the string can be
// reproduced, but never take part in decimal-hour math.
type Clock struct {
	Hour       int
	Minute     int
	Second     int
	hasSeconds bool
}

func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, fmt.Errorf("malformed time %q", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		if p == "" || len(p) > 2 {
			return Clock{}, fmt.Errorf("malformed time %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Clock{}, fmt.Errorf("malformed time %q", s)
		}
		nums[i] = n
	}

	c := Clock{Hour: nums[0], Minute: nums[1]}
	if len(nums) == 3 {
		c.Second = nums[2]
		c.hasSeconds = true
	}
	if c.Minute > 59 || c.Second > 59 || c.Hour > HoursPerDay {
		return Clock{}, fmt.Errorf("time out of range %q", s)
	}
	if c.Hour == HoursPerDay && (c.Minute != 0 || c.Second != 0) {
		return Clock{}, fmt.Errorf("time out of range %q", s)
	}
	return c, nil
}

func (c Clock) Decimal() float64 {
	return float64(c.Hour) + float64(c.Minute)/60
}

func (c Clock) String() string {
	if c.hasSeconds {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ToDecimalHours accepts a clock string or a bare decimal hour such as "9.5".
func ToDecimalHours(s string) (float64, error) {
	if t := strings.TrimSpace(s); t != "" && !strings.Contains(t, ":") {
		d, err := strconv.ParseFloat(t, 64)
		if err != nil || math.IsNaN(d) || d < 0 || d > HoursPerDay {
			return 0, fmt.Errorf("malformed time %q", s)
		}
		return d, nil
	}
	c, err := ParseClock(s)
	if err != nil {
		return 0, err
	}
	return c.Decimal(), nil
}

// FormatDecimal renders a decimal hour as "HH:MM": hour floored, minute rounded.
func FormatDecimal(d float64) string {
	h := math.Floor(d)
	m := math.Round((d - h) * 60)
	if m >= 60 {
		h++
		m = 0
	}
	return fmt.Sprintf("%02d:%02d", int(h), int(m))
}

// FormatDisplay renders a decimal hour the way the calendar labels rows: "9AM", "1:30PM".
func FormatDisplay(d float64) string {
	h := int(math.Floor(d))
	m := int(math.Round((d - float64(h)) * 60))
	if m >= 60 {
		h++
		m = 0
	}
	period := "AM"
	if h >= 12 && h < HoursPerDay {
		period = "PM"
	}
	display := h % 12
	if display == 0 {
		display = 12
	}
	if m > 0 {
		return fmt.Sprintf("%d:%02d%s", display, m, period)
	}
	return fmt.Sprintf("%d%s", display, period)
}
