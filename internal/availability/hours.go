package availability

import (
	"time"

	"cloud.google.com/go/civil"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/timegrid"
)

func weekday(day civil.Date) time.Weekday {
	return day.In(time.UTC).Weekday()
}

// window resolves a weekday's hours to decimal bounds. A closed day, a missing
// entry, or unparseable times all count as unavailable.
func window(hours domain.WeeklyHours, wd time.Weekday) (open, close float64, ok bool) {
	h, found := hours.For(wd)
	if !found || h.Closed {
		return 0, 0, false
	}
	open, err := timegrid.ToDecimalHours(h.Open)
	if err != nil {
		return 0, 0, false
	}
	close, err = timegrid.ToDecimalHours(h.Close)
	if err != nil {
		return 0, 0, false
	}
	if close <= open {
		return 0, 0, false
	}
	return open, close, true
}
