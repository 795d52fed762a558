// Package conflict detects overlapping bookings for one resource on one day.
//
// Occupancy is the half-open interval [start, start+duration). Appointments
// touching at an endpoint do not conflict.
package conflict

import (
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/timegrid"
)

// Interval returns the occupancy of a in decimal hours. ok is false when the
// stored start time cannot be parsed.
func Interval(a domain.Appointment) (start, end float64, ok bool) {
	start, err := timegrid.ToDecimalHours(a.StartTime)
	if err != nil {
		return 0, 0, false
	}
	return start, start + float64(a.Duration())/60, true
}

// HasConflict reports whether [start, end) overlaps any appointment for
// resourceID on day, whatever its status. excludeID skips the appointment
// being moved. A booking whose start cannot be parsed counts as a conflict.
func HasConflict(resourceID uuid.UUID, day civil.Date, start, end float64, appts []domain.Appointment, excludeID uuid.UUID) bool {
	if end <= start {
		return false
	}
	for _, a := range appts {
		if !relevant(a, resourceID, day, excludeID) {
			continue
		}
		s, e, ok := Interval(a)
		if !ok {
			return true
		}
		if start < e && s < end {
			return true
		}
	}
	return false
}

// Occupant returns the appointment covering slot for resourceID on day.
func Occupant(resourceID uuid.UUID, day civil.Date, slot float64, appts []domain.Appointment) (domain.Appointment, bool) {
	for _, a := range appts {
		if !relevant(a, resourceID, day, uuid.Nil) {
			continue
		}
		s, e, ok := Interval(a)
		if !ok {
			continue
		}
		if slot >= s && slot < e {
			return a, true
		}
	}
	return domain.Appointment{}, false
}

// StartingAt returns the appointments for resourceID on day whose start is exactly slot.
func StartingAt(resourceID uuid.UUID, day civil.Date, slot float64, appts []domain.Appointment) []domain.Appointment {
	var out []domain.Appointment
	for _, a := range appts {
		if !relevant(a, resourceID, day, uuid.Nil) {
			continue
		}
		if s, _, ok := Interval(a); ok && s == slot {
			out = append(out, a)
		}
	}
	return out
}

func relevant(a domain.Appointment, resourceID uuid.UUID, day civil.Date, excludeID uuid.UUID) bool {
	if a.ResourceID != resourceID {
		return false
	}
	if excludeID != uuid.Nil && a.ID == excludeID {
		return false
	}
	return timegrid.OnDay(a.Date, day)
}
