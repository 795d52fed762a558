package availability

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"studioops/backend/internal/domain"
)

var (
	artistA = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	artistB = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")

	// 2026-01-05 is a Monday, 2026-01-11 a Sunday.
	monday = civil.Date{Year: 2026, Month: 1, Day: 5}
	sunday = civil.Date{Year: 2026, Month: 1, Day: 11}
)

func shopHours() domain.WeeklyHours {
	return domain.WeeklyHours{
		"monday": {Open: "08:00", Close: "20:00"},
		"sunday": {Closed: true},
	}
}

func newResolver() *Resolver {
	return NewResolver(shopHours(), []domain.Resource{
		{ID: artistA},
		{ID: artistB, Hours: domain.WeeklyHours{"monday": {Open: "12:00", Close: "18:00"}}},
	})
}

func TestIsSchedulable(t *testing.T) {
	r := newResolver()

	tests := []struct {
		name     string
		resource uuid.UUID
		slot     float64
		day      civil.Date
		override bool
		want     bool
	}{
		{name: "shop open, artist follows shop", resource: artistA, slot: 9, day: monday, want: true},
		{name: "opening boundary inclusive", resource: artistA, slot: 8, day: monday, want: true},
		{name: "closing boundary exclusive", resource: artistA, slot: 20, day: monday, want: false},
		{name: "before open", resource: artistA, slot: 7.5, day: monday, want: false},
		{name: "shop closed day", resource: artistA, slot: 12, day: sunday, want: false},
		{name: "artist hours narrower than shop", resource: artistB, slot: 10, day: monday, want: false},
		{name: "inside artist hours", resource: artistB, slot: 12, day: monday, want: true},
		{name: "artist has no entry for weekday", resource: artistB, slot: 12, day: civil.Date{Year: 2026, Month: 1, Day: 6}, want: false},
		{name: "override bypasses closed shop", resource: artistA, slot: 12, day: sunday, override: true, want: true},
		{name: "override bypasses artist hours", resource: artistB, slot: 22, day: monday, override: true, want: true},
		{name: "override still bounded to the day", resource: artistA, slot: 24, day: monday, override: true, want: false},
		{name: "unknown resource", resource: uuid.New(), slot: 9, day: monday, override: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.IsSchedulable(tt.resource, tt.slot, tt.day, tt.override); got != tt.want {
				t.Fatalf("IsSchedulable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWorkingWindow(t *testing.T) {
	r := newResolver()
	open, close, ok := r.WorkingWindow(monday)
	if !ok || open != 8 || close != 20 {
		t.Fatalf("WorkingWindow(monday) = %v, %v, %v", open, close, ok)
	}
	if _, _, ok := r.WorkingWindow(sunday); ok {
		t.Fatalf("WorkingWindow(sunday) ok = true, want false")
	}
}

func TestWindow_RejectsBadHours(t *testing.T) {
	hours := domain.WeeklyHours{
		"monday":  {Open: "nine", Close: "17:00"},
		"tuesday": {Open: "17:00", Close: "09:00"},
	}
	r := NewResolver(hours, []domain.Resource{{ID: artistA}})
	if r.IsSchedulable(artistA, 10, monday, false) {
		t.Fatalf("unparseable open time must be unavailable")
	}
	if r.IsSchedulable(artistA, 10, civil.Date{Year: 2026, Month: 1, Day: 6}, false) {
		t.Fatalf("inverted window must be unavailable")
	}
}

func TestStatus(t *testing.T) {
	r := newResolver()
	appts := []domain.Appointment{{
		ID:              uuid.New(),
		ResourceID:      artistB,
		Date:            "2026-01-05",
		StartTime:       "13:00",
		DurationMinutes: 60,
		Status:          domain.StatusPending,
	}}

	tests := []struct {
		name     string
		resource uuid.UUID
		slot     float64
		want     SlotStatus
	}{
		{name: "booked", resource: artistB, slot: 13.5, want: SlotBooked},
		{name: "shop closed", resource: artistA, slot: 21, want: SlotShopClosed},
		{name: "artist unavailable", resource: artistB, slot: 9, want: SlotArtistUnavailable},
		{name: "available", resource: artistB, slot: 14, want: SlotAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Status(tt.resource, tt.slot, monday, appts); got != tt.want {
				t.Fatalf("Status = %q, want %q", got, tt.want)
			}
		})
	}
}
