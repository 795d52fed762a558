// Package planner answers whether a slot or range can be booked and builds
// the draft appointment or move request for each booking gesture. Nothing
// here writes to storage.
package planner

import (
	"fmt"
	"math"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"studioops/backend/internal/availability"
	"studioops/backend/internal/conflict"
	"studioops/backend/internal/domain"
	"studioops/backend/internal/timegrid"
)

const (
	msgUnavailable = "That time is outside working hours. Pick a different slot."
	msgOverlap     = "That time is no longer available. Pick a different slot."
)

type Config struct {
	DefaultDurationMinutes int
	// DefaultHourlyRate prices resources that have no rate of their own.
	DefaultHourlyRate domain.Money
}

type Planner struct {
	grid     timegrid.Grid
	resolver *availability.Resolver
	cfg      Config
}

func New(grid timegrid.Grid, resolver *availability.Resolver, cfg Config) *Planner {
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = domain.DefaultDurationMinutes
	}
	return &Planner{grid: grid, resolver: resolver, cfg: cfg}
}

func (p *Planner) Grid() timegrid.Grid {
	return p.grid
}

func (p *Planner) Resolver() *availability.Resolver {
	return p.resolver
}

func (p *Planner) DefaultDuration() int {
	return p.cfg.DefaultDurationMinutes
}

// AutoPrice is rate × hours rounded to a whole currency unit.
func AutoPrice(hourlyRate domain.Money, minutes int) domain.Money {
	units := math.Round(hourlyRate.Float() * float64(minutes) / 60)
	return domain.Money(units) * 100
}

// RateFor returns the resource's hourly rate, or the configured default.
func (p *Planner) RateFor(resourceID uuid.UUID) domain.Money {
	if res, ok := p.resolver.Resource(resourceID); ok && res.HourlyRate > 0 {
		return res.HourlyRate
	}
	return p.cfg.DefaultHourlyRate
}

// Click is a single-slot booking request.
type Click struct {
	ResourceID uuid.UUID
	Day        civil.Date
	Slot       float64
	Override   bool
	Status     domain.AppointmentStatus
}

// ClickToBook drafts a default-length appointment at the clicked slot. Only
// the clicked slot is checked here; the full span is validated at commit.
func (p *Planner) ClickToBook(c Click, appts []domain.Appointment) (*Draft, error) {
	if err := p.checkSlot(c.Slot); err != nil {
		return nil, err
	}
	if !p.resolver.IsSchedulable(c.ResourceID, c.Slot, c.Day, c.Override) {
		return nil, domain.Conflict(msgUnavailable)
	}
	if _, taken := conflict.Occupant(c.ResourceID, c.Day, c.Slot, appts); taken {
		return nil, domain.Conflict(msgOverlap)
	}
	status := c.Status
	if status == "" {
		status = domain.StatusPending
	}
	return NewDraft(c.ResourceID, c.Day, c.Slot).
		WithDuration(p.cfg.DefaultDurationMinutes).
		WithRate(p.RateFor(c.ResourceID)).
		WithStatus(status).
		WithOverride(c.Override), nil
}

// Selection is a contiguous run of slots for one resource. From and To may
// arrive in either order.
type Selection struct {
	ResourceID uuid.UUID
	Day        civil.Date
	From       float64
	To         float64
	Override   bool
	Status     domain.AppointmentStatus
}

// Bounds returns the first slot and length in minutes covered by the selection.
func (s Selection) Bounds(g timegrid.Grid) (start float64, minutes int) {
	lo, hi := s.From, s.To
	if hi < lo {
		lo, hi = hi, lo
	}
	first, last := g.Index(lo), g.Index(hi)
	return g.At(first), (last - first + 1) * g.SlotMinutes()
}

// SelectRange drafts an appointment covering every selected slot. The draft
// is only produced when every slot is schedulable and the span is free.
func (p *Planner) SelectRange(s Selection, appts []domain.Appointment) (*Draft, error) {
	if err := p.checkSlot(s.From); err != nil {
		return nil, err
	}
	if err := p.checkSlot(s.To); err != nil {
		return nil, err
	}
	start, minutes := s.Bounds(p.grid)
	if err := p.ValidateSpan(Span{
		ResourceID: s.ResourceID,
		Day:        s.Day,
		Start:      start,
		Minutes:    minutes,
		Override:   s.Override,
	}, appts); err != nil {
		return nil, err
	}
	status := s.Status
	if status == "" {
		status = domain.StatusConfirmed
	}
	return NewDraft(s.ResourceID, s.Day, start).
		WithDuration(minutes).
		WithRate(p.RateFor(s.ResourceID)).
		WithStatus(status).
		WithOverride(s.Override), nil
}

// Target is where an existing appointment is being dropped.
type Target struct {
	ResourceID uuid.UUID
	Day        civil.Date
	Slot       float64
}

// Move validates dropping a at target with its duration unchanged and returns
// the patch to persist. a itself is never modified.
func (p *Planner) Move(a domain.Appointment, to Target, override bool, appts []domain.Appointment) (domain.AppointmentPatch, error) {
	if err := p.checkSlot(to.Slot); err != nil {
		return domain.AppointmentPatch{}, err
	}
	if err := p.ValidateSpan(Span{
		ResourceID: to.ResourceID,
		Day:        to.Day,
		Start:      to.Slot,
		Minutes:    a.Duration(),
		Override:   override,
		ExcludeID:  a.ID,
	}, appts); err != nil {
		return domain.AppointmentPatch{}, err
	}

	resourceID := to.ResourceID
	date := to.Day.String()
	start := timegrid.FormatDecimal(to.Slot)
	return domain.AppointmentPatch{
		ResourceID: &resourceID,
		Date:       &date,
		StartTime:  &start,
	}, nil
}

// Span is a candidate booking interval.
type Span struct {
	ResourceID uuid.UUID
	Day        civil.Date
	Start      float64
	Minutes    int
	Override   bool
	ExcludeID  uuid.UUID
}

// ValidateSpan checks every slot of the span against working hours and the
// whole span against existing bookings. Callers run it against the freshest
// snapshot right before committing.
func (p *Planner) ValidateSpan(s Span, appts []domain.Appointment) error {
	if s.Minutes <= 0 || s.Minutes%p.grid.SlotMinutes() != 0 {
		return domain.Validation(fmt.Sprintf("duration must be a positive multiple of %d minutes", p.grid.SlotMinutes()))
	}
	if !p.grid.Aligned(s.Start) {
		return domain.Validation("start time is not on the schedule grid")
	}
	if !timegrid.InDay(s.Start, s.Minutes) {
		return domain.Validation("appointments cannot run past midnight")
	}
	for _, slot := range p.grid.Span(s.Start, s.Minutes) {
		if !p.resolver.IsSchedulable(s.ResourceID, slot, s.Day, s.Override) {
			return domain.Conflict(msgUnavailable)
		}
	}
	end := s.Start + float64(s.Minutes)/60
	if conflict.HasConflict(s.ResourceID, s.Day, s.Start, end, appts, s.ExcludeID) {
		return domain.Conflict(msgOverlap)
	}
	return nil
}

// ValidateDraft re-checks a draft's full span at commit time.
func (p *Planner) ValidateDraft(d *Draft, appts []domain.Appointment) error {
	return p.ValidateSpan(Span{
		ResourceID: d.ResourceID,
		Day:        d.Day,
		Start:      d.Start,
		Minutes:    d.DurationMinutes,
		Override:   d.Override,
	}, appts)
}

func (p *Planner) checkSlot(slot float64) error {
	if slot < 0 || slot >= timegrid.HoursPerDay {
		return domain.Validation("slot must be within the day")
	}
	if !p.grid.Aligned(slot) {
		return domain.Validation("slot is not on the schedule grid")
	}
	return nil
}
