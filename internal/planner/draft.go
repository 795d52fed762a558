package planner

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/ledger"
	"studioops/backend/internal/timegrid"
)

// Draft is an unsaved appointment assembled step by step. Nothing is
// validated until Build.
type Draft struct {
	ID              uuid.UUID
	ResourceID      uuid.UUID
	Day             civil.Date
	Start           float64
	DurationMinutes int
	ClientID        *uuid.UUID
	ServiceID       *uuid.UUID
	Deposit         domain.Money
	Notes           string
	Status          domain.AppointmentStatus
	Override        bool

	rate  domain.Money
	price *domain.Money
}

func NewDraft(resourceID uuid.UUID, day civil.Date, start float64) *Draft {
	return &Draft{
		ResourceID:      resourceID,
		Day:             day,
		Start:           start,
		DurationMinutes: domain.DefaultDurationMinutes,
		Status:          domain.StatusPending,
	}
}

// WithID fixes the appointment id, used to make retried bookings idempotent.
func (d *Draft) WithID(id uuid.UUID) *Draft {
	d.ID = id
	return d
}

func (d *Draft) WithClient(id uuid.UUID) *Draft {
	d.ClientID = &id
	return d
}

func (d *Draft) WithService(id uuid.UUID) *Draft {
	d.ServiceID = &id
	return d
}

func (d *Draft) WithDuration(minutes int) *Draft {
	d.DurationMinutes = minutes
	return d
}

// WithRate sets the hourly rate used when no explicit price is given.
func (d *Draft) WithRate(rate domain.Money) *Draft {
	d.rate = rate
	return d
}

// WithPrice fixes the price, disabling auto-pricing.
func (d *Draft) WithPrice(price domain.Money) *Draft {
	d.price = &price
	return d
}

func (d *Draft) WithDeposit(amount domain.Money) *Draft {
	d.Deposit = amount
	return d
}

func (d *Draft) WithNotes(notes string) *Draft {
	d.Notes = notes
	return d
}

func (d *Draft) WithStatus(status domain.AppointmentStatus) *Draft {
	d.Status = status
	return d
}

func (d *Draft) WithOverride(override bool) *Draft {
	d.Override = override
	return d
}

// Price is the explicit price if one was set, otherwise rate × duration.
func (d *Draft) Price() domain.Money {
	if d.price != nil {
		return *d.price
	}
	return AutoPrice(d.rate, d.DurationMinutes)
}

// Build validates the draft and returns the appointment to persist.
func (d *Draft) Build() (domain.Appointment, error) {
	switch {
	case d.ResourceID == uuid.Nil:
		return domain.Appointment{}, domain.Validation("artist is required")
	case d.Day.Year == 0 || !d.Day.IsValid():
		return domain.Appointment{}, domain.Validation("date is required")
	case d.DurationMinutes <= 0:
		return domain.Appointment{}, domain.Validation("duration must be positive")
	case !timegrid.InDay(d.Start, d.DurationMinutes):
		return domain.Appointment{}, domain.Validation("appointments cannot run past midnight")
	case !d.Status.Valid():
		return domain.Appointment{}, domain.Validation("unknown status " + string(d.Status))
	}

	price := d.Price()
	if price < 0 {
		return domain.Appointment{}, domain.Validation("price cannot be negative")
	}
	if d.Deposit < 0 {
		return domain.Appointment{}, domain.Validation("deposit cannot be negative")
	}
	if d.Deposit > price {
		return domain.Appointment{}, domain.Validation("deposit cannot exceed price")
	}

	a := domain.Appointment{
		ID:              d.ID,
		ResourceID:      d.ResourceID,
		ClientID:        d.ClientID,
		ServiceID:       d.ServiceID,
		Date:            d.Day.String(),
		StartTime:       timegrid.FormatDecimal(d.Start),
		DurationMinutes: d.DurationMinutes,
		Price:           price,
		DepositPaid:     d.Deposit,
		Status:          d.Status,
		Notes:           strings.TrimSpace(d.Notes),
	}
	a.PaymentStatus = ledger.Status(a)
	return a, nil
}
